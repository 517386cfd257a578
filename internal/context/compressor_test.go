package context

import "testing"

func TestSimpleCompressor_KeepsMostRecent(t *testing.T) {
	c := &SimpleCompressor{MaxMessages: 2}
	msgs := []Message{
		{Role: RoleUser, Content: "¿cuántos clientes tengo?"},
		{Role: RoleAssistant, Content: "Tienes 3 clientes."},
		{Role: RoleUser, Content: "¿y vencidos?"},
	}
	result := c.Compress(msgs)
	if len(result) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(result))
	}
	if result[0].Content != "Tienes 3 clientes." {
		t.Errorf("unexpected first message %q", result[0].Content)
	}
	if result[1].Content != "¿y vencidos?" {
		t.Errorf("unexpected last message %q", result[1].Content)
	}
}

func TestSimpleCompressor_UnderLimit(t *testing.T) {
	c := &SimpleCompressor{MaxMessages: 12}
	msgs := []Message{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}}
	if got := c.Compress(msgs); len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
}

func TestSimpleCompressor_Disabled(t *testing.T) {
	msgs := []Message{{Role: RoleUser, Content: "a"}, {Role: RoleUser, Content: "b"}}
	for _, limit := range []int{0, -1} {
		c := &SimpleCompressor{MaxMessages: limit}
		if got := c.Compress(msgs); len(got) != 2 {
			t.Fatalf("max=%d: expected no truncation, got %d", limit, len(got))
		}
	}
}

func TestSimpleCompressor_Empty(t *testing.T) {
	c := &SimpleCompressor{MaxMessages: 3}
	if got := c.Compress(nil); len(got) != 0 {
		t.Fatalf("expected 0 messages, got %d", len(got))
	}
}
