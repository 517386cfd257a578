package context

import "github.com/stupiduntilnot/kontempo/internal/record"

// Window returns the prior dialogue of a raw conversation. The last element
// is the live query and is always excluded by position. Turns whose role is
// neither user nor assistant are skipped; order is preserved.
func Window(turns []record.Turn) []Message {
	if len(turns) <= 1 {
		return nil
	}
	prior := turns[:len(turns)-1]
	out := make([]Message, 0, len(prior))
	for _, t := range prior {
		role, ok := ParseRole(t.Role.String())
		if !ok {
			continue
		}
		out = append(out, Message{Role: role, Content: t.Content.String()})
	}
	return out
}
