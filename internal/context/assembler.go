package context

import (
	"fmt"
	"strings"
)

// DefaultUserRole is used when a request does not name the user's role.
const DefaultUserRole = "admin"

// Payload is the handoff from context assembly to the model provider.
type Payload struct {
	Query    string
	History  []Message
	Summary  string
	UserRole string
}

// StandardAssembler builds a Payload, defaulting a blank role to
// DefaultRole (or DefaultUserRole when DefaultRole is empty).
type StandardAssembler struct {
	DefaultRole string
}

// Assemble builds the payload for one request.
func (a *StandardAssembler) Assemble(query string, history []Message, summary, userRole string) Payload {
	role := strings.TrimSpace(userRole)
	if role == "" {
		role = a.DefaultRole
	}
	if role == "" {
		role = DefaultUserRole
	}
	return Payload{
		Query:    query,
		History:  history,
		Summary:  summary,
		UserRole: role,
	}
}

// Messages renders a payload into the final message list:
// system + history + user.
func Messages(system string, p Payload) []Message {
	messages := make([]Message, 0, 1+len(p.History)+1)
	messages = append(messages, Message{Role: RoleSystem, Content: system})
	messages = append(messages, p.History...)
	messages = append(messages, Message{Role: RoleUser, Content: UserPrompt(p)})
	return messages
}

// UserPrompt formats the user turn carrying role, merchant data and question.
func UserPrompt(p Payload) string {
	return fmt.Sprintf("ROL DEL USUARIO: %s\n\nDATOS DEL MERCHANT:\n%s\n\nPREGUNTA DEL USUARIO: %s",
		p.UserRole, p.Summary, p.Query)
}
