package context

// Role tags the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps a raw conversation role to a dialogue Role. Only user and
// assistant turns are recognized.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser:
		return RoleUser, true
	case RoleAssistant:
		return RoleAssistant, true
	default:
		return "", false
	}
}

// Message is a model-agnostic chat message used across the context pipeline.
type Message struct {
	Role    Role
	Content string
}
