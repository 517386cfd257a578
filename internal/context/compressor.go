package context

// SimpleCompressor bounds the dialogue window to its most recent
// MaxMessages entries. MaxMessages <= 0 keeps everything.
type SimpleCompressor struct {
	MaxMessages int
}

// Compress returns the tail of messages, never more than MaxMessages long.
// The returned slice shares its backing array with messages.
func (c *SimpleCompressor) Compress(messages []Message) []Message {
	if c.MaxMessages <= 0 || len(messages) <= c.MaxMessages {
		return messages
	}
	return messages[len(messages)-c.MaxMessages:]
}
