package context

// Compressor reduces a list of messages to fit within constraints.
type Compressor interface {
	Compress(messages []Message) []Message
}

// Assembler combines the live query, prior dialogue, portfolio summary and
// user role into a Payload.
type Assembler interface {
	Assemble(query string, history []Message, summary, userRole string) Payload
}
