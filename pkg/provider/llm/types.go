package llm

// Conversation roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in an LLM conversation.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the text of the message.
	Content string
}

// ModelCapabilities describes the limits of an LLM model.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one
	// completion.
	MaxOutputTokens int
}

// ClampMaxTokens returns want limited to caps.MaxOutputTokens. A zero
// MaxOutputTokens means the limit is unknown and want is returned unchanged.
func ClampMaxTokens(want int, caps ModelCapabilities) int {
	if caps.MaxOutputTokens > 0 && want > caps.MaxOutputTokens {
		return caps.MaxOutputTokens
	}
	return want
}
