package dialogue

// Role tags a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in the call transcript. The transcript is append-only
// for the lifetime of a call; the first message is always the system
// instruction.
type Message struct {
	Role Role
	// Tool is set on assistant tool-decision messages and on tool results.
	Tool string
	Text string

	// toolCallID and toolArgs carry the provider's tool-invocation handle on
	// assistant tool-decision messages so the follow-up request stays coherent.
	toolCallID string
	toolArgs   string
}

// Segment is a contiguous, independently speakable slice of a reply.
// Index is nil for tool announcements, which are out of band and not part of
// the reconstructed reply text.
type Segment struct {
	Interaction int
	Index       *int
	Text        string
}

// SegmentHandler receives reply segments in emission order, as soon as each
// one closes.
type SegmentHandler func(Segment)
