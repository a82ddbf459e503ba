package bus

// InboundMessage is a user message arriving from a chat channel.
type InboundMessage struct {
	Channel  string
	SenderID string
	ChatID   string
	Content  string
	Metadata map[string]string
}

// OutboundMessage is a message the bot wants delivered to a chat channel.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}
