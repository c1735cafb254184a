package domain

const (
	EventNewMessage     = "newMessage"
	EventGetOnlineUsers = "getOnlineUsers"
)

// Envelope is the frame written to live connections.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// NewMessagePayload carries the persisted message plus the sender's literal
// text, so receivers always get the original even if Text was replaced.
type NewMessagePayload struct {
	*Message
	OriginalText string `json:"originalText"`
}

func NewMessageEvent(m *Message) Envelope {
	return Envelope{
		Type:    EventNewMessage,
		Payload: NewMessagePayload{Message: m, OriginalText: m.OriginalText},
	}
}

func OnlineUsersEvent(userIDs []string) Envelope {
	return Envelope{Type: EventGetOnlineUsers, Payload: userIDs}
}
