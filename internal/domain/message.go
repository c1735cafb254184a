package domain

import (
	"strings"
	"time"
)

// Message is a direct message between two users. Field names follow the
// existing messages collection.
type Message struct {
	ID             string    `bson:"_id" json:"_id"`
	SenderID       string    `bson:"senderId" json:"senderId"`
	ReceiverID     string    `bson:"receiverId" json:"receiverId"`
	Text           string    `bson:"text" json:"text"`
	OriginalText   string    `bson:"originalText" json:"originalText"`
	Image          string    `bson:"image,omitempty" json:"image,omitempty"`
	IsVoiceMessage bool      `bson:"isVoiceMessage" json:"isVoiceMessage"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
}

// ShouldTranslate reports whether text sent with the given voice flag goes
// through translation. Empty text and dictated text are stored as typed.
func ShouldTranslate(text string, isVoiceMessage bool) bool {
	return strings.TrimSpace(text) != "" && !isVoiceMessage
}

// Involves reports whether the message belongs to the conversation between a and b.
func (m *Message) Involves(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}
