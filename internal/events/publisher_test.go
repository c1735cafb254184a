package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/dm-service/internal/domain"
)

func TestConversationKey(t *testing.T) {
	require.Equal(t, ConversationKey("a", "b"), ConversationKey("b", "a"))
	require.Equal(t, "a:b", ConversationKey("b", "a"))
}

func TestNewKafkaMessage(t *testing.T) {
	req := require.New(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := &domain.Message{ID: "m1", SenderID: "u2", ReceiverID: "u1", Text: "bonjour", OriginalText: "hello"}

	msg, err := newKafkaMessage(m, now)

	req.NoError(err)
	req.Equal("u1:u2", string(msg.Key))
	req.Equal(now, msg.Time)

	var decoded MessageCreated
	req.NoError(json.Unmarshal(msg.Value, &decoded))
	req.Equal(EventMessageCreated, decoded.Event)
	req.Equal("bonjour", decoded.Message.Text)
	req.Equal("hello", decoded.Message.OriginalText)
}

func TestNop(t *testing.T) {
	require.NoError(t, Nop{}.PublishMessageCreated(context.Background(), &domain.Message{}))
}
