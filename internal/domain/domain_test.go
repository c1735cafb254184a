package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldTranslate(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		voice bool
		want  bool
	}{
		{"typed text", "hello", false, true},
		{"voice transcript", "hello", true, false},
		{"empty text", "", false, false},
		{"whitespace only", "   ", false, false},
		{"empty voice", "", true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ShouldTranslate(tc.text, tc.voice))
		})
	}
}

func TestUser_PreferredLanguage(t *testing.T) {
	req := require.New(t)
	req.Equal("fr", (&User{Language: "fr"}).PreferredLanguage("en"))
	req.Equal("en", (&User{}).PreferredLanguage("en"))
	req.Equal("de", (&User{}).PreferredLanguage("de"))
	req.Equal(DefaultLanguage, (&User{}).PreferredLanguage(""))
}

func TestUser_PasswordNeverSerialized(t *testing.T) {
	b, err := json.Marshal(&User{ID: "u1", FullName: "Ann", Password: "hash"})
	require.NoError(t, err)
	require.NotContains(t, string(b), "password")
	require.NotContains(t, string(b), "hash")
}

func TestNewMessageEvent_CarriesOriginalText(t *testing.T) {
	req := require.New(t)
	m := &Message{
		ID: "m1", SenderID: "u1", ReceiverID: "u2",
		Text: "bonjour", OriginalText: "hello", CreatedAt: time.Unix(0, 0).UTC(),
	}

	b, err := json.Marshal(NewMessageEvent(m))
	req.NoError(err)

	var decoded struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	req.NoError(json.Unmarshal(b, &decoded))
	req.Equal(EventNewMessage, decoded.Type)
	req.Equal("bonjour", decoded.Payload["text"])
	req.Equal("hello", decoded.Payload["originalText"])
	req.Equal("m1", decoded.Payload["_id"])
	req.Equal("u2", decoded.Payload["receiverId"])
}

func TestMessage_Involves(t *testing.T) {
	m := &Message{SenderID: "a", ReceiverID: "b"}
	require.True(t, m.Involves("a", "b"))
	require.True(t, m.Involves("b", "a"))
	require.False(t, m.Involves("a", "c"))
}
