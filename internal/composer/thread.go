package composer

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fathima-sithara/dm-service/internal/domain"
)

// Thread holds and prints the open conversation.
type Thread struct {
	mu     sync.Mutex
	selfID string
	peerID string
	msgs   []*domain.Message
	seen   map[string]struct{}
	out    io.Writer
}

func NewThread(selfID string, out io.Writer) *Thread {
	return &Thread{selfID: selfID, out: out, seen: map[string]struct{}{}}
}

// Open switches to peerID and renders its history.
func (t *Thread) Open(peerID string, history []*domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peerID = peerID
	t.msgs = nil
	t.seen = map[string]struct{}{}
	for _, m := range history {
		t.appendLocked(m)
	}
}

// Append renders m if it belongs to the open conversation and was not shown
// before.
func (t *Thread) Append(m *domain.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendLocked(m)
}

func (t *Thread) appendLocked(m *domain.Message) bool {
	if m == nil || t.peerID == "" || !m.Involves(t.selfID, t.peerID) {
		return false
	}
	if _, dup := t.seen[m.ID]; dup && m.ID != "" {
		return false
	}
	t.seen[m.ID] = struct{}{}
	t.msgs = append(t.msgs, m)
	if t.out != nil {
		fmt.Fprintln(t.out, t.format(m))
	}
	return true
}

func (t *Thread) Messages() []*domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*domain.Message(nil), t.msgs...)
}

func (t *Thread) format(m *domain.Message) string {
	who := m.SenderID
	if m.SenderID == t.selfID {
		who = "me"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s:", m.CreatedAt.Local().Format("15:04"), who)
	if m.Text != "" {
		b.WriteString(" " + m.Text)
	}
	if m.OriginalText != "" && m.OriginalText != m.Text {
		fmt.Fprintf(&b, " (original: %s)", m.OriginalText)
	}
	if m.Image != "" {
		fmt.Fprintf(&b, " [image %s]", m.Image)
	}
	if m.IsVoiceMessage {
		b.WriteString(" (voice)")
	}
	return b.String()
}
