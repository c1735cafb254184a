// Package composer is the client side of direct messaging: it builds an
// outgoing draft from typed text, an attached image or dictated speech and
// renders the conversation it belongs to.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/media"
)

var (
	ErrEmptyDraft       = errors.New("nothing to send")
	ErrNoPeer           = errors.New("no conversation selected")
	ErrNotAnImage       = errors.New("please select an image file")
	ErrSendFailed       = errors.New("failed to send message")
	ErrVoiceUnsupported = errors.New("voice recognition is not supported")
	ErrVoiceRecognition = errors.New("voice recognition failed, please try again")
)

// SendRequest is the body of POST /api/messages/send/:id.
type SendRequest struct {
	Text           string `json:"text"`
	Image          string `json:"image,omitempty"`
	IsVoiceMessage bool   `json:"isVoiceMessage"`
}

type Sender interface {
	Send(ctx context.Context, receiverID string, req SendRequest) (*domain.Message, error)
}

// Recognizer captures one utterance and returns its final transcript.
// Cancelling ctx stops listening.
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
}

// Draft is a snapshot of the composer state.
type Draft struct {
	Text           string
	Image          string
	IsVoiceMessage bool
	Listening      bool
}

type Composer struct {
	mu         sync.Mutex
	peerID     string
	text       string
	image      string
	voice      bool
	listening  bool
	stopListen context.CancelFunc
	sender     Sender
	recognizer Recognizer
	thread     *Thread
}

// New builds a composer. recognizer may be nil when dictation is unavailable.
func New(sender Sender, recognizer Recognizer, thread *Thread) *Composer {
	return &Composer{sender: sender, recognizer: recognizer, thread: thread}
}

// SetPeer selects the conversation and discards any draft.
func (c *Composer) SetPeer(peerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerID = peerID
	c.clearLocked()
}

// SetText replaces the typed text. Editing by hand drops the voice flag.
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	c.voice = false
}

// AttachImage reads data as an inline data URL after checking it is an image.
func (c *Composer) AttachImage(data []byte) error {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return ErrNotAnImage
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.image = media.EncodeDataURI(mt.String(), data)
	return nil
}

func (c *Composer) RemoveImage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.image = ""
}

func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Draft{Text: c.text, Image: c.image, IsVoiceMessage: c.voice, Listening: c.listening}
}

// CanSend is false while both text and image are empty.
func (c *Composer) CanSend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canSendLocked()
}

func (c *Composer) canSendLocked() bool {
	return strings.TrimSpace(c.text) != "" || c.image != ""
}

func (c *Composer) clearLocked() {
	c.text = ""
	c.image = ""
	c.voice = false
}

// ToggleVoice starts dictation when idle and stops it while listening. The
// transcript lands in the draft asynchronously; done, when set, gets the
// outcome once listening ends.
func (c *Composer) ToggleVoice(ctx context.Context, done func(error)) error {
	c.mu.Lock()
	if c.recognizer == nil {
		c.mu.Unlock()
		return ErrVoiceUnsupported
	}
	if c.listening {
		c.stopListen()
		c.mu.Unlock()
		return nil
	}
	lctx := c.beginLocked(ctx)
	c.mu.Unlock()

	go func() {
		transcript, err := c.recognizer.Listen(lctx)
		err = c.finish(transcript, err)
		if done != nil {
			done(err)
		}
	}()
	return nil
}

// Dictate listens for one utterance and blocks until it is captured.
func (c *Composer) Dictate(ctx context.Context) error {
	c.mu.Lock()
	if c.recognizer == nil {
		c.mu.Unlock()
		return ErrVoiceUnsupported
	}
	if c.listening {
		c.mu.Unlock()
		return fmt.Errorf("%w: already listening", ErrVoiceRecognition)
	}
	lctx := c.beginLocked(ctx)
	c.mu.Unlock()

	transcript, err := c.recognizer.Listen(lctx)
	return c.finish(transcript, err)
}

func (c *Composer) beginLocked(ctx context.Context) context.Context {
	lctx, cancel := context.WithCancel(ctx)
	c.listening = true
	c.stopListen = cancel
	return lctx
}

func (c *Composer) finish(transcript string, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopListen != nil {
		c.stopListen()
	}
	c.listening = false
	c.stopListen = nil

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrVoiceRecognition, err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return fmt.Errorf("%w: no speech detected", ErrVoiceRecognition)
	}
	c.text = transcript
	c.voice = true
	return nil
}

// Send submits the draft. On success the draft is cleared and the message
// is rendered locally; on failure the draft is kept for a retry.
func (c *Composer) Send(ctx context.Context) (*domain.Message, error) {
	c.mu.Lock()
	if !c.canSendLocked() {
		c.mu.Unlock()
		return nil, ErrEmptyDraft
	}
	if c.peerID == "" {
		c.mu.Unlock()
		return nil, ErrNoPeer
	}
	peer := c.peerID
	req := SendRequest{Text: strings.TrimSpace(c.text), Image: c.image, IsVoiceMessage: c.voice}
	c.mu.Unlock()

	m, err := c.sender.Send(ctx, peer, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	c.mu.Lock()
	c.clearLocked()
	c.mu.Unlock()

	if c.thread != nil {
		c.thread.Append(m)
	}
	return m, nil
}
