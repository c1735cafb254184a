package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/errs"
	"github.com/fathima-sithara/dm-service/internal/metrics"
	"github.com/fathima-sithara/dm-service/internal/utils"
)

type MessageStore interface {
	SaveMessage(ctx context.Context, m *domain.Message) error
	GetConversation(ctx context.Context, a, b string) ([]*domain.Message, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	ListExcept(ctx context.Context, id string) ([]*domain.User, error)
}

// Translator never fails; on provider trouble it returns text unchanged.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) string
}

type MediaUploader interface {
	UploadImage(ctx context.Context, ownerID, payload string) (string, error)
}

// Pusher delivers an envelope to a user's live connection without blocking.
type Pusher interface {
	Push(userID string, env domain.Envelope) bool
}

type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, m *domain.Message) error
}

// SendInput is the body of a send request.
type SendInput struct {
	Text           string `json:"text" validate:"required_without=Image"`
	Image          string `json:"image" validate:"required_without=Text"`
	IsVoiceMessage bool   `json:"isVoiceMessage"`
}

type Deps struct {
	Messages   MessageStore
	Users      UserStore
	Translator Translator
	Media      MediaUploader // nil disables image messages
	Pusher     Pusher
	Events     EventPublisher // optional
}

type Options struct {
	DefaultLanguage  string
	MaxTextLength    int
	TranslateTimeout time.Duration
	UploadTimeout    time.Duration
}

type MessageService struct {
	deps     Deps
	opts     Options
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

func NewMessageService(deps Deps, opts Options, logger *zap.Logger) *MessageService {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = domain.DefaultLanguage
	}
	if opts.TranslateTimeout <= 0 {
		opts.TranslateTimeout = 3 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 15 * time.Second
	}
	return &MessageService{
		deps:     deps,
		opts:     opts,
		validate: validator.New(),
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MessageService) validateInput(in SendInput) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: text or image required", errs.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Text) == "" && in.Image == "" {
		return fmt.Errorf("%w: text or image required", errs.ErrInvalidInput)
	}
	if s.opts.MaxTextLength > 0 {
		if err := s.validate.Var(in.Text, fmt.Sprintf("max=%d", s.opts.MaxTextLength)); err != nil {
			return fmt.Errorf("%w: text longer than %d characters", errs.ErrInvalidInput, s.opts.MaxTextLength)
		}
	}
	return nil
}

// SendMessage persists a message from senderID to receiverID, translating
// typed text into the receiver's language, and pushes it to the receiver
// when they are connected.
func (s *MessageService) SendMessage(ctx context.Context, senderID, receiverID string, in SendInput) (*domain.Message, error) {
	if senderID == "" || receiverID == "" {
		return nil, fmt.Errorf("%w: sender and receiver required", errs.ErrInvalidInput)
	}
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	// receiver first so a bad id never leaves an orphaned upload behind
	receiver, err := s.deps.Users.GetByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}

	var imageURL string
	if in.Image != "" {
		if s.deps.Media == nil {
			return nil, fmt.Errorf("%w: image uploads are not configured", errs.ErrUpstream)
		}
		uctx, cancel := context.WithTimeout(ctx, s.opts.UploadTimeout)
		imageURL, err = s.deps.Media.UploadImage(uctx, senderID, in.Image)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	translated := in.Text
	if domain.ShouldTranslate(in.Text, in.IsVoiceMessage) {
		tctx, cancel := context.WithTimeout(ctx, s.opts.TranslateTimeout)
		translated = s.deps.Translator.Translate(tctx, in.Text, receiver.PreferredLanguage(s.opts.DefaultLanguage))
		cancel()
	}

	m := &domain.Message{
		ID:             utils.NewID(),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Text:           translated,
		OriginalText:   in.Text,
		Image:          imageURL,
		IsVoiceMessage: in.IsVoiceMessage,
		CreatedAt:      s.now(),
	}
	if err := s.deps.Messages.SaveMessage(ctx, m); err != nil {
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues(messageKind(m)).Inc()

	s.deliver(m)
	return m, nil
}

// deliver runs the best-effort side channels. The message is already
// durable; failures here are only logged.
func (s *MessageService) deliver(m *domain.Message) {
	if s.deps.Pusher != nil && !s.deps.Pusher.Push(m.ReceiverID, domain.NewMessageEvent(m)) {
		s.log.Debug("receiver not reachable live", zap.String("receiver_id", m.ReceiverID), zap.String("message_id", m.ID))
	}
	if s.deps.Events != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.deps.Events.PublishMessageCreated(ctx, m); err != nil {
			s.log.Warn("publish message.created failed", zap.String("message_id", m.ID), zap.Error(err))
		}
	}
}

// GetMessages returns the conversation between myID and otherID in write order.
func (s *MessageService) GetMessages(ctx context.Context, myID, otherID string) ([]*domain.Message, error) {
	if myID == "" || otherID == "" {
		return nil, fmt.Errorf("%w: both participants required", errs.ErrInvalidInput)
	}
	return s.deps.Messages.GetConversation(ctx, myID, otherID)
}

// GetUsersForSidebar lists every user except myID.
func (s *MessageService) GetUsersForSidebar(ctx context.Context, myID string) ([]*domain.User, error) {
	users, err := s.deps.Users.ListExcept(ctx, myID)
	if err != nil {
		return nil, err
	}
	return lo.Filter(users, func(u *domain.User, _ int) bool {
		return u.ID != myID
	}), nil
}

func messageKind(m *domain.Message) string {
	switch {
	case m.IsVoiceMessage:
		return "voice"
	case m.Image != "" && m.Text == "":
		return "image"
	default:
		return "text"
	}
}
