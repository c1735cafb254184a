package composer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-service/internal/domain"
)

// Frame is an envelope as read off the wire.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type LiveHandlers struct {
	OnMessage func(m *domain.Message)
	OnOnline  func(userIDs []string)
}

// LiveClient listens on the service's websocket for pushed events.
type LiveClient struct {
	url    string
	token  string
	dialer *websocket.Dialer
	log    *zap.Logger
}

// NewLiveClient derives the socket URL from the HTTP base URL.
func NewLiveClient(baseURL, token string, logger *zap.Logger) (*LiveClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	return &LiveClient{url: u.String(), token: token, dialer: websocket.DefaultDialer, log: logger}, nil
}

// Run reads frames until ctx is done or the connection drops.
func (l *LiveClient) Run(ctx context.Context, h LiveHandlers) error {
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+l.token)
	conn, _, err := l.dialer.DialContext(ctx, l.url, hdr)
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		l.dispatch(f, h)
	}
}

func (l *LiveClient) dispatch(f Frame, h LiveHandlers) {
	switch f.Type {
	case domain.EventNewMessage:
		var m domain.Message
		if err := json.Unmarshal(f.Payload, &m); err != nil {
			l.log.Warn("bad newMessage payload", zap.Error(err))
			return
		}
		if h.OnMessage != nil {
			h.OnMessage(&m)
		}
	case domain.EventGetOnlineUsers:
		var ids []string
		if err := json.Unmarshal(f.Payload, &ids); err != nil {
			l.log.Warn("bad getOnlineUsers payload", zap.Error(err))
			return
		}
		if h.OnOnline != nil {
			h.OnOnline(ids)
		}
	default:
		l.log.Debug("ignored frame", zap.String("type", f.Type))
	}
}
