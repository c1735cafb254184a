// Package presence tracks which users currently hold a live connection.
package presence

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/metrics"
)

// Handle is a live connection able to accept pushed envelopes.
// Push must not block.
type Handle interface {
	ID() string
	Push(env domain.Envelope) bool
}

// Mirror publishes online state outside the process.
type Mirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

const (
	mirrorTimeout = 2 * time.Second
	mirrorStripes = 64
)

// Directory maps a user id to at most one live connection. The latest
// registration wins.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]Handle
	mirror  Mirror
	log     *zap.Logger

	// serialises mirror writes per user
	mirrorMu [mirrorStripes]sync.Mutex
}

// NewDirectory creates an empty directory. mirror may be nil.
func NewDirectory(mirror Mirror, logger *zap.Logger) *Directory {
	return &Directory{
		entries: make(map[string]Handle),
		mirror:  mirror,
		log:     logger,
	}
}

// Register binds userID to h and returns the handle it replaced, if any.
func (d *Directory) Register(userID string, h Handle) Handle {
	d.mu.Lock()
	prev := d.entries[userID]
	d.entries[userID] = h
	n := len(d.entries)
	d.mu.Unlock()

	metrics.OnlineUsers.Set(float64(n))
	d.syncMirror(userID)
	return prev
}

// Unregister removes userID only while it is still bound to connID, so a
// closing older session cannot evict a newer one.
func (d *Directory) Unregister(userID, connID string) bool {
	d.mu.Lock()
	cur, ok := d.entries[userID]
	if !ok || cur.ID() != connID {
		d.mu.Unlock()
		return false
	}
	delete(d.entries, userID)
	n := len(d.entries)
	d.mu.Unlock()

	metrics.OnlineUsers.Set(float64(n))
	d.syncMirror(userID)
	return true
}

// syncMirror writes userID's current state to the mirror. Writes for one
// user are serialised and read the state under that lock, so the last write
// always matches the directory even when a reconnect races a disconnect.
func (d *Directory) syncMirror(userID string) {
	if d.mirror == nil {
		return
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	mu := &d.mirrorMu[h.Sum32()%mirrorStripes]
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if _, online := d.Lookup(userID); online {
		if err := d.mirror.SetOnline(ctx, userID); err != nil {
			d.log.Warn("presence mirror online failed", zap.String("user_id", userID), zap.Error(err))
		}
		return
	}
	if err := d.mirror.SetOffline(ctx, userID); err != nil {
		d.log.Warn("presence mirror offline failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (d *Directory) Lookup(userID string) (Handle, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.entries[userID]
	return h, ok
}

// Online returns the ids of connected users in sorted order.
func (d *Directory) Online() []string {
	d.mu.RLock()
	ids := make([]string, 0, len(d.entries))
	for id := range d.entries {
		ids = append(ids, id)
	}
	d.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Push delivers env to userID's connection. It reports false when the user
// is offline or the connection's buffer is full.
func (d *Directory) Push(userID string, env domain.Envelope) bool {
	h, ok := d.Lookup(userID)
	if !ok {
		metrics.Pushes.WithLabelValues("offline").Inc()
		return false
	}
	if !h.Push(env) {
		metrics.Pushes.WithLabelValues("dropped").Inc()
		d.log.Debug("push dropped", zap.String("user_id", userID), zap.String("type", env.Type))
		return false
	}
	metrics.Pushes.WithLabelValues("delivered").Inc()
	return true
}

// Broadcast pushes env to every connection.
func (d *Directory) Broadcast(env domain.Envelope) {
	d.mu.RLock()
	handles := make([]Handle, 0, len(d.entries))
	for _, h := range d.entries {
		handles = append(handles, h)
	}
	d.mu.RUnlock()

	for _, h := range handles {
		h.Push(env)
	}
}
