package presence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMirror keeps <prefix>:online (set of user ids) and
// <prefix>:last_seen:<id> (unix seconds) up to date.
type RedisMirror struct {
	client *redis.Client
	prefix string
}

func NewRedisMirror(client *redis.Client, prefix string) *RedisMirror {
	if prefix == "" {
		prefix = "dm"
	}
	return &RedisMirror{client: client, prefix: prefix}
}

func (m *RedisMirror) onlineKey() string { return m.prefix + ":online" }

func (m *RedisMirror) lastSeenKey(userID string) string {
	return fmt.Sprintf("%s:last_seen:%s", m.prefix, userID)
}

func (m *RedisMirror) SetOnline(ctx context.Context, userID string) error {
	pipe := m.client.TxPipeline()
	pipe.SAdd(ctx, m.onlineKey(), userID)
	pipe.Set(ctx, m.lastSeenKey(userID), time.Now().Unix(), 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (m *RedisMirror) SetOffline(ctx context.Context, userID string) error {
	pipe := m.client.TxPipeline()
	pipe.SRem(ctx, m.onlineKey(), userID)
	pipe.Set(ctx, m.lastSeenKey(userID), time.Now().Unix(), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// OnlineUsers lists users marked online by any process sharing the prefix.
func (m *RedisMirror) OnlineUsers(ctx context.Context) ([]string, error) {
	ids, err := m.client.SMembers(ctx, m.onlineKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
