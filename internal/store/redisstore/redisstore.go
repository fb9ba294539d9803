package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/methodslab/studychat/internal/transcript"
)

// Store holds the per-browser-session conversation state: the in-memory chat
// history of each part, keyed by session token. State expires with the TTL;
// the durable record lives in the transcript store.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{rdb: rdb, ttl: ttl}
}

func historyKey(token, part string) string {
	return fmt.Sprintf("session:%s:history:%s", token, part)
}

// History returns the session's history for a part. A session with no state
// yet yields nil with no error.
func (s *Store) History(ctx context.Context, token, part string) ([]transcript.Message, error) {
	raw, err := s.rdb.Get(ctx, historyKey(token, part)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session history: %w", err)
	}

	var history []transcript.Message
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("session history: %w", err)
	}
	return history, nil
}

// SaveHistory stores the session's history for a part, refreshing the TTL.
func (s *Store) SaveHistory(ctx context.Context, token, part string, history []transcript.Message) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("session history: %w", err)
	}
	if err := s.rdb.Set(ctx, historyKey(token, part), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session history: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
