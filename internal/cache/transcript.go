package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"subtrack-bot/internal/domain"
)

// TranscriptStore keeps the tail of each session transcript in a redis list.
type TranscriptStore struct {
	redis   *Redis
	ttl     time.Duration
	maxSize int64
}

func NewTranscriptStore(r *Redis, ttl time.Duration, maxSize int) *TranscriptStore {
	if maxSize <= 0 {
		maxSize = 200
	}
	return &TranscriptStore{redis: r, ttl: ttl, maxSize: int64(maxSize)}
}

func transcriptKey(sessionID string) string {
	return fmt.Sprintf("transcript:%s", sessionID)
}

func (s *TranscriptStore) Append(ctx context.Context, msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	key := transcriptKey(msg.SessionID)
	pipe := s.redis.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -s.maxSize, -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

func (s *TranscriptStore) Load(ctx context.Context, sessionID string) ([]domain.Message, error) {
	items, err := s.redis.client.LRange(ctx, transcriptKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	msgs := make([]domain.Message, 0, len(items))
	for _, item := range items {
		var msg domain.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
