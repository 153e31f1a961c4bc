package repo

import (
	"context"
	"fmt"

	"subtrack-bot/internal/domain"
)

// TranscriptLog writes session transcripts into the message log.
type TranscriptLog struct {
	store Store
	limit int
}

func NewTranscriptLog(store Store, limit int) *TranscriptLog {
	return &TranscriptLog{store: store, limit: limit}
}

func (t *TranscriptLog) Append(ctx context.Context, msg domain.Message) error {
	rec, err := RecordFromMessage(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return t.store.InsertMessage(ctx, rec)
}

func (t *TranscriptLog) Load(ctx context.Context, sessionID string) ([]domain.Message, error) {
	recs, err := t.store.ListMessages(ctx, sessionID, t.limit)
	if err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, len(recs))
	for i, rec := range recs {
		msgs[i] = rec.Message()
	}
	return msgs, nil
}
