package chat

import (
	"context"
	"errors"
	"fmt"

	"subtrack-bot/internal/domain"
)

// MultiStore fans appends out to every store and loads from the first one
// that has the transcript.
type MultiStore []TranscriptStore

func (ms MultiStore) Append(ctx context.Context, msg domain.Message) error {
	var errs []error
	for _, s := range ms {
		if err := s.Append(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("append transcript: %w", errors.Join(errs...))
	}
	return nil
}

func (ms MultiStore) Load(ctx context.Context, sessionID string) ([]domain.Message, error) {
	var firstErr error
	for _, s := range ms {
		msgs, err := s.Load(ctx, sessionID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(msgs) > 0 {
			return msgs, nil
		}
	}
	return nil, firstErr
}
