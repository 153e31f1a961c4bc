package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtrack-bot/internal/domain"
)

func newSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	r, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func draftFor(name string, amount float64, cycle domain.BillingCycle, category string, next time.Time) domain.SubscriptionDraft {
	return domain.SubscriptionDraft{
		ServiceName:     name,
		Amount:          &amount,
		BillingCycle:    cycle,
		Category:        category,
		NextBillingDate: &next,
	}
}

func TestSQLiteSubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	r := newSQLiteRepo(t)
	base := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	spotify, err := r.CreateSubscription(ctx, "u1", draftFor("Spotify", 9.99, domain.CycleMonthly, "Music", base.AddDate(0, 0, 10)))
	require.NoError(t, err)
	_, err = r.CreateSubscription(ctx, "u1", draftFor("Netflix", 15.99, domain.CycleMonthly, "Streaming", base.AddDate(0, 0, 3)))
	require.NoError(t, err)
	_, err = r.CreateSubscription(ctx, "u2", draftFor("Hulu", 7.99, domain.CycleMonthly, "Streaming", base))
	require.NoError(t, err)

	subs, err := r.ListSubscriptions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "Netflix", subs[0].Name)
	assert.Equal(t, "Spotify", subs[1].Name)
	assert.Equal(t, "USD", subs[1].Currency)
	assert.Equal(t, base.AddDate(0, 0, 10), subs[1].NextBillingDate)

	got, err := r.GetSubscription(ctx, "u1", spotify.ID)
	require.NoError(t, err)
	assert.Equal(t, *spotify, *got)

	require.NoError(t, r.UpdateStatus(ctx, "u1", spotify.ID, domain.StatusCancelled))
	got, err = r.GetSubscription(ctx, "u1", spotify.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive())

	_, err = r.GetSubscription(ctx, "u2", spotify.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.UpdateStatus(ctx, "u2", spotify.ID, domain.StatusPaused), ErrNotFound)
}

func TestSQLiteRejectsIncompleteDraft(t *testing.T) {
	r := newSQLiteRepo(t)
	amount := 5.0

	_, err := r.CreateSubscription(context.Background(), "u1", domain.SubscriptionDraft{ServiceName: "Calm", Amount: &amount})
	assert.ErrorIs(t, err, ErrIncompleteDraft)
}

func TestSQLiteTranscriptLog(t *testing.T) {
	ctx := context.Background()
	r := newSQLiteRepo(t)
	log := NewTranscriptLog(r, 100)
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	amount := 15.99

	msgs := []domain.Message{
		{ID: "m1", SessionID: "s1", Author: domain.AuthorUser, Text: "Add Netflix for $15.99 monthly", CreatedAt: at},
		{
			ID: "m2", SessionID: "s1", Author: domain.AuthorAssistant, Text: "Great!", CreatedAt: at.Add(800 * time.Millisecond),
			SuggestedReplies: []string{"Show my subscriptions"},
			Draft:            &domain.SubscriptionDraft{ServiceName: "Netflix", Amount: &amount, BillingCycle: domain.CycleMonthly},
		},
		{ID: "m3", SessionID: "other", Author: domain.AuthorUser, Text: "hi", CreatedAt: at},
	}
	for _, m := range msgs {
		require.NoError(t, log.Append(ctx, m))
	}

	got, err := log.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, msgs[0], got[0])
	assert.Equal(t, msgs[1], got[1])

	none, err := log.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteListMessagesKeepsNewestTail(t *testing.T) {
	ctx := context.Background()
	r := newSQLiteRepo(t)
	log := NewTranscriptLog(r, 2)
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	for i, text := range []string{"first", "second", "third"} {
		require.NoError(t, log.Append(ctx, domain.Message{
			ID: text, SessionID: "s1", Author: domain.AuthorUser, Text: text, CreatedAt: at.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := log.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Text)
	assert.Equal(t, "third", got[1].Text)
}
