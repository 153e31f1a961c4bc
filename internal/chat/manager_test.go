package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtrack-bot/internal/domain"
)

func TestManagerResolveReusesLiveSession(t *testing.T) {
	mgr, _ := newTestManager(t, &staticSource{}, Options{})

	a := mgr.Resolve("whatsapp", "628123")
	b := mgr.Resolve("whatsapp", "628123")
	c := mgr.Resolve("web", "628123")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, mgr.Len())

	require.NoError(t, mgr.Close(a.ID()))
	d := mgr.Resolve("whatsapp", "628123")
	assert.NotEqual(t, a.ID(), d.ID())
}

func TestManagerGetUnknown(t *testing.T) {
	mgr, _ := newTestManager(t, &staticSource{}, Options{})

	_, err := mgr.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerTranscriptFallsBackToStore(t *testing.T) {
	store := &memoryStore{}
	mgr, sched := newTestManager(t, &staticSource{}, Options{Store: store})
	s := mgr.Create("web", "u1")

	_, err := s.Submit(context.Background(), "hello")
	require.NoError(t, err)
	sched.last().fire()

	live, err := mgr.Transcript(context.Background(), s.ID())
	require.NoError(t, err)
	require.Len(t, live, 2)

	require.NoError(t, mgr.Close(s.ID()))
	stored, err := mgr.Transcript(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Equal(t, live, stored)

	_, err = mgr.Transcript(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerCloseAll(t *testing.T) {
	mgr, sched := newTestManager(t, &staticSource{}, Options{})
	s := mgr.Create("web", "u1")
	_, err := s.Submit(context.Background(), "hello")
	require.NoError(t, err)

	mgr.CloseAll()

	assert.Equal(t, 0, mgr.Len())
	assert.True(t, s.Closed())
	assert.True(t, sched.last().stopped)
}

func TestMultiStore(t *testing.T) {
	first := &memoryStore{}
	second := &memoryStore{}
	ms := MultiStore{first, second}
	msg := domain.Message{ID: "m1", SessionID: "s1", Text: "hi"}

	require.NoError(t, ms.Append(context.Background(), msg))
	assert.Len(t, first.msgs, 1)
	assert.Len(t, second.msgs, 1)

	first.err = errors.New("redis down")
	err := ms.Append(context.Background(), msg)
	require.Error(t, err)
	assert.Len(t, second.msgs, 2)

	got, err := ms.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
