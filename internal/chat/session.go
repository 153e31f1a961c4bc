package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"subtrack-bot/internal/convo"
	"subtrack-bot/internal/domain"
	"subtrack-bot/internal/metrics"
)

var (
	ErrEmptyInput       = errors.New("chat: empty input")
	ErrAwaitingResponse = errors.New("chat: awaiting response")
	ErrSessionClosed    = errors.New("chat: session closed")
	ErrSessionNotFound  = errors.New("chat: session not found")
	ErrRateLimited      = errors.New("chat: rate limited")
)

// State is the turn state of a session.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingResponse State = "awaiting_response"
)

// Responder produces the assistant reply for one input.
type Responder interface {
	Respond(ctx context.Context, text string, snap domain.Snapshot) convo.Reply
}

// SnapshotSource supplies the subscription data a reply reads from.
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID string) (domain.Snapshot, error)
}

// TranscriptStore persists transcript entries outside the session.
type TranscriptStore interface {
	Append(ctx context.Context, msg domain.Message) error
	Load(ctx context.Context, sessionID string) ([]domain.Message, error)
}

// Limiter is a fixed-window counter keyed per user.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Listener is called after every append, outside the session lock.
type Listener func(msg domain.Message)

// Stopper cancels a scheduled reply.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f after d. It matches time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Options configures sessions created by a Manager.
type Options struct {
	ReplyDelay time.Duration
	Store      TranscriptStore
	Limiter    Limiter
	RateLimit  int
	RateWindow time.Duration
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Clock      func() time.Time
	AfterFunc  AfterFunc
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.AfterFunc == nil {
		o.AfterFunc = realAfterFunc
	}
	if o.RateWindow <= 0 {
		o.RateWindow = time.Minute
	}
	return o
}

// Session is one conversation: an append-only transcript plus the turn state.
// At most one input is being answered at any time.
type Session struct {
	id      string
	channel string
	userID  string

	responder Responder
	source    SnapshotSource
	opts      Options
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	closed     bool
	turn       uint64
	pending    Stopper
	transcript []domain.Message
	listeners  map[int]Listener
	nextListen int
}

func newSession(id, channel, userID string, responder Responder, source SnapshotSource, opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        id,
		channel:   channel,
		userID:    userID,
		responder: responder,
		source:    source,
		opts:      opts,
		logger:    opts.Logger.With("component", "chat", "session_id", id),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
		listeners: make(map[int]Listener),
	}
}

func (s *Session) ID() string      { return s.id }
func (s *Session) Channel() string { return s.channel }
func (s *Session) UserID() string  { return s.userID }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Transcript returns a copy of the messages in append order.
func (s *Session) Transcript() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.transcript...)
}

// OnAppend registers l and returns a func that removes it.
func (s *Session) OnAppend(l Listener) func() {
	_, unsubscribe := s.Subscribe(l)
	return unsubscribe
}

// Subscribe returns the transcript so far and registers l for every later
// append in one step, so each message is either in the returned slice or
// passed to l, never both.
func (s *Session) Subscribe(l Listener) ([]domain.Message, func()) {
	s.mu.Lock()
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = l
	history := append([]domain.Message(nil), s.transcript...)
	s.mu.Unlock()
	return history, func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SelectQuickReply submits the text of a suggested reply.
func (s *Session) SelectQuickReply(ctx context.Context, text string) (domain.Message, error) {
	return s.Submit(ctx, text)
}

// Submit appends the user message and schedules the assistant reply after the
// configured delay. The reply is dropped if the session is closed first.
func (s *Session) Submit(ctx context.Context, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, ErrEmptyInput
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Message{}, ErrSessionClosed
	}
	if s.state == StateAwaitingResponse {
		s.mu.Unlock()
		return domain.Message{}, ErrAwaitingResponse
	}
	s.mu.Unlock()

	if err := s.checkRate(ctx); err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		SessionID: s.id,
		Author:    domain.AuthorUser,
		Text:      text,
		CreatedAt: s.opts.Clock(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Message{}, ErrSessionClosed
	}
	if s.state == StateAwaitingResponse {
		s.mu.Unlock()
		return domain.Message{}, ErrAwaitingResponse
	}
	s.state = StateAwaitingResponse
	s.turn++
	turn := s.turn
	s.transcript = append(s.transcript, msg)
	listeners := s.listenersLocked()
	s.mu.Unlock()

	if s.opts.Metrics != nil {
		s.opts.Metrics.IncomingMessages.WithLabelValues(s.channel).Inc()
	}
	s.persist(msg)
	notify(listeners, msg)

	snap := s.loadSnapshot(ctx)
	s.schedule(turn, text, snap)
	return msg, nil
}

func (s *Session) checkRate(ctx context.Context) error {
	if s.opts.Limiter == nil || s.opts.RateLimit <= 0 {
		return nil
	}
	key := "rl:input:" + s.channel + ":" + s.userID
	ok, err := s.opts.Limiter.Allow(ctx, key, s.opts.RateLimit, s.opts.RateWindow)
	if err != nil {
		s.logger.Warn("rate limit check failed", "error", err)
		return nil
	}
	if !ok {
		if s.opts.Metrics != nil {
			s.opts.Metrics.RateLimited.WithLabelValues(s.channel).Inc()
		}
		return ErrRateLimited
	}
	return nil
}

func (s *Session) loadSnapshot(ctx context.Context) domain.Snapshot {
	now := s.opts.Clock()
	if s.source == nil {
		return domain.Snapshot{Now: now}
	}
	snap, err := s.source.Snapshot(ctx, s.userID)
	if err != nil {
		s.logger.Error("failed loading snapshot", "error", err, "user_id", s.userID)
		s.opts.Metrics.ObserveError("snapshot")
		return domain.Snapshot{Now: now}
	}
	if snap.Now.IsZero() {
		snap.Now = now
	}
	return snap
}

func (s *Session) schedule(turn uint64, text string, snap domain.Snapshot) {
	if s.opts.ReplyDelay <= 0 {
		s.deliver(turn, text, snap)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.turn != turn {
		return
	}
	s.pending = s.opts.AfterFunc(s.opts.ReplyDelay, func() {
		s.deliver(turn, text, snap)
	})
}

// deliver generates and appends the reply for turn. It is a no-op once the
// session is closed or the turn is stale.
func (s *Session) deliver(turn uint64, text string, snap domain.Snapshot) {
	if !s.isCurrent(turn) {
		return
	}

	reply := s.responder.Respond(s.ctx, text, snap)
	msg := reply.Message(uuid.NewString(), s.id, s.opts.Clock())

	s.mu.Lock()
	if s.closed || s.turn != turn || s.state != StateAwaitingResponse {
		s.mu.Unlock()
		return
	}
	s.transcript = append(s.transcript, msg)
	s.state = StateIdle
	s.pending = nil
	listeners := s.listenersLocked()
	s.mu.Unlock()

	if s.opts.Metrics != nil {
		s.opts.Metrics.Replies.WithLabelValues(string(reply.Intent)).Inc()
	}
	s.persist(msg)
	notify(listeners, msg)
}

func (s *Session) isCurrent(turn uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.turn == turn && s.state == StateAwaitingResponse
}

// Close cancels a pending reply. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.state = StateIdle
	s.listeners = make(map[int]Listener)
	s.cancel()
}

func (s *Session) persist(msg domain.Message) {
	if s.opts.Store == nil {
		return
	}
	if err := s.opts.Store.Append(s.ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("failed persisting message", "error", err, "author", msg.Author)
		s.opts.Metrics.ObserveError("transcript")
	}
}

func (s *Session) listenersLocked() []Listener {
	res := make([]Listener, 0, len(s.listeners))
	for i := 0; i < s.nextListen; i++ {
		if l, ok := s.listeners[i]; ok {
			res = append(res, l)
		}
	}
	return res
}

func notify(listeners []Listener, msg domain.Message) {
	for _, l := range listeners {
		l(msg)
	}
}
