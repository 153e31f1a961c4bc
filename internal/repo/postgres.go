package repo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"subtrack-bot/internal/domain"
)

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores subscriptions and the chat log in postgres.
type Repository struct {
	db  DB
	now func() time.Time
}

func New(db DB) *Repository {
	if db == nil {
		panic("repo: db required")
	}
	return &Repository{db: db, now: time.Now}
}

// Connect opens a pgx pool and verifies it.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

const subscriptionColumns = `id, user_id, name, amount, currency, billing_cycle, category, next_billing_date, status, payment_method`

func (r *Repository) ListSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 ORDER BY next_billing_date, name`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var res []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		res = append(res, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return res, nil
}

func (r *Repository) GetSubscription(ctx context.Context, userID, id string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 AND id = $2`
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (r *Repository) CreateSubscription(ctx context.Context, userID string, draft domain.SubscriptionDraft) (*domain.Subscription, error) {
	sub, err := newSubscription(uuid.NewString(), userID, draft)
	if err != nil {
		return nil, err
	}
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := r.db.Exec(ctx, query,
		sub.ID, sub.UserID, sub.Name, sub.Amount, sub.Currency, string(sub.BillingCycle),
		sub.Category, sub.NextBillingDate, sub.Status, sub.PaymentMethod,
	); err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	return sub, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, userID, id, status string) error {
	if !validStatus(status) {
		return ErrInvalidStatus
	}
	ct, err := r.db.Exec(ctx, `UPDATE subscriptions SET status = $3 WHERE user_id = $1 AND id = $2`, userID, id, status)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) InsertMessage(ctx context.Context, rec MessageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	if len(rec.Metadata) == 0 {
		rec.Metadata = []byte("{}")
	}
	query := `
		INSERT INTO chat_messages (id, session_id, direction, type, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.Exec(ctx, query, rec.ID, rec.SessionID, rec.Direction, rec.Type, rec.Content, rec.Metadata, rec.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns the newest limit messages of a session, oldest first.
func (r *Repository) ListMessages(ctx context.Context, sessionID string, limit int) ([]MessageRecord, error) {
	query := `
		SELECT id, session_id, direction, type, content, metadata, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, sessionID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []MessageRecord
	for rows.Next() {
		var rec MessageRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Direction, &rec.Type, &rec.Content, &rec.Metadata, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	slices.Reverse(res)
	return res, nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var (
		sub   domain.Subscription
		cycle string
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.Amount, &sub.Currency, &cycle,
		&sub.Category, &sub.NextBillingDate, &sub.Status, &sub.PaymentMethod); err != nil {
		return nil, err
	}
	sub.BillingCycle = domain.BillingCycle(cycle)
	return &sub, nil
}
