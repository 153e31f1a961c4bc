package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"subtrack-bot/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	name              TEXT NOT NULL,
	amount            REAL NOT NULL CHECK (amount >= 0),
	currency          TEXT NOT NULL DEFAULT 'USD',
	billing_cycle     TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT 'Other',
	next_billing_date TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'active',
	payment_method    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS subscriptions_user_next_idx ON subscriptions (user_id, next_billing_date);
CREATE TABLE IF NOT EXISTS chat_messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	direction  TEXT NOT NULL,
	type       TEXT NOT NULL,
	content    TEXT,
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_messages_session_idx ON chat_messages (session_id, created_at);
`

// sqliteTimeLayout is fixed width so text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository is the single-node backend, used for local runs and tests.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens path with the pure-Go sqlite driver. ":memory:" is allowed.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	r := &SQLiteRepository{db: db, now: time.Now}
	if err := r.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) ListSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = ? ORDER BY next_billing_date, name`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var res []domain.Subscription
	for rows.Next() {
		sub, err := scanSQLiteSubscription(rows)
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

func (r *SQLiteRepository) GetSubscription(ctx context.Context, userID, id string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = ? AND id = ?`
	sub, err := scanSQLiteSubscription(r.db.QueryRowContext(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (r *SQLiteRepository) CreateSubscription(ctx context.Context, userID string, draft domain.SubscriptionDraft) (*domain.Subscription, error) {
	sub, err := newSubscription(uuid.NewString(), userID, draft)
	if err != nil {
		return nil, err
	}
	query := `INSERT INTO subscriptions (` + subscriptionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.Name, sub.Amount, sub.Currency, string(sub.BillingCycle),
		sub.Category, sub.NextBillingDate.Format(dateLayout), sub.Status, sub.PaymentMethod,
	); err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	return sub, nil
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, userID, id, status string) error {
	if !validStatus(status) {
		return ErrInvalidStatus
	}
	res, err := r.db.ExecContext(ctx, `UPDATE subscriptions SET status = ? WHERE user_id = ? AND id = ?`, status, userID, id)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) InsertMessage(ctx context.Context, rec MessageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	if len(rec.Metadata) == 0 {
		rec.Metadata = []byte("{}")
	}
	query := `INSERT INTO chat_messages (id, session_id, direction, type, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.SessionID, rec.Direction, rec.Type, rec.Content, string(rec.Metadata),
		rec.CreatedAt.UTC().Format(sqliteTimeLayout),
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns the newest limit messages of a session, oldest first.
func (r *SQLiteRepository) ListMessages(ctx context.Context, sessionID string, limit int) ([]MessageRecord, error) {
	query := `
		SELECT id, session_id, direction, type, content, metadata, created_at
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []MessageRecord
	for rows.Next() {
		var (
			rec       MessageRecord
			content   sql.NullString
			metadata  string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Direction, &rec.Type, &content, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if content.Valid {
			text := content.String
			rec.Content = &text
		}
		rec.Metadata = []byte(metadata)
		if rec.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse message time: %w", err)
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	slices.Reverse(res)
	return res, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSubscription(row rowScanner) (*domain.Subscription, error) {
	var (
		sub   domain.Subscription
		cycle string
		next  string
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.Amount, &sub.Currency, &cycle,
		&sub.Category, &next, &sub.Status, &sub.PaymentMethod); err != nil {
		return nil, err
	}
	date, err := time.Parse(dateLayout, next)
	if err != nil {
		return nil, fmt.Errorf("parse next billing date: %w", err)
	}
	sub.BillingCycle = domain.BillingCycle(cycle)
	sub.NextBillingDate = date
	return &sub, nil
}
