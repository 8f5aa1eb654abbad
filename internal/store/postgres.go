package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/swapdesk/swap-desk/internal/model"
)

// Schema creates the tables PostgresStore expects. Drafts are stored as a
// JSONB document; submissions are flattened so the ledger can be queried.
const Schema = `
CREATE TABLE IF NOT EXISTS trade_drafts (
	id         TEXT PRIMARY KEY,
	from_user  TEXT NOT NULL,
	to_user    TEXT NOT NULL,
	body       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS trade_drafts_updated_at ON trade_drafts (updated_at);

CREATE TABLE IF NOT EXISTS trade_submissions (
	id                    TEXT PRIMARY KEY,
	draft_id              TEXT NOT NULL,
	from_user_id          TEXT NOT NULL,
	to_user_id            TEXT NOT NULL,
	offered_product_ids   BIGINT[] NOT NULL,
	requested_product_ids BIGINT[] NOT NULL,
	from_user_cash        NUMERIC NOT NULL,
	to_user_cash          NUMERIC NOT NULL,
	message               TEXT NOT NULL,
	trade_id              BIGINT,
	submitted_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS trade_submissions_from_user ON trade_submissions (from_user_id, submitted_at);
`

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Cash amounts are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateDraft(ctx context.Context, d *model.Draft) error {
	body, err := encodeDraft(d)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO trade_drafts (id, from_user, to_user, body, created_at, updated_at)
		 VALUES ($1, $2, $3, $4::JSONB, $5, $6)`,
		d.ID, d.FromUserID, d.ToUserID, body, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create draft %s: %w", d.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetDraft(ctx context.Context, id string) (*model.Draft, error) {
	var body string
	err := s.pool.QueryRow(ctx,
		`SELECT body::TEXT FROM trade_drafts WHERE id = $1`, id).
		Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %s: %w", id, err)
	}
	return decodeDraft([]byte(body))
}

func (s *PostgresStore) SaveDraft(ctx context.Context, d *model.Draft) error {
	body, err := encodeDraft(d)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE trade_drafts SET body = $2::JSONB, updated_at = $3 WHERE id = $1`,
		d.ID, body, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save draft %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("draft %s: %w", d.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteDraft(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM trade_drafts WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) PurgeDrafts(ctx context.Context, before time.Time, skip []string) ([]string, error) {
	if skip == nil {
		skip = []string{} // NULL would make the ANY test unknown and keep every row
	}
	rows, err := s.pool.Query(ctx,
		`DELETE FROM trade_drafts
		 WHERE updated_at < $1 AND NOT (id = ANY($2::TEXT[]))
		 RETURNING id`, before, skip)
	if err != nil {
		return nil, fmt.Errorf("purge drafts: %w", err)
	}
	defer rows.Close()

	var purged []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		purged = append(purged, id)
	}
	return purged, rows.Err()
}

func (s *PostgresStore) InsertSubmission(ctx context.Context, sub *model.Submission) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trade_submissions (id, draft_id, from_user_id, to_user_id,
		                                offered_product_ids, requested_product_ids,
		                                from_user_cash, to_user_cash, message, trade_id, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9, $10, $11)`,
		sub.ID, sub.DraftID, sub.FromUserID, sub.ToUserID,
		sub.OfferedProductIDs, sub.RequestedProductIDs,
		sub.FromUserCash.String(), sub.ToUserCash.String(),
		sub.Message, sub.TradeID, sub.SubmittedAt,
	)
	return err
}

func (s *PostgresStore) GetSubmissionsByUser(ctx context.Context, userID string) ([]model.Submission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, draft_id, from_user_id, to_user_id,
		        offered_product_ids, requested_product_ids,
		        from_user_cash::TEXT, to_user_cash::TEXT,
		        message, trade_id, submitted_at
		 FROM trade_submissions WHERE from_user_id = $1 ORDER BY submitted_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// pgxRows is the subset of pgx.Rows the scanners need.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanSubmissions(rows pgxRows) ([]model.Submission, error) {
	var subs []model.Submission
	for rows.Next() {
		var sub model.Submission
		var fromCashS, toCashS string

		if err := rows.Scan(&sub.ID, &sub.DraftID, &sub.FromUserID, &sub.ToUserID,
			&sub.OfferedProductIDs, &sub.RequestedProductIDs,
			&fromCashS, &toCashS,
			&sub.Message, &sub.TradeID, &sub.SubmittedAt); err != nil {
			return nil, err
		}

		sub.FromUserCash, _ = decimal.NewFromString(fromCashS)
		sub.ToUserCash, _ = decimal.NewFromString(toCashS)

		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
