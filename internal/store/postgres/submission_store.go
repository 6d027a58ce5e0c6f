package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// SubmissionStore implements domain.SubmissionStore using PostgreSQL.
type SubmissionStore struct {
	pool *pgxpool.Pool
}

// NewSubmissionStore creates a SubmissionStore backed by the given pool.
func NewSubmissionStore(pool *pgxpool.Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

// Insert stores the outcome of one signing flow run.
func (s *SubmissionStore) Insert(ctx context.Context, rec domain.SubmissionRecord) error {
	const query = `
		INSERT INTO submissions (
			id, intent_id, wallet_address, pair, side, action,
			stage, success, tx_hash, route, error, fingerprint, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13
		)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.IntentID, rec.WalletAddress, rec.Pair, string(rec.Side), string(rec.Action),
		string(rec.Stage), rec.Success, rec.TxHash, string(rec.Route), rec.Error, rec.Fingerprint, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert submission %s: %w", rec.ID, err)
	}
	return nil
}

const submissionSelectCols = `id, intent_id, wallet_address, pair, side, action,
	stage, success, tx_hash, route, error, fingerprint, created_at`

// GetByIntent returns the most recent submission record for an intent,
// domain.ErrNotFound when the intent was never executed.
func (s *SubmissionStore) GetByIntent(ctx context.Context, intentID string) (domain.SubmissionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+submissionSelectCols+` FROM submissions WHERE intent_id = $1 ORDER BY created_at DESC LIMIT 1`,
		intentID,
	)

	rec, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SubmissionRecord{}, domain.ErrNotFound
		}
		return domain.SubmissionRecord{}, fmt.Errorf("postgres: get submission for intent %s: %w", intentID, err)
	}
	return rec, nil
}

// ListRecent returns up to limit submission records, newest first.
func (s *SubmissionStore) ListRecent(ctx context.Context, limit int) ([]domain.SubmissionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+submissionSelectCols+` FROM submissions ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent submissions: %w", err)
	}
	defer rows.Close()

	return collectSubmissions(rows)
}

// ListBefore returns submissions created strictly before the cutoff, oldest
// first, for archiving.
func (s *SubmissionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.SubmissionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+submissionSelectCols+` FROM submissions WHERE created_at < $1 ORDER BY created_at ASC`,
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list submissions before %s: %w", before, err)
	}
	defer rows.Close()

	return collectSubmissions(rows)
}

// DeleteBefore removes submissions created strictly before the cutoff and
// returns the number deleted.
func (s *SubmissionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM submissions WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete submissions before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func collectSubmissions(rows pgx.Rows) ([]domain.SubmissionRecord, error) {
	out := make([]domain.SubmissionRecord, 0)
	for rows.Next() {
		rec, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan submission: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanSubmission(scanner interface{ Scan(dest ...any) error }) (domain.SubmissionRecord, error) {
	var (
		rec                        domain.SubmissionRecord
		side, action, stage, route string
	)
	err := scanner.Scan(
		&rec.ID, &rec.IntentID, &rec.WalletAddress, &rec.Pair, &side, &action,
		&stage, &rec.Success, &rec.TxHash, &route, &rec.Error, &rec.Fingerprint, &rec.CreatedAt,
	)
	if err != nil {
		return domain.SubmissionRecord{}, err
	}
	rec.Side = domain.TradeSide(side)
	rec.Action = domain.IntentAction(action)
	rec.Stage = domain.SigningStage(stage)
	rec.Route = domain.SubmissionRoute(route)
	return rec, nil
}

var _ domain.SubmissionStore = (*SubmissionStore)(nil)
