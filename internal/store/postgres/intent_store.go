package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// IntentStore implements domain.IntentStore using PostgreSQL.
type IntentStore struct {
	pool *pgxpool.Pool
}

// NewIntentStore creates an IntentStore backed by the given connection pool.
func NewIntentStore(pool *pgxpool.Pool) *IntentStore {
	return &IntentStore{pool: pool}
}

// Insert stores a new trade intent.
func (s *IntentStore) Insert(ctx context.Context, intent domain.TradeIntent) error {
	var meta []byte
	if intent.Metadata != nil {
		var err error
		meta, err = json.Marshal(intent.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: marshal intent metadata: %w", err)
		}
	}

	var expires *time.Time
	if !intent.ExpiresAt.IsZero() {
		expires = &intent.ExpiresAt
	}

	const query = `
		INSERT INTO intents (
			id, source, action, pair, side,
			collateral_ada, leverage, stop_loss, take_profit,
			position_id, wallet_address, reason, metadata,
			created_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15
		)`

	_, err := s.pool.Exec(ctx, query,
		intent.ID, intent.Source, string(intent.Action), intent.Pair, string(intent.Side),
		intent.CollateralADA, intent.Leverage, intent.StopLoss, intent.TakeProfit,
		intent.PositionID, intent.WalletAddress, intent.Reason, meta,
		intent.CreatedAt, expires,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert intent %s: %w", intent.ID, err)
	}
	return nil
}

const intentSelectCols = `id, source, action, pair, side,
	collateral_ada, leverage, stop_loss, take_profit,
	position_id, wallet_address, reason, metadata,
	created_at, expires_at`

// Get fetches one intent by ID, returning domain.ErrNotFound when absent.
func (s *IntentStore) Get(ctx context.Context, id string) (domain.TradeIntent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+intentSelectCols+` FROM intents WHERE id = $1`, id)

	intent, err := scanIntent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradeIntent{}, domain.ErrNotFound
		}
		return domain.TradeIntent{}, fmt.Errorf("postgres: get intent %s: %w", id, err)
	}
	return intent, nil
}

// ListByWallet returns intents for a wallet, newest first.
func (s *IntentStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.TradeIntent, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + intentSelectCols + ` FROM intents WHERE wallet_address = $1`
	args := []any{wallet}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(` AND created_at < $%d`, len(args))
	}
	args = append(args, limit, opts.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list intents: %w", err)
	}
	defer rows.Close()

	return collectIntents(rows)
}

// ListBefore returns intents created strictly before the cutoff, oldest
// first, for archiving.
func (s *IntentStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeIntent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+intentSelectCols+` FROM intents WHERE created_at < $1 ORDER BY created_at ASC`,
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list intents before %s: %w", before, err)
	}
	defer rows.Close()

	return collectIntents(rows)
}

// DeleteBefore removes intents created strictly before the cutoff and
// returns the number deleted.
func (s *IntentStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM intents WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete intents before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func collectIntents(rows pgx.Rows) ([]domain.TradeIntent, error) {
	out := make([]domain.TradeIntent, 0)
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan intent: %w", err)
		}
		out = append(out, intent)
	}
	return out, rows.Err()
}

func scanIntent(scanner interface{ Scan(dest ...any) error }) (domain.TradeIntent, error) {
	var (
		intent       domain.TradeIntent
		action, side string
		meta         []byte
		expires      *time.Time
	)
	err := scanner.Scan(
		&intent.ID, &intent.Source, &action, &intent.Pair, &side,
		&intent.CollateralADA, &intent.Leverage, &intent.StopLoss, &intent.TakeProfit,
		&intent.PositionID, &intent.WalletAddress, &intent.Reason, &meta,
		&intent.CreatedAt, &expires,
	)
	if err != nil {
		return domain.TradeIntent{}, err
	}
	intent.Action = domain.IntentAction(action)
	intent.Side = domain.TradeSide(side)
	if expires != nil {
		intent.ExpiresAt = *expires
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &intent.Metadata); err != nil {
			return domain.TradeIntent{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return intent, nil
}

var _ domain.IntentStore = (*IntentStore)(nil)
