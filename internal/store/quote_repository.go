package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/futsync/internal/domain"
)

// QuoteRepository stores daily bars. Rows are append-only: at most one
// per (instrument, trade date), enforced both by the check-then-insert
// write path and by the primary key.
type QuoteRepository struct {
	pool *pgxpool.Pool
}

// NewQuoteRepository creates a new quote repository
func NewQuoteRepository(pool *pgxpool.Pool) *QuoteRepository {
	return &QuoteRepository{pool: pool}
}

// Exists reports whether a bar already exists for (tsCode, tradeDate).
func (r *QuoteRepository) Exists(ctx context.Context, tsCode string, tradeDate time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM futures_daily_quotes WHERE ts_code = $1 AND trade_date = $2
		)
	`, tsCode, tradeDate).Scan(&exists)
	return exists, err
}

// Insert writes one bar. ON CONFLICT DO NOTHING keeps retried syncs
// idempotent even when two writers race past the Exists check; the
// returned flag is false when the row was already present.
func (r *QuoteRepository) Insert(ctx context.Context, q domain.DailyQuote) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO futures_daily_quotes
			(ts_code, trade_date, open, high, low, close, pre_close, change_rate, volume, amount, open_interest)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (ts_code, trade_date) DO NOTHING
	`,
		q.TSCode, q.TradeDate, q.Open, q.High, q.Low, q.Close,
		q.PreClose, q.ChangeRate, q.Volume, q.Amount, q.OpenInterest,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const quoteColumns = `ts_code, trade_date, open, high, low, close, pre_close, change_rate, volume, amount, open_interest`

// GetByCodeAndDate returns the bar for (tsCode, tradeDate), or nil when
// none exists. Absence is a valid outcome, not an error.
func (r *QuoteRepository) GetByCodeAndDate(ctx context.Context, tsCode string, tradeDate time.Time) (*domain.DailyQuote, error) {
	var q domain.DailyQuote
	err := r.pool.QueryRow(ctx, `
		SELECT `+quoteColumns+`
		FROM futures_daily_quotes
		WHERE ts_code = $1 AND trade_date = $2
	`, tsCode, tradeDate).Scan(
		&q.TSCode, &q.TradeDate, &q.Open, &q.High, &q.Low, &q.Close,
		&q.PreClose, &q.ChangeRate, &q.Volume, &q.Amount, &q.OpenInterest,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListByCode returns the most recent bars of one instrument, newest first.
func (r *QuoteRepository) ListByCode(ctx context.Context, tsCode string, limit int) ([]domain.DailyQuote, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+quoteColumns+`
		FROM futures_daily_quotes
		WHERE ts_code = $1
		ORDER BY trade_date DESC
		LIMIT $2
	`, tsCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []domain.DailyQuote
	for rows.Next() {
		var q domain.DailyQuote
		err := rows.Scan(
			&q.TSCode, &q.TradeDate, &q.Open, &q.High, &q.Low, &q.Close,
			&q.PreClose, &q.ChangeRate, &q.Volume, &q.Amount, &q.OpenInterest,
		)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// Latest returns the newest stored bar of one instrument. An instrument
// with no bars yields a not-found error, which the read API maps to 404.
func (r *QuoteRepository) Latest(ctx context.Context, tsCode string) (*domain.DailyQuote, error) {
	date, err := r.LatestTradeDate(ctx, tsCode)
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, domain.NewNotFoundError("no quotes stored for " + tsCode)
	}
	return r.GetByCodeAndDate(ctx, tsCode, date)
}

// LatestTradeDate returns the newest stored trade date for an
// instrument, or the zero time when no bars exist.
func (r *QuoteRepository) LatestTradeDate(ctx context.Context, tsCode string) (time.Time, error) {
	var date time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT trade_date FROM futures_daily_quotes
		WHERE ts_code = $1
		ORDER BY trade_date DESC
		LIMIT 1
	`, tsCode).Scan(&date)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	return date, err
}
