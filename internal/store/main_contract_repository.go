package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/futsync/internal/domain"
)

// MainContractRepository stores the per-day main-contract selection.
// One row per (trade date, exchange, product); later runs supersede
// earlier ones for the same key.
type MainContractRepository struct {
	pool *pgxpool.Pool
}

// NewMainContractRepository creates a new main contract repository
func NewMainContractRepository(pool *pgxpool.Pool) *MainContractRepository {
	return &MainContractRepository{pool: pool}
}

// Upsert writes one selection; a later save for the same key replaces
// the earlier fields.
func (r *MainContractRepository) Upsert(ctx context.Context, m domain.MainContract) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO futures_main_contract
			(trade_date, exchange, fut_code, ts_code, volume, amount, open_interest, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (trade_date, exchange, fut_code) DO UPDATE SET
			ts_code       = EXCLUDED.ts_code,
			volume        = EXCLUDED.volume,
			amount        = EXCLUDED.amount,
			open_interest = EXCLUDED.open_interest,
			updated_at    = now()
	`,
		m.TradeDate, m.Exchange, m.FutCode, m.TSCode,
		m.Volume, m.Amount, m.OpenInterest,
	)
	return err
}

const mainContractColumns = `trade_date, exchange, fut_code, ts_code, volume, amount, open_interest`

// ListByDate returns every selection of one trading date.
func (r *MainContractRepository) ListByDate(ctx context.Context, tradeDate time.Time) ([]domain.MainContract, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+mainContractColumns+`
		FROM futures_main_contract
		WHERE trade_date = $1
		ORDER BY exchange, fut_code
	`, tradeDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mains []domain.MainContract
	for rows.Next() {
		var m domain.MainContract
		err := rows.Scan(&m.TradeDate, &m.Exchange, &m.FutCode, &m.TSCode,
			&m.Volume, &m.Amount, &m.OpenInterest)
		if err != nil {
			return nil, err
		}
		mains = append(mains, m)
	}
	return mains, rows.Err()
}

// History returns the selection series of one product, newest first.
func (r *MainContractRepository) History(ctx context.Context, exchange, futCode string, limit int) ([]domain.MainContract, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+mainContractColumns+`
		FROM futures_main_contract
		WHERE exchange = $1 AND fut_code = $2
		ORDER BY trade_date DESC
		LIMIT $3
	`, exchange, futCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mains []domain.MainContract
	for rows.Next() {
		var m domain.MainContract
		err := rows.Scan(&m.TradeDate, &m.Exchange, &m.FutCode, &m.TSCode,
			&m.Volume, &m.Amount, &m.OpenInterest)
		if err != nil {
			return nil, err
		}
		mains = append(mains, m)
	}
	return mains, rows.Err()
}
