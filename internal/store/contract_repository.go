package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/futsync/internal/domain"
	"github.com/wonny/futsync/pkg/logger"
)

// ContractRepository stores the futures contract master.
// ⭐ SSOT: 계약 마스터 저장소는 여기서만
type ContractRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewContractRepository creates a new contract repository
func NewContractRepository(pool *pgxpool.Pool, log *logger.Logger) *ContractRepository {
	return &ContractRepository{pool: pool, log: log}
}

// ReplaceResult reports the outcome of a master replacement.
type ReplaceResult struct {
	Inserted int
	Skipped  int
}

// ReplaceAll replaces the whole contract master in one transaction:
// truncate, then insert row by row. Rows failing validation are counted
// and skipped, never fatal to the batch. The master is a snapshot, so a
// partial patch is never written; any store error rolls everything back.
func (r *ContractRepository) ReplaceAll(ctx context.Context, contracts []domain.Contract) (ReplaceResult, error) {
	var result ReplaceResult

	query := `
		INSERT INTO futures_basic
			(ts_code, symbol, exchange, name, fut_code, multiplier, per_unit, trade_unit, quote_unit, list_date, delist_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	err := withTx(ctx, r.pool, r.log, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE futures_basic`); err != nil {
			return err
		}

		for i := range contracts {
			c := contracts[i]
			if err := validateContract(&c); err != nil {
				r.log.WithError(err).WithField("ts_code", c.TSCode).Warn("Skipping invalid contract row")
				result.Skipped++
				continue
			}

			_, err := tx.Exec(ctx, query,
				c.TSCode, c.Symbol, c.Exchange, c.Name, c.FutCode,
				c.Multiplier, c.PerUnit, c.TradeUnit, c.QuoteUnit,
				nullDate(c.ListDate), c.DelistDate,
			)
			if err != nil {
				return err
			}
			result.Inserted++
		}
		return nil
	})
	if err != nil {
		return ReplaceResult{}, err
	}
	return result, nil
}

const contractColumns = `ts_code, symbol, exchange, name, fut_code,
		COALESCE(multiplier, 0), COALESCE(per_unit, 0),
		COALESCE(trade_unit, ''), COALESCE(quote_unit, ''),
		COALESCE(list_date, '0001-01-01'::date), delist_date`

// ListExchanges returns the distinct exchange codes present in the master.
func (r *ContractRepository) ListExchanges(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT exchange FROM futures_basic ORDER BY exchange`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exchanges []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		exchanges = append(exchanges, e)
	}
	return exchanges, rows.Err()
}

// ListProducts returns the distinct product codes of one exchange.
func (r *ContractRepository) ListProducts(ctx context.Context, exchange string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT fut_code FROM futures_basic WHERE exchange = $1 ORDER BY fut_code`, exchange)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ValidContracts returns every contract still tradable at the given
// trading date (delist date strictly after), in stable code order.
func (r *ContractRepository) ValidContracts(ctx context.Context, date time.Time) ([]domain.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM futures_basic
		WHERE delist_date > $1
		ORDER BY ts_code ASC
	`
	return r.queryContracts(ctx, query, date)
}

// ContractsByProduct returns the valid contracts of one product at the
// given trading date, in stable code order.
func (r *ContractRepository) ContractsByProduct(ctx context.Context, exchange, futCode string, date time.Time) ([]domain.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM futures_basic
		WHERE exchange = $1 AND fut_code = $2 AND delist_date > $3
		ORDER BY ts_code ASC
	`
	return r.queryContracts(ctx, query, exchange, futCode, date)
}

// Products returns every (exchange, product) pair that has at least one
// valid contract at the given trading date.
func (r *ContractRepository) Products(ctx context.Context, date time.Time) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT exchange, fut_code
		FROM futures_basic
		WHERE delist_date > $1
		ORDER BY exchange, fut_code
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.Exchange, &p.FutCode); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Product identifies one underlying within one exchange.
type Product struct {
	Exchange string `json:"exchange"`
	FutCode  string `json:"fut_code"`
}

// Count returns the number of rows in the master.
func (r *ContractRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM futures_basic`).Scan(&n)
	return n, err
}

func (r *ContractRepository) queryContracts(ctx context.Context, query string, args ...interface{}) ([]domain.Contract, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []domain.Contract
	for rows.Next() {
		var c domain.Contract
		err := rows.Scan(
			&c.TSCode, &c.Symbol, &c.Exchange, &c.Name, &c.FutCode,
			&c.Multiplier, &c.PerUnit, &c.TradeUnit, &c.QuoteUnit,
			&c.ListDate, &c.DelistDate,
		)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}
