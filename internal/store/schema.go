package store

import "context"

// schemaStatements create the three persisted tables. Executed on every
// startup; each statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS futures_basic (
		ts_code     VARCHAR(20) PRIMARY KEY,
		symbol      VARCHAR(20) NOT NULL DEFAULT '',
		exchange    VARCHAR(10) NOT NULL,
		name        VARCHAR(50) NOT NULL DEFAULT '',
		fut_code    VARCHAR(10) NOT NULL,
		multiplier  DOUBLE PRECISION,
		per_unit    DOUBLE PRECISION,
		trade_unit  VARCHAR(20),
		quote_unit  VARCHAR(20),
		list_date   DATE,
		delist_date DATE NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_futures_basic_product
		ON futures_basic (exchange, fut_code)`,

	`CREATE TABLE IF NOT EXISTS futures_daily_quotes (
		ts_code       VARCHAR(20) NOT NULL,
		trade_date    DATE NOT NULL,
		open          DOUBLE PRECISION,
		high          DOUBLE PRECISION,
		low           DOUBLE PRECISION,
		close         DOUBLE PRECISION,
		pre_close     DOUBLE PRECISION,
		change_rate   DOUBLE PRECISION,
		volume        DOUBLE PRECISION,
		amount        DOUBLE PRECISION,
		open_interest DOUBLE PRECISION,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (ts_code, trade_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_futures_daily_quotes_date
		ON futures_daily_quotes (trade_date)`,

	`CREATE TABLE IF NOT EXISTS futures_main_contract (
		trade_date    DATE NOT NULL,
		exchange      VARCHAR(10) NOT NULL,
		fut_code      VARCHAR(10) NOT NULL,
		ts_code       VARCHAR(20) NOT NULL,
		volume        DOUBLE PRECISION NOT NULL DEFAULT 0,
		amount        DOUBLE PRECISION NOT NULL DEFAULT 0,
		open_interest DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (trade_date, exchange, fut_code)
	)`,
}

func (s *Store) ensureSchema(ctx context.Context) error {
	pool := s.db.Pool()
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	s.log.Debug("Schema ensured")
	return nil
}
