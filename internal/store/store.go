// Package store owns every persisted row. All reads and writes to the
// relational store go through its repositories.
// ⭐ SSOT: DB 테이블 접근은 이 패키지에서만
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/futsync/pkg/database"
	"github.com/wonny/futsync/pkg/logger"
)

// Store bundles the repositories over one shared connection pool.
type Store struct {
	db  *database.DB
	log *logger.Logger

	Contracts     *ContractRepository
	Quotes        *QuoteRepository
	MainContracts *MainContractRepository
}

// New creates the store and bootstraps the schema idempotently.
func New(ctx context.Context, db *database.DB, log *logger.Logger) (*Store, error) {
	s := &Store{
		db:  db,
		log: log.WithField("module", "store"),
	}

	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("schema bootstrap failed: %w", err)
	}

	pool := db.Pool()
	s.Contracts = NewContractRepository(pool, s.log)
	s.Quotes = NewQuoteRepository(pool)
	s.MainContracts = NewMainContractRepository(pool)
	return s, nil
}

// DB returns the underlying connection handle for health probes.
func (s *Store) DB() *database.DB {
	return s.db
}

// withTx runs fn inside a transaction: commit on nil, rollback on error
// or panic. Callers never manage commit/rollback directly.
func withTx(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// ErrTxClosed just means the commit already won.
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.WithError(rbErr).Warn("Transaction rollback failed")
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
