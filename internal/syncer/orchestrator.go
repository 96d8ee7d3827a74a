// Package syncer runs the end-to-end synchronization workflow:
// refresh master → compute trade date → sync quotes → recompute main
// contracts.
// ⭐ SSOT: 동기화 플로우는 이 패키지에서만 조율
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/wonny/futsync/internal/calendar"
	"github.com/wonny/futsync/internal/domain"
	"github.com/wonny/futsync/internal/selector"
	"github.com/wonny/futsync/internal/store"
	"github.com/wonny/futsync/internal/tushare"
	"github.com/wonny/futsync/pkg/config"
	"github.com/wonny/futsync/pkg/logger"
)

// ErrSyncInProgress is returned when a run is requested while another
// run holds the store connection.
var ErrSyncInProgress = errors.New("a sync run is already in progress")

// Provider fetches reference data and quotes from the market-data provider.
type Provider interface {
	FetchContractMaster(ctx context.Context) ([]domain.Contract, error)
	FetchDailyQuote(ctx context.Context, tsCode string, start, end time.Time) ([]domain.DailyQuote, error)
	FetchMainMapping(ctx context.Context, continuousCode string, start, end time.Time) ([]tushare.Mapping, error)
}

// ContractStore persists and serves the contract master.
type ContractStore interface {
	ReplaceAll(ctx context.Context, contracts []domain.Contract) (store.ReplaceResult, error)
	ValidContracts(ctx context.Context, date time.Time) ([]domain.Contract, error)
	ContractsByProduct(ctx context.Context, exchange, futCode string, date time.Time) ([]domain.Contract, error)
	Products(ctx context.Context, date time.Time) ([]store.Product, error)
}

// QuoteStore persists daily bars.
type QuoteStore interface {
	Exists(ctx context.Context, tsCode string, tradeDate time.Time) (bool, error)
	Insert(ctx context.Context, q domain.DailyQuote) (bool, error)
	GetByCodeAndDate(ctx context.Context, tsCode string, tradeDate time.Time) (*domain.DailyQuote, error)
}

// MainContractStore persists main-contract selections.
type MainContractStore interface {
	Upsert(ctx context.Context, m domain.MainContract) error
}

// ProgressFunc receives (percent 0..100, message) updates during a run.
// percent -1 signals abnormal termination.
type ProgressFunc func(percent int, message string)

func notify(p ProgressFunc, percent int, message string) {
	if p != nil {
		p(percent, message)
	}
}

// Result reports per-item accounting for one batch step. Per-item
// failures are absorbed and counted; only step-level failures surface
// as errors.
type Result struct {
	Total     int       `json:"total"`
	Success   int       `json:"success"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	TradeDate time.Time `json:"trade_date"`
}

// Report is the outcome of a full daily run.
type Report struct {
	Master        store.ReplaceResult `json:"master"`
	Quotes        Result              `json:"quotes"`
	MainContracts Result              `json:"main_contracts"`
	Started       time.Time           `json:"started"`
	Finished      time.Time           `json:"finished"`
}

// Orchestrator coordinates the provider, the store, and the calendar.
// Public operations serialize on the running flag: the store connection
// is shared, so at most one run is active at a time.
type Orchestrator struct {
	provider  Provider
	contracts ContractStore
	quotes    QuoteStore
	mains     MainContractStore
	calendar  calendar.Calendar
	cfg       config.SyncConfig
	log       *logger.Logger

	running atomic.Bool

	// injectable for deterministic tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator over the given collaborators.
func New(provider Provider, contracts ContractStore, quotes QuoteStore, mains MainContractStore,
	cal calendar.Calendar, cfg config.SyncConfig, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		provider:  provider,
		contracts: contracts,
		quotes:    quotes,
		mains:     mains,
		calendar:  cal,
		cfg:       cfg,
		log:       log.WithField("module", "syncer"),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Running reports whether a run is currently active.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// acquire takes the single-run slot.
func (o *Orchestrator) acquire() error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	return nil
}

func (o *Orchestrator) release() {
	o.running.Store(false)
}

// RefreshMaster replaces the contract master snapshot.
func (o *Orchestrator) RefreshMaster(ctx context.Context, progress ProgressFunc) (store.ReplaceResult, error) {
	if err := o.acquire(); err != nil {
		return store.ReplaceResult{}, err
	}
	defer o.release()

	result, err := o.refreshMaster(ctx, progress)
	if err != nil {
		notify(progress, -1, err.Error())
		return store.ReplaceResult{}, err
	}
	return result, nil
}

func (o *Orchestrator) refreshMaster(ctx context.Context, progress ProgressFunc) (store.ReplaceResult, error) {
	notify(progress, 0, "계약 마스터 조회 중")

	contracts, err := o.provider.FetchContractMaster(ctx)
	if err != nil {
		return store.ReplaceResult{}, fmt.Errorf("contract master fetch failed: %w", err)
	}
	if len(contracts) == 0 {
		// An empty master would truncate everything. Abort before any write.
		return store.ReplaceResult{}, domain.NewInternalError("provider returned no valid contracts, master left untouched", nil)
	}

	notify(progress, 50, fmt.Sprintf("계약 %d건 저장 중", len(contracts)))

	result, err := o.contracts.ReplaceAll(ctx, contracts)
	if err != nil {
		return store.ReplaceResult{}, fmt.Errorf("contract master replace failed: %w", err)
	}

	o.log.WithFields(map[string]interface{}{
		"inserted": result.Inserted,
		"skipped":  result.Skipped,
	}).Info("Contract master refreshed")

	notify(progress, 100, fmt.Sprintf("마스터 갱신 완료: %d건 저장, %d건 제외", result.Inserted, result.Skipped))
	return result, nil
}

// SyncQuotes fetches and stores the missing daily bar of every valid
// contract for the last trading date. Idempotent: existing bars are
// skipped, and one contract's failure never aborts the batch.
func (o *Orchestrator) SyncQuotes(ctx context.Context, progress ProgressFunc) (Result, error) {
	if err := o.acquire(); err != nil {
		return Result{}, err
	}
	defer o.release()

	result, err := o.syncQuotes(ctx, progress)
	if err != nil {
		notify(progress, -1, err.Error())
		return Result{}, err
	}
	return result, nil
}

func (o *Orchestrator) syncQuotes(ctx context.Context, progress ProgressFunc) (Result, error) {
	tradeDate := o.calendar.LastTradingDate(o.now())
	result := Result{TradeDate: tradeDate}

	contracts, err := o.contracts.ValidContracts(ctx, tradeDate)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list valid contracts: %w", err)
	}
	if len(contracts) == 0 {
		return Result{}, domain.NewInternalError("no valid contracts in master, refresh it first", nil)
	}

	result.Total = len(contracts)
	notify(progress, 0, fmt.Sprintf("%s 시세 동기화 시작: 계약 %d건", tradeDate.Format("2006-01-02"), len(contracts)))

	for i, c := range contracts {
		// Cancellation is checked once per contract, between items.
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		if err := o.syncOneQuote(ctx, c.TSCode, tradeDate, &result); err != nil {
			result.Failed++
			o.log.WithError(err).WithField("ts_code", c.TSCode).Warn("Quote sync failed for contract")
		}

		notify(progress, (i+1)*100/len(contracts),
			fmt.Sprintf("시세 동기화 %d/%d", i+1, len(contracts)))

		// Courtesy pace-down, additive to the provider rate limit.
		if o.cfg.PauseEvery > 0 && (i+1)%o.cfg.PauseEvery == 0 && i+1 < len(contracts) {
			if err := o.sleep(ctx, o.cfg.PauseFor); err != nil {
				return Result{}, err
			}
		}
	}

	o.log.WithFields(map[string]interface{}{
		"trade_date": tradeDate.Format("2006-01-02"),
		"success":    result.Success,
		"skipped":    result.Skipped,
		"failed":     result.Failed,
	}).Info("Quote sync finished")

	notify(progress, 100, fmt.Sprintf("시세 동기화 완료: 성공 %d, 스킵 %d, 실패 %d",
		result.Success, result.Skipped, result.Failed))
	return result, nil
}

// syncOneQuote processes a single contract. The returned error is
// accounted, never propagated past the loop.
func (o *Orchestrator) syncOneQuote(ctx context.Context, tsCode string, tradeDate time.Time, result *Result) error {
	exists, err := o.quotes.Exists(ctx, tsCode, tradeDate)
	if err != nil {
		return err
	}
	if exists {
		result.Skipped++
		return nil
	}

	quotes, err := o.provider.FetchDailyQuote(ctx, tsCode, tradeDate, tradeDate)
	if err != nil {
		return err
	}
	if len(quotes) == 0 {
		// No bar for this date is a legitimate outcome, not a failure.
		result.Skipped++
		return nil
	}

	inserted, err := o.quotes.Insert(ctx, quotes[0])
	if err != nil {
		return err
	}
	if inserted {
		result.Success++
	} else {
		result.Skipped++
	}
	return nil
}

// RecomputeMainContracts selects and upserts the main contract of every
// product for the last trading date. The trade date is computed once and
// held constant across products.
func (o *Orchestrator) RecomputeMainContracts(ctx context.Context, progress ProgressFunc) (Result, error) {
	if err := o.acquire(); err != nil {
		return Result{}, err
	}
	defer o.release()

	result, err := o.recomputeMainContracts(ctx, progress)
	if err != nil {
		notify(progress, -1, err.Error())
		return Result{}, err
	}
	return result, nil
}

func (o *Orchestrator) recomputeMainContracts(ctx context.Context, progress ProgressFunc) (Result, error) {
	tradeDate := o.calendar.LastTradingDate(o.now())
	result := Result{TradeDate: tradeDate}

	products, err := o.contracts.Products(ctx, tradeDate)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list products: %w", err)
	}

	result.Total = len(products)
	notify(progress, 0, fmt.Sprintf("주력 계약 선정 시작: 품목 %d건", len(products)))

	for i, p := range products {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		if err := o.selectOneProduct(ctx, p, tradeDate, &result); err != nil {
			result.Failed++
			o.log.WithError(err).WithFields(map[string]interface{}{
				"exchange": p.Exchange,
				"fut_code": p.FutCode,
			}).Warn("Main contract selection failed for product")
		}

		notify(progress, (i+1)*100/len(products),
			fmt.Sprintf("주력 계약 선정 %d/%d", i+1, len(products)))
	}

	o.log.WithFields(map[string]interface{}{
		"trade_date": tradeDate.Format("2006-01-02"),
		"success":    result.Success,
		"skipped":    result.Skipped,
		"failed":     result.Failed,
	}).Info("Main contract selection finished")

	notify(progress, 100, fmt.Sprintf("주력 계약 선정 완료: 성공 %d, 스킵 %d, 실패 %d",
		result.Success, result.Skipped, result.Failed))
	return result, nil
}

func (o *Orchestrator) selectOneProduct(ctx context.Context, p store.Product, tradeDate time.Time, result *Result) error {
	contracts, err := o.contracts.ContractsByProduct(ctx, p.Exchange, p.FutCode, tradeDate)
	if err != nil {
		return err
	}

	candidates := make([]selector.Candidate, 0, len(contracts))
	quotesByCode := make(map[string]*domain.DailyQuote, len(contracts))
	for _, c := range contracts {
		q, err := o.quotes.GetByCodeAndDate(ctx, c.TSCode, tradeDate)
		if err != nil {
			return err
		}
		quotesByCode[c.TSCode] = q

		cand := selector.Candidate{TSCode: c.TSCode, DelistDate: c.DelistDate}
		if q != nil {
			if q.Volume != nil {
				cand.Volume = *q.Volume
			}
			if q.OpenInterest != nil {
				cand.OpenInterest = *q.OpenInterest
			}
		}
		candidates = append(candidates, cand)
	}

	best, ok := selector.Select(candidates)
	if !ok {
		// No valid contract for this product today. Logged, not fatal.
		o.log.WithFields(map[string]interface{}{
			"exchange": p.Exchange,
			"fut_code": p.FutCode,
		}).Debug("No main contract candidate")
		result.Skipped++
		return nil
	}

	main := domain.MainContract{
		TradeDate:    tradeDate,
		Exchange:     p.Exchange,
		FutCode:      p.FutCode,
		TSCode:       best.TSCode,
		Volume:       best.Volume,
		OpenInterest: best.OpenInterest,
	}
	if q := quotesByCode[best.TSCode]; q != nil && q.Amount != nil {
		main.Amount = *q.Amount
	}

	if err := o.mains.Upsert(ctx, main); err != nil {
		return err
	}
	result.Success++
	return nil
}

// RunDaily executes the full sequence: master refresh, quote sync, main
// contract selection. Any step failure aborts the run.
func (o *Orchestrator) RunDaily(ctx context.Context, progress ProgressFunc) (Report, error) {
	if err := o.acquire(); err != nil {
		return Report{}, err
	}
	defer o.release()

	report := Report{Started: o.now()}

	steps := []struct {
		name string
		span [2]int // progress range of the step within the run
		run  func(ctx context.Context, p ProgressFunc) error
	}{
		{"master", [2]int{0, 20}, func(ctx context.Context, p ProgressFunc) error {
			r, err := o.refreshMaster(ctx, p)
			report.Master = r
			return err
		}},
		{"quotes", [2]int{20, 80}, func(ctx context.Context, p ProgressFunc) error {
			r, err := o.syncQuotes(ctx, p)
			report.Quotes = r
			return err
		}},
		{"main_contracts", [2]int{80, 100}, func(ctx context.Context, p ProgressFunc) error {
			r, err := o.recomputeMainContracts(ctx, p)
			report.MainContracts = r
			return err
		}},
	}

	for _, step := range steps {
		scoped := scaleProgress(progress, step.span[0], step.span[1])
		if err := step.run(ctx, scoped); err != nil {
			notify(progress, -1, fmt.Sprintf("%s 단계 실패: %v", step.name, err))
			return report, fmt.Errorf("daily sync aborted at step %s: %w", step.name, err)
		}
	}

	report.Finished = o.now()
	notify(progress, 100, "일일 동기화 완료")
	return report, nil
}

// scaleProgress maps a step's local 0..100 range into [lo, hi] of the
// overall run. Abnormal termination (-1) passes through unscaled.
func scaleProgress(p ProgressFunc, lo, hi int) ProgressFunc {
	if p == nil {
		return nil
	}
	return func(percent int, message string) {
		if percent < 0 {
			p(percent, message)
			return
		}
		p(lo+(hi-lo)*percent/100, message)
	}
}
