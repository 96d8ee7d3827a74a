package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/futsync/internal/calendar"
	"github.com/wonny/futsync/internal/domain"
	"github.com/wonny/futsync/internal/store"
	"github.com/wonny/futsync/internal/tushare"
	"github.com/wonny/futsync/pkg/config"
	"github.com/wonny/futsync/pkg/logger"
)

// Monday 2026-03-02 18:00: past market close, so the trade date is the
// same day.
var testNow = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
var testTradeDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type fakeProvider struct {
	master     []domain.Contract
	masterErr  error
	quotes     map[string][]domain.DailyQuote
	quoteErrs  map[string]error
	mappings   map[string][]tushare.Mapping
	fetchCalls []string
}

func (f *fakeProvider) FetchContractMaster(ctx context.Context) ([]domain.Contract, error) {
	return f.master, f.masterErr
}

func (f *fakeProvider) FetchDailyQuote(ctx context.Context, tsCode string, start, end time.Time) ([]domain.DailyQuote, error) {
	f.fetchCalls = append(f.fetchCalls, tsCode)
	if err := f.quoteErrs[tsCode]; err != nil {
		return nil, err
	}
	return f.quotes[tsCode], nil
}

func (f *fakeProvider) FetchMainMapping(ctx context.Context, continuousCode string, start, end time.Time) ([]tushare.Mapping, error) {
	return f.mappings[continuousCode], nil
}

type fakeStore struct {
	contracts  []domain.Contract
	replaceErr error
	replaced   bool

	quotes map[string]domain.DailyQuote
	mains  map[string]domain.MainContract
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		quotes: map[string]domain.DailyQuote{},
		mains:  map[string]domain.MainContract{},
	}
}

func quoteKey(tsCode string, date time.Time) string {
	return tsCode + "|" + date.Format("20060102")
}

func mainKey(date time.Time, exchange, futCode string) string {
	return date.Format("20060102") + "|" + exchange + "|" + futCode
}

func (f *fakeStore) ReplaceAll(ctx context.Context, contracts []domain.Contract) (store.ReplaceResult, error) {
	if f.replaceErr != nil {
		return store.ReplaceResult{}, f.replaceErr
	}
	f.replaced = true
	f.contracts = contracts
	return store.ReplaceResult{Inserted: len(contracts)}, nil
}

func (f *fakeStore) ValidContracts(ctx context.Context, date time.Time) ([]domain.Contract, error) {
	var valid []domain.Contract
	for _, c := range f.contracts {
		if c.ValidAt(date) {
			valid = append(valid, c)
		}
	}
	return valid, nil
}

func (f *fakeStore) ContractsByProduct(ctx context.Context, exchange, futCode string, date time.Time) ([]domain.Contract, error) {
	var out []domain.Contract
	for _, c := range f.contracts {
		if c.Exchange == exchange && c.FutCode == futCode && c.ValidAt(date) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) Products(ctx context.Context, date time.Time) ([]store.Product, error) {
	seen := map[string]bool{}
	var products []store.Product
	for _, c := range f.contracts {
		if !c.ValidAt(date) {
			continue
		}
		key := c.Exchange + "|" + c.FutCode
		if !seen[key] {
			seen[key] = true
			products = append(products, store.Product{Exchange: c.Exchange, FutCode: c.FutCode})
		}
	}
	return products, nil
}

func (f *fakeStore) Exists(ctx context.Context, tsCode string, tradeDate time.Time) (bool, error) {
	_, ok := f.quotes[quoteKey(tsCode, tradeDate)]
	return ok, nil
}

func (f *fakeStore) Insert(ctx context.Context, q domain.DailyQuote) (bool, error) {
	key := quoteKey(q.TSCode, q.TradeDate)
	if _, ok := f.quotes[key]; ok {
		return false, nil
	}
	f.quotes[key] = q
	return true, nil
}

func (f *fakeStore) GetByCodeAndDate(ctx context.Context, tsCode string, tradeDate time.Time) (*domain.DailyQuote, error) {
	q, ok := f.quotes[quoteKey(tsCode, tradeDate)]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (f *fakeStore) Upsert(ctx context.Context, m domain.MainContract) error {
	f.mains[mainKey(m.TradeDate, m.Exchange, m.FutCode)] = m
	return nil
}

func contract(tsCode, futCode string) domain.Contract {
	return domain.Contract{
		TSCode:     tsCode,
		Exchange:   "SHFE",
		FutCode:    futCode,
		DelistDate: testTradeDate.AddDate(0, 6, 0),
	}
}

func quote(tsCode string, volume, oi float64) domain.DailyQuote {
	return domain.DailyQuote{
		TSCode:       tsCode,
		TradeDate:    testTradeDate,
		Volume:       &volume,
		OpenInterest: &oi,
	}
}

type pauseRecorder struct {
	count int
}

func (p *pauseRecorder) sleep(ctx context.Context, d time.Duration) error {
	p.count++
	return ctx.Err()
}

func newTestOrchestrator(provider *fakeProvider, st *fakeStore) (*Orchestrator, *pauseRecorder) {
	log := logger.NewWithWriter(io.Discard, "error")
	cal := calendar.New(config.CalendarConfig{EarlyCutoffHour: 15, CloseHour: 17})
	cfg := config.SyncConfig{PauseEvery: 50, PauseFor: time.Second}

	o := New(provider, st, st, st, cal, cfg, log)
	o.now = func() time.Time { return testNow }

	pauses := &pauseRecorder{}
	o.sleep = pauses.sleep
	return o, pauses
}

func TestRefreshMaster_ReplacesSnapshot(t *testing.T) {
	provider := &fakeProvider{master: []domain.Contract{contract("CU2606.SHF", "CU")}}
	st := newFakeStore()
	o, _ := newTestOrchestrator(provider, st)

	result, err := o.RefreshMaster(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.True(t, st.replaced)
}

func TestRefreshMaster_EmptyMasterAbortsBeforeWriting(t *testing.T) {
	provider := &fakeProvider{}
	st := newFakeStore()
	o, _ := newTestOrchestrator(provider, st)

	var lastPercent int
	_, err := o.RefreshMaster(context.Background(), func(percent int, message string) {
		lastPercent = percent
	})
	require.Error(t, err)
	assert.False(t, st.replaced, "empty master must not touch the store")
	assert.Equal(t, -1, lastPercent, "abnormal termination signals -1")
}

func TestSyncQuotes_SecondRunSkips(t *testing.T) {
	provider := &fakeProvider{
		quotes: map[string][]domain.DailyQuote{
			"CU2606.SHF": {quote("CU2606.SHF", 100, 200)},
		},
	}
	st := newFakeStore()
	st.contracts = []domain.Contract{contract("CU2606.SHF", "CU")}
	o, _ := newTestOrchestrator(provider, st)

	result, err := o.SyncQuotes(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 0, result.Skipped)

	result, err = o.SyncQuotes(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Success)
	assert.Equal(t, 1, result.Skipped)

	// Exactly one row, and the second run never called the provider.
	assert.Len(t, st.quotes, 1)
	assert.Len(t, provider.fetchCalls, 1)
}

func TestSyncQuotes_NoDataCountsAsSkip(t *testing.T) {
	provider := &fakeProvider{} // provider has no bars at all
	st := newFakeStore()
	st.contracts = []domain.Contract{contract("CU2606.SHF", "CU")}
	o, _ := newTestOrchestrator(provider, st)

	result, err := o.SyncQuotes(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Success)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)
}

func TestSyncQuotes_FailureAccountingAndPacing(t *testing.T) {
	provider := &fakeProvider{
		quotes:    map[string][]domain.DailyQuote{},
		quoteErrs: map[string]error{},
	}
	st := newFakeStore()
	for i := 0; i < 120; i++ {
		tsCode := fmt.Sprintf("C%03d.SHF", i)
		st.contracts = append(st.contracts, contract(tsCode, fmt.Sprintf("C%03d", i)))
		provider.quotes[tsCode] = []domain.DailyQuote{quote(tsCode, 1, 1)}
	}
	provider.quoteErrs["C077.SHF"] = errors.New("provider timeout")

	o, pauses := newTestOrchestrator(provider, st)

	var lastPercent int
	result, err := o.SyncQuotes(context.Background(), func(percent int, message string) {
		lastPercent = percent
	})
	require.NoError(t, err, "one contract's failure must not abort the batch")

	assert.Equal(t, 119, result.Success)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 100, lastPercent)
	assert.Equal(t, 2, pauses.count, "pace-down fires after contracts 50 and 100")
}

func TestSyncQuotes_EmptyMasterIsStepError(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeProvider{}, newFakeStore())

	_, err := o.SyncQuotes(context.Background(), nil)
	require.Error(t, err)
}

func TestSyncQuotes_CancelledBetweenContracts(t *testing.T) {
	provider := &fakeProvider{}
	st := newFakeStore()
	st.contracts = []domain.Contract{contract("CU2606.SHF", "CU")}
	o, _ := newTestOrchestrator(provider, st)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.SyncQuotes(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, provider.fetchCalls)
}

func TestRecomputeMainContracts_PicksHighestScore(t *testing.T) {
	st := newFakeStore()
	st.contracts = []domain.Contract{
		contract("CU2603.SHF", "CU"),
		contract("CU2606.SHF", "CU"),
	}
	// A scores 100*0.4+200*0.6=160, B scores 500*0.4+50*0.6=230.
	a := quote("CU2603.SHF", 100, 200)
	b := quote("CU2606.SHF", 500, 50)
	amount := 617.25
	b.Amount = &amount
	st.quotes[quoteKey(a.TSCode, testTradeDate)] = a
	st.quotes[quoteKey(b.TSCode, testTradeDate)] = b

	o, _ := newTestOrchestrator(&fakeProvider{}, st)

	result, err := o.RecomputeMainContracts(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Success)

	main, ok := st.mains[mainKey(testTradeDate, "SHFE", "CU")]
	require.True(t, ok)
	assert.Equal(t, "CU2606.SHF", main.TSCode)
	assert.Equal(t, 500.0, main.Volume)
	assert.Equal(t, 617.25, main.Amount)
	assert.Equal(t, testTradeDate, main.TradeDate)
}

func TestRecomputeMainContracts_NoQuotesFallsBackToNearestDelist(t *testing.T) {
	st := newFakeStore()
	near := contract("CU2603.SHF", "CU")
	near.DelistDate = testTradeDate.AddDate(0, 1, 0)
	far := contract("CU2612.SHF", "CU")
	st.contracts = []domain.Contract{far, near}

	o, _ := newTestOrchestrator(&fakeProvider{}, st)

	result, err := o.RecomputeMainContracts(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Success)

	main := st.mains[mainKey(testTradeDate, "SHFE", "CU")]
	assert.Equal(t, "CU2603.SHF", main.TSCode)
}

func TestRunDaily_HappyPath(t *testing.T) {
	provider := &fakeProvider{
		master: []domain.Contract{contract("CU2606.SHF", "CU")},
		quotes: map[string][]domain.DailyQuote{
			"CU2606.SHF": {quote("CU2606.SHF", 100, 200)},
		},
	}
	o, _ := newTestOrchestrator(provider, newFakeStore())

	var percents []int
	report, err := o.RunDaily(context.Background(), func(percent int, message string) {
		percents = append(percents, percent)
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Master.Inserted)
	assert.Equal(t, 1, report.Quotes.Success)
	assert.Equal(t, 1, report.MainContracts.Success)
	assert.Equal(t, testTradeDate, report.Quotes.TradeDate)

	// Scaled step progress stays monotone and ends at 100.
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
	assert.Equal(t, 100, percents[len(percents)-1])
}

func TestRunDaily_StepFailureAborts(t *testing.T) {
	provider := &fakeProvider{masterErr: errors.New("provider down")}
	st := newFakeStore()
	o, _ := newTestOrchestrator(provider, st)

	var lastPercent int
	_, err := o.RunDaily(context.Background(), func(percent int, message string) {
		lastPercent = percent
	})
	require.Error(t, err)
	assert.Equal(t, -1, lastPercent)
	assert.Empty(t, st.quotes, "no partial writes after a step failure")
}

func TestOverlappingRunsAreRejected(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeProvider{}, newFakeStore())

	require.NoError(t, o.acquire())
	defer o.release()

	_, err := o.SyncQuotes(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.True(t, o.Running())
}

func TestSyncMainContractHistory_BackfillsFromMapping(t *testing.T) {
	day1 := testTradeDate.AddDate(0, 0, -1)
	provider := &fakeProvider{
		mappings: map[string][]tushare.Mapping{
			"CU.SHF": {
				{TradeDate: day1, MappedTSCode: "CU2603.SHF"},
				{TradeDate: testTradeDate, MappedTSCode: "CU2606.SHF"},
			},
		},
	}
	st := newFakeStore()
	st.contracts = []domain.Contract{contract("CU2606.SHF", "CU")}
	st.quotes[quoteKey("CU2606.SHF", testTradeDate)] = quote("CU2606.SHF", 500, 50)

	o, _ := newTestOrchestrator(provider, st)

	result, err := o.SyncMainContractHistory(context.Background(), 30, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Success)

	require.Len(t, st.mains, 2)
	today := st.mains[mainKey(testTradeDate, "SHFE", "CU")]
	assert.Equal(t, "CU2606.SHF", today.TSCode)
	assert.Equal(t, 500.0, today.Volume, "stored bar figures are attached")

	yesterday := st.mains[mainKey(day1, "SHFE", "CU")]
	assert.Equal(t, "CU2603.SHF", yesterday.TSCode)
	assert.Equal(t, 0.0, yesterday.Volume, "no stored bar leaves zeros")
}
