package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/futsync/internal/calendar"
	"github.com/wonny/futsync/internal/domain"
	"github.com/wonny/futsync/internal/store"
	"github.com/wonny/futsync/pkg/logger"
	"github.com/wonny/futsync/pkg/redis"
)

// MarketHandler serves the read endpoints over the synced data.
// ⭐ SSOT: 조회 API 핸들러는 이 구조체에서만
type MarketHandler struct {
	contracts *store.ContractRepository
	quotes    *store.QuoteRepository
	mains     *store.MainContractRepository
	calendar  calendar.Calendar
	cache     *redis.Cache
	logger    *logger.Logger
}

// NewMarketHandler creates a new market data handler
func NewMarketHandler(
	s *store.Store,
	cal calendar.Calendar,
	cache *redis.Cache,
	log *logger.Logger,
) *MarketHandler {
	return &MarketHandler{
		contracts: s.Contracts,
		quotes:    s.Quotes,
		mains:     s.MainContracts,
		calendar:  cal,
		cache:     cache,
		logger:    log,
	}
}

// ListExchanges returns the exchanges present in the master
// GET /api/exchanges
func (h *MarketHandler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var exchanges []string
	err := h.cache.GetOrSet(ctx, redis.ExchangesKey(), &exchanges, redis.TTLShort, func() (interface{}, error) {
		return h.contracts.ListExchanges(ctx)
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to list exchanges")
		respondError(w, http.StatusInternalServerError, "Failed to list exchanges")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"exchanges": exchanges})
}

// ListProducts returns the product codes of one exchange
// GET /api/exchanges/{exchange}/products
func (h *MarketHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	exchange := mux.Vars(r)["exchange"]

	var products []string
	err := h.cache.GetOrSet(ctx, redis.ProductsKey(exchange), &products, redis.TTLShort, func() (interface{}, error) {
		return h.contracts.ListProducts(ctx, exchange)
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to list products")
		respondError(w, http.StatusInternalServerError, "Failed to list products")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"exchange": exchange,
		"products": products,
	})
}

// ListContracts returns valid contracts at the last trading date,
// optionally filtered to one product
// GET /api/contracts?exchange=SHFE&fut_code=CU
func (h *MarketHandler) ListContracts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tradeDate := h.calendar.LastTradingDate(time.Now())

	exchange := r.URL.Query().Get("exchange")
	futCode := r.URL.Query().Get("fut_code")

	var contracts []domain.Contract
	var err error
	if exchange != "" && futCode != "" {
		contracts, err = h.contracts.ContractsByProduct(ctx, exchange, futCode, tradeDate)
	} else {
		contracts, err = h.contracts.ValidContracts(ctx, tradeDate)
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to list contracts")
		respondError(w, http.StatusInternalServerError, "Failed to list contracts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trade_date": tradeDate.Format("2006-01-02"),
		"count":      len(contracts),
		"contracts":  contracts,
	})
}

// ListQuotes returns the recent daily bars of one instrument
// GET /api/quotes/{tsCode}?limit=30
func (h *MarketHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tsCode := mux.Vars(r)["tsCode"]

	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			respondError(w, http.StatusBadRequest, "limit must be an integer in 1..1000")
			return
		}
		limit = n
	}

	var quotes []domain.DailyQuote
	err := h.cache.GetOrSet(ctx, redis.QuotesKey(tsCode, limit), &quotes, redis.TTLMedium, func() (interface{}, error) {
		return h.quotes.ListByCode(ctx, tsCode, limit)
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to list quotes")
		respondError(w, http.StatusInternalServerError, "Failed to list quotes")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ts_code": tsCode,
		"count":   len(quotes),
		"quotes":  quotes,
	})
}

// LatestQuote returns the newest stored bar of one instrument
// GET /api/quotes/{tsCode}/latest
func (h *MarketHandler) LatestQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tsCode := mux.Vars(r)["tsCode"]

	quote, err := h.quotes.Latest(ctx, tsCode)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "No quotes stored for this instrument")
			return
		}
		h.logger.WithError(err).Error("Failed to get latest quote")
		respondError(w, http.StatusInternalServerError, "Failed to get latest quote")
		return
	}
	if quote == nil {
		// The bar vanished between the two lookups; treat as absent.
		respondError(w, http.StatusNotFound, "No quotes stored for this instrument")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ts_code": tsCode,
		"quote":   quote,
	})
}

// ListMainContracts returns the main-contract selections of one trading
// date, defaulting to the last one
// GET /api/main-contracts?date=2026-03-02
func (h *MarketHandler) ListMainContracts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tradeDate := h.calendar.LastTradingDate(time.Now())
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
			return
		}
		tradeDate = parsed
	}

	dateStr := tradeDate.Format("2006-01-02")

	var mains []domain.MainContract
	err := h.cache.GetOrSet(ctx, redis.MainContractsKey(dateStr), &mains, redis.TTLMedium, func() (interface{}, error) {
		return h.mains.ListByDate(ctx, tradeDate)
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to list main contracts")
		respondError(w, http.StatusInternalServerError, "Failed to list main contracts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trade_date":     dateStr,
		"count":          len(mains),
		"main_contracts": mains,
	})
}
