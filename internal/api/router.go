package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/futsync/internal/api/handlers"
	"github.com/wonny/futsync/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(market *handlers.MarketHandler, sync *handlers.SyncHandler, hub *handlers.ProgressHub, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Progress stream for sync observers
	r.HandleFunc("/ws/progress", hub.Serve)

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Read endpoints
	api.HandleFunc("/exchanges", market.ListExchanges).Methods("GET")
	api.HandleFunc("/exchanges/{exchange}/products", market.ListProducts).Methods("GET")
	api.HandleFunc("/contracts", market.ListContracts).Methods("GET")
	api.HandleFunc("/quotes/{tsCode}", market.ListQuotes).Methods("GET")
	api.HandleFunc("/quotes/{tsCode}/latest", market.LatestQuote).Methods("GET")
	api.HandleFunc("/main-contracts", market.ListMainContracts).Methods("GET")

	// Sync triggers
	api.HandleFunc("/sync/master", sync.RefreshMaster).Methods("POST")
	api.HandleFunc("/sync/quotes", sync.SyncQuotes).Methods("POST")
	api.HandleFunc("/sync/main-contracts", sync.RecomputeMainContracts).Methods("POST")
	api.HandleFunc("/sync/history", sync.SyncHistory).Methods("POST")
	api.HandleFunc("/sync/all", sync.RunDaily).Methods("POST")
	api.HandleFunc("/sync/status", sync.Status).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "futsync-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
