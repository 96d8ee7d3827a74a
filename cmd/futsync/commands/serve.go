package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/futsync/internal/api"
	"github.com/wonny/futsync/internal/api/handlers"
	"github.com/wonny/futsync/internal/scheduler"
	"github.com/wonny/futsync/internal/scheduler/jobs"
	"github.com/wonny/futsync/pkg/redis"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버 + 일일 동기화 스케줄러 시작",
	Long: `REST API 서버와 일일 동기화 스케줄러를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 마스터/시세/주력계약 조회 엔드포인트 제공
- 동기화 트리거 엔드포인트 제공
- 영업일 장마감 후 일일 동기화 실행

Endpoints:
  GET  /health                           - Health check
  GET  /ws/progress                      - 동기화 진행률 스트림
  GET  /api/exchanges                    - 거래소 목록
  GET  /api/exchanges/{exchange}/products - 품목 목록
  GET  /api/contracts                    - 유효 계약 목록
  GET  /api/quotes/{tsCode}              - 일별 시세 조회
  GET  /api/quotes/{tsCode}/latest       - 최신 시세 조회
  GET  /api/main-contracts               - 주력 계약 조회
  POST /api/sync/{master|quotes|main-contracts|history|all}
  GET  /api/sync/status

Example:
  go run ./cmd/futsync serve
  go run ./cmd/futsync serve --port 8090`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (기본: PORT 환경변수)")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== futsync server ===")

	ctx := context.Background()

	// 1. Bootstrap the core collaborators
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	// 2. Optional read-path cache
	redisClient, err := redis.New(a.cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "futsync")

	// 3. Scheduler with the daily sync job
	sched := scheduler.New(a.log)
	dailyJob := jobs.NewDailySync(a.orchestrator, a.cfg.Sync.Schedule, a.log)
	if err := sched.AddJob(dailyJob); err != nil {
		return fmt.Errorf("schedule daily sync: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// 4. Handlers and router
	hub := handlers.NewProgressHub(a.log)
	marketHandler := handlers.NewMarketHandler(a.store, a.calendar, cache, a.log)
	syncHandler := handlers.NewSyncHandler(a.orchestrator, sched, hub, cache, a.log)
	router := api.NewRouter(marketHandler, syncHandler, hub, a.log)

	// 5. Start server with graceful shutdown
	server := api.New(a.cfg, a.log, router)
	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Printf("   Daily sync schedule: %s\n", a.cfg.Sync.Schedule)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
