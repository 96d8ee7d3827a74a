package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "저장소 상태 확인",
	Long: `데이터베이스 연결과 적재 현황을 확인합니다.

이 명령어는:
- DB 연결 상태와 풀 통계 출력
- 계약 마스터 건수 출력
- 마지막 거래일과 주력 계약 건수 출력

Example:
  go run ./cmd/futsync status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== futsync status ===")

	ctx := context.Background()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// 1. Database health
	health, err := a.db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	fmt.Printf("\nDatabase: healthy (%.0fms, %d/%d conns)\n",
		float64(health.ResponseTime.Microseconds())/1000,
		health.Stats.TotalConns, health.Stats.MaxConns)

	// 2. Master size
	count, err := a.store.Contracts.Count(ctx)
	if err != nil {
		return fmt.Errorf("count contracts: %w", err)
	}
	fmt.Printf("Contract master: %d rows\n", count)

	// 3. Trade date and main contracts
	tradeDate := a.calendar.LastTradingDate(time.Now())
	fmt.Printf("Last trading date: %s\n", tradeDate.Format("2006-01-02"))

	mains, err := a.store.MainContracts.ListByDate(ctx, tradeDate)
	if err != nil {
		return fmt.Errorf("list main contracts: %w", err)
	}
	fmt.Printf("Main contracts for that date: %d\n", len(mains))

	if a.orchestrator.Running() {
		fmt.Println("\n⚠ A sync run is currently in progress")
	}
	return nil
}
