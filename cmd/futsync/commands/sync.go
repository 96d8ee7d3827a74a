package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/futsync/internal/syncer"
)

// syncCmd represents the sync command group
var syncCmd = &cobra.Command{
	Use:   "sync [all|master|quotes|mains|history]",
	Short: "동기화 1회 실행",
	Long: `동기화를 한 번 실행하고 종료합니다.

Targets:
  all      전체 시퀀스 (마스터 → 시세 → 주력 계약)
  master   계약 마스터 갱신
  quotes   일별 시세 동기화
  mains    주력 계약 재산출
  history  주력 계약 이력 백필

Example:
  go run ./cmd/futsync sync all
  go run ./cmd/futsync sync history --days 60`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"all", "master", "quotes", "mains", "history"},
	RunE:      runSync,
}

var historyDays int

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().IntVar(&historyDays, "days", 30, "이력 백필 기간 (일)")
}

// consoleProgress prints progress lines to stdout.
func consoleProgress(percent int, message string) {
	if percent < 0 {
		fmt.Printf("❌ %s\n", message)
		return
	}
	fmt.Printf("[%3d%%] %s\n", percent, message)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// Probe the pool before a run that may hold it for minutes.
	if err := a.db.EnsureConnected(ctx); err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}

	switch args[0] {
	case "all":
		report, err := a.orchestrator.RunDaily(ctx, consoleProgress)
		if err != nil {
			return err
		}
		fmt.Printf("\n✅ 일일 동기화 완료 (%s)\n", report.Finished.Sub(report.Started).Round(time.Second))
		fmt.Printf("   마스터: %d건 저장, %d건 제외\n", report.Master.Inserted, report.Master.Skipped)
		printResult("시세", report.Quotes)
		printResult("주력 계약", report.MainContracts)
		return nil

	case "master":
		result, err := a.orchestrator.RefreshMaster(ctx, consoleProgress)
		if err != nil {
			return err
		}
		fmt.Printf("\n✅ 마스터 갱신 완료: %d건 저장, %d건 제외\n", result.Inserted, result.Skipped)
		return nil

	case "quotes":
		result, err := a.orchestrator.SyncQuotes(ctx, consoleProgress)
		if err != nil {
			return err
		}
		printResult("시세", result)
		return nil

	case "mains":
		result, err := a.orchestrator.RecomputeMainContracts(ctx, consoleProgress)
		if err != nil {
			return err
		}
		printResult("주력 계약", result)
		return nil

	case "history":
		result, err := a.orchestrator.SyncMainContractHistory(ctx, historyDays, consoleProgress)
		if err != nil {
			return err
		}
		printResult("주력 계약 이력", result)
		return nil

	default:
		return fmt.Errorf("unknown sync target: %s", args[0])
	}
}

func printResult(name string, r syncer.Result) {
	fmt.Printf("   %s (%s): 성공 %d, 스킵 %d, 실패 %d / 전체 %d\n",
		name, r.TradeDate.Format("2006-01-02"), r.Success, r.Skipped, r.Failed, r.Total)
}
