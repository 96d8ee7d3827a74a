package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "futsync",
	Short: "선물 기준정보/일별시세 동기화 엔진",
	Long: `futsync - Futures Data Sync Engine

외부 시세 제공자로부터 선물 계약 마스터와 일별 시세를 수집해
PostgreSQL에 적재하고, 품목별 주력 계약을 산출합니다.

Usage:
  go run ./cmd/futsync [command]

Examples:
  go run ./cmd/futsync serve
  go run ./cmd/futsync sync all
  go run ./cmd/futsync sync quotes
  go run ./cmd/futsync status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
