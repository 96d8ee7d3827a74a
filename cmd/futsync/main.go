package main

import (
	"os"

	"github.com/wonny/futsync/cmd/futsync/commands"
)

// main is the entry point for the futsync CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/futsync [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
