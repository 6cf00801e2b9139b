// Command hlpilot runs the LLM-driven Hyperliquid trading assistant.
//
// Usage:
//
//	hlpilot setup
//	hlpilot run-once --config config.yaml
//	hlpilot run-loop --auto --interval 1h
//	hlpilot status
//	hlpilot close-all
//
// Secrets are read from the environment or a .env file:
//
//	HL_PRIVATE_KEY, HL_ACCOUNT_ADDRESS, LLM_API_KEY, CRYPTOPANIC_API_KEY
package main

import (
	"os"

	"github.com/vadiminshakov/hlpilot/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
