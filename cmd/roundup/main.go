// Command roundup assembles the daily regional newsletter: gather and
// classify the day's stories into a balanced draft, then let the editor
// adjust it by plain-language command until it is done.
//
// Usage:
//
//	roundup run [--input file.json]... [--feeds] [--plain] [--out path]
//	roundup serve [--addr :8080]
//	roundup editions [--limit N] [--since YYYY-MM-DD]
//	roundup window [--now RFC3339]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "roundup: %v\n", err)
		stop()
		os.Exit(1)
	}
}
