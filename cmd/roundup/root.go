package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "roundup",
		Short:         "Assemble and edit the daily regional newsletter",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.roundup/config.yaml)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newEditionsCmd())
	rootCmd.AddCommand(newWindowCmd())
	return rootCmd
}

// parseNow reads an RFC3339 --now flag, defaulting to the wall clock.
func parseNow(v string) (time.Time, error) {
	if v == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--now must be RFC3339 (e.g. 2026-10-19T07:00:00-04:00): %w", err)
	}
	return t, nil
}

// parseSince reads a YYYY-MM-DD --since flag in loc.
func parseSince(v string, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--since must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}
