package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/lookback"
)

func newWindowCmd() *cobra.Command {
	var now string
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Print the active lookback window and publish-day status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			policy, err := lookback.New(cfg.Lookback)
			if err != nil {
				return err
			}
			t, err := parseNow(now)
			if err != nil {
				return err
			}
			printWindow(cmd.OutOrStdout(), policy, t)
			return nil
		},
	}
	cmd.Flags().StringVar(&now, "now", "", "evaluate at this RFC3339 timestamp instead of now")
	return cmd
}

func printWindow(w io.Writer, p *lookback.Policy, now time.Time) {
	win := p.Window(now)
	loc := p.Location()
	_, day := p.PublishDay(now)

	fmt.Fprintln(w, day)
	fmt.Fprintf(w, "Window: %s\n", win.Explanation)
	fmt.Fprintf(w, "  from %s\n", win.Start.In(loc).Format("Mon Jan 2 15:04 MST"))
	fmt.Fprintf(w, "  to   %s\n", win.End.In(loc).Format("Mon Jan 2 15:04 MST"))
	fmt.Fprintf(w, "  (%d hours)\n", win.Hours())
}
