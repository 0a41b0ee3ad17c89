package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/roundup/internal/store"
)

func newEditionsCmd() *cobra.Command {
	var (
		limit int
		since string
	)
	cmd := &cobra.Command{
		Use:   "editions",
		Short: "List archived editions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			opts := store.ListOptions{Limit: limit}
			if opts.Since, err = parseSince(since, a.policy.Location()); err != nil {
				return err
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			list, err := st.ListEditions(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printEditions(cmd.OutOrStdout(), list, a.policy.Location())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum editions to list (0 for all)")
	cmd.Flags().StringVar(&since, "since", "", "only editions finalized on or after YYYY-MM-DD")
	return cmd
}

func printEditions(w io.Writer, list []store.Edition, loc *time.Location) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No editions archived.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-16s  %6s  %7s  %5s\n", "EDITION", "FINALIZED", "PLACED", "SKIPPED", "EDITS")
	for _, e := range list {
		fmt.Fprintf(w, "%-36s  %-16s  %6d  %7d  %5d\n",
			e.ID, e.FinalizedAt.In(loc).Format("2006-01-02 15:04"), e.Placed, e.Skipped, e.Ops)
	}
}
