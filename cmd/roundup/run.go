package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/abelbrown/roundup/internal/edit"
	"github.com/abelbrown/roundup/internal/ui"
)

func newRunCmd() *cobra.Command {
	var (
		opts  buildOptions
		plain bool
		out   string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build today's draft and start the editing session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			res, pipeline, err := a.build(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			sess := a.session(res, pipeline, st, out)

			if plain {
				return runPlain(ctx, sess, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			program := tea.NewProgram(ui.NewApp(ui.SessionCommands(ctx, sess)), tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("run ui: %w", err)
			}
			// Reached when the program exits any other way than done or abort.
			if !sess.Closed() {
				sess.Abort()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s\n", sess.State())
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&opts.inputs, "input", nil, "JSON or YAML item file (repeatable)")
	cmd.Flags().BoolVar(&opts.feeds, "feeds", false, "also fetch the configured feeds when --input is given")
	cmd.Flags().IntVar(&opts.hours, "hours", 0, "fixed lookback in hours instead of the weekday rule")
	cmd.Flags().StringVar(&opts.now, "now", "", "pretend the current time is this RFC3339 timestamp")
	cmd.Flags().BoolVar(&opts.force, "force", false, "skip the publish-day warning")
	cmd.Flags().BoolVar(&plain, "plain", false, "read commands from stdin instead of the terminal UI")
	cmd.Flags().StringVar(&out, "out", "", "also write the finalized edition as text to this path")
	return cmd
}

// Editor is the part of the session the plain loop drives.
type Editor interface {
	Handle(ctx context.Context, text string) edit.Response
	Abort() edit.Response
	Summary() string
	Closed() bool
}

// runPlain reads one command per line until the session closes. End of
// input aborts an unfinished session.
func runPlain(ctx context.Context, sess Editor, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, sess.Summary())
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for !sess.Closed() {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		printResponse(out, sess.Handle(ctx, scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}
	if !sess.Closed() {
		fmt.Fprintln(out)
		printResponse(out, sess.Abort())
	}
	return nil
}

func printResponse(out io.Writer, resp edit.Response) {
	if resp.Message != "" {
		fmt.Fprintln(out, resp.Message)
	}
	for _, w := range resp.Warnings {
		fmt.Fprintf(out, "! %s\n", w)
	}
	if resp.Outcome == edit.OutcomeRefreshed && resp.Summary != "" {
		fmt.Fprintln(out, resp.Summary)
	}
	if resp.Edition != nil {
		fmt.Fprintf(out, "Edition %s archived.\n", resp.Edition.ID)
	}
}

var _ Editor = (*edit.Session)(nil)
