package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/roundup/internal/api"
	"github.com/abelbrown/roundup/internal/logging"
)

func newServeCmd() *cobra.Command {
	var (
		opts buildOptions
		addr string
		out  string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build today's draft and serve the editing session over HTTP",
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

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewServer(api.NewHandler(sess, st), a.registry),
				ReadHeaderTimeout: 10 * time.Second,
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s listening on %s\n", sess.ID(), addr)
			logging.Info("http server starting", "addr", addr, "session", sess.ID())
			return serve(ctx, srv)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringArrayVar(&opts.inputs, "input", nil, "JSON or YAML item file (repeatable)")
	cmd.Flags().BoolVar(&opts.feeds, "feeds", false, "also fetch the configured feeds when --input is given")
	cmd.Flags().IntVar(&opts.hours, "hours", 0, "fixed lookback in hours instead of the weekday rule")
	cmd.Flags().StringVar(&opts.now, "now", "", "pretend the current time is this RFC3339 timestamp")
	cmd.Flags().BoolVar(&opts.force, "force", false, "skip the publish-day warning")
	cmd.Flags().StringVar(&out, "out", "", "also write the finalized edition as text to this path")
	return cmd
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logging.Info("http server stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
