package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/insightd/cmd/insightd/progressview"
)

func newServeCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Watch every collection and serve the agent tool dispatch over stdio",
		Long: `serve starts a CollectionWatcher for every collection already on disk
(so documents arriving from a peer are picked up automatically) and runs
the agent tool dispatch server (search, read_chunk, list_documents) over
stdio. When stdout is a terminal, pipeline progress is also rendered
live; redirect stdout (or pass --plain) to get a flat line-oriented log
instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, closeFn, err := buildApp(ctx, dataDir, debug)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := a.watchAll(); err != nil {
				return err
			}

			renderer := progressview.NewRenderer(progressview.Config{
				Output:     os.Stdout,
				ForcePlain: plain,
			})
			if err := renderer.Start(); err != nil {
				return err
			}
			defer renderer.Stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return a.agentServer().Serve(gctx)
			})
			g.Go(func() error {
				return pollProgress(gctx, a, renderer)
			})

			if err := g.Wait(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Force line-oriented progress output even on a terminal")
	return cmd
}

// pollProgress forwards every tracker notification to the renderer until
// ctx is cancelled, so `serve` exits cleanly alongside the agent server
// goroutine in the same errgroup.
func pollProgress(ctx context.Context, a *app, renderer progressview.Renderer) error {
	notifications := a.coordinator.Tracker().Notifications()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-notifications:
			renderer.Update(snap)
		}
	}
}
