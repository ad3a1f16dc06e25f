package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/insightd/internal/apperrors"
	"github.com/Aman-CERP/insightd/internal/keyspace"
	"github.com/Aman-CERP/insightd/internal/pipeline"
)

// pollInterval is how often the import command checks tracker progress
// while waiting for a just-imported document to finish the pipeline.
const pollInterval = 200 * time.Millisecond

func newImportCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "import <collection-id> <file>...",
		Short: "Import one or more PDFs into a collection",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := keyspace.ParseNamespaceID(args[0])
			if err != nil {
				return err
			}
			paths := args[1:]

			ctx := cmd.Context()
			a, closeFn, err := buildApp(ctx, dataDir, debug)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := a.coordinator.Watch(ns); err != nil {
				return err
			}

			docIDs := make([]string, 0, len(paths))
			for _, path := range paths {
				docID, hash, err := a.facade.StoreSource(ns, path)
				if apperrors.GetCategory(err) == apperrors.CategoryDuplicate {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: duplicate, skipping (hash %x)\n", path, hash[:8])
					continue
				}
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: queued as %s\n", path, docID)
				docIDs = append(docIDs, docID)
			}

			if !wait || len(docIDs) == 0 {
				return nil
			}
			return waitForQuiescence(cmd, a.coordinator.Tracker(), ns.String())
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", true, "Block until every queued document finishes the pipeline")
	return cmd
}

// waitForQuiescence polls the tracker until collection has no pending or
// active work left, printing the final per-stage counts.
func waitForQuiescence(cmd *cobra.Command, tracker *pipeline.Tracker, collection string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	ctx := cmd.Context()
	for {
		if !tracker.IsActive(collection) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	snap := tracker.Snapshot(collection)
	for _, stage := range []pipeline.Stage{pipeline.StageStore, pipeline.StageExtract, pipeline.StageEmbed, pipeline.StageIndex} {
		c := snap.Stages[stage]
		fmt.Fprintf(cmd.OutOrStdout(), "%-7s completed=%d failed=%d\n", stage, c.Completed, c.Failed)
	}
	return nil
}
