package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/insightd/internal/pipeline"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print a one-shot snapshot of every collection's pipeline progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, closeFn, err := buildApp(ctx, dataDir, debug)
			if err != nil {
				return err
			}
			defer closeFn()

			ids, err := a.facade.ListCollections()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no collections")
				return nil
			}

			tracker := a.coordinator.Tracker()
			for _, ns := range ids {
				meta, err := a.facade.GetCollectionMeta(ns)
				if err != nil {
					continue
				}
				docs, err := a.facade.ListDocuments(ns)
				if err != nil {
					return err
				}

				collection := ns.String()
				snap := tracker.Snapshot(collection)
				active := tracker.IsActive(collection)
				status := "idle"
				if active {
					status = "processing"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) — %d document(s), %s\n", meta.Name, collection, len(docs), status)
				for _, stage := range []pipeline.Stage{pipeline.StageStore, pipeline.StageExtract, pipeline.StageEmbed, pipeline.StageIndex} {
					c := snap.Stages[stage]
					if c.Pending+c.Active+c.Completed+c.Failed == 0 {
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "  %-7s pending=%d active=%d completed=%d failed=%d\n",
						stage, c.Pending, c.Active, c.Completed, c.Failed)
				}
			}

			if !a.settings.HasEmbedder() {
				fmt.Fprintln(cmd.OutOrStdout(), "\nno embedding model configured; new documents are stored and extracted but not indexed for search")
			}
			return nil
		},
	}
	return cmd
}
