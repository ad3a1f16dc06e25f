package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/insightd/internal/search"
)

func newSearchCmd() *cobra.Command {
	var limit int
	var semanticRatio float64
	var minScore float64
	var collections []string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid keyword+vector search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			ctx := cmd.Context()
			a, closeFn, err := buildApp(ctx, dataDir, debug)
			if err != nil {
				return err
			}
			defer closeFn()

			req := search.QueryRequest{
				Query:         query,
				Limit:         limit,
				CollectionIDs: collections,
				SemanticRatio: semanticRatio,
				MinScore:      minScore,
			}
			if semanticRatio > 0 {
				if vec, err := queryVector(ctx, a, query); err == nil {
					req.QueryVector = vec
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not embed query, falling back to keyword search: %v\n", err)
					req.SemanticRatio = 0
				}
			}

			result, err := a.index.Query(req)
			if err != nil {
				return err
			}
			if len(result.Hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no results")
				return nil
			}
			for i, hit := range result.Hits {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s chunk %d (score %.3f) — %s\n",
					i+1, hit.ParentName, hit.ChunkIndex, hit.Score, hit.ParentID)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 15, "Maximum number of hits")
	cmd.Flags().Float64Var(&semanticRatio, "semantic-ratio", 0.6, "Hybrid blend ratio, 0=keyword-only, 1=vector-only")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Drop hits below this normalized score")
	cmd.Flags().StringSliceVar(&collections, "collection", nil, "Restrict to these collection ids, repeatable (default: all)")
	return cmd
}

func queryVector(ctx context.Context, a *app, query string) ([]float32, error) {
	embedder := a.coordinator.Embedder().Get()
	if embedder == nil || !embedder.Available(ctx) {
		return nil, fmt.Errorf("no embedding model configured")
	}
	vectors, err := embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
