package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/insightd/internal/keyspace"
)

func newDocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "List and delete documents within a collection",
	}
	cmd.AddCommand(newDocListCmd())
	cmd.AddCommand(newDocDeleteCmd())
	return cmd
}

func newDocListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <collection-id>",
		Short: "List documents in a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := keyspace.ParseNamespaceID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, closeFn, err := buildApp(ctx, dataDir, debug)
			if err != nil {
				return err
			}
			defer closeFn()

			docs, err := a.facade.ListDocuments(ns)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no documents")
				return nil
			}
			for _, d := range docs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-40s %d pages\n", d.ID, d.Name, d.PageCount)
			}
			return nil
		},
	}
}

func newDocDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection-id> <doc-id>",
		Short: "Delete a document and its chunks from the search index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := keyspace.ParseNamespaceID(args[0])
			if err != nil {
				return err
			}
			docID := args[1]

			ctx := cmd.Context()
			a, closeFn, err := buildApp(ctx, dataDir, debug)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := a.coordinator.DeleteDocument(ns, docID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted document %s\n", docID)
			return nil
		},
	}
}
