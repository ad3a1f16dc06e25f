package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/insightd/internal/keyspace"
	"github.com/Aman-CERP/insightd/internal/ticket"
)

func newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Create, list, and share collections",
	}
	cmd.AddCommand(newCollectionCreateCmd())
	cmd.AddCommand(newCollectionListCmd())
	cmd.AddCommand(newCollectionShareCmd())
	cmd.AddCommand(newCollectionImportCmd())
	cmd.AddCommand(newCollectionDeleteCmd())
	return cmd
}

func newCollectionCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, closeFn, err := buildApp(ctx, dataDir, debug)
			if err != nil {
				return err
			}
			defer closeFn()

			ns, meta, err := a.facade.CreateCollection(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created collection %q (%s), created_at=%s\n", meta.Name, ns.String(), meta.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
}

func newCollectionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known collections",
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
			for _, ns := range ids {
				meta, err := a.facade.GetCollectionMeta(ns)
				if err != nil {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", ns.String(), meta.Name)
			}
			return nil
		},
	}
}

func newCollectionShareCmd() *cobra.Command {
	var write bool
	var addrs []string

	cmd := &cobra.Command{
		Use:   "share <collection-id>",
		Short: "Mint a share ticket for a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ns, err := keyspace.ParseNamespaceID(args[0])
			if err != nil {
				return err
			}

			a, closeFn, err := buildApp(ctx, dataDir, debug)
			if err != nil {
				return err
			}
			defer closeFn()

			capability := ticket.Read
			if write {
				capability = ticket.Write
			}
			tk, err := a.facade.Share(ns, capability, addrs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tk.Encode())
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "Grant read-write capability instead of read-only")
	cmd.Flags().StringSliceVar(&addrs, "addr", nil, "Reachable address (host:port) to embed in the ticket, repeatable")
	return cmd
}

func newCollectionImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <ticket>",
		Short: "Import a shared collection from a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := ticket.Decode(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, closeFn, err := buildApp(ctx, dataDir, debug)
			if err != nil {
				return err
			}
			defer closeFn()

			ns, warning, err := a.facade.Import(ctx, tk)
			if err != nil {
				return err
			}
			if warning != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning.Message)
			}
			if err := a.coordinator.Watch(ns); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ns.String())
			return nil
		},
	}
}

func newCollectionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection-id>",
		Short: "Delete a collection and every chunk it contributed to the search index",
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

			if err := a.coordinator.DeleteCollection(ns); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted collection %s\n", ns.String())
			return nil
		},
	}
}
