// Package cmd provides the CLI commands for insightd.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/insightd/internal/config"
	"github.com/Aman-CERP/insightd/pkg/version"
)

var (
	dataDir string
	debug   bool
)

// NewRootCmd creates the root command for the insightd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "insightd",
		Short:   "Local-first document search for investigative journalists",
		Version: version.Version,
		Long: `insightd turns imported PDFs into a searchable, embedded, hybrid
keyword+vector index, replicated between peers by content-addressed
collections.`,
	}
	cmd.SetVersionTemplate("insightd version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", config.DefaultDataDir(), "Data directory (blobs, keyspaces, search index, settings)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newCollectionCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDocCmd())

	return cmd
}
