package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/henrybloomingdale/clinlit/internal/config"
	"github.com/henrybloomingdale/clinlit/internal/mesh"
	"github.com/henrybloomingdale/clinlit/internal/output"
)

// meshCmd resolves a term against the NCBI MeSH vocabulary. The printed
// search clause is a useful building block for hand-written strategies.
var meshCmd = &cobra.Command{
	Use:   "mesh <term>",
	Short: "Look up a MeSH descriptor",
	Long:  `Look up a term in the NCBI MeSH vocabulary and print its descriptor, scope note, tree numbers, entry terms, and a ready-to-use search clause.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		client := mesh.NewClient(newBaseClient(cfg))

		term := strings.Join(args, " ")
		record, err := client.Lookup(cmd.Context(), term)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("no MeSH descriptor found for %q", term)
		}
		return output.FormatMeSH(os.Stdout, record, outputCfg())
	},
}
