// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mlehane/sdkdump/internal/manifest"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize what has been dumped into an output tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, _ := cmd.Flags().GetString("output")

		store, err := manifest.Open(outDir)
		if err != nil {
			return fmt.Errorf("opening manifest: %w", err)
		}
		defer store.Close()

		counts, err := store.Summary()
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			fmt.Println("No recorded dumps.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tIMAGES\tHEADERS")
		for _, c := range counts {
			fmt.Fprintf(w, "%s\t%d\t%d\n", c.Kind, c.Images, c.Headers)
		}
		return w.Flush()
	},
}

func init() {
	statusCmd.Flags().StringP("output", "o", defaultOutputDir, "output directory root")

	rootCmd.AddCommand(statusCmd)
}
