package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var buildJSON bool

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "Print build statistics as JSON")
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Load the corpus and build the index",
	Long: `Load the configured corpus, build the sparse TF-IDF index with
index.workers parallel workers, and print the build statistics.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.prepare(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if buildJSON {
		return outputJSON(out, stats)
	}
	fmt.Fprintf(out, "indexed %d documents (%d distinct tokens, %d tokens) with %d workers in %s\n",
		stats.Documents, stats.VocabularySize, stats.Tokens, stats.Workers, stats.Duration)
	if s := a.svc.Summary(); s != "" {
		fmt.Fprintf(out, "\nsummary: %s\n", s)
	}
	return nil
}
