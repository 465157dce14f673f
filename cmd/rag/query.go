package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"sparserag/internal/domain"
)

var (
	queryK    int
	queryJSON bool
)

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVarP(&queryK, "top-k", "k", 0, "Number of results (default retriever.top_k)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print results as JSON")
}

// QueryResponse is the JSON output of the query command.
type QueryResponse struct {
	Query      string                `json:"query"`
	K          int                   `json:"k"`
	Generation uint64                `json:"generation"`
	Results    []domain.RetrievalHit `json:"results"`
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Rank corpus passages by similarity to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errors.New("search query cannot be empty")
	}
	k := queryK
	if k <= 0 {
		k = cfg.Retriever.TopK
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.close()
	if _, err := a.prepare(cmd.Context()); err != nil {
		return err
	}

	hits, err := a.svc.Retrieve(cmd.Context(), query, k)
	if err != nil {
		return err
	}
	if queryJSON {
		return outputJSON(cmd.OutOrStdout(), QueryResponse{
			Query:      query,
			K:          k,
			Generation: a.svc.Snapshot().Generation(),
			Results:    hits,
		})
	}
	printHits(cmd.OutOrStdout(), hits)
	return nil
}
