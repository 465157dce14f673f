package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sparserag/internal/service"
)

var (
	askK          int
	askNumPredict int
	askModel      string
	askSources    bool
)

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().IntVarP(&askK, "top-k", "k", 0, "Passages to retrieve as context (default retriever.top_k)")
	askCmd.Flags().IntVar(&askNumPredict, "num-predict", 0, "Token budget for the answer (default generator.num_predict)")
	askCmd.Flags().StringVar(&askModel, "model", "", "Model to generate with (default generator.model)")
	askCmd.Flags().BoolVar(&askSources, "sources", false, "Print the retrieved passages after the answer")
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the corpus with a streamed model response",
	Long: `Retrieve the passages most similar to the question, number them into a
prompt, and stream an answer from the generation backend. Progress is shown
on stderr; Ctrl-C cancels the generation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("question cannot be empty")
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.close()
	if _, err := a.prepare(cmd.Context()); err != nil {
		return err
	}

	progress := &progressPrinter{w: cmd.ErrOrStderr()}
	ans, err := a.svc.Ask(cmd.Context(), question, service.AskOptions{
		K:            askK,
		TargetTokens: askNumPredict,
		Model:        askModel,
	}, progress.update)
	progress.done()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ans.Text)
	if askSources {
		fmt.Fprintln(out)
		printHits(out, ans.Hits)
	}
	return nil
}
