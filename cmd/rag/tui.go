package main

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"sparserag/internal/logger"
	"sparserag/internal/tui"
)

func init() {
	rootCmd.AddCommand(tuiCmd)
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive search and ask UI",
	Long: `Build the index and open an interactive UI. Enter searches, Up/Down
browse results, Ctrl+G streams an answer, Esc cancels it, Ctrl+C quits.

Logs go to logging.file, or are discarded when it is unset.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func runTUI(cmd *cobra.Command, _ []string) error {
	if cfg.Logging.File != "" {
		closer, err := logger.SetupFile(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return &configError{err: err}
		}
		defer closer.Close()
	} else {
		logger.Setup(io.Discard, cfg.Logging.Level, cfg.Logging.Format)
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.close()
	cmd.PrintErrln("building index...")
	if _, err := a.prepare(cmd.Context()); err != nil {
		return err
	}

	_, err = tea.NewProgram(tui.New(a.svc), tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}
