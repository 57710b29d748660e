package cli

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lazypower/recall/internal/chat"
	"github.com/lazypower/recall/internal/config"
	"github.com/lazypower/recall/internal/llm"
)

var tuiCmd = &cobra.Command{
	Use:   "tui [project-path]",
	Short: "Open the interactive chat for a project",
	Long:  "Opens the active session for the given project path, creating one if none exists. Defaults to the current directory.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	projectPath := ""
	if len(args) > 0 {
		projectPath = args[0]
	}
	if projectPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		projectPath = wd
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	sess, err := db.OpenForPath(projectPath)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	cfg := config.Load()
	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		// Missing API key degrades to persistence-only chat; anything
		// else is a real configuration problem.
		if !errors.Is(err, llm.ErrNoAPIKey) {
			return err
		}
		client = nil
	}

	model, err := chat.New(db, sess, client, cfg.LLM)
	if err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
