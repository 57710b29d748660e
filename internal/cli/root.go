package cli

import (
	"github.com/spf13/cobra"

	"github.com/lazypower/recall/internal/config"
	"github.com/lazypower/recall/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Local conversational coding assistant with persistent memory",
	Long:  "Recall keeps a durable conversation log per project and a decaying store of learned facts. Single Go binary, local SQLite.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(serveCmd)
}

// openDB opens the database for CLI commands, honoring RECALL_DB.
func openDB() (*store.DB, error) {
	cfg := config.Load()
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}
