package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lazypower/recall/internal/store"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active sessions",
	RunE:  runSessionList,
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create <project-path>",
	Short: "Create a new session for a project path",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionCreate,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's stats and recent messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionArchiveCmd = &cobra.Command{
	Use:   "archive <session-id>",
	Short: "Archive a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionArchive,
}

func init() {
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionArchiveCmd)
}

func runSessionList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := db.ActiveSessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no active sessions")
		return nil
	}
	for _, s := range sessions {
		created := time.UnixMilli(s.CreatedAt).Format("2006-01-02 15:04")
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s  %s  %s  %s\n", s.ID, created, s.ProjectPath, title)
	}
	return nil
}

func runSessionCreate(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	sess, err := db.CreateSession(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("created session %s for %s\n", sess.ID, sess.ProjectPath)
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	id := args[0]
	if _, err := uuid.Parse(id); err != nil {
		return store.NewValidationError("session_id", "must be a valid UUID")
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	sess, err := db.GetSession(id)
	if err != nil {
		return err
	}
	if sess == nil {
		return store.NewNotFoundError("session", id)
	}

	stats, err := db.Stats(id)
	if err != nil {
		return err
	}
	msgs, err := db.SessionMessages(id)
	if err != nil {
		return err
	}

	fmt.Printf("session:  %s\n", sess.ID)
	fmt.Printf("project:  %s\n", sess.ProjectPath)
	fmt.Printf("status:   %s\n", sess.Status)
	fmt.Printf("created:  %s\n", time.UnixMilli(sess.CreatedAt).Format(time.RFC3339))
	fmt.Printf("messages: %d total", stats.Total)
	for _, role := range []string{store.RoleUser, store.RoleAssistant, store.RoleSystem, store.RoleTool} {
		if n := stats.ByRole[role]; n > 0 {
			fmt.Printf(", %d %s", n, role)
		}
	}
	fmt.Println()
	if stats.ToolCalls > 0 {
		fmt.Printf("tool calls: %d\n", stats.ToolCalls)
	}

	// Show the tail of the transcript.
	const tail = 10
	start := 0
	if len(msgs) > tail {
		start = len(msgs) - tail
		fmt.Printf("\n... %d earlier messages\n", start)
	} else if len(msgs) > 0 {
		fmt.Println()
	}
	for _, m := range msgs[start:] {
		fmt.Printf("[%3d] %-9s %s\n", m.Sequence, m.Role, truncate(m.Content, 100))
	}
	return nil
}

func runSessionArchive(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SetSessionStatus(args[0], store.StatusArchived); err != nil {
		return err
	}
	fmt.Printf("archived session %s\n", args[0])
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
