package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lazypower/recall/internal/decay"
	"github.com/lazypower/recall/internal/store"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage the decaying memory store",
}

var (
	memAddType     string
	memAddStrength float64
	memAddSession  string
)

var memoryAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Record a new memory",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryAdd,
}

var reviewThreshold float64

var memoryReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List memories due for review, weakest first",
	RunE:  runMemoryReview,
}

var memoryTouchCmd = &cobra.Command{
	Use:   "touch <memory-id>",
	Short: "Mark a memory reviewed, resetting its strength",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryTouch,
}

var memoryDecayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Recompute stored strengths for all memories",
	RunE:  runMemoryDecay,
}

func init() {
	memoryAddCmd.Flags().StringVar(&memAddType, "type", store.MemFact, "memory type (interaction, episode, theme, archetype, fact, preference)")
	memoryAddCmd.Flags().Float64Var(&memAddStrength, "strength", 1.0, "initial strength in [0.0, 1.0]")
	memoryAddCmd.Flags().StringVar(&memAddSession, "session", "", "owning session id (optional)")
	memoryReviewCmd.Flags().Float64Var(&reviewThreshold, "threshold", 0.3, "strength below which a memory is due for review")

	memoryCmd.AddCommand(memoryAddCmd)
	memoryCmd.AddCommand(memoryReviewCmd)
	memoryCmd.AddCommand(memoryTouchCmd)
	memoryCmd.AddCommand(memoryDecayCmd)
}

func runMemoryAdd(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	m := &store.Memory{
		SessionID:       memAddSession,
		Type:            memAddType,
		Content:         args[0],
		InitialStrength: memAddStrength,
	}
	if err := db.CreateMemory(m); err != nil {
		return err
	}
	fmt.Printf("created %s memory %s (decay rate %.2f/h)\n", m.Type, m.ID, m.DecayRate)
	return nil
}

func runMemoryReview(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := decay.New(db, zerolog.Nop())
	due, err := engine.NeedingReview(reviewThreshold, time.Now())
	if err != nil {
		return err
	}
	if len(due) == 0 {
		fmt.Println("nothing due for review")
		return nil
	}
	for _, m := range due {
		fmt.Printf("%.3f  %-11s  %s  %s\n", m.CurrentStrength, m.Type, m.ID, truncate(m.Content, 80))
	}
	return nil
}

func runMemoryTouch(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.TouchMemory(args[0]); err != nil {
		return err
	}
	fmt.Printf("reviewed memory %s\n", args[0])
	return nil
}

func runMemoryDecay(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := decay.New(db, zerolog.Nop())
	updated, err := engine.UpdateAllStrengths(time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("updated %d memories\n", updated)
	return nil
}
