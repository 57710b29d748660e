package store

import (
	"sync"
	"testing"
)

func TestStoreMessageSequences(t *testing.T) {
	db := testDB(t)
	s, _ := db.CreateSession("/tmp/p")

	const n = 5
	for i := 0; i < n; i++ {
		m, err := db.StoreMessage(s.ID, RoleUser, "hello", nil)
		if err != nil {
			t.Fatalf("StoreMessage %d: %v", i, err)
		}
		if m.Sequence != i {
			t.Errorf("Sequence = %d, want %d", m.Sequence, i)
		}
	}

	msgs, err := db.SessionMessages(s.ID)
	if err != nil {
		t.Fatalf("SessionMessages: %v", err)
	}
	if len(msgs) != n {
		t.Fatalf("got %d messages, want %d", len(msgs), n)
	}
	for i, m := range msgs {
		if m.Sequence != i {
			t.Errorf("msgs[%d].Sequence = %d, want %d", i, m.Sequence, i)
		}
	}
}

func TestStoreMessageConcurrent(t *testing.T) {
	db := testDB(t)
	s, _ := db.CreateSession("/tmp/p")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.StoreMessage(s.ID, RoleUser, "x", nil); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("StoreMessage: %v", err)
	}

	msgs, err := db.SessionMessages(s.ID)
	if err != nil {
		t.Fatalf("SessionMessages: %v", err)
	}
	if len(msgs) != n {
		t.Fatalf("got %d messages, want %d", len(msgs), n)
	}
	// Sequences must be exactly [0, n) with no gaps or duplicates
	for i, m := range msgs {
		if m.Sequence != i {
			t.Errorf("msgs[%d].Sequence = %d, want %d", i, m.Sequence, i)
		}
	}
}

func TestStoreMessageUnknownSession(t *testing.T) {
	db := testDB(t)

	_, err := db.StoreMessage("nope", RoleUser, "hello", nil)
	if err == nil || !IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestStoreMessageBadRole(t *testing.T) {
	db := testDB(t)
	s, _ := db.CreateSession("/tmp/p")

	_, err := db.StoreMessage(s.ID, "robot", "hello", nil)
	if err == nil || !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestStoreMessageOptions(t *testing.T) {
	db := testDB(t)
	s, _ := db.CreateSession("/tmp/p")

	m, err := db.StoreMessage(s.ID, RoleAssistant, "done", &MessageOpts{
		Model:    "gpt-4o-mini",
		ToolCall: `{"name":"read_file"}`,
	})
	if err != nil {
		t.Fatalf("StoreMessage: %v", err)
	}

	msgs, _ := db.SessionMessages(s.ID)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].ID != m.ID {
		t.Errorf("ID = %s, want %s", msgs[0].ID, m.ID)
	}
	if msgs[0].Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want gpt-4o-mini", msgs[0].Model)
	}
	if msgs[0].ToolCall == "" {
		t.Error("ToolCall should be set")
	}
}

func TestSessionsOwnMessagesExclusively(t *testing.T) {
	db := testDB(t)
	s1, _ := db.CreateSession("/tmp/a")
	s2, _ := db.CreateSession("/tmp/b")

	db.StoreMessage(s1.ID, RoleUser, "one", nil)
	db.StoreMessage(s2.ID, RoleUser, "two", nil)
	db.StoreMessage(s1.ID, RoleAssistant, "three", nil)

	msgs, _ := db.SessionMessages(s1.ID)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages for s1, want 2", len(msgs))
	}
	// Each session numbers independently from zero
	if msgs[0].Sequence != 0 || msgs[1].Sequence != 1 {
		t.Errorf("sequences = %d,%d, want 0,1", msgs[0].Sequence, msgs[1].Sequence)
	}
}

func TestStats(t *testing.T) {
	db := testDB(t)
	s, _ := db.CreateSession("/tmp/p")

	db.StoreMessage(s.ID, RoleUser, "Hello!", nil)
	db.StoreMessage(s.ID, RoleAssistant, "Hi there!", nil)

	stats, err := db.Stats(s.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.ByRole[RoleUser] != 1 {
		t.Errorf("user count = %d, want 1", stats.ByRole[RoleUser])
	}
	if stats.ByRole[RoleAssistant] != 1 {
		t.Errorf("assistant count = %d, want 1", stats.ByRole[RoleAssistant])
	}
	if stats.ToolCalls != 0 {
		t.Errorf("ToolCalls = %d, want 0", stats.ToolCalls)
	}
}

func TestStatsCountsToolCalls(t *testing.T) {
	db := testDB(t)
	s, _ := db.CreateSession("/tmp/p")

	db.StoreMessage(s.ID, RoleAssistant, "running", &MessageOpts{ToolCall: `{"name":"bash"}`})
	db.StoreMessage(s.ID, RoleTool, "output", &MessageOpts{ToolResult: `{"ok":true}`})

	stats, err := db.Stats(s.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ToolCalls != 1 {
		t.Errorf("ToolCalls = %d, want 1", stats.ToolCalls)
	}
	if stats.ByRole[RoleTool] != 1 {
		t.Errorf("tool count = %d, want 1", stats.ByRole[RoleTool])
	}
}
