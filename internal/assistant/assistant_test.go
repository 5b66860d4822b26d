package assistant

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soulsync-app/soulsync/internal/store"
	"github.com/soulsync-app/soulsync/internal/types"
)

type scriptedCompleter struct {
	reply string
	err   error

	lastSystem string
	lastTurns  []types.ChatMessage
}

func (s *scriptedCompleter) Complete(ctx context.Context, system string, turns []types.ChatMessage) (string, error) {
	s.lastSystem = system
	s.lastTurns = turns
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func testAssistant(t *testing.T, c Completer) (*Assistant, *store.Store) {
	t.Helper()
	logger := log.New(os.Stderr, "[test] ", log.LstdFlags)
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewWithCompleter(c, st, "Austin", "Angie", logger), st
}

func TestAskPersistsBothTurns(t *testing.T) {
	c := &scriptedCompleter{reply: "Dinner is at 6:30."}
	a, _ := testAssistant(t, c)
	ctx := context.Background()

	reply, err := a.Ask(ctx, "when is dinner?", nil, nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if reply != "Dinner is at 6:30." {
		t.Errorf("reply = %q", reply)
	}

	history, err := a.History(ctx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "model" {
		t.Errorf("roles = %s, %s", history[0].Role, history[1].Role)
	}
}

func TestAskFoldsScheduleIntoSystemPrompt(t *testing.T) {
	c := &scriptedCompleter{reply: "ok"}
	a, _ := testAssistant(t, c)

	events := []types.CalendarEvent{
		{ID: "e1", Title: "Date night", Date: "2026-02-14", Time: "19:30"},
	}
	tasks := []types.Task{
		{ID: "t1", Content: "Buy flowers", Status: types.StatusTodo, Owner: "Austin"},
	}

	if _, err := a.Ask(context.Background(), "anything planned?", events, tasks); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if !strings.Contains(c.lastSystem, "Date night") {
		t.Error("system prompt should include upcoming events")
	}
	if !strings.Contains(c.lastSystem, "Buy flowers") {
		t.Error("system prompt should include board tasks")
	}
	if !strings.Contains(c.lastSystem, "Austin") || !strings.Contains(c.lastSystem, "Angie") {
		t.Error("system prompt should name both partners")
	}
}

func TestAskFailureLeavesHistoryUntouched(t *testing.T) {
	c := &scriptedCompleter{err: errors.New("model overloaded")}
	a, _ := testAssistant(t, c)
	ctx := context.Background()

	if _, err := a.Ask(ctx, "hello?", nil, nil); err == nil {
		t.Fatal("expected completer error to surface")
	}

	history, err := a.History(ctx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("failed ask must not persist turns, got %d", len(history))
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	a, _ := testAssistant(t, &scriptedCompleter{reply: "ok"})
	if _, err := a.Ask(context.Background(), "   ", nil, nil); err == nil {
		t.Error("expected error for empty question")
	}
}

func TestAskReplaysBoundedHistory(t *testing.T) {
	c := &scriptedCompleter{reply: "ok"}
	a, st := testAssistant(t, c)
	ctx := context.Background()

	long := make([]types.ChatMessage, 0, 30)
	for i := 0; i < 30; i++ {
		long = append(long, types.ChatMessage{Role: "user", Text: "older message"})
	}
	if err := st.SaveChatHistory(ctx, long); err != nil {
		t.Fatalf("SaveChatHistory: %v", err)
	}

	if _, err := a.Ask(ctx, "newest question", nil, nil); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if len(c.lastTurns) != historyLimit+1 {
		t.Errorf("replayed %d turns, want %d", len(c.lastTurns), historyLimit+1)
	}
	if c.lastTurns[len(c.lastTurns)-1].Text != "newest question" {
		t.Error("newest question should be the final turn")
	}
}
