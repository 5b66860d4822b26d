package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/soulsync-app/soulsync/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTaskCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task := &types.Task{Content: "Buy groceries", Status: types.StatusTodo, Owner: "Austin"}
	if err := s.InsertTask(ctx, task); err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
	if task.ID == "" {
		t.Fatal("InsertTask should assign an id")
	}
	if task.Order == 0 {
		t.Fatal("InsertTask should assign a sort order")
	}

	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Content != "Buy groceries" || got.Owner != "Austin" {
		t.Errorf("round trip mismatch: %+v", got)
	}

	status := types.StatusDone
	updated, err := s.UpdateTask(ctx, task.ID, TaskUpdate{Status: &status})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Status != types.StatusDone {
		t.Errorf("status = %q, want done", updated.Status)
	}

	if err := s.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := s.GetTask(ctx, task.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestTaskReminderRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task := &types.Task{Content: "Call mom", Status: types.StatusTodo, Owner: "Angie"}
	if err := s.InsertTask(ctx, task); err != nil {
		t.Fatalf("InsertTask: %v", err)
	}

	remind := time.Date(2026, 9, 10, 9, 0, 0, 0, time.Local)
	if _, err := s.UpdateTask(ctx, task.ID, TaskUpdate{Reminder: &remind}); err != nil {
		t.Fatalf("set reminder: %v", err)
	}

	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Reminder == nil || !got.Reminder.Equal(remind) {
		t.Errorf("reminder = %v, want %v", got.Reminder, remind)
	}

	if _, err := s.UpdateTask(ctx, task.ID, TaskUpdate{ClearReminder: true}); err != nil {
		t.Fatalf("clear reminder: %v", err)
	}
	got, _ = s.GetTask(ctx, task.ID)
	if got.Reminder != nil {
		t.Error("reminder should be cleared")
	}
}

func TestSwapTaskOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := &types.Task{Content: "first", Status: types.StatusTodo, Owner: "Shared", Order: 100}
	b := &types.Task{Content: "second", Status: types.StatusTodo, Owner: "Shared", Order: 200}
	c := &types.Task{Content: "third", Status: types.StatusTodo, Owner: "Shared", Order: 300}
	for _, task := range []*types.Task{a, b, c} {
		if err := s.InsertTask(ctx, task); err != nil {
			t.Fatalf("InsertTask: %v", err)
		}
	}

	if err := s.SwapTaskOrder(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("SwapTaskOrder: %v", err)
	}

	tasks, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	if tasks[0].ID != b.ID || tasks[1].ID != a.ID || tasks[2].ID != c.ID {
		t.Errorf("order after swap: %s, %s, %s", tasks[0].Content, tasks[1].Content, tasks[2].Content)
	}

	// The untouched neighbor keeps its key; nothing is renumbered.
	if tasks[2].Order != 300 {
		t.Errorf("third task order = %d, want 300", tasks[2].Order)
	}

	if err := s.SwapTaskOrder(ctx, a.ID, "missing"); err != ErrNotFound {
		t.Errorf("swap with missing task: got %v, want ErrNotFound", err)
	}
}

func TestSubscribeDeliversLatestSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ch, cancel := s.Subscribe(CollectionTasks)
	defer cancel()

	// Burst of writes; the subscriber only needs the newest state.
	for i := 0; i < 5; i++ {
		task := &types.Task{Content: "task", Status: types.StatusTodo, Owner: "Shared", Order: int64(i + 1)}
		if err := s.InsertTask(ctx, task); err != nil {
			t.Fatalf("InsertTask: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			tasks, ok := snap.Items.([]types.Task)
			if !ok {
				t.Fatalf("unexpected snapshot payload %T", snap.Items)
			}
			if len(tasks) == 5 {
				return
			}
		case <-deadline:
			t.Fatal("never received the final snapshot")
		}
	}
}

func TestReflectionsSortedNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, date := range []string{"2026-01-02", "2026-01-04", "2026-01-03"} {
		r := &types.Reflection{
			UserID:   "austin",
			UserName: "Austin",
			Date:     date,
			Feelings: []string{"grateful"},
		}
		if err := s.SaveReflection(ctx, r); err != nil {
			t.Fatalf("SaveReflection: %v", err)
		}
	}

	reflections, err := s.ListReflections(ctx)
	if err != nil {
		t.Fatalf("ListReflections: %v", err)
	}
	want := []string{"2026-01-04", "2026-01-03", "2026-01-02"}
	for i, date := range want {
		if reflections[i].Date != date {
			t.Errorf("position %d: date = %s, want %s", i, reflections[i].Date, date)
		}
	}
}

func TestDinnerPlanUpsertByDay(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	plan := &types.DinnerPlan{ID: "2026-05-01", Plan: "Pasta"}
	if err := s.SaveDinnerPlan(ctx, plan); err != nil {
		t.Fatalf("SaveDinnerPlan: %v", err)
	}

	plan.Plan = "Pizza"
	plan.ExternalEventID = "remote-1"
	if err := s.SaveDinnerPlan(ctx, plan); err != nil {
		t.Fatalf("SaveDinnerPlan (second): %v", err)
	}

	got, err := s.GetDinnerPlan(ctx, "2026-05-01")
	if err != nil {
		t.Fatalf("GetDinnerPlan: %v", err)
	}
	if got.Plan != "Pizza" || got.ExternalEventID != "remote-1" {
		t.Errorf("upsert mismatch: %+v", got)
	}

	plans, err := s.ListDinnerPlans(ctx)
	if err != nil {
		t.Fatalf("ListDinnerPlans: %v", err)
	}
	if len(plans) != 1 {
		t.Errorf("same-day saves should overwrite, got %d plans", len(plans))
	}
}

func TestChatHistoryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	history, err := s.ChatHistory(ctx)
	if err != nil {
		t.Fatalf("ChatHistory (empty): %v", err)
	}
	if len(history) != 0 {
		t.Errorf("fresh store should have no history, got %d", len(history))
	}

	msgs := []types.ChatMessage{
		{Role: "user", Text: "what's for dinner friday?"},
		{Role: "model", Text: "Tacos at 6:30."},
	}
	if err := s.SaveChatHistory(ctx, msgs); err != nil {
		t.Fatalf("SaveChatHistory: %v", err)
	}

	history, err = s.ChatHistory(ctx)
	if err != nil {
		t.Fatalf("ChatHistory: %v", err)
	}
	if len(history) != 2 || history[1].Role != "model" {
		t.Errorf("history mismatch: %+v", history)
	}
}
