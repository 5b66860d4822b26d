package types

import (
	"testing"
)

func TestSortEvents(t *testing.T) {
	events := []CalendarEvent{
		{ID: "e1", Title: "Dentist", Date: "2026-03-02", Time: "09:00"},
		{ID: "e2", Title: "Anniversary", Date: "2026-03-02"},
		{ID: "e3", Title: "Brunch", Date: "2026-03-01", Time: "11:00"},
		{ID: "e4", Title: "Coffee", Date: "2026-03-02", Time: "09:00"},
		{ID: "e5", Title: "Trash day", Date: "2026-03-02"},
	}

	SortEvents(events)

	// Date ascending, untimed before timed on the same day, then time,
	// then title.
	want := []string{"e3", "e2", "e5", "e4", "e1"}
	for i, id := range want {
		if events[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, events[i].ID, id)
		}
	}
}

func TestSortEventsStable(t *testing.T) {
	events := []CalendarEvent{
		{ID: "a", Title: "Same", Date: "2026-01-01", Time: "10:00"},
		{ID: "b", Title: "Same", Date: "2026-01-01", Time: "10:00"},
	}
	SortEvents(events)
	if events[0].ID != "a" || events[1].ID != "b" {
		t.Error("fully tied events should keep their original order")
	}
}

func TestTaskValidate(t *testing.T) {
	valid := Task{Content: "Buy flowers", Status: StatusTodo, Owner: "Austin"}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid task rejected: %v", err)
	}

	cases := []struct {
		name string
		task Task
	}{
		{"empty content", Task{Content: "  ", Status: StatusTodo, Owner: "Austin"}},
		{"bad status", Task{Content: "x", Status: "someday", Owner: "Austin"}},
		{"no owner", Task{Content: "x", Status: StatusTodo}},
	}
	for _, tc := range cases {
		if err := tc.task.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestCalendarEventValidate(t *testing.T) {
	ev := CalendarEvent{Title: "Date night", Date: "2026-02-14", Time: "19:30"}
	if err := ev.Validate(); err != nil {
		t.Errorf("valid event rejected: %v", err)
	}

	ev = CalendarEvent{Title: "Date night", Date: "02/14/2026"}
	if err := ev.Validate(); err == nil {
		t.Error("expected error for non-ISO date")
	}

	ev = CalendarEvent{Title: "Date night", Date: "2026-02-14", Time: "7pm"}
	if err := ev.Validate(); err == nil {
		t.Error("expected error for non-24h time")
	}
}

func TestEventPatchEmpty(t *testing.T) {
	var p EventPatch
	if !p.Empty() {
		t.Error("zero patch should be empty")
	}

	empty := ""
	p.Time = &empty
	if p.Empty() {
		t.Error("a set field should make the patch non-empty, even when blank")
	}
}

func TestDinnerPlanValidate(t *testing.T) {
	plan := DinnerPlan{ID: "2026-04-01", Plan: "Tacos"}
	if err := plan.Validate(); err != nil {
		t.Errorf("valid plan rejected: %v", err)
	}

	plan = DinnerPlan{ID: "april-1", Plan: "Tacos"}
	if err := plan.Validate(); err == nil {
		t.Error("expected error for non-day id")
	}
}
