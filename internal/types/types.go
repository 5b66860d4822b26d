// Package types provides the shared data structures for soulsync.
//
// Documents stored in the local store carry a locally generated id; records
// that are mirrored to Google carry the remote system's id in a separate
// field (ExternalTaskID, ExternalEventID) so future mirror calls can be
// routed without guessing.
package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TaskStatus is the kanban column a task lives in.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "inprogress"
	StatusDone       TaskStatus = "done"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// OwnerShared marks a task owned by both partners.
const OwnerShared = "Shared"

// Task is a shared task-board card.
//
// Order is a sortable integer used for manual reordering via pairwise swap.
// Repeated swaps never renumber the whole list, so order values may drift
// close together; display code breaks ties by ID ascending.
type Task struct {
	ID             string     `json:"id"`
	ExternalTaskID string     `json:"external_task_id,omitempty"`
	Content        string     `json:"content"`
	Status         TaskStatus `json:"status"`
	Owner          string     `json:"owner"`
	Order          int64      `json:"order"`
	Reminder       *time.Time `json:"reminder,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Validate checks the task's required fields.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Content) == "" {
		return fmt.Errorf("content is required")
	}
	if !t.Status.Valid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if t.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	return nil
}

// EventOrigin records which system created a calendar event.
type EventOrigin string

const (
	OriginLocal  EventOrigin = "local"
	OriginRemote EventOrigin = "remote"
)

// CalendarEvent is a single entry in the published calendar view.
//
// Date is a calendar day ("2006-01-02"); Time, when present, is local
// wall-clock "15:04" with no offset stored. While a Google calendar is
// connected the published view contains only remote-origin events for the
// selected calendar.
type CalendarEvent struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Date      string      `json:"date"`
	Time      string      `json:"time,omitempty"`
	ColorTag  string      `json:"color_tag"`
	Origin    EventOrigin `json:"origin"`
	CreatedAt time.Time   `json:"created_at"`
}

// Validate checks the event's required fields.
func (e *CalendarEvent) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if _, err := time.Parse("2006-01-02", e.Date); err != nil {
		return fmt.Errorf("invalid date %q: %w", e.Date, err)
	}
	if e.Time != "" {
		if _, err := time.Parse("15:04", e.Time); err != nil {
			return fmt.Errorf("invalid time %q: %w", e.Time, err)
		}
	}
	return nil
}

// SortEvents orders events for display: ascending by date, untimed events
// before timed events on the same day, then title as the final tie-break.
func SortEvents(events []CalendarEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if (a.Time == "") != (b.Time == "") {
			return a.Time == ""
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.Title < b.Title
	})
}

// Reflection is one partner's daily journal entry.
type Reflection struct {
	ID                  string             `json:"id"`
	UserID              string             `json:"user_id"`
	UserName            string             `json:"user_name"`
	Date                string             `json:"date"` // YYYY-MM-DD
	Feelings            []string           `json:"feelings,omitempty"`
	GodRelationship     []string           `json:"god_relationship,omitempty"`
	PartnerRelationship []string           `json:"partner_relationship,omitempty"`
	PrayerRequest       string             `json:"prayer_request,omitempty"`
	Gratitude           string             `json:"gratitude,omitempty"`
	Intention           string             `json:"intention,omitempty"`
	LoveNeed            string             `json:"love_need,omitempty"`
	ImageURL            string             `json:"image_url,omitempty"`
	Evening             *EveningReflection `json:"evening,omitempty"`
	Summary             *ReflectionSummary `json:"summary,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// EveningReflection is the end-of-day portion of a reflection.
type EveningReflection struct {
	Rating    int      `json:"rating,omitempty"`
	Highlight string   `json:"highlight,omitempty"`
	Missed    []string `json:"missed,omitempty"` // task ids skipped today
	InWord    bool     `json:"in_word,omitempty"`
	Scripture string   `json:"scripture,omitempty"`
	Takeaways []string `json:"takeaways,omitempty"`
}

// ReflectionSummary is an AI-generated digest of a reflection.
type ReflectionSummary struct {
	Sentiment    string   `json:"sentiment,omitempty"`
	KeyTopics    []string `json:"key_topics,omitempty"`
	ScriptureRef string   `json:"scripture_ref,omitempty"`
	Stars        int      `json:"stars,omitempty"`
}

// Validate checks the reflection's required fields.
func (r *Reflection) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return fmt.Errorf("invalid date %q: %w", r.Date, err)
	}
	return nil
}

// DinnerPlan is the household's plan for a single evening. The document id
// is the calendar day, so saving twice for the same day overwrites.
type DinnerPlan struct {
	ID              string    `json:"id"` // YYYY-MM-DD
	Plan            string    `json:"plan"`
	Cuisine         string    `json:"cuisine,omitempty"`
	WhosCooking     string    `json:"whos_cooking,omitempty"`
	Groceries       []string  `json:"groceries,omitempty"`
	Location        string    `json:"location,omitempty"`
	Time            string    `json:"time,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedBy       string    `json:"created_by,omitempty"`
	ExternalEventID string    `json:"external_event_id,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate checks the plan's required fields.
func (p *DinnerPlan) Validate() error {
	if _, err := time.Parse("2006-01-02", p.ID); err != nil {
		return fmt.Errorf("plan id must be a calendar day: %w", err)
	}
	if strings.TrimSpace(p.Plan) == "" {
		return fmt.Errorf("plan text is required")
	}
	return nil
}

// DinnerPreferences records one partner's standing food preferences.
// The document id is the owning user id.
type DinnerPreferences struct {
	ID            string   `json:"id"`
	CuisinesLiked []string `json:"cuisines_liked,omitempty"`
	CuisinesAvoid []string `json:"cuisines_avoid,omitempty"`
	Dietary       []string `json:"dietary,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// FeatureFeedback is an in-app suggestion from either partner.
type FeatureFeedback struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Status    string    `json:"status"` // new, in-progress, completed
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is one turn of the assistant conversation.
type ChatMessage struct {
	Role string `json:"role"` // user or model
	Text string `json:"text"`
}

// CalendarSummary describes one calendar visible to the credential.
type CalendarSummary struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	Primary    bool   `json:"primary"`
	AccessRole string `json:"access_role"`
}

// Identity is the authenticated user.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}
