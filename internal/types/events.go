package types

import (
	"fmt"
	"strings"
	"time"
)

// EventDraft is the local input used to create a calendar event. An empty
// Time makes a date-only (all-day) event.
type EventDraft struct {
	Title    string `json:"title"`
	ColorTag string `json:"color_tag,omitempty"`
	Date     string `json:"date"`
	Time     string `json:"time,omitempty"`
}

// Validate rejects drafts before any network call is made.
func (d *EventDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if _, err := time.Parse("2006-01-02", d.Date); err != nil {
		return fmt.Errorf("invalid date %q: %w", d.Date, err)
	}
	if d.Time != "" {
		if _, err := time.Parse("15:04", d.Time); err != nil {
			return fmt.Errorf("invalid time %q: %w", d.Time, err)
		}
	}
	return nil
}

// EventPatch is a partial change set for an existing event. Nil fields are
// left untouched. A non-nil empty Time converts the event to date-only;
// changing only the date of a timed event preserves its time-of-day (the
// adapter reads the current remote event to recover the unspecified half).
type EventPatch struct {
	Title    *string `json:"title,omitempty"`
	ColorTag *string `json:"color_tag,omitempty"`
	Date     *string `json:"date,omitempty"`
	Time     *string `json:"time,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p *EventPatch) Empty() bool {
	return p.Title == nil && p.ColorTag == nil && p.Date == nil && p.Time == nil
}
