// Package gcal adapts between the local event/task model and the Google
// Calendar and Tasks APIs.
//
// Adapter methods take the access credential per call rather than caching
// it, so a refreshed token takes effect on the next call without rebuilding
// the adapter. Authorization failures are classified as ErrAuthExpired for
// the session to act on; all other failures are reported and leave prior
// in-memory state untouched.
package gcal

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/soulsync-app/soulsync/internal/types"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
	tasksapi "google.golang.org/api/tasks/v1"
)

// maxEventResults caps a single list call.
const maxEventResults = 250

// defaultTaskList is the remote task list mirrored tasks live in.
const defaultTaskList = "@default"

// Adapter talks to Google Calendar v3 and Tasks v1.
type Adapter struct {
	windowDays int
	logger     *log.Logger
}

// New creates an adapter. windowDays bounds ListEvents on each side of
// now; zero or negative means the one year default.
func New(windowDays int, logger *log.Logger) *Adapter {
	if windowDays <= 0 {
		windowDays = 365
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[gcal] ", log.LstdFlags)
	}
	return &Adapter{windowDays: windowDays, logger: logger}
}

func (a *Adapter) calendarService(ctx context.Context, token string) (*calendar.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	svc, err := calendar.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar client: %w", err)
	}
	return svc, nil
}

func (a *Adapter) tasksService(ctx context.Context, token string) (*tasksapi.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	svc, err := tasksapi.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("failed to build tasks client: %w", err)
	}
	return svc, nil
}

// ListEvents returns the selected calendar's events whose start falls
// within the configured window, recurring events expanded to single
// instances, ordered by start time, capped at 250 results.
func (a *Adapter) ListEvents(ctx context.Context, token, calendarID string) ([]types.CalendarEvent, error) {
	svc, err := a.calendarService(ctx, token)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	window := time.Duration(a.windowDays) * 24 * time.Hour

	resp, err := svc.Events.List(calendarID).
		TimeMin(now.Add(-window).Format(time.RFC3339)).
		TimeMax(now.Add(window).Format(time.RFC3339)).
		ShowDeleted(false).
		SingleEvents(true).
		MaxResults(maxEventResults).
		OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		return nil, classify("list events", err)
	}

	events := make([]types.CalendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, eventFromRemote(item))
	}
	return events, nil
}

// ListCalendars returns every calendar visible to the credential.
func (a *Adapter) ListCalendars(ctx context.Context, token string) ([]types.CalendarSummary, error) {
	svc, err := a.calendarService(ctx, token)
	if err != nil {
		return nil, err
	}

	resp, err := svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, classify("list calendars", err)
	}

	calendars := make([]types.CalendarSummary, 0, len(resp.Items))
	for _, item := range resp.Items {
		summary := item.Summary
		if summary == "" {
			summary = item.Id
		}
		role := item.AccessRole
		if role == "" {
			role = "reader"
		}
		calendars = append(calendars, types.CalendarSummary{
			ID:         item.Id,
			Summary:    summary,
			Primary:    item.Primary,
			AccessRole: role,
		})
	}
	return calendars, nil
}

// CreateEvent inserts a new event and returns its remote id.
func (a *Adapter) CreateEvent(ctx context.Context, token, calendarID string, draft types.EventDraft) (string, error) {
	if err := draft.Validate(); err != nil {
		return "", err
	}

	body, err := buildEventBody(draft)
	if err != nil {
		return "", err
	}

	svc, err := a.calendarService(ctx, token)
	if err != nil {
		return "", err
	}

	created, err := svc.Events.Insert(calendarID, body).Context(ctx).Do()
	if err != nil {
		return "", classify("create event", err)
	}

	a.logger.Printf("Created event %s (%s)", created.Id, draft.Title)
	return created.Id, nil
}

// PatchEvent applies a partial change set to an existing event. The current
// remote event is read first so that patching only the date or only the
// time never drops the unspecified half.
func (a *Adapter) PatchEvent(ctx context.Context, token, calendarID, eventID string, patch types.EventPatch) error {
	if patch.Empty() {
		return nil
	}
	if patch.Title != nil {
		probe := types.CalendarEvent{Title: *patch.Title, Date: "2000-01-01"}
		if err := probe.Validate(); err != nil {
			return err
		}
	}

	svc, err := a.calendarService(ctx, token)
	if err != nil {
		return err
	}

	current, err := svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return classify("read event before patch", err)
	}

	body, err := resolvePatchBody(current, patch)
	if err != nil {
		return err
	}

	if _, err := svc.Events.Patch(calendarID, eventID, body).Context(ctx).Do(); err != nil {
		return classify("patch event", err)
	}

	a.logger.Printf("Patched event %s", eventID)
	return nil
}

// DeleteEvent removes an event from the remote calendar.
func (a *Adapter) DeleteEvent(ctx context.Context, token, calendarID, eventID string) error {
	svc, err := a.calendarService(ctx, token)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return classify("delete event", err)
	}
	a.logger.Printf("Deleted event %s", eventID)
	return nil
}
