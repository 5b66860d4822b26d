// Package reconcile merges the remote calendar's event stream into the
// single published events view.
//
// Reconciliation replaces the published view with a freshly fetched,
// translated remote snapshot. While a calendar is connected the view
// contains only remote-origin events for the selected calendar; purely
// local events are superseded and do not get merged back in.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/soulsync-app/soulsync/internal/gcal"
	"github.com/soulsync-app/soulsync/internal/session"
	"github.com/soulsync-app/soulsync/internal/settings"
	"github.com/soulsync-app/soulsync/internal/store"
	"github.com/soulsync-app/soulsync/internal/types"
)

// Remote is the calendar surface the reconciler pulls from and pushes to.
// gcal.Adapter is the production implementation; tests substitute fakes.
type Remote interface {
	ListEvents(ctx context.Context, token, calendarID string) ([]types.CalendarEvent, error)
	ListCalendars(ctx context.Context, token string) ([]types.CalendarSummary, error)
	CreateEvent(ctx context.Context, token, calendarID string, draft types.EventDraft) (string, error)
	PatchEvent(ctx context.Context, token, calendarID, eventID string, patch types.EventPatch) error
	DeleteEvent(ctx context.Context, token, calendarID, eventID string) error
}

// Status is the externally visible sync state.
type Status struct {
	Connected  bool      `json:"connected"`
	Syncing    bool      `json:"syncing"`
	CalendarID string    `json:"calendar_id"`
	LastSyncAt time.Time `json:"last_sync_at,omitzero"`
}

// Reconciler keeps the published events view consistent with the selected
// remote calendar.
type Reconciler struct {
	remote   Remote
	session  *session.Controller
	settings *settings.Store
	store    *store.Store
	logger   *log.Logger

	mu          sync.Mutex
	syncing     bool
	pendingSync bool
	events      []types.CalendarEvent
	calendars   []types.CalendarSummary
	lastSyncAt  time.Time
	onEvents    []func([]types.CalendarEvent)
	onStatus    []func(Status)
}

// New wires the reconciler to its collaborators and registers the
// automatic sync triggers: first successful connection, and every change
// of the selected calendar.
func New(remote Remote, sess *session.Controller, sel *settings.Store, st *store.Store, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(os.Stderr, "[reconcile] ", log.LstdFlags)
	}

	r := &Reconciler{
		remote:   remote,
		session:  sess,
		settings: sel,
		store:    st,
		logger:   logger,
	}

	sess.OnStateChange(func(s session.State) {
		if s == session.StateConnected {
			go func() {
				if err := r.RefreshCalendars(context.Background()); err != nil {
					r.logger.Printf("Calendar list refresh failed: %v", err)
				}
				if err := r.Sync(context.Background()); err != nil {
					r.logger.Printf("Sync after connect failed: %v", err)
				}
			}()
			return
		}
		// Disconnection keeps the already-published events; only the
		// status indicator changes.
		r.notifyStatus()
	})

	sel.OnChange(func(id string) {
		if !sess.Connected() {
			return
		}
		go func() {
			if err := r.Sync(context.Background()); err != nil {
				r.logger.Printf("Sync after calendar change failed: %v", err)
			}
		}()
	})

	return r
}

// Sync pulls the remote window and republishes the events view.
//
// Sync never runs concurrently with itself: a request arriving while one
// is in flight is coalesced into a single follow-up run. A failed sync
// leaves the previously published events untouched, and the syncing flag
// is always cleared.
func (r *Reconciler) Sync(ctx context.Context) error {
	r.mu.Lock()
	if r.syncing {
		r.pendingSync = true
		r.mu.Unlock()
		return nil
	}
	r.syncing = true
	r.mu.Unlock()
	r.notifyStatus()

	var rerun bool
	defer func() {
		r.mu.Lock()
		r.syncing = false
		rerun = r.pendingSync
		r.pendingSync = false
		r.mu.Unlock()
		r.notifyStatus()
		if rerun {
			go func() {
				if err := r.Sync(context.Background()); err != nil {
					r.logger.Printf("Coalesced sync failed: %v", err)
				}
			}()
		}
	}()

	return r.syncOnce(ctx)
}

func (r *Reconciler) syncOnce(ctx context.Context) error {
	token, err := r.session.Credential(ctx)
	if err != nil {
		return err
	}

	calendarID := r.settings.Selected()
	remote, err := r.remote.ListEvents(ctx, token, calendarID)
	if err != nil {
		if errors.Is(err, gcal.ErrAuthExpired) {
			r.session.NotifyAuthExpired()
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	types.SortEvents(remote)

	r.mu.Lock()
	r.events = remote
	r.lastSyncAt = time.Now()
	r.mu.Unlock()

	r.logger.Printf("Synced %d events from %s", len(remote), calendarID)
	r.notifyEvents()
	return nil
}

// RefreshCalendars reloads the calendar list and repairs the selection
// when the stored id is no longer visible: configured default first, then
// the primary calendar, then the first one listed.
func (r *Reconciler) RefreshCalendars(ctx context.Context) error {
	token, err := r.session.Credential(ctx)
	if err != nil {
		return err
	}

	calendars, err := r.remote.ListCalendars(ctx, token)
	if err != nil {
		if errors.Is(err, gcal.ErrAuthExpired) {
			r.session.NotifyAuthExpired()
		}
		return fmt.Errorf("calendar list failed: %w", err)
	}

	r.mu.Lock()
	r.calendars = calendars
	r.mu.Unlock()

	if len(calendars) == 0 {
		return nil
	}

	selected := r.settings.Selected()
	for _, cal := range calendars {
		if cal.ID == selected {
			return nil
		}
	}

	fallback := calendars[0]
	for _, cal := range calendars {
		if cal.Primary {
			fallback = cal
			break
		}
	}
	r.logger.Printf("Selected calendar %q not visible; falling back to %q", selected, fallback.ID)
	return r.settings.Select(fallback.ID)
}

// AddEvent validates local input, creates the remote event and resyncs.
func (r *Reconciler) AddEvent(ctx context.Context, draft types.EventDraft) error {
	if err := draft.Validate(); err != nil {
		return err
	}
	if draft.ColorTag == "" {
		draft.ColorTag = gcal.DefaultColorTag
	}

	token, err := r.session.Credential(ctx)
	if err != nil {
		return err
	}

	if _, err := r.remote.CreateEvent(ctx, token, r.settings.Selected(), draft); err != nil {
		if errors.Is(err, gcal.ErrAuthExpired) {
			r.session.NotifyAuthExpired()
		}
		return err
	}
	return r.Sync(ctx)
}

// UpdateEvent applies a partial change to a remote event and resyncs.
func (r *Reconciler) UpdateEvent(ctx context.Context, eventID string, patch types.EventPatch) error {
	token, err := r.session.Credential(ctx)
	if err != nil {
		return err
	}

	if err := r.remote.PatchEvent(ctx, token, r.settings.Selected(), eventID, patch); err != nil {
		if errors.Is(err, gcal.ErrAuthExpired) {
			r.session.NotifyAuthExpired()
		}
		return err
	}
	return r.Sync(ctx)
}

// DeleteEvent removes a remote event and resyncs.
func (r *Reconciler) DeleteEvent(ctx context.Context, eventID string) error {
	token, err := r.session.Credential(ctx)
	if err != nil {
		return err
	}

	if err := r.remote.DeleteEvent(ctx, token, r.settings.Selected(), eventID); err != nil {
		if errors.Is(err, gcal.ErrAuthExpired) {
			r.session.NotifyAuthExpired()
		}
		return err
	}
	return r.Sync(ctx)
}

// Events returns a copy of the published events view.
func (r *Reconciler) Events() []types.CalendarEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.CalendarEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Calendars returns the last loaded calendar list.
func (r *Reconciler) Calendars() []types.CalendarSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.CalendarSummary, len(r.calendars))
	copy(out, r.calendars)
	return out
}

// Status reports the current connection and sync state.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	syncing := r.syncing
	last := r.lastSyncAt
	r.mu.Unlock()

	return Status{
		Connected:  r.session.Connected(),
		Syncing:    syncing,
		CalendarID: r.settings.Selected(),
		LastSyncAt: last,
	}
}

// Reset clears the published events view. Used on sign-out; auth expiry
// does NOT reset, it only flips the status indicator.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.events = nil
	r.calendars = nil
	r.lastSyncAt = time.Time{}
	r.mu.Unlock()
	r.notifyEvents()
	r.notifyStatus()
}

// OnEvents registers a listener for published snapshots.
func (r *Reconciler) OnEvents(fn func([]types.CalendarEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvents = append(r.onEvents, fn)
}

// OnStatus registers a listener for status changes.
func (r *Reconciler) OnStatus(fn func(Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStatus = append(r.onStatus, fn)
}

func (r *Reconciler) notifyEvents() {
	snapshot := r.Events()
	r.mu.Lock()
	listeners := make([]func([]types.CalendarEvent), len(r.onEvents))
	copy(listeners, r.onEvents)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (r *Reconciler) notifyStatus() {
	status := r.Status()
	r.mu.Lock()
	listeners := make([]func(Status), len(r.onStatus))
	copy(listeners, r.onStatus)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(status)
	}
}
