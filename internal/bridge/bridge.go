// Package bridge links the local task board to Google Tasks.
//
// Mirroring is asymmetric by design: creating a task while connected is
// gated on the remote insert succeeding, so every local task created
// during a connected session carries its remote id. Updates and deletes
// go local-first and mirror best-effort; a failed mirror is logged and
// never blocks the local change.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/soulsync-app/soulsync/internal/gcal"
	"github.com/soulsync-app/soulsync/internal/session"
	"github.com/soulsync-app/soulsync/internal/store"
	"github.com/soulsync-app/soulsync/internal/types"
)

// RemoteTasks is the Google Tasks surface. gcal.Adapter is the production
// implementation; tests substitute fakes.
type RemoteTasks interface {
	InsertTask(ctx context.Context, token, title string, status types.TaskStatus) (string, error)
	PatchTask(ctx context.Context, token, taskID, title string, status types.TaskStatus) error
	DeleteTask(ctx context.Context, token, taskID string) error
}

// Direction moves a task within its column.
type Direction string

const (
	MoveUp   Direction = "up"
	MoveDown Direction = "down"
)

// Bridge mediates every task mutation.
type Bridge struct {
	store   *store.Store
	session *session.Controller
	remote  RemoteTasks
	logger  *log.Logger
	parser  *when.Parser
}

// New creates a bridge over the given store and remote.
func New(st *store.Store, sess *session.Controller, remote RemoteTasks, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.New(os.Stderr, "[tasks] ", log.LstdFlags)
	}
	parser := when.New(nil)
	parser.Add(en.All...)
	parser.Add(common.All...)
	return &Bridge{
		store:   st,
		session: sess,
		remote:  remote,
		logger:  logger,
		parser:  parser,
	}
}

// AddTask creates a task. While connected, the remote copy is created
// first and a remote failure aborts the whole operation; no local task is
// written without its mirror. While disconnected the task is local-only.
func (b *Bridge) AddTask(ctx context.Context, task types.Task) (*types.Task, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	if b.session.Connected() {
		token, err := b.session.Credential(ctx)
		if err != nil {
			return nil, err
		}
		remoteID, err := b.remote.InsertTask(ctx, token, task.Content, task.Status)
		if err != nil {
			if errors.Is(err, gcal.ErrAuthExpired) {
				b.session.NotifyAuthExpired()
			}
			return nil, fmt.Errorf("remote task creation failed: %w", err)
		}
		task.ExternalTaskID = remoteID
	}

	if err := b.store.InsertTask(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask applies a local change and mirrors it best-effort.
func (b *Bridge) UpdateTask(ctx context.Context, id string, upd store.TaskUpdate) (*types.Task, error) {
	updated, err := b.store.UpdateTask(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	if upd.Content != nil || upd.Status != nil {
		b.mirrorPatch(ctx, updated)
	}
	return updated, nil
}

// SetStatus moves a task between board columns.
func (b *Bridge) SetStatus(ctx context.Context, id string, status types.TaskStatus) (*types.Task, error) {
	return b.UpdateTask(ctx, id, store.TaskUpdate{Status: &status})
}

// DeleteTask removes a task locally and mirrors the delete best-effort.
func (b *Bridge) DeleteTask(ctx context.Context, id string) error {
	task, err := b.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := b.store.DeleteTask(ctx, id); err != nil {
		return err
	}

	if task.ExternalTaskID == "" || !b.session.Connected() {
		return nil
	}
	token, err := b.session.Credential(ctx)
	if err != nil {
		b.logger.Printf("Warning: task %s deleted locally but mirror skipped: %v", id, err)
		return nil
	}
	if err := b.remote.DeleteTask(ctx, token, task.ExternalTaskID); err != nil {
		if errors.Is(err, gcal.ErrAuthExpired) {
			b.session.NotifyAuthExpired()
		}
		b.logger.Printf("Warning: failed to delete remote task %s: %v", task.ExternalTaskID, err)
	}
	return nil
}

// ReorderTask swaps a task's sort key with its neighbor in the same
// column, in the given direction. Tasks at the edge of their column stay
// put; tasks in other columns are never touched.
func (b *Bridge) ReorderTask(ctx context.Context, id string, dir Direction) error {
	all, err := b.store.ListTasks(ctx)
	if err != nil {
		return err
	}

	var status types.TaskStatus
	found := false
	for _, t := range all {
		if t.ID == id {
			status = t.Status
			found = true
			break
		}
	}
	if !found {
		return store.ErrNotFound
	}

	// Neighbors come from the moved task's column only.
	idx := -1
	var tasks []types.Task
	for _, t := range all {
		if t.Status != status {
			continue
		}
		if t.ID == id {
			idx = len(tasks)
		}
		tasks = append(tasks, t)
	}

	var other int
	switch dir {
	case MoveUp:
		other = idx - 1
	case MoveDown:
		other = idx + 1
	default:
		return fmt.Errorf("unknown direction %q", dir)
	}
	if other < 0 || other >= len(tasks) {
		return nil
	}

	return b.store.SwapTaskOrder(ctx, id, tasks[other].ID)
}

// SetReminder parses a natural-language time phrase ("tomorrow 9am",
// "friday evening") and attaches it to the task. An empty phrase clears
// the reminder.
func (b *Bridge) SetReminder(ctx context.Context, id, phrase string) (*types.Task, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return b.store.UpdateTask(ctx, id, store.TaskUpdate{ClearReminder: true})
	}

	result, err := b.parser.Parse(phrase, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to parse reminder: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("could not understand reminder time %q", phrase)
	}

	return b.store.UpdateTask(ctx, id, store.TaskUpdate{Reminder: &result.Time})
}

// Tasks returns the board in display order.
func (b *Bridge) Tasks(ctx context.Context) ([]types.Task, error) {
	return b.store.ListTasks(ctx)
}

func (b *Bridge) mirrorPatch(ctx context.Context, task *types.Task) {
	if task.ExternalTaskID == "" || !b.session.Connected() {
		return
	}
	token, err := b.session.Credential(ctx)
	if err != nil {
		b.logger.Printf("Warning: task %s updated locally but mirror skipped: %v", task.ID, err)
		return
	}
	if err := b.remote.PatchTask(ctx, token, task.ExternalTaskID, task.Content, task.Status); err != nil {
		if errors.Is(err, gcal.ErrAuthExpired) {
			b.session.NotifyAuthExpired()
		}
		b.logger.Printf("Warning: failed to mirror task %s: %v", task.ID, err)
	}
}
