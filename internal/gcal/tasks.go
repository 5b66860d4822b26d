package gcal

import (
	"context"

	"github.com/soulsync-app/soulsync/internal/types"
	tasksapi "google.golang.org/api/tasks/v1"
)

// Remote task status values. The local board has three columns but Google
// Tasks only knows two states, so todo and inprogress both map to
// needsAction.
const (
	remoteStatusDone = "completed"
	remoteStatusOpen = "needsAction"
)

// RemoteTaskStatus maps a board status to its Google Tasks equivalent.
func RemoteTaskStatus(s types.TaskStatus) string {
	if s == types.StatusDone {
		return remoteStatusDone
	}
	return remoteStatusOpen
}

// InsertTask creates a task on the default remote list and returns its id.
func (a *Adapter) InsertTask(ctx context.Context, token, title string, status types.TaskStatus) (string, error) {
	svc, err := a.tasksService(ctx, token)
	if err != nil {
		return "", err
	}

	created, err := svc.Tasks.Insert(defaultTaskList, &tasksapi.Task{
		Title:  title,
		Status: RemoteTaskStatus(status),
	}).Context(ctx).Do()
	if err != nil {
		return "", classify("insert task", err)
	}

	a.logger.Printf("Created remote task %s (%s)", created.Id, title)
	return created.Id, nil
}

// PatchTask updates the mirrored copy of a local task.
func (a *Adapter) PatchTask(ctx context.Context, token, taskID, title string, status types.TaskStatus) error {
	svc, err := a.tasksService(ctx, token)
	if err != nil {
		return err
	}

	_, err = svc.Tasks.Patch(defaultTaskList, taskID, &tasksapi.Task{
		Title:  title,
		Status: RemoteTaskStatus(status),
	}).Context(ctx).Do()
	if err != nil {
		return classify("patch task", err)
	}
	return nil
}

// DeleteTask removes the mirrored copy of a local task.
func (a *Adapter) DeleteTask(ctx context.Context, token, taskID string) error {
	svc, err := a.tasksService(ctx, token)
	if err != nil {
		return err
	}
	if err := svc.Tasks.Delete(defaultTaskList, taskID).Context(ctx).Do(); err != nil {
		return classify("delete task", err)
	}
	return nil
}
