package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soulsync-app/soulsync/internal/gcal"
	"github.com/soulsync-app/soulsync/internal/types"
)

// dinnerColorTag is the color used for mirrored dinner events.
const dinnerColorTag = "amber"

// MirrorDinnerPlan keeps a dinner plan's calendar event in step with the
// plan document. enable=true creates or updates the event and records its
// id on the plan; enable=false removes the event and clears the id. The
// updated plan is persisted either way; remote changes trigger a resync.
func (r *Reconciler) MirrorDinnerPlan(ctx context.Context, plan *types.DinnerPlan, enable bool) error {
	if err := plan.Validate(); err != nil {
		return err
	}

	token, err := r.session.Credential(ctx)
	if err != nil {
		return err
	}

	if !enable {
		if plan.ExternalEventID == "" {
			// Nothing mirrored; just persist the plan itself.
			return r.store.SaveDinnerPlan(ctx, plan)
		}
		if err := r.remote.DeleteEvent(ctx, token, r.settings.Selected(), plan.ExternalEventID); err != nil {
			if errors.Is(err, gcal.ErrAuthExpired) {
				r.session.NotifyAuthExpired()
			}
			return fmt.Errorf("failed to remove dinner event: %w", err)
		}
		plan.ExternalEventID = ""
		if err := r.store.SaveDinnerPlan(ctx, plan); err != nil {
			return err
		}
		return r.Sync(ctx)
	}

	title := dinnerTitle(plan)
	if plan.ExternalEventID == "" {
		id, err := r.remote.CreateEvent(ctx, token, r.settings.Selected(), types.EventDraft{
			Title:    title,
			Date:     plan.ID,
			Time:     plan.Time,
			ColorTag: dinnerColorTag,
		})
		if err != nil {
			if errors.Is(err, gcal.ErrAuthExpired) {
				r.session.NotifyAuthExpired()
			}
			return fmt.Errorf("failed to create dinner event: %w", err)
		}
		plan.ExternalEventID = id
	} else {
		date := plan.ID
		patch := types.EventPatch{Title: &title, Date: &date}
		// Always carry the time, even when cleared; an empty value
		// converts the event back to all-day.
		t := plan.Time
		patch.Time = &t
		if err := r.remote.PatchEvent(ctx, token, r.settings.Selected(), plan.ExternalEventID, patch); err != nil {
			if errors.Is(err, gcal.ErrAuthExpired) {
				r.session.NotifyAuthExpired()
			}
			return fmt.Errorf("failed to update dinner event: %w", err)
		}
	}

	if err := r.store.SaveDinnerPlan(ctx, plan); err != nil {
		return err
	}
	return r.Sync(ctx)
}

func dinnerTitle(plan *types.DinnerPlan) string {
	title := "Dinner: " + strings.TrimSpace(plan.Plan)
	if plan.Location != "" {
		title += " @ " + plan.Location
	}
	return title
}
