package gcal

import (
	"fmt"
	"time"

	"github.com/soulsync-app/soulsync/internal/types"
	"google.golang.org/api/calendar/v3"
)

// eventFromRemote translates a wire event into the local model.
//
// The color tag prefers the stashed private property over the numeric
// colorId mapping; a date-only event keeps Time empty.
func eventFromRemote(item *calendar.Event) types.CalendarEvent {
	ev := types.CalendarEvent{
		ID:       item.Id,
		Title:    item.Summary,
		ColorTag: colorTagFromRemote(item),
		Origin:   types.OriginRemote,
	}

	if item.Start != nil {
		if item.Start.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
				local := t.Local()
				ev.Date = local.Format("2006-01-02")
				ev.Time = local.Format("15:04")
			}
		} else if item.Start.Date != "" {
			ev.Date = item.Start.Date
		}
	}

	if item.Created != "" {
		if t, err := time.Parse(time.RFC3339, item.Created); err == nil {
			ev.CreatedAt = t
		}
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	return ev
}

func colorTagFromRemote(item *calendar.Event) string {
	if item.ExtendedProperties != nil {
		if tag := item.ExtendedProperties.Private[colorClassKey]; tag != "" {
			return tag
		}
	}
	if item.ColorId != "" {
		return TagForColorID(item.ColorId)
	}
	return DefaultColorTag
}

// buildEventBody constructs the wire representation for a new event.
// A date-only event spans the literal calendar day (end = start + 1 day);
// a timed event defaults to a one hour duration.
func buildEventBody(draft types.EventDraft) (*calendar.Event, error) {
	body := &calendar.Event{
		Summary: draft.Title,
	}

	if draft.ColorTag != "" {
		body.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{colorClassKey: draft.ColorTag},
		}
		if id := ColorIDForTag(draft.ColorTag); id != "" {
			body.ColorId = id
		}
	}

	start, end, err := buildStartEnd(draft.Date, draft.Time)
	if err != nil {
		return nil, err
	}
	body.Start = start
	body.End = end
	return body, nil
}

// buildStartEnd produces start/end for a date plus optional wall-clock time.
func buildStartEnd(date, clock string) (*calendar.EventDateTime, *calendar.EventDateTime, error) {
	if clock != "" {
		start, err := time.ParseInLocation("2006-01-02T15:04", date+"T"+clock, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid start %s %s: %w", date, clock, err)
		}
		end := start.Add(time.Hour)
		return &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
			&calendar.EventDateTime{DateTime: end.Format(time.RFC3339)}, nil
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid date %s: %w", date, err)
	}
	next := day.AddDate(0, 0, 1)
	return &calendar.EventDateTime{Date: date},
		&calendar.EventDateTime{Date: next.Format("2006-01-02")}, nil
}

// resolvePatchBody builds the patch payload for an existing event.
//
// When the patch touches only the date or only the time, the other half is
// recovered from the current remote event so a partial update never drops
// it. current must be the freshly read remote event.
func resolvePatchBody(current *calendar.Event, patch types.EventPatch) (*calendar.Event, error) {
	body := &calendar.Event{}

	if patch.Title != nil {
		body.Summary = *patch.Title
	}

	// Color: keep the existing stashed tag when the patch doesn't set one,
	// so an unrelated patch never erases the private property.
	tag := ""
	if patch.ColorTag != nil {
		tag = *patch.ColorTag
	} else if current.ExtendedProperties != nil {
		tag = current.ExtendedProperties.Private[colorClassKey]
	}
	if tag != "" {
		body.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{colorClassKey: tag},
		}
		if id := ColorIDForTag(tag); id != "" {
			body.ColorId = id
		}
	}

	if patch.Date == nil && patch.Time == nil {
		return body, nil
	}

	date := ""
	if patch.Date != nil {
		date = *patch.Date
	} else if current.Start != nil {
		if current.Start.Date != "" {
			date = current.Start.Date
		} else if current.Start.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, current.Start.DateTime); err == nil {
				date = t.Local().Format("2006-01-02")
			}
		}
	}
	if date == "" {
		return nil, fmt.Errorf("cannot determine event date for patch")
	}

	clock := ""
	if patch.Time != nil {
		clock = *patch.Time
	} else if current.Start != nil && current.Start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, current.Start.DateTime); err == nil {
			clock = t.Local().Format("15:04")
		}
	}

	start, end, err := buildStartEnd(date, clock)
	if err != nil {
		return nil, err
	}
	body.Start = start
	body.End = end
	return body, nil
}
