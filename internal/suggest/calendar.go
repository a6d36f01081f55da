package suggest

import (
	"fmt"
	"time"

	"github.com/tommykeeley-amp/pm-os-sub002/internal/events"
)

// ScoreCalendarEvent turns an upcoming calendar event into a suggestion.
// Past events are excluded entirely, whatever their other properties.
func ScoreCalendarEvent(ev events.CalendarEvent, now time.Time) (events.Suggestion, bool) {
	start := ev.Start.In(now.Location())
	minutesUntil := start.Sub(now).Minutes()
	if minutesUntil < 0 {
		return events.Suggestion{}, false
	}

	today := sameDay(start, now)
	tomorrow := sameDay(start, now.AddDate(0, 0, 1))

	var score int
	switch {
	case minutesUntil <= 30:
		score = 100
	case start.Sub(now) <= 2*time.Hour:
		score = 80
	case today:
		score = 60
	case tomorrow:
		score = 40
	default:
		score = 20
	}

	priority := events.PriorityLow
	switch {
	case minutesUntil <= 30:
		priority = events.PriorityHigh
	case today:
		priority = events.PriorityMedium
	}

	context := calendarContext(start, now, today, tomorrow)
	if ev.Location != "" {
		context += " • " + ev.Location
	}

	due := ev.Start
	return events.Suggestion{
		ID:       events.SuggestionID(events.SourceCalendar, ev.ID),
		Title:    "Prepare for: " + ev.Title,
		Source:   events.SourceCalendar,
		SourceID: ev.ID,
		Priority: priority,
		Context:  context,
		DueDate:  &due,
		Score:    score,
	}, true
}

func calendarContext(start, now time.Time, today, tomorrow bool) string {
	switch {
	case start.Sub(now) <= time.Hour:
		return fmt.Sprintf("In %d minutes", int(start.Sub(now).Minutes()))
	case today:
		return "Today at " + start.Format("3:04 PM")
	case tomorrow:
		return "Tomorrow at " + start.Format("3:04 PM")
	default:
		return start.Format("Jan 2, 2006")
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
