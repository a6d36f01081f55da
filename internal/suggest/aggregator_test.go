package suggest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tommykeeley-amp/pm-os-sub002/internal/events"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/logging"
)

type fakeCalendar struct {
	events []events.CalendarEvent
	err    error
}

func (f fakeCalendar) CalendarEvents(context.Context) ([]events.CalendarEvent, error) {
	return f.events, f.err
}

type fakeEmail struct {
	emails []events.Email
	err    error
}

func (f fakeEmail) Emails(context.Context) ([]events.Email, error) {
	return f.emails, f.err
}

type fakeSlack struct {
	messages []events.SlackMessage
	err      error
}

func (f fakeSlack) RecentActivity(context.Context) ([]events.SlackMessage, error) {
	return f.messages, f.err
}

func TestSmartSuggestionsMergesAndRanks(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{
		Calendar: fakeCalendar{events: []events.CalendarEvent{
			{ID: "cal-1", Title: "Standup", Start: testNow.Add(10 * time.Minute)},
		}},
		Email: fakeEmail{emails: []events.Email{
			{ID: "em-1", Subject: "Weekly notes", From: "a@b.c"},
		}},
		Slack: fakeSlack{messages: []events.SlackMessage{
			{ID: "sl-1", Type: events.SlackDM, Text: "quick question"},
		}},
		Clock:  func() time.Time { return testNow },
		Logger: logging.NewLogger(),
	})

	got := agg.SmartSuggestions(context.Background())
	if assert.Len(t, got, 3) {
		assert.Equal(t, 100, got[0].Score)
		assert.Equal(t, events.SourceCalendar, got[0].Source)
		assert.Equal(t, 80, got[1].Score)
		assert.Equal(t, events.SourceSlack, got[1].Source)
		assert.Equal(t, 50, got[2].Score)
		assert.Equal(t, events.SourceEmail, got[2].Source)
	}
}

func TestSmartSuggestionsTruncatesToLimit(t *testing.T) {
	var emails []events.Email
	for i := 0; i < 12; i++ {
		emails = append(emails, events.Email{ID: fmt.Sprintf("em-%d", i), Subject: "x", From: "a@b.c"})
	}
	agg := NewAggregator(AggregatorConfig{
		Email:  fakeEmail{emails: emails},
		Clock:  func() time.Time { return testNow },
		Logger: logging.NewLogger(),
	})

	got := agg.SmartSuggestions(context.Background())
	assert.Len(t, got, 10)

	seen := make(map[string]bool)
	for i, s := range got {
		assert.False(t, seen[s.ID], "duplicate suggestion %s", s.ID)
		seen[s.ID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Score, s.Score)
		}
	}
}

func TestSmartSuggestionsSkipsFailedSource(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{
		Calendar: fakeCalendar{err: errors.New("bridge down")},
		Email: fakeEmail{emails: []events.Email{
			{ID: "em-1", Subject: "still here", From: "a@b.c"},
		}},
		Clock:  func() time.Time { return testNow },
		Logger: logging.NewLogger(),
	})

	got := agg.SmartSuggestions(context.Background())
	if assert.Len(t, got, 1) {
		assert.Equal(t, events.SourceEmail, got[0].Source)
	}
}

func TestSmartSuggestionsExcludesPastEvents(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{
		Calendar: fakeCalendar{events: []events.CalendarEvent{
			{ID: "past", Title: "Over", Start: testNow.Add(-time.Hour)},
			{ID: "future", Title: "Soon", Start: testNow.Add(time.Hour)},
		}},
		Clock:  func() time.Time { return testNow },
		Logger: logging.NewLogger(),
	})

	got := agg.SmartSuggestions(context.Background())
	if assert.Len(t, got, 1) {
		assert.Equal(t, "future", got[0].SourceID)
	}
}

func TestSmartSuggestionsIdempotent(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{
		Email: fakeEmail{emails: []events.Email{
			{ID: "em-1", Subject: "x", From: "a@b.c"},
		}},
		Clock:  func() time.Time { return testNow },
		Logger: logging.NewLogger(),
	})

	first := agg.SmartSuggestions(context.Background())
	second := agg.SmartSuggestions(context.Background())
	assert.Equal(t, first, second)
}
