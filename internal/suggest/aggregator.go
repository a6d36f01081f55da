package suggest

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tommykeeley-amp/pm-os-sub002/internal/events"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/logging"
)

const defaultSuggestionLimit = 10

// CalendarSource supplies upcoming calendar events.
type CalendarSource interface {
	CalendarEvents(ctx context.Context) ([]events.CalendarEvent, error)
}

// EmailSource supplies recent inbox messages.
type EmailSource interface {
	Emails(ctx context.Context) ([]events.Email, error)
}

// SlackSource supplies recent Slack activity relevant to the user.
type SlackSource interface {
	RecentActivity(ctx context.Context) ([]events.SlackMessage, error)
}

type AggregatorConfig struct {
	Calendar CalendarSource
	Email    EmailSource
	Slack    SlackSource
	Limit    int
	Clock    func() time.Time
	Logger   logging.Logger
}

// Aggregator merges scored suggestions from all sources on demand.
// It holds no state between calls; repeated calls are idempotent modulo
// upstream data changes.
type Aggregator struct {
	calendar CalendarSource
	email    EmailSource
	slack    SlackSource
	limit    int
	clock    func() time.Time
	logger   logging.Logger
}

func NewAggregator(cfg AggregatorConfig) *Aggregator {
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Aggregator{
		calendar: cfg.Calendar,
		email:    cfg.Email,
		slack:    cfg.Slack,
		limit:    limit,
		clock:    clock,
		logger:   cfg.Logger,
	}
}

// SmartSuggestions fetches all sources concurrently, scores each raw
// event, and returns the top suggestions sorted by score descending.
// A failing source is logged and skipped; the rest still contribute.
func (a *Aggregator) SmartSuggestions(ctx context.Context) []events.Suggestion {
	now := a.clock()

	var calendarEvents []events.CalendarEvent
	var emails []events.Email
	var slackMessages []events.SlackMessage

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if a.calendar == nil {
			return nil
		}
		evs, err := a.calendar.CalendarEvents(gctx)
		if err != nil {
			a.logger.WithError(err).Warn("Suggestion aggregator: calendar fetch failed")
			return nil
		}
		calendarEvents = evs
		return nil
	})
	g.Go(func() error {
		if a.email == nil {
			return nil
		}
		msgs, err := a.email.Emails(gctx)
		if err != nil {
			a.logger.WithError(err).Warn("Suggestion aggregator: email fetch failed")
			return nil
		}
		emails = msgs
		return nil
	})
	g.Go(func() error {
		if a.slack == nil {
			return nil
		}
		msgs, err := a.slack.RecentActivity(gctx)
		if err != nil {
			a.logger.WithError(err).Warn("Suggestion aggregator: slack fetch failed")
			return nil
		}
		slackMessages = msgs
		return nil
	})
	_ = g.Wait()

	suggestions := make([]events.Suggestion, 0, len(calendarEvents)+len(emails)+len(slackMessages))
	for _, ev := range calendarEvents {
		if s, ok := ScoreCalendarEvent(ev, now); ok {
			suggestions = append(suggestions, s)
		}
	}
	for _, email := range emails {
		suggestions = append(suggestions, ScoreEmail(email))
	}
	for _, msg := range slackMessages {
		suggestions = append(suggestions, ScoreSlackMessage(msg, now))
	}

	// Stable sort keeps source order deterministic on score ties.
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})

	if len(suggestions) > a.limit {
		suggestions = suggestions[:a.limit]
	}
	return suggestions
}
