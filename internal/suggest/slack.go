package suggest

import (
	"time"

	"github.com/tommykeeley-amp/pm-os-sub002/internal/events"
)

const slackRecencyWindow = 6 * time.Hour

// ScoreSlackMessage turns a Slack message into a suggestion. Unlike the
// other sources the Slack score clamps at 100 after the recency bump.
func ScoreSlackMessage(msg events.SlackMessage, now time.Time) events.Suggestion {
	score := 50
	priority := events.PriorityLow
	context := "Message"

	switch msg.Type {
	case events.SlackMention:
		score = 85
		priority = events.PriorityHigh
		context = "You were mentioned"
	case events.SlackDM:
		score = 80
		priority = events.PriorityHigh
		context = "Direct message"
	case events.SlackSaved:
		score = 70
		priority = events.PriorityMedium
		context = "Saved item"
	case events.SlackThread:
		score = 60
		priority = events.PriorityMedium
		context = "Thread activity"
	}

	if ts := msg.Time(); !ts.IsZero() && now.Sub(ts) < slackRecencyWindow {
		score += 20
	}
	if score > 100 {
		score = 100
	}

	if msg.UserName != "" {
		context += " from " + msg.UserName
	}
	if msg.ChannelName != "" {
		context += " in #" + msg.ChannelName
	}

	return events.Suggestion{
		ID:       events.SuggestionID(events.SourceSlack, msg.ID),
		Title:    "Respond: " + events.TruncateText(msg.Text, 60),
		Source:   events.SourceSlack,
		SourceID: msg.ID,
		Priority: priority,
		Context:  context,
		Score:    score,
	}
}
