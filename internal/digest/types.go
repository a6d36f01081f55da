package digest

import (
	"context"
	"time"

	"github.com/tommykeeley-amp/pm-os-sub002/internal/events"
)

// Analysis is the actionability verdict for a single message.
type Analysis struct {
	IsActionable    bool   `json:"isActionable"`
	Summary         string `json:"summary"`
	SuggestedAction string `json:"suggestedAction"`
	Urgency         string `json:"urgency"`
	Reason          string `json:"reason"`
}

// ActionableItem is a digest candidate: a raw message plus its analysis
// and digest score. It lives only for the duration of one cycle.
type ActionableItem struct {
	SourceID        string   `json:"sourceId"`
	Channel         string   `json:"channel"`
	ChannelName     string   `json:"channelName,omitempty"`
	UserName        string   `json:"userName,omitempty"`
	Text            string   `json:"text"`
	Summary         string   `json:"summary"`
	SuggestedAction string   `json:"suggestedAction"`
	Urgency         string   `json:"urgency,omitempty"`
	Reasons         []string `json:"reasons"`
	Permalink       string   `json:"permalink,omitempty"`
	Timestamp       int64    `json:"timestamp"`
	Score           int      `json:"score"`
}

// DigestEntry is one rendered item in a dispatched digest.
type DigestEntry struct {
	SourceID        string   `json:"sourceId"`
	Summary         string   `json:"summary"`
	Sender          string   `json:"sender,omitempty"`
	Channel         string   `json:"channel,omitempty"`
	SuggestedAction string   `json:"suggestedAction"`
	Reasons         []string `json:"reasons"`
	Permalink       string   `json:"permalink,omitempty"`
}

// DigestMessage is the structured payload handed to the dispatcher.
type DigestMessage struct {
	Slot    string        `json:"slot"`
	Entries []DigestEntry `json:"entries"`
}

// MessageSource fetches recent raw messages from the monitored channels.
type MessageSource interface {
	RecentChannelMessages(ctx context.Context, channelIDs []string, since time.Time) ([]events.SlackMessage, error)
}

// Analyzer decides whether a message needs the user's action.
type Analyzer interface {
	AnalyzeActionability(ctx context.Context, msg events.SlackMessage) (Analysis, error)
}

// RecipientResolver maps the configured user identity to a deliverable
// recipient ID on the messaging channel.
type RecipientResolver interface {
	ResolveRecipient(ctx context.Context, email string) (string, error)
}

// Dispatcher delivers a composed digest to a recipient.
type Dispatcher interface {
	DispatchDigest(ctx context.Context, recipientID string, msg DigestMessage) error
}

// EventPublisher receives notifications about completed digest work,
// typically relayed onto the task queue the desktop app consumes.
type EventPublisher interface {
	PublishDigestSent(slot string, itemCount int) error
}
