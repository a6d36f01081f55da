package events

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source identifies which provider a suggestion came from.
type Source string

const (
	SourceCalendar Source = "calendar"
	SourceEmail    Source = "email"
	SourceSlack    Source = "slack"
)

// Priority is the classification tier of a suggestion.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// SlackMessageType classifies why a Slack message surfaced for the user.
type SlackMessageType string

const (
	SlackMention SlackMessageType = "mention"
	SlackDM      SlackMessageType = "dm"
	SlackSaved   SlackMessageType = "saved"
	SlackThread  SlackMessageType = "thread"
)

// CalendarEvent is a raw calendar entry supplied by the provider bridge.
type CalendarEvent struct {
	ID       string
	Title    string
	Start    time.Time
	End      time.Time
	Location string
}

// Email is a raw inbox message supplied by the provider bridge.
type Email struct {
	ID        string
	Subject   string
	From      string
	IsStarred bool
	IsUnread  bool
}

// SlackMessage is a raw Slack message supplied by the Slack collector.
type SlackMessage struct {
	ID          string
	Type        SlackMessageType
	Channel     string
	ChannelName string
	User        string
	UserName    string
	Text        string
	TS          string
	ThreadTS    string
	Permalink   string
}

// Time parses the fractional unix-seconds Slack timestamp. Returns the
// zero time when the timestamp is absent or malformed.
func (m SlackMessage) Time() time.Time {
	raw := m.TS
	if raw == "" {
		return time.Time{}
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, int64(seconds*float64(time.Second)))
}

// Suggestion is a scored, actionable candidate surfaced to the user.
// Created fresh on every scoring pass and never mutated.
type Suggestion struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Source   Source     `json:"source"`
	SourceID string     `json:"sourceId"`
	Priority Priority   `json:"priority"`
	Context  string     `json:"context"`
	DueDate  *time.Time `json:"dueDate,omitempty"`
	Score    int        `json:"score"`
}

// suggestionNamespace anchors deterministic suggestion IDs. Recomputing
// from the same (source, sourceID) always yields the same UUID.
var suggestionNamespace = uuid.MustParse("8f3c1a2e-5b97-4c44-9d3a-7a6f1e0b2c11")

// SuggestionID derives the deterministic suggestion identifier.
func SuggestionID(source Source, sourceID string) string {
	return uuid.NewSHA1(suggestionNamespace, []byte(string(source)+":"+sourceID)).String()
}

var displayNameRe = regexp.MustCompile(`^\s*"?([^"<]+?)"?\s*<`)

// SenderName extracts a human-readable sender from an RFC-style
// "Name <addr@host>" string. Falls back to the address local part, then
// to the raw input.
func SenderName(from string) string {
	if m := displayNameRe.FindStringSubmatch(from); m != nil {
		name := strings.TrimSpace(m[1])
		if name != "" {
			return name
		}
	}
	addr := from
	if start := strings.Index(addr, "<"); start >= 0 {
		if end := strings.Index(addr[start:], ">"); end > 0 {
			addr = addr[start+1 : start+end]
		}
	}
	if at := strings.Index(addr, "@"); at > 0 {
		return strings.TrimSpace(addr[:at])
	}
	return strings.TrimSpace(from)
}

// TruncateText shortens s to max runes, appending an ellipsis when cut.
func TruncateText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
