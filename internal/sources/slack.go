package sources

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tommykeeley-amp/pm-os-sub002/internal/digest"
	"github.com/tommykeeley-amp/pm-os-sub002/internal/events"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/clients/slack"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/logging"
)

const activityLookback = 24 * time.Hour

// SlackAdapter bridges the Slack Web API into the message source,
// recipient resolver and dispatcher contracts, and supplies recent
// activity for on-demand suggestions. Channel and user display names
// are cached for the process lifetime; Slack renames are rare enough
// that staleness is acceptable.
type SlackAdapter struct {
	client    *slack.Client
	channels  []string
	userEmail string
	logger    logging.Logger

	mu           sync.Mutex
	selfID       string
	channelNames map[string]string
	userNames    map[string]string
}

func NewSlackAdapter(client *slack.Client, channels []string, userEmail string, logger logging.Logger) *SlackAdapter {
	return &SlackAdapter{
		client:       client,
		channels:     channels,
		userEmail:    userEmail,
		logger:       logger,
		channelNames: make(map[string]string),
		userNames:    make(map[string]string),
	}
}

// RecentChannelMessages fetches messages newer than since from each
// monitored channel. A single failing channel is logged and skipped so
// the rest still contribute.
func (a *SlackAdapter) RecentChannelMessages(ctx context.Context, channelIDs []string, since time.Time) ([]events.SlackMessage, error) {
	selfID := a.resolveSelf(ctx)

	var out []events.SlackMessage
	for _, channelID := range channelIDs {
		history, err := a.client.ConversationHistory(ctx, channelID, since, 100)
		if err != nil {
			a.logger.WithError(err).WithField("channel", channelID).Warn("Failed to fetch channel history")
			continue
		}
		channelName := a.channelName(ctx, channelID)
		for _, msg := range history {
			if msg.Type != "message" || msg.User == "" || msg.Text == "" {
				continue
			}
			if msg.User == selfID {
				continue
			}
			out = append(out, events.SlackMessage{
				ID:          channelID + ":" + msg.TS,
				Type:        classifyMessage(msg, channelID, selfID),
				Channel:     channelID,
				ChannelName: channelName,
				User:        msg.User,
				UserName:    a.userName(ctx, msg.User),
				Text:        msg.Text,
				TS:          msg.TS,
				ThreadTS:    msg.ThreadTS,
				Permalink:   a.permalink(ctx, channelID, msg.TS),
			})
		}
	}
	return out, nil
}

// RecentActivity returns the last day of monitored-channel messages for
// the on-demand suggestion view.
func (a *SlackAdapter) RecentActivity(ctx context.Context) ([]events.SlackMessage, error) {
	return a.RecentChannelMessages(ctx, a.channels, time.Now().Add(-activityLookback))
}

// ResolveRecipient maps an email address to a Slack user ID.
func (a *SlackAdapter) ResolveRecipient(ctx context.Context, email string) (string, error) {
	user, err := a.client.LookupUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("resolve recipient %s: %w", email, err)
	}
	if user.ID == "" {
		return "", fmt.Errorf("no slack user for %s", email)
	}
	return user.ID, nil
}

// DispatchDigest delivers the digest as a Block Kit DM. Each entry
// carries a "Create task" button whose action value is the source ID,
// consumed by the interaction relay.
func (a *SlackAdapter) DispatchDigest(ctx context.Context, recipientID string, msg digest.DigestMessage) error {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf(":coffee: Your %s digest", msg.Slot),
			},
		},
	}
	for _, entry := range msg.Entries {
		var text strings.Builder
		fmt.Fprintf(&text, "*%s*", entry.Summary)
		if entry.Sender != "" {
			fmt.Fprintf(&text, "\nFrom %s", entry.Sender)
		}
		if entry.Channel != "" {
			fmt.Fprintf(&text, " in #%s", entry.Channel)
		}
		if entry.SuggestedAction != "" {
			fmt.Fprintf(&text, "\n_%s_", entry.SuggestedAction)
		}
		if len(entry.Reasons) > 0 {
			fmt.Fprintf(&text, "\n%s", strings.Join(entry.Reasons, " · "))
		}
		if entry.Permalink != "" {
			fmt.Fprintf(&text, "\n<%s|View message>", entry.Permalink)
		}
		blocks = append(blocks,
			map[string]any{"type": "divider"},
			map[string]any{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": text.String()},
				"accessory": map[string]any{
					"type":      "button",
					"text":      map[string]any{"type": "plain_text", "text": "Create task"},
					"action_id": "pulse_create_task",
					"value":     entry.SourceID,
				},
			},
		)
	}

	return a.client.PostMessage(ctx, slack.PostMessageRequest{
		Channel: recipientID,
		Text:    fmt.Sprintf("Your %s digest: %d items need attention", msg.Slot, len(msg.Entries)),
		Blocks:  blocks,
	})
}

func classifyMessage(msg slack.Message, channelID, selfID string) events.SlackMessageType {
	switch {
	case strings.HasPrefix(channelID, "D"):
		return events.SlackDM
	case selfID != "" && strings.Contains(msg.Text, "<@"+selfID+">"):
		return events.SlackMention
	case msg.ThreadTS != "" && msg.ThreadTS != msg.TS:
		return events.SlackThread
	default:
		return events.SlackThread
	}
}

func (a *SlackAdapter) resolveSelf(ctx context.Context) string {
	a.mu.Lock()
	cached := a.selfID
	a.mu.Unlock()
	if cached != "" || a.userEmail == "" {
		return cached
	}
	user, err := a.client.LookupUserByEmail(ctx, a.userEmail)
	if err != nil {
		a.logger.WithError(err).Debug("Failed to resolve own slack identity")
		return ""
	}
	a.mu.Lock()
	a.selfID = user.ID
	a.mu.Unlock()
	return user.ID
}

func (a *SlackAdapter) channelName(ctx context.Context, channelID string) string {
	a.mu.Lock()
	if name, ok := a.channelNames[channelID]; ok {
		a.mu.Unlock()
		return name
	}
	a.mu.Unlock()

	channel, err := a.client.ConversationInfo(ctx, channelID)
	if err != nil {
		a.logger.WithError(err).WithField("channel", channelID).Debug("Failed to resolve channel name")
		return ""
	}
	a.mu.Lock()
	a.channelNames[channelID] = channel.Name
	a.mu.Unlock()
	return channel.Name
}

func (a *SlackAdapter) userName(ctx context.Context, userID string) string {
	a.mu.Lock()
	if name, ok := a.userNames[userID]; ok {
		a.mu.Unlock()
		return name
	}
	a.mu.Unlock()

	user, err := a.client.UserInfo(ctx, userID)
	if err != nil {
		a.logger.WithError(err).WithField("user", userID).Debug("Failed to resolve user name")
		return ""
	}
	name := user.RealName
	if name == "" {
		name = user.Name
	}
	a.mu.Lock()
	a.userNames[userID] = name
	a.mu.Unlock()
	return name
}

func (a *SlackAdapter) permalink(ctx context.Context, channelID, ts string) string {
	link, err := a.client.Permalink(ctx, channelID, ts)
	if err != nil {
		return ""
	}
	return link
}
