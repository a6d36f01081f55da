package sources

import (
	"context"

	"github.com/tommykeeley-amp/pm-os-sub002/internal/events"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/clients/bridge"
)

// BridgeAdapter exposes the provider bridge's calendar and email feeds
// as suggestion sources.
type BridgeAdapter struct {
	client *bridge.Client
}

func NewBridgeAdapter(client *bridge.Client) *BridgeAdapter {
	return &BridgeAdapter{client: client}
}

func (a *BridgeAdapter) CalendarEvents(ctx context.Context) ([]events.CalendarEvent, error) {
	raw, err := a.client.CalendarEvents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]events.CalendarEvent, 0, len(raw))
	for _, ev := range raw {
		out = append(out, events.CalendarEvent{
			ID:       ev.ID,
			Title:    ev.Title,
			Start:    ev.Start,
			End:      ev.End,
			Location: ev.Location,
		})
	}
	return out, nil
}

func (a *BridgeAdapter) Emails(ctx context.Context) ([]events.Email, error) {
	raw, err := a.client.Emails(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]events.Email, 0, len(raw))
	for _, msg := range raw {
		out = append(out, events.Email{
			ID:        msg.ID,
			Subject:   msg.Subject,
			From:      msg.From,
			IsStarred: msg.IsStarred,
			IsUnread:  msg.IsUnread,
		})
	}
	return out, nil
}
