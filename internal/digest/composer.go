package digest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tommykeeley-amp/pm-os-sub002/internal/events"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/logging"
)

const (
	defaultLookback   = 24 * time.Hour
	defaultDigestSize = 5

	// suggestedRetention bounds durable growth of the suggested-message
	// table. Entries past the dedup window serve no purpose; 30 days
	// leaves generous slack for inspection.
	suggestedRetention = 30 * 24 * time.Hour
)

type ComposerConfig struct {
	Channels    []string
	VIPContacts []string
	UserEmail   string

	Source     MessageSource
	Analyzer   Analyzer
	Resolver   RecipientResolver
	Dispatcher Dispatcher
	State      StateStore
	Publisher  EventPublisher
	Metrics    *Metrics

	// MarkOnlyDelivered delays the suggested-mark until after the
	// ranking cut, so candidates the user never saw stay eligible. The
	// default (false) marks every candidate that passes analysis, which
	// matches historical behavior but suppresses items that lost the
	// ranking.
	MarkOnlyDelivered bool

	Lookback   time.Duration
	DigestSize int

	Clock  func() time.Time
	Logger logging.Logger
}

// Composer runs one digest cycle per scheduler firing: collect recent
// channel messages, filter against durable state, analyze, score, rank,
// and dispatch the top items to the user.
type Composer struct {
	channels    []string
	vipContacts map[string]bool
	userEmail   string

	source     MessageSource
	analyzer   Analyzer
	resolver   RecipientResolver
	dispatcher Dispatcher
	state      StateStore
	publisher  EventPublisher
	metrics    *Metrics

	markOnlyDelivered bool
	lookback          time.Duration
	digestSize        int

	clock  func() time.Time
	logger logging.Logger
}

func NewComposer(cfg ComposerConfig) (*Composer, error) {
	if cfg.Source == nil || cfg.Analyzer == nil || cfg.Resolver == nil || cfg.Dispatcher == nil {
		return nil, fmt.Errorf("source, analyzer, resolver and dispatcher are required")
	}
	if cfg.State == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if cfg.UserEmail == "" {
		return nil, fmt.Errorf("user email is required")
	}
	vips := make(map[string]bool, len(cfg.VIPContacts))
	for _, id := range cfg.VIPContacts {
		vips[id] = true
	}
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = defaultLookback
	}
	size := cfg.DigestSize
	if size <= 0 {
		size = defaultDigestSize
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Composer{
		channels:          cfg.Channels,
		vipContacts:       vips,
		userEmail:         cfg.UserEmail,
		source:            cfg.Source,
		analyzer:          cfg.Analyzer,
		resolver:          cfg.Resolver,
		dispatcher:        cfg.Dispatcher,
		state:             cfg.State,
		publisher:         cfg.Publisher,
		metrics:           cfg.Metrics,
		markOnlyDelivered: cfg.MarkOnlyDelivered,
		lookback:          lookback,
		digestSize:        size,
		clock:             clock,
		logger:            cfg.Logger,
	}, nil
}

// RunCycle executes one digest cycle for the given slot. A failed
// dispatch leaves the slot unrecorded so a later trigger retries; an
// empty candidate set is a silent no-op.
func (c *Composer) RunCycle(ctx context.Context, slotLabel string) error {
	now := c.clock()

	fired, err := c.state.WasSlotFiredRecently(ctx, slotLabel, now)
	if err != nil {
		c.metrics.cycle("error")
		return fmt.Errorf("check slot state: %w", err)
	}
	if fired {
		c.logger.WithField("slot", slotLabel).Debug("Digest slot already sent recently, skipping")
		c.metrics.cycle("skipped")
		return nil
	}

	items := c.collectActionable(ctx, now)
	if len(items) == 0 {
		c.logger.WithField("slot", slotLabel).Info("No actionable items, digest not sent")
		c.metrics.cycle("empty")
		return nil
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	if len(items) > c.digestSize {
		items = items[:c.digestSize]
	}

	recipientID, err := c.resolver.ResolveRecipient(ctx, c.userEmail)
	if err != nil {
		c.metrics.cycle("error")
		return fmt.Errorf("resolve digest recipient: %w", err)
	}

	msg := DigestMessage{Slot: slotLabel, Entries: make([]DigestEntry, 0, len(items))}
	for _, item := range items {
		msg.Entries = append(msg.Entries, DigestEntry{
			SourceID:        item.SourceID,
			Summary:         item.Summary,
			Sender:          item.UserName,
			Channel:         item.ChannelName,
			SuggestedAction: item.SuggestedAction,
			Reasons:         item.Reasons,
			Permalink:       item.Permalink,
		})
	}

	if err := c.dispatcher.DispatchDigest(ctx, recipientID, msg); err != nil {
		c.metrics.dispatchFailed()
		c.metrics.cycle("error")
		return fmt.Errorf("dispatch digest: %w", err)
	}

	if c.markOnlyDelivered {
		for _, item := range items {
			if err := c.state.RecordSuggested(ctx, item.SourceID, now); err != nil {
				c.logger.WithError(err).WithField("source_id", item.SourceID).Warn("Failed to record suggested item")
			}
		}
	}
	if err := c.state.RecordSlotFired(ctx, slotLabel, now); err != nil {
		c.logger.WithError(err).WithField("slot", slotLabel).Warn("Digest sent but slot state not recorded")
	}
	if pruned, err := c.state.PruneSuggested(ctx, now.Add(-suggestedRetention)); err != nil {
		c.logger.WithError(err).Warn("Failed to prune suggested items")
	} else if pruned > 0 {
		c.logger.WithField("pruned", pruned).Debug("Pruned stale suggested items")
	}

	if c.publisher != nil {
		if err := c.publisher.PublishDigestSent(slotLabel, len(msg.Entries)); err != nil {
			c.logger.WithError(err).Warn("Failed to publish digest event")
		}
	}

	c.logger.WithFields(logging.Fields{
		"slot":  slotLabel,
		"items": len(msg.Entries),
	}).Info("Digest dispatched")
	c.metrics.cycle("sent")
	return nil
}

// collectActionable fetches the lookback window of channel messages,
// drops anything the durable state excludes, and analyzes the rest.
// Per-candidate failures are logged and dropped without aborting the
// batch.
func (c *Composer) collectActionable(ctx context.Context, now time.Time) []ActionableItem {
	since := now.Add(-c.lookback)
	messages, err := c.source.RecentChannelMessages(ctx, c.channels, since)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to fetch channel messages")
		return nil
	}

	items := make([]ActionableItem, 0, len(messages))
	for _, msg := range messages {
		if msg.ID == "" || msg.Text == "" {
			continue
		}
		taskDone, err := c.state.HasTaskCreated(ctx, msg.ID)
		if err != nil {
			c.logger.WithError(err).WithField("source_id", msg.ID).Warn("Task state check failed, dropping candidate")
			continue
		}
		if taskDone {
			continue
		}
		suggested, err := c.state.HasBeenSuggestedRecently(ctx, msg.ID, now)
		if err != nil {
			c.logger.WithError(err).WithField("source_id", msg.ID).Warn("Suggested state check failed, dropping candidate")
			continue
		}
		if suggested {
			continue
		}

		c.metrics.analyzed()
		analysis, err := c.analyzer.AnalyzeActionability(ctx, msg)
		if err != nil {
			c.logger.WithError(err).WithField("source_id", msg.ID).Warn("Actionability analysis failed, dropping candidate")
			continue
		}
		if !analysis.IsActionable {
			continue
		}

		if !c.markOnlyDelivered {
			if err := c.state.RecordSuggested(ctx, msg.ID, now); err != nil {
				c.logger.WithError(err).WithField("source_id", msg.ID).Warn("Failed to record suggested item")
			}
		}

		item := ActionableItem{
			SourceID:        msg.ID,
			Channel:         msg.Channel,
			ChannelName:     msg.ChannelName,
			UserName:        msg.UserName,
			Text:            msg.Text,
			Summary:         analysis.Summary,
			SuggestedAction: analysis.SuggestedAction,
			Urgency:         analysis.Urgency,
			Permalink:       msg.Permalink,
			Timestamp:       msg.Time().UnixMilli(),
		}
		item.Score, item.Reasons = c.scoreItem(msg, analysis, now)
		items = append(items, item)
	}
	return items
}

// scoreItem applies the digest ranking model: base 50, VIP sender +30,
// analysis urgency +15/+5, message age under 2h +10 or under 6h +5,
// clamped to 100. Distinct from the on-demand suggestion scorer.
func (c *Composer) scoreItem(msg events.SlackMessage, analysis Analysis, now time.Time) (int, []string) {
	score := 50
	var reasons []string
	if analysis.Reason != "" {
		reasons = append(reasons, analysis.Reason)
	}

	if c.vipContacts[msg.User] {
		score += 30
		reasons = append(reasons, "From a VIP contact")
	}
	switch analysis.Urgency {
	case "high":
		score += 15
		reasons = append(reasons, "High urgency")
	case "medium":
		score += 5
	}
	if ts := msg.Time(); !ts.IsZero() {
		age := now.Sub(ts)
		if age < 2*time.Hour {
			score += 10
			reasons = append(reasons, "Recent message")
		} else if age < 6*time.Hour {
			score += 5
		}
	}
	if score > 100 {
		score = 100
	}
	return score, reasons
}
