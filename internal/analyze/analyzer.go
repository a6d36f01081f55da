package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tommykeeley-amp/pm-os-sub002/internal/digest"
	"github.com/tommykeeley-amp/pm-os-sub002/internal/events"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/llm"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/logging"
)

const systemPrompt = `You triage workplace chat messages for a busy user. Given one message, decide whether it needs the user's direct action. Respond with ONLY a JSON object:
{"isActionable": bool, "summary": "one sentence", "suggestedAction": "imperative phrase", "urgency": "high"|"medium"|"low", "reason": "short explanation"}
Messages that are FYI-only, social chatter, or already resolved are not actionable.`

type Config struct {
	Provider    llm.Provider
	VIPContacts []string
	UserEmail   string
	Logger      logging.Logger
}

// Analyzer asks the configured language model whether a message needs
// the user's action. Implements the digest Analyzer contract.
type Analyzer struct {
	provider  llm.Provider
	vips      []string
	userEmail string
	logger    logging.Logger
}

func New(cfg Config) (*Analyzer, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	return &Analyzer{
		provider:  cfg.Provider,
		vips:      cfg.VIPContacts,
		userEmail: cfg.UserEmail,
		logger:    cfg.Logger,
	}, nil
}

func (a *Analyzer) AnalyzeActionability(ctx context.Context, msg events.SlackMessage) (digest.Analysis, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User: %s\n", a.userEmail)
	if len(a.vips) > 0 {
		fmt.Fprintf(&sb, "VIP contacts: %s\n", strings.Join(a.vips, ", "))
	}
	if msg.ChannelName != "" {
		fmt.Fprintf(&sb, "Channel: #%s\n", msg.ChannelName)
	}
	sender := msg.UserName
	if sender == "" {
		sender = msg.User
	}
	fmt.Fprintf(&sb, "From: %s\nMessage: %s", sender, msg.Text)

	raw, err := a.provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: sb.String()},
	})
	if err != nil {
		return digest.Analysis{}, fmt.Errorf("analyze message: %w", err)
	}

	analysis, err := parseVerdict(raw)
	if err != nil {
		return digest.Analysis{}, fmt.Errorf("parse analysis for message %s: %w", msg.ID, err)
	}
	return analysis, nil
}

// parseVerdict extracts the JSON verdict from a model response, which
// may wrap it in code fences or surrounding prose.
func parseVerdict(raw string) (digest.Analysis, error) {
	text := strings.TrimSpace(raw)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	var analysis digest.Analysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return digest.Analysis{}, fmt.Errorf("invalid verdict JSON: %w", err)
	}
	switch analysis.Urgency {
	case "high", "medium", "low":
	default:
		analysis.Urgency = "low"
	}
	return analysis, nil
}
