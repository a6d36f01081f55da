package config

import (
	"fmt"
	"time"

	"github.com/tommykeeley-amp/pm-os-sub002/pkg/config"
)

// Config is the full service configuration, resolved once at startup
// from the environment and passed into constructors. Nothing reads the
// environment after this point.
type Config struct {
	Port        string
	DatabaseURL string

	DigestEnabled     bool
	DigestSlots       []string
	Timezone          string
	MonitoredChannels []string
	VIPContacts       []string
	UserEmail         string
	MarkOnlyDelivered bool

	SlackToken string
	BridgeURL  string

	LLMModel     string
	LLMAPIKey    string
	LLMAPIURL    string
	LLMMaxTokens int

	KafkaBrokers []string
}

// Load resolves the configuration from the environment. Only the
// database URL is strictly required; the digest scheduler has its own
// gate (see DigestReady).
func Load() Config {
	cfg := Config{
		Port:        config.GetEnv("PORT", "18090"),
		DatabaseURL: config.RequireEnv("DATABASE_URL"),

		DigestEnabled:     config.GetEnvBool("DIGEST_ENABLED", true),
		DigestSlots:       config.GetEnvList("DIGEST_SLOTS"),
		Timezone:          config.GetEnv("PRIMARY_TIMEZONE", ""),
		MonitoredChannels: config.GetEnvList("MONITORED_CHANNELS"),
		VIPContacts:       config.GetEnvList("VIP_CONTACTS"),
		UserEmail:         config.GetEnv("USER_EMAIL", ""),
		MarkOnlyDelivered: config.GetEnvBool("MARK_ONLY_DELIVERED", false),

		SlackToken: config.GetEnv("SLACK_BOT_TOKEN", ""),
		BridgeURL:  config.GetEnv("PROVIDER_BRIDGE_URL", "http://127.0.0.1:18091"),

		LLMModel:     config.GetEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMAPIKey:    config.GetEnv("LLM_API_KEY", ""),
		LLMAPIURL:    config.GetEnv("LLM_API_URL", ""),
		LLMMaxTokens: config.GetEnvInt("LLM_MAX_TOKENS", 300),

		KafkaBrokers: config.GetEnvList("KAFKA_BROKERS"),
	}
	if len(cfg.DigestSlots) == 0 {
		cfg.DigestSlots = []string{"09:00", "12:00", "17:00"}
	}
	return cfg
}

// Location parses the configured IANA timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, fmt.Errorf("primary timezone not configured")
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DigestReady reports whether the digest scheduler can run, and when it
// cannot, which settings are missing.
func (c Config) DigestReady() (bool, []string) {
	var missing []string
	if !c.DigestEnabled {
		missing = append(missing, "DIGEST_ENABLED")
	}
	if c.Timezone == "" {
		missing = append(missing, "PRIMARY_TIMEZONE")
	}
	if c.UserEmail == "" {
		missing = append(missing, "USER_EMAIL")
	}
	if c.SlackToken == "" {
		missing = append(missing, "SLACK_BOT_TOKEN")
	}
	if c.LLMAPIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if len(c.MonitoredChannels) == 0 {
		missing = append(missing, "MONITORED_CHANNELS")
	}
	return len(missing) == 0, missing
}
