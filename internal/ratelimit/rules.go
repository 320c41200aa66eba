package ratelimit

import (
	"fmt"
	"time"

	"github.com/Proton-105/stockbot/pkg/config"
)

// Commands with their own limits.
const (
	CommandChart    = "chart"
	CommandDownload = "download"
)

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// Enabled reports whether rate limiting is switched on.
func (r *Rules) Enabled() bool {
	return r.config.Enabled
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	for _, id := range r.config.Whitelist {
		if id == userID {
			return true
		}
	}
	return false
}

// GetCommandLimit returns the limit and window for an expensive command.
func (r *Rules) GetCommandLimit(command string) (int, time.Duration, error) {
	switch command {
	case CommandChart:
		return parseRule(r.config.Commands.Chart)
	case CommandDownload:
		return parseRule(r.config.Commands.Download)
	default:
		return 0, 0, fmt.Errorf("unsupported command %q", command)
	}
}

// GetPerUserLimit returns the per-user rate limiting rule.
func (r *Rules) GetPerUserLimit() (int, time.Duration, error) {
	return parseRule(r.config.PerUser)
}

// LongestWindow returns the largest configured window, used to age out idle keys.
func (r *Rules) LongestWindow() time.Duration {
	longest := time.Duration(0)
	for _, rule := range []config.RateLimitRule{r.config.PerUser, r.config.Commands.Chart, r.config.Commands.Download} {
		if _, window, err := parseRule(rule); err == nil && window > longest {
			longest = window
		}
	}
	return longest
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, fmt.Errorf("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, fmt.Errorf("parse window %q: %w", rule.Window, err)
	}
	if window <= 0 {
		return 0, 0, fmt.Errorf("window %q must be positive", rule.Window)
	}
	return rule.Limit, window, nil
}
