package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"
)

// Guard decides whether an update is new.
type Guard struct {
	store Store
	ttl   time.Duration
	log   *slog.Logger
}

// NewGuard creates a Guard remembering updates for ttl. A zero ttl accepts every update.
func NewGuard(store Store, ttl time.Duration, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}

	return &Guard{
		store: store,
		ttl:   ttl,
		log:   log,
	}
}

// First reports whether key is seen for the first time. Store failures accept the update.
func (g *Guard) First(ctx context.Context, key string) bool {
	if g == nil || g.store == nil || g.ttl <= 0 || key == "" {
		return true
	}

	claimed, err := g.store.Claim(ctx, key, g.ttl)
	if err != nil {
		g.log.Warn("idempotency check failed, accepting update", slog.String("key", key), slog.Any("error", err))
		return true
	}
	return claimed
}

// UpdateKey identifies the update in c. Update ids are unique per bot; callback and message ids
// cover contexts built without one.
func UpdateKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if id := c.Update().ID; id != 0 {
		return "upd:" + strconv.Itoa(id)
	}

	if cb := c.Callback(); cb != nil && cb.ID != "" {
		return "cb:" + cb.ID
	}

	if msg := c.Message(); msg != nil && msg.Chat != nil {
		return "msg:" + GenerateKey(msg.Chat.ID, msg.ID)
	}

	return ""
}

// GenerateKey builds a deterministic key using all provided parts.
func GenerateKey(parts ...interface{}) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v:", part)
	}

	return hex.EncodeToString(h.Sum(nil))
}
