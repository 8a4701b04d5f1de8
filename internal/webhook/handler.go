// Package webhook receives user lifecycle events from the panel and forwards
// them to the linked Telegram users.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"aura-bot/internal/metrics"
	"aura-bot/internal/notify"
	"aura-bot/internal/remnawave"
	"aura-bot/internal/utils"
)

const (
	SignatureHeader = "X-Remnawave-Signature"
	TimestampHeader = "X-Remnawave-Timestamp"

	maxBody   = 1 << 20
	dedupeTTL = 24 * time.Hour
)

var messages = map[string]string{
	"user.disabled":            "🔒 Ваша учётная запись <b>отключена</b>. Обратитесь в поддержку.",
	"user.enabled":             "✅ Ваша учётная запись <b>активирована</b>. Добро пожаловать!",
	"user.expired":             "⌛ Ваша <b>подписка закончилась</b>. Пожалуйста, продлите её.",
	"user.expires_in_72_hours": "⏳ Подписка заканчивается <b>через 3 дня</b>. Пожалуйста, продлите её.",
	"user.expires_in_48_hours": "⏳ Подписка заканчивается <b>через 2 дня</b>. Пожалуйста, продлите её.",
	"user.expires_in_24_hours": "⚠️ Подписка заканчивается <b>через 24 часа</b>. Пожалуйста, продлите её.",
}

// Deduper remembers delivered events so panel retries are acknowledged once.
type Deduper interface {
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Handler struct {
	secret   string
	allow    utils.Allowlist
	dedupe   Deduper
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

func NewHandler(secret string, allowedCIDRs []string, dedupe Deduper, notifier notify.Notifier, m *metrics.Metrics) *Handler {
	allow, invalid := utils.ParseAllowlist(allowedCIDRs)
	if len(invalid) > 0 {
		slog.Warn("Ignoring invalid webhook allowlist entries", "entries", invalid)
	}
	return &Handler{secret: secret, allow: allow, dedupe: dedupe, notifier: notifier, metrics: m}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/webhook/panel", h.Handle)
}

// Verify compares the hex HMAC-SHA256 of body with signature in constant time.
func Verify(body []byte, signature, secret string) bool {
	want, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// Sign is the counterpart of Verify.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *Handler) Handle(c *gin.Context) {
	ctx := c.Request.Context()

	if !h.allow.Empty() && !h.allow.Allows(c.ClientIP()) {
		slog.WarnContext(ctx, "Webhook from a disallowed address", "ip", c.ClientIP())
		h.metrics.WebhookEvent("", "forbidden")
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if signature == "" {
		h.metrics.WebhookEvent("", "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing signature"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		h.metrics.WebhookEvent("", "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad body"})
		return
	}
	if !Verify(body, signature, h.secret) {
		slog.WarnContext(ctx, "Webhook signature mismatch", "ip", c.ClientIP())
		h.metrics.WebhookEvent("", "unauthorized")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil || event.Event == "" || len(event.Data) == 0 {
		h.metrics.WebhookEvent("", "bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	key := "webhook:" + strings.ToLower(signature)
	if h.dedupe != nil {
		first, err := h.dedupe.FirstSeen(ctx, key, dedupeTTL)
		if err != nil {
			slog.WarnContext(ctx, "Webhook dedupe unavailable", "error", err)
		} else if !first {
			h.metrics.WebhookEvent(event.Event, "duplicate")
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
	}

	outcome, err := h.Dispatch(ctx, event)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to handle webhook event", "event", event.Event, "error", err)
		if h.dedupe != nil {
			if ferr := h.dedupe.Forget(context.WithoutCancel(ctx), key); ferr != nil {
				slog.WarnContext(ctx, "Failed to reset webhook dedupe key", "error", ferr)
			}
		}
		h.metrics.WebhookEvent(event.Event, "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bad event"})
		return
	}

	h.metrics.WebhookEvent(event.Event, outcome)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Dispatch delivers a user event. Unknown events and accounts without a
// linked Telegram id are acknowledged and ignored.
func (h *Handler) Dispatch(ctx context.Context, event Event) (string, error) {
	text, ok := messages[event.Event]
	if !ok {
		slog.DebugContext(ctx, "Unhandled webhook event", "event", event.Event)
		return "ignored", nil
	}

	var user remnawave.User
	if err := json.Unmarshal(event.Data, &user); err != nil {
		return "", fmt.Errorf("decode %s payload: %w", event.Event, err)
	}
	if user.TelegramID == nil || *user.TelegramID == 0 {
		slog.WarnContext(ctx, "Panel user is not linked to Telegram", "username", user.Username, "event", event.Event)
		return "unlinked", nil
	}

	if h.notifier == nil {
		return "", errors.New("notifier is not configured")
	}
	if err := h.notifier.Notify(ctx, *user.TelegramID, text); err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Webhook event delivered", "event", event.Event, "telegram_id", *user.TelegramID)
	return "delivered", nil
}
