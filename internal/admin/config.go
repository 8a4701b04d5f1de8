package admin

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/onboarding"
	"aura-bot/internal/pricing"
	"aura-bot/internal/settings"
)

func (h *handler) getConfig(c *gin.Context) {
	ctx := c.Request.Context()
	rows, err := h.Settings.All(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	cfg, err := h.Pricing.Load(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"settings":    rows,
		"pricing":     cfg,
		"defaults":    h.Pricing.Defaults(),
		"closed_mode": h.Gate.Enabled(ctx),
	})
}

// updatePricing merges the body into the live configuration and stores
// every resulting value.
func (h *handler) updatePricing(c *gin.Context) {
	ctx := c.Request.Context()
	cfg, err := h.Pricing.Load(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.Pricing.SaveConfig(ctx, cfg, actor(c)); err != nil {
		respondError(c, err)
		return
	}
	saved, err := h.Pricing.Load(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

type closedModeReq struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *handler) updateClosedMode(c *gin.Context) {
	var req closedModeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.Gate.SetEnabled(c.Request.Context(), *req.Enabled, actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed_mode": *req.Enabled})
}

type configKeyReq struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

// updateConfigKey validates pricing keys. Other keys are stored as given.
func (h *handler) updateConfigKey(c *gin.Context) {
	var req configKeyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	key := settings.NormalizeKey(c.Param("key"))

	var err error
	switch {
	case slices.Contains(pricing.Keys(), key):
		err = h.Pricing.Save(ctx, key, req.Value, req.Description, actor(c))
	case key == onboarding.KeyClosedMode:
		var on bool
		if on, err = parseBool(req.Value); err == nil {
			err = h.Gate.SetEnabled(ctx, on, actor(c))
		}
	default:
		err = h.Settings.Set(ctx, key, req.Value, req.Description, actor(c))
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}

func parseBool(raw string) (bool, error) {
	on, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrInvalidSetting, err)
	}
	return on, nil
}
