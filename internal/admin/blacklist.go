package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"aura-bot/internal/onboarding"
)

func (h *handler) listBlacklist(c *gin.Context) {
	page, limit := pageParams(c)
	out, err := h.Blacklist.List(c.Request.Context(), page, limit, c.Query("all") != "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) addBlacklist(c *gin.Context) {
	var in onboarding.BlacklistInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := h.Blacklist.Add(c.Request.Context(), in, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *handler) removeBlacklist(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.Blacklist.Remove(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed from blacklist"})
}
