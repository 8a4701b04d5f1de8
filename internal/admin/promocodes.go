package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"aura-bot/internal/promo"
)

func (h *handler) listPromos(c *gin.Context) {
	page, limit := pageParams(c)
	out, err := h.Promos.List(c.Request.Context(), page, limit, c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) getPromo(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	out, err := h.Promos.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) createPromo(c *gin.Context) {
	var in promo.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.Promos.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handler) updatePromo(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in promo.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.Promos.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) deletePromo(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.Promos.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "promo code deleted"})
}
