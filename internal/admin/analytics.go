package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handler) financial(c *gin.Context) {
	from, ok := timeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to")
	if !ok {
		return
	}
	out, err := h.Purchases.Financial(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
