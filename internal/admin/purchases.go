package admin

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"aura-bot/internal/models"
	"aura-bot/internal/purchase"
)

func purchaseFilter(c *gin.Context) (purchase.Filter, bool) {
	f := purchase.Filter{Status: models.PurchaseStatus(c.Query("status"))}
	switch f.Status {
	case "", models.PurchaseNew, models.PurchasePending, models.PurchasePaid, models.PurchaseCancel:
	default:
		badRequest(c, fmt.Errorf("unknown status %q", f.Status))
		return f, false
	}
	if raw := c.Query("telegram_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, fmt.Errorf("invalid telegram_id"))
			return f, false
		}
		f.TelegramID = id
	}
	var ok bool
	if f.From, ok = timeQuery(c, "from"); !ok {
		return f, false
	}
	if f.To, ok = timeQuery(c, "to"); !ok {
		return f, false
	}
	return f, true
}

func (h *handler) listPurchases(c *gin.Context) {
	f, ok := purchaseFilter(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	out, err := h.Purchases.List(c.Request.Context(), f, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) getPurchase(c *gin.Context) {
	p, err := h.Purchases.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type cleanupReq struct {
	DaysOld int `json:"days_old"`
}

func (h *handler) cleanupPurchases(c *gin.Context) {
	var req cleanupReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	olderThan := h.opts.StaleAfter
	if req.DaysOld > 0 {
		olderThan = time.Duration(req.DaysOld) * 24 * time.Hour
	}
	n, err := h.Purchases.Sweep(c.Request.Context(), olderThan)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": n})
}

func (h *handler) exportPurchases(c *gin.Context) {
	f, ok := purchaseFilter(c)
	if !ok {
		return
	}
	rows, err := h.Purchases.Export(c.Request.Context(), f, h.opts.ExportLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	book, err := purchasesWorkbook(rows)
	if err != nil {
		respondError(c, err)
		return
	}
	defer book.Close()

	name := fmt.Sprintf("purchases_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := book.Write(c.Writer); err != nil {
		respondError(c, fmt.Errorf("write workbook: %w", err))
	}
}
