package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/database"
	"aura-bot/internal/level"
	"aura-bot/internal/models"
	"aura-bot/internal/pricing"
)

type userRow struct {
	models.User
	ReferralsCount int64 `json:"referrals_count"`
	PurchasesCount int64 `json:"purchases_count"`
}

type userDetails struct {
	models.User
	Inviter            *models.User        `json:"inviter"`
	Referrals          []models.Referral   `json:"referrals"`
	ReferralsThisMonth int64               `json:"referrals_this_month"`
	Purchases          []models.Purchase   `json:"purchases"`
	Quotas             []level.Usage       `json:"quotas"`
	Prices             []pricing.Breakdown `json:"prices,omitempty"`
}

type updateUserReq struct {
	Level    *models.Level `json:"level"`
	Discount *int          `json:"discount"`
}

type counter struct {
	ID uint
	N  int64
}

func (h *handler) stats(c *gin.Context) {
	ctx := c.Request.Context()
	var out struct {
		Users          int64 `json:"users"`
		Referrals      int64 `json:"referrals"`
		PaidPurchases  int64 `json:"paid_purchases"`
		OpenPurchases  int64 `json:"open_purchases"`
		ActivePromos   int64 `json:"active_promocodes"`
		BlacklistCount int64 `json:"blacklisted"`
	}
	db := h.DB.WithContext(ctx)
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&out.Users, db.Model(&models.User{})},
		{&out.Referrals, db.Model(&models.Referral{})},
		{&out.PaidPurchases, db.Model(&models.Purchase{}).Where("status = ?", models.PurchasePaid)},
		{&out.OpenPurchases, db.Model(&models.Purchase{}).Where("status IN ?", []models.PurchaseStatus{models.PurchaseNew, models.PurchasePending})},
		{&out.ActivePromos, db.Model(&models.PromoCode{}).Where("is_active = ?", true)},
		{&out.BlacklistCount, db.Model(&models.Blacklist{}).Where("is_active = ?", true)},
	}
	for _, q := range counts {
		if err := q.query.Count(q.dst).Error; err != nil {
			respondError(c, fmt.Errorf("stats: %w", err))
			return
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) listUsers(c *gin.Context) {
	ctx := c.Request.Context()
	page, limit := pageParams(c)

	q := h.DB.WithContext(ctx).Model(&models.User{})
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		cond := h.DB.Where("LOWER(username) LIKE ?", like).
			Or("LOWER(full_name) LIKE ?", like).
			Or("LOWER(aura_id) LIKE ?", like)
		if tg, err := strconv.ParseInt(search, 10, 64); err == nil {
			cond = cond.Or("telegram_id = ?", tg)
		}
		q = q.Where(cond)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, fmt.Errorf("count users: %w", err))
		return
	}
	var users []models.User
	if err := q.Order("created_at DESC, id DESC").Scopes(database.Paginate(page, limit)).Find(&users).Error; err != nil {
		respondError(c, fmt.Errorf("list users: %w", err))
		return
	}

	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	refs, err := h.countBy(ctx, &models.Referral{}, "inviter_id", ids)
	if err != nil {
		respondError(c, err)
		return
	}
	purchases, err := h.countBy(ctx, &models.Purchase{}, "user_id", ids)
	if err != nil {
		respondError(c, err)
		return
	}

	rows := make([]userRow, len(users))
	for i, u := range users {
		rows[i] = userRow{User: u, ReferralsCount: refs[u.ID], PurchasesCount: purchases[u.ID]}
	}
	c.JSON(http.StatusOK, database.NewPage(rows, total, page, limit))
}

func (h *handler) countBy(ctx context.Context, model any, column string, ids []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []counter
	err := h.DB.WithContext(ctx).Model(model).
		Select(column+" AS id, COUNT(*) AS n").
		Where(column+" IN ?", ids).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count by %s: %w", column, err)
	}
	for _, r := range rows {
		out[r.ID] = r.N
	}
	return out, nil
}

func (h *handler) loadUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := h.DB.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

func (h *handler) getUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user, err := h.loadUser(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	out := userDetails{User: *user, Quotas: level.Quotas(*user)}
	if out.Inviter, err = h.Referrals.InviterOf(ctx, user.ID); err != nil {
		respondError(c, err)
		return
	}
	if out.Referrals, err = h.Referrals.List(ctx, user.ID, 100); err != nil {
		respondError(c, err)
		return
	}
	if out.ReferralsThisMonth, err = h.Referrals.CountThisMonth(ctx, user.ID); err != nil {
		respondError(c, err)
		return
	}
	if err := h.DB.WithContext(ctx).Where("user_id = ?", user.ID).Order("created_at DESC").Limit(50).Find(&out.Purchases).Error; err != nil {
		respondError(c, fmt.Errorf("load purchases: %w", err))
		return
	}
	if h.Purchases != nil {
		for _, m := range pricing.Months {
			b, err := h.Purchases.Quote(ctx, *user, m)
			if err != nil {
				respondError(c, err)
				return
			}
			out.Prices = append(out.Prices, b)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) updateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req updateUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()

	if req.Discount != nil {
		if *req.Discount < 0 || *req.Discount > 100 {
			respondError(c, apperrors.ErrInvalidDiscount)
			return
		}
		res := h.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("discount", *req.Discount)
		if res.Error != nil {
			respondError(c, fmt.Errorf("update discount: %w", res.Error))
			return
		}
		if res.RowsAffected == 0 {
			respondError(c, apperrors.ErrUserNotFound)
			return
		}
	}
	if req.Level != nil {
		_, err := h.Levels.SetLevel(ctx, id, *req.Level, actor(c))
		if err != nil && !errors.Is(err, apperrors.ErrAlreadyAtLevel) {
			respondError(c, err)
			return
		}
	}

	user, err := h.loadUser(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// deleteUser removes the user with every row that references it.
func (h *handler) deleteUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		steps := []struct {
			model any
			where string
			args  []any
		}{
			{&models.Referral{}, "inviter_id = ? OR invited_id = ?", []any{id, id}},
			{&models.PromoRedemption{}, "user_id = ?", []any{id}},
			{&models.Purchase{}, "user_id = ?", []any{id}},
		}
		for _, s := range steps {
			if err := tx.Where(s.where, s.args...).Delete(s.model).Error; err != nil {
				return fmt.Errorf("delete user rows: %w", err)
			}
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

type inviterStat struct {
	User           *models.User `json:"user"`
	ReferralsCount int64        `json:"referrals_count"`
}

func (h *handler) referralStats(c *gin.Context) {
	ctx := c.Request.Context()
	var referrals, users int64
	if err := h.DB.WithContext(ctx).Model(&models.Referral{}).Count(&referrals).Error; err != nil {
		respondError(c, fmt.Errorf("count referrals: %w", err))
		return
	}
	if err := h.DB.WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		respondError(c, fmt.Errorf("count users: %w", err))
		return
	}

	var top []counter
	err := h.DB.WithContext(ctx).Model(&models.Referral{}).
		Select("inviter_id AS id, COUNT(*) AS n").
		Group("inviter_id").
		Order("n DESC, inviter_id").
		Limit(10).
		Scan(&top).Error
	if err != nil {
		respondError(c, fmt.Errorf("top inviters: %w", err))
		return
	}

	inviters := make([]inviterStat, 0, len(top))
	for _, t := range top {
		user, err := h.loadUser(ctx, t.ID)
		if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
			respondError(c, err)
			return
		}
		inviters = append(inviters, inviterStat{User: user, ReferralsCount: t.N})
	}

	avg := 0.0
	if users > 0 {
		avg = float64(referrals) / float64(users)
	}
	c.JSON(http.StatusOK, gin.H{
		"total_referrals":            referrals,
		"total_users":                users,
		"average_referrals_per_user": avg,
		"top_inviters":               inviters,
	})
}

// referralsOf returns the direct referrals of a user with their own counts.
func (h *handler) referralsOf(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user, err := h.loadUser(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	edges, err := h.Referrals.List(ctx, user.ID, 0)
	if err != nil {
		respondError(c, err)
		return
	}
	ids := make([]uint, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.InvitedID)
	}
	counts, err := h.countBy(ctx, &models.Referral{}, "inviter_id", ids)
	if err != nil {
		respondError(c, err)
		return
	}

	type node struct {
		User           *models.User `json:"user"`
		JoinedAt       time.Time    `json:"joined_at"`
		ReferralsCount int64        `json:"referrals_count"`
	}
	nodes := make([]node, 0, len(edges))
	for _, e := range edges {
		nodes = append(nodes, node{User: e.Invited, JoinedAt: e.CreatedAt, ReferralsCount: counts[e.InvitedID]})
	}
	inviter, err := h.Referrals.InviterOf(ctx, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "inviter": inviter, "referrals": nodes, "quotas": level.Quotas(*user)})
}
