package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"aura-bot/internal/config"
	"aura-bot/internal/level"
	"aura-bot/internal/metrics"
	"aura-bot/internal/models"
	"aura-bot/internal/onboarding"
	"aura-bot/internal/pricing"
	"aura-bot/internal/promo"
	"aura-bot/internal/purchase"
	"aura-bot/internal/referral"
	"aura-bot/internal/session"
	"aura-bot/internal/settings"
	"aura-bot/internal/testutil"
)

type fixture struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	token  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := settings.NewStore(db, time.Minute)
	source := pricing.NewSource(pricing.Defaults(config.Pricing{
		BasePrice: 180, Discount3: 0.85, Discount6: 0.80, Discount12: 0.75,
		FerrumMaxDiscount: 25,
		ArgentumDiscount:  25, ArgentumMaxDiscount: 50,
		AurumDiscount: 50, AurumMaxDiscount: 50,
		PlatinumDiscount: 100, PlatinumMaxDiscount: 100,
		ReferralBonusPercent: 5, ReferralMaxBonus: 25,
	}), store)
	ledger := referral.NewLedger(db)

	reg := prometheus.NewRegistry()
	m := metrics.MustNewMetrics(reg)

	auth, err := NewAuth("admin", "secret-pass", "", session.NewMemory(time.Hour))
	require.NoError(t, err)

	router := NewRouter(Deps{
		DB:        db,
		Auth:      auth,
		Limiter:   NewRateLimiter(client),
		Levels:    level.NewEngine(db, nil),
		Promos:    promo.NewService(db),
		Purchases: purchase.NewMachine(purchase.Deps{DB: db, Pricing: source, Referrals: ledger, Metrics: m}, purchase.Options{}),
		Blacklist: onboarding.NewBlacklist(db, nil),
		Gate:      onboarding.NewGate(store, false),
		Pricing:   source,
		Settings:  store,
		Referrals: ledger,
		Gatherer:  reg,
	}, Options{})

	f := &fixture{t: t, db: db, router: router}
	w := f.do(http.MethodPost, "/api/admin/auth/login", map[string]string{"username": "admin", "password": "secret-pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	f.token = login.Token
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) decode(w *httptest.ResponseRecorder, out any) {
	f.t.Helper()
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (f *fixture) purchase(user *models.User, status models.PurchaseStatus, amount string) models.Purchase {
	f.t.Helper()
	p := models.Purchase{
		ID:       uuid.NewString(),
		UserID:   user.ID,
		Type:     models.RailYooKassa,
		Status:   status,
		Amount:   decimal.RequireFromString(amount),
		Currency: "RUB",
		Month:    1,
	}
	if status == models.PurchasePaid {
		now := time.Now()
		p.PaidAt = &now
	}
	require.NoError(f.t, f.db.Create(&p).Error)
	return p
}

func TestAuthFlow(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/admin/auth/validate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"admin"`)

	token := f.token
	f.token = ""
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/admin/users", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		f.do(http.MethodPost, "/api/admin/auth/login", map[string]string{"username": "admin", "password": "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/admin/auth/login", map[string]string{}).Code)

	f.token = token
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/admin/auth/logout", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/admin/auth/validate", nil).Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	f := newFixture(t)
	f.token = ""
	// One successful login already happened in the fixture.
	for i := 0; i < 4; i++ {
		w := f.do(http.MethodPost, "/api/admin/auth/login", map[string]string{"username": "admin", "password": "bad"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := f.do(http.MethodPost, "/api/admin/auth/login", map[string]string{"username": "admin", "password": "secret-pass"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestNewAuthRequiresCredentials(t *testing.T) {
	_, err := NewAuth("", "x", "", session.NewMemory(0))
	assert.Error(t, err)
	_, err = NewAuth("admin", "", "", session.NewMemory(0))
	assert.Error(t, err)
	_, err = NewAuth("admin", "", "not-a-hash", session.NewMemory(0))
	assert.Error(t, err)
}

func TestUsersEndpoints(t *testing.T) {
	f := newFixture(t)
	inviter := testutil.CreateUser(t, f.db, 1001, models.LevelAurum)
	require.NoError(t, f.db.Model(inviter).Update("username", "boss").Error)
	invited := testutil.CreateUser(t, f.db, 1002, models.LevelFerrum)
	testutil.Link(t, f.db, inviter, invited)
	f.purchase(invited, models.PurchasePaid, "180")

	var page struct {
		Total int64     `json:"total"`
		Data  []userRow `json:"data"`
	}
	w := f.do(http.MethodGet, "/api/admin/users?search=BOSS", nil)
	require.Equal(t, http.StatusOK, w.Code)
	f.decode(w, &page)
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, inviter.ID, page.Data[0].ID)
	assert.EqualValues(t, 1, page.Data[0].ReferralsCount)

	w = f.do(http.MethodGet, "/api/admin/users?search=1002", nil)
	f.decode(w, &page)
	require.EqualValues(t, 1, page.Total)
	assert.EqualValues(t, 1, page.Data[0].PurchasesCount)

	var details userDetails
	w = f.do(http.MethodGet, fmt.Sprintf("/api/admin/users/%d", invited.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	f.decode(w, &details)
	require.NotNil(t, details.Inviter)
	assert.Equal(t, inviter.ID, details.Inviter.ID)
	assert.Len(t, details.Purchases, 1)
	assert.Len(t, details.Prices, len(pricing.Months))

	w = f.do(http.MethodPut, fmt.Sprintf("/api/admin/users/%d", invited.ID), map[string]any{"level": "argentum", "discount": 10})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fresh := testutil.Reload(t, f.db, invited)
	assert.Equal(t, models.LevelArgentum, fresh.Level)
	assert.Equal(t, 10, fresh.Discount)

	assert.Equal(t, http.StatusBadRequest,
		f.do(http.MethodPut, fmt.Sprintf("/api/admin/users/%d", invited.ID), map[string]any{"discount": 150}).Code)
	assert.Equal(t, http.StatusBadRequest,
		f.do(http.MethodPut, fmt.Sprintf("/api/admin/users/%d", invited.ID), map[string]any{"level": "gold"}).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/admin/users/999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/admin/users/abc", nil).Code)

	w = f.do(http.MethodGet, fmt.Sprintf("/api/admin/referrals/%d", inviter.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"referrals_count":0`)

	w = f.do(http.MethodGet, "/api/admin/referrals/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_referrals":1`)

	require.Equal(t, http.StatusOK, f.do(http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", invited.ID), nil).Code)
	var count int64
	require.NoError(t, f.db.Model(&models.Referral{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, f.db.Model(&models.Purchase{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", invited.ID), nil).Code)
}

func TestPromoCodeEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/admin/promocodes", map[string]any{"code": "spring", "discount": 15, "max_uses": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.PromoCode
	f.decode(w, &created)
	assert.Equal(t, "SPRING", created.Code)
	assert.True(t, created.IsActive)

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/admin/promocodes", map[string]any{"code": "SPRING", "discount": 5}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/admin/promocodes", map[string]any{"code": "x"}).Code)

	path := fmt.Sprintf("/api/admin/promocodes/%d", created.ID)
	w = f.do(http.MethodPut, path, map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_active":false`)

	w = f.do(http.MethodGet, "/api/admin/promocodes?search=spr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = f.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redemptions":0`)

	require.Equal(t, http.StatusOK, f.do(http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, path, nil).Code)
}

func TestBlacklistEndpoints(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/admin/blacklist", map[string]any{"reason": "x"}).Code)

	w := f.do(http.MethodPost, "/api/admin/blacklist", map[string]any{"telegram_id": 555, "reason": "spam"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var entry models.Blacklist
	f.decode(w, &entry)
	assert.Equal(t, "admin", entry.CreatedBy)

	w = f.do(http.MethodGet, "/api/admin/blacklist", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	path := fmt.Sprintf("/api/admin/blacklist/%d", entry.ID)
	require.Equal(t, http.StatusOK, f.do(http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, path, nil).Code)
	assert.Contains(t, f.do(http.MethodGet, "/api/admin/blacklist?all=true", nil).Body.String(), `"total":1`)
}

func TestConfigEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPut, "/api/admin/config/pricing", map[string]any{
		"base_price": "200",
		"levels":     map[string]any{"argentum": map[string]int{"persist_discount": 30, "max_discount": 60}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cfg pricing.Config
	f.decode(w, &cfg)
	assert.True(t, cfg.BasePrice.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 30, cfg.Levels[models.LevelArgentum].Persist)
	assert.Equal(t, 50, cfg.Levels[models.LevelAurum].Max)

	require.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/admin/config/base_price", map[string]string{"value": "250"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/api/admin/config/BASE_PRICE", map[string]string{"value": "-1"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/api/admin/config/CLOSED_MODE_ENABLED", map[string]string{"value": "perhaps"}).Code)

	require.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/admin/config/closed-mode", map[string]bool{"enabled": true}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/api/admin/config/closed-mode", map[string]any{}).Code)

	w = f.do(http.MethodGet, "/api/admin/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Pricing    pricing.Config `json:"pricing"`
		Defaults   pricing.Config `json:"defaults"`
		ClosedMode bool           `json:"closed_mode"`
	}
	f.decode(w, &out)
	assert.True(t, out.Pricing.BasePrice.Equal(decimal.NewFromInt(250)))
	assert.True(t, out.Defaults.BasePrice.Equal(decimal.NewFromInt(180)))
	assert.True(t, out.ClosedMode)
}

func TestPurchaseEndpoints(t *testing.T) {
	f := newFixture(t)
	user := testutil.CreateUser(t, f.db, 2001, models.LevelFerrum)
	paid := f.purchase(user, models.PurchasePaid, "180")
	stale := f.purchase(user, models.PurchaseNew, "344.25")
	require.NoError(t, f.db.Model(&models.Purchase{}).Where("id = ?", stale.ID).
		UpdateColumn("created_at", time.Now().Add(-30*24*time.Hour)).Error)

	w := f.do(http.MethodGet, "/api/admin/purchases?status=paid", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), paid.ID)
	assert.NotContains(t, w.Body.String(), stale.ID)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/admin/purchases?status=weird", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/admin/purchases?from=yesterday", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/admin/purchases/"+paid.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/admin/purchases/missing", nil).Code)

	w = f.do(http.MethodGet, "/api/admin/analytics/financial", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fin purchase.Financial
	f.decode(w, &fin)
	assert.EqualValues(t, 1, fin.Paid)
	assert.EqualValues(t, 1, fin.Pending)

	w = f.do(http.MethodGet, "/api/admin/purchases/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	book, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	rows, err := book.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])

	w = f.do(http.MethodPost, "/api/admin/purchases/cleanup", map[string]int{"days_old": 7})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cancelled":1`)

	w = f.do(http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paid_purchases":1`)
	assert.Contains(t, w.Body.String(), `"open_purchases":0`)
}

func TestMetricsAndHealth(t *testing.T) {
	f := newFixture(t)
	f.token = ""
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", nil).Code)
	w := f.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "aura_bot_purchase_swept_total")
}
