// Package admin serves the operator HTTP API under /api/admin.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"aura-bot/internal/level"
	"aura-bot/internal/onboarding"
	"aura-bot/internal/pricing"
	"aura-bot/internal/promo"
	"aura-bot/internal/purchase"
	"aura-bot/internal/referral"
	"aura-bot/internal/settings"
)

const defaultExportLimit = 10000

// Routes registers extra routes on the root engine, e.g. the panel webhook.
type Routes interface {
	RegisterRoutes(r gin.IRouter)
}

type Deps struct {
	DB        *gorm.DB
	Auth      *Auth
	Limiter   *RateLimiter
	Levels    *level.Engine
	Promos    *promo.Service
	Purchases *purchase.Machine
	Blacklist *onboarding.Blacklist
	Gate      *onboarding.Gate
	Pricing   *pricing.Source
	Settings  *settings.Store
	Referrals *referral.Ledger
	Gatherer  prometheus.Gatherer
	Extra     []Routes
}

type Options struct {
	AllowedOrigins []string
	StaleAfter     time.Duration
	ExportLimit    int
}

type handler struct {
	Deps
	opts Options
}

func NewRouter(deps Deps, opts Options) *gin.Engine {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 7 * 24 * time.Hour
	}
	if opts.ExportLimit <= 0 {
		opts.ExportLimit = defaultExportLimit
	}
	h := &handler{Deps: deps, opts: opts}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	config := cors.DefaultConfig()
	if len(opts.AllowedOrigins) > 0 {
		config.AllowOrigins = opts.AllowedOrigins
	} else {
		config.AllowAllOrigins = true
	}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.ExposeHeaders = []string{"Content-Disposition"}
	r.Use(cors.New(config))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	for _, extra := range deps.Extra {
		extra.RegisterRoutes(r)
	}

	api := r.Group("/api/admin")
	api.POST("/auth/login", deps.Limiter.Limit("admin_login", 5, time.Minute), h.login)

	protected := api.Group("")
	protected.Use(deps.Auth.Middleware())
	{
		protected.POST("/auth/logout", h.logout)
		protected.GET("/auth/validate", h.validate)
		protected.GET("/stats", h.stats)

		protected.GET("/users", h.listUsers)
		protected.GET("/users/:id", h.getUser)
		protected.PUT("/users/:id", h.updateUser)
		protected.DELETE("/users/:id", h.deleteUser)

		protected.GET("/blacklist", h.listBlacklist)
		protected.POST("/blacklist", h.addBlacklist)
		protected.DELETE("/blacklist/:id", h.removeBlacklist)

		protected.GET("/purchases", h.listPurchases)
		protected.GET("/purchases/export", h.exportPurchases)
		protected.GET("/purchases/:id", h.getPurchase)
		protected.POST("/purchases/cleanup", h.cleanupPurchases)

		protected.GET("/promocodes", h.listPromos)
		protected.GET("/promocodes/:id", h.getPromo)
		protected.POST("/promocodes", h.createPromo)
		protected.PUT("/promocodes/:id", h.updatePromo)
		protected.DELETE("/promocodes/:id", h.deletePromo)

		protected.GET("/config", h.getConfig)
		protected.PUT("/config/pricing", h.updatePricing)
		protected.PUT("/config/closed-mode", h.updateClosedMode)
		protected.PUT("/config/:key", h.updateConfigKey)

		protected.GET("/analytics/financial", h.financial)

		protected.GET("/referrals/stats", h.referralStats)
		protected.GET("/referrals/:id", h.referralsOf)
	}
	return r
}
