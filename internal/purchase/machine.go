// Package purchase drives a checkout from invoice creation through the
// provider's pre-checkout and settlement callbacks.
//
//	new --pre-checkout accepted, account prepared--> pending
//	pending --provider confirms settlement--> paid
//	new/pending --older than the sweep threshold--> cancel
package purchase

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"aura-bot/internal/lock"
	"aura-bot/internal/metrics"
	"aura-bot/internal/models"
	"aura-bot/internal/notify"
	"aura-bot/internal/payment"
	"aura-bot/internal/pricing"
	"aura-bot/internal/referral"
	"aura-bot/internal/remnawave"
)

// AccountProvider owns the VPN accounts.
type AccountProvider interface {
	CreateUser(ctx context.Context, req remnawave.CreateUserRequest) (*remnawave.User, error)
	GetUser(ctx context.Context, uuid string) (*remnawave.User, error)
	UpdateUser(ctx context.Context, req remnawave.UpdateUserRequest) (*remnawave.User, error)
}

type Invoicer interface {
	SendInvoice(ctx context.Context, inv payment.Invoice) error
}

type PricingSource interface {
	Load(ctx context.Context) (pricing.Config, error)
}

// Guard serializes pre-checkout handling per purchase across processes.
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*lock.Lease, bool, error)
}

type Options struct {
	Currency     string
	Rail         string
	Squads       []string
	PanelTimeout time.Duration
}

type Deps struct {
	DB        *gorm.DB
	Pricing   PricingSource
	Referrals *referral.Ledger
	Panel     AccountProvider
	Invoicer  Invoicer
	Notifier  notify.Notifier
	Guard     Guard
	Metrics   *metrics.Metrics
}

type Machine struct {
	db        *gorm.DB
	pricing   PricingSource
	referrals *referral.Ledger
	panel     AccountProvider
	invoicer  Invoicer
	notifier  notify.Notifier
	guard     Guard
	metrics   *metrics.Metrics
	opts      Options
	now       func() time.Time
}

func NewMachine(deps Deps, opts Options) *Machine {
	if opts.Currency == "" {
		opts.Currency = "RUB"
	}
	if opts.Rail == "" {
		opts.Rail = "yookassa"
	}
	if opts.PanelTimeout <= 0 {
		opts.PanelTimeout = 30 * time.Second
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	return &Machine{
		db:        deps.DB,
		pricing:   deps.Pricing,
		referrals: deps.Referrals,
		panel:     deps.Panel,
		invoicer:  deps.Invoicer,
		notifier:  deps.Notifier,
		guard:     deps.Guard,
		metrics:   deps.Metrics,
		opts:      opts,
		now:       time.Now,
	}
}

// Quote prices a period for the user without creating anything.
func (m *Machine) Quote(ctx context.Context, user models.User, months int) (pricing.Breakdown, error) {
	cfg, err := m.pricing.Load(ctx)
	if err != nil {
		return pricing.Breakdown{}, fmt.Errorf("quote: %w", err)
	}
	count, err := m.referrals.CountThisMonth(ctx, user.ID)
	if err != nil {
		return pricing.Breakdown{}, fmt.Errorf("quote: %w", err)
	}
	return pricing.Compute(months, user, count, cfg), nil
}
