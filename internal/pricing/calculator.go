// Package pricing computes subscription prices from the user's level,
// personal discount and the inviter's referrals of the current month.
package pricing

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"aura-bot/internal/models"
)

// Breakdown keeps every intermediate value so the bot can explain a price.
type Breakdown struct {
	Months          int             `json:"months"`
	Level           models.Level    `json:"level"`
	UserDiscount    int             `json:"user_discount"`
	PersistDiscount int             `json:"persist_discount"`
	MaxDiscount     int             `json:"max_discount"`
	ReferralCount   int64           `json:"referral_count"`
	ReferralBonus   int             `json:"referral_bonus"`
	FirstDiscount   int             `json:"first_discount"`
	TotalDiscount   int             `json:"total_discount"`
	Multiplier      decimal.Decimal `json:"multiplier"`
	Base            decimal.Decimal `json:"base"`
	FirstMonthPrice decimal.Decimal `json:"first_month_price"`
	TotalMonthPrice decimal.Decimal `json:"total_month_price"`
	Price           decimal.Decimal `json:"price"`
}

// MinorUnits is the price in kopecks, as Telegram invoices expect.
func (b Breakdown) MinorUnits() int {
	return int(b.Price.Shift(2).Round(0).IntPart())
}

func (b Breakdown) Free() bool {
	return !b.Price.IsPositive()
}

func ValidMonths(months int) bool {
	for _, m := range Months {
		if m == months {
			return true
		}
	}
	return false
}

// Compute prices a subscription of the given length. Unsupported lengths are
// priced with multiplier 1.
func Compute(months int, user models.User, referralCount int64, cfg Config) Breakdown {
	if referralCount < 0 {
		referralCount = 0
	}

	multiplier, ok := cfg.Discounts[months]
	if !ok {
		slog.Warn("Unsupported billing period, pricing without bulk discount", "months", months, "telegram_id", user.TelegramID)
		multiplier = decimal.NewFromInt(1)
	}

	lvl := cfg.Levels[user.Level]
	persist := clampPercent(lvl.Persist)
	maxDiscount := clampPercent(lvl.Max)
	userDiscount := user.EffectiveDiscount()

	bonus := clampPercent(int(min(referralCount*int64(cfg.Referral.BonusPercent), int64(cfg.Referral.MaxBonus))))
	first := clampPercent(min(userDiscount+persist+bonus, maxDiscount))
	total := clampPercent(min(userDiscount+persist, maxDiscount))

	base := cfg.BasePrice.Mul(multiplier)
	firstPrice := base.Mul(factor(first))
	totalPrice := decimal.Zero
	price := firstPrice
	if months > 1 {
		totalPrice = base.Mul(decimal.NewFromInt(int64(months - 1))).Mul(factor(total))
		price = firstPrice.Add(totalPrice)
	}

	return Breakdown{
		Months:          months,
		Level:           user.Level,
		UserDiscount:    userDiscount,
		PersistDiscount: persist,
		MaxDiscount:     maxDiscount,
		ReferralCount:   referralCount,
		ReferralBonus:   bonus,
		FirstDiscount:   first,
		TotalDiscount:   total,
		Multiplier:      multiplier,
		Base:            base,
		FirstMonthPrice: firstPrice,
		TotalMonthPrice: totalPrice,
		Price:           price.Round(2),
	}
}

// factor returns 1 - percent/100.
func factor(percent int) decimal.Decimal {
	return decimal.NewFromInt(int64(100 - percent)).Div(decimal.NewFromInt(100))
}

func clampPercent(v int) int {
	return max(0, min(v, 100))
}
