package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"aura-bot/internal/config"
	"aura-bot/internal/models"
)

func defaultConfig() Config {
	return Defaults(config.Pricing{
		BasePrice:  180,
		Discount3:  0.85,
		Discount6:  0.80,
		Discount12: 0.75,

		FerrumDiscount:      0,
		FerrumMaxDiscount:   25,
		ArgentumDiscount:    25,
		ArgentumMaxDiscount: 50,
		AurumDiscount:       50,
		AurumMaxDiscount:    50,
		PlatinumDiscount:    100,
		PlatinumMaxDiscount: 100,

		ReferralBonusPercent: 5,
		ReferralMaxBonus:     25,
	})
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestComputeFirstPurchaseNoReferral(t *testing.T) {
	b := Compute(1, models.User{Level: models.LevelFerrum}, 0, defaultConfig())

	assert.Equal(t, 0, b.FirstDiscount)
	assert.Equal(t, 0, b.ReferralBonus)
	assertDecimal(t, "180", b.Price)
	assert.Equal(t, 18000, b.MinorUnits())
}

func TestComputeReferredArgentumThreeMonths(t *testing.T) {
	b := Compute(3, models.User{Level: models.LevelArgentum}, 2, defaultConfig())

	assert.Equal(t, 10, b.ReferralBonus)
	assert.Equal(t, 35, b.FirstDiscount)
	assert.Equal(t, 25, b.TotalDiscount)
	assertDecimal(t, "153", b.Base)
	assertDecimal(t, "99.45", b.FirstMonthPrice)
	assertDecimal(t, "229.5", b.TotalMonthPrice)
	assertDecimal(t, "328.95", b.Price)
	assert.Equal(t, 32895, b.MinorUnits())
}

func TestComputeReferralBonusCapped(t *testing.T) {
	b := Compute(1, models.User{Level: models.LevelFerrum}, 40, defaultConfig())

	assert.Equal(t, 25, b.ReferralBonus)
	assert.Equal(t, 25, b.FirstDiscount)
	assertDecimal(t, "135", b.Price)
}

func TestComputeBulkIsCheaperPerMonth(t *testing.T) {
	cfg := defaultConfig()
	for _, level := range models.Levels[:3] {
		for _, discount := range []int{0, 5, 20} {
			user := models.User{Level: level, Discount: discount}
			one := Compute(1, user, 0, cfg).Price

			for _, months := range []int{3, 6, 12} {
				got := Compute(months, user, 0, cfg).Price
				assert.True(t, got.LessThan(one.Mul(decimal.NewFromInt(int64(months)))),
					"level=%s discount=%d months=%d price=%s one=%s", level, discount, months, got, one)
			}
		}
	}
}

func TestComputePlatinumIsFree(t *testing.T) {
	cfg := defaultConfig()
	for _, months := range Months {
		b := Compute(months, models.User{Level: models.LevelPlatinum, Discount: 30}, 5, cfg)
		assert.True(t, b.Price.IsZero(), "months=%d price=%s", months, b.Price)
		assert.True(t, b.Free())
		assert.Equal(t, 0, b.MinorUnits())
	}
}

func TestComputeNegativeUserDiscountClamped(t *testing.T) {
	b := Compute(1, models.User{Level: models.LevelFerrum, Discount: -40}, 0, defaultConfig())

	assert.Equal(t, 0, b.UserDiscount)
	assertDecimal(t, "180", b.Price)
}

func TestComputeUnsupportedMonthsUsesUnitMultiplier(t *testing.T) {
	b := Compute(2, models.User{Level: models.LevelFerrum}, 0, defaultConfig())

	assertDecimal(t, "1", b.Multiplier)
	assertDecimal(t, "360", b.Price)
	assert.False(t, ValidMonths(2))
	assert.True(t, ValidMonths(12))
}

func TestComputePersonalDiscountRespectsLevelCap(t *testing.T) {
	b := Compute(6, models.User{Level: models.LevelArgentum, Discount: 40}, 0, defaultConfig())

	assert.Equal(t, 50, b.FirstDiscount)
	assert.Equal(t, 50, b.TotalDiscount)
	// 180 * 0.8 * 6 * 0.5
	assertDecimal(t, "432", b.Price)
}
