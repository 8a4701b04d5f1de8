package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/config"
	"aura-bot/internal/models"
)

// Setting keys. The same names are used for environment defaults.
const (
	KeyBasePrice            = "BASE_PRICE"
	KeyReferralBonusPercent = "REFERRAL_BONUS_PERCENT"
	KeyReferralMaxBonus     = "REFERRAL_MAX_BONUS"
)

// Months lists the supported billing periods in display order.
var Months = []int{1, 3, 6, 12}

type LevelDiscount struct {
	Persist int `json:"persist_discount"`
	Max     int `json:"max_discount"`
}

type ReferralBonus struct {
	BonusPercent int `json:"bonus_percent"`
	MaxBonus     int `json:"max_bonus"`
}

type Config struct {
	BasePrice decimal.Decimal                `json:"base_price"`
	Discounts map[int]decimal.Decimal        `json:"discounts"`
	Levels    map[models.Level]LevelDiscount `json:"levels"`
	Referral  ReferralBonus                  `json:"referral"`
}

func Defaults(p config.Pricing) Config {
	return Config{
		BasePrice: decimal.NewFromFloat(p.BasePrice),
		Discounts: map[int]decimal.Decimal{
			1:  decimal.NewFromInt(1),
			3:  decimal.NewFromFloat(p.Discount3),
			6:  decimal.NewFromFloat(p.Discount6),
			12: decimal.NewFromFloat(p.Discount12),
		},
		Levels: map[models.Level]LevelDiscount{
			models.LevelFerrum:   {Persist: p.FerrumDiscount, Max: p.FerrumMaxDiscount},
			models.LevelArgentum: {Persist: p.ArgentumDiscount, Max: p.ArgentumMaxDiscount},
			models.LevelAurum:    {Persist: p.AurumDiscount, Max: p.AurumMaxDiscount},
			models.LevelPlatinum: {Persist: p.PlatinumDiscount, Max: p.PlatinumMaxDiscount},
		},
		Referral: ReferralBonus{BonusPercent: p.ReferralBonusPercent, MaxBonus: p.ReferralMaxBonus},
	}
}

func (c Config) clone() Config {
	out := Config{
		BasePrice: c.BasePrice,
		Discounts: make(map[int]decimal.Decimal, len(c.Discounts)),
		Levels:    make(map[models.Level]LevelDiscount, len(c.Levels)),
		Referral:  c.Referral,
	}
	for k, v := range c.Discounts {
		out.Discounts[k] = v
	}
	for k, v := range c.Levels {
		out.Levels[k] = v
	}
	return out
}

func DiscountKey(months int) string {
	return fmt.Sprintf("PRICE_DISCOUNT_%d_MONTHS", months)
}

func LevelDiscountKey(l models.Level) string {
	return "LEVEL_" + strings.ToUpper(string(l)) + "_DISCOUNT"
}

func LevelMaxDiscountKey(l models.Level) string {
	return "LEVEL_" + strings.ToUpper(string(l)) + "_MAX_DISCOUNT"
}

// Keys returns every setting key that overrides a pricing value.
func Keys() []string {
	keys := []string{KeyBasePrice}
	for _, m := range Months[1:] {
		keys = append(keys, DiscountKey(m))
	}
	for _, l := range models.Levels {
		keys = append(keys, LevelDiscountKey(l), LevelMaxDiscountKey(l))
	}
	return append(keys, KeyReferralBonusPercent, KeyReferralMaxBonus)
}

type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value, description, updatedBy string) error
}

// Source resolves the live pricing configuration: a settings row wins over
// the environment default of the same key.
type Source struct {
	defaults Config
	store    SettingsStore
}

func NewSource(defaults Config, store SettingsStore) *Source {
	return &Source{defaults: defaults, store: store}
}

func (s *Source) Defaults() Config {
	return s.defaults.clone()
}

func (s *Source) Load(ctx context.Context) (Config, error) {
	cfg := s.defaults.clone()

	for _, key := range Keys() {
		raw, found, err := s.store.Get(ctx, key)
		if err != nil {
			return Config{}, fmt.Errorf("load pricing: %w", err)
		}
		if !found {
			continue
		}
		if err := apply(&cfg, key, raw); err != nil {
			slog.WarnContext(ctx, "Ignoring invalid pricing override", "key", key, "value", raw, "error", err)
		}
	}
	return cfg, nil
}

// Save validates and stores one override.
func (s *Source) Save(ctx context.Context, key, value, description, actor string) error {
	key = strings.ToUpper(strings.TrimSpace(key))
	candidate := s.defaults.clone()
	if err := apply(&candidate, key, value); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidSetting, err)
	}
	return s.store.Set(ctx, key, value, description, actor)
}

// SaveConfig stores every value of cfg as an override.
func (s *Source) SaveConfig(ctx context.Context, cfg Config, actor string) error {
	values := map[string]string{
		KeyBasePrice:            cfg.BasePrice.String(),
		KeyReferralBonusPercent: strconv.Itoa(cfg.Referral.BonusPercent),
		KeyReferralMaxBonus:     strconv.Itoa(cfg.Referral.MaxBonus),
	}
	for _, m := range Months[1:] {
		if d, ok := cfg.Discounts[m]; ok {
			values[DiscountKey(m)] = d.String()
		}
	}
	for l, ld := range cfg.Levels {
		values[LevelDiscountKey(l)] = strconv.Itoa(ld.Persist)
		values[LevelMaxDiscountKey(l)] = strconv.Itoa(ld.Max)
	}
	for _, key := range Keys() {
		value, ok := values[key]
		if !ok {
			continue
		}
		if err := s.Save(ctx, key, value, "", actor); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return nil
}

func apply(cfg *Config, key, raw string) error {
	raw = strings.TrimSpace(raw)

	switch key {
	case KeyBasePrice:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return err
		}
		if d.IsNegative() {
			return fmt.Errorf("negative price %s", raw)
		}
		cfg.BasePrice = d
		return nil
	case KeyReferralBonusPercent:
		return setPercent(&cfg.Referral.BonusPercent, raw)
	case KeyReferralMaxBonus:
		return setPercent(&cfg.Referral.MaxBonus, raw)
	}

	for _, m := range Months[1:] {
		if key == DiscountKey(m) {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return err
			}
			if d.LessThanOrEqual(decimal.Zero) || d.GreaterThan(decimal.NewFromInt(1)) {
				return fmt.Errorf("multiplier %s out of (0,1]", raw)
			}
			cfg.Discounts[m] = d
			return nil
		}
	}

	for _, l := range models.Levels {
		ld := cfg.Levels[l]
		switch key {
		case LevelDiscountKey(l):
			if err := setPercent(&ld.Persist, raw); err != nil {
				return err
			}
		case LevelMaxDiscountKey(l):
			if err := setPercent(&ld.Max, raw); err != nil {
				return err
			}
		default:
			continue
		}
		cfg.Levels[l] = ld
		return nil
	}

	return fmt.Errorf("unknown pricing key %q", key)
}

func setPercent(dst *int, raw string) error {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	if v < 0 || v > 100 {
		return fmt.Errorf("percent %d out of [0,100]", v)
	}
	*dst = v
	return nil
}
