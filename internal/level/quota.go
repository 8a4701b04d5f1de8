package level

import "aura-bot/internal/models"

const (
	ArgentumQuota = 10
	AurumQuota    = 5
)

// quota describes the counter a granter spends when moving a referral into a tier.
type quota struct {
	column string
	limit  int
	field  func(*models.User) *int
}

func quotaFor(l models.Level) (quota, bool) {
	switch l {
	case models.LevelArgentum:
		return quota{
			column: "granted_argentum",
			limit:  ArgentumQuota,
			field:  func(u *models.User) *int { return &u.GrantedArgentum },
		}, true
	case models.LevelAurum:
		return quota{
			column: "granted_aurum",
			limit:  AurumQuota,
			field:  func(u *models.User) *int { return &u.GrantedAurum },
		}, true
	default:
		return quota{}, false
	}
}

// Settable lists the levels a granter of the given level may assign to
// their referrals, lowest first. Nil means no authority.
func Settable(granter models.Level) []models.Level {
	switch granter {
	case models.LevelAurum:
		return []models.Level{models.LevelFerrum, models.LevelArgentum}
	case models.LevelPlatinum:
		return []models.Level{models.LevelFerrum, models.LevelArgentum, models.LevelAurum}
	default:
		return nil
	}
}

func CanManage(granter models.Level) bool {
	return len(Settable(granter)) > 0
}

func canSet(granter, l models.Level) bool {
	for _, s := range Settable(granter) {
		if s == l {
			return true
		}
	}
	return false
}

// Usage is the quota state of one tier for a granter.
type Usage struct {
	Level models.Level `json:"level"`
	Used  int          `json:"used"`
	Limit int          `json:"limit"`
}

func (u Usage) Remaining() int {
	return max(0, u.Limit-u.Used)
}

// Quotas reports the tiers the granter may spend quota on.
func Quotas(granter models.User) []Usage {
	var out []Usage
	for _, l := range Settable(granter.Level) {
		q, ok := quotaFor(l)
		if !ok {
			continue
		}
		out = append(out, Usage{Level: l, Used: *q.field(&granter), Limit: q.limit})
	}
	return out
}
