package purchase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/database"
	"aura-bot/internal/models"
)

// Filter narrows admin listings. Zero fields are ignored.
type Filter struct {
	Status     models.PurchaseStatus
	TelegramID int64
	From       *time.Time
	To         *time.Time
}

func (f Filter) apply(db *gorm.DB) *gorm.DB {
	if f.Status != "" {
		db = db.Where("purchases.status = ?", f.Status)
	}
	if f.TelegramID != 0 {
		db = db.Where("purchases.user_id IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&models.User{}).Select("id").Where("telegram_id = ?", f.TelegramID))
	}
	if f.From != nil {
		db = db.Where("purchases.created_at >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("purchases.created_at < ?", *f.To)
	}
	return db
}

func (m *Machine) List(ctx context.Context, f Filter, page, limit int) (database.Page[models.Purchase], error) {
	var (
		total int64
		rows  []models.Purchase
	)
	q := f.apply(m.db.WithContext(ctx).Model(&models.Purchase{}))
	if err := q.Count(&total).Error; err != nil {
		return database.Page[models.Purchase]{}, fmt.Errorf("count purchases: %w", err)
	}
	err := f.apply(m.db.WithContext(ctx)).Preload("User").
		Order("created_at DESC").
		Scopes(database.Paginate(page, limit)).
		Find(&rows).Error
	if err != nil {
		return database.Page[models.Purchase]{}, fmt.Errorf("list purchases: %w", err)
	}
	return database.NewPage(rows, total, page, limit), nil
}

func (m *Machine) Get(ctx context.Context, id string) (*models.Purchase, error) {
	var p models.Purchase
	err := m.db.WithContext(ctx).Preload("User").Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return &p, nil
}

// Export returns every purchase matching f, newest first, up to max rows.
func (m *Machine) Export(ctx context.Context, f Filter, max int) ([]models.Purchase, error) {
	var rows []models.Purchase
	err := f.apply(m.db.WithContext(ctx)).Preload("User").
		Order("created_at DESC").
		Limit(max).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("export purchases: %w", err)
	}
	return rows, nil
}

// Bucket is the paid revenue of one group.
type Bucket struct {
	Key      string          `json:"key"`
	Currency string          `json:"currency"`
	Count    int64           `json:"count"`
	Amount   decimal.Decimal `json:"amount"`
}

type Financial struct {
	From       *time.Time       `json:"from,omitempty"`
	To         *time.Time       `json:"to,omitempty"`
	Paid       int64            `json:"paid"`
	Pending    int64            `json:"pending"`
	Cancelled  int64            `json:"cancelled"`
	ByCurrency []Bucket         `json:"by_currency"`
	ByLevel    []Bucket         `json:"by_level"`
	ByMonth    []Bucket         `json:"by_month"`
	ByPeriod   []Bucket         `json:"by_period"`
	Statuses   map[string]int64 `json:"statuses"`
}

type financialRow struct {
	Status   models.PurchaseStatus
	Amount   decimal.Decimal
	Currency string
	Month    int
	PaidAt   *time.Time
	Level    models.Level
}

// Financial aggregates purchases created within the optional range. Revenue
// buckets only count paid purchases.
func (m *Machine) Financial(ctx context.Context, from, to *time.Time) (*Financial, error) {
	var rows []financialRow
	err := Filter{From: from, To: to}.apply(m.db.WithContext(ctx).Model(&models.Purchase{})).
		Select("purchases.status, purchases.amount, purchases.currency, purchases.month, purchases.paid_at, users.level").
		Joins("JOIN users ON users.id = purchases.user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("financial analytics: %w", err)
	}

	out := &Financial{From: from, To: to, Statuses: map[string]int64{}}
	currency := newBuckets()
	level := newBuckets()
	month := newBuckets()
	period := newBuckets()
	for _, r := range rows {
		out.Statuses[string(r.Status)]++
		switch r.Status {
		case models.PurchasePending, models.PurchaseNew:
			out.Pending++
			continue
		case models.PurchaseCancel:
			out.Cancelled++
			continue
		}
		out.Paid++
		currency.add(r.Currency, r.Currency, r.Amount)
		level.add(string(r.Level), r.Currency, r.Amount)
		period.add(PeriodLabel(r.Month), r.Currency, r.Amount)
		if r.PaidAt != nil {
			month.add(r.PaidAt.Format("2006-01"), r.Currency, r.Amount)
		}
	}
	out.ByCurrency = currency.sorted()
	out.ByLevel = level.sorted()
	out.ByMonth = month.sorted()
	out.ByPeriod = period.sorted()
	return out, nil
}

type buckets map[[2]string]*Bucket

func newBuckets() buckets { return buckets{} }

func (b buckets) add(key, currency string, amount decimal.Decimal) {
	k := [2]string{key, currency}
	bucket, ok := b[k]
	if !ok {
		bucket = &Bucket{Key: key, Currency: currency}
		b[k] = bucket
	}
	bucket.Count++
	bucket.Amount = bucket.Amount.Add(amount)
}

func (b buckets) sorted() []Bucket {
	out := make([]Bucket, 0, len(b))
	for _, v := range b {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Currency < out[j].Currency
	})
	return out
}
