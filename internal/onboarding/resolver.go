package onboarding

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/models"
	"aura-bot/internal/notify"
	"aura-bot/internal/referral"
)

const refPrefix = "ref_"

// Identity is what Telegram tells us about the sender.
type Identity struct {
	TelegramID int64
	Username   string
	FullName   string
	Language   string
}

type Result struct {
	User    *models.User
	Created bool
	// Inviter is set when this interaction recorded a referral edge.
	Inviter *models.User
}

type Resolver struct {
	db        *gorm.DB
	gate      *Gate
	blacklist *Blacklist
	ledger    *referral.Ledger
	notifier  notify.Notifier
}

func NewResolver(db *gorm.DB, gate *Gate, blacklist *Blacklist, ledger *referral.Ledger, notifier notify.Notifier) *Resolver {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Resolver{db: db, gate: gate, blacklist: blacklist, ledger: ledger, notifier: notifier}
}

// ParseRef extracts the inviter telegram id from a /start payload.
func ParseRef(payload string) (int64, bool) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, refPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(payload, refPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// RefLink is the deep link a user shares to invite others.
func RefLink(botUsername string, telegramID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%s%d", botUsername, refPrefix, telegramID)
}

// Start handles /start with an optional ref_<telegramId> payload. A valid
// payload records the referral edge unless the user already has one, so an
// existing user may still be linked by their first inviter. In closed mode a
// brand-new user without a valid inviter is refused before any row is written.
func (r *Resolver) Start(ctx context.Context, id Identity, payload string) (*Result, error) {
	log := slog.With("telegram_id", id.TelegramID)

	if err := r.checkBlacklist(ctx, id.TelegramID); err != nil {
		return nil, err
	}

	inviter, err := r.inviter(ctx, id.TelegramID, payload)
	if err != nil {
		return nil, err
	}
	closed := inviter == nil && r.gate != nil && r.gate.Enabled(ctx)

	var res Result
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, created, err := r.findOrCreate(tx, id, closed)
		if err != nil {
			return err
		}
		res.User = user
		res.Created = created

		if inviter != nil && !created {
			var reverse int64
			err := tx.Model(&models.Referral{}).
				Where("inviter_id = ? AND invited_id = ?", user.ID, inviter.ID).
				Count(&reverse).Error
			if err != nil {
				return fmt.Errorf("check reverse referral: %w", err)
			}
			if reverse > 0 {
				return nil
			}
		}
		if inviter != nil {
			recorded, err := r.ledger.RecordTx(tx, inviter.ID, user.ID)
			if err != nil {
				return err
			}
			if recorded {
				res.Inviter = inviter
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrClosedMode) {
			log.InfoContext(ctx, "Registration refused, closed mode")
		}
		return nil, err
	}

	if res.Created {
		log.InfoContext(ctx, "New user registered", "user_id", res.User.ID, "invited", res.Inviter != nil)
		notify.Operator(ctx, r.notifier, newUserReport(*res.User, res.Inviter))
	}
	if res.Inviter != nil {
		notify.Send(ctx, r.notifier, res.Inviter.TelegramID,
			fmt.Sprintf("👋 По вашей ссылке зарегистрировался <b>%s</b>", html.EscapeString(res.User.DisplayName())))
	}
	return &res, nil
}

func (r *Resolver) findOrCreate(tx *gorm.DB, id Identity, closed bool) (*models.User, bool, error) {
	var user models.User
	err := tx.Where("telegram_id = ?", id.TelegramID).Take(&user).Error
	if err == nil {
		if err := refreshProfile(tx, &user, id); err != nil {
			return nil, false, err
		}
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("load user: %w", err)
	}
	if closed {
		return nil, false, apperrors.ErrClosedMode
	}

	user = models.User{
		TelegramID: id.TelegramID,
		Username:   id.Username,
		FullName:   id.FullName,
		Language:   id.Language,
		Level:      models.LevelFerrum,
	}
	created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
	if created.Error != nil {
		return nil, false, fmt.Errorf("create user: %w", created.Error)
	}
	if created.RowsAffected == 0 {
		// Lost a race with a concurrent first contact.
		if err := tx.Where("telegram_id = ?", id.TelegramID).Take(&user).Error; err != nil {
			return nil, false, fmt.Errorf("load user: %w", err)
		}
		return &user, false, nil
	}
	return &user, true, nil
}

// Resolve maps any other interaction to its user. It applies the same
// blacklist and closed-mode rules as Start without a payload.
func (r *Resolver) Resolve(ctx context.Context, id Identity) (*models.User, error) {
	res, err := r.Start(ctx, id, "")
	if err != nil {
		return nil, err
	}
	return res.User, nil
}

func (r *Resolver) checkBlacklist(ctx context.Context, telegramID int64) error {
	if r.blacklist == nil {
		return nil
	}
	blocked, err := r.blacklist.IsBlocked(ctx, telegramID)
	if err != nil {
		return err
	}
	if blocked {
		return apperrors.ErrBlacklisted
	}
	return nil
}

// inviter returns nil for a missing, malformed, self or unknown ref payload.
func (r *Resolver) inviter(ctx context.Context, telegramID int64, payload string) (*models.User, error) {
	refID, ok := ParseRef(payload)
	if !ok || refID == telegramID {
		return nil, nil
	}
	var inviter models.User
	err := r.db.WithContext(ctx).Where("telegram_id = ?", refID).Take(&inviter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		slog.InfoContext(ctx, "Referral payload points to an unknown user", "ref", refID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load inviter: %w", err)
	}
	return &inviter, nil
}

func refreshProfile(tx *gorm.DB, user *models.User, id Identity) error {
	updates := map[string]any{}
	if id.Username != user.Username {
		updates["username"] = id.Username
		user.Username = id.Username
	}
	if id.FullName != "" && id.FullName != user.FullName {
		updates["full_name"] = id.FullName
		user.FullName = id.FullName
	}
	if id.Language != "" && id.Language != user.Language {
		updates["language"] = id.Language
		user.Language = id.Language
	}
	if len(updates) == 0 {
		return nil
	}
	if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func newUserReport(user models.User, inviter *models.User) string {
	msg := fmt.Sprintf("👤 Новый пользователь: <b>%s</b> (ID: %d)", html.EscapeString(user.DisplayName()), user.TelegramID)
	if inviter != nil {
		msg += fmt.Sprintf("\n🔗 Пригласил: <b>%s</b> (ID: %d)", html.EscapeString(inviter.DisplayName()), inviter.TelegramID)
	}
	return msg
}
