package remnawave

import "time"

const (
	StatusActive   = "ACTIVE"
	StatusDisabled = "DISABLED"
	StatusExpired  = "EXPIRED"
	StatusLimited  = "LIMITED"
)

type CreateUserRequest struct {
	Username             string    `json:"username"`
	Status               string    `json:"status"`
	ExpireAt             time.Time `json:"expireAt"`
	Description          string    `json:"description,omitempty"`
	Tag                  string    `json:"tag,omitempty"`
	TelegramID           int64     `json:"telegramId,omitempty"`
	ActiveInternalSquads []string  `json:"activeInternalSquads,omitempty"`
}

// UpdateUserRequest only carries the fields that should change.
type UpdateUserRequest struct {
	UUID                 string     `json:"uuid"`
	Status               string     `json:"status,omitempty"`
	ExpireAt             *time.Time `json:"expireAt,omitempty"`
	Description          string     `json:"description,omitempty"`
	Tag                  string     `json:"tag,omitempty"`
	TelegramID           int64      `json:"telegramId,omitempty"`
	ActiveInternalSquads []string   `json:"activeInternalSquads,omitempty"`
}

type User struct {
	UUID            string    `json:"uuid"`
	ShortUUID       string    `json:"shortUuid"`
	Username        string    `json:"username"`
	Status          string    `json:"status"`
	ExpireAt        time.Time `json:"expireAt"`
	Description     string    `json:"description"`
	Tag             string    `json:"tag"`
	TelegramID      *int64    `json:"telegramId"`
	SubscriptionURL string    `json:"subscriptionUrl"`
}

type envelope[T any] struct {
	Response T `json:"response"`
}
