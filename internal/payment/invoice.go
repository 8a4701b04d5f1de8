// Package payment sends Telegram Payments invoices backed by the YooKassa
// provider token.
package payment

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Invoice is one checkout request. Amount is in minor units.
type Invoice struct {
	ChatID      int64
	Title       string
	Description string
	Label       string
	Payload     string
	Currency    string
	Amount      int
}

type Sender struct {
	bot           *telego.Bot
	providerToken string
}

func NewSender(bot *telego.Bot, providerToken string) *Sender {
	return &Sender{bot: bot, providerToken: providerToken}
}

func (s *Sender) SendInvoice(ctx context.Context, inv Invoice) error {
	label := inv.Label
	if label == "" {
		label = inv.Title
	}
	params := tu.Invoice(
		tu.ID(inv.ChatID),
		inv.Title,
		inv.Description,
		inv.Payload,
		s.providerToken,
		inv.Currency,
		tu.LabeledPrice(label, inv.Amount),
	).WithProtectContent()

	if _, err := s.bot.SendInvoice(ctx, params); err != nil {
		return fmt.Errorf("send invoice %s: %w", inv.Payload, err)
	}
	return nil
}

// Answer replies to a pre-checkout query. errorMessage is shown to the payer
// when ok is false.
func Answer(ctx context.Context, bot *telego.Bot, queryID string, ok bool, errorMessage string) error {
	params := &telego.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: queryID,
		Ok:                 ok,
	}
	if !ok {
		params.ErrorMessage = errorMessage
	}
	if err := bot.AnswerPreCheckoutQuery(ctx, params); err != nil {
		return fmt.Errorf("answer pre-checkout %s: %w", queryID, err)
	}
	return nil
}
