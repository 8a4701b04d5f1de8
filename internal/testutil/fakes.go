package testutil

import (
	"context"
	"sync"
)

// Message is one captured notification.
type Message struct {
	TelegramID int64
	Text       string
}

// Notifier records notifications instead of sending them.
type Notifier struct {
	mu       sync.Mutex
	Sent     []Message
	Operator []string
	Err      error
}

func (n *Notifier) Notify(_ context.Context, telegramID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Message{TelegramID: telegramID, Text: text})
	return n.Err
}

func (n *Notifier) NotifyOperator(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Operator = append(n.Operator, text)
	return n.Err
}

func (n *Notifier) SentTo(telegramID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.Sent {
		if m.TelegramID == telegramID {
			out = append(out, m.Text)
		}
	}
	return out
}

func (n *Notifier) OperatorMessages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.Operator...)
}
