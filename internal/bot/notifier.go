package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Notifier delivers plain messages outside of a conversation: drop
// congratulations, broadcasts, review outcomes and admin alerts.
type Notifier struct {
	sender  Sender
	limiter *rate.Limiter
}

// NewNotifier paces sends to perSecond messages. Zero disables pacing.
func NewNotifier(sender Sender, perSecond int) *Notifier {
	n := &Notifier{sender: sender}
	if perSecond > 0 {
		n.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
	}
	return n
}

func (n *Notifier) Notify(ctx context.Context, userID int64, text string) error {
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	_, err := n.sender.Send(tgbotapi.NewMessage(userID, text))
	return err
}
