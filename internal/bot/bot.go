package bot

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/service"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

// Sender is the part of *tgbotapi.BotAPI the bot talks through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Poller delivers updates in long polling mode.
type Poller interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Deps struct {
	Sender   Sender
	Notifier service.Notifier
	Settings *service.Settings
	Accounts *service.Accounts
	Miner    *service.Miner
	Flow     *service.Flow
	Ledger   *service.Ledger
	Queries  *service.Queries
	Dropper  *service.Dropper
	Repo     store.Repository
}

type Options struct {
	AppName      string
	BotUsername  string
	AdminContact string
	// WebAppURL is the launch URL of the web miner, already carrying the
	// api parameter. Empty hides the web entry points.
	WebAppURL  string
	WebhookURL string
	Admins     []int64
	Location   *time.Location
	Now        func() time.Time
}

type Bot struct {
	Deps
	opts     Options
	admins   map[int64]bool
	mainMenu interface{}
}

func New(deps Deps, opts Options) *Bot {
	if opts.AppName == "" {
		opts.AppName = "FX-VM"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Notifier == nil {
		deps.Notifier = NewNotifier(deps.Sender, 0)
	}
	admins := make(map[int64]bool, len(opts.Admins))
	for _, id := range opts.Admins {
		admins[id] = true
	}
	return &Bot{
		Deps:     deps,
		opts:     opts,
		admins:   admins,
		mainMenu: mainMenuKeyboard(opts.WebAppURL),
	}
}

func (b *Bot) IsAdmin(id int64) bool {
	return b.admins[id]
}

// Setup registers the command list and selects webhook or polling delivery.
func (b *Bot) Setup(ctx context.Context) error {
	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "Botni ishga tushirish"},
		{Command: "help", Description: "Yordam"},
	}
	if b.opts.WebAppURL != "" {
		commands = append(commands, tgbotapi.BotCommand{Command: "web", Description: "Web mining"})
	}
	if len(b.admins) > 0 {
		commands = append(commands, tgbotapi.BotCommand{Command: "admin", Description: "Admin panel"})
	}
	if _, err := b.Sender.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		slog.Warn("set bot commands failed", "err", err)
	}

	if b.opts.WebhookURL != "" {
		hook, err := tgbotapi.NewWebhook(b.opts.WebhookURL)
		if err != nil {
			return err
		}
		_, err = b.Sender.Request(hook)
		return err
	}
	_, err := b.Sender.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: false})
	return err
}

// Run consumes long polling updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, poller Poller) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := poller.GetUpdatesChan(u)

	slog.Info("bot polling started")
	for {
		select {
		case <-ctx.Done():
			poller.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// WebhookHandler decodes one update per request.
func (b *Bot) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			slog.Warn("webhook payload rejected", "err", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})
}

// HandleUpdate never fails the caller; errors are logged and the user gets
// a generic reply.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	var err error
	switch {
	case msg.IsCommand():
		err = b.handleCommand(ctx, msg)
	case msg.Text == "" || strings.HasPrefix(msg.Text, "/"):
		return
	default:
		err = b.handleText(ctx, msg)
	}
	if err != nil {
		slog.Error("update handling failed", "user_id", msg.From.ID, "update_id", update.UpdateID, "err", err)
		b.reply(msg.Chat.ID, textFailed, b.mainMenu)
	}
}

func profileOf(u *tgbotapi.User) domain.Profile {
	return domain.Profile{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// reply sends a message and only logs a delivery failure.
func (b *Bot) reply(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.Sender.Send(msg); err != nil {
		slog.Warn("send message failed", "chat_id", chatID, "err", err)
	}
}

// notifyAdmins fans a message out to every configured admin.
func (b *Bot) notifyAdmins(ctx context.Context, text string) {
	msgs := make([]service.Message, 0, len(b.opts.Admins))
	for _, id := range b.opts.Admins {
		msgs = append(msgs, service.Message{UserID: id, Text: text})
	}
	report := service.SendBatch(ctx, b.Notifier, msgs)
	if report.Failed > 0 {
		slog.Warn("admin notification incomplete", "sent", report.Sent, "failed", report.Failed)
	}
}

func (b *Bot) notifyUser(ctx context.Context, userID int64, text string) {
	if err := b.Notifier.Notify(ctx, userID, text); err != nil {
		slog.Warn("user notification failed", "user_id", userID, "err", err)
	}
}
