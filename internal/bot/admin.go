package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/service"
)

type adminCommand func(b *Bot, ctx context.Context, msg *tgbotapi.Message) error

// adminCommands are refused for everyone outside the admin list.
var adminCommands = map[string]adminCommand{
	"admin":            (*Bot).cmdAdmin,
	"set":              (*Bot).cmdSet,
	"getsettings":      (*Bot).cmdGetSettings,
	"withdrawals":      (*Bot).cmdWithdrawals,
	"approve_withdraw": reviewWithdraw(true),
	"deny_withdraw":    reviewWithdraw(false),
	"uc_requests":      (*Bot).cmdUcRequests,
	"approve_uc":       reviewUc(true),
	"deny_uc":          reviewUc(false),
	"addmovie":         (*Bot).cmdAddMovie,
	"delmovie":         (*Bot).cmdDelMovie,
	"drop_run":         (*Bot).cmdDropRun,
	"broadcast":        (*Bot).cmdBroadcast,
	"stats":            (*Bot).cmdStats,
}

var adminHelp = strings.Join([]string{
	"Admin buyruqlar:",
	"/set <key> <value>",
	"/getsettings",
	"/withdrawals",
	"/approve_withdraw <id>",
	"/deny_withdraw <id>",
	"/uc_requests",
	"/approve_uc <id>",
	"/deny_uc <id>",
	"/addmovie <code|auto> [text] (yoki kanal forwardiga reply)",
	"/delmovie <code>",
	"/drop_run [force]",
	"/broadcast <text>",
	"/stats",
}, "\n")

func (b *Bot) cmdAdmin(_ context.Context, msg *tgbotapi.Message) error {
	b.reply(msg.Chat.ID, adminHelp, nil)
	return nil
}

func (b *Bot) cmdSet(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	key, value, ok := strings.Cut(args, " ")
	value = strings.TrimSpace(value)
	if !ok || key == "" || value == "" {
		b.reply(msg.Chat.ID, "Foydalanish: /set <key> <value>", nil)
		return nil
	}
	if err := b.Settings.Set(ctx, key, value); err != nil {
		return err
	}
	slog.Info("setting changed", "admin_id", msg.From.ID, "key", key, "value", value)
	b.reply(msg.Chat.ID, fmt.Sprintf("Sozlama saqlandi: %s = %s", key, value), nil)
	return nil
}

func (b *Bot) cmdGetSettings(ctx context.Context, msg *tgbotapi.Message) error {
	all, err := b.Settings.List(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		b.reply(msg.Chat.ID, "Sozlamalar topilmadi.", nil)
		return nil
	}

	seen := make(map[string]bool, len(service.DefaultKeys))
	var lines []string
	for _, key := range service.DefaultKeys {
		seen[key] = true
		if v, ok := all[key]; ok {
			lines = append(lines, key+" = "+v)
		}
	}
	var extra []string
	for key := range all {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		lines = append(lines, key+" = "+all[key])
	}
	b.reply(msg.Chat.ID, strings.Join(lines, "\n"), nil)
	return nil
}

func (b *Bot) displayNameOf(ctx context.Context, userID int64) string {
	u, err := b.Queries.User(ctx, userID)
	if err != nil {
		return fmt.Sprintf("ID:%d", userID)
	}
	return u.DisplayName()
}

func (b *Bot) cmdWithdrawals(ctx context.Context, msg *tgbotapi.Message) error {
	pending, err := b.Ledger.PendingWithdraws(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		b.reply(msg.Chat.ID, "Pending so'rov yo'q.", nil)
		return nil
	}
	lines := make([]string, 0, len(pending))
	for _, req := range pending {
		lines = append(lines, fmt.Sprintf("ID:%d | %s | %d FX | %s %s",
			req.ID, b.displayNameOf(ctx, req.UserID), req.Amount, req.CardType, req.CardNumber))
	}
	b.reply(msg.Chat.ID, strings.Join(lines, "\n"), nil)
	return nil
}

func (b *Bot) cmdUcRequests(ctx context.Context, msg *tgbotapi.Message) error {
	pending, err := b.Ledger.PendingUcs(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		b.reply(msg.Chat.ID, "Pending UC so'rov yo'q.", nil)
		return nil
	}
	lines := make([]string, 0, len(pending))
	for _, req := range pending {
		lines = append(lines, fmt.Sprintf("ID:%d | %s | UC:%d | %d FX",
			req.ID, b.displayNameOf(ctx, req.UserID), req.UcAmount, req.FxCost))
	}
	b.reply(msg.Chat.ID, strings.Join(lines, "\n"), nil)
	return nil
}

// requestID reads the numeric argument of the review commands.
func requestID(msg *tgbotapi.Message) (int64, bool) {
	first, _, _ := strings.Cut(strings.TrimSpace(msg.CommandArguments()), " ")
	id, err := strconv.ParseInt(first, 10, 64)
	return id, err == nil && id > 0
}

func reviewWithdraw(approve bool) adminCommand {
	return func(b *Bot, ctx context.Context, msg *tgbotapi.Message) error {
		id, ok := requestID(msg)
		if !ok {
			b.reply(msg.Chat.ID, textNoRequest, nil)
			return nil
		}
		req, err := b.Ledger.ReviewWithdraw(ctx, id, approve)
		if errors.Is(err, service.ErrRequestNotFound) {
			b.reply(msg.Chat.ID, textNoRequest, nil)
			return nil
		}
		if err != nil {
			return err
		}
		if approve {
			b.reply(msg.Chat.ID, fmt.Sprintf("So'rov tasdiqlandi: %d", id), nil)
			b.notifyUser(ctx, req.UserID, fmt.Sprintf("Pul chiqarish so'rovingiz tasdiqlandi. ID: %d", id))
			return nil
		}
		b.reply(msg.Chat.ID, fmt.Sprintf("So'rov rad etildi: %d", id), nil)
		b.notifyUser(ctx, req.UserID, fmt.Sprintf("Pul chiqarish so'rovingiz rad etildi. FX qaytarildi. ID: %d", id))
		return nil
	}
}

func reviewUc(approve bool) adminCommand {
	return func(b *Bot, ctx context.Context, msg *tgbotapi.Message) error {
		id, ok := requestID(msg)
		if !ok {
			b.reply(msg.Chat.ID, textNoRequest, nil)
			return nil
		}
		req, err := b.Ledger.ReviewUc(ctx, id, approve)
		if errors.Is(err, service.ErrRequestNotFound) {
			b.reply(msg.Chat.ID, textNoRequest, nil)
			return nil
		}
		if err != nil {
			return err
		}
		if approve {
			b.reply(msg.Chat.ID, fmt.Sprintf("UC so'rovi tasdiqlandi: %d", id), nil)
			b.notifyUser(ctx, req.UserID, fmt.Sprintf("UC so'rovingiz tasdiqlandi. ID: %d", id))
			return nil
		}
		b.reply(msg.Chat.ID, fmt.Sprintf("UC so'rovi rad etildi: %d", id), nil)
		b.notifyUser(ctx, req.UserID, fmt.Sprintf("UC so'rovingiz rad etildi. FX qaytarildi. ID: %d", id))
		return nil
	}
}

func (b *Bot) cmdAddMovie(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	rawCode, rest, _ := strings.Cut(args, " ")
	rest = strings.TrimSpace(rest)

	code := rawCode
	switch strings.ToLower(rawCode) {
	case "auto", "next":
		code = ""
	}

	movie := contentFromMessage(msg.ReplyToMessage)
	if movie == nil && rest != "" {
		movie = &domain.MovieCode{ContentType: domain.ContentText, ContentValue: rest}
	}
	if movie == nil {
		b.reply(msg.Chat.ID, "Foydalanish: /addmovie CODE <text> yoki kanal xabariga reply (/addmovie auto).", b.mainMenu)
		return nil
	}

	if code == "" {
		next, err := b.Repo.NextMovieCode(ctx)
		if err != nil {
			return err
		}
		code = next
	}
	adminID := msg.From.ID
	movie.Code = code
	movie.AddedBy = &adminID
	movie.CreatedAt = b.opts.Now()
	if err := b.Repo.UpsertMovieCode(ctx, movie); err != nil {
		return err
	}
	b.reply(msg.Chat.ID, "Kino kodi saqlandi: "+code, nil)
	return nil
}

func (b *Bot) cmdDelMovie(ctx context.Context, msg *tgbotapi.Message) error {
	code, _, _ := strings.Cut(strings.TrimSpace(msg.CommandArguments()), " ")
	if code == "" {
		b.reply(msg.Chat.ID, "Foydalanish: /delmovie <code>", nil)
		return nil
	}
	deleted, err := b.Repo.DeleteMovieCode(ctx, code)
	if err != nil {
		return err
	}
	if !deleted {
		b.reply(msg.Chat.ID, "Kino kodi topilmadi.", nil)
		return nil
	}
	b.reply(msg.Chat.ID, "Kino kodi o'chirildi: "+code, nil)
	return nil
}

func (b *Bot) cmdDropRun(ctx context.Context, msg *tgbotapi.Message) error {
	force := strings.EqualFold(strings.TrimSpace(msg.CommandArguments()), "force")
	report, err := b.Dropper.Run(ctx, force)
	if err != nil {
		return err
	}
	switch report.Outcome {
	case service.DropAlreadyRun:
		b.reply(msg.Chat.ID, "Bu oy uchun drop allaqachon berilgan. /drop_run force ishlating.", nil)
	case service.DropNoUsers:
		b.reply(msg.Chat.ID, "Top foydalanuvchi yo'q.", nil)
	default:
		b.reply(msg.Chat.ID, "Drop yakunlandi.", nil)
	}
	return nil
}

func (b *Bot) cmdBroadcast(ctx context.Context, msg *tgbotapi.Message) error {
	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		b.reply(msg.Chat.ID, "Foydalanish: /broadcast <text>", nil)
		return nil
	}
	report, err := service.Broadcast(ctx, b.Repo, b.Notifier, text)
	if err != nil {
		return err
	}
	slog.Info("broadcast finished", "admin_id", msg.From.ID, "sent", report.Sent, "failed", report.Failed)
	b.reply(msg.Chat.ID, fmt.Sprintf("Yuborildi: %d ta foydalanuvchi.", report.Sent), nil)
	return nil
}

func (b *Bot) cmdStats(ctx context.Context, msg *tgbotapi.Message) error {
	st, err := b.Queries.AdminStats(ctx)
	if err != nil {
		return err
	}
	text := strings.Join([]string{
		fmt.Sprintf("Foydalanuvchilar: %d", st.UserCount),
		fmt.Sprintf("Jami FX: %s", formatNumber(st.TotalFx)),
		fmt.Sprintf("Pending withdraw: %d", st.PendingWithdraws),
		fmt.Sprintf("Pending UC: %d", st.PendingUcs),
	}, "\n")
	b.reply(msg.Chat.ID, text, nil)
	return nil
}
