package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/service"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.cmdStart(ctx, msg)
	case "help":
		b.cmdHelp(msg.Chat.ID)
		return nil
	case "web":
		b.cmdWeb(msg.Chat.ID)
		return nil
	}
	if cmd, ok := adminCommands[msg.Command()]; ok {
		if !b.IsAdmin(msg.From.ID) {
			b.reply(msg.Chat.ID, textForbidden, nil)
			return nil
		}
		return cmd(b, ctx, msg)
	}
	return nil
}

func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message) error {
	refCode, _, _ := strings.Cut(strings.TrimSpace(msg.CommandArguments()), " ")
	reg, err := b.Accounts.Register(ctx, profileOf(msg.From), refCode)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("Xush kelibsiz, %s!\n%s bot ishga tushdi.", reg.User.DisplayName(), b.opts.AppName)
	if reg.Referrer != nil {
		text += fmt.Sprintf("\nReferral qabul qilindi. Bonus: %s FX.", formatNumber(reg.Bonus))
	}
	b.reply(msg.Chat.ID, text, b.mainMenu)
	return nil
}

func (b *Bot) cmdHelp(chatID int64) {
	lines := []string{
		"Asosiy buyruqlar:",
		"/start - start",
		"/help - yordam",
	}
	if b.opts.WebAppURL != "" {
		lines = append(lines, "/web - Web mining")
	}
	lines = append(lines, "/admin - admin panel (faqat admin)")
	b.reply(chatID, strings.Join(lines, "\n"), b.mainMenu)
}

func (b *Bot) cmdWeb(chatID int64) {
	if b.opts.WebAppURL == "" {
		b.reply(chatID, "Web mining sozlanmagan. Admin bilan bog'laning.", b.mainMenu)
		return
	}
	b.reply(chatID, "Web mining:", webAppLauncher(b.opts.WebAppURL))
}

// handleText runs the active conversation first and falls back to the menu.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) error {
	user, _, err := b.Accounts.EnsureUser(ctx, profileOf(msg.From))
	if err != nil {
		return err
	}
	chatID := msg.Chat.ID

	res, err := b.Flow.HandleText(ctx, user, msg.Text)
	if err != nil {
		return err
	}
	if res.Handled() {
		return b.sendFlow(ctx, chatID, user, res)
	}

	switch strings.TrimSpace(msg.Text) {
	case menuMining:
		return b.mine(ctx, chatID, user)
	case menuProfile:
		view, err := b.Queries.Profile(ctx, user)
		if err != nil {
			return err
		}
		b.reply(chatID, b.profileText(view), b.mainMenu)
	case menuReferral:
		b.reply(chatID, b.referralText(user), b.mainMenu)
	case menuPremium:
		return b.premiumInfo(ctx, chatID, user)
	case menuBuyPremium:
		return b.buyPremium(ctx, chatID, user)
	case menuMovie:
		return b.startFlow(ctx, chatID, user, b.Flow.StartMovie)
	case menuRating:
		top, err := b.Queries.Leaderboard(ctx)
		if err != nil {
			return err
		}
		b.reply(chatID, leaderboardText(top), b.mainMenu)
	case menuPayout:
		return b.payoutInfo(ctx, chatID)
	case menuWithdraw:
		return b.startFlow(ctx, chatID, user, b.Flow.StartWithdraw)
	case menuUc:
		return b.startFlow(ctx, chatID, user, b.Flow.StartUc)
	case menuTopUp:
		text := "Balans to'ldirish uchun admin bilan bog'laning."
		if b.opts.AdminContact != "" {
			text = "Balans to'ldirish uchun: " + b.opts.AdminContact
		}
		b.reply(chatID, text, b.mainMenu)
	default:
		b.reply(chatID, textMainMenu, b.mainMenu)
	}
	return nil
}

func (b *Bot) startFlow(ctx context.Context, chatID int64, user *domain.User, start func(context.Context, *domain.User) (*service.FlowResult, error)) error {
	res, err := start(ctx, user)
	if err != nil {
		return err
	}
	return b.sendFlow(ctx, chatID, user, res)
}

// sendFlow replies to the user and performs the side effects some outcomes
// carry: admin alerts for new requests and movie delivery.
func (b *Bot) sendFlow(ctx context.Context, chatID int64, user *domain.User, res *service.FlowResult) error {
	if res.Kind == service.FlowMovieFound {
		if res.ShowAd {
			b.reply(chatID, textAd, nil)
		}
		b.deliverMovie(chatID, res.Movie)
		return nil
	}

	text, markup := b.flowReply(res)
	b.reply(chatID, text, markup)

	switch res.Kind {
	case service.FlowWithdrawSubmitted:
		b.notifyAdmins(ctx, newWithdrawAlert(res.Withdraw, user))
	case service.FlowUcSubmitted:
		b.notifyAdmins(ctx, newUcAlert(res.Uc, user))
	}
	return nil
}

func (b *Bot) mine(ctx context.Context, chatID int64, user *domain.User) error {
	res, err := b.Miner.Mine(ctx, user.ID, service.SourceBot)
	if err != nil {
		return err
	}
	if !res.Ready {
		b.reply(chatID, fmt.Sprintf("Keyingi mining uchun %s kuting.", secondsToHuman(res.RemainingSeconds)), b.mainMenu)
		return nil
	}
	b.reply(chatID, fmt.Sprintf("+%d FX. Jami balans: %s FX", res.Amount, formatNumber(res.Balance)), b.mainMenu)
	return nil
}

func (b *Bot) premiumInfo(ctx context.Context, chatID int64, user *domain.User) error {
	cost, days, err := b.Accounts.PremiumOffer(ctx)
	if err != nil {
		return err
	}
	text := strings.Join([]string{
		fmt.Sprintf("Premium status: %s", b.premiumStatus(user, user.IsPremium(b.opts.Now()))),
		fmt.Sprintf("Narx: %s FX", formatNumber(cost)),
		fmt.Sprintf("Muddati: %d kun", days),
		"Premium olish uchun: Premium sotib olish deb yozing.",
	}, "\n")
	b.reply(chatID, text, b.mainMenu)
	return nil
}

func (b *Bot) buyPremium(ctx context.Context, chatID int64, user *domain.User) error {
	purchase, err := b.Accounts.BuyPremium(ctx, user.ID)
	if err != nil {
		return err
	}
	if !purchase.Purchased {
		b.reply(chatID, "Balans yetarli emas. Pul kiritish/chiqarish bo'limidan balansni to'ldiring.", b.mainMenu)
		return nil
	}
	until := purchase.Until
	b.reply(chatID, fmt.Sprintf("Premium faollashtirildi. Tugash vaqti: %s", b.formatDateTime(&until)), b.mainMenu)
	return nil
}

func (b *Bot) payoutInfo(ctx context.Context, chatID int64) error {
	day, err := b.Settings.PayoutDay(ctx)
	if err != nil {
		return err
	}
	text := strings.Join([]string{
		"Pul kiritish/chiqarish:",
		fmt.Sprintf("Pul chiqarish faqat oyning %d-sanasi.", day),
		"Pul kiritish uchun admin bilan bog'laning.",
		"Pul chiqarish uchun: Pul chiqarish deb yozing.",
	}, "\n")
	b.reply(chatID, text, payoutKeyboard)
	return nil
}
