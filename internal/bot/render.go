package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/service"
)

const (
	textFailed    = "Xatolik yuz berdi. Qayta urinib ko'ring."
	textCancelled = "Bekor qilindi."
	textForbidden = "Ruxsat yo'q."
	textNoRequest = "So'rov topilmadi yoki status noto'g'ri."
	textMainMenu  = "Asosiy menyu:"
	textAd        = "Reklama: Premium bilan reklamasiz tomosha qiling."
)

// formatNumber groups thousands with commas.
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return sign + s
}

// secondsToHuman renders a wait as "Xm Ys" or "Ys".
func secondsToHuman(seconds int64) string {
	if seconds <= 0 {
		return "0s"
	}
	if m := seconds / 60; m > 0 {
		return fmt.Sprintf("%dm %ds", m, seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}

func (b *Bot) formatDateTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.In(b.opts.Location).Format("02/01/2006 15:04")
}

func (b *Bot) premiumStatus(u *domain.User, active bool) string {
	if !active {
		return "Faol emas"
	}
	return fmt.Sprintf("Faol (tugash: %s)", b.formatDateTime(u.PremiumUntil))
}

func (b *Bot) profileText(v *service.ProfileView) string {
	u := v.User
	return strings.Join([]string{
		fmt.Sprintf("ID: %d", u.ID),
		fmt.Sprintf("FX balans: %s", formatNumber(u.FxBalance)),
		fmt.Sprintf("Premium: %s", b.premiumStatus(u, v.Premium)),
		fmt.Sprintf("Reyting: #%d", v.Rank),
		fmt.Sprintf("Referral link: %s", service.ReferralLink(b.opts.BotUsername, u.ReferralCode)),
		fmt.Sprintf("Referral soni: %d", u.ReferralsCount),
		fmt.Sprintf("Referral FX: %s", formatNumber(u.ReferralFx)),
	}, "\n")
}

func (b *Bot) referralText(u *domain.User) string {
	return strings.Join([]string{
		"Referral tizimi:",
		fmt.Sprintf("Link: %s", service.ReferralLink(b.opts.BotUsername, u.ReferralCode)),
		fmt.Sprintf("Jami referral: %d", u.ReferralsCount),
		fmt.Sprintf("Referral bonus: %s FX", formatNumber(u.ReferralFx)),
	}, "\n")
}

func leaderboardText(top []domain.User) string {
	if len(top) == 0 {
		return "Reytingda foydalanuvchi yo'q."
	}
	lines := make([]string, 0, len(top))
	for i := range top {
		lines = append(lines, fmt.Sprintf("%d. %s - %s FX", i+1, top[i].DisplayName(), formatNumber(top[i].FxBalance)))
	}
	return "Top 10:\n" + strings.Join(lines, "\n")
}

// DropMessage is the congratulation sent to each drop recipient.
func DropMessage(r service.DropReward) string {
	return fmt.Sprintf("Tabriklaymiz! Siz TOP %dga kirdingiz. Bonus: %d FX", service.DropTopN, r.BonusFx)
}

func insufficientUc(res *service.FlowResult) string {
	return fmt.Sprintf("Balans yetarli emas. Kerak: %s FX, sizda: %s FX", formatNumber(res.FxCost), formatNumber(res.Balance))
}

// flowReply maps a conversation outcome to its chat text and keyboard.
func (b *Bot) flowReply(res *service.FlowResult) (string, interface{}) {
	switch res.Kind {
	case service.FlowCancelled:
		return textCancelled, b.mainMenu
	case service.FlowWithdrawClosed:
		return fmt.Sprintf("Pul chiqarish faqat oyning %d-sanasi.", res.PayoutDay), b.mainMenu
	case service.FlowWithdrawStarted:
		return "Yechmoqchi bo'lgan FX miqdorini kiriting:", cancelKeyboard
	case service.FlowInvalidAmount:
		return "Miqdor noto'g'ri. Qayta kiriting:", cancelKeyboard
	case service.FlowInsufficientBalance:
		return "Balans yetarli emas. Qayta kiriting:", cancelKeyboard
	case service.FlowAskCardType:
		return "Karta turini tanlang (UZCARD yoki HUMO):", cardTypeKeyboard
	case service.FlowInvalidCardType:
		return "Karta turi noto'g'ri. UZCARD yoki HUMO kiriting:", cancelKeyboard
	case service.FlowAskCardNumber:
		return "Karta raqamini kiriting (16 ta raqam):", cancelKeyboard
	case service.FlowInvalidCardNumber:
		return "Karta raqami noto'g'ri. Qayta kiriting:", cancelKeyboard
	case service.FlowWithdrawSubmitted:
		return fmt.Sprintf("Pul chiqarish so'rovi qabul qilindi. ID: %d", res.Withdraw.ID), b.mainMenu
	case service.FlowWithdrawDeclined:
		return fmt.Sprintf("Balans yetarli emas. Sizda: %s FX", formatNumber(res.Balance)), b.mainMenu
	case service.FlowUcStarted:
		return "Necha UC kerak? (masalan: 60)", cancelKeyboard
	case service.FlowUcInvalidAmount:
		return "UC miqdori noto'g'ri. Qayta kiriting:", cancelKeyboard
	case service.FlowUcInsufficient, service.FlowUcDeclined:
		return insufficientUc(res), b.mainMenu
	case service.FlowUcAskConfirm:
		return fmt.Sprintf("UC: %d\nNarx: %s FX\nTasdiqlaysizmi? (Ha/Yoq)", res.UcAmount, formatNumber(res.FxCost)), confirmKeyboard
	case service.FlowUcAnswerInvalid:
		return "Iltimos, Ha yoki Yoq deb javob bering.", cancelKeyboard
	case service.FlowUcSubmitted:
		return fmt.Sprintf("UC so'rovi qabul qilindi. ID: %d", res.Uc.ID), b.mainMenu
	case service.FlowCommitFailed:
		return textFailed, b.mainMenu
	case service.FlowMovieStarted:
		return "Kino kodini kiriting:", cancelKeyboard
	case service.FlowMovieNotFound:
		return "Kino kodi topilmadi.", b.mainMenu
	}
	return textMainMenu, b.mainMenu
}

func newWithdrawAlert(req *domain.WithdrawRequest, u *domain.User) string {
	return fmt.Sprintf("Yangi pul chiqarish so'rovi:\nID: %d\nUser: %s\nMiqdor: %d FX\nKarta: %s %s",
		req.ID, u.DisplayName(), req.Amount, req.CardType, req.CardNumber)
}

func newUcAlert(req *domain.UcRequest, u *domain.User) string {
	return fmt.Sprintf("Yangi UC so'rovi:\nID: %d\nUser: %s\nUC: %d\nNarx: %d FX",
		req.ID, u.DisplayName(), req.UcAmount, req.FxCost)
}
