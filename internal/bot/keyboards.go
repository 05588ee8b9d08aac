package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Menu texts double as the commands typed by users.
const (
	menuMining     = "Mining"
	menuProfile    = "Profil"
	menuReferral   = "Referral"
	menuPremium    = "Premium"
	menuBuyPremium = "Premium sotib olish"
	menuMovie      = "Kino kodi"
	menuRating     = "Reyting"
	menuPayout     = "Pul kiritish/chiqarish"
	menuWithdraw   = "Pul chiqarish"
	menuTopUp      = "Balans to'ldirish"
	menuUc         = "UC xarid"
	menuMain       = "Menu"
	menuWebMining  = "Web Mining"
	buttonCancel   = "Bekor qilish"
)

// The library's keyboard types predate web app buttons, so the menu that
// may carry one is marshalled from these.
type webAppInfo struct {
	URL string `json:"url"`
}

type replyButton struct {
	Text   string      `json:"text"`
	WebApp *webAppInfo `json:"web_app,omitempty"`
}

type replyKeyboard struct {
	Keyboard       [][]replyButton `json:"keyboard"`
	ResizeKeyboard bool            `json:"resize_keyboard"`
}

type inlineButton struct {
	Text   string      `json:"text"`
	WebApp *webAppInfo `json:"web_app,omitempty"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

func textRow(texts ...string) []replyButton {
	row := make([]replyButton, 0, len(texts))
	for _, t := range texts {
		row = append(row, replyButton{Text: t})
	}
	return row
}

func mainMenuKeyboard(webAppURL string) replyKeyboard {
	rows := [][]replyButton{
		textRow(menuMining, menuProfile),
		textRow(menuReferral, menuPremium),
		textRow(menuMovie, menuRating),
		textRow(menuPayout, menuUc),
	}
	if webAppURL != "" {
		web := []replyButton{{Text: menuWebMining, WebApp: &webAppInfo{URL: webAppURL}}}
		rows = append([][]replyButton{web}, rows...)
	}
	return replyKeyboard{Keyboard: rows, ResizeKeyboard: true}
}

func webAppLauncher(webAppURL string) inlineKeyboard {
	return inlineKeyboard{InlineKeyboard: [][]inlineButton{
		{{Text: "Open Web Mining", WebApp: &webAppInfo{URL: webAppURL}}},
	}}
}

func oneTime(rows ...[]tgbotapi.KeyboardButton) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	return kb
}

var (
	cancelKeyboard = oneTime(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonCancel)),
	)
	cardTypeKeyboard = oneTime(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("UZCARD"), tgbotapi.NewKeyboardButton("HUMO")),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonCancel)),
	)
	confirmKeyboard = oneTime(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("Ha"), tgbotapi.NewKeyboardButton("Yoq")),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonCancel)),
	)
	payoutKeyboard = oneTime(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(menuWithdraw), tgbotapi.NewKeyboardButton(menuTopUp)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(menuMain)),
	)
)
