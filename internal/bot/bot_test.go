package bot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/service"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

const adminID = 900

type sentMessage struct {
	ChatID int64
	Text   string
	Markup interface{}
}

type fakeSender struct {
	mu       sync.Mutex
	messages []sentMessage
	requests []tgbotapi.Chattable
	media    []tgbotapi.Chattable
	failFor  map[int64]bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		if f.failFor[m.ChatID] {
			return tgbotapi.Message{}, errors.New("blocked by user")
		}
		f.messages = append(f.messages, sentMessage{ChatID: m.ChatID, Text: m.Text, Markup: m.ReplyMarkup})
		return tgbotapi.Message{MessageID: len(f.messages)}, nil
	}
	f.media = append(f.media, c)
	return tgbotapi.Message{MessageID: len(f.media)}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) textsTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeSender) last(t *testing.T, chatID int64) string {
	t.Helper()
	texts := f.textsTo(chatID)
	require.NotEmpty(t, texts, "no message to %d", chatID)
	return texts[len(texts)-1]
}

type harness struct {
	bot    *Bot
	sender *fakeSender
	repo   *store.Memory
	now    time.Time
}

// newHarness runs on the default payout day in UTC.
func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{
		sender: &fakeSender{failFor: map[int64]bool{}},
		repo:   store.NewMemory(),
		now:    time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }

	settings := service.NewSettings(h.repo)
	require.NoError(t, settings.Seed(ctx))
	ledger := service.NewLedger(h.repo, clock)
	notifier := NewNotifier(h.sender, 0)

	opts.Admins = append(opts.Admins, adminID)
	opts.Location = time.UTC
	opts.Now = clock
	isAdmin := func(id int64) bool { return id == adminID }

	h.bot = New(Deps{
		Sender:   h.sender,
		Notifier: notifier,
		Settings: settings,
		Accounts: service.NewAccounts(h.repo, settings, clock),
		Miner:    service.NewMiner(h.repo, settings, clock),
		Flow:     service.NewFlow(h.repo, settings, ledger, service.FlowConfig{IsAdmin: isAdmin, Now: clock}),
		Ledger:   ledger,
		Queries:  service.NewQueries(h.repo, clock),
		Dropper:  service.NewDropper(h.repo, settings, notifier, DropMessage, clock),
		Repo:     h.repo,
	}, opts)
	return h
}

func message(from int64, text string) *tgbotapi.Message {
	m := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: from, FirstName: "User"},
		Chat:      &tgbotapi.Chat{ID: from, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return m
}

func (h *harness) send(from int64, text string) {
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{UpdateID: 1, Message: message(from, text)})
}

func (h *harness) user(t *testing.T, id int64) *domain.User {
	t.Helper()
	u, err := h.repo.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (h *harness) fund(t *testing.T, id, amount int64) {
	t.Helper()
	_, err := h.repo.AdjustBalance(context.Background(), id, amount)
	require.NoError(t, err)
}

func TestStartAppliesReferralOnce(t *testing.T) {
	h := newHarness(t, Options{})
	h.send(1, "/start")
	require.Contains(t, h.sender.last(t, 1), "Xush kelibsiz, User!\nFX-VM bot ishga tushdi.")
	code := h.user(t, 1).ReferralCode

	h.send(2, "/start "+code)
	require.Contains(t, h.sender.last(t, 2), "Referral qabul qilindi. Bonus: 100 FX.")
	require.Equal(t, int64(100), h.user(t, 1).FxBalance)

	// A returning user does not get a second referral.
	h.send(2, "/start "+code)
	require.NotContains(t, h.sender.last(t, 2), "Referral")
	require.Equal(t, int64(1), h.user(t, 1).ReferralsCount)
}

func TestMiningThroughMenu(t *testing.T) {
	h := newHarness(t, Options{})
	h.send(3, "Mining")
	require.Equal(t, "+1 FX. Jami balans: 1 FX", h.sender.last(t, 3))

	h.now = h.now.Add(10 * time.Second)
	h.send(3, "Mining")
	require.Equal(t, "Keyingi mining uchun 50s kuting.", h.sender.last(t, 3))
}

func TestWithdrawConversation(t *testing.T) {
	h := newHarness(t, Options{})
	h.send(4, "/start")
	h.fund(t, 4, 120)

	steps := []struct{ in, want string }{
		{"Pul chiqarish", "Yechmoqchi bo'lgan FX miqdorini kiriting:"},
		{"abc", "Miqdor noto'g'ri. Qayta kiriting:"},
		{"500", "Balans yetarli emas. Qayta kiriting:"},
		{"100", "Karta turini tanlang (UZCARD yoki HUMO):"},
		{"visa", "Karta turi noto'g'ri. UZCARD yoki HUMO kiriting:"},
		{"humo", "Karta raqamini kiriting (16 ta raqam):"},
		{"8600 1234", "Karta raqami noto'g'ri. Qayta kiriting:"},
		{"8600 1234 5678 9012", "Pul chiqarish so'rovi qabul qilindi. ID: 1"},
	}
	for _, s := range steps {
		h.send(4, s.in)
		require.Equal(t, s.want, h.sender.last(t, 4), "input %q", s.in)
	}

	require.Equal(t, int64(20), h.user(t, 4).FxBalance)
	alert := h.sender.last(t, adminID)
	require.Contains(t, alert, "Yangi pul chiqarish so'rovi:\nID: 1")
	require.Contains(t, alert, "Karta: HUMO 8600123456789012")

	h.send(4, "Profil")
	require.Contains(t, h.sender.last(t, 4), "FX balans: 20")
}

func TestWithdrawClosedOutsidePayoutDay(t *testing.T) {
	h := newHarness(t, Options{})
	h.now = h.now.AddDate(0, 0, 1)
	h.send(5, "Pul chiqarish")
	require.Equal(t, "Pul chiqarish faqat oyning 15-sanasi.", h.sender.last(t, 5))

	// Admins are not bound by the payout day.
	h.send(adminID, "Pul chiqarish")
	require.Equal(t, "Yechmoqchi bo'lgan FX miqdorini kiriting:", h.sender.last(t, adminID))
	h.send(adminID, "Bekor qilish")
	require.Equal(t, textCancelled, h.sender.last(t, adminID))
}

func TestUcPurchaseAndAdminDeny(t *testing.T) {
	h := newHarness(t, Options{})
	h.send(6, "/start")
	h.fund(t, 6, 60)

	h.send(6, "UC xarid")
	h.send(6, "60")
	require.Equal(t, "UC: 60\nNarx: 60 FX\nTasdiqlaysizmi? (Ha/Yoq)", h.sender.last(t, 6))
	h.send(6, "Ha")
	require.Equal(t, "UC so'rovi qabul qilindi. ID: 1", h.sender.last(t, 6))
	require.Zero(t, h.user(t, 6).FxBalance)

	h.send(adminID, "/uc_requests")
	require.Equal(t, "ID:1 | User | UC:60 | 60 FX", h.sender.last(t, adminID))

	h.send(adminID, "/deny_uc 1")
	require.Equal(t, "UC so'rovi rad etildi: 1", h.sender.last(t, adminID))
	require.Equal(t, "UC so'rovingiz rad etildi. FX qaytarildi. ID: 1", h.sender.last(t, 6))
	require.Equal(t, int64(60), h.user(t, 6).FxBalance)

	h.send(adminID, "/approve_uc 1")
	require.Equal(t, textNoRequest, h.sender.last(t, adminID))
}

func TestUcInsufficientAbandonsDialog(t *testing.T) {
	h := newHarness(t, Options{})
	h.send(7, "UC xarid")
	h.send(7, "60")
	require.Equal(t, "Balans yetarli emas. Kerak: 60 FX, sizda: 0 FX", h.sender.last(t, 7))

	h.send(7, "60")
	require.Equal(t, textMainMenu, h.sender.last(t, 7))
}

func TestAdminCommandsRequireAdmin(t *testing.T) {
	h := newHarness(t, Options{})
	for _, cmd := range []string{"/stats", "/set mine_amount 5", "/drop_run", "/broadcast hi"} {
		h.send(8, cmd)
		require.Equal(t, textForbidden, h.sender.last(t, 8), cmd)
	}

	h.send(adminID, "/set mine_amount 5")
	require.Equal(t, "Sozlama saqlandi: mine_amount = 5", h.sender.last(t, adminID))
	h.send(adminID, "/getsettings")
	require.Contains(t, h.sender.last(t, adminID), "mine_amount = 5")

	h.send(8, "Mining")
	require.Equal(t, "+5 FX. Jami balans: 5 FX", h.sender.last(t, 8))

	h.send(adminID, "/stats")
	require.Equal(t, "Foydalanuvchilar: 1\nJami FX: 5\nPending withdraw: 0\nPending UC: 0", h.sender.last(t, adminID))
}

func TestMovieFromChannelForward(t *testing.T) {
	h := newHarness(t, Options{})

	cmd := message(adminID, "/addmovie auto")
	cmd.ReplyToMessage = &tgbotapi.Message{
		ForwardFromChat:      &tgbotapi.Chat{ID: -100123, Type: "channel"},
		ForwardFromMessageID: 77,
	}
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: cmd})
	require.Equal(t, "Kino kodi saqlandi: 1", h.sender.last(t, adminID))

	h.send(adminID, "/addmovie 42 Film matni")
	require.Equal(t, "Kino kodi saqlandi: 42", h.sender.last(t, adminID))

	h.send(9, "Kino kodi")
	require.Equal(t, "Kino kodini kiriting:", h.sender.last(t, 9))
	h.send(9, "1")
	require.Equal(t, textAd, h.sender.last(t, 9))
	require.Len(t, h.sender.requests, 1)
	copyMsg, ok := h.sender.requests[0].(tgbotapi.CopyMessageConfig)
	require.True(t, ok)
	require.Equal(t, int64(9), copyMsg.ChatID)
	require.Equal(t, int64(-100123), copyMsg.FromChatID)
	require.Equal(t, 77, copyMsg.MessageID)

	h.send(9, "Kino kodi")
	h.send(9, "42")
	require.Equal(t, "Film matni", h.sender.last(t, 9))

	h.send(9, "Kino kodi")
	h.send(9, "404")
	require.Equal(t, "Kino kodi topilmadi.", h.sender.last(t, 9))

	h.send(adminID, "/delmovie 42")
	require.Equal(t, "Kino kodi o'chirildi: 42", h.sender.last(t, adminID))
}

func TestDropRunAndBroadcast(t *testing.T) {
	h := newHarness(t, Options{})
	for _, id := range []int64{11, 12, 13} {
		h.send(id, "/start")
		h.fund(t, id, id)
	}
	h.sender.failFor[12] = true

	h.send(adminID, "/drop_run")
	require.Equal(t, "Drop yakunlandi.", h.sender.last(t, adminID))
	require.Equal(t, "Tabriklaymiz! Siz TOP 10ga kirdingiz. Bonus: 500 FX", h.sender.last(t, 11))
	require.Equal(t, int64(513), h.user(t, 13).FxBalance)
	require.True(t, h.user(t, 13).IsPremium(h.now))

	h.send(adminID, "/drop_run")
	require.Equal(t, "Bu oy uchun drop allaqachon berilgan. /drop_run force ishlating.", h.sender.last(t, adminID))

	h.send(adminID, "/broadcast Yangilik")
	require.Equal(t, "Yuborildi: 2 ta foydalanuvchi.", h.sender.last(t, adminID))
}

func TestWebhookHandler(t *testing.T) {
	h := newHarness(t, Options{})
	body, err := json.Marshal(tgbotapi.Update{UpdateID: 5, Message: message(10, "Referral")})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.bot.WebhookHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(string(body))))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, h.sender.last(t, 10), "Referral tizimi:")

	rec = httptest.NewRecorder()
	h.bot.WebhookHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetupRegistersCommands(t *testing.T) {
	h := newHarness(t, Options{WebAppURL: "https://app.example.com/?api=x", WebhookURL: "https://fx.example.com/telegram/webhook"})
	require.NoError(t, h.bot.Setup(context.Background()))
	require.Len(t, h.sender.requests, 2)

	cmds, ok := h.sender.requests[0].(tgbotapi.SetMyCommandsConfig)
	require.True(t, ok)
	var names []string
	for _, c := range cmds.Commands {
		names = append(names, c.Command)
	}
	require.Equal(t, []string{"start", "help", "web", "admin"}, names)
	_, ok = h.sender.requests[1].(tgbotapi.WebhookConfig)
	require.True(t, ok)

	raw, err := json.Marshal(h.bot.mainMenu)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"web_app":{"url":"https://app.example.com/?api=x"}`)
}

func TestFormatting(t *testing.T) {
	require.Equal(t, "0", formatNumber(0))
	require.Equal(t, "999", formatNumber(999))
	require.Equal(t, "1,000", formatNumber(1000))
	require.Equal(t, "-1,234,567", formatNumber(-1234567))

	require.Equal(t, "0s", secondsToHuman(0))
	require.Equal(t, "45s", secondsToHuman(45))
	require.Equal(t, "2m 5s", secondsToHuman(125))
}
