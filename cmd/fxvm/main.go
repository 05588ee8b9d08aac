package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/api"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/bot"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/config"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/logging"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/scheduler"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/service"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

// Telegram allows roughly 30 messages per second across chats.
const notifyPerSecond = 25

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	_, logCloser := logging.Setup(logging.Options{
		Service: cfg.AppName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()

	settings := service.NewSettings(repo)
	if err := settings.Seed(ctx); err != nil {
		log.Fatalf("Unable to seed settings: %v", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("Unable to reach Telegram: %v", err)
	}
	_ = tgbotapi.SetLogger(log.Default())
	if cfg.BotUsername == "" {
		cfg.BotUsername = botAPI.Self.UserName
	}
	slog.Info("authorized", "bot", botAPI.Self.UserName, "webhook", cfg.UseWebhook(), "store", storeKind(cfg))

	notifier := bot.NewNotifier(botAPI, notifyPerSecond)
	ledger := service.NewLedger(repo, nil)
	accounts := service.NewAccounts(repo, settings, nil)
	miner := service.NewMiner(repo, settings, nil)
	dropper := service.NewDropper(repo, settings, notifier, bot.DropMessage, nil)
	flow := service.NewFlow(repo, settings, ledger, service.FlowConfig{
		IsAdmin:  cfg.IsAdmin,
		StateTTL: cfg.StateTTL,
	})

	b := bot.New(bot.Deps{
		Sender:   botAPI,
		Notifier: notifier,
		Settings: settings,
		Accounts: accounts,
		Miner:    miner,
		Flow:     flow,
		Ledger:   ledger,
		Queries:  service.NewQueries(repo, nil),
		Dropper:  dropper,
		Repo:     repo,
	}, bot.Options{
		AppName:      cfg.AppName,
		BotUsername:  cfg.BotUsername,
		AdminContact: cfg.AdminContact,
		WebAppURL:    cfg.WebAppLaunchURL(),
		WebhookURL:   cfg.WebhookURL,
		Admins:       cfg.AdminIDs,
	})
	if err := b.Setup(ctx); err != nil {
		log.Fatalf("Unable to configure bot: %v", err)
	}

	routerOpts := api.RouterOptions{
		PublicDir:     cfg.PublicDir,
		RatePerMinute: cfg.WebRatePerMinute,
		RateBurst:     cfg.WebRateBurst,
	}
	if cfg.UseWebhook() {
		routerOpts.Webhook = b.WebhookHandler()
	}
	handler := api.NewHandler(accounts, miner, api.NewInitDataVerifier(cfg.BotToken, nil))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler, routerOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched, err := scheduler.New(repo, dropper, scheduler.Options{
		StateTTL:     cfg.StateTTL,
		DropSchedule: cfg.DropSchedule,
	})
	if err != nil {
		log.Fatal(err)
	}
	sched.Start()

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	if !cfg.UseWebhook() {
		go func() {
			if err := b.Run(ctx, botAPI); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("polling stopped", "err", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "err", err)
	}
	sched.Stop(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Repository, func(), error) {
	if cfg.UseMemoryStore() {
		return store.NewMemory(), func() {}, nil
	}
	pg, err := store.NewPostgres(ctx, cfg.DBSource, cfg.PGSSL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func storeKind(cfg *config.Config) string {
	if cfg.UseMemoryStore() {
		return "memory"
	}
	return "postgres"
}
