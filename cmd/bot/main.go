package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tg_chapa_bot/internal/chapa"
	"tg_chapa_bot/internal/config"
	"tg_chapa_bot/internal/domain"
	"tg_chapa_bot/internal/feature/user"
	"tg_chapa_bot/internal/httpclient"
	"tg_chapa_bot/internal/logging"
	"tg_chapa_bot/internal/messages"
	"tg_chapa_bot/internal/store"
	"tg_chapa_bot/internal/telegram"
	"tg_chapa_bot/internal/txref"
	"tg_chapa_bot/internal/web"
)

const (
	mongoConnectTimeout     = 10 * time.Second
	mongoIndexTimeout       = 5 * time.Second
	mongoDisconnectTimeout  = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
	webShutdownTimeout      = 5 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":     "startup",
		"mongo_db":  cfg.MongoDB,
		"http_port": cfg.HTTPPort,
	}).Info("configuration loaded")

	texts, err := messages.Default()
	if err != nil {
		fatal(logger, "string table error", err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		fatal(logger, "mongo connection error", err)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	err = mongoManager.EnsureBaseIndexes(indexCtx)
	cancelIndexes()
	if err != nil {
		fatal(logger, "mongo index setup error", err)
	}

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	refs, err := txref.New(cfg.TxRefStrategy, cfg.TxRefPrefix)
	if err != nil {
		fatal(logger, "tx_ref generator error", err)
	}

	chapaClient := chapa.NewClient(chapa.Config{
		Secret:        cfg.Chapa.Secret,
		InitializeURL: cfg.Chapa.InitializeURL,
		VerifyURL:     cfg.Chapa.VerifyURL,
	}, httpclient.New(cfg.Chapa.HTTPTimeout))

	userRegistrar := user.NewRegistrar(mongoManager.Users(), logger)
	journal := domain.NewTransactionRepository(mongoManager.Transactions())
	statsProvider := store.NewStatsProvider(mongoManager.Users(), mongoManager.Transactions())

	handlers, err := telegram.NewHandlers(telegram.HandlerConfig{
		OwnerID: cfg.BotOwnerID,
		Tokens: telegram.ProviderTokens{
			Worldwide: cfg.StripeToken,
			Ethiopia:  cfg.ChapaToken,
		},
		CallbackURL:   cfg.Chapa.CallbackURL,
		ReturnURL:     cfg.Chapa.ReturnURL,
		FallbackEmail: cfg.Chapa.FallbackEmail,
		FallbackPhone: cfg.Chapa.FallbackPhone,
	}, texts, chapaClient, refs,
		telegram.WithJournal(journal),
		telegram.WithStats(statsProvider),
		telegram.WithHandlerLogger(logger),
	)
	if err != nil {
		fatal(logger, "telegram handler setup error", err)
	}

	tgClient, err := telegram.NewClient(cfg, logger,
		telegram.WithHandlers(handlers),
		telegram.WithUserRegistrar(userRegistrar),
	)
	if err != nil {
		fatal(logger, "telegram client setup error", err)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	notifier, err := web.NewNotifier(cfg.TelegramToken)
	if err != nil {
		fatal(logger, "notifier setup error", err)
	}

	webServer, err := web.NewServer(cfg.HTTPPort, web.Dependencies{
		Verifier: chapaClient,
		Notifier: notifier,
		Journal:  journal,
		Mongo:    mongoManager,
		Texts:    texts,
	}, logger)
	if err != nil {
		fatal(logger, "web server setup error", err)
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	webErr := make(chan error, 1)
	go func() {
		webErr <- webServer.ListenAndServe()
	}()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	case err := <-webErr:
		logger.WithField("event", "web_stopped_early").WithError(err).Error("web server stopped before shutdown signal")
	}

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	webCtx, cancelWeb := context.WithTimeout(context.Background(), webShutdownTimeout)
	if err := webServer.Shutdown(webCtx); err != nil {
		logger.WithError(err).Error("web server shutdown error")
	}
	cancelWeb()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	if err := mongoManager.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
	} else {
		logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
	}
	cancelShutdown()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}

func fatal(logger *logrus.Entry, msg string, err error) {
	logger.WithError(err).Error(msg)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
