// Package telegram hosts the Telegram client, update dispatcher, and handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"

	"tg_chapa_bot/internal/config"
	"tg_chapa_bot/internal/logging"
)

type botRunner interface {
	Start(ctx context.Context)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"callback_query",
		"pre_checkout_query",
		"shipping_query",
	}

	createBot = func(token string, options ...bot.Option) (botRunner, error) {
		return bot.New(token, options...)
	}
)

// Client wraps the Telegram bot instance and its dispatcher.
type Client struct {
	bot        botRunner
	dispatcher *Dispatcher
	logger     *logrus.Entry
}

// Option customizes the client.
type Option func(*clientOptions)

type clientOptions struct {
	handlers  *Handlers
	registrar UserRegistrar
}

// WithHandlers sets the handler set updates are routed to.
func WithHandlers(handlers *Handlers) Option {
	return func(o *clientOptions) {
		o.handlers = handlers
	}
}

// WithUserRegistrar records every sender before its update is handled.
func WithUserRegistrar(registrar UserRegistrar) Option {
	return func(o *clientOptions) {
		o.registrar = registrar
	}
}

// NewClient initializes the Telegram bot with long polling. Updates are
// delivered to the dispatcher one at a time; cfg.ChatLanes moves handling onto
// per-chat lanes.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	var options clientOptions
	for _, opt := range opts {
		opt(&options)
	}

	dispatcher, err := NewDispatcher(options.handlers, options.registrar, cfg.ChatLanes, logger)
	if err != nil {
		return nil, fmt.Errorf("init dispatcher: %w", err)
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(dispatcher.BotHandler()),
		bot.WithErrorsHandler(errorHandler(logger)),
		bot.WithNotAsyncHandlers(),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	return &Client{
		bot:        tgBot,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// Start begins receiving updates via long polling until the context is
// canceled, then waits for queued updates to finish.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)
	if c.dispatcher != nil {
		c.dispatcher.Wait()
	}

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}
