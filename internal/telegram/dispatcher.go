package telegram

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_chapa_bot/internal/domain"
	"tg_chapa_bot/internal/logging"
)

// UserRegistrar records the sender of every update.
type UserRegistrar interface {
	EnsureUser(ctx context.Context, profile domain.User) (bool, error)
}

type handlerFunc func(ctx context.Context, api API, upd Update) error

// Dispatcher classifies updates and routes each to exactly one handler.
// Handler errors and panics are logged and counted, never propagated.
type Dispatcher struct {
	handlers  *Handlers
	registrar UserRegistrar
	lanes     *chatLanes
	logger    *logrus.Entry
}

// NewDispatcher builds a Dispatcher. With lanes enabled, updates for the same
// chat run in arrival order on a background lane; otherwise they run inline.
func NewDispatcher(handlers *Handlers, registrar UserRegistrar, lanes bool, logger *logrus.Entry) (*Dispatcher, error) {
	if handlers == nil {
		return nil, fmt.Errorf("%w: handlers are required", ErrInvalidArgument)
	}
	if logger == nil {
		logger = logging.Logger()
	}

	d := &Dispatcher{
		handlers:  handlers,
		registrar: registrar,
		logger:    logger,
	}
	if lanes {
		d.lanes = newChatLanes()
	}

	return d, nil
}

// BotHandler adapts the dispatcher to the bot library's default handler.
func (d *Dispatcher) BotHandler() bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		var api API
		if b != nil {
			api = b
		}
		d.Dispatch(ctx, api, update)
	}
}

// Dispatch classifies one raw update and hands it to its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, api API, update *models.Update) {
	if api == nil || update == nil {
		handlerErrors.WithLabelValues("dispatcher", "invalid_argument").Inc()
		d.logger.WithFields(logging.Fields{
			"event": "telegram_update_rejected",
		}).WithError(fmt.Errorf("%w: dispatcher needs transport and update", ErrInvalidArgument)).Error("dropping update")
		return
	}

	upd := Classify(update)
	updatesReceived.WithLabelValues(upd.Kind.String()).Inc()

	fields := logging.Fields{
		"event":       "telegram_update",
		"update_type": upd.Kind.String(),
	}
	if text := upd.Text(); text != "" {
		fields["text"] = text
	}
	if upd.Sender.ID != 0 {
		fields["user_id"] = upd.Sender.ID
	}
	if upd.ChatID != 0 {
		fields["chat_id"] = upd.ChatID
	}
	d.logger.WithFields(fields).Info("telegram update received")

	// Stopping the poller must not abort provider calls already accepted.
	ctx = context.WithoutCancel(ctx)
	if d.lanes == nil {
		d.process(ctx, api, upd)
		return
	}

	d.lanes.Submit(upd.ChatID, func() {
		d.process(ctx, api, upd)
	})
}

// Wait blocks until queued lane work has finished.
func (d *Dispatcher) Wait() {
	if d.lanes != nil {
		d.lanes.Wait()
	}
}

func (d *Dispatcher) process(ctx context.Context, api API, upd Update) {
	d.register(ctx, upd)

	name, handle := d.route(upd.Kind)
	if handle == nil {
		return
	}

	if err := d.run(ctx, name, handle, api, upd); err != nil {
		kind := "error"
		if errors.Is(err, ErrInvalidArgument) {
			kind = "invalid_argument"
		}
		handlerErrors.WithLabelValues(name, kind).Inc()

		fields := logging.Fields{
			"event":   "handler_failed",
			"handler": name,
		}
		if upd.Sender.ID != 0 {
			fields["user_id"] = upd.Sender.ID
		}
		if upd.ChatID != 0 {
			fields["chat_id"] = upd.ChatID
		}
		d.logger.WithFields(fields).WithError(err).Error("telegram handler failed")
	}
}

func (d *Dispatcher) route(kind UpdateKind) (string, handlerFunc) {
	switch kind {
	case UpdateMessage:
		return "message", d.handlers.HandleMessage
	case UpdateCallbackQuery:
		return "callback_query", d.handlers.HandleCallback
	case UpdatePreCheckoutQuery:
		return "pre_checkout_query", d.handlers.HandlePreCheckout
	case UpdateShippingQuery:
		return "shipping_query", d.handlers.HandleShipping
	case UpdateSuccessfulPayment:
		return "successful_payment", d.handlers.HandleSuccessfulPayment
	default:
		return "", nil
	}
}

func (d *Dispatcher) run(ctx context.Context, name string, handle handlerFunc, api API, upd Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			handlerErrors.WithLabelValues(name, "panic").Inc()
			d.logger.WithFields(logging.Fields{
				"event":   "handler_panic",
				"handler": name,
				"panic":   fmt.Sprint(r),
				"stack":   string(debug.Stack()),
			}).Error("recovered from handler panic")
			err = nil
		}
	}()

	return handle(ctx, api, upd)
}

func (d *Dispatcher) register(ctx context.Context, upd Update) {
	if d.registrar == nil || upd.Sender.ID == 0 {
		return
	}

	if _, err := d.registrar.EnsureUser(ctx, domain.User{
		UserID:    upd.Sender.ID,
		FirstName: upd.Sender.FirstName,
		LastName:  upd.Sender.LastName,
		Username:  upd.Sender.Username,
	}); err != nil {
		d.logger.WithFields(logging.Fields{
			"event":   "user_register_failed",
			"user_id": upd.Sender.ID,
		}).WithError(err).Warn("failed to record user")
	}
}
