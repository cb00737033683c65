package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_chapa_bot/internal/chapa"
	"tg_chapa_bot/internal/domain"
	"tg_chapa_bot/internal/logging"
	"tg_chapa_bot/internal/messages"
	"tg_chapa_bot/internal/txref"
)

// ErrInvalidArgument marks a handler call with a missing transport, update
// variant, or chat identifier.
var ErrInvalidArgument = errors.New("invalid argument")

// API is the subset of the Bot API the handlers call. *bot.Bot satisfies it.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendInvoice(ctx context.Context, params *bot.SendInvoiceParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	AnswerPreCheckoutQuery(ctx context.Context, params *bot.AnswerPreCheckoutQueryParams) (bool, error)
	AnswerShippingQuery(ctx context.Context, params *bot.AnswerShippingQueryParams) (bool, error)
}

// PaymentInitiator starts a hosted checkout with the local payment gateway.
type PaymentInitiator interface {
	Initialize(ctx context.Context, request chapa.InitializeRequest) (chapa.InitializeResult, error)
}

// TransactionJournal records initialized checkouts.
type TransactionJournal interface {
	Create(ctx context.Context, tx domain.Transaction) (domain.Transaction, error)
}

// StatsProvider reports counts for the owner /stats command.
type StatsProvider interface {
	CountUsers(ctx context.Context) (int64, error)
	CountTransactions(ctx context.Context, status domain.TransactionStatus) (int64, error)
}

// HandlerConfig carries the static settings the handlers read.
type HandlerConfig struct {
	OwnerID       int64
	Tokens        ProviderTokens
	CallbackURL   string
	ReturnURL     string
	FallbackEmail string
	FallbackPhone string
}

// Handlers implements one handler per update kind.
type Handlers struct {
	cfg      HandlerConfig
	texts    *messages.Table
	payments PaymentInitiator
	txRefs   txref.Generator
	journal  TransactionJournal
	stats    StatsProvider
	logger   *logrus.Entry
}

// HandlerOption customizes Handlers.
type HandlerOption func(*Handlers)

// WithJournal records every initialized local checkout.
func WithJournal(journal TransactionJournal) HandlerOption {
	return func(h *Handlers) {
		h.journal = journal
	}
}

// WithStats enables the owner-only /stats command.
func WithStats(stats StatsProvider) HandlerOption {
	return func(h *Handlers) {
		h.stats = stats
	}
}

// WithHandlerLogger overrides the handler logger.
func WithHandlerLogger(logger *logrus.Entry) HandlerOption {
	return func(h *Handlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandlers validates collaborators and builds the handler set.
func NewHandlers(cfg HandlerConfig, texts *messages.Table, payments PaymentInitiator, txRefs txref.Generator, opts ...HandlerOption) (*Handlers, error) {
	if texts == nil {
		return nil, fmt.Errorf("%w: message table is required", ErrInvalidArgument)
	}
	if payments == nil {
		return nil, fmt.Errorf("%w: payment initiator is required", ErrInvalidArgument)
	}
	if txRefs == nil {
		return nil, fmt.Errorf("%w: tx_ref generator is required", ErrInvalidArgument)
	}
	if _, err := url.Parse(cfg.CallbackURL); err != nil {
		return nil, fmt.Errorf("parse callback url: %w", err)
	}

	h := &Handlers{
		cfg:      cfg,
		texts:    texts,
		payments: payments,
		txRefs:   txRefs,
		logger:   logging.Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// HandleMessage answers slash commands and echoes anything else.
func (h *Handlers) HandleMessage(ctx context.Context, api API, upd Update) error {
	if api == nil || upd.Message == nil {
		return fmt.Errorf("%w: message handler needs transport and message", ErrInvalidArgument)
	}

	text := upd.Text()
	if text == "" {
		return nil
	}

	cmd := ParseCommand(text)
	commandsProcessed.WithLabelValues(cmd.String()).Inc()

	params := messages.Params{
		"first_name": upd.Sender.FirstName,
		"last_name":  upd.Sender.LastName,
		"text":       text,
	}

	switch cmd {
	case CommandStart:
		return h.sendText(ctx, api, upd.ChatID, h.texts.Render(messages.KeyStart, params), nil)
	case CommandHelp:
		return h.sendText(ctx, api, upd.ChatID, h.texts.Render(messages.KeyHelp, params), nil)
	case CommandBets:
		return h.sendText(ctx, api, upd.ChatID, h.texts.Render(messages.KeyBets, params), nil)
	case CommandTop:
		return h.sendText(ctx, api, upd.ChatID, h.texts.Render(messages.KeyTop, params), nil)
	case CommandSport:
		return h.sendText(ctx, api, upd.ChatID, h.texts.Render(messages.KeySport, params), nil)
	case CommandDate:
		return h.sendText(ctx, api, upd.ChatID, h.texts.Render(messages.KeyDate, params), nil)
	case CommandInvoice:
		return h.sendText(ctx, api, upd.ChatID, h.texts.Render(messages.KeyInvoiceOption, params), h.regionKeyboard())
	case CommandStats:
		if h.stats != nil && h.cfg.OwnerID != 0 && upd.Sender.ID == h.cfg.OwnerID {
			return h.sendStats(ctx, api, upd.ChatID)
		}
	}

	return h.sendText(ctx, api, upd.ChatID, h.texts.Render(messages.KeyDefault, params), nil)
}

// HandleCallback sends the invoice for the chosen region. Unknown data gets an
// explicit notice. The callback query is always answered.
func (h *Handlers) HandleCallback(ctx context.Context, api API, upd Update) (err error) {
	if api == nil || upd.CallbackQuery == nil {
		return fmt.Errorf("%w: callback handler needs transport and callback query", ErrInvalidArgument)
	}

	query := upd.CallbackQuery
	defer func() {
		if _, answerErr := api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: query.ID}); answerErr != nil && err == nil {
			err = fmt.Errorf("answer callback query: %w", answerErr)
		}
	}()

	callback := ParseCallback(query.Data)
	callbacksProcessed.WithLabelValues(callback.String()).Inc()

	if callback == CallbackUnknown {
		return h.sendText(ctx, api, query.From.ID, h.texts.Render(messages.KeyInvalidOption, nil), nil)
	}

	chat := upd.ChatID
	if chat == 0 {
		chat = query.From.ID
	}

	details, err := InvoiceFor(callback.Region(), chat, h.cfg.Tokens, h.texts)
	if err != nil {
		return err
	}

	if _, err := api.SendInvoice(ctx, details.params(chat)); err != nil {
		return fmt.Errorf("send %s invoice: %w", details.Region, err)
	}

	h.logger.WithFields(logging.Fields{
		"event":   "invoice_sent",
		"region":  details.Region.String(),
		"chat_id": chat,
	}).Info("invoice sent")

	return nil
}

// HandlePreCheckout approves worldwide checkouts and starts the hosted local
// checkout for Ethiopia, declining the in-app payment until the gateway
// confirms it out of band.
func (h *Handlers) HandlePreCheckout(ctx context.Context, api API, upd Update) error {
	if api == nil || upd.PreCheckout == nil {
		return fmt.Errorf("%w: pre-checkout handler needs transport and query", ErrInvalidArgument)
	}

	query := upd.PreCheckout
	region, chat, err := ParsePayload(query.InvoicePayload)
	if err != nil {
		if _, answerErr := api.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
			PreCheckoutQueryID: query.ID,
			OK:                 false,
			ErrorMessage:       h.texts.Render(messages.KeyInvalidOption, nil),
		}); answerErr != nil {
			return errors.Join(err, fmt.Errorf("decline pre-checkout: %w", answerErr))
		}
		return err
	}
	if chat == 0 {
		chat = upd.ChatID
	}

	if region == RegionWorldwide {
		if _, err := api.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
			PreCheckoutQueryID: query.ID,
			OK:                 true,
		}); err != nil {
			return fmt.Errorf("approve pre-checkout: %w", err)
		}
		return nil
	}

	return h.startLocalCheckout(ctx, api, upd, chat)
}

func (h *Handlers) startLocalCheckout(ctx context.Context, api API, upd Update, chat int64) error {
	query := upd.PreCheckout
	txRef := h.txRefs.Generate()
	logger := h.logger.WithFields(logging.Fields{
		"user_id": upd.Sender.ID,
		"chat_id": chat,
		"handler": "pre_checkout_query",
		"tx_ref":  txRef,
	})

	callbackURL, err := confirmationURL(h.cfg.CallbackURL, txRef, chat)
	if err != nil {
		return h.declineLocalCheckout(ctx, api, query.ID, chat, err)
	}

	var email, phone string
	if query.OrderInfo != nil {
		email = query.OrderInfo.Email
		phone = query.OrderInfo.PhoneNumber
	}

	request := chapa.InitializeRequest{
		Amount:      chapa.AmountFromMinorUnits(int64(query.TotalAmount)),
		Currency:    query.Currency,
		Email:       firstNonEmpty(email, h.cfg.FallbackEmail),
		FirstName:   upd.Sender.FirstName,
		LastName:    upd.Sender.LastName,
		PhoneNumber: firstNonEmpty(phone, h.cfg.FallbackPhone),
		TxRef:       txRef,
		CallbackURL: callbackURL,
		ReturnURL:   h.cfg.ReturnURL,
	}

	result, err := h.payments.Initialize(ctx, request)
	if err != nil {
		paymentsInitialized.WithLabelValues("error").Inc()
		fields := logging.Fields{"event": "chapa_initialize_failed"}
		var providerErr *chapa.ProviderError
		if errors.As(err, &providerErr) {
			fields["status_code"] = providerErr.StatusCode
			fields["body"] = providerErr.Body
		}
		logger.WithFields(fields).WithError(err).Error("payment initialization failed")
		return h.declineLocalCheckout(ctx, api, query.ID, chat, err)
	}
	paymentsInitialized.WithLabelValues("ok").Inc()

	logger.WithField("event", "chapa_initialized").Info("local checkout initialized")

	text := h.texts.Render(messages.KeyEthiopiaPaymentOptions, messages.Params{"url": result.CheckoutURL})
	if err := h.sendText(ctx, api, chat, text, h.checkoutKeyboard(result.CheckoutURL)); err != nil {
		return err
	}

	if h.journal != nil {
		if _, err := h.journal.Create(ctx, domain.Transaction{
			TxRef:       txRef,
			ChatID:      chat,
			UserID:      upd.Sender.ID,
			Amount:      int64(query.TotalAmount),
			Currency:    query.Currency,
			CheckoutURL: result.CheckoutURL,
		}); err != nil {
			logger.WithField("event", "journal_write_failed").WithError(err).Warn("failed to record transaction")
		}
	}

	if _, err := api.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: query.ID,
		OK:                 false,
		ErrorMessage:       h.texts.Render(messages.KeyLocalCheckoutPending, nil),
	}); err != nil {
		return fmt.Errorf("defer pre-checkout: %w", err)
	}

	return nil
}

func (h *Handlers) declineLocalCheckout(ctx context.Context, api API, queryID string, chat int64, cause error) error {
	notice := h.texts.Render(messages.KeyPaymentError, nil)
	errs := []error{fmt.Errorf("start local checkout: %w", cause)}

	if err := h.sendText(ctx, api, chat, notice, nil); err != nil {
		errs = append(errs, err)
	}
	if _, err := api.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: queryID,
		OK:                 false,
		ErrorMessage:       notice,
	}); err != nil {
		errs = append(errs, fmt.Errorf("decline pre-checkout: %w", err))
	}

	return errors.Join(errs...)
}

// HandleShipping answers every shipping query with the fixed rate table.
func (h *Handlers) HandleShipping(ctx context.Context, api API, upd Update) error {
	if api == nil || upd.Shipping == nil {
		return fmt.Errorf("%w: shipping handler needs transport and query", ErrInvalidArgument)
	}

	if _, err := api.AnswerShippingQuery(ctx, &bot.AnswerShippingQueryParams{
		ShippingQueryID: upd.Shipping.ID,
		OK:              true,
		ShippingOptions: ShippingOptions(h.texts),
	}); err != nil {
		return fmt.Errorf("answer shipping query: %w", err)
	}

	return nil
}

// HandleSuccessfulPayment thanks the buyer once Telegram reports a completed
// in-app payment.
func (h *Handlers) HandleSuccessfulPayment(ctx context.Context, api API, upd Update) error {
	if api == nil || upd.Message == nil || upd.Message.SuccessfulPayment == nil {
		return fmt.Errorf("%w: payment handler needs transport and successful payment", ErrInvalidArgument)
	}

	payment := upd.Message.SuccessfulPayment
	text := h.texts.Render(messages.KeyPaymentReceived, messages.Params{
		"first_name": upd.Sender.FirstName,
		"amount":     chapa.AmountFromMinorUnits(int64(payment.TotalAmount)).StringFixed(2),
		"currency":   payment.Currency,
	})

	return h.sendText(ctx, api, upd.ChatID, text, nil)
}

func (h *Handlers) sendStats(ctx context.Context, api API, chat int64) error {
	users, err := h.stats.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	counts := make(map[domain.TransactionStatus]int64, len(domain.Statuses))
	for _, status := range domain.Statuses {
		count, err := h.stats.CountTransactions(ctx, status)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		counts[status] = count
	}

	text := h.texts.Render(messages.KeyStats, messages.Params{
		"users":     strconv.FormatInt(users, 10),
		"awaiting":  strconv.FormatInt(counts[domain.StatusAwaitingConfirmation], 10),
		"confirmed": strconv.FormatInt(counts[domain.StatusConfirmed], 10),
		"failed":    strconv.FormatInt(counts[domain.StatusFailed], 10),
	})

	return h.sendText(ctx, api, chat, text, nil)
}

func (h *Handlers) sendText(ctx context.Context, api API, chat int64, text string, markup models.ReplyMarkup) error {
	if chat == 0 {
		return fmt.Errorf("%w: chat id is required", ErrInvalidArgument)
	}

	params := &bot.SendMessageParams{
		ChatID: chat,
		Text:   text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := api.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send message to %d: %w", chat, err)
	}

	return nil
}

func (h *Handlers) regionKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: h.texts.Render(messages.KeyOptionWorldwide, nil), CallbackData: CallbackWorldwide.Data()},
				{Text: h.texts.Render(messages.KeyOptionEthiopia, nil), CallbackData: CallbackEthiopia.Data()},
			},
		},
	}
}

func (h *Handlers) checkoutKeyboard(checkoutURL string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: h.texts.Render(messages.KeyCompletePaymentButton, nil), URL: checkoutURL},
			},
		},
	}
}

// confirmationURL appends tx_ref and chat_id to the configured callback URL,
// keeping any query parameters it already has.
func confirmationURL(base, txRef string, chat int64) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse callback url: %w", err)
	}

	query := u.Query()
	query.Set("tx_ref", txRef)
	query.Set("chat_id", strconv.FormatInt(chat, 10))
	u.RawQuery = query.Encode()

	return u.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
