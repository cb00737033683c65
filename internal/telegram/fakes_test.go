package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_chapa_bot/internal/chapa"
	"tg_chapa_bot/internal/domain"
	"tg_chapa_bot/internal/messages"
	"tg_chapa_bot/internal/txref"
)

type fakeAPI struct {
	mu                 sync.Mutex
	messages           []*bot.SendMessageParams
	invoices           []*bot.SendInvoiceParams
	callbackAnswers    []*bot.AnswerCallbackQueryParams
	preCheckoutAnswers []*bot.AnswerPreCheckoutQueryParams
	shippingAnswers    []*bot.AnswerShippingQueryParams
	sendCtxErrs        []error
	sendErr            error
	panicOnSend        bool
}

func (f *fakeAPI) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if f.panicOnSend {
		panic("send exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, params)
	f.sendCtxErrs = append(f.sendCtxErrs, ctx.Err())
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &models.Message{ID: len(f.messages)}, nil
}

func (f *fakeAPI) SendInvoice(_ context.Context, params *bot.SendInvoiceParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices = append(f.invoices, params)
	return &models.Message{ID: len(f.invoices)}, nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbackAnswers = append(f.callbackAnswers, params)
	return true, nil
}

func (f *fakeAPI) AnswerPreCheckoutQuery(_ context.Context, params *bot.AnswerPreCheckoutQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preCheckoutAnswers = append(f.preCheckoutAnswers, params)
	return true, nil
}

func (f *fakeAPI) AnswerShippingQuery(_ context.Context, params *bot.AnswerShippingQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shippingAnswers = append(f.shippingAnswers, params)
	return true, nil
}

func (f *fakeAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	texts := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		texts = append(texts, m.Text)
	}
	return texts
}

type fakeInitiator struct {
	requests []chapa.InitializeRequest
	result   chapa.InitializeResult
	err      error
}

func (f *fakeInitiator) Initialize(_ context.Context, request chapa.InitializeRequest) (chapa.InitializeResult, error) {
	f.requests = append(f.requests, request)
	if f.err != nil {
		return chapa.InitializeResult{}, f.err
	}
	return f.result, nil
}

type fakeJournal struct {
	entries []domain.Transaction
	err     error
}

func (f *fakeJournal) Create(_ context.Context, tx domain.Transaction) (domain.Transaction, error) {
	f.entries = append(f.entries, tx)
	return tx, f.err
}

type fakeStats struct {
	users  int64
	counts map[domain.TransactionStatus]int64
	err    error
}

func (f *fakeStats) CountUsers(context.Context) (int64, error) {
	return f.users, f.err
}

func (f *fakeStats) CountTransactions(_ context.Context, status domain.TransactionStatus) (int64, error) {
	return f.counts[status], f.err
}

type fakeRegistrar struct {
	mu       sync.Mutex
	profiles []domain.User
	err      error
}

func (f *fakeRegistrar) EnsureUser(_ context.Context, profile domain.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles = append(f.profiles, profile)
	return len(f.profiles) == 1, f.err
}

var errProviderDown = errors.New("provider down")

const (
	testOwnerID     = int64(1000)
	testCallbackURL = "https://bot.example.com/chapa_payment_verification"
	testReturnURL   = "https://t.me/example_bot"
	testCheckoutURL = "https://checkout.chapa.co/checkout/payment/abc"
)

func testTexts(t *testing.T) *messages.Table {
	t.Helper()

	texts, err := messages.Default()
	if err != nil {
		t.Fatalf("load default string table: %v", err)
	}
	return texts
}

func testHandlerConfig() HandlerConfig {
	return HandlerConfig{
		OwnerID:       testOwnerID,
		Tokens:        ProviderTokens{Worldwide: "stripe-token", Ethiopia: "chapa-token"},
		CallbackURL:   testCallbackURL,
		ReturnURL:     testReturnURL,
		FallbackEmail: "fallback@example.com",
		FallbackPhone: "0900000000",
	}
}

func newTestHandlers(t *testing.T, payments PaymentInitiator, refs txref.Generator, opts ...HandlerOption) (*Handlers, *logtest.Hook) {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	if payments == nil {
		payments = &fakeInitiator{result: chapa.InitializeResult{StatusCode: 200, CheckoutURL: testCheckoutURL}}
	}
	if refs == nil {
		refs = txref.GeneratorFunc(func() string { return "chewatatest-4821" })
	}

	opts = append([]HandlerOption{WithHandlerLogger(logrus.NewEntry(logger))}, opts...)
	h, err := NewHandlers(testHandlerConfig(), testTexts(t), payments, refs, opts...)
	if err != nil {
		t.Fatalf("NewHandlers returned error: %v", err)
	}

	return h, hook
}

func messageUpdate(chat, user int64, firstName, text string) Update {
	return Classify(&models.Update{
		Message: &models.Message{
			From: &models.User{ID: user, FirstName: firstName},
			Chat: models.Chat{ID: chat},
			Text: text,
		},
	})
}

func callbackUpdate(chat, user int64, data string) Update {
	return Classify(&models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cbq-1",
			From: models.User{ID: user},
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Type:    models.MaybeInaccessibleMessageTypeMessage,
				Message: &models.Message{Chat: models.Chat{ID: chat}},
			},
		},
	})
}

func preCheckoutUpdate(payload string) Update {
	return Classify(&models.Update{
		PreCheckoutQuery: &models.PreCheckoutQuery{
			ID:             "pcq-1",
			From:           &models.User{ID: 7, FirstName: "Abebe", LastName: "Bikila"},
			Currency:       "USD",
			TotalAmount:    5000,
			InvoicePayload: payload,
			OrderInfo: &models.OrderInfo{
				Name:        "Abebe Bikila",
				Email:       "abebe@example.com",
				PhoneNumber: "0911000000",
			},
		},
	})
}
