package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_chapa_bot/internal/chapa"
	"tg_chapa_bot/internal/domain"
	"tg_chapa_bot/internal/logging"
	"tg_chapa_bot/internal/messages"
)

// Plain-text acknowledgements returned to the redirecting caller.
const (
	BodyProcessed = "Payment processed."
	BodyProblem   = "There was a problem with your payment."
)

// Verifier re-checks a transaction with the payment provider.
type Verifier interface {
	Verify(ctx context.Context, txRef string) (*chapa.Verification, error)
}

// Notifier sends the confirmation to the buyer's chat. *bot.Bot satisfies it.
type Notifier interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Journal records confirmation outcomes against initialized checkouts.
type Journal interface {
	GetByTxRef(ctx context.Context, txRef string) (domain.Transaction, error)
	MarkOutcome(ctx context.Context, txRef string, status domain.TransactionStatus, providerReference string) error
}

// NewNotifier builds a send-only bot client. It skips the getMe handshake and
// must never be started.
func NewNotifier(token string, opts ...bot.Option) (*bot.Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is required")
	}

	options := append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, options...)
	if err != nil {
		return nil, fmt.Errorf("init notifier bot: %w", err)
	}

	return b, nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeText(w, fmt.Sprintf("Received chat_id: %s", r.URL.Query().Get("chat_id")))
}

// handleVerification always answers 200. Only a confirmed verification yields
// BodyProcessed; failures, unknown results and missing parameters share BodyProblem.
// Provider, notifier and journal calls outlive a caller that disconnects.
func (s *Server) handleVerification(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	query := r.URL.Query()
	txRef := strings.TrimSpace(query.Get("tx_ref"))
	rawChat := strings.TrimSpace(query.Get("chat_id"))

	logger := s.logger.WithFields(logging.Fields{
		"event":      "chapa_verification",
		"tx_ref":     txRef,
		"chat_id":    rawChat,
		"request_id": middleware.GetReqID(r.Context()),
	})

	verification, err := s.verifier.Verify(ctx, txRef)
	outcome := verification.Outcome()
	if err != nil {
		outcome = chapa.OutcomeUnknown
		logger.WithError(err).Warn("chapa verification could not be determined")
	}
	verificationsProcessed.WithLabelValues(string(outcome)).Inc()

	key, body := messages.KeyChapaError, BodyProblem
	if outcome == chapa.OutcomeConfirmed {
		key, body = messages.KeyChapaSuccess, BodyProcessed
	}

	logger.WithField("outcome", outcome).Info("chapa verification processed")

	s.notify(ctx, logger, rawChat, s.texts.Render(key, nil))
	s.recordOutcome(ctx, logger, txRef, rawChat, outcome, verification)

	writeText(w, body)
}

func (s *Server) notify(ctx context.Context, logger *logrus.Entry, rawChat, text string) {
	chat, err := strconv.ParseInt(rawChat, 10, 64)
	if err != nil || chat == 0 {
		notificationsSent.WithLabelValues("skipped").Inc()
		logger.WithField("event", "chapa_notify_skipped").Warn("chat_id is missing or invalid; buyer not notified")
		return
	}

	if _, err := s.notifier.SendMessage(ctx, &bot.SendMessageParams{ChatID: chat, Text: text}); err != nil {
		notificationsSent.WithLabelValues("error").Inc()
		logger.WithField("event", "chapa_notify_error").WithError(err).Error("failed to notify buyer")
		return
	}

	notificationsSent.WithLabelValues("ok").Inc()
}

// recordOutcome is audit only. The response and notification never depend on it.
func (s *Server) recordOutcome(ctx context.Context, logger *logrus.Entry, txRef, rawChat string, outcome chapa.Outcome, verification *chapa.Verification) {
	if s.journal == nil || txRef == "" {
		return
	}

	tx, err := s.journal.GetByTxRef(ctx, txRef)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			logger.WithField("event", "chapa_journal_missing").Warn("no journal entry for tx_ref")
			return
		}
		logger.WithField("event", "chapa_journal_error").WithError(err).Error("failed to load journal entry")
		return
	}

	if rawChat != strconv.FormatInt(tx.ChatID, 10) {
		logger.WithFields(logging.Fields{
			"event":           "chapa_chat_mismatch",
			"journal_chat_id": tx.ChatID,
		}).Warn("callback chat_id differs from the chat that started the checkout")
	}

	status := domain.StatusFailed
	if outcome == chapa.OutcomeConfirmed {
		status = domain.StatusConfirmed
	}

	var reference string
	if verification != nil && verification.Data != nil {
		reference = verification.Data.Reference
	}

	if err := s.journal.MarkOutcome(ctx, txRef, status, reference); err != nil {
		logger.WithField("event", "chapa_journal_error").WithError(err).Error("failed to record verification outcome")
	}
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}
