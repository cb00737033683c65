package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_chapa_bot/internal/chapa"
	"tg_chapa_bot/internal/domain"
	"tg_chapa_bot/internal/messages"
)

type stubMongoChecker struct {
	err error
}

func (s stubMongoChecker) Ping(context.Context) error {
	return s.err
}

type stubVerifier struct {
	result *chapa.Verification
	err    error
	calls  []string
}

func (s *stubVerifier) Verify(_ context.Context, txRef string) (*chapa.Verification, error) {
	s.calls = append(s.calls, txRef)
	return s.result, s.err
}

type fakeNotifier struct {
	sent []*bot.SendMessageParams
	err  error
}

func (f *fakeNotifier) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.sent = append(f.sent, params)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{}, nil
}

type markCall struct {
	txRef     string
	status    domain.TransactionStatus
	reference string
}

type fakeJournal struct {
	entries map[string]domain.Transaction
	getErr  error
	marks   []markCall
}

func (f *fakeJournal) GetByTxRef(_ context.Context, txRef string) (domain.Transaction, error) {
	if f.getErr != nil {
		return domain.Transaction{}, f.getErr
	}
	tx, ok := f.entries[txRef]
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	return tx, nil
}

func (f *fakeJournal) MarkOutcome(_ context.Context, txRef string, status domain.TransactionStatus, reference string) error {
	f.marks = append(f.marks, markCall{txRef: txRef, status: status, reference: reference})
	return nil
}

func newTestServer(t *testing.T, deps Dependencies) (*Server, *logtest.Hook) {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	if deps.Verifier == nil {
		deps.Verifier = &stubVerifier{}
	}
	if deps.Notifier == nil {
		deps.Notifier = &fakeNotifier{}
	}
	if deps.Texts == nil {
		deps.Texts = testTexts(t)
	}

	server, err := NewServer(0, deps, logrus.NewEntry(logger))
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}

	return server, hook
}

func testTexts(t *testing.T) *messages.Table {
	t.Helper()

	texts, err := messages.Default()
	if err != nil {
		t.Fatalf("load default string table: %v", err)
	}
	return texts
}

func serve(server *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthHandlerOK(t *testing.T) {
	server, _ := newTestServer(t, Dependencies{Mongo: stubMongoChecker{}})

	rr := serve(server, "/healthz")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}

	body := strings.TrimSpace(rr.Body.String())
	if body != `{"status":"ok"}` {
		t.Fatalf("unexpected body: %s", body)
	}

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %s", ct)
	}
}

func TestHealthHandlerMongoError(t *testing.T) {
	server, _ := newTestServer(t, Dependencies{Mongo: stubMongoChecker{err: errors.New("mongo down")}})

	rr := serve(server, "/healthz")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}

	body := strings.TrimSpace(rr.Body.String())
	if body != `{"status":"degraded","mongo":"error"}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestHealthHandlerMissingMongoChecker(t *testing.T) {
	server, _ := newTestServer(t, Dependencies{})

	rr := serve(server, "/healthz")

	body := strings.TrimSpace(rr.Body.String())
	if body != `{"status":"degraded","mongo":"error"}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestRootEchoesChatID(t *testing.T) {
	server, _ := newTestServer(t, Dependencies{})

	rr := serve(server, "/?chat_id=42")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}
	if body := rr.Body.String(); body != "Received chat_id: 42" {
		t.Fatalf("unexpected body: %q", body)
	}

	rr = serve(server, "/")
	if body := rr.Body.String(); body != "Received chat_id: " {
		t.Fatalf("unexpected body without chat_id: %q", body)
	}
}

func TestMetricsEndpointExposesCounters(t *testing.T) {
	server, _ := newTestServer(t, Dependencies{})

	// Touch a counter so the family is present in the exposition.
	serve(server, VerificationPath)
	rr := serve(server, "/metrics")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "chapa_verifications_processed_total") {
		t.Fatalf("expected verification counter in metrics output")
	}
}

func TestNewServerRequiresCollaborators(t *testing.T) {
	if _, err := NewServer(0, Dependencies{Notifier: &fakeNotifier{}}, nil); err == nil {
		t.Fatalf("expected error without verifier")
	}
	if _, err := NewServer(0, Dependencies{Verifier: &stubVerifier{}}, nil); err == nil {
		t.Fatalf("expected error without notifier")
	}

	server, err := NewServer(9090, Dependencies{Verifier: &stubVerifier{}, Notifier: &fakeNotifier{}}, nil)
	if err != nil {
		t.Fatalf("expected defaults to fill in texts and logger, got %v", err)
	}
	if server.server.Addr != ":9090" {
		t.Fatalf("unexpected addr %s", server.server.Addr)
	}
}

func TestShutdownWithoutServerIsNoop(t *testing.T) {
	var server *Server
	if err := server.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
