package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"

	"tg_chapa_bot/internal/chapa"
	"tg_chapa_bot/internal/domain"
	"tg_chapa_bot/internal/messages"
)

func confirmedVerification() *chapa.Verification {
	return &chapa.Verification{
		Status: "success",
		Data:   &chapa.VerificationData{Status: "success", Reference: "APrEf123", TxRef: "chewatatest-4821"},
	}
}

func TestVerificationConfirmedNotifiesOnce(t *testing.T) {
	verifier := &stubVerifier{result: confirmedVerification()}
	notifier := &fakeNotifier{}
	server, _ := newTestServer(t, Dependencies{Verifier: verifier, Notifier: notifier})

	rr := serve(server, VerificationPath+"?tx_ref=chewatatest-4821&chat_id=555")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}
	if body := rr.Body.String(); body != BodyProcessed {
		t.Fatalf("unexpected body: %q", body)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain, got %s", ct)
	}

	if len(verifier.calls) != 1 || verifier.calls[0] != "chewatatest-4821" {
		t.Fatalf("expected tx_ref to reach the verifier unchanged, got %v", verifier.calls)
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(notifier.sent))
	}
	sent := notifier.sent[0]
	if sent.ChatID != int64(555) {
		t.Fatalf("expected notification to chat 555, got %v", sent.ChatID)
	}
	if sent.Text != testTexts(t).Render(messages.KeyChapaSuccess, nil) {
		t.Fatalf("unexpected notification text: %q", sent.Text)
	}
}

func TestVerificationFailuresNotifyOnce(t *testing.T) {
	errorText := testTexts(t).Render(messages.KeyChapaError, nil)

	cases := []struct {
		name   string
		result *chapa.Verification
		err    error
	}{
		{name: "nil result", result: nil, err: chapa.ErrVerificationUnknown},
		{name: "envelope failed", result: &chapa.Verification{Status: "failed", Data: &chapa.VerificationData{Status: "success"}}},
		{name: "transaction pending", result: &chapa.Verification{Status: "success", Data: &chapa.VerificationData{Status: "pending"}}},
		{name: "missing data", result: &chapa.Verification{Status: "success"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			server, _ := newTestServer(t, Dependencies{
				Verifier: &stubVerifier{result: tc.result, err: tc.err},
				Notifier: notifier,
			})

			rr := serve(server, VerificationPath+"?tx_ref=chewatatest-1&chat_id=77")

			if rr.Code != http.StatusOK {
				t.Fatalf("expected HTTP 200, got %d", rr.Code)
			}
			if body := rr.Body.String(); body != BodyProblem {
				t.Fatalf("unexpected body: %q", body)
			}
			if len(notifier.sent) != 1 {
				t.Fatalf("expected exactly one notification, got %d", len(notifier.sent))
			}
			if notifier.sent[0].Text != errorText {
				t.Fatalf("unexpected notification text: %q", notifier.sent[0].Text)
			}
		})
	}
}

func TestVerificationWithoutParameters(t *testing.T) {
	verifier := &stubVerifier{err: chapa.ErrVerificationUnknown}
	notifier := &fakeNotifier{}
	server, hook := newTestServer(t, Dependencies{Verifier: verifier, Notifier: notifier})

	rr := serve(server, VerificationPath)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}
	if body := rr.Body.String(); body != BodyProblem {
		t.Fatalf("unexpected body: %q", body)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("expected no notification without chat_id, got %d", len(notifier.sent))
	}

	var skipped bool
	for _, entry := range hook.AllEntries() {
		if entry.Data["event"] == "chapa_notify_skipped" && entry.Level == logrus.WarnLevel {
			skipped = true
		}
	}
	if !skipped {
		t.Fatalf("expected skipped notification to be logged")
	}
}

// blockingVerifier holds Verify open until released, then fails if its
// context was cancelled in the meantime.
type blockingVerifier struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingVerifier) Verify(ctx context.Context, _ string) (*chapa.Verification, error) {
	close(b.started)
	<-b.release
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(chapa.ErrVerificationUnknown, err)
	}
	return confirmedVerification(), nil
}

func TestVerificationOutlivesCallerDisconnect(t *testing.T) {
	verifier := &blockingVerifier{started: make(chan struct{}), release: make(chan struct{})}
	notifier := &fakeNotifier{}
	server, _ := newTestServer(t, Dependencies{Verifier: verifier, Notifier: notifier})

	reqCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, VerificationPath+"?tx_ref=chewatatest-4821&chat_id=555", nil).WithContext(reqCtx)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		server.server.Handler.ServeHTTP(rr, req)
		close(done)
	}()

	<-verifier.started
	cancel()
	close(verifier.release)
	<-done

	if body := rr.Body.String(); body != BodyProcessed {
		t.Fatalf("expected confirmed payment after caller disconnect, got %q", body)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Text != testTexts(t).Render(messages.KeyChapaSuccess, nil) {
		t.Fatalf("expected a single success notification, got %+v", notifier.sent)
	}
}

func TestVerificationIgnoresNonNumericChatID(t *testing.T) {
	notifier := &fakeNotifier{}
	server, _ := newTestServer(t, Dependencies{
		Verifier: &stubVerifier{result: confirmedVerification()},
		Notifier: notifier,
	})

	rr := serve(server, VerificationPath+"?tx_ref=chewatatest-4821&chat_id=abc")

	if body := rr.Body.String(); body != BodyProcessed {
		t.Fatalf("unexpected body: %q", body)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("expected no notification for non-numeric chat_id")
	}
}

func TestVerificationSurvivesNotifierFailure(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	server, hook := newTestServer(t, Dependencies{
		Verifier: &stubVerifier{result: confirmedVerification()},
		Notifier: notifier,
	})

	rr := serve(server, VerificationPath+"?tx_ref=chewatatest-4821&chat_id=555")

	if body := rr.Body.String(); body != BodyProcessed {
		t.Fatalf("expected acknowledgement regardless of notification, got %q", body)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected a single notification attempt, got %d", len(notifier.sent))
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Data["event"] != "chapa_notify_error" {
		t.Fatalf("expected notifier failure to be logged, got %+v", entry)
	}
}

func TestVerificationRecordsJournalOutcome(t *testing.T) {
	journal := &fakeJournal{entries: map[string]domain.Transaction{
		"chewatatest-4821": {TxRef: "chewatatest-4821", ChatID: 555},
	}}
	server, _ := newTestServer(t, Dependencies{
		Verifier: &stubVerifier{result: confirmedVerification()},
		Journal:  journal,
	})

	serve(server, VerificationPath+"?tx_ref=chewatatest-4821&chat_id=555")

	if len(journal.marks) != 1 {
		t.Fatalf("expected one journal update, got %d", len(journal.marks))
	}
	mark := journal.marks[0]
	if mark.status != domain.StatusConfirmed || mark.reference != "APrEf123" {
		t.Fatalf("unexpected journal update %+v", mark)
	}
}

func TestVerificationJournalIsAuditOnly(t *testing.T) {
	t.Run("unknown outcome marks failed", func(t *testing.T) {
		journal := &fakeJournal{entries: map[string]domain.Transaction{
			"chewatatest-9": {TxRef: "chewatatest-9", ChatID: 1},
		}}
		server, _ := newTestServer(t, Dependencies{
			Verifier: &stubVerifier{err: chapa.ErrVerificationUnknown},
			Journal:  journal,
		})

		rr := serve(server, VerificationPath+"?tx_ref=chewatatest-9&chat_id=1")

		if rr.Body.String() != BodyProblem {
			t.Fatalf("unexpected body: %q", rr.Body.String())
		}
		if len(journal.marks) != 1 || journal.marks[0].status != domain.StatusFailed {
			t.Fatalf("expected failed mark, got %+v", journal.marks)
		}
	})

	t.Run("missing entry does not change the outcome", func(t *testing.T) {
		journal := &fakeJournal{}
		notifier := &fakeNotifier{}
		server, hook := newTestServer(t, Dependencies{
			Verifier: &stubVerifier{result: confirmedVerification()},
			Notifier: notifier,
			Journal:  journal,
		})

		rr := serve(server, VerificationPath+"?tx_ref=external-1&chat_id=5")

		if rr.Body.String() != BodyProcessed {
			t.Fatalf("unexpected body: %q", rr.Body.String())
		}
		if len(notifier.sent) != 1 {
			t.Fatalf("expected notification despite missing journal entry")
		}
		if len(journal.marks) != 0 {
			t.Fatalf("expected no journal update for unknown tx_ref")
		}
		if entry := hook.LastEntry(); entry == nil || entry.Data["event"] != "chapa_journal_missing" {
			t.Fatalf("expected missing journal entry to be logged, got %+v", entry)
		}
	})

	t.Run("chat mismatch is logged", func(t *testing.T) {
		journal := &fakeJournal{entries: map[string]domain.Transaction{
			"chewatatest-2": {TxRef: "chewatatest-2", ChatID: 10},
		}}
		notifier := &fakeNotifier{}
		server, hook := newTestServer(t, Dependencies{
			Verifier: &stubVerifier{result: confirmedVerification()},
			Notifier: notifier,
			Journal:  journal,
		})

		serve(server, VerificationPath+"?tx_ref=chewatatest-2&chat_id=11")

		if len(notifier.sent) != 1 || notifier.sent[0].ChatID != int64(11) {
			t.Fatalf("expected notification to the chat from the query string")
		}

		var mismatch bool
		for _, entry := range hook.AllEntries() {
			if entry.Data["event"] == "chapa_chat_mismatch" {
				mismatch = true
			}
		}
		if !mismatch {
			t.Fatalf("expected chat mismatch warning")
		}
	})
}

func TestNotifierSendsThroughBotAPI(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		body  string
	)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		body = string(raw)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":555,"type":"private"}}}`)
	}))
	defer api.Close()

	notifier, err := NewNotifier("123:test", bot.WithServerURL(api.URL))
	if err != nil {
		t.Fatalf("NewNotifier returned error: %v", err)
	}

	server, _ := newTestServer(t, Dependencies{
		Verifier: &stubVerifier{result: confirmedVerification()},
		Notifier: notifier,
	})

	rr := serve(server, VerificationPath+"?tx_ref=chewatatest-4821&chat_id=555")
	if rr.Body.String() != BodyProcessed {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || paths[0] != "/bot123:test/sendMessage" {
		t.Fatalf("expected a single sendMessage call, got %v", paths)
	}
	if !strings.Contains(body, "Your payment was successful!") || !strings.Contains(body, "555") {
		t.Fatalf("expected chat id and success text in request, got %s", body)
	}
}

func TestNewNotifierRequiresToken(t *testing.T) {
	if _, err := NewNotifier("  "); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

var (
	_ Notifier = (*bot.Bot)(nil)
	_ Journal  = (*domain.TransactionRepository)(nil)
	_ Verifier = (*chapa.Client)(nil)
)
