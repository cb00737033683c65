// Package web exposes the HTTP surface of the bot: the Chapa checkout
// confirmation endpoint, the health probe, and Prometheus metrics.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"tg_chapa_bot/internal/logging"
	"tg_chapa_bot/internal/messages"
)

const (
	readHeaderTimeout = 2 * time.Second
	listenPrefix      = ":"

	// VerificationPath is the path Chapa redirects buyers to after checkout.
	VerificationPath = "/chapa_payment_verification"
)

// Dependencies are the collaborators the routes call. Verifier and Notifier
// are required; Journal and Mongo are optional.
type Dependencies struct {
	Verifier Verifier
	Notifier Notifier
	Journal  Journal
	Mongo    MongoChecker
	Texts    *messages.Table
}

// Server hosts the HTTP routes and owns the underlying HTTP server.
type Server struct {
	server   *http.Server
	logger   *logrus.Entry
	verifier Verifier
	notifier Notifier
	journal  Journal
	mongo    MongoChecker
	texts    *messages.Table
}

// NewServer constructs a server listening on the provided port.
func NewServer(port int, deps Dependencies, logger *logrus.Entry) (*Server, error) {
	if deps.Verifier == nil {
		return nil, errors.New("web server requires a verifier")
	}
	if deps.Notifier == nil {
		return nil, errors.New("web server requires a notifier")
	}
	if logger == nil {
		logger = logging.Logger()
	}
	if deps.Texts == nil {
		texts, err := messages.Default()
		if err != nil {
			return nil, fmt.Errorf("load string table: %w", err)
		}
		deps.Texts = texts
	}

	srv := &Server{
		logger:   logger,
		verifier: deps.Verifier,
		notifier: deps.Notifier,
		journal:  deps.Journal,
		mongo:    deps.Mongo,
		texts:    deps.Texts,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("%s%d", listenPrefix, port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get(VerificationPath, s.handleVerification)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "web_listen",
		"addr":  s.server.Addr,
	}).Info("starting web server")

	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("event", "web_stopped").Info("web server stopped")
			return nil
		}

		return fmt.Errorf("web server listen: %w", err)
	}

	s.logger.WithField("event", "web_stopped").Info("web server stopped")
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}
