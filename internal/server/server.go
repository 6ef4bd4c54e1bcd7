package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stopransomware/victimfeed/internal/database"
	"github.com/stopransomware/victimfeed/internal/mailer"
	"github.com/stopransomware/victimfeed/internal/notify"
	"github.com/stopransomware/victimfeed/internal/snapshot"
)

// Options configures the HTTP server.
type Options struct {
	Gateway     http.Handler
	SiteBaseURL string
	WindowHours int
	MaxAttempts int
	AdminToken  string
}

// Server is the public HTTP surface: snapshot views for the UI, the
// subscription lifecycle, the admin reset, and the proxied gateway.
type Server struct {
	db    *database.DB
	store *snapshot.Store
	mail  mailer.Mailer
	opts  Options
	mux   *http.ServeMux
}

// New creates a new Server.
func New(db *database.DB, store *snapshot.Store, mail mailer.Mailer, opts Options) *Server {
	if opts.WindowHours <= 0 {
		opts.WindowHours = 24
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	s := &Server{db: db, store: store, mail: mail, opts: opts, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	if s.opts.Gateway != nil {
		s.mux.Handle("/api/", http.StripPrefix("/api", s.opts.Gateway))
	}

	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())

	s.mux.HandleFunc("/victims", s.handleVictims)
	s.mux.HandleFunc("/victims/recent", s.handleRecentVictims)
	s.mux.HandleFunc("/groups", s.handleGroups)
	s.mux.HandleFunc("/refresh", s.handleRefresh)

	s.mux.HandleFunc("/subscribe", s.handleSubscribe)
	s.mux.HandleFunc("/unsubscribe", s.handleUnsubscribe)
	s.mux.HandleFunc("/admin/reset", s.handleAdminReset)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVictims(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot available yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"victims":  snap.AllVictims,
		"taken_at": snap.TakenAt,
		"errors":   snap.Errors,
	})
}

func (s *Server) handleRecentVictims(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot available yet")
		return
	}
	recent := s.store.FilterRecent(time.Duration(s.opts.WindowHours) * time.Hour)
	writeJSON(w, http.StatusOK, map[string]any{
		"victims":  recent,
		"taken_at": snap.TakenAt,
		"errors":   snap.Errors,
	})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot available yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"groups":   snap.Groups,
		"taken_at": snap.TakenAt,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap := s.store.Refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"taken_at": snap.TakenAt,
		"errors":   snap.Errors,
	})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload struct {
		Email     string   `json:"email"`
		Countries []string `json:"countries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sub, outcome, err := s.db.Subscribe(payload.Email, payload.Countries, s.opts.MaxAttempts)
	if errors.Is(err, database.ErrRateLimited) {
		writeError(w, http.StatusTooManyRequests, "too many subscription attempts, try again later")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if outcome == database.SubscribeCreated || outcome == database.SubscribeReactivated {
		subject, body := notify.ComposeWelcome(sub.Countries, notify.UnsubscribeURL(s.opts.SiteBaseURL, sub.UnsubscribeToken))
		if err := s.mail.Send(r.Context(), sub.Email, subject, body); err != nil {
			log.Printf("server: welcome mail to %s failed: %v", sub.Email, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": subscribeStatus(outcome),
		"email":  sub.Email,
	})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	outcome, err := s.db.Unsubscribe(token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch outcome {
	case database.UnsubscribeDone:
		writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
	case database.UnsubscribeAlreadyInactive:
		writeJSON(w, http.StatusOK, map[string]string{"status": "already unsubscribed"})
	default:
		writeError(w, http.StatusNotFound, "unknown token")
	}
}

func (s *Server) handleAdminReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.opts.AdminToken == "" {
		writeError(w, http.StatusForbidden, "admin interface disabled")
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token != s.opts.AdminToken {
		writeError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}

	if err := s.db.ResetAll(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func subscribeStatus(outcome database.SubscribeOutcome) string {
	switch outcome {
	case database.SubscribeCreated:
		return "subscribed"
	case database.SubscribeReactivated:
		return "reactivated"
	default:
		return "already subscribed"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Serve starts the HTTP server on the given port, shutting down
// gracefully when ctx is cancelled.
func Serve(ctx context.Context, srv *Server, port int) error {
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: srv.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	log.Printf("server listening on :%d", port)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
