// Package bridge exposes the web dashboard side of the extension over
// HTTP. The dashboard posts auth changes to /messages and polls /events
// for notifications pushed by the extension.
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/bookmark-cli/internal/auth"
	"github.com/sells-group/bookmark-cli/internal/channel"
	"github.com/sells-group/bookmark-cli/internal/clock"
	"github.com/sells-group/bookmark-cli/internal/popup"
)

// MsgReload is returned when the extension side is gone.
const MsgReload = "Extension was reloaded. Please refresh this page to reconnect."

const maxEvents = 256

// Credentials is the auth state the bridge reads and writes.
type Credentials interface {
	Credentials(ctx context.Context) (auth.Credentials, error)
	SetCredentials(ctx context.Context, c auth.Credentials) error
	Clear(ctx context.Context) error
}

// Popup is the scan control surface served under /popup.
type Popup interface {
	Start(ctx context.Context, tabURL string) error
	Stop(ctx context.Context) error
	View(ctx context.Context) (popup.View, error)
}

// Event is one notification for the dashboard.
type Event struct {
	Seq  int64     `json:"seq"`
	ID   string    `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
}

type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Server handles dashboard requests.
type Server struct {
	creds   Credentials
	alive   func() bool
	origins map[string]bool
	clock   clock.Clock
	popup   Popup

	mu     sync.Mutex
	seq    int64
	events []Event
}

// Option configures a Server.
type Option func(*Server)

// WithLiveness sets the check run before every message. A failing check
// answers 503.
func WithLiveness(alive func() bool) Option {
	return func(s *Server) { s.alive = alive }
}

// WithClock sets the clock used to stamp events.
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithPopup serves the popup controller under /popup.
func WithPopup(p Popup) Option {
	return func(s *Server) { s.popup = p }
}

// New creates a Server accepting messages from the given origins.
func New(creds Credentials, origins []string, opts ...Option) *Server {
	s := &Server{
		creds:   creds,
		alive:   func() bool { return true },
		origins: make(map[string]bool, len(origins)),
		clock:   clock.Real{},
	}
	for _, o := range origins {
		s.origins[o] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	allowed := make([]string, 0, len(s.origins))
	for o := range s.origins {
		allowed = append(allowed, o)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/state", s.handleState)
	r.Get("/events", s.handleEvents)
	r.Post("/messages", s.handleMessage)
	if s.popup != nil {
		r.Route("/popup", func(r chi.Router) {
			r.Get("/", s.handlePopupView)
			r.Post("/start", s.handlePopupStart)
			r.Post("/stop", s.handlePopupStop)
		})
	}
	return r
}

// Handler receives extension-side notifications addressed to the web
// page context and queues them for the dashboard. A finished scan asks
// the dashboard to refetch.
func (s *Server) Handler() channel.Handler {
	return func(_ context.Context, env channel.Envelope, _ *channel.Responder) channel.Result {
		switch env.Msg.(type) {
		case channel.Refetch, channel.ExtensionLogout:
			s.Push(env.Msg.Action())
			return channel.Reply(channel.Ack{OK: true})
		case channel.ScanComplete:
			s.Push(channel.ActionRefetch)
			return channel.Reply(channel.Ack{OK: true})
		default:
			return channel.Reply(channel.Ack{OK: false})
		}
	}
}

// Push queues an event of the given type and returns it.
func (s *Server) Push(typ string) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ev := Event{Seq: s.seq, ID: uuid.NewString(), Type: typ, At: s.clock.Now().UTC()}
	s.events = append(s.events, ev)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	return ev
}

// Since returns queued events with a sequence number above seq.
func (s *Server) Since(seq int64) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Event{}
	for _, ev := range s.events {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

func (s *Server) allowed(w http.ResponseWriter, r *http.Request) bool {
	if !s.origins[r.Header.Get("Origin")] {
		writeError(w, http.StatusForbidden, "origin not allowed")
		return false
	}
	return true
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if !s.allowed(w, r) {
		return
	}
	if !s.alive() {
		zap.L().Warn("bridge: extension context invalidated", zap.String("origin", r.Header.Get("Origin")))
		writeError(w, http.StatusServiceUnavailable, MsgReload)
		return
	}

	var req message
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := channel.Decode(req.Type, req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	switch m := msg.(type) {
	case channel.BridgeAuth:
		if m.Token == "" || m.UserEmail == "" {
			writeError(w, http.StatusBadRequest, "token and userEmail are required")
			return
		}
		err = s.creds.SetCredentials(ctx, auth.Credentials{
			Token:             m.Token,
			UserEmail:         m.UserEmail,
			ProfilePictureURL: m.ProfilePictureURL,
		})
		if err == nil {
			zap.L().Info("bridge: auth synced", zap.String("email", m.UserEmail))
		}
	case channel.BridgeLogout:
		err = s.creds.Clear(ctx)
		if err == nil {
			zap.L().Info("bridge: logged out")
		}
	default:
		writeError(w, http.StatusBadRequest, "unsupported message type "+req.Type)
		return
	}
	if err != nil {
		zap.L().Error("bridge: update credentials", zap.String("type", req.Type), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, channel.Ack{OK: true})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": s.Since(since)})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	creds, err := s.creds.Credentials(r.Context())
	if err != nil {
		zap.L().Error("bridge: read credentials", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": creds.Authenticated(),
		"userEmail":     creds.UserEmail,
	})
}

func (s *Server) handlePopupView(w http.ResponseWriter, r *http.Request) {
	v, err := s.popup.View(r.Context())
	if err != nil {
		zap.L().Error("bridge: popup view", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePopupStart(w http.ResponseWriter, r *http.Request) {
	if !s.allowed(w, r) {
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status := http.StatusAccepted
	if err := s.popup.Start(r.Context(), req.URL); err != nil {
		status = http.StatusConflict
	}
	s.writePopup(w, r, status)
}

func (s *Server) handlePopupStop(w http.ResponseWriter, r *http.Request) {
	if !s.allowed(w, r) {
		return
	}
	status := http.StatusOK
	if err := s.popup.Stop(r.Context()); err != nil {
		zap.L().Warn("bridge: popup stop", zap.Error(err))
		status = http.StatusServiceUnavailable
	}
	s.writePopup(w, r, status)
}

func (s *Server) writePopup(w http.ResponseWriter, r *http.Request, status int) {
	v, err := s.popup.View(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, status, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
