package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"banner-text-advisor/internal/history"
	"banner-text-advisor/internal/logging"
	"banner-text-advisor/internal/session"
	"banner-text-advisor/internal/suggestion"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	cookieName    = "bta_session"
	maxFormMemory = 8 << 20
)

type Options struct {
	Store   session.Store
	History history.Recorder
	// NewModel builds a model client for an API key.
	NewModel      ModelFactory
	DefaultAPIKey string
	Interpreter   *suggestion.Interpreter
	Structured    bool

	MaxUploadBytes int64
	RequestTimeout time.Duration
	SecureCookie   bool
	Logger         *slog.Logger
}

// Server serves the form page and the JSON API.
type Server struct {
	store          session.Store
	history        history.Recorder
	advisors       *advisorCache
	maxUploadBytes int64
	requestTimeout time.Duration
	secureCookie   bool
	tmpl           *template.Template
	logger         *slog.Logger
	router         *mux.Router
}

func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("web: session store is required")
	}
	if opts.NewModel == nil {
		return nil, errors.New("web: model factory is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	rec := opts.History
	if rec == nil {
		rec = history.Nop{}
	}

	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 25 << 20
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	tmpl, err := template.New("pages").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:   opts.Store,
		history: rec,
		advisors: newAdvisorCache(advisorCacheOptions{
			newModel:      opts.NewModel,
			defaultAPIKey: opts.DefaultAPIKey,
			interpreter:   opts.Interpreter,
			structured:    opts.Structured,
			logger:        logger,
		}),
		maxUploadBytes: maxUpload,
		requestTimeout: timeout,
		secureCookie:   opts.SecureCookie,
		tmpl:           tmpl,
		logger:         logger,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/key", s.handleKey).Methods(http.MethodPost)
	r.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/placement", s.handlePlacement).Methods(http.MethodPost)
	r.HandleFunc("/variants/{kind}", s.handleVariants).Methods(http.MethodPost)
	r.HandleFunc("/clear", s.handleClear).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/analyze", s.handleAPIAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/variants", s.handleAPIVariants).Methods(http.MethodPost)

	return r
}

// Handler returns the router wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return withLogging(s.router, s.logger)
}

// Forget drops cached advisors of sessions the store no longer holds.
func (s *Server) Forget(ctx context.Context) int {
	return s.advisors.prune(func(id string) bool {
		_, ok, err := s.store.Get(ctx, id)
		return err == nil && ok
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionID returns the caller's session id, issuing a cookie when the
// request carries none.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := session.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (s *Server) loadState(ctx context.Context, id string) session.State {
	st, err := session.Load(ctx, s.store, id)
	if err != nil {
		s.logger.Error("load session failed", "session", id, "err", err)
		return session.State{ID: id}
	}
	return st
}

func (s *Server) saveState(ctx context.Context, st session.State) {
	if err := s.store.Save(ctx, st); err != nil {
		s.logger.Error("save session failed", "session", st.ID, "err", err)
	}
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"dur_ms", time.Since(start).Milliseconds(),
		)
	})
}
