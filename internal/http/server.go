package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"fanliga/internal/aggregate"
	"fanliga/internal/cache"
	"fanliga/internal/core"
	"fanliga/internal/gateway"
	applog "fanliga/internal/log"
	"fanliga/internal/metrics"
	"fanliga/internal/middleware/ratelimit"
	"fanliga/internal/middleware/security"
	"fanliga/internal/middleware/trace"
	"fanliga/internal/session"
	"fanliga/internal/views"
	appweb "fanliga/web"
)

// Writer is the write surface the admin handlers need.
type Writer interface {
	gateway.PenaltyWriter
	gateway.ParticipantWriter
}

// Options wires the server's collaborators. Views, Writer and Sessions are
// required; the rest have defaults.
type Options struct {
	Addr     string
	Views    *views.Service
	Rules    *views.Rules
	Writer   Writer
	Sessions *session.Store
	Metrics  *metrics.Manager
	// Ready reports whether the backend answers; nil means always ready.
	Ready          func(ctx context.Context) error
	Logger         *applog.Logger
	RateLimit      ratelimit.Config
	TrustedProxies []string
	CacheCleanup   time.Duration
}

type Server struct {
	http.Server
	templates *template.Template
	views     *views.Service
	rules     *views.Rules
	writer    Writer
	sessions  *session.Store
	metrics   *metrics.Manager
	ready     func(ctx context.Context) error
	logger    *applog.Logger

	caches   *cache.Manager
	limiter  *ratelimit.Limiter
	detector *security.Detector
	started  time.Time
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and configures routes, returning
// a ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	if opts.Views == nil || opts.Writer == nil || opts.Sessions == nil {
		return nil, errors.New("http server: views, writer and sessions are required")
	}
	if opts.Rules == nil {
		opts.Rules = views.NewRules(views.StaticRules(appweb.DefaultRules), time.Hour)
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.CacheCleanup <= 0 {
		opts.CacheCleanup = 10 * time.Minute
	}

	t, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		templates: t,
		views:     opts.Views,
		rules:     opts.Rules,
		writer:    opts.Writer,
		sessions:  opts.Sessions,
		metrics:   opts.Metrics,
		ready:     opts.Ready,
		logger:    opts.Logger.WithComponent(applog.ComponentHTTP),
		caches:    cache.NewManager(),
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
		detector:  security.NewDetector(),
		started:   time.Now(),
		now:       time.Now,
	}

	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s.caches.Register("sessions", opts.Sessions.Cache())
	s.caches.Register("rules", opts.Rules.Cache())
	s.caches.StartCleanup(opts.CacheCleanup)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           headers.Middleware(s.detector.Middleware(s.routes())),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func parseTemplates() (*template.Template, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

type sortLink struct {
	Query aggregate.LedgerQuery
	Key   aggregate.SortKey
	Label string
}

type matchdayPicker struct {
	Action    string
	Matchdays []int
	Current   int
}

var templateFuncs = template.FuncMap{
	"amount": core.FormatAmount,
	"coord":  func(f float64) string { return strconv.FormatFloat(f, 'f', 1, 64) },
	"sortLink": func(q aggregate.LedgerQuery, key, label string) sortLink {
		return sortLink{Query: q, Key: aggregate.SortKey(key), Label: label}
	},
	"picker": func(action string, matchdays []int, current int) matchdayPicker {
		return matchdayPicker{Action: action, Matchdays: matchdays, Current: current}
	},
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	var observe trace.Observer
	if s.metrics != nil {
		observe = s.metrics.ObserveHTTP
	}
	tracer := trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, observe)
	r.Use(tracer.Middleware)
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, nil))
	r.Use(s.withSession)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.PathPrefix("/static/").Handler(security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	r.HandleFunc("/ledger", s.handleLedger).Methods(http.MethodGet)
	r.HandleFunc("/ui/ledger", s.handleLedgerPartial).Methods(http.MethodGet)
	r.HandleFunc("/participants", s.handleParticipants).Methods(http.MethodGet)
	r.HandleFunc("/participants/{id}", s.handleParticipant).Methods(http.MethodGet)
	r.HandleFunc("/standings", s.handleStandings).Methods(http.MethodGet)
	r.HandleFunc("/comparison", s.handleComparison).Methods(http.MethodGet)
	r.HandleFunc("/rules", s.handleRules).Methods(http.MethodGet)

	r.HandleFunc("/login", s.handleLoginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(applog.ComponentMiddleware("admin"), s.requireAdmin)
	admin.HandleFunc("/penalties", s.handleCreatePenalty).Methods(http.MethodPost)
	admin.HandleFunc("/penalties/{id}", s.handleUpdatePenalty).Methods(http.MethodPost)
	admin.HandleFunc("/penalties/{id}/delete", s.handleDeletePenalty).Methods(http.MethodPost, http.MethodDelete)
	admin.HandleFunc("/participants/{id}", s.handleUpdateParticipant).Methods(http.MethodPost)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError("GET, POST").Write(w)
	})
	return r
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
