package api

import (
	"net/http"
	"time"

	"langtest-practice/internal/domain/ports/repository"
	"langtest-practice/internal/infra/metrics"
	"langtest-practice/internal/usecase"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Options carries the HTTP knobs from config.
type Options struct {
	AllowedOrigin  string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	LoginPerMinute int
	Limiter        repository.RateLimiter // optional
}

// Server exposes the account, task and payment use cases over JSON.
type Server struct {
	accounts usecase.AccountUseCase
	tasks    usecase.TaskUseCase
	billing  usecase.BillingUseCase
	auth     *AuthManager
	opts     Options
	log      *zerolog.Logger
}

func NewServer(
	accounts usecase.AccountUseCase,
	tasks usecase.TaskUseCase,
	billing usecase.BillingUseCase,
	auth *AuthManager,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	return &Server{accounts: accounts, tasks: tasks, billing: billing, auth: auth, opts: opts, log: logger}
}

// Handler returns the full router wrapped in the common middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	s.RegisterRoutes(r)
	return Chain(r,
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		CORS(s.opts.AllowedOrigin),
		Timeout(s.opts.RequestTimeout),
		BodyLimit(s.opts.MaxBodyBytes),
	)
}

// RegisterRoutes attaches all API routes to r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.OptionalAuth)

		r.Route("/auth", func(r chi.Router) {
			r.With(RateLimit(s.opts.Limiter, "register", s.opts.LoginPerMinute, s.log)).Post("/register", s.handleRegister)
			r.With(RateLimit(s.opts.Limiter, "login", s.opts.LoginPerMinute, s.log)).Post("/login", s.handleLogin)
			r.Get("/me", s.handleMe)
			r.Put("/profile", s.handleUpdateProfile)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/available", s.handleAvailable)
			r.Post("/generate", s.handleGenerate)
			r.Post("/evaluate/writing", s.handleEvaluateWriting)
			r.Post("/evaluate/speaking", s.handleEvaluateSpeaking)
			r.Get("/{type}", s.handleGetTask)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/plans", s.handlePlans)
			r.Post("/create-checkout", s.handleCreateCheckout)
			r.Get("/verify/{sessionID}", s.handleVerify)
			r.Get("/portal", s.handlePortal)
			r.Get("/history", s.handleHistory)
			r.Post("/webhook", s.handleWebhook)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
