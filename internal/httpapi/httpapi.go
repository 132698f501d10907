package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"kasirinaja/backoffice/internal/domain"
	"kasirinaja/backoffice/internal/logger"
	"kasirinaja/backoffice/internal/metrics"
	"kasirinaja/backoffice/internal/service"
	"kasirinaja/backoffice/internal/session"
	"kasirinaja/backoffice/internal/store"
)

type Options struct {
	AllowedOrigin string
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
	Sessions      *session.Manager
	SecureCookies bool
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	log           *logger.Logger
	metrics       *metrics.Metrics
	sessions      *session.Manager
	views         map[string]*template.Template
	allowedOrigin string
	secureCookies bool
	loginLimiter  func(http.Handler) http.Handler
	pinLimiter    func(http.Handler) http.Handler
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewManager(session.NewMemoryStore(), auth.TokenTTL())
	}

	a := &API{
		service:       svc,
		auth:          auth,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		sessions:      opts.Sessions,
		views:         mustParseViews(),
		allowedOrigin: opts.AllowedOrigin,
		secureCookies: opts.SecureCookies,
		csrfSecret:    csrfSecret,
	}
	// Limiters are built once so their counters survive across Handler calls.
	a.loginLimiter = httprate.Limit(5, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		}),
	)
	a.pinLimiter = httprate.Limit(8, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "too many manager pin attempts", http.StatusTooManyRequests)
		}),
	)
	return a
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID(a.log))
	r.Use(logging(a.log))
	r.Use(recoverer(a.log))
	r.Use(a.observe)
	r.Use(a.securityHeaders)
	r.Use(a.csrf)

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	// Server-rendered back office.
	r.Group(func(pr chi.Router) {
		pr.Use(a.loadSession)

		pr.Get("/login", a.handleLoginPage)
		pr.With(a.loginLimiter).Post("/login", a.handleLoginSubmit)
		pr.Post("/logout", a.handleLogout)

		pr.Group(func(ar chi.Router) {
			ar.Use(a.requireLogin)

			ar.Get("/", a.page(a.handleHome))
			ar.Get("/shifts", a.page(a.handleShiftIndex))
			ar.Get("/shifts/export", a.page(a.handleShiftExport))
			ar.Get("/shifts/clock-in", a.page(a.handleClockInPage))
			ar.Post("/shifts/clock-in", a.page(a.handleClockIn))
			ar.Get("/shifts/clock-out", a.page(a.handleClockOutPage))
			ar.Post("/shifts/clock-out/{shiftID}", a.page(a.handleClockOut))
			ar.Post("/shifts/{shiftID}/suspend", a.page(a.handleSuspendShift))
			ar.With(a.pinLimiter).Post("/shifts/{shiftID}/clear-suspension", a.page(a.handleClearSuspension))

			ar.Get("/products/{productID}", a.page(a.handleProductShow))
			ar.Post("/products/{productID}/inventory/{action}", a.page(a.handleInventoryMovement))
		})
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{a.allowedOrigin},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))

		api.With(a.loginLimiter).Post("/auth/login", a.handleLogin)

		api.Group(func(pr chi.Router) {
			pr.Use(a.requireAuth)

			pr.Get("/auth/csrf-token", a.handleCSRFToken)
			pr.Get("/shifts/current", a.handleCurrentShift)
			pr.Get("/sales/{saleID}/totals", a.handleSaleTotals)
			pr.Get("/products/{productID}/stock", a.handleProductStock)
			pr.Get("/audit-logs", a.handleAuditLogs)
			pr.With(requireRole(domain.RoleAdmin)).Get("/users/cashiers", a.handleListCashiers)
			pr.With(requireRole(domain.RoleAdmin)).Post("/users/cashiers", a.handleCreateCashier)
		})
	})

	return r
}

// statusForError maps service and store errors onto HTTP statuses.
func statusForError(err error) int {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrNotClockedIn):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidInput), errors.Is(err, service.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrShiftSuspended), errors.Is(err, store.ErrShiftAlreadyOpen),
		errors.Is(err, store.ErrShiftClosed), errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, service.ErrAdminRequired), errors.Is(err, service.ErrInvalidManagerPIN):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return validateStruct(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= 500 {
		a.log.Error(r.Context(), "request.failed", err)
	}
	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; 4xx messages are meant for the caller.
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
