package http

import (
	"context"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"finmgr/internal/apiclient"
	"finmgr/internal/cache"
	"finmgr/internal/core"
	"finmgr/internal/log"
	"finmgr/internal/middleware/ratelimit"
	"finmgr/internal/middleware/security"
	"finmgr/internal/middleware/trace"
	"finmgr/internal/services"
	"finmgr/internal/session"
	appweb "finmgr/web"
)

const (
	budgetsTTL     = time.Minute
	clientNamesTTL = 5 * time.Minute
)

// Options carries the server's collaborators. API and Sessions are required.
type Options struct {
	API      *apiclient.Client
	Sessions session.Store
	Invoices *services.InvoiceService

	// Per-session caches. Nil values get a private default.
	Budgets     cache.Cache[[]core.Budget]
	ClientNames cache.Cache[[]string]

	CookieSecure   bool
	SessionTTL     time.Duration
	LoginRateLimit int

	Logger *log.Logger
	// Now is the clock used for form defaults and PDF previews.
	Now func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	api       *apiclient.Client
	sessions  session.Store
	invoices  *services.InvoiceService

	budgets     cache.Cache[[]core.Budget]
	clientNames cache.Cache[[]string]

	cookieSecure bool
	sessionTTL   time.Duration
	now          func() time.Time

	logger   *log.Logger
	events   *log.StructuredLogger
	detector *security.Detector
	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter

	// One wizard submit per session at a time.
	submits singleflight.Group

	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Budgets == nil {
		opts.Budgets = cache.NewLRUCache[[]core.Budget](500, budgetsTTL)
	}
	if opts.ClientNames == nil {
		opts.ClientNames = cache.NewLRUCache[[]string](500, clientNamesTTL)
	}
	if opts.Invoices == nil {
		opts.Invoices = services.NewInvoiceService(nil, opts.ClientNames, logger)
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	limit := ratelimit.DefaultConfig()
	if opts.LoginRateLimit > 0 {
		limit.Requests = opts.LoginRateLimit
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		api:          opts.API,
		sessions:     opts.Sessions,
		invoices:     opts.Invoices,
		budgets:      opts.Budgets,
		clientNames:  opts.ClientNames,
		cookieSecure: opts.CookieSecure,
		sessionTTL:   opts.SessionTTL,
		now:          opts.Now,
		logger:       logger,
		events:       log.NewStructuredLogger(logger),
		detector:     security.NewDetector(),
		limiter:      ratelimit.NewLimiter(limit),
		startedAt:    time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", log.FieldError, err, log.FieldComponent, log.ComponentTemplate)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	s.routes(mux)
	s.Handler = s.chain(mux)
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	loginLimit := s.limiter.Middleware(s.detector.ExtractClientIP, s.loginRateLimited)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.Handle("POST /login", loginLimit(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("POST /logout", s.handleLogout)

	auth := func(h http.HandlerFunc) http.Handler {
		return security.NoStore(s.requireSession(h))
	}
	mux.Handle("GET /{$}", auth(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
	}))

	mux.Handle("GET "+dashboardPath, auth(s.handleDashboard))

	mux.Handle("GET /financial-manager/budgets", auth(s.handleBudgets))
	mux.Handle("POST /financial-manager/budgets", auth(s.handleCreateBudget))
	mux.Handle("POST /financial-manager/budgets/{id}", auth(s.handleUpdateBudget))
	mux.Handle("POST /financial-manager/budgets/{id}/delete", auth(s.handleDeleteBudget))

	mux.Handle("GET /financial-manager/transactions", auth(s.handleTransactions))
	mux.Handle("POST /financial-manager/transactions", auth(s.handleCreateTransaction))
	mux.Handle("POST /financial-manager/transactions/{id}/delete", auth(s.handleDeleteTransaction))

	mux.Handle("GET /financial-manager/invoices", auth(s.handleInvoices))
	mux.Handle("POST /financial-manager/invoices/{id}/delete", auth(s.handleDeleteInvoice))
	mux.Handle("GET /financial-manager/invoices/{id}/pdf", auth(s.handleInvoicePDF))
	mux.Handle("GET "+wizardPath, auth(s.handleWizard))
	mux.Handle("POST "+wizardPath, auth(s.handleWizardAction))
	mux.Handle("GET "+wizardPath+"/preview.pdf", auth(s.handleWizardPreview))

	mux.Handle("GET /financial-manager/documents", auth(s.handleDocuments))
	mux.Handle("POST /financial-manager/documents", auth(s.handleUploadDocument))
	mux.Handle("POST /financial-manager/documents/{id}/delete", auth(s.handleDeleteDocument))

	mux.Handle("GET /financial-manager/profile", auth(s.handleProfile))
	mux.Handle("POST /financial-manager/profile", auth(s.handleUpdateProfile))

	mux.Handle("GET /financial-manager/reports/weekly", auth(s.handleWeeklyReport))
}

// chain wraps the mux, outermost first: logger in context, request ids,
// request id on the logger, security headers, suspicious request detection.
func (s *Server) chain(h http.Handler) http.Handler {
	h = s.detector.Middleware(s.logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(h)
	h = s.tracer.Middleware(h)
	return log.Middleware(s.logger)(h)
}

func (s *Server) loginRateLimited(w http.ResponseWriter, r *http.Request) {
	msg := "Too many login attempts. Please wait a minute and try again."
	if isHTMX(r) {
		ErrorResponse(http.StatusTooManyRequests, msg).Write(w)
		return
	}
	w.WriteHeader(http.StatusTooManyRequests)
	s.render(w, r, "login.html", page{Title: "Login", Error: msg})
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.sessions.Ping(ctx); err != nil {
		checks["sessions"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["sessions"] = "ok"
	}

	checks["cache"] = map[string]any{
		"budget_entries":      s.budgets.Size(),
		"client_name_entries": s.clientNames.Size(),
	}
	checks["security"] = map[string]any{
		"rate_limited_clients": s.limiter.ActiveClients(),
		"suspicious_requests":  s.detector.SuspiciousRequests(),
		"requests_total":       s.tracer.TotalRequests(),
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
