// Package http exposes the obligation engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"obligations/internal/attachments"
	"obligations/internal/core"
	"obligations/internal/log"
	"obligations/internal/middleware/ratelimit"
	"obligations/internal/middleware/security"
	"obligations/internal/middleware/trace"
	"obligations/internal/services"
	"obligations/internal/storage"
)

// Engine is the part of services.Engine the API drives.
type Engine interface {
	ListTemplates(ctx context.Context, f core.TemplateFilter) ([]core.Template, error)
	GetTemplate(ctx context.Context, id string) (core.Template, error)
	CreateTemplate(ctx context.Context, t core.Template) (core.Template, error)
	UpdateTemplate(ctx context.Context, id string, patch core.TemplatePatch) (core.Template, error)
	DeleteTemplate(ctx context.Context, id string) error

	ListOccurrences(ctx context.Context, q services.OccurrenceQuery) ([]core.Occurrence, error)
	GetOccurrence(ctx context.Context, id string) (core.Occurrence, error)
	GenerateOccurrence(ctx context.Context, templateID string, month *core.Month) (core.Occurrence, error)
	BeginDocumentation(ctx context.Context, occurrenceID string) (string, error)
	RefreshAttachments(ctx context.Context, occurrenceID string) (core.DocumentationEvent, error)
	MarkAsPaid(ctx context.Context, occurrenceID string, actual *decimal.Decimal) (core.Occurrence, error)
	ReconcileAmount(ctx context.Context, occurrenceID string, actual decimal.Decimal) (core.Occurrence, error)
	ComputeSummary(ctx context.Context, q services.OccurrenceQuery) (core.Summary, error)

	GetLedgerEntry(ctx context.Context, id string) (core.LedgerEntry, error)
	Now() time.Time
}

// ReadyCheck reports whether a dependency can serve requests.
type ReadyCheck func(ctx context.Context) error

// Options wires the optional parts of the API. Routes whose collaborator is
// nil are not registered.
type Options struct {
	Logger *log.Logger
	// Attachments records documents against ledger entries.
	Attachments attachments.Store
	// Directory upserts categories, projects and suppliers.
	Directory storage.DirectoryWriter
	// RateLimitPerMinute caps requests per client IP; 0 disables the limiter.
	RateLimitPerMinute int
	// ReadyChecks are run by /readyz next to the store probe.
	ReadyChecks map[string]ReadyCheck
}

type Server struct {
	http.Server
	engine      Engine
	attachments attachments.Store
	directory   storage.DirectoryWriter
	readyChecks map[string]ReadyCheck

	clientIP *security.ClientIP
	trace    *trace.Middleware
	limiter  *ratelimit.Limiter
	started  time.Time

	shutdownOnce sync.Once
}

func NewServer(addr string, engine Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		engine:      engine,
		attachments: opts.Attachments,
		directory:   opts.Directory,
		readyChecks: opts.ReadyChecks,
		clientIP:    security.NewClientIP(),
		started:     time.Now(),
	}
	s.trace = trace.NewMiddleware(s.clientIP.Extract)
	s.routes(mux)

	var handler http.Handler = mux
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
		handler = s.limiter.Middleware(s.clientIP.Extract, func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, retry later").Write(w)
		})(handler)
	}
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.trace.Middleware(handler)
	s.Handler = log.Middleware(logger)(handler)

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/v1/templates", s.handleListTemplates)
	mux.HandleFunc("POST /api/v1/templates", s.handleCreateTemplate)
	mux.HandleFunc("GET /api/v1/templates/{id}", s.handleGetTemplate)
	mux.HandleFunc("PATCH /api/v1/templates/{id}", s.handleUpdateTemplate)
	mux.HandleFunc("DELETE /api/v1/templates/{id}", s.handleDeleteTemplate)
	mux.HandleFunc("POST /api/v1/templates/{id}/occurrences", s.handleGenerateOccurrence)

	mux.HandleFunc("GET /api/v1/occurrences", s.handleListOccurrences)
	mux.HandleFunc("GET /api/v1/occurrences/{id}", s.handleGetOccurrence)
	mux.HandleFunc("POST /api/v1/occurrences/{id}/documentation", s.handleBeginDocumentation)
	mux.HandleFunc("POST /api/v1/occurrences/{id}/attachments/refresh", s.handleRefreshAttachments)
	mux.HandleFunc("POST /api/v1/occurrences/{id}/pay", s.handleMarkAsPaid)
	mux.HandleFunc("POST /api/v1/occurrences/{id}/reconcile", s.handleReconcile)
	mux.HandleFunc("GET /api/v1/summary", s.handleSummary)

	mux.HandleFunc("GET /api/v1/ledger/{id}", s.handleGetLedgerEntry)
	if s.attachments != nil {
		mux.HandleFunc("POST /api/v1/ledger/{id}/attachments", s.handleAddAttachment)
		mux.HandleFunc("DELETE /api/v1/ledger/{id}/attachments/{attachmentId}", s.handleRemoveAttachment)
	}

	if s.directory != nil {
		mux.HandleFunc("PUT /api/v1/directory/{kind}/{id}", s.handleSaveDirectoryEntry)
	}
}

// Metrics returns the request counters gathered by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.trace.GetMetrics()
}

// Shutdown stops background work and then the HTTP server. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
