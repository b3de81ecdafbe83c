// Package http implements the receipt service HTTP API over a Store.
// It is the development backend the nfcescan client talks to.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"nfcescan/internal/core"
	"nfcescan/internal/log"
	"nfcescan/internal/middleware/security"
	"nfcescan/internal/middleware/trace"
	"nfcescan/internal/storage"
)

// Store is the persistence the API is served from.
type Store interface {
	Ping(ctx context.Context) error

	ListReceipts(ctx context.Context, f storage.ReceiptFilter) ([]core.Receipt, error)
	GetReceipt(ctx context.Context, id int64) (core.Receipt, error)
	ReceiptBySource(ctx context.Context, url string) (core.Receipt, bool, error)
	CreateReceipt(ctx context.Context, nr storage.NewReceipt) (core.Receipt, error)
	DeleteReceipt(ctx context.Context, id int64) error

	SearchProducts(ctx context.Context, term string, limit int) ([]core.Product, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	SetItemCategory(ctx context.Context, itemID, categoryID int64) (core.Category, error)
	RenameVendor(ctx context.Context, current, renamed string) (int, error)

	CategorySummary(ctx context.Context, rng core.DateRange) (core.CategorySummary, error)
	TopVendors(ctx context.Context, rng core.DateRange, limit int) (core.VendorSummary, error)
	Stats(ctx context.Context, rng core.DateRange) (core.Stats, error)
	ItemsByCategory(ctx context.Context, categoryID int64, rng core.DateRange, limit int) (core.Breakdown, error)
	ItemsByVendor(ctx context.Context, vendor string, rng core.DateRange, limit int) (core.Breakdown, error)
}

const (
	defaultQueryTimeout = 7 * time.Second
	maxBodyBytes        = 1 << 20
)

// Options tunes a Server. Zero values fall back to defaults.
type Options struct {
	Logger       *log.Logger
	QueryTimeout time.Duration
	// Now supplies the clock for default dashboard ranges.
	Now func() time.Time
}

type Server struct {
	http.Server
	store        Store
	logger       *log.Logger
	validate     *validator.Validate
	tracer       *trace.Middleware
	queryTimeout time.Duration
	now          func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, store Store, opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:        store,
		logger:       opts.Logger,
		validate:     newValidator(),
		queryTimeout: opts.QueryTimeout,
		now:          opts.Now,
	}
	if s.logger == nil {
		s.logger = log.Discard()
	}
	s.logger = s.logger.WithComponent(log.ComponentHTTP)
	if s.queryTimeout <= 0 {
		s.queryTimeout = defaultQueryTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /notas", s.handleListReceipts)
	mux.HandleFunc("GET /notas/{id}", s.handleGetReceipt)
	mux.HandleFunc("DELETE /notas/{id}", s.handleDeleteReceipt)
	mux.HandleFunc("POST /notas/manual", s.handleCreateManualReceipt)
	mux.HandleFunc("POST /scan/url", s.handleScanURL)

	mux.HandleFunc("GET /itens/busca", s.handleSearchProducts)
	mux.HandleFunc("GET /itens/categoria/{id}", s.handleItemsByCategory)
	mux.HandleFunc("GET /itens/fornecedor", s.handleItemsByVendor)
	mux.HandleFunc("PUT /item/{id}/categoria", s.handleSetItemCategory)
	mux.HandleFunc("PUT /estabelecimento/renomear", s.handleRenameVendor)

	mux.HandleFunc("GET /categorias", s.handleListCategories)
	mux.HandleFunc("POST /categorias", s.handleCreateCategory)

	mux.HandleFunc("GET /dashboard/resumo", s.handleDashboardSummary)
	mux.HandleFunc("GET /dashboard/estatisticas", s.handleDashboardStats)
	mux.HandleFunc("GET /dashboard/fornecedores", s.handleDashboardVendors)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Not Found").Write(w)
	})

	resolver := security.NewIPResolver()
	s.tracer = trace.NewMiddleware(resolver.ClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Handler = log.Middleware(s.logger)(s.tracer.Middleware(headers.Middleware(mux)))
	return s
}

// Metrics exposes the request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withTimeout bounds one handler's store calls.
func (s *Server) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.queryTimeout)
}

func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	h := core.Health{Status: "healthy", Modules: map[string]string{
		"database": "ok",
		"scraper":  "disabled",
	}}
	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Health check failed",
			log.FieldOperation, log.OpHealth,
			log.FieldError, err)
		h.Status = "unhealthy"
		h.Modules["database"] = "error"
		status = http.StatusServiceUnavailable
	}
	NewJSONResponse().Status(status).JSON(h).Write(w)
}
