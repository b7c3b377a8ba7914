package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mall-dashboard/internal/dashboard"
	"mall-dashboard/internal/handlers"
)

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

// Deps are the pieces the routes are served from.
type Deps struct {
	Store    handlers.PurchaseStore
	Sessions *dashboard.Sessions
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
	// StaticDir holds product images; empty leaves /static/ out.
	StaticDir string
}

func NewServer(deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(deps.Store, logger),
		sseHandlers: handlers.NewSSEHandlers(deps.Sessions, logger),
	}
	s.setupRoutes(deps)
	return s
}

func (s *Server) setupRoutes(deps Deps) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", s.sseHandlers.HandleDashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	if deps.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	if deps.StaticDir != "" {
		s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(deps.StaticDir))))
	}

	// REST API endpoints
	s.mux.HandleFunc("GET /api/customers", s.apiHandlers.HandleCustomers)
	s.mux.HandleFunc("GET /api/customers/{id}/purchases", s.apiHandlers.HandleCustomerPurchases)
	s.mux.HandleFunc("GET /api/purchase-frequency", s.apiHandlers.HandlePurchaseFrequency)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/dashboard", s.sseHandlers.HandleStream)
	s.mux.HandleFunc("POST /sse/navigate", s.sseHandlers.HandleNavigate)
	s.mux.HandleFunc("POST /sse/customers/search", s.sseHandlers.HandleSearch)
	s.mux.HandleFunc("POST /sse/customers/sort", s.sseHandlers.HandleSort)
	s.mux.HandleFunc("POST /sse/customers/page", s.sseHandlers.HandlePage)
	s.mux.HandleFunc("POST /sse/customers/detail", s.sseHandlers.HandleOpenDetail)
	s.mux.HandleFunc("POST /sse/customers/detail/close", s.sseHandlers.HandleCloseDetail)
	s.mux.HandleFunc("POST /sse/purchases/range", s.sseHandlers.HandleRange)
	s.mux.HandleFunc("POST /sse/purchases/range/reset", s.sseHandlers.HandleResetRange)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
