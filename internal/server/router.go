package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/usexrp/agentwallet/internal/config"
	"github.com/usexrp/agentwallet/internal/handler"
	"github.com/usexrp/agentwallet/internal/middleware"
	"github.com/usexrp/agentwallet/internal/service"
)

const writeMargin = 15 * time.Second

type Deps struct {
	Config *config.Config
	Wallet *service.WalletService
	// Audit is optional.
	Audit middleware.AuditSink
}

// NewRouter wires the public routes (/health, /metrics) and the
// token-protected wallet routes.
func NewRouter(deps Deps) *gin.Engine {
	cfg := deps.Config

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.MetricsMiddleware())

	h := handler.NewWalletHandler(deps.Wallet)

	r.GET("/health", h.Health)
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	chain := []gin.HandlerFunc{}
	if deps.Audit != nil {
		chain = append(chain, middleware.AuditMiddleware(deps.Audit))
	}
	chain = append(chain,
		middleware.ErrorHandler(),
		middleware.RateLimitMiddleware(middleware.NewLimiter(cfg.API.RateLimitQPS, cfg.API.RateLimitBurst)),
		middleware.AuthMiddleware(cfg.API.Token),
		middleware.ReadOnlyMiddleware(cfg.API.ReadOnly),
	)

	api := r.Group("/", chain...)
	{
		api.GET("/address", h.Address)
		api.GET("/balance", h.Balance)
		api.POST("/pay", h.Pay)
	}

	return r
}

// NewHTTPServer keeps WriteTimeout past the longest a payment may take, so a
// slow ledger still gets its error response written.
func NewHTTPServer(cfg *config.Config, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.API.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Ledger.PayTimeout() + writeMargin,
		IdleTimeout:       60 * time.Second,
	}
}
