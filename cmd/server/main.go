package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/usexrp/agentwallet/internal/config"
	"github.com/usexrp/agentwallet/internal/ledger"
	"github.com/usexrp/agentwallet/internal/middleware"
	"github.com/usexrp/agentwallet/internal/pkg/logger"
	"github.com/usexrp/agentwallet/internal/repository"
	"github.com/usexrp/agentwallet/internal/secrets"
	"github.com/usexrp/agentwallet/internal/server"
	"github.com/usexrp/agentwallet/internal/service"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	gin.SetMode(gin.ReleaseMode)

	if cfg.API.UsesDefaultToken() {
		logger.Warn("using the development API token; set WALLET_API_TOKEN before holding real funds")
	}

	// 2. Secret store
	store := secrets.NewFileStore(cfg.Secrets.Path, secrets.NewKeyringProtector(cfg.Secrets.KeyringService))
	logger.Info("secret store ready", "path", store.Path(), "encrypted", store.Encrypted())

	// 3. Persistence (Redis > Memory)
	var riskRepo service.UsageRepo
	var auditRepo service.AuditRepo
	var redisClient *repository.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient, err = repository.NewRedisClient(cfg.Redis)
		if err == nil {
			logger.Info("connected to redis", "addr", cfg.Redis.Addr)
			riskRepo = repository.NewRedisUsageRepo(redisClient)
			auditRepo = repository.NewRedisAuditRepo(redisClient, cfg.Redis.AuditListKey, cfg.Redis.AuditListMax)
		} else {
			logger.Error("failed to connect to redis, falling back to memory", "error", err)
		}
	}
	if riskRepo == nil {
		riskRepo = service.NewRiskUsageStore()
	}

	auditSvc, err := service.NewAuditService(cfg.Audit.Dir, auditRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}

	// 4. Core services
	dialer := &ledger.WSDialer{
		URL:             cfg.Ledger.URL,
		DialTimeout:     cfg.Ledger.DialTimeout(),
		RequestTimeout:  cfg.Ledger.RequestTimeout(),
		FinalityTimeout: cfg.Ledger.FinalityTimeout(),
		PollInterval:    cfg.Ledger.PollInterval(),
		LedgerOffset:    cfg.Ledger.LastLedgerOffset,
		MaxFeeDrops:     cfg.Ledger.MaxFeeDrops,
	}
	wallet := service.NewWalletService(
		service.NewStoreKeySource(store),
		dialer,
		service.NewStaticPrice(cfg.Pricing.USDPerXRP),
		service.NewRiskEngine(riskRepo, cfg.Risk),
	)
	wallet.SetPayTimeout(cfg.Ledger.PayTimeout())

	router := server.NewRouter(server.Deps{
		Config: cfg,
		Wallet: wallet,
		Audit:  middleware.AuditSink(auditSvc),
	})
	srv := server.NewHTTPServer(cfg, router)

	// 5. Listen on loopback only
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			logger.Warn("port already in use, wallet gateway already running", "addr", srv.Addr)
		} else {
			logger.Error("listen failed", "addr", srv.Addr, "error", err)
		}
		auditSvc.Close()
		os.Exit(1)
	}

	go func() {
		logger.Info("wallet gateway started", "addr", srv.Addr, "ledger", cfg.Ledger.URL)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// In-flight payments get their full finality window.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Ledger.PayTimeout()+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	auditSvc.Close()
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("server exiting")
}
