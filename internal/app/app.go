// Package app wires configuration, storage, and the HTTP server together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fixyhq/fixy/internal/catalog"
	"github.com/fixyhq/fixy/internal/chatcontext"
	"github.com/fixyhq/fixy/internal/config"
	"github.com/fixyhq/fixy/internal/db"
	"github.com/fixyhq/fixy/internal/entitlement"
	"github.com/fixyhq/fixy/internal/gateway"
	"github.com/fixyhq/fixy/internal/http/api"
	"github.com/fixyhq/fixy/internal/ledger"
	"github.com/fixyhq/fixy/internal/notify"
	"github.com/fixyhq/fixy/internal/orchestrator"
	"github.com/fixyhq/fixy/internal/ratelimit"
	"github.com/fixyhq/fixy/internal/realtime"
	"github.com/fixyhq/fixy/internal/vault"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.Config) error {
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the chat platform API server and blocks until ctx is done.
func RunServer(ctx context.Context, cfg config.Config, port int) error {
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	v, errVault := vault.New(conn, cfg.EncryptionKey, map[string]string{
		catalog.ProviderOpenAI:    cfg.ProviderKeys.OpenAI,
		catalog.ProviderAnthropic: cfg.ProviderKeys.Anthropic,
		catalog.ProviderGoogle:    cfg.ProviderKeys.Google,
	})
	if errVault != nil {
		return errVault
	}

	var publisher realtime.Publisher = realtime.NopPublisher{}
	var hub *realtime.Hub
	var redisLimiter *ratelimit.RedisLimiter
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisPublisher := realtime.NewRedisPublisher(client, cfg.Redis.Prefix)
		publisher = redisPublisher
		hub = realtime.NewHub(conn, redisPublisher)
		redisLimiter = ratelimit.NewRedisLimiter(client, cfg.Redis.Prefix)
	} else {
		log.Warn("redis not configured, realtime fan-out disabled")
	}

	notifier := notify.Multi{notify.LogNotifier{}, realtime.NewAlertNotifier(publisher)}
	creditLedger := ledger.New(conn, notifier)
	ledger.NewResetScheduler(creditLedger).Start(ctx)

	evaluator := entitlement.NewEvaluator(conn, v)
	providerGateway := gateway.New(&http.Client{Timeout: cfg.ProviderTimeout})
	builder := chatcontext.NewBuilder(conn)
	orch := orchestrator.New(conn, evaluator, v, builder, providerGateway, creditLedger, publisher, cfg.ProviderTimeout)
	limiter := ratelimit.NewManager(redisLimiter, nil)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	api.RegisterRoutes(engine, api.Deps{
		DB:           conn,
		JWT:          cfg.JWT,
		Ledger:       creditLedger,
		Vault:        v,
		Evaluator:    evaluator,
		Orchestrator: orch,
		Publisher:    publisher,
		Hub:          hub,
		Limiter:      limiter,
		RateLimit:    cfg.MessageRateLimit,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}
