package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	api "github.com/mayukomayuko7-bot/warakado-vision/internal/api"
	config "github.com/mayukomayuko7-bot/warakado-vision/internal/config"
	db "github.com/mayukomayuko7-bot/warakado-vision/internal/db"
	kafka "github.com/mayukomayuko7-bot/warakado-vision/internal/external/kafka"
	rabbit "github.com/mayukomayuko7-bot/warakado-vision/internal/external/rabbitmq"
	interf "github.com/mayukomayuko7-bot/warakado-vision/internal/interfaces"
	services "github.com/mayukomayuko7-bot/warakado-vision/internal/services"
	tracing "github.com/mayukomayuko7-bot/warakado-vision/observability/otel"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	// log
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(ctx, "membership", cfg.OtelEndpoint, logger)
	if err != nil {
		panic(err)
	}
	defer shutdownTracer()

	// Directory
	var dir interf.Directory
	if cfg.MongoURI != "" {
		mongo, err := db.NewMongoDirectory(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			panic(err)
		}
		defer mongo.Close(context.Background())
		dir = mongo
	} else {
		logger.Warn("env MEMBERSHIP_MONGO is not set, directory kept in memory")
		dir = db.NewMemoryDirectory()
	}

	// локальный кэш
	var blobs interf.BlobStorage
	if cfg.CacheURL != "" {
		redis, err := db.NewRedisBlobs(cfg.CacheURL, cfg.CacheUser, cfg.CachePassword)
		if err != nil {
			panic(err)
		}
		defer redis.Close()
		blobs = redis
	} else {
		logger.Warn("env MEMBERSHIP_CACHE_URL is not set, local cache kept in memory")
		blobs = db.NewMemoryBlobs()
	}
	cache := db.NewCacheService(blobs, cfg.CachePrefix)

	opts := []services.LedgerOption{services.WithTimeout(cfg.DirectoryTimeout)}
	if cfg.RabbitURL != "" {
		notifier, err := rabbit.NewRabbitNotifier(cfg.RabbitURL, cfg.RabbitPort, cfg.RabbitUser, cfg.RabbitPassword)
		if err != nil {
			logger.Error("Operator notifications disabled", zap.Error(err))
		} else {
			defer notifier.Close()
			opts = append(opts, services.WithNotifier(notifier))
		}
	}
	if cfg.KafkaURL != "" {
		audit, err := kafka.NewAuditWriter(cfg.KafkaURL, cfg.KafkaPort, cfg.KafkaTopic)
		if err != nil {
			logger.Error("Audit trail disabled", zap.Error(err))
		} else {
			defer audit.Close()
			opts = append(opts, services.WithAuditLog(audit))
		}
	}

	// services
	clk := clock.WallClock
	day, err := services.NewBusinessDay(clk, cfg.Timezone)
	if err != nil {
		panic(err)
	}
	ledger := services.NewLedger(dir, cache, services.NewSession(), services.RandomIDs{}, clk, logger, opts...)
	sessions := services.NewSessionManager(ledger, cache, logger)
	if m := sessions.RestoreSession(ctx); m != nil {
		logger.Info("Session restored", zap.String("email", m.Email))
	}
	if cancel, err := sessions.Watch(ctx); err == nil {
		defer cancel()
	}

	feed := services.NewRecipeFeed(dir, cache, day, logger)
	cancelFeed, err := feed.Start(ctx)
	if err != nil {
		panic(err)
	}
	defer cancelFeed()

	admin := services.NewAdminConsole(ledger, cfg.StaffPass, logger)
	if err := admin.Start(ctx); err != nil {
		logger.Warn("Admin console live views disabled", zap.Error(err))
	}
	defer admin.Stop()

	// api handlers
	r := api.NewHandler(api.Services{
		Sessions:    sessions,
		Ledger:      ledger,
		Feed:        feed,
		Fortune:     services.NewFortuneTeller(cache, day, logger),
		Admin:       admin,
		PurchaseURL: cfg.PurchaseURL,
	}, logger)
	srv := &http.Server{
		Handler:      otelhttp.NewHandler(r, "membership"),
		Addr:         ":" + cfg.Port,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", zap.Error(err))
			stop()
		}
	}()
	logger.Info("Membership service started", zap.String("port", cfg.Port), zap.Bool("directory", dir.Online()))

	// shutdown
	<-ctx.Done()
	timeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(timeout)
	if err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
