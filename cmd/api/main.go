package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v76"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fitprep/practice-session-bookings/internal/adapters/crdb"
	mongoadapter "github.com/fitprep/practice-session-bookings/internal/adapters/mongo"
	redisadapter "github.com/fitprep/practice-session-bookings/internal/adapters/redis"
	"github.com/fitprep/practice-session-bookings/internal/booking"
	"github.com/fitprep/practice-session-bookings/internal/catalog"
	"github.com/fitprep/practice-session-bookings/internal/config"
	httphandler "github.com/fitprep/practice-session-bookings/internal/http"
	"github.com/fitprep/practice-session-bookings/internal/idempotency"
	"github.com/fitprep/practice-session-bookings/internal/notify"
	"github.com/fitprep/practice-session-bookings/internal/observability"
	"github.com/fitprep/practice-session-bookings/internal/payment"
	"github.com/fitprep/practice-session-bookings/internal/rateLimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()
	stripe.Key = cfg.StripeKey

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	store := crdb.NewStore(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("psb")
	sessions := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	cached := catalog.NewCachedCatalog(redisCache, sessions, cfg.CatalogTTL, logger)
	validator := booking.NewValidator(cached, store)
	payments := payment.NewStripeCoordinator(logger)
	notifier := notify.NewOutboxDispatcher(store, logger)
	workflow := booking.NewWorkflow(validator, store, payments, notifier, audit, logger, cfg.ChargeTimeout, cfg.StoreTimeout)

	handlers := httphandler.NewHandlers(cfg, workflow, store, cached, sessions, idemp)
	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
