package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fitprep/practice-session-bookings/internal/adapters/crdb"
	mongoadapter "github.com/fitprep/practice-session-bookings/internal/adapters/mongo"
	redisadapter "github.com/fitprep/practice-session-bookings/internal/adapters/redis"
	"github.com/fitprep/practice-session-bookings/internal/booking"
	"github.com/fitprep/practice-session-bookings/internal/catalog"
	"github.com/fitprep/practice-session-bookings/internal/config"
	"github.com/fitprep/practice-session-bookings/internal/domain"
	httphandler "github.com/fitprep/practice-session-bookings/internal/http"
	"github.com/fitprep/practice-session-bookings/internal/idempotency"
	"github.com/fitprep/practice-session-bookings/internal/notify"
	"github.com/fitprep/practice-session-bookings/internal/observability"
	"github.com/fitprep/practice-session-bookings/internal/rateLimit"
)

// scriptedPayments stands in for the provider; declines are keyed by
// payment method so tests can drive both outcomes.
type scriptedPayments struct{}

func (scriptedPayments) Charge(ctx context.Context, req booking.ChargeRequest) (domain.PaymentResult, error) {
	if req.Method == "pm_declined" {
		return domain.PaymentResult{Succeeded: false, Reason: "card_declined"}, nil
	}
	return domain.PaymentResult{Succeeded: true, TransactionID: "pi_" + req.BookingID.String()}, nil
}

const schema = `
	CREATE DATABASE IF NOT EXISTS psb;
	CREATE TABLE IF NOT EXISTS psb.bookings (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL,
		user_id UUID NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'APPROVED', 'CONFIRMED', 'REJECTED', 'CANCELLED')),
		payment_status TEXT NOT NULL CHECK (payment_status IN ('PENDING', 'SUCCEEDED', 'FAILED')),
		payment_ref TEXT NOT NULL DEFAULT '',
		waiver_ref TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (session_id, user_id) WHERE status IN ('PENDING', 'APPROVED', 'CONFIRMED')
	);
	CREATE TABLE IF NOT EXISTS psb.outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload_json BYTES NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ,
		status TEXT NOT NULL CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
		dedupe_key TEXT NOT NULL
	);
`

func TestIntegration_SubmitBookingLifecycle(t *testing.T) {
	ctx := context.Background()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer crdbContainer.Terminate(ctx)

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForExec([]string{"mongo", "--eval", "db.runCommand('ping').ok"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	crdbDSN, err := crdbContainer.Endpoint(ctx, "postgresql")
	if err != nil {
		t.Fatal(err)
	}
	mongoHost, err := mongoContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mongoPort, err := mongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}
	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		CRDBDSN:       crdbDSN + "/psb?sslmode=disable",
		MongoURI:      "mongodb://" + mongoHost + ":" + mongoPort.Port(),
		RedisAddr:     redisHost + ":" + redisPort.Port(),
		HTTPAddr:      ":8090",
		ChargeTimeout: 5 * time.Second,
		StoreTimeout:  5 * time.Second,
		CatalogTTL:    time.Minute,
	}

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatal(err)
	}
	store := crdb.NewStore(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)
	mongoDB := mongoClient.Database("psb")
	logger := observability.NewLogger()
	sessions := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	cached := catalog.NewCachedCatalog(redisCache, sessions, cfg.CatalogTTL, logger)
	validator := booking.NewValidator(cached, store)
	notifier := notify.NewOutboxDispatcher(store, logger)
	workflow := booking.NewWorkflow(validator, store, scriptedPayments{}, notifier, audit, logger, cfg.ChargeTimeout, cfg.StoreTimeout)

	handlers := httphandler.NewHandlers(cfg, workflow, store, cached, sessions, idemp)
	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go srv.ListenAndServe()
	defer srv.Shutdown(ctx)
	time.Sleep(200 * time.Millisecond)

	sessionID := uuid.New()
	userID := uuid.New()
	base := "http://localhost:8090"

	err = sessions.CreateSession(ctx, mongoadapter.SessionDoc{
		ID:         sessionID,
		StartsAt:   time.Now().Add(72 * time.Hour),
		Capacity:   5,
		PriceMinor: 4500,
		Currency:   "usd",
		Status:     domain.SessionScheduled,
	})
	if err != nil {
		t.Fatal(err)
	}

	submit := func(user uuid.UUID, method string) *http.Response {
		body, _ := json.Marshal(map[string]interface{}{
			"session_id":     sessionID.String(),
			"waiver_ref":     "waiver-snapshot-1",
			"payment_method": method,
		})
		req, _ := http.NewRequest("POST", base+"/v1/bookings", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", uuid.New().String())
		req.Header.Set("Authorization", "Bearer "+user.String())
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	// Successful submission leaves a pending booking with a captured payment.
	resp := submit(userID, "pm_card")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var submitResp struct {
		BookingID uuid.UUID `json:"booking_id"`
		Status    string    `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&submitResp)
	if submitResp.Status != domain.BookingPending {
		t.Errorf("expected PENDING, got %s", submitResp.Status)
	}

	b, err := store.GetBooking(ctx, submitResp.BookingID)
	if err != nil {
		t.Fatal(err)
	}
	if b.PaymentStatus != domain.PaymentSucceeded {
		t.Errorf("expected SUCCEEDED payment, got %s", b.PaymentStatus)
	}

	// A notification landed in the outbox exactly once.
	records, err := store.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].EventType != booking.TemplateSubmitted {
		t.Errorf("expected one submitted notification, got %d", len(records))
	}

	// Same user, same session: rejected as duplicate, no extra row.
	resp = submit(userID, "pm_card")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", resp.StatusCode)
	}

	// Declined payment: booking compensated away, nothing left behind.
	decliner := uuid.New()
	resp = submit(decliner, "pm_declined")
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for declined payment, got %d", resp.StatusCode)
	}
	if leftover, err := store.FindActiveBooking(ctx, decliner, sessionID); err != nil || leftover != nil {
		t.Fatalf("expected no trace of the declined booking, got %v, %v", leftover, err)
	}

	// Owner cancellation frees the slot for rebooking.
	cancelKey := uuid.New().String()
	cancel := func() *http.Response {
		req, _ := http.NewRequest("POST", base+"/v1/bookings/"+submitResp.BookingID.String()+"/cancel", nil)
		req.Header.Set("Idempotency-Key", cancelKey)
		req.Header.Set("Authorization", "Bearer "+userID.String())
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}
	resp = cancel()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for cancel, got %d", resp.StatusCode)
	}

	// Retrying the cancel with the same key replays the 204 instead of
	// hitting the already-cancelled row.
	resp = cancel()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected replayed 204 for repeated cancel, got %d", resp.StatusCode)
	}
	b, err = store.GetBooking(ctx, submitResp.BookingID)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != domain.BookingCancelled {
		t.Errorf("expected CANCELLED, got %s", b.Status)
	}
}

func TestIntegration_CancelledSessionRejectedBeforeWrite(t *testing.T) {
	ctx := context.Background()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer crdbContainer.Terminate(ctx)

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForExec([]string{"mongo", "--eval", "db.runCommand('ping').ok"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	crdbDSN, err := crdbContainer.Endpoint(ctx, "postgresql")
	if err != nil {
		t.Fatal(err)
	}
	mongoHost, err := mongoContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mongoPort, err := mongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, crdbDSN+"/psb?sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatal(err)
	}
	store := crdb.NewStore(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+mongoHost+":"+mongoPort.Port()))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)
	logger := observability.NewLogger()
	sessions := mongoadapter.NewCatalogRepository(mongoClient.Database("psb"), logger)

	sessionID := uuid.New()
	err = sessions.CreateSession(ctx, mongoadapter.SessionDoc{
		ID:         sessionID,
		StartsAt:   time.Now().Add(72 * time.Hour),
		Capacity:   5,
		PriceMinor: 4500,
		Currency:   "usd",
		Status:     domain.SessionCancelled,
	})
	if err != nil {
		t.Fatal(err)
	}

	validator := booking.NewValidator(catalogSource{sessions}, store)
	notifier := notify.NewOutboxDispatcher(store, logger)
	workflow := booking.NewWorkflow(validator, store, scriptedPayments{}, notifier, nil, logger, time.Second, time.Second)

	_, err = workflow.Submit(ctx, uuid.New(), sessionID, "waiver-1", "pm_card")
	if !errors.Is(err, domain.ErrSessionUnavailable) {
		t.Fatalf("expected ErrSessionUnavailable, got %v", err)
	}

	var rows int
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM bookings").Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 0 {
		t.Errorf("validator rejection must not write, found %d rows", rows)
	}
}

// catalogSource adapts the raw Mongo repository to the catalog contract
// when the cache layer is not under test.
type catalogSource struct {
	repo *mongoadapter.CatalogRepository
}

func (c catalogSource) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	return c.repo.GetSession(ctx, id)
}

