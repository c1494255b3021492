package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/fitprep/practice-session-bookings/internal/adapters/crdb"
	"github.com/fitprep/practice-session-bookings/internal/adapters/rabbit"
	"github.com/fitprep/practice-session-bookings/internal/config"
	"github.com/fitprep/practice-session-bookings/internal/domain"
	"github.com/fitprep/practice-session-bookings/internal/observability"
	"github.com/fitprep/practice-session-bookings/internal/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	store := crdb.NewStore(pool)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	worker := NewReconciler(store, rabbitPub, logger, cfg.OrphanAge)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, cfg.ReconcileInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown reconciler")
}

// Reconciler sweeps bookings whose payment never resolved: rows still in
// pending/pending past the orphan age, left behind when compensation after
// a failed charge could not delete them. A charge may have been captured
// for such a row; the sweep cancels it and emits an event so refund
// handling can pick it up downstream.
type Reconciler struct {
	store     *crdb.Store
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
	orphanAge time.Duration
}

func NewReconciler(store *crdb.Store, rabbitPub *rabbit.Publisher, logger observability.Logger, orphanAge time.Duration) *Reconciler {
	return &Reconciler{store: store, rabbitPub: rabbitPub, logger: logger, orphanAge: orphanAge}
}

func (w *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.sweep(ctx, now)
		}
	}
}

func (w *Reconciler) sweep(ctx context.Context, now time.Time) {
	orphans, err := retry.Do(ctx, 3, time.Second, func(ctx context.Context) ([]domain.Booking, error) {
		return w.store.ListOrphaned(ctx, now.Add(-w.orphanAge))
	})
	if err != nil {
		w.logger.Error("failed to list orphaned bookings", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, orphan := range orphans {
		orphan := orphan
		g.Go(func() error {
			if err := w.store.CancelOrphaned(gctx, orphan.ID); err != nil {
				// NotFound means the booking resolved in the meantime.
				if err != domain.ErrNotFound {
					w.logger.WithField("booking_id", orphan.ID.String()).Error("failed to cancel orphan", err)
				}
				return nil
			}
			observability.ReconciledTotal.Inc()

			payload, _ := json.Marshal(map[string]interface{}{
				"booking_id": orphan.ID,
				"user_id":    orphan.UserID,
				"session_id": orphan.SessionID,
			})
			msg := amqp.Publishing{
				MessageId:   uuid.New().String(),
				ContentType: "application/json",
				Body:        payload,
			}
			if err := w.rabbitPub.Publish(gctx, "booking.reconciled", msg); err != nil {
				w.logger.Error("failed to publish reconcile event", err)
			}
			return nil
		})
	}
	g.Wait()
}
