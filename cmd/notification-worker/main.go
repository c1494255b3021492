package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fitprep/practice-session-bookings/internal/adapters/rabbit"
	"github.com/fitprep/practice-session-bookings/internal/config"
	"github.com/fitprep/practice-session-bookings/internal/observability"
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

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "psb.notifications", "booking.*")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	worker := &Worker{logger: logger}
	go worker.Run(ctx, deliveries)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notification worker")
}

// Worker delivers booking notifications to users. Delivery here is the
// log-backed channel; push and email providers hang off the same loop.
type Worker struct {
	logger observability.Logger
}

type notification struct {
	UserID   string                 `json:"user_id"`
	Template string                 `json:"template"`
	Payload  map[string]interface{} `json:"payload"`
}

func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.handle(d)
		}
	}
}

func (w *Worker) handle(d amqp.Delivery) {
	var n notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		w.logger.Error("malformed notification payload", err)
		d.Nack(false, false)
		return
	}

	w.logger.
		WithField("user_id", n.UserID).
		WithField("template", n.Template).
		Info("notification delivered")
	d.Ack(false)
}
