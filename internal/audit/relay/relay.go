// Package relay publishes committed outbox rows to the audit stream. The
// outbox write happens inside the business transaction; this worker gives
// at-least-once delivery to Kafka without coupling request handling to broker
// availability.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"consentry/internal/audit"
)

// Source is the outbox side of the relay. Implemented by audit.PostgresStore.
type Source interface {
	FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// producer is the slice of the franz-go client the relay drives.
type producer interface {
	ProduceSync(ctx context.Context, records ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Relay drains the outbox into a Kafka topic on a fixed interval.
type Relay struct {
	source    Source
	client    producer
	topic     string
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// Config controls relay construction.
type Config struct {
	Brokers   []string
	Topic     string
	Interval  time.Duration
	BatchSize int
}

// New connects to the brokers and ensures the audit topic exists.
func New(cfg Config, source Source, logger *slog.Logger) (*Relay, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopic(ctx, 1, 1, nil, cfg.Topic); err != nil {
		// Topic may already exist; anything else is surfaced on first produce.
		logger.Warn("audit topic create", "topic", cfg.Topic, "error", err)
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 100
	}

	return &Relay{
		source:    source,
		client:    client,
		topic:     cfg.Topic,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}, nil
}

// Run drains the outbox until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer r.client.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drainOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

func (r *Relay) drainOnce(ctx context.Context) error {
	entries, err := r.source.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, &kgo.Record{
			Topic: r.topic,
			// Key by aggregate so one subject's trail stays ordered.
			Key:   []byte(e.AggregateID),
			Value: e.Payload,
		})
	}

	results := r.client.ProduceSync(ctx, records...)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return r.source.MarkPublished(ctx, ids)
}
