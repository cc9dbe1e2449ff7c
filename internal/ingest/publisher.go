package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/isopsephy/gematria-crossref/pkg/kafka"
)

// Publisher pushes phrase records onto the ingest topic in batches. Messages
// are keyed by the normalized phrase so repeated submissions of the same
// phrase land on the same partition and stay ordered.
type Publisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewPublisher creates a Publisher over the given Kafka producer.
func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   slog.Default().With("component", "ingest-publisher"),
	}
}

// PublishBatch publishes all records under a fresh batch identifier and
// returns it.
func (p *Publisher) PublishBatch(ctx context.Context, records []PhraseRecord) (string, error) {
	batchID := uuid.NewString()
	now := time.Now().UTC()
	events := make([]kafka.Event, 0, len(records))
	for _, rec := range records {
		events = append(events, kafka.Event{
			Key: rec.Phrase,
			Value: IngestEvent{
				Phrase:     rec.Phrase,
				Alphabet:   rec.Alphabet,
				BatchID:    batchID,
				IngestedAt: now,
			},
		})
	}
	if err := p.producer.PublishBatch(ctx, events); err != nil {
		return "", fmt.Errorf("publishing phrase batch: %w", err)
	}
	p.logger.Info("phrase batch published", "batch_id", batchID, "phrases", len(records))
	return batchID, nil
}
