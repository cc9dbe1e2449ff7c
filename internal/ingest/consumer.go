package ingest

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/isopsephy/gematria-crossref/pkg/errors"
	"github.com/isopsephy/gematria-crossref/pkg/kafka"
)

// HandleMessage returns a Kafka MessageHandler that feeds each IngestEvent
// through the pipeline. Malformed payloads and invalid phrases are logged and
// committed past; index-write failures are returned so the message is
// redelivered rather than lost.
func HandleMessage(p *Pipeline) kafka.MessageHandler {
	logger := slog.Default().With("component", "ingest-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event", "key", string(key), "error", err)
			return nil
		}
		rec := PhraseRecord{Phrase: event.Phrase, Alphabet: event.Alphabet}
		if err := p.Process(ctx, rec); err != nil {
			if errors.Is(err, apperrors.ErrInvalidInput) ||
				errors.Is(err, apperrors.ErrUnknownAlphabet) {
				logger.Warn("ingest event rejected", "phrase", event.Phrase, "batch_id", event.BatchID, "error", err)
				return nil
			}
			return err
		}
		logger.Debug("phrase indexed", "phrase", event.Phrase, "batch_id", event.BatchID)
		return nil
	}
}
