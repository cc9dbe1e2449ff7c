// Package ingest drives phrase ingestion: codec computation in a parallel
// worker pool, persistence of value records, and committed upserts into the
// cross-reference index. Phrase computation shares no state, so the codec
// stage fans out freely; the index store is the single shared sink.
package ingest

import "time"

// PhraseRecord is one phrase to ingest. Alphabet may be empty, in which case
// the corpus default applies.
type PhraseRecord struct {
	Phrase   string `json:"phrase"`
	Alphabet string `json:"alphabet,omitempty"`
}

// IngestEvent is the Kafka message payload carrying a phrase toward the
// indexing pipeline.
type IngestEvent struct {
	Phrase     string    `json:"phrase"`
	Alphabet   string    `json:"alphabet,omitempty"`
	BatchID    string    `json:"batch_id"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Report summarises an ingestion run. A failed phrase is one whose values
// could not all be durably indexed after retries; it is reported, never
// silently dropped.
type Report struct {
	Attempted      int64 `json:"attempted"`
	Succeeded      int64 `json:"succeeded"`
	Failed         int64 `json:"failed"`
	SkippedMethods int64 `json:"skipped_methods"`
}
