package xref

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/isopsephy/gematria-crossref/internal/codec"
	"github.com/isopsephy/gematria-crossref/pkg/config"
	apperrors "github.com/isopsephy/gematria-crossref/pkg/errors"
	"github.com/isopsephy/gematria-crossref/pkg/metrics"
)

type commitReq struct {
	ref Ref
	ack chan error
}

// Store couples the in-memory Index with its checkpoint log behind a single
// committer goroutine. Producers hand records off through a bounded channel:
// when the channel is full Commit blocks, giving backpressure instead of
// dropping computed values. A Commit acks only after the record is applied to
// the index and accepted by the checkpoint log, so a nil return means the
// record will survive replay once the next flush lands.
type Store struct {
	logger  *slog.Logger
	reqs    chan commitReq
	done    chan struct{}
	failed  atomic.Bool
	cfg     config.IndexConfig
	metrics *metrics.Metrics

	index *Index
	wal   *WAL
}

// Open replays the checkpoint log into a fresh index and prepares the log for
// appending. The returned Store is inert until Start is called.
func Open(cfg config.IndexConfig, m *metrics.Metrics) (*Store, error) {
	idx := NewIndex(cfg.Partitions)
	lastSeq, err := ReplayWAL(cfg.DataDir, func(rec LogRecord) error {
		idx.Upsert(Ref{
			Alphabet:  rec.Alphabet,
			Method:    methodFromLog(rec.Method),
			Value:     rec.Value,
			PhraseID:  rec.PhraseID,
			Hierarchy: rec.Hierarchy,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replaying checkpoint log: %w", err)
	}
	wal, err := OpenWAL(cfg.DataDir, lastSeq+1)
	if err != nil {
		return nil, err
	}
	queue := cfg.CommitQueue
	if queue <= 0 {
		queue = 1024
	}
	s := &Store{
		logger:  slog.Default().With("component", "xref-committer"),
		reqs:    make(chan commitReq, queue),
		done:    make(chan struct{}),
		cfg:     cfg,
		metrics: m,
		index:   idx,
		wal:     wal,
	}
	s.logger.Info("index recovered from checkpoint log",
		"last_seq", lastSeq,
		"keys_per_partition", idx.Keys(),
	)
	return s, nil
}

// Start launches the committer loop. It returns immediately; the loop runs
// until ctx is cancelled, performing a final flush on the way out.
func (s *Store) Start(ctx context.Context) {
	flushInterval := s.cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	flushBytes := s.cfg.FlushBytes
	if flushBytes <= 0 {
		flushBytes = 1 << 20
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		for {
			select {
			case req := <-s.reqs:
				req.ack <- s.apply(req.ref)
				if s.wal.Pending() >= flushBytes {
					s.flush("size")
				}
			case <-ticker.C:
				if s.wal.Pending() > 0 {
					s.flush("interval")
				}
			case <-ctx.Done():
				s.drain()
				s.flush("shutdown")
				if err := s.wal.Close(); err != nil {
					s.logger.Error("closing checkpoint log", "error", err)
				}
				s.logger.Info("committer stopped")
				return
			}
		}
	}()
	s.logger.Info("committer started",
		"queue", cap(s.reqs),
		"flush_interval", flushInterval,
		"flush_bytes", flushBytes,
	)
}

// Commit hands a record to the committer and waits for its acknowledgement.
// It blocks while the commit queue is full.
func (s *Store) Commit(ctx context.Context, ref Ref) error {
	if s.failed.Load() {
		return fmt.Errorf("%w: committer in failed state", apperrors.ErrIndexWrite)
	}
	req := commitReq{ref: ref, ack: make(chan error, 1)}
	select {
	case s.reqs <- req:
	case <-s.done:
		return fmt.Errorf("%w: committer stopped", apperrors.ErrIndexWrite)
	case <-ctx.Done():
		return fmt.Errorf("commit aborted: %w", ctx.Err())
	}
	if s.metrics != nil {
		s.metrics.CommitQueueDepth.Set(float64(len(s.reqs)))
	}
	select {
	case err := <-req.ack:
		return err
	case <-s.done:
		// The loop can stop between accepting the request and applying it.
		// The ack channel is buffered, so a commit the drain did process
		// still reports its real result.
		select {
		case err := <-req.ack:
			return err
		default:
		}
		return fmt.Errorf("%w: committer stopped", apperrors.ErrIndexWrite)
	case <-ctx.Done():
		return fmt.Errorf("commit aborted awaiting ack: %w", ctx.Err())
	}
}

// Lookup returns the committed phrase identifiers for (alphabet, method,
// value) in insertion order.
func (s *Store) Lookup(alphabet string, method codec.MethodID, value int64) []string {
	return s.index.Lookup(alphabet, method, value)
}

// LookupHierarchy returns the committed relations sharing the hierarchy value.
func (s *Store) LookupHierarchy(value int64) []Relation {
	return s.index.LookupHierarchy(value)
}

// Index exposes the in-memory index for read-side collaborators.
func (s *Store) Index() *Index { return s.index }

// Healthy reports whether the committer can still accept records. It turns
// false permanently once a checkpoint append or flush fails.
func (s *Store) Healthy() bool { return !s.failed.Load() }

// Close waits for the committer loop to finish its shutdown flush.
func (s *Store) Close() {
	<-s.done
}

func (s *Store) apply(ref Ref) error {
	if _, err := s.wal.Append(ref); err != nil {
		// A record that cannot reach the checkpoint log is not ingested;
		// the index must not get ahead of what replay can reconstruct.
		s.failed.Store(true)
		s.logger.Error("checkpoint append failed", "phrase_id", ref.PhraseID, "error", err)
		return fmt.Errorf("%w: %v", apperrors.ErrIndexWrite, err)
	}
	s.index.Upsert(ref)
	return nil
}

func (s *Store) flush(reason string) {
	if err := s.wal.Flush(); err != nil {
		s.failed.Store(true)
		s.logger.Error("checkpoint flush failed", "reason", reason, "error", err)
		if s.metrics != nil {
			s.metrics.CheckpointFlushes.WithLabelValues("error").Inc()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.CheckpointFlushes.WithLabelValues(reason).Inc()
		for i, n := range s.index.Keys() {
			s.metrics.IndexEntries.WithLabelValues(strconv.Itoa(i)).Set(float64(n))
		}
	}
}

// methodFromLog restores a MethodID from its checkpoint-log string form.
// Records only ever enter the log through the closed catalog, so no
// re-validation happens here.
func methodFromLog(s string) codec.MethodID { return codec.MethodID(s) }

// drain processes requests already queued at shutdown so accepted records are
// never dropped.
func (s *Store) drain() {
	for {
		select {
		case req := <-s.reqs:
			req.ack <- s.apply(req.ref)
		default:
			return
		}
	}
}
