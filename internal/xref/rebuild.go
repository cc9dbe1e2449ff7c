package xref

import (
	"fmt"
	"log/slog"
)

// RefSource streams index records from a store of source value records,
// calling emit for each. Used to reconstruct the index when the checkpoint
// log is lost.
type RefSource func(emit func(Ref) error) error

// Rebuild discards the in-memory index and the checkpoint log, then refills
// both from the source value records. It must only be called before Start:
// the committer goroutine owns the structures afterwards.
func (s *Store) Rebuild(source RefSource) error {
	logger := slog.Default().With("component", "xref-rebuild")
	s.index.Reset()
	if err := s.wal.Truncate(); err != nil {
		return fmt.Errorf("resetting checkpoint log: %w", err)
	}
	var n int
	err := source(func(ref Ref) error {
		if err := s.apply(ref); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	if err := s.wal.Flush(); err != nil {
		return fmt.Errorf("flushing rebuilt checkpoint log: %w", err)
	}
	logger.Info("index rebuilt from value records", "records", n, "next_seq", s.wal.NextSeq())
	return nil
}
