package xref

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// WALName is the checkpoint log file name inside the index data directory.
const WALName = "checkpoint.gxwal"

// maxFrameSize guards replay against garbage length prefixes.
const maxFrameSize = 1 << 20

// LogRecord is one appended upsert. Seq is strictly increasing; replaying
// records in sequence order reconstructs the index exactly.
type LogRecord struct {
	Seq       uint64 `json:"seq"`
	Alphabet  string `json:"alphabet"`
	Method    string `json:"method"`
	Value     int64  `json:"value"`
	PhraseID  string `json:"phrase_id"`
	Hierarchy bool   `json:"hierarchy,omitempty"`
}

// WAL is the append-only checkpoint log. Each frame is a little-endian
// uint32 payload length, the JSON payload, and a CRC32 of the payload.
// Appends go through a buffered writer; Flush pushes the buffer to the OS
// and fsyncs, so durability is batched on the committer's flush cadence
// rather than paid per upsert.
type WAL struct {
	file    *os.File
	buf     *bufio.Writer
	path    string
	nextSeq uint64
	pending int64
	logger  *slog.Logger
}

// OpenWAL opens (creating if absent) the checkpoint log for appending.
// nextSeq must be one past the highest sequence number seen during replay.
func OpenWAL(dataDir string, nextSeq uint64) (*WAL, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	path := filepath.Join(dataDir, WALName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint log: %w", err)
	}
	return &WAL{
		file:    f,
		buf:     bufio.NewWriterSize(f, 64*1024),
		path:    path,
		nextSeq: nextSeq,
		logger:  slog.Default().With("component", "checkpoint-log"),
	}, nil
}

// Append frames and buffers one upsert, assigning its sequence number.
// It returns the record's byte size so the committer can trigger size-based
// flushes.
func (w *WAL) Append(ref Ref) (int64, error) {
	rec := LogRecord{
		Seq:       w.nextSeq,
		Alphabet:  ref.Alphabet,
		Method:    string(ref.Method),
		Value:     ref.Value,
		PhraseID:  ref.PhraseID,
		Hierarchy: ref.Hierarchy,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("marshaling checkpoint record: %w", err)
	}
	var frame [4]byte
	binary.LittleEndian.PutUint32(frame[:], uint32(len(payload)))
	if _, err := w.buf.Write(frame[:]); err != nil {
		return 0, fmt.Errorf("writing frame length: %w", err)
	}
	if _, err := w.buf.Write(payload); err != nil {
		return 0, fmt.Errorf("writing frame payload: %w", err)
	}
	binary.LittleEndian.PutUint32(frame[:], crc32.ChecksumIEEE(payload))
	if _, err := w.buf.Write(frame[:]); err != nil {
		return 0, fmt.Errorf("writing frame checksum: %w", err)
	}
	w.nextSeq++
	n := int64(len(payload) + 8)
	w.pending += n
	return n, nil
}

// Flush drains the buffer and fsyncs the log file.
func (w *WAL) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flushing checkpoint buffer: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("syncing checkpoint log: %w", err)
	}
	w.pending = 0
	return nil
}

// Pending returns the bytes appended since the last flush.
func (w *WAL) Pending() int64 { return w.pending }

// NextSeq returns the sequence number the next append will receive.
func (w *WAL) NextSeq() uint64 { return w.nextSeq }

// Close flushes and closes the log.
func (w *WAL) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}

// Truncate discards the log contents, used before a full rebuild from source
// value records.
func (w *WAL) Truncate() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flushing before truncate: %w", err)
	}
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("truncating checkpoint log: %w", err)
	}
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seeking after truncate: %w", err)
	}
	w.buf.Reset(w.file)
	w.nextSeq = 1
	w.pending = 0
	return nil
}

// ReplayWAL streams every record of the checkpoint log in order, calling fn
// for each. A torn final frame (partial write before a crash) ends replay
// cleanly; corruption before the tail is an error. It returns the highest
// sequence number seen.
func ReplayWAL(dataDir string, fn func(LogRecord) error) (uint64, error) {
	path := filepath.Join(dataDir, WALName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("opening checkpoint log: %w", err)
	}
	defer f.Close()

	logger := slog.Default().With("component", "checkpoint-log")
	r := bufio.NewReaderSize(f, 64*1024)
	var lastSeq uint64
	var frame [4]byte
	for {
		if _, err := io.ReadFull(r, frame[:]); err != nil {
			if err == io.EOF {
				return lastSeq, nil
			}
			logger.Warn("torn frame length at log tail, stopping replay", "last_seq", lastSeq)
			return lastSeq, nil
		}
		size := binary.LittleEndian.Uint32(frame[:])
		if size == 0 || size > maxFrameSize {
			return lastSeq, fmt.Errorf("checkpoint log corrupt: frame size %d after seq %d", size, lastSeq)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			logger.Warn("torn frame payload at log tail, stopping replay", "last_seq", lastSeq)
			return lastSeq, nil
		}
		if _, err := io.ReadFull(r, frame[:]); err != nil {
			logger.Warn("torn frame checksum at log tail, stopping replay", "last_seq", lastSeq)
			return lastSeq, nil
		}
		if binary.LittleEndian.Uint32(frame[:]) != crc32.ChecksumIEEE(payload) {
			if isAtEOF(r) {
				logger.Warn("checksum mismatch on final frame, stopping replay", "last_seq", lastSeq)
				return lastSeq, nil
			}
			return lastSeq, fmt.Errorf("checkpoint log corrupt: checksum mismatch after seq %d", lastSeq)
		}
		var rec LogRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return lastSeq, fmt.Errorf("checkpoint log corrupt: bad payload after seq %d: %w", lastSeq, err)
		}
		if rec.Seq <= lastSeq {
			return lastSeq, fmt.Errorf("checkpoint log corrupt: sequence %d after %d", rec.Seq, lastSeq)
		}
		if err := fn(rec); err != nil {
			return lastSeq, err
		}
		lastSeq = rec.Seq
	}
}

func isAtEOF(r *bufio.Reader) bool {
	_, err := r.Peek(1)
	return errors.Is(err, io.EOF)
}
