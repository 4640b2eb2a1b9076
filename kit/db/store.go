package db

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"storefront/kit/broker"
	"storefront/kit/observability"
)

// Record is one journaled event. Seq is assigned in append order and is
// stable across restarts when the journal is file backed.
type Record struct {
	Seq         int64           `json:"seq"`
	AggregateID string          `json:"aggregate_id"`
	EventName   string          `json:"event_name"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Journal is the append-only audit trail of transaction events.
type Journal struct {
	mu      sync.RWMutex
	streams map[string][]Record
	seq     int64

	fileMu sync.Mutex
	f      *os.File
	logger *observability.Logger
}

func NewJournal(logger *observability.Logger) *Journal {
	return &Journal{streams: make(map[string][]Record), logger: logger}
}

// NewJournalWithFile replays path into memory and appends new records to it.
func NewJournalWithFile(logger *observability.Logger, path string) (*Journal, error) {
	j := NewJournal(logger)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		j.logError("NewJournalWithFile", path, err)
		return nil, errors.Join(ErrInternal, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		j.logError("NewJournalWithFile", path, err)
		return nil, errors.Join(ErrInternal, err)
	}
	if err := j.replay(f); err != nil {
		j.logError("NewJournalWithFile", path, err)
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		j.logError("NewJournalWithFile", path, err)
		_ = f.Close()
		return nil, errors.Join(ErrInternal, err)
	}
	j.f = f
	return j, nil
}

func (j *Journal) replay(f *os.File) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return errors.Join(ErrInternal, err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return errors.Join(ErrInternal, err)
		}
		j.streams[rec.AggregateID] = append(j.streams[rec.AggregateID], rec)
		if rec.Seq > j.seq {
			j.seq = rec.Seq
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Join(ErrInternal, err)
	}
	return nil
}

func (j *Journal) Close() error {
	j.fileMu.Lock()
	defer j.fileMu.Unlock()
	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	if err != nil {
		j.logError("Close", "", err)
	}
	j.f = nil
	return err
}

func (j *Journal) Append(ctx context.Context, aggregateID string, evt broker.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		j.logError("Append", aggregateID, err)
		return errors.Join(ErrInvalid, err)
	}

	j.mu.Lock()
	j.seq++
	rec := Record{
		Seq:         j.seq,
		AggregateID: aggregateID,
		EventName:   evt.Name(),
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
	}
	j.streams[aggregateID] = append(j.streams[aggregateID], rec)
	j.mu.Unlock()

	j.fileMu.Lock()
	defer j.fileMu.Unlock()
	if j.f == nil {
		return nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		j.logError("Append", aggregateID, err)
		return errors.Join(ErrInternal, err)
	}
	if _, err := j.f.Write(append(b, '\n')); err != nil {
		j.logError("Append", aggregateID, err)
		return errors.Join(ErrInternal, err)
	}
	return nil
}

func (j *Journal) Load(ctx context.Context, aggregateID string) []Record {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]Record(nil), j.streams[aggregateID]...)
}

// All returns every record across aggregates in Seq order.
func (j *Journal) All(ctx context.Context) []Record {
	j.mu.RLock()
	out := make([]Record, 0, int(j.seq))
	for _, recs := range j.streams {
		out = append(out, recs...)
	}
	j.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	return out
}

func (j *Journal) logError(method, ref string, err error) {
	if j.logger == nil {
		return
	}
	j.logger.Error("journal error", "layer", "store", "component", "db", "method", method, "ref", ref, "error", err.Error())
}
