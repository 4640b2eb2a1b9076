package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"storefront/kit/broker"
	"storefront/kit/observability"
)

// Entry is one line of the audit trail.
type Entry struct {
	At        time.Time       `json:"at"`
	Event     string          `json:"event"`
	Aggregate string          `json:"aggregate"`
	Fields    json.RawMessage `json:"fields"`
}

type keyed interface {
	PartitionKey() string
}

type Service struct {
	logger *observability.Logger
	now    func() time.Time

	fileMu sync.Mutex
	f      *os.File
}

func NewService(logger *observability.Logger) *Service {
	return &Service{logger: logger, now: time.Now}
}

// NewServiceWithFile appends every entry as a JSON line to path.
func NewServiceWithFile(logger *observability.Logger, path string) (*Service, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		if logger != nil {
			logger.Error("audit error", "layer", "service", "component", "audit", "method", "NewServiceWithFile", "path", path, "error", err.Error())
		}
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		if logger != nil {
			logger.Error("audit error", "layer", "service", "component", "audit", "method", "NewServiceWithFile", "path", path, "error", err.Error())
		}
		return nil, err
	}
	return &Service{logger: logger, now: time.Now, f: f}, nil
}

func (s *Service) Close() error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	if err != nil && s.logger != nil {
		s.logger.Error("audit error", "layer", "service", "component", "audit", "method", "Close", "error", err.Error())
	}
	s.f = nil
	return err
}

// Record writes the event to the log and, when configured, to the audit file.
func (s *Service) Record(ctx context.Context, evt broker.Event) error {
	fields, err := json.Marshal(evt)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("audit error", "layer", "service", "component", "audit", "method", "Record", "event", evt.Name(), "error", err.Error())
		}
		return err
	}
	entry := Entry{At: s.now().UTC(), Event: evt.Name(), Fields: fields}
	if k, ok := evt.(keyed); ok {
		entry.Aggregate = k.PartitionKey()
	}
	if s.logger != nil {
		s.logger.Info("audit", "event", entry.Event, "aggregate", entry.Aggregate, "fields", string(fields))
	}

	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if s.f == nil {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := s.f.Write(append(b, '\n')); err != nil {
		if s.logger != nil {
			s.logger.Error("audit error", "layer", "service", "component", "audit", "method", "Record", "event", entry.Event, "error", err.Error())
		}
		return err
	}
	return nil
}
