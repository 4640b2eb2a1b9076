package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type CheckFunc func(ctx context.Context) error

const DefaultCheckTimeout = 2 * time.Second

type Service struct {
	mu sync.Mutex

	checks  map[string]CheckFunc
	ttl     time.Duration
	timeout time.Duration

	nextCheckAt time.Time
	lastResult  Result
}

type Result struct {
	At     time.Time         `json:"at"`
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks"`
}

type Option func(*Service)

// WithCheckTimeout bounds each dependency check.
func WithCheckTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewService(ttl time.Duration, checks map[string]CheckFunc, opts ...Option) *Service {
	s := &Service{ttl: ttl, timeout: DefaultCheckTimeout, checks: checks, lastResult: Result{Checks: map[string]string{}}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check runs every dependency check concurrently. Results are cached for ttl.
func (s *Service) Check(ctx context.Context) Result {
	s.mu.Lock()
	if time.Now().Before(s.nextCheckAt) {
		res := s.lastResult
		s.mu.Unlock()
		return res
	}
	s.mu.Unlock()

	res := Result{At: time.Now().UTC(), OK: true, Checks: make(map[string]string, len(s.checks))}
	var resMu sync.Mutex
	set := func(name, status string) {
		resMu.Lock()
		defer resMu.Unlock()
		res.Checks[name] = status
		if status != "ok" {
			res.OK = false
		}
	}

	var g errgroup.Group
	for name, fn := range s.checks {
		name, fn := name, fn
		if fn == nil {
			set(name, "invalid check")
			continue
		}
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			if err := fn(cctx); err != nil {
				set(name, err.Error())
				return nil
			}
			set(name, "ok")
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	s.lastResult = res
	s.nextCheckAt = time.Now().Add(s.ttl)
	s.mu.Unlock()

	return res
}
