package metrics

import (
	"sort"
	"strings"

	"storefront/kit/observability"
)

const prefix = "storefront_"

type Service struct {
	m *observability.Metrics
}

func NewService(m *observability.Metrics) *Service {
	return &Service{m: m}
}

// Snapshot returns the current value of every storefront counter. Labelled
// series are keyed as name:value, e.g. reconciler_outcomes:succeeded.
func (s *Service) Snapshot() (map[string]float64, error) {
	out := map[string]float64{}
	if s.m == nil {
		return out, nil
	}
	families, err := s.m.Registry().Gather()
	if err != nil {
		return nil, err
	}
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		name = strings.TrimSuffix(strings.TrimPrefix(name, prefix), "_total")
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			key := name
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetValue())
			}
			if len(labels) > 0 {
				sort.Strings(labels)
				key += ":" + strings.Join(labels, ",")
			}
			out[key] = m.GetCounter().GetValue()
		}
	}
	return out, nil
}

// Pairs flattens a snapshot into sorted key/value pairs for logging.
func Pairs(snap map[string]float64) []any {
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k, snap[k])
	}
	return out
}
