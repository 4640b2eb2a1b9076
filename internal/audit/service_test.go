package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"storefront/internal/events"
	"storefront/kit/observability"
)

func TestService_Close(t *testing.T) {
	var tests = []struct {
		name string
		svc  func(t *testing.T) *Service
	}{
		{
			name: "close nil file",
			svc: func(t *testing.T) *Service {
				return NewService(observability.NewNopLogger())
			},
		},
		{
			name: "close with file",
			svc: func(t *testing.T) *Service {
				svc, err := NewServiceWithFile(observability.NewNopLogger(), filepath.Join(t.TempDir(), "audit.jsonl"))
				require.NoError(t, err)
				return svc
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := tt.svc(t)
			require.NoError(t, svc.Close())
			require.NoError(t, svc.Close())
		})
	}
}

func TestService_Record(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "audit.jsonl")
	svc, err := NewServiceWithFile(observability.NewNopLogger(), path)
	require.NoError(t, err)

	require.NoError(t, svc.Record(ctx, events.TransactionInitiated{TransactionID: "t1", OrderID: "O1", Amount: "10.00"}))
	require.NoError(t, svc.Record(ctx, events.OrderPaid{OrderID: "O1", TransactionID: "t1"}))
	require.NoError(t, svc.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, sc.Err())
	require.Len(t, entries, 2)
	require.Equal(t, "transaction.initiated", entries[0].Event)
	require.Equal(t, "t1", entries[0].Aggregate)
	require.Equal(t, "order.paid", entries[1].Event)
	require.Equal(t, "O1", entries[1].Aggregate)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(entries[0].Fields, &fields))
	require.Equal(t, "10.00", fields["amount"])
}

func TestService_RecordWithoutFile(t *testing.T) {
	svc := NewService(nil)
	require.NoError(t, svc.Record(context.Background(), events.OrderPaid{OrderID: "O1"}))
}
