package db

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// clientContract runs the behaviour every Client backend must share.
func clientContract(t *testing.T, newClient func(t *testing.T) Client) {
	ctx := context.Background()

	var tests = []struct {
		name string
		act  func(t *testing.T, c Client)
	}{
		{
			name: "get missing returns not found",
			act: func(t *testing.T, c Client) {
				_, err := c.Get(ctx, "transactions", "nope")
				require.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name: "put then get round trips",
			act: func(t *testing.T, c Client) {
				require.NoError(t, c.Put(ctx, "transactions", "t1", Document{"status": "initiated", "amount": "100.00", "meta": map[string]any{"k": "v"}}))
				doc, err := c.Get(ctx, "transactions", "t1")
				require.NoError(t, err)
				require.Equal(t, "initiated", doc["status"])
				require.Equal(t, "100.00", doc["amount"])
				require.Equal(t, map[string]any{"k": "v"}, doc["meta"])
			},
		},
		{
			name: "put rejects nil values",
			act: func(t *testing.T, c Client) {
				err := c.Put(ctx, "transactions", "t1", Document{"status": nil})
				require.ErrorIs(t, err, ErrInvalid)
				require.ErrorIs(t, err, ErrNilValue)

				err = c.Put(ctx, "transactions", "t1", Document{"nested": map[string]any{"x": nil}})
				require.ErrorIs(t, err, ErrNilValue)
			},
		},
		{
			name: "patch merges and keeps other fields",
			act: func(t *testing.T, c Client) {
				require.NoError(t, c.Put(ctx, "transactions", "t1", Document{"status": "initiated", "orderId": "o1"}))
				require.NoError(t, c.Patch(ctx, "transactions", "t1", Document{"status": "processing"}))
				doc, err := c.Get(ctx, "transactions", "t1")
				require.NoError(t, err)
				require.Equal(t, "processing", doc["status"])
				require.Equal(t, "o1", doc["orderId"])
			},
		},
		{
			name: "patch missing returns not found",
			act: func(t *testing.T, c Client) {
				require.ErrorIs(t, c.Patch(ctx, "transactions", "nope", Document{"a": "b"}), ErrNotFound)
			},
		},
		{
			name: "patch if applies only when condition holds",
			act: func(t *testing.T, c Client) {
				require.NoError(t, c.Put(ctx, "transactions", "t1", Document{"status": "processing"}))

				err := c.PatchIf(ctx, "transactions", "t1", Condition{Field: "status", Value: "initiated"}, Document{"status": "succeeded"})
				require.ErrorIs(t, err, ErrConflict)

				require.NoError(t, c.PatchIf(ctx, "transactions", "t1", Condition{Field: "status", Value: "processing"}, Document{"status": "succeeded"}))
				doc, err := c.Get(ctx, "transactions", "t1")
				require.NoError(t, err)
				require.Equal(t, "succeeded", doc["status"])

				err = c.PatchIf(ctx, "transactions", "nope", Condition{Field: "status", Value: "processing"}, Document{"status": "succeeded"})
				require.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name: "patch if rejects bad field names",
			act: func(t *testing.T, c Client) {
				err := c.PatchIf(ctx, "transactions", "t1", Condition{Field: "status' OR 1=1", Value: "x"}, Document{"a": "b"})
				require.ErrorIs(t, err, ErrInvalidFieldRef)
			},
		},
		{
			name: "query by indexed and unindexed fields",
			act: func(t *testing.T, c Client) {
				require.NoError(t, c.Put(ctx, "transactions", "t2", Document{"status": "processing", "orderId": "o1", "note": "x"}))
				require.NoError(t, c.Put(ctx, "transactions", "t1", Document{"status": "processing", "orderId": "o1", "note": "y"}))
				require.NoError(t, c.Put(ctx, "transactions", "t3", Document{"status": "failed", "orderId": "o2", "note": "x"}))

				docs, err := c.Query(ctx, "transactions", "orderId", OpEqual, "o1")
				require.NoError(t, err)
				require.Len(t, docs, 2)

				docs, err = c.Query(ctx, "transactions", "note", OpEqual, "x")
				require.NoError(t, err)
				require.Len(t, docs, 2)

				require.NoError(t, c.Patch(ctx, "transactions", "t1", Document{"orderId": "o3"}))
				docs, err = c.Query(ctx, "transactions", "orderId", OpEqual, "o1")
				require.NoError(t, err)
				require.Len(t, docs, 1)

				docs, err = c.Query(ctx, "transactions", "orderId", OpEqual, "none")
				require.NoError(t, err)
				require.Empty(t, docs)
			},
		},
		{
			name: "query rejects unsupported operators",
			act: func(t *testing.T, c Client) {
				_, err := c.Query(ctx, "transactions", "status", Op(">"), "a")
				require.ErrorIs(t, err, ErrUnsupportedOp)
			},
		},
		{
			name: "ping",
			act: func(t *testing.T, c Client) {
				require.NoError(t, c.Ping(ctx))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.act(t, newClient(t))
		})
	}
}

func TestMemoryClient(t *testing.T) {
	clientContract(t, func(t *testing.T) Client {
		c, err := NewMemoryClient(WithIndex("transactions", "orderId", "status"))
		require.NoError(t, err)
		return c
	})
}

func TestMemoryClient_PatchIfSingleWinner(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryClient()
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "transactions", "t1", Document{"status": "processing"}))

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.PatchIf(ctx, "transactions", "t1", Condition{Field: "status", Value: "processing"}, Document{"status": "succeeded"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
	require.Len(t, errs, workers-1)
	for _, err := range errs {
		require.ErrorIs(t, err, ErrConflict)
	}
}

func TestMemoryClient_JSONFile(t *testing.T) {
	ctx := context.Background()

	var tests = []struct {
		name string
		act  func(t *testing.T, path string)
	}{
		{
			name: "persists and reloads with indexes",
			act: func(t *testing.T, path string) {
				c, err := NewMemoryClient(WithJSONFile(path), WithIndex("transactions", "orderId"))
				require.NoError(t, err)
				require.NoError(t, c.Put(ctx, "transactions", "t1", Document{"orderId": "o1"}))

				c2, err := NewMemoryClient(WithJSONFile(path), WithIndex("transactions", "orderId"))
				require.NoError(t, err)
				docs, err := c2.Query(ctx, "transactions", "orderId", OpEqual, "o1")
				require.NoError(t, err)
				require.Len(t, docs, 1)
			},
		},
		{
			name: "invalid json returns internal error",
			act: func(t *testing.T, path string) {
				require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
				require.NoError(t, os.WriteFile(path, []byte("not-json"), 0o644))
				_, err := NewMemoryClient(WithJSONFile(path))
				require.ErrorIs(t, err, ErrInternal)
			},
		},
		{
			name: "failed persist leaves memory unchanged",
			act: func(t *testing.T, path string) {
				c, err := NewMemoryClient(WithJSONFile(path), WithIndex("transactions", "status"))
				require.NoError(t, err)
				require.NoError(t, c.Put(ctx, "transactions", "t1", Document{"status": "processing"}))

				// a plain file where the data directory should be makes every persist fail
				dir := filepath.Dir(path)
				require.NoError(t, os.RemoveAll(dir))
				require.NoError(t, os.WriteFile(dir, []byte("x"), 0o644))

				err = c.PatchIf(ctx, "transactions", "t1", Condition{Field: "status", Value: "processing"}, Document{"status": "succeeded"})
				require.ErrorIs(t, err, ErrInternal)
				doc, err := c.Get(ctx, "transactions", "t1")
				require.NoError(t, err)
				require.Equal(t, "processing", doc["status"])
				succeeded, err := c.Query(ctx, "transactions", "status", OpEqual, "succeeded")
				require.NoError(t, err)
				require.Empty(t, succeeded)
				processing, err := c.Query(ctx, "transactions", "status", OpEqual, "processing")
				require.NoError(t, err)
				require.Len(t, processing, 1)

				require.ErrorIs(t, c.Patch(ctx, "transactions", "t1", Document{"status": "failed"}), ErrInternal)
				require.ErrorIs(t, c.Put(ctx, "transactions", "t2", Document{"status": "initiated"}), ErrInternal)
				_, err = c.Get(ctx, "transactions", "t2")
				require.ErrorIs(t, err, ErrNotFound)
				doc, err = c.Get(ctx, "transactions", "t1")
				require.NoError(t, err)
				require.Equal(t, "processing", doc["status"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.act(t, filepath.Join(t.TempDir(), "data", "documents.json"))
		})
	}
}

func TestMemoryClient_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryClient()
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "orders", "o1", Document{"status": "pending"}))

	doc, err := c.Get(ctx, "orders", "o1")
	require.NoError(t, err)
	doc["status"] = "mutated"

	again, err := c.Get(ctx, "orders", "o1")
	require.NoError(t, err)
	require.Equal(t, "pending", again["status"])
}
