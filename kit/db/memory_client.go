package db

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"storefront/kit/observability"
)

// MemoryClient is an in-process Client with optional JSON file persistence.
// Fields registered with WithIndex are served from a hash index.
type MemoryClient struct {
	mu sync.Mutex

	collections map[string]map[string]Document
	indexed     map[string]map[string]bool
	indexes     map[string]map[string]map[string]map[string]struct{}

	persistPath string
	logger      *observability.Logger
}

type MemoryOption func(*MemoryClient) error

func NewMemoryClient(opts ...MemoryOption) (*MemoryClient, error) {
	c := &MemoryClient{
		collections: make(map[string]map[string]Document),
		indexed:     make(map[string]map[string]bool),
		indexes:     make(map[string]map[string]map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.rebuildIndexesLocked()
	return c, nil
}

func WithIndex(collection string, fields ...string) MemoryOption {
	return func(c *MemoryClient) error {
		for _, f := range fields {
			if err := validateField(f); err != nil {
				return err
			}
			if c.indexed[collection] == nil {
				c.indexed[collection] = make(map[string]bool)
			}
			c.indexed[collection][f] = true
		}
		return nil
	}
}

func WithMemoryLogger(logger *observability.Logger) MemoryOption {
	return func(c *MemoryClient) error {
		c.logger = logger
		return nil
	}
}

// WithJSONFile loads the collections from path, if present, and rewrites the
// file after every mutation.
func WithJSONFile(path string) MemoryOption {
	return func(c *MemoryClient) error {
		c.persistPath = path
		b, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return errors.Join(ErrInternal, err)
		}
		if len(b) == 0 {
			return nil
		}
		var m map[string]map[string]Document
		if err := json.Unmarshal(b, &m); err != nil {
			return errors.Join(ErrInternal, err)
		}
		c.collections = m
		return nil
	}
}

func (c *MemoryClient) Get(ctx context.Context, collection, id string) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(doc), nil
}

func (c *MemoryClient) Put(ctx context.Context, collection, id string, doc Document) error {
	n, err := normalize(doc)
	if err != nil {
		c.logError("Put", collection, id, err)
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitLocked(collection, id, n)
}

func (c *MemoryClient) Patch(ctx context.Context, collection, id string, partial Document) error {
	n, err := normalize(partial)
	if err != nil {
		c.logError("Patch", collection, id, err)
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	return c.commitLocked(collection, id, merge(cur, n))
}

func (c *MemoryClient) PatchIf(ctx context.Context, collection, id string, cond Condition, partial Document) error {
	if err := validateField(cond.Field); err != nil {
		return err
	}
	n, err := normalize(partial)
	if err != nil {
		c.logError("PatchIf", collection, id, err)
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	if !matches(cur, cond.Field, cond.Value) {
		return ErrConflict
	}
	return c.commitLocked(collection, id, merge(cur, n))
}

func (c *MemoryClient) Query(ctx context.Context, collection, field string, op Op, value any) ([]Document, error) {
	if err := validateOp(op); err != nil {
		return nil, err
	}
	if err := validateField(field); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []string
	if c.indexed[collection][field] {
		for id := range c.indexes[collection][field][valueKey(value)] {
			ids = append(ids, id)
		}
	} else {
		for id, doc := range c.collections[collection] {
			if matches(doc, field, value) {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)

	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyDocument(c.collections[collection][id]))
	}
	return out, nil
}

func (c *MemoryClient) Ping(ctx context.Context) error {
	return ctx.Err()
}

// commitLocked applies doc and persists. A failed persist restores the
// previous document so memory never holds a write reported as failed.
func (c *MemoryClient) commitLocked(collection, id string, doc Document) error {
	old, existed := c.collections[collection][id]
	c.writeLocked(collection, id, doc)
	err := c.persistLocked()
	if err == nil {
		return nil
	}
	if existed {
		c.writeLocked(collection, id, old)
	} else {
		c.unindexLocked(collection, id, doc)
		delete(c.collections[collection], id)
	}
	return err
}

func (c *MemoryClient) writeLocked(collection, id string, doc Document) {
	if old, ok := c.collections[collection][id]; ok {
		c.unindexLocked(collection, id, old)
	}
	if c.collections[collection] == nil {
		c.collections[collection] = make(map[string]Document)
	}
	c.collections[collection][id] = doc
	c.indexLocked(collection, id, doc)
}

func (c *MemoryClient) indexLocked(collection, id string, doc Document) {
	for field := range c.indexed[collection] {
		v, ok := doc[field]
		if !ok {
			continue
		}
		if c.indexes[collection] == nil {
			c.indexes[collection] = make(map[string]map[string]map[string]struct{})
		}
		if c.indexes[collection][field] == nil {
			c.indexes[collection][field] = make(map[string]map[string]struct{})
		}
		k := valueKey(v)
		if c.indexes[collection][field][k] == nil {
			c.indexes[collection][field][k] = make(map[string]struct{})
		}
		c.indexes[collection][field][k][id] = struct{}{}
	}
}

func (c *MemoryClient) unindexLocked(collection, id string, doc Document) {
	for field := range c.indexed[collection] {
		v, ok := doc[field]
		if !ok {
			continue
		}
		delete(c.indexes[collection][field][valueKey(v)], id)
	}
}

func (c *MemoryClient) rebuildIndexesLocked() {
	c.indexes = make(map[string]map[string]map[string]map[string]struct{})
	for collection, docs := range c.collections {
		for id, doc := range docs {
			c.indexLocked(collection, id, doc)
		}
	}
}

func (c *MemoryClient) persistLocked() error {
	if c.persistPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.persistPath), 0o755); err != nil {
		c.logError("persistLocked", "", c.persistPath, err)
		return errors.Join(ErrInternal, err)
	}

	b, err := json.MarshalIndent(c.collections, "", "  ")
	if err != nil {
		c.logError("persistLocked", "", c.persistPath, err)
		return errors.Join(ErrInternal, err)
	}
	b = append(b, '\n')

	tmp := c.persistPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		c.logError("persistLocked", "", c.persistPath, err)
		return errors.Join(ErrInternal, err)
	}
	if err := os.Rename(tmp, c.persistPath); err != nil {
		c.logError("persistLocked", "", c.persistPath, err)
		return errors.Join(ErrInternal, err)
	}
	return nil
}

func (c *MemoryClient) logError(method, collection, id string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Error("db error", "layer", "client", "component", "db", "client", "memory", "method", method, "collection", collection, "id", id, "error", err.Error())
}

func copyDocument(doc Document) Document {
	b, err := json.Marshal(doc)
	if err != nil {
		return merge(Document{}, doc)
	}
	var out Document
	if err := json.Unmarshal(b, &out); err != nil {
		return merge(Document{}, doc)
	}
	return out
}
