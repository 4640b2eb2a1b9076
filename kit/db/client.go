package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// Document is a schemaless record addressed by collection and id.
type Document map[string]any

type Op string

const OpEqual Op = "=="

// Condition guards a PatchIf: the stored Field must equal Value.
type Condition struct {
	Field string
	Value any
}

// Client is the document store every repository is built on. It offers single
// document operations only; PatchIf is the one conditional primitive.
type Client interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Put(ctx context.Context, collection, id string, doc Document) error
	Patch(ctx context.Context, collection, id string, partial Document) error
	PatchIf(ctx context.Context, collection, id string, cond Condition, partial Document) error
	Query(ctx context.Context, collection, field string, op Op, value any) ([]Document, error)
	Ping(ctx context.Context) error
}

var (
	ErrNilValue        = errors.New("document contains a nil value")
	ErrUnsupportedOp   = errors.New("unsupported query operator")
	ErrInvalidFieldRef = errors.New("invalid field name")
)

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateField(field string) error {
	if !fieldName.MatchString(field) {
		return errors.Join(ErrInvalid, fmt.Errorf("%w: %q", ErrInvalidFieldRef, field))
	}
	return nil
}

func validateOp(op Op) error {
	if op != OpEqual {
		return errors.Join(ErrInvalid, fmt.Errorf("%w: %s", ErrUnsupportedOp, op))
	}
	return nil
}

// checkNoNil rejects unset values at any depth; the backends never store them.
func checkNoNil(path string, v any) error {
	switch t := v.(type) {
	case nil:
		return errors.Join(ErrInvalid, fmt.Errorf("%w: %s", ErrNilValue, path))
	case Document:
		return checkNoNil(path, map[string]any(t))
	case map[string]any:
		if t == nil {
			return errors.Join(ErrInvalid, fmt.Errorf("%w: %s", ErrNilValue, path))
		}
		for k, vv := range t {
			if err := checkNoNil(path+"."+k, vv); err != nil {
				return err
			}
		}
	case []any:
		for i, vv := range t {
			if err := checkNoNil(fmt.Sprintf("%s[%d]", path, i), vv); err != nil {
				return err
			}
		}
	}
	return nil
}

// normalize validates doc and round-trips it through JSON so that every
// backend hands back the same value types.
func normalize(doc Document) (Document, error) {
	if doc == nil {
		return nil, errors.Join(ErrInvalid, ErrNilValue)
	}
	for k, v := range doc {
		if err := checkNoNil(k, v); err != nil {
			return nil, err
		}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Join(ErrInvalid, err)
	}
	var out Document
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errors.Join(ErrInternal, err)
	}
	return out, nil
}

func merge(dst, partial Document) Document {
	out := make(Document, len(dst)+len(partial))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// valueKey is the comparable form of a field value used for equality and indexes.
func valueKey(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func matches(doc Document, field string, value any) bool {
	v, ok := doc[field]
	if !ok {
		return false
	}
	return valueKey(v) == valueKey(value)
}
