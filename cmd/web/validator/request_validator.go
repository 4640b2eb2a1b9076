package validator

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

var (
	ErrInvalidJSON  = errors.New("invalid json")
	ErrMissingParam = errors.New("missing path parameter")
)

type JSON struct {
	MaxBytes int64
}

func NewJSON() *JSON {
	return &JSON{MaxBytes: 1 << 20}
}

func (v *JSON) Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, v.MaxBytes)
	defer func() { _ = body.Close() }()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return ErrInvalidJSON
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ErrInvalidJSON
	}
	return nil
}

// Param returns the trimmed chi URL parameter name.
func Param(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	if v == "" {
		return "", ErrMissingParam
	}
	return v, nil
}
