package transaction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"storefront/kit/db"
	"storefront/kit/observability"
)

const Collection = "transactions"

// IndexedFields are the fields every backend must index for this collection.
var IndexedFields = []string{fieldGatewayOrderID, fieldOrderID, fieldStatus}

var (
	ErrStatusViaUpdate   = errors.New("status changes require UpdateIf")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrEmptyPatch        = errors.New("empty patch")
	ErrGatewayOrderIDSet = errors.New("gateway order id is written only when leaving initiated")
)

type DocumentRepository struct {
	db     db.Client
	logger *observability.Logger
	now    func() time.Time
	newID  func() string
}

func NewDocumentRepository(client db.Client, logger *observability.Logger) *DocumentRepository {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &DocumentRepository{
		db:     client,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (r *DocumentRepository) Create(ctx context.Context, t *Transaction) (string, error) {
	if t == nil || t.OrderID == "" || !t.Amount.IsPositive() {
		return "", errors.Join(db.ErrInvalid, errors.New("transaction requires order id and positive amount"))
	}
	if t.Status == "" {
		t.Status = StatusInitiated
	}
	if t.Status != StatusInitiated {
		return "", errors.Join(db.ErrInvalid, fmt.Errorf("transaction must be created %s, got %s", StatusInitiated, t.Status))
	}

	now := r.now().UTC()
	t.ID = r.newID()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.GatewayResponse == nil {
		t.GatewayResponse = map[string]any{}
	}

	if err := r.db.Put(ctx, Collection, t.ID, toDocument(t)); err != nil {
		r.logger.Error("create transaction failed", "layer", "repo", "component", "transaction", "method", "Create",
			"order_id", t.OrderID, "error", err.Error())
		return "", err
	}
	return t.ID, nil
}

// Update merges p into the stored record. Status changes are refused here;
// they only go through UpdateIf.
func (r *DocumentRepository) Update(ctx context.Context, id string, p Patch) error {
	if p.Status != "" {
		return errors.Join(db.ErrInvalid, ErrStatusViaUpdate)
	}
	if p.GatewayOrderID != "" {
		return errors.Join(db.ErrInvalid, ErrGatewayOrderIDSet)
	}
	if p.empty() {
		return errors.Join(db.ErrInvalid, ErrEmptyPatch)
	}
	if err := r.db.Patch(ctx, Collection, id, patchDocument(p, r.now())); err != nil {
		if !db.IsNotFound(err) {
			r.logger.Error("update transaction failed", "layer", "repo", "component", "transaction", "method", "Update",
				"transaction_id", id, "error", err.Error())
		}
		return err
	}
	return nil
}

// UpdateIf applies p only while the stored status equals expected.
// A mismatch yields db.ErrConflict; an unknown id db.ErrNotFound.
func (r *DocumentRepository) UpdateIf(ctx context.Context, id string, expected Status, p Patch) error {
	if p.empty() {
		return errors.Join(db.ErrInvalid, ErrEmptyPatch)
	}
	if p.Status != "" && !expected.CanTransitionTo(p.Status) {
		return errors.Join(db.ErrInvalid, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, expected, p.Status))
	}
	if p.GatewayOrderID != "" && expected != StatusInitiated {
		return errors.Join(db.ErrInvalid, ErrGatewayOrderIDSet)
	}

	cond := db.Condition{Field: fieldStatus, Value: string(expected)}
	if err := r.db.PatchIf(ctx, Collection, id, cond, patchDocument(p, r.now())); err != nil {
		if !db.IsNotFound(err) && !db.IsConflict(err) {
			r.logger.Error("conditional update failed", "layer", "repo", "component", "transaction", "method", "UpdateIf",
				"transaction_id", id, "expected", string(expected), "error", err.Error())
		}
		return err
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (*Transaction, error) {
	doc, err := r.db.Get(ctx, Collection, id)
	if err != nil {
		if !db.IsNotFound(err) {
			r.logger.Error("get transaction failed", "layer", "repo", "component", "transaction", "method", "Get",
				"transaction_id", id, "error", err.Error())
		}
		return nil, err
	}
	return fromDocument(doc)
}

// FindByGatewayOrderID returns (nil, nil) when no transaction carries the id.
func (r *DocumentRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Transaction, error) {
	if gatewayOrderID == "" {
		return nil, errors.Join(db.ErrInvalid, errors.New("gateway order id required"))
	}
	txs, err := r.query(ctx, "FindByGatewayOrderID", fieldGatewayOrderID, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	if len(txs) > 1 {
		r.logger.Error("gateway order id shared by several transactions", "layer", "repo", "component", "transaction",
			"method", "FindByGatewayOrderID", "gateway_order_id", gatewayOrderID, "count", len(txs))
	}
	return txs[0], nil
}

func (r *DocumentRepository) FindByOrderID(ctx context.Context, orderID string) ([]*Transaction, error) {
	return r.query(ctx, "FindByOrderID", fieldOrderID, orderID)
}

func (r *DocumentRepository) ListByStatus(ctx context.Context, status Status) ([]*Transaction, error) {
	if !status.Valid() {
		return nil, errors.Join(db.ErrInvalid, fmt.Errorf("unknown status %q", status))
	}
	return r.query(ctx, "ListByStatus", fieldStatus, string(status))
}

// query returns matches oldest first.
func (r *DocumentRepository) query(ctx context.Context, method, field, value string) ([]*Transaction, error) {
	docs, err := r.db.Query(ctx, Collection, field, db.OpEqual, value)
	if err != nil {
		r.logger.Error("query transactions failed", "layer", "repo", "component", "transaction", "method", method,
			"field", field, "error", err.Error())
		return nil, err
	}
	out := make([]*Transaction, 0, len(docs))
	for _, doc := range docs {
		t, err := fromDocument(doc)
		if err != nil {
			r.logger.Error("decode transaction failed", "layer", "repo", "component", "transaction", "method", method,
				"error", err.Error())
			return nil, err
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
