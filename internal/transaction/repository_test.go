package transaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront/kit/db"
	gateway "storefront/kit/external_payment_gateway"
)

func newRepo(t *testing.T) *DocumentRepository {
	t.Helper()
	client, err := db.NewMemoryClient(db.WithIndex(Collection, IndexedFields...))
	require.NoError(t, err)
	return NewDocumentRepository(client, nil)
}

func newTx(orderID, amount string) *Transaction {
	return &Transaction{
		OrderID:     orderID,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "INR",
		Environment: gateway.EnvTest,
	}
}

func TestDocumentRepository(t *testing.T) {
	ctx := context.Background()

	var tests = []struct {
		name string
		act  func(t *testing.T, r *DocumentRepository)
	}{
		{
			name: "create defaults status and payload",
			act: func(t *testing.T, r *DocumentRepository) {
				id, err := r.Create(ctx, newTx("O1", "100.00"))
				require.NoError(t, err)
				require.NotEmpty(t, id)

				got, err := r.Get(ctx, id)
				require.NoError(t, err)
				require.Equal(t, StatusInitiated, got.Status)
				require.Equal(t, map[string]any{}, got.GatewayResponse)
				require.Equal(t, "", got.GatewayOrderID)
				require.Equal(t, "100.00", got.Amount.StringFixed(2))
				require.Equal(t, gateway.EnvTest, got.Environment)
				require.False(t, got.CreatedAt.IsZero())
			},
		},
		{
			name: "create rejects missing order id and non positive amount",
			act: func(t *testing.T, r *DocumentRepository) {
				_, err := r.Create(ctx, newTx("", "10"))
				require.ErrorIs(t, err, db.ErrInvalid)
				_, err = r.Create(ctx, newTx("O1", "0"))
				require.ErrorIs(t, err, db.ErrInvalid)
				_, err = r.Create(ctx, newTx("O1", "-1"))
				require.ErrorIs(t, err, db.ErrInvalid)
			},
		},
		{
			name: "update merges payload and refuses status",
			act: func(t *testing.T, r *DocumentRepository) {
				id, err := r.Create(ctx, newTx("O1", "10"))
				require.NoError(t, err)

				require.NoError(t, r.Update(ctx, id, Patch{GatewayResponse: map[string]any{"note": "x", "dropped": nil}}))
				got, err := r.Get(ctx, id)
				require.NoError(t, err)
				require.Equal(t, map[string]any{"note": "x"}, got.GatewayResponse)

				err = r.Update(ctx, id, Patch{Status: StatusSucceeded})
				require.ErrorIs(t, err, ErrStatusViaUpdate)
				require.ErrorIs(t, r.Update(ctx, id, Patch{}), ErrEmptyPatch)
				require.ErrorIs(t, r.Update(ctx, "missing", Patch{GatewayResponse: map[string]any{}}), db.ErrNotFound)
			},
		},
		{
			name: "update if follows the lifecycle",
			act: func(t *testing.T, r *DocumentRepository) {
				id, err := r.Create(ctx, newTx("O1", "250"))
				require.NoError(t, err)

				require.NoError(t, r.UpdateIf(ctx, id, StatusInitiated, Patch{Status: StatusProcessing, GatewayOrderID: "G1", GatewayResponse: map[string]any{"state": "PENDING"}}))
				require.ErrorIs(t, r.UpdateIf(ctx, id, StatusInitiated, Patch{Status: StatusFailed}), db.ErrConflict)
				require.NoError(t, r.UpdateIf(ctx, id, StatusProcessing, Patch{Status: StatusSucceeded}))
				require.ErrorIs(t, r.UpdateIf(ctx, id, StatusProcessing, Patch{Status: StatusFailed}), db.ErrConflict)

				got, err := r.Get(ctx, id)
				require.NoError(t, err)
				require.Equal(t, StatusSucceeded, got.Status)
				require.Equal(t, "G1", got.GatewayOrderID)
				require.Equal(t, "PENDING", got.GatewayResponse["state"])
			},
		},
		{
			name: "update if rejects illegal transitions before writing",
			act: func(t *testing.T, r *DocumentRepository) {
				require.ErrorIs(t, r.UpdateIf(ctx, "any", StatusSucceeded, Patch{Status: StatusFailed}), ErrIllegalTransition)
				require.ErrorIs(t, r.UpdateIf(ctx, "any", StatusInitiated, Patch{Status: StatusSucceeded}), ErrIllegalTransition)
				require.ErrorIs(t, r.UpdateIf(ctx, "any", StatusProcessing, Patch{Status: StatusSucceeded, GatewayOrderID: "G2"}), ErrGatewayOrderIDSet)
				require.ErrorIs(t, r.UpdateIf(ctx, "missing", StatusProcessing, Patch{Status: StatusSucceeded}), db.ErrNotFound)
			},
		},
		{
			name: "find by gateway order id",
			act: func(t *testing.T, r *DocumentRepository) {
				id, err := r.Create(ctx, newTx("O1", "250"))
				require.NoError(t, err)
				require.NoError(t, r.UpdateIf(ctx, id, StatusInitiated, Patch{Status: StatusProcessing, GatewayOrderID: "G1"}))

				got, err := r.FindByGatewayOrderID(ctx, "G1")
				require.NoError(t, err)
				require.Equal(t, id, got.ID)

				got, err = r.FindByGatewayOrderID(ctx, "G404")
				require.NoError(t, err)
				require.Nil(t, got)

				_, err = r.FindByGatewayOrderID(ctx, "")
				require.ErrorIs(t, err, db.ErrInvalid)
			},
		},
		{
			name: "find by order id and list by status",
			act: func(t *testing.T, r *DocumentRepository) {
				first, err := r.Create(ctx, newTx("O1", "1"))
				require.NoError(t, err)
				second, err := r.Create(ctx, newTx("O1", "2"))
				require.NoError(t, err)
				_, err = r.Create(ctx, newTx("O2", "3"))
				require.NoError(t, err)
				require.NoError(t, r.UpdateIf(ctx, first, StatusInitiated, Patch{Status: StatusFailed}))

				txs, err := r.FindByOrderID(ctx, "O1")
				require.NoError(t, err)
				require.Len(t, txs, 2)
				require.Equal(t, first, txs[0].ID)
				require.Equal(t, second, txs[1].ID)

				initiated, err := r.ListByStatus(ctx, StatusInitiated)
				require.NoError(t, err)
				require.Len(t, initiated, 2)

				_, err = r.ListByStatus(ctx, Status("bogus"))
				require.ErrorIs(t, err, db.ErrInvalid)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRepo(t)
			tick := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
			r.now = func() time.Time {
				tick = tick.Add(time.Second)
				return tick
			}
			tt.act(t, r)
		})
	}
}

func TestDocumentRepository_BackendUnavailable(t *testing.T) {
	ctx := context.Background()
	client := &db.ClientMock{}
	unavailable := errors.Join(db.ErrUnavailable, errors.New("connection refused"))
	client.On("Put", mock.Anything, Collection, mock.Anything, mock.Anything).Return(unavailable)
	client.On("Query", mock.Anything, Collection, "gatewayOrderId", db.OpEqual, "G1").Return(nil, unavailable)

	r := NewDocumentRepository(client, nil)

	_, err := r.Create(ctx, newTx("O1", "10"))
	require.True(t, db.IsPersistence(err))

	_, err = r.FindByGatewayOrderID(ctx, "G1")
	require.True(t, db.IsPersistence(err))
	client.AssertExpectations(t)
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusInitiated, StatusProcessing, true},
		{StatusInitiated, StatusFailed, true},
		{StatusInitiated, StatusSucceeded, false},
		{StatusProcessing, StatusSucceeded, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusInitiated, false},
		{StatusSucceeded, StatusFailed, false},
		{StatusFailed, StatusSucceeded, false},
		{StatusFailed, StatusFailed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			require.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSanitize(t *testing.T) {
	in := map[string]any{
		"a": nil,
		"b": map[string]any{"c": nil, "d": 1},
		"e": []any{nil, "x"},
	}
	require.Equal(t, map[string]any{
		"b": map[string]any{"d": 1},
		"e": []any{"x"},
	}, Sanitize(in))
	require.Equal(t, map[string]any{}, Sanitize(nil))
}
