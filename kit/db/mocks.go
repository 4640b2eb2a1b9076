package db

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type ClientMock struct {
	mock.Mock
	Client
}

func (m *ClientMock) Get(ctx context.Context, collection, id string) (Document, error) {
	ret := m.Called(ctx, collection, id)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(Document), ret.Error(1)
}

func (m *ClientMock) Put(ctx context.Context, collection, id string, doc Document) error {
	ret := m.Called(ctx, collection, id, doc)
	return ret.Error(0)
}

func (m *ClientMock) Patch(ctx context.Context, collection, id string, partial Document) error {
	ret := m.Called(ctx, collection, id, partial)
	return ret.Error(0)
}

func (m *ClientMock) PatchIf(ctx context.Context, collection, id string, cond Condition, partial Document) error {
	ret := m.Called(ctx, collection, id, cond, partial)
	return ret.Error(0)
}

func (m *ClientMock) Query(ctx context.Context, collection, field string, op Op, value any) ([]Document, error) {
	ret := m.Called(ctx, collection, field, op, value)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).([]Document), ret.Error(1)
}

func (m *ClientMock) Ping(ctx context.Context) error {
	ret := m.Called(ctx)
	return ret.Error(0)
}
