package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type pingEvent struct{}

func (pingEvent) Name() string { return "ping" }

func TestBus_Publish(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		handlers []Handler
		wantErrs int
		wantRuns int
	}{
		{name: "no subscribers"},
		{
			name: "all succeed",
			handlers: []Handler{
				func(context.Context, Event) error { return nil },
				func(context.Context, Event) error { return nil },
			},
			wantRuns: 2,
		},
		{
			name: "error does not stop later handlers",
			handlers: []Handler{
				func(context.Context, Event) error { return boom },
				func(context.Context, Event) error { return nil },
			},
			wantErrs: 1,
			wantRuns: 2,
		},
		{
			name: "panic is recovered",
			handlers: []Handler{
				func(context.Context, Event) error { panic("bad") },
				func(context.Context, Event) error { return nil },
			},
			wantErrs: 1,
			wantRuns: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := New(nil)
			runs := 0
			for i, h := range tt.handlers {
				h := h
				bus.Subscribe("ping", "h"+string(rune('a'+i)), func(ctx context.Context, evt Event) error {
					runs++
					return h(ctx, evt)
				})
			}

			errs := bus.Publish(context.Background(), pingEvent{})

			require.Len(t, errs, tt.wantErrs)
			require.Equal(t, tt.wantRuns, runs)
		})
	}
}

func TestBus_PanicWrapsSentinel(t *testing.T) {
	bus := New(nil)
	bus.Subscribe("ping", "exploder", func(context.Context, Event) error { panic("bad") })

	errs := bus.Publish(context.Background(), pingEvent{})

	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrHandlerPanic)
}

func TestBus_Topics(t *testing.T) {
	bus := New(nil)
	bus.Subscribe("b", "x", func(context.Context, Event) error { return nil })
	bus.Subscribe("a", "y", func(context.Context, Event) error { return nil })

	require.Equal(t, []string{"a", "b"}, bus.Topics())
}
