package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookChainOrderAndThreading(t *testing.T) {
	var calls []string
	first := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			calls = append(calls, "before1")
			return WithTraceID(ctx, ExtractTraceID(km)), km, data, nil
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { calls = append(calls, "after1") },
	}
	second := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			calls = append(calls, "before2:"+TraceID(ctx))
			return ctx, km, append(data, '!'), nil
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { calls = append(calls, "after2") },
	}

	chain := NewHookChain(first, nil, second)
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("t-1")}}}

	ctx, _, data, err := chain.BeforeHandle(context.Background(), "topic", km, []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "t-1", TraceID(ctx))
	assert.Equal(t, "hi!", string(data))

	chain.AfterHandle(ctx, "topic", km, data, nil)
	assert.Equal(t, []string{"before1", "before2:t-1", "after2", "after1"}, calls)
}

func TestHookChainRecoversPanics(t *testing.T) {
	var onErr []error
	panicky := HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
		Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { onErr = append(onErr, err) },
	}

	_, _, _, err := NewHookChain(panicky).BeforeHandle(context.Background(), "topic", kafka.Message{}, nil)

	var herr *HookError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "ERR_PANIC", herr.Code)
	require.Len(t, onErr, 1)

	assert.NotPanics(t, func() {
		NewHookChain(HookFuncs{After: func(context.Context, string, kafka.Message, []byte, error) { panic("x") }}).
			AfterHandle(context.Background(), "topic", kafka.Message{}, nil, errors.New("e"))
	})
}

func TestStartTimeContext(t *testing.T) {
	now := time.Now()
	got, ok := StartTime(WithStartTime(context.Background(), now))
	require.True(t, ok)
	assert.Equal(t, now, got)

	_, ok = StartTime(context.Background())
	assert.False(t, ok)
	assert.Equal(t, context.Background(), WithTraceID(context.Background(), ""))
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 8; attempt++ {
		d := backoffWithJitter(50*time.Millisecond, 2*time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}

func TestPermanentErrors(t *testing.T) {
	base := errors.New("bad payload")
	err := fmt.Errorf("handle: %w", Permanent(base))

	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
	assert.Nil(t, Permanent(nil))
}
