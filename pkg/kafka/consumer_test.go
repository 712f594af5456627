package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeWriter struct {
	mu   sync.Mutex
	fail int
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail > 0 {
		w.fail--
		return errors.New("broker unavailable")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type countingHandler struct {
	topic string
	calls int
	err   error
}

func (h *countingHandler) Topic() string { return h.topic }

func (h *countingHandler) Handle(context.Context, []byte) error {
	h.calls++
	return h.err
}

func newTestConsumer(t *testing.T, h MessageHandler, dlq messageWriter) (*Consumer, *fakeReader) {
	t.Helper()
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
		WithConsumerDLQ("requests.dlq"),
	)
	require.NoError(t, err)
	c.RegisterHandler(h)
	r := &fakeReader{}
	c.readers[h.Topic()] = r
	c.dlq = dlq
	return c, r
}

func testMessage(topic string, offset int64) *message {
	km := kafka.Message{Topic: topic, Partition: 2, Offset: offset, Key: []byte("A-1"), Value: []byte(`{"sku":"A-1"}`)}
	return &message{topic: topic, data: km.Value, km: km}
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer()
	assert.Error(t, err)
}

func TestConsumerPermanentErrorSkipsRetriesAndParks(t *testing.T) {
	h := &countingHandler{topic: "requests", err: Permanent(errors.New("bad payload"))}
	dlq := &fakeWriter{}
	c, r := newTestConsumer(t, h, dlq)

	msg := testMessage("requests", 7)
	require.True(t, c.process(msg))
	c.commit(msg)

	assert.Equal(t, 1, h.calls)
	require.Len(t, dlq.msgs, 1)
	parked := dlq.msgs[0]
	assert.Equal(t, "requests.dlq", parked.Topic)
	assert.Equal(t, msg.data, parked.Value)
	headers := map[string]string{}
	for _, hd := range parked.Headers {
		headers[hd.Key] = string(hd.Value)
	}
	assert.Equal(t, "requests", headers["source_topic"])
	assert.Equal(t, "7", headers["source_offset"])
	assert.Equal(t, "bad payload", headers["error"])
	assert.Equal(t, []int64{7}, r.committed)
}

func TestConsumerRetriesTransientErrorsBeforeParking(t *testing.T) {
	h := &countingHandler{topic: "requests", err: errors.New("timeout")}
	dlq := &fakeWriter{fail: 1}
	c, _ := newTestConsumer(t, h, dlq)

	assert.True(t, c.process(testMessage("requests", 1)))
	assert.Equal(t, 3, h.calls)
	assert.Len(t, dlq.msgs, 1)
}

func TestConsumerSuccessDoesNotPark(t *testing.T) {
	h := &countingHandler{topic: "requests"}
	dlq := &fakeWriter{}
	c, _ := newTestConsumer(t, h, dlq)

	assert.True(t, c.process(testMessage("requests", 1)))
	assert.Equal(t, 1, h.calls)
	assert.Empty(t, dlq.msgs)
}

func TestConsumerStopLeavesUnparkedMessageUncommitted(t *testing.T) {
	h := &countingHandler{topic: "requests", err: Permanent(errors.New("bad payload"))}
	dlq := &fakeWriter{fail: 1 << 30}
	c, _ := newTestConsumer(t, h, dlq)
	close(c.stopChan)

	assert.False(t, c.process(testMessage("requests", 1)))
}

func TestConsumerQueueForPinsPartition(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerWorkers(4))
	require.NoError(t, err)

	for p := 0; p < 8; p++ {
		assert.Equal(t, c.queueFor("requests", p), c.queueFor("requests", p))
	}
	assert.Len(t, c.queues, 4)
}

func TestConsumerStopWithoutStart(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, c.Stop(ctx))
}
