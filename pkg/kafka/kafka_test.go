package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"slotswapper/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// ────────────────────────────────────────────────
// Fakes
// ────────────────────────────────────────────────

type fakeWriter struct {
	mu       sync.Mutex
	written  []kafka.Message
	writeErr error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return w.writeErr
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.pending[0]
	r.pending = r.pending[1:]
	r.mu.Unlock()
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func buildMessage(t *testing.T) Message {
	t.Helper()
	msg, err := NewMessage().
		WithKey("req-1").
		WithValue(map[string]string{"type": "swap.proposed"}).
		WithEventType("swap.proposed").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return msg
}

// ────────────────────────────────────────────────
// Message builder
// ────────────────────────────────────────────────

func TestMessageBuilder(t *testing.T) {
	msg := buildMessage(t)

	if msg.GetEventID() == "" {
		t.Error("event id header was not generated")
	}
	if msg.GetEventType() != "swap.proposed" {
		t.Errorf("event type = %q", msg.GetEventType())
	}
	if _, ok := msg.GetHeader(HeaderTimestamp); !ok {
		t.Error("timestamp header missing")
	}

	var payload map[string]string
	if err := msg.DecodeValue(&payload); err != nil {
		t.Fatalf("DecodeValue() error = %v", err)
	}
	if payload["type"] != "swap.proposed" {
		t.Errorf("payload = %v", payload)
	}
}

func TestMessageBuilder_EncodingError(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	if err == nil {
		t.Fatal("Build() error = nil for unencodable value")
	}
}

func TestMessage_RetryCount(t *testing.T) {
	msg := Message{}
	for i := 1; i <= 12; i++ {
		msg.IncrementRetryCount()
		if got := msg.GetRetryCount(); got != i {
			t.Fatalf("GetRetryCount() = %d, want %d", got, i)
		}
	}
}

// ────────────────────────────────────────────────
// Error classification
// ────────────────────────────────────────────────

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		retries int
		want    bool
	}{
		{"nil", nil, 0, false},
		{"transient", NewTransientError("down", nil), 0, true},
		{"transient exhausted", NewTransientError("down", nil), 3, false},
		{"permanent", NewPermanentError("bad payload", nil), 0, false},
		{"connection refused text", errors.New("dial tcp: Connection Refused"), 1, true},
		{"deadline", context.DeadlineExceeded, 0, true},
		{"unknown", errors.New("boom"), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRetry(tt.err, tt.retries, 3); got != tt.want {
				t.Errorf("ShouldRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ────────────────────────────────────────────────
// Producer
// ────────────────────────────────────────────────

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, topic: "swap-events", log: logger.Discard()}

	var order []string
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		order = append(order, "outer:"+msg.Topic)
		return next(ctx, msg)
	})
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		order = append(order, "inner")
		return next(ctx, msg)
	})

	if err := p.Publish(context.Background(), buildMessage(t)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(w.written) != 1 {
		t.Fatalf("written = %d, want 1", len(w.written))
	}
	if string(w.written[0].Key) != "req-1" {
		t.Errorf("key = %q", w.written[0].Key)
	}
	if header(w.written[0], HeaderEventType) != "swap.proposed" {
		t.Error("event type header not forwarded")
	}
	if len(order) != 2 || order[0] != "outer:swap-events" || order[1] != "inner" {
		t.Errorf("middleware order = %v", order)
	}
}

func TestProducer_RejectsInvalid(t *testing.T) {
	p := &Producer{writer: &fakeWriter{}, topic: "t", log: logger.Discard()}

	if err := p.Publish(context.Background(), Message{Value: []byte("x")}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("empty key error = %v", err)
	}
	if err := p.Publish(context.Background(), Message{Key: "k"}); !errors.Is(err, ErrEmptyValue) {
		t.Errorf("empty value error = %v", err)
	}

	_ = p.Close()
	if err := p.Publish(context.Background(), buildMessage(t)); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("closed error = %v", err)
	}
}

func TestProducer_FailedWriteGoesToDLQ(t *testing.T) {
	writeErr := errors.New("broker unavailable")
	w := &fakeWriter{writeErr: writeErr}
	dlq := &fakeWriter{}
	p := &Producer{writer: w, dlqWriter: dlq, topic: "swap-events", log: logger.Discard()}

	err := p.Publish(context.Background(), buildMessage(t))
	if !errors.Is(err, writeErr) {
		t.Fatalf("Publish() error = %v, want %v", err, writeErr)
	}

	if len(dlq.written) != 1 {
		t.Fatalf("dlq written = %d, want 1", len(dlq.written))
	}
	if got := header(dlq.written[0], HeaderOriginalTopic); got != "swap-events" {
		t.Errorf("original topic header = %q", got)
	}
	if got := header(dlq.written[0], HeaderDLQError); got != writeErr.Error() {
		t.Errorf("dlq error header = %q", got)
	}
}

// ────────────────────────────────────────────────
// Consumer
// ────────────────────────────────────────────────

func TestConsumer_ProcessMessage_RetriesTransient(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, msg Message) error {
		calls++
		if calls < 3 {
			return NewTransientError("flaky", nil)
		}
		return nil
	}
	dlq := &fakeWriter{}
	c := newConsumer(&fakeReader{}, dlq, "swap-events", "g", 3, 0, handler, logger.Discard())

	if err := c.processMessage(context.Background(), buildMessage(t)); err != nil {
		t.Fatalf("processMessage() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("handler calls = %d, want 3", calls)
	}
	if len(dlq.written) != 0 {
		t.Errorf("dlq written = %d, want 0", len(dlq.written))
	}
}

func TestConsumer_ProcessMessage_PermanentGoesToDLQ(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, msg Message) error {
		calls++
		return NewPermanentError("cannot decode", nil)
	}
	dlq := &fakeWriter{}
	c := newConsumer(&fakeReader{}, dlq, "swap-events", "notifier", 3, 0, handler, logger.Discard())

	if err := c.processMessage(context.Background(), buildMessage(t)); err == nil {
		t.Fatal("processMessage() error = nil, want error")
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
	if len(dlq.written) != 1 {
		t.Fatalf("dlq written = %d, want 1", len(dlq.written))
	}
	if got := header(dlq.written[0], HeaderConsumerGroup); got != "notifier" {
		t.Errorf("consumer group header = %q", got)
	}
}

func TestConsumer_ProcessMessage_ExhaustsRetries(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, msg Message) error {
		calls++
		return NewTransientError("still down", nil)
	}
	dlq := &fakeWriter{}
	c := newConsumer(&fakeReader{}, dlq, "swap-events", "g", 2, 0, handler, logger.Discard())

	if err := c.processMessage(context.Background(), buildMessage(t)); err == nil {
		t.Fatal("processMessage() error = nil, want error")
	}
	if calls != 3 {
		t.Errorf("handler calls = %d, want 3 (1 + 2 retries)", calls)
	}
	if len(dlq.written) != 1 {
		t.Errorf("dlq written = %d, want 1", len(dlq.written))
	}
}

func TestConsumer_StartCommitsEveryMessage(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{
		{Key: []byte("a"), Value: []byte(`{}`), Offset: 1},
		{Key: []byte("b"), Value: []byte(`{}`), Offset: 2},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	handler := func(ctx context.Context, msg Message) error {
		seen = append(seen, msg.Key)
		if msg.Key == "b" {
			cancel()
			return NewPermanentError("bad", nil)
		}
		return nil
	}

	c := newConsumer(reader, nil, "swap-events", "g", 0, 0, handler, logger.Discard())

	err := c.Start(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Start() error = %v, want context.Canceled", err)
	}
	if len(seen) != 2 {
		t.Fatalf("handled = %v, want 2 messages", seen)
	}
	if len(reader.committed) != 2 {
		t.Errorf("committed = %d, want 2", len(reader.committed))
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
