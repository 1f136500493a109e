package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aalemi-dev/eventpipe/encoder"
	"github.com/aalemi-dev/eventpipe/kafka"
	"github.com/aalemi-dev/eventpipe/observability"
	"github.com/aalemi-dev/eventpipe/publisher"
	"github.com/aalemi-dev/eventpipe/schema_registry"
	"github.com/aalemi-dev/eventpipe/tracer"
)

const orderSchema = `{
  "type": "record",
  "name": "Order",
  "fields": [
    {"name": "customer", "type": "string"},
    {"name": "amount", "type": "int"}
  ]
}`

// ── test doubles ──────────────────────────────────────────────────────────────

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) EnsureReady(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBroker) Send(ctx context.Context, msg kafka.Message) (kafka.Ack, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(kafka.Ack), args.Error(1)
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, subject string) (schema_registry.Descriptor, error) {
	args := m.Called(ctx, subject)
	return args.Get(0).(schema_registry.Descriptor), args.Error(1)
}

// countingRegistry is a Registry that counts register-or-fetch calls and
// answers after a short delay so concurrent misses overlap.
type countingRegistry struct {
	registrations atomic.Int32
}

func (r *countingRegistry) RegisterSchema(context.Context, string, string, string) (int, error) {
	r.registrations.Add(1)
	time.Sleep(50 * time.Millisecond)
	return 7, nil
}

func (r *countingRegistry) GetSchemaByID(context.Context, int) (string, error) {
	return orderSchema, nil
}

func (r *countingRegistry) GetLatestSchema(context.Context, string) (*schema_registry.Metadata, error) {
	return nil, schema_registry.ErrSubjectNotFound
}

func (r *countingRegistry) CheckCompatibility(context.Context, string, string, string) (bool, error) {
	return true, nil
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []observability.OperationContext
}

func (o *recordingObserver) ObserveOperation(ctx observability.OperationContext) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, ctx)
}

func newEncoder(t *testing.T, codec encoder.Codec) *encoder.Encoder {
	t.Helper()
	enc, err := encoder.New(encoder.Config{Codec: codec})
	require.NoError(t, err)
	return enc
}

func orderDescriptor() schema_registry.Descriptor {
	return schema_registry.Descriptor{ID: 7, Subject: "orders-value", Schema: orderSchema, Type: schema_registry.SchemaTypeAvro}
}

func requireKind(t *testing.T, err error, kind publisher.Kind) *publisher.Error {
	t.Helper()
	require.Error(t, err)
	var perr *publisher.Error
	require.True(t, errors.As(err, &perr), "expected *publisher.Error, got %T: %v", err, err)
	assert.Equal(t, kind, perr.Kind, "error: %v", err)
	assert.Equal(t, kind, publisher.KindOf(err))
	return perr
}

// ── pipeline ──────────────────────────────────────────────────────────────────

func TestPublishJSONSkipsRegistry(t *testing.T) {
	t.Parallel()

	resolver := &mockResolver{}
	broker := &mockBroker{}
	broker.On("EnsureReady", mock.Anything).Return(nil).Once()
	broker.On("Send", mock.Anything, mock.MatchedBy(func(msg kafka.Message) bool {
		var v map[string]interface{}
		return msg.Topic == "orders" &&
			string(msg.Key) == "SO-1" &&
			json.Unmarshal(msg.Value, &v) == nil &&
			v["customer"] == "Acme" && v["amount"] == float64(10)
	})).Return(kafka.Ack{Topic: "orders", Partition: 1, Offset: 41, Timestamp: time.Unix(1700000000, 0)}, nil).Once()

	pub, err := publisher.New(publisher.Config{}, resolver, newEncoder(t, encoder.CodecJSON), broker)
	require.NoError(t, err)

	res, err := pub.Publish(context.Background(), encoder.Event{
		Topic: "orders",
		Key:   []byte("SO-1"),
		Value: map[string]interface{}{"customer": "Acme", "amount": 10},
	})
	require.NoError(t, err)

	assert.Equal(t, "orders", res.Topic)
	assert.Equal(t, 1, res.Partition)
	assert.Equal(t, int64(41), res.Offset)
	assert.Equal(t, "orders-value", res.Subject)
	assert.Zero(t, res.SchemaID)
	broker.AssertExpectations(t)
	resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestPublishBinary(t *testing.T) {
	t.Parallel()

	resolver := &mockResolver{}
	resolver.On("Resolve", mock.Anything, "orders-value").Return(orderDescriptor(), nil).Once()
	broker := &mockBroker{}
	broker.On("EnsureReady", mock.Anything).Return(nil)
	broker.On("Send", mock.Anything, mock.MatchedBy(func(msg kafka.Message) bool {
		// magic byte, id 7, then the Avro record.
		return len(msg.Value) > 5 && msg.Value[0] == 0 && msg.Value[4] == 7
	})).Return(kafka.Ack{Topic: "orders", Offset: 3}, nil)

	pub, err := publisher.New(publisher.Config{}, resolver, newEncoder(t, encoder.CodecBinary), broker)
	require.NoError(t, err)

	res, err := pub.Publish(context.Background(), encoder.Event{
		Topic: "orders",
		Value: map[string]interface{}{"customer": "Acme", "amount": 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, res.SchemaID)
	resolver.AssertExpectations(t)
	broker.AssertExpectations(t)
}

func TestPublishEncodingFailureNeverSends(t *testing.T) {
	t.Parallel()

	resolver := &mockResolver{}
	resolver.On("Resolve", mock.Anything, "orders-value").Return(orderDescriptor(), nil)
	broker := &mockBroker{}

	pub, err := publisher.New(publisher.Config{}, resolver, newEncoder(t, encoder.CodecBinary), broker)
	require.NoError(t, err)

	_, err = pub.Publish(context.Background(), encoder.Event{
		Topic: "orders",
		Key:   []byte("SO-1"),
		Value: map[string]interface{}{"customer": "Acme"},
	})
	perr := requireKind(t, err, publisher.KindEncoding)
	assert.Equal(t, "orders", perr.Topic)
	assert.Equal(t, "orders-value", perr.Subject)
	assert.False(t, perr.Kind.Retryable())

	var encErr *encoder.EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, "amount", encErr.Field)

	broker.AssertNotCalled(t, "EnsureReady", mock.Anything)
	broker.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestPublishResolveFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		callerAlive bool
		want        publisher.Kind
	}{
		{"registry unreachable", fmt.Errorf("%w: connection refused", schema_registry.ErrSchemaUnavailable), true, publisher.KindSchemaUnavailable},
		{"schema rejected", fmt.Errorf("%w: incompatible", schema_registry.ErrSchemaRejected), true, publisher.KindSchemaUnavailable},
		{"registry client timeout", fmt.Errorf("%w: %w", schema_registry.ErrSchemaUnavailable, context.DeadlineExceeded), true, publisher.KindSchemaUnavailable},
		{"caller deadline", context.DeadlineExceeded, false, publisher.KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			if !tt.callerAlive {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Nanosecond)
				defer cancel()
				<-ctx.Done()
			}

			resolver := &mockResolver{}
			resolver.On("Resolve", mock.Anything, "orders-value").Return(schema_registry.Descriptor{}, tt.err)
			broker := &mockBroker{}

			pub, err := publisher.New(publisher.Config{}, resolver, newEncoder(t, encoder.CodecBinary), broker)
			require.NoError(t, err)

			_, err = pub.Publish(ctx, encoder.Event{Topic: "orders", Value: map[string]interface{}{}})
			perr := requireKind(t, err, tt.want)
			assert.True(t, perr.Kind.Retryable())
			assert.ErrorIs(t, err, tt.err)
			broker.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestPublishConnectionFailure(t *testing.T) {
	t.Parallel()

	broker := &mockBroker{}
	broker.On("EnsureReady", mock.Anything).Return(fmt.Errorf("%w: gave up after 5 attempts", kafka.ErrConnection))

	pub, err := publisher.New(publisher.Config{}, nil, newEncoder(t, encoder.CodecJSON), broker)
	require.NoError(t, err)

	_, err = pub.Publish(context.Background(), encoder.Event{Topic: "orders", Value: map[string]interface{}{"a": 1}})
	requireKind(t, err, publisher.KindConnection)
	assert.ErrorIs(t, err, kafka.ErrConnection)
	broker.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestPublishSendFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want publisher.Kind
	}{
		{"unknown topic", fmt.Errorf("produce to orders: %w", kafka.ErrTopicNotFound), publisher.KindSend},
		{"broker went away", fmt.Errorf("produce to orders: %w", kafka.ErrConnectionLost), publisher.KindConnection},
		{"produce deadline", fmt.Errorf("produce to orders: %w", context.DeadlineExceeded), publisher.KindTimeout},
		{"closed while sending", kafka.ErrClosed, publisher.KindConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			broker := &mockBroker{}
			broker.On("EnsureReady", mock.Anything).Return(nil)
			broker.On("Send", mock.Anything, mock.Anything).Return(kafka.Ack{}, tt.err)

			pub, err := publisher.New(publisher.Config{}, nil, newEncoder(t, encoder.CodecJSON), broker)
			require.NoError(t, err)

			_, err = pub.Publish(context.Background(), encoder.Event{Topic: "orders", Value: "{}"})
			requireKind(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPublishRequiresTopic(t *testing.T) {
	t.Parallel()

	broker := &mockBroker{}
	pub, err := publisher.New(publisher.Config{}, nil, newEncoder(t, encoder.CodecJSON), broker)
	require.NoError(t, err)

	_, err = pub.Publish(context.Background(), encoder.Event{Value: 1})
	requireKind(t, err, publisher.KindValidation)
	assert.ErrorIs(t, err, publisher.ErrValidation)
	broker.AssertNotCalled(t, "EnsureReady", mock.Anything)
}

func TestPublishTimeoutAppliesWithoutCallerDeadline(t *testing.T) {
	t.Parallel()

	broker := &mockBroker{}
	broker.On("EnsureReady", mock.Anything).Return(nil)
	broker.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return(kafka.Ack{}, context.DeadlineExceeded)

	pub, err := publisher.New(publisher.Config{PublishTimeout: 20 * time.Millisecond}, nil, newEncoder(t, encoder.CodecJSON), broker)
	require.NoError(t, err)

	_, err = pub.Publish(context.Background(), encoder.Event{Topic: "orders", Value: 1})
	perr := requireKind(t, err, publisher.KindTimeout)
	assert.True(t, perr.Kind.Retryable())
}

func TestNewRequiresResolverForBinary(t *testing.T) {
	t.Parallel()

	_, err := publisher.New(publisher.Config{}, nil, newEncoder(t, encoder.CodecBinary), &mockBroker{})
	assert.Error(t, err)

	_, err = publisher.New(publisher.Config{}, nil, newEncoder(t, encoder.CodecRaw), nil)
	assert.Error(t, err)
}

func TestSubjectFor(t *testing.T) {
	t.Parallel()

	pub, err := publisher.New(publisher.Config{}, nil, newEncoder(t, encoder.CodecJSON), &mockBroker{})
	require.NoError(t, err)
	assert.Equal(t, "orders-value", pub.SubjectFor("orders"))

	pub, err = publisher.New(publisher.Config{SubjectSuffix: ".v1"}, nil, newEncoder(t, encoder.CodecJSON), &mockBroker{})
	require.NoError(t, err)
	assert.Equal(t, "orders.v1", pub.SubjectFor("orders"))
}

// ── concurrency ───────────────────────────────────────────────────────────────

func TestConcurrentPublishesShareOneRegistration(t *testing.T) {
	t.Parallel()

	registry := &countingRegistry{}
	cache := schema_registry.NewCache(registry, schema_registry.StaticSource{
		Schemas: map[string]string{"orders-value": orderSchema},
	})
	broker := &mockBroker{}
	broker.On("EnsureReady", mock.Anything).Return(nil)
	broker.On("Send", mock.Anything, mock.Anything).Return(kafka.Ack{Topic: "orders"}, nil)

	pub, err := publisher.New(publisher.Config{}, cache, newEncoder(t, encoder.CodecBinary), broker)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]publisher.Result, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = pub.Publish(context.Background(), encoder.Event{
				Topic: "orders",
				Key:   []byte(fmt.Sprintf("SO-%d", i)),
				Value: map[string]interface{}{"customer": "Acme", "amount": i},
			})
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, 7, results[i].SchemaID)
	}
	assert.Equal(t, int32(1), registry.registrations.Load())
}

// orderedBroker records the order values are sent in. Sends of the value
// "block" wait for release.
type orderedBroker struct {
	mu      sync.Mutex
	sent    []string
	started chan struct{}
	release chan struct{}
}

func (b *orderedBroker) EnsureReady(context.Context) error { return nil }

func (b *orderedBroker) Send(_ context.Context, msg kafka.Message) (kafka.Ack, error) {
	if string(msg.Value) == "block" {
		close(b.started)
		<-b.release
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, string(msg.Value))
	return kafka.Ack{Topic: msg.Topic, Offset: int64(len(b.sent) - 1)}, nil
}

func (b *orderedBroker) order() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.sent...)
}

func TestSameKeyPublishesKeepSubmissionOrder(t *testing.T) {
	t.Parallel()

	broker := &orderedBroker{started: make(chan struct{}), release: make(chan struct{})}
	pub, err := publisher.New(publisher.Config{}, nil, newEncoder(t, encoder.CodecRaw), broker)
	require.NoError(t, err)

	var wg sync.WaitGroup
	publish := func(key, value string) {
		defer wg.Done()
		_, err := pub.Publish(context.Background(), encoder.Event{Topic: "orders", Key: []byte(key), Value: value})
		assert.NoError(t, err)
	}

	wg.Add(1)
	go publish("SO-1", "block")
	<-broker.started

	wg.Add(1)
	go publish("SO-1", "second")

	// A different key is not held up by SO-1.
	wg.Add(1)
	go publish("SO-2", "other")
	require.Eventually(t, func() bool { return len(broker.order()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"other"}, broker.order())

	close(broker.release)
	wg.Wait()
	assert.Equal(t, []string{"other", "block", "second"}, broker.order())
}

func TestSameKeyWaitHonoursContext(t *testing.T) {
	t.Parallel()

	broker := &orderedBroker{started: make(chan struct{}), release: make(chan struct{})}
	pub, err := publisher.New(publisher.Config{}, nil, newEncoder(t, encoder.CodecRaw), broker)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = pub.Publish(context.Background(), encoder.Event{Topic: "orders", Key: []byte("SO-1"), Value: "block"})
	}()
	<-broker.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pub.Publish(ctx, encoder.Event{Topic: "orders", Key: []byte("SO-1"), Value: "late"})
	requireKind(t, err, publisher.KindTimeout)

	close(broker.release)
	<-done
	assert.Equal(t, []string{"block"}, broker.order(), "the timed out publish was never sent")
}

// ── tracing and observation ───────────────────────────────────────────────────

func TestPublishInjectsTraceContext(t *testing.T) {
	tr, err := tracer.NewClient(tracer.Config{ServiceName: "eventpipe-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })

	var sent kafka.Message
	broker := &mockBroker{}
	broker.On("EnsureReady", mock.Anything).Return(nil)
	broker.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(kafka.Message) }).
		Return(kafka.Ack{Topic: "orders"}, nil)

	pub, err := publisher.New(publisher.Config{}, nil, newEncoder(t, encoder.CodecJSON), broker)
	require.NoError(t, err)
	pub.WithTracer(tr)

	ev := encoder.Event{Topic: "orders", Value: 1, Headers: map[string]string{"event-id": "e-1"}}
	_, err = pub.Publish(context.Background(), ev)
	require.NoError(t, err)

	headers := map[string]string{}
	for _, h := range sent.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "e-1", headers["event-id"])
	assert.Regexp(t, `^00-[0-9a-f]{32}-[0-9a-f]{16}-0[01]$`, headers["traceparent"])
	assert.Len(t, ev.Headers, 1, "caller headers are not modified")
}

func TestPublishObservesOperation(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	broker := &mockBroker{}
	broker.On("EnsureReady", mock.Anything).Return(nil)
	broker.On("Send", mock.Anything, mock.Anything).Return(kafka.Ack{Topic: "orders"}, nil).Once()
	broker.On("Send", mock.Anything, mock.Anything).Return(kafka.Ack{}, kafka.ErrTopicNotFound).Once()

	pub, err := publisher.New(publisher.Config{}, nil, newEncoder(t, encoder.CodecRaw), broker)
	require.NoError(t, err)
	pub.WithObserver(obs)

	_, err = pub.Publish(context.Background(), encoder.Event{Topic: "orders", Key: []byte("k"), Value: "hello"})
	require.NoError(t, err)
	_, err = pub.Publish(context.Background(), encoder.Event{Topic: "orders", Value: "hello"})
	require.Error(t, err)

	require.Len(t, obs.ops, 2)
	assert.Equal(t, "publisher", obs.ops[0].Component)
	assert.Equal(t, "publish", obs.ops[0].Operation)
	assert.Equal(t, "orders", obs.ops[0].Resource)
	assert.Equal(t, "orders-value", obs.ops[0].SubResource)
	assert.Equal(t, int64(6), obs.ops[0].Size)
	assert.NoError(t, obs.ops[0].Error)

	assert.Error(t, obs.ops[1].Error)
	assert.Equal(t, "send", obs.ops[1].Metadata["kind"])
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want publisher.Kind
	}{
		{nil, publisher.KindUnknown},
		{errors.New("boom"), publisher.KindUnknown},
		{context.DeadlineExceeded, publisher.KindTimeout},
		{schema_registry.ErrSchemaRejected, publisher.KindSchemaUnavailable},
		{&encoder.EncodingError{Field: "amount", Reason: "missing required field"}, publisher.KindEncoding},
		{kafka.ErrMessageTooLarge, publisher.KindSend},
		{kafka.ErrNotReady, publisher.KindConnection},
		{publisher.NewValidationError("orders", "bad"), publisher.KindValidation},
		{fmt.Errorf("wrapped: %w", &publisher.Error{Kind: publisher.KindTimeout}), publisher.KindTimeout},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, publisher.KindOf(tt.err), "%v", tt.err)
	}
}
