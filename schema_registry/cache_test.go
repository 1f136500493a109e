package schema_registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

// stubRegistry is an in-memory Registry that dedups bodies by content, like
// the real registry, and can be held on a gate to force concurrent misses.
type stubRegistry struct {
	mu        sync.Mutex
	ids       map[string]int
	nextID    int
	registers atomic.Int32
	latest    atomic.Int32

	gate    chan struct{}
	failing atomic.Bool
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{ids: make(map[string]int), nextID: 100}
}

func (s *stubRegistry) wait(ctx context.Context) error {
	if s.gate == nil {
		return nil
	}
	select {
	case <-s.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stubRegistry) RegisterSchema(ctx context.Context, subject, schema, _ string) (int, error) {
	s.registers.Add(1)
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	if s.failing.Load() {
		return 0, fmt.Errorf("register: %w", ErrSchemaUnavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subject + "\x00" + schema
	if id, ok := s.ids[key]; ok {
		return id, nil
	}
	s.nextID++
	s.ids[key] = s.nextID
	return s.nextID, nil
}

func (s *stubRegistry) GetSchemaByID(context.Context, int) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubRegistry) GetLatestSchema(ctx context.Context, subject string) (*Metadata, error) {
	s.latest.Add(1)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if subject != "legacy-value" {
		return nil, &StatusError{StatusCode: http.StatusNotFound, Message: "Subject not found."}
	}
	return &Metadata{ID: 9, Version: 2, Schema: orderSchema, Subject: subject}, nil
}

func (s *stubRegistry) CheckCompatibility(context.Context, string, string, string) (bool, error) {
	return true, nil
}

func ordersSource() StaticSource {
	return StaticSource{Schemas: map[string]string{"orders-value": orderSchema}}
}

func TestCacheHitSkipsRegistry(t *testing.T) {
	t.Parallel()
	reg := newStubRegistry()
	cache := NewCache(reg, ordersSource())
	ctx := context.Background()

	first, err := cache.Resolve(ctx, "orders-value")
	require.NoError(t, err)
	second, err := cache.Resolve(ctx, "orders-value")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), reg.registers.Load())
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, "orders-value", first.Subject)
	assert.Equal(t, orderSchema, first.Schema)
	assert.Equal(t, SchemaTypeAvro, first.Type)
	assert.False(t, first.IsPlaceholder())
}

func TestCacheConcurrentMissesShareOneCall(t *testing.T) {
	t.Parallel()
	reg := newStubRegistry()
	reg.gate = make(chan struct{})
	cache := NewCache(reg, ordersSource())

	const n = 32
	results := make([]Descriptor, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Resolve(context.Background(), "orders-value")
		}(i)
	}

	require.Eventually(t, func() bool { return reg.registers.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(reg.gate)
	wg.Wait()

	assert.Equal(t, int32(1), reg.registers.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestCacheFailureIsNotCached(t *testing.T) {
	t.Parallel()
	reg := newStubRegistry()
	reg.failing.Store(true)
	cache := NewCache(reg, ordersSource())
	ctx := context.Background()

	_, err := cache.Resolve(ctx, "orders-value")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
	assert.Equal(t, 0, cache.Len())

	reg.failing.Store(false)
	d, err := cache.Resolve(ctx, "orders-value")
	require.NoError(t, err)
	assert.NotZero(t, d.ID)
	assert.Equal(t, int32(2), reg.registers.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestCacheInvalidateReturnsSameID(t *testing.T) {
	t.Parallel()
	reg := newStubRegistry()
	cache := NewCache(reg, ordersSource())
	ctx := context.Background()

	before, err := cache.Resolve(ctx, "orders-value")
	require.NoError(t, err)

	cache.Invalidate("orders-value")
	assert.Equal(t, 0, cache.Len())

	after, err := cache.Resolve(ctx, "orders-value")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, int32(2), reg.registers.Load())
}

func TestCacheInvalidateAll(t *testing.T) {
	t.Parallel()
	reg := newStubRegistry()
	cache := NewCache(reg, StaticSource{Schemas: map[string]string{
		"orders-value":   orderSchema,
		"invoices-value": orderSchema,
	}})
	ctx := context.Background()

	_, err := cache.Resolve(ctx, "orders-value")
	require.NoError(t, err)
	_, err = cache.Resolve(ctx, "invoices-value")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	cache.InvalidateAll()
	assert.Equal(t, 0, cache.Len())
}

func TestCacheInvalidateDuringFlight(t *testing.T) {
	t.Parallel()
	reg := newStubRegistry()
	reg.gate = make(chan struct{})
	cache := NewCache(reg, ordersSource())

	done := make(chan error, 1)
	go func() {
		_, err := cache.Resolve(context.Background(), "orders-value")
		done <- err
	}()
	require.Eventually(t, func() bool { return reg.registers.Load() == 1 }, time.Second, time.Millisecond)

	cache.Invalidate("orders-value")
	close(reg.gate)
	require.NoError(t, <-done)

	assert.Equal(t, 0, cache.Len(), "a flight started before Invalidate must not repopulate the cache")
}

func TestCacheInvalidateAllStartsFreshFlight(t *testing.T) {
	t.Parallel()
	reg := newStubRegistry()
	reg.gate = make(chan struct{})
	cache := NewCache(reg, ordersSource())

	first := make(chan error, 1)
	go func() {
		_, err := cache.Resolve(context.Background(), "orders-value")
		first <- err
	}()
	require.Eventually(t, func() bool { return reg.registers.Load() == 1 }, time.Second, time.Millisecond)

	// The subject is not cached yet, only in flight.
	cache.InvalidateAll()

	second := make(chan error, 1)
	go func() {
		_, err := cache.Resolve(context.Background(), "orders-value")
		second <- err
	}()
	require.Eventually(t, func() bool { return reg.registers.Load() == 2 }, time.Second, time.Millisecond,
		"a resolve after InvalidateAll must not join the earlier flight")

	close(reg.gate)
	require.NoError(t, <-first)
	require.NoError(t, <-second)
	assert.Equal(t, 1, cache.Len(), "only the post-invalidation flight is stored")
}

func TestCacheFallsBackToLatest(t *testing.T) {
	t.Parallel()
	reg := newStubRegistry()
	cache := NewCache(reg, nil)

	d, err := cache.Resolve(context.Background(), "legacy-value")
	require.NoError(t, err)
	assert.Equal(t, 9, d.ID)
	assert.Equal(t, SchemaTypeAvro, d.Type)
	assert.Equal(t, int32(0), reg.registers.Load())
	assert.Equal(t, int32(1), reg.latest.Load())

	_, err = cache.Resolve(context.Background(), "unknown-value")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubjectNotFound)
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
}

func TestCacheCancelledWaiterDoesNotCancelFlight(t *testing.T) {
	t.Parallel()
	reg := newStubRegistry()
	reg.gate = make(chan struct{})
	obs := &recordingObserver{}
	cache := NewCache(reg, ordersSource()).WithObserver(obs)

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)
	go func() {
		_, err := cache.Resolve(ctx, "orders-value")
		cancelled <- err
	}()
	require.Eventually(t, func() bool { return reg.registers.Load() == 1 }, time.Second, time.Millisecond)

	patient := make(chan error, 1)
	go func() {
		_, err := cache.Resolve(context.Background(), "orders-value")
		patient <- err
	}()

	cancel()
	assert.ErrorIs(t, <-cancelled, context.Canceled)

	close(reg.gate)
	require.NoError(t, <-patient)
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, int32(1), reg.registers.Load())

	var resolveErrors int
	for _, op := range obs.operations() {
		assert.Equal(t, "resolve", op.Operation)
		if op.Error != nil {
			resolveErrors++
		}
	}
	assert.Equal(t, 1, resolveErrors)
}

// Registry times out on the first resolve, then recovers.
func TestCacheRecoversAfterRegistryTimeout(t *testing.T) {
	t.Parallel()

	var hang atomic.Bool
	hang.Store(true)
	var posts atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		if hang.Load() {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 42})
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client, err := NewClient(Config{URL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	cache := NewCache(client, ordersSource())

	_, err = cache.Resolve(context.Background(), "orders-value")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
	assert.Equal(t, 0, cache.Len())

	hang.Store(false)
	d, err := cache.Resolve(context.Background(), "orders-value")
	require.NoError(t, err)
	assert.Equal(t, 42, d.ID)
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, int32(2), posts.Load())
}

func TestCacheConcurrentResolveAgainstHTTPStub(t *testing.T) {
	t.Parallel()

	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 5})
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL})
	require.NoError(t, err)
	cache := NewCache(client, ordersSource())

	var wg sync.WaitGroup
	ids := make([]int, 2)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := cache.Resolve(context.Background(), "orders-value")
			assert.NoError(t, err)
			ids[i] = d.ID
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), posts.Load())
	assert.Equal(t, []int{5, 5}, ids)
}

func TestPlaceholderDescriptor(t *testing.T) {
	t.Parallel()
	d := PlaceholderDescriptor("orders-value")
	assert.True(t, d.IsPlaceholder())
	assert.Zero(t, d.ID)
	assert.Empty(t, d.Schema)
}

func TestFXModule(t *testing.T) {
	t.Parallel()
	srv := newMockServer(t, 42, orderSchema)

	var cache *Cache
	var registry Registry
	app := fxtest.New(t,
		FXModule,
		fx.Supply(Config{
			URL:     srv.URL,
			Schemas: map[string]string{"orders-value": orderSchema},
		}),
		fx.Populate(&cache, &registry),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, registry)
	d, err := cache.Resolve(context.Background(), "orders-value")
	require.NoError(t, err)
	assert.Equal(t, 42, d.ID)
}
