package schema_registry

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aalemi-dev/eventpipe/observability"
)

// Descriptor is a resolved schema: the registry id, the subject it was
// resolved for, its body and the registry schema type. Descriptors are
// values and never change once returned.
type Descriptor struct {
	ID      int
	Subject string
	Schema  string
	Type    string

	placeholder bool
}

// PlaceholderDescriptor returns a descriptor for codecs that do not need a
// schema. It carries no id and no body.
func PlaceholderDescriptor(subject string) Descriptor {
	return Descriptor{Subject: subject, placeholder: true}
}

// IsPlaceholder reports whether d came from PlaceholderDescriptor.
func (d Descriptor) IsPlaceholder() bool {
	return d.placeholder
}

// SchemaSource supplies the schema body to register for a subject.
type SchemaSource interface {
	// SchemaFor returns the body and registry schema type for subject. ok is
	// false when the subject has no local body and must already be registered.
	SchemaFor(subject string) (body, schemaType string, ok bool)
}

// StaticSource is a SchemaSource backed by a fixed map, typically
// Config.Schemas. All bodies share one schema type.
type StaticSource struct {
	Schemas    map[string]string
	SchemaType string
}

// SchemaFor implements SchemaSource.
func (s StaticSource) SchemaFor(subject string) (string, string, bool) {
	body, ok := s.Schemas[subject]
	if !ok {
		return "", "", false
	}
	schemaType := s.SchemaType
	if schemaType == "" {
		schemaType = SchemaTypeAvro
	}
	return body, schemaType, true
}

// Cache resolves subjects to descriptors and keeps them until invalidated.
//
// Concurrent misses for one subject share a single registry call. Only
// successful resolutions are stored, so a failed subject is retried on the
// next Resolve. Cache is safe for concurrent use.
type Cache struct {
	registry Registry
	source   SchemaSource

	mu         sync.RWMutex
	entries    map[string]Descriptor
	generation map[string]uint64
	epoch      uint64

	group singleflight.Group

	observer observability.Observer
	logger   Logger
}

// NewCache creates a cache in front of registry. source may be nil, in which
// case every subject is expected to exist in the registry already.
func NewCache(registry Registry, source SchemaSource) *Cache {
	if source == nil {
		source = StaticSource{}
	}
	return &Cache{
		registry:   registry,
		source:     source,
		entries:    make(map[string]Descriptor),
		generation: make(map[string]uint64),
	}
}

// WithObserver sets the observer notified after every Resolve.
func (c *Cache) WithObserver(observer observability.Observer) *Cache {
	c.observer = observer
	return c
}

// WithLogger sets the logger for this cache.
func (c *Cache) WithLogger(logger Logger) *Cache {
	c.logger = logger
	return c
}

// Resolve returns the descriptor for subject, calling the registry only on
// a miss.
//
// The shared registry call is detached from ctx: a caller whose ctx ends
// stops waiting and gets ctx's error, while the other waiters and the cache
// still receive the result.
func (c *Cache) Resolve(ctx context.Context, subject string) (Descriptor, error) {
	start := time.Now()

	if d, ok := c.lookup(subject); ok {
		observeOperation(c.observer, "resolve", subject, strconv.Itoa(d.ID), time.Since(start), nil, map[string]interface{}{
			"cache_hit": true,
		})
		return d, nil
	}

	// Flights are keyed by invalidation generation, so callers arriving after
	// Invalidate or InvalidateAll never join a flight that started before it.
	c.mu.RLock()
	gen, epoch := c.generation[subject], c.epoch
	c.mu.RUnlock()
	key := fmt.Sprintf("%s#%d.%d", subject, epoch, gen)

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// A flight that finished between lookup and DoChan already filled the cache.
		if d, ok := c.lookup(subject); ok {
			return d, nil
		}
		return c.fetch(detached, subject, gen, epoch)
	})

	select {
	case <-ctx.Done():
		err := fmt.Errorf("resolve %s: %w", subject, ctx.Err())
		observeOperation(c.observer, "resolve", subject, "", time.Since(start), err, map[string]interface{}{
			"cache_hit": false,
		})
		return Descriptor{}, err
	case res := <-ch:
		if res.Err != nil {
			observeOperation(c.observer, "resolve", subject, "", time.Since(start), res.Err, map[string]interface{}{
				"cache_hit": false,
				"shared":    res.Shared,
			})
			c.logWarn(ctx, "schema resolution failed", res.Err, map[string]interface{}{"subject": subject})
			return Descriptor{}, res.Err
		}
		d := res.Val.(Descriptor)
		observeOperation(c.observer, "resolve", subject, strconv.Itoa(d.ID), time.Since(start), nil, map[string]interface{}{
			"cache_hit": false,
			"shared":    res.Shared,
		})
		return d, nil
	}
}

// Invalidate drops subject from the cache. A registry call already in flight
// for subject will not repopulate it.
func (c *Cache) Invalidate(subject string) {
	c.mu.Lock()
	delete(c.entries, subject)
	c.generation[subject]++
	c.mu.Unlock()
}

// InvalidateAll drops every cached subject. Registry calls already in flight
// will not repopulate the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]Descriptor)
	c.epoch++
	c.mu.Unlock()
}

// Len returns the number of cached subjects.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(subject string) (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[subject]
	return d, ok
}

func (c *Cache) fetch(ctx context.Context, subject string, gen, epoch uint64) (Descriptor, error) {

	var d Descriptor
	if body, schemaType, ok := c.source.SchemaFor(subject); ok {
		id, err := c.registry.RegisterSchema(ctx, subject, body, schemaType)
		if err != nil {
			return Descriptor{}, err
		}
		d = Descriptor{ID: id, Subject: subject, Schema: body, Type: schemaType}
	} else {
		meta, err := c.registry.GetLatestSchema(ctx, subject)
		if err != nil {
			return Descriptor{}, err
		}
		schemaType := meta.Type
		if schemaType == "" {
			schemaType = SchemaTypeAvro
		}
		d = Descriptor{ID: meta.ID, Subject: subject, Schema: meta.Schema, Type: schemaType}
	}

	c.mu.Lock()
	if c.generation[subject] == gen && c.epoch == epoch {
		c.entries[subject] = d
	}
	c.mu.Unlock()

	c.logInfo(ctx, "schema resolved", map[string]interface{}{"subject": subject, "schema_id": d.ID})
	return d, nil
}

func (c *Cache) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}

func (c *Cache) logWarn(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.WarnWithContext(ctx, msg, err, fields)
	}
}
