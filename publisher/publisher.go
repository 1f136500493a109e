package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aalemi-dev/eventpipe/encoder"
	"github.com/aalemi-dev/eventpipe/kafka"
	"github.com/aalemi-dev/eventpipe/observability"
	"github.com/aalemi-dev/eventpipe/schema_registry"
	"github.com/aalemi-dev/eventpipe/tracer"
)

// Publisher runs one event at a time through resolve, encode, connect and
// send. It is safe for concurrent use; publishes for the same key are
// serialised.
type Publisher struct {
	cfg      Config
	resolver SchemaResolver
	encoder  MessageEncoder
	broker   Broker

	keys *keyLocks

	tracer   tracer.Tracer
	observer observability.Observer
	logger   Logger
}

// New creates a Publisher. resolver may be nil when the encoder's codec needs
// no schema.
func New(cfg Config, resolver SchemaResolver, enc MessageEncoder, broker Broker) (*Publisher, error) {
	if enc == nil {
		return nil, errors.New("publisher: encoder is required")
	}
	if broker == nil {
		return nil, errors.New("publisher: broker is required")
	}
	if resolver == nil && enc.Codec().RequiresSchema() {
		return nil, fmt.Errorf("publisher: codec %s requires a schema resolver", enc.Codec())
	}
	return &Publisher{
		cfg:      cfg.withDefaults(),
		resolver: resolver,
		encoder:  enc,
		broker:   broker,
		keys:     newKeyLocks(),
	}, nil
}

// WithTracer sets the tracer for this publisher and returns it for method chaining.
func (p *Publisher) WithTracer(t tracer.Tracer) *Publisher {
	p.tracer = t
	return p
}

// WithObserver sets the observer for this publisher and returns it for method chaining.
func (p *Publisher) WithObserver(observer observability.Observer) *Publisher {
	p.observer = observer
	return p
}

// WithLogger sets the logger for this publisher and returns it for method chaining.
func (p *Publisher) WithLogger(logger Logger) *Publisher {
	p.logger = logger
	return p
}

// SubjectFor returns the registry subject of topic's values.
func (p *Publisher) SubjectFor(topic string) string {
	return topic + p.cfg.SubjectSuffix
}

// Publish sends ev and waits for the broker's acknowledgment. The first
// failing step ends the publish with an *Error; nothing is sent unless
// encoding succeeded.
func (p *Publisher) Publish(ctx context.Context, ev encoder.Event) (Result, error) {
	start := time.Now()
	subject := p.SubjectFor(ev.Topic)

	if _, ok := ctx.Deadline(); !ok && p.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.PublishTimeout)
		defer cancel()
	}

	ctx, span := p.startSpan(ctx, ev.Topic, subject)
	defer span.End()

	res, size, err := p.publish(ctx, ev, subject)

	if err != nil {
		span.RecordError(err)
		p.logWarn(ctx, "publish failed", err, map[string]interface{}{
			"topic":   ev.Topic,
			"subject": subject,
			"kind":    KindOf(err).String(),
		})
	} else {
		span.SetAttributes(map[string]interface{}{
			"messaging.kafka.partition":      res.Partition,
			"messaging.kafka.message.offset": res.Offset,
			"messaging.message.body.size":    size,
			"eventpipe.schema_id":            res.SchemaID,
		})
	}
	p.observeOperation(ev.Topic, subject, int64(size), time.Since(start), err, KindOf(err))
	return res, err
}

func (p *Publisher) publish(ctx context.Context, ev encoder.Event, subject string) (Result, int, error) {
	if ev.Topic == "" {
		return Result{}, 0, NewValidationError(ev.Topic, "topic is required")
	}

	fail := func(s stage, err error) (Result, int, error) {
		return Result{}, 0, &Error{
			Kind:    classify(ctx, s, err),
			Topic:   ev.Topic,
			Subject: subject,
			Err:     fmt.Errorf("%s: %w", s, err),
		}
	}

	if ev.Key != nil {
		release, err := p.keys.acquire(ctx, string(ev.Key))
		if err != nil {
			return fail(stageQueue, err)
		}
		defer release()
	}

	desc := schema_registry.PlaceholderDescriptor(subject)
	if p.encoder.Codec().RequiresSchema() {
		var err error
		if desc, err = p.resolver.Resolve(ctx, subject); err != nil {
			return fail(stageResolve, err)
		}
	}

	ev.Headers = p.withTraceHeaders(ctx, ev.Headers)
	msg, err := p.encoder.Encode(ev, desc)
	if err != nil {
		return fail(stageEncode, err)
	}

	if err := p.broker.EnsureReady(ctx); err != nil {
		return fail(stageConnect, err)
	}

	ack, err := p.broker.Send(ctx, toBrokerMessage(msg))
	if err != nil {
		return fail(stageSend, err)
	}

	return Result{
		Topic:     ack.Topic,
		Partition: ack.Partition,
		Offset:    ack.Offset,
		Timestamp: ack.Timestamp,
		Subject:   subject,
		SchemaID:  msg.SchemaID,
	}, msg.Size(), nil
}

func toBrokerMessage(msg encoder.Message) kafka.Message {
	out := kafka.Message{
		Topic: msg.Topic,
		Key:   msg.Key,
		Value: msg.Value,
	}
	if len(msg.Headers) > 0 {
		out.Headers = make([]kafka.Header, len(msg.Headers))
		for i, h := range msg.Headers {
			out.Headers[i] = kafka.Header{Key: h.Key, Value: h.Value}
		}
	}
	return out
}

// withTraceHeaders returns a copy of headers with the trace context of ctx
// added. Headers the caller set win.
func (p *Publisher) withTraceHeaders(ctx context.Context, headers map[string]string) map[string]string {
	if p.tracer == nil {
		return headers
	}
	carrier := p.tracer.GetCarrier(ctx)
	if len(carrier) == 0 {
		return headers
	}
	out := make(map[string]string, len(headers)+len(carrier))
	for k, v := range carrier {
		out[k] = v
	}
	for k, v := range headers {
		out[k] = v
	}
	return out
}

func (p *Publisher) startSpan(ctx context.Context, topic, subject string) (context.Context, tracer.Span) {
	if p.tracer == nil {
		return ctx, noopSpan{}
	}
	ctx, span := p.tracer.StartSpan(ctx, "publisher.publish")
	span.SetAttributes(map[string]interface{}{
		"messaging.system":           "kafka",
		"messaging.destination.name": topic,
		"eventpipe.subject":          subject,
		"eventpipe.codec":            p.encoder.Codec().String(),
	})
	return ctx, span
}

type noopSpan struct{}

func (noopSpan) End()                                 {}
func (noopSpan) SetAttributes(map[string]interface{}) {}
func (noopSpan) RecordError(error)                    {}

func (p *Publisher) logWarn(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if p.logger != nil {
		p.logger.WarnWithContext(ctx, msg, err, fields)
	}
}
