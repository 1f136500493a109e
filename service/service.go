package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aalemi-dev/eventpipe/encoder"
	"github.com/aalemi-dev/eventpipe/kafka"
	"github.com/aalemi-dev/eventpipe/publisher"
)

// Service is the publishing boundary. It owns the broker connection: callers
// hand it raw payloads, and Shutdown drains them before closing the
// connection.
type Service struct {
	cfg       Config
	publisher Publisher
	conn      Connection

	mu       sync.Mutex
	closing  bool
	inflight sync.WaitGroup
	shutdown sync.Once
	stopErr  error

	logger Logger
	newID  func() string
}

// New creates a Service publishing through pub over conn.
func New(cfg Config, pub Publisher, conn Connection) *Service {
	return &Service{
		cfg:       cfg.withDefaults(),
		publisher: pub,
		conn:      conn,
		newID:     uuid.NewString,
	}
}

// WithLogger sets the logger for this service and returns it for method chaining.
func (s *Service) WithLogger(logger Logger) *Service {
	s.logger = logger
	return s
}

// Accept validates raw as a Request for topic and publishes it. Malformed
// input fails with a validation error before any registry or broker call.
func (s *Service) Accept(ctx context.Context, raw []byte, topic string) (Response, error) {
	if !s.enter() {
		return Response{}, ErrShuttingDown
	}
	defer s.inflight.Done()

	ev, eventID, err := s.decode(raw, topic)
	if err != nil {
		return Response{}, err
	}

	res, err := s.publisher.Publish(ctx, ev)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Topic:     res.Topic,
		Partition: res.Partition,
		Offset:    res.Offset,
		Timestamp: res.Timestamp,
		EventID:   eventID,
	}, nil
}

func (s *Service) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.inflight.Add(1)
	return true
}

func (s *Service) decode(raw []byte, topic string) (encoder.Event, string, error) {
	if err := ValidateTopic(topic); err != nil {
		return encoder.Event{}, "", publisher.NewValidationError(topic, err.Error())
	}

	var req Request
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return encoder.Event{}, "", publisher.NewValidationError(topic, fmt.Sprintf("malformed payload: %v", err))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return encoder.Event{}, "", publisher.NewValidationError(topic, "malformed payload: trailing data after object")
	}

	trimmed := bytes.TrimSpace(req.Value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return encoder.Event{}, "", publisher.NewValidationError(topic, "value is required")
	}

	// Numbers stay json.Number so the encoder can fit them to the schema type.
	var value interface{}
	valueDec := json.NewDecoder(bytes.NewReader(trimmed))
	valueDec.UseNumber()
	if err := valueDec.Decode(&value); err != nil {
		return encoder.Event{}, "", publisher.NewValidationError(topic, fmt.Sprintf("malformed value: %v", err))
	}

	headers := make(map[string]string, len(req.Headers)+1)
	for k, v := range req.Headers {
		if k == "" {
			return encoder.Event{}, "", publisher.NewValidationError(topic, "header names must not be empty")
		}
		headers[k] = v
	}
	eventID, ok := headers[s.cfg.EventIDHeader]
	if !ok || eventID == "" {
		eventID = s.newID()
		headers[s.cfg.EventIDHeader] = eventID
	}

	ev := encoder.Event{
		Topic:   topic,
		Value:   value,
		Headers: headers,
	}
	if req.Key != nil {
		ev.Key = []byte(*req.Key)
	}
	return ev, eventID, nil
}

// Ready reports whether the broker connection is Ready and the service is
// still accepting.
func (s *Service) Ready() bool {
	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()
	return !closing && s.conn.State() == kafka.StateReady
}

// ConnectionState returns the broker connection state name.
func (s *Service) ConnectionState() string {
	return s.conn.State().String()
}

// Shutdown stops accepting, waits for in-flight accepts for at most
// DrainTimeout (or until ctx is done) and then closes the broker connection.
// The connection is closed even when draining timed out. Later calls return
// the first call's result.
func (s *Service) Shutdown(ctx context.Context) error {
	s.shutdown.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()

		start := time.Now()
		drainCtx, cancel := context.WithTimeout(ctx, s.cfg.DrainTimeout)
		defer cancel()

		drained := make(chan struct{})
		go func() {
			s.inflight.Wait()
			close(drained)
		}()

		var errs []error
		select {
		case <-drained:
			s.logInfo(ctx, "in-flight events drained", map[string]interface{}{"duration": time.Since(start).String()})
		case <-drainCtx.Done():
			err := fmt.Errorf("draining in-flight events: %w", drainCtx.Err())
			s.logWarn(ctx, "shutdown proceeding with events in flight", err, nil)
			errs = append(errs, err)
		}

		// Close gets its own bound so a slow drain cannot leave the
		// connection open.
		closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.DrainTimeout)
		defer closeCancel()
		if err := s.conn.Close(closeCtx); err != nil {
			errs = append(errs, fmt.Errorf("closing broker connection: %w", err))
		}
		s.stopErr = errors.Join(errs...)
	})
	return s.stopErr
}

func (s *Service) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.WarnWithContext(ctx, msg, err, fields)
	}
}
