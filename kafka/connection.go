package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/aalemi-dev/eventpipe/observability"
)

// Connection owns the single logical broker connection of a process.
//
// State changes follow
//
//	Disconnected -> Connecting -> Ready -> Disconnecting -> Disconnected
//	Connecting -> Failed, Ready -> Failed on a transport failure
//
// and only one connect or close sequence runs at a time. Sends are accepted
// only in Ready and may run concurrently.
type Connection struct {
	transport Transport
	cfg       Config

	// sequence is held by whichever connect or close sequence is running.
	sequence chan struct{}

	mu       sync.RWMutex
	state    State
	closed   bool
	inflight sync.WaitGroup

	// generation counts finished connect sequences; lastErr is the outcome
	// of the most recent one. Both are guarded by mu.
	generation uint64
	lastErr    error

	hooksMu sync.Mutex
	hooks   []func(from, to State)

	observer observability.Observer
	logger   Logger
}

// NewClient builds a kafka-go transport from cfg and wraps it in a
// Connection. The connection starts Disconnected.
func NewClient(cfg Config) (*Connection, error) {
	transport, err := NewTransport(cfg)
	if err != nil {
		return nil, err
	}
	return NewConnection(transport, cfg), nil
}

// NewConnection wraps any Transport. Only the retry and timeout settings of
// cfg are used.
func NewConnection(transport Transport, cfg Config) *Connection {
	return &Connection{
		transport: transport,
		cfg:       cfg.withDefaults(),
		sequence:  make(chan struct{}, 1),
		state:     StateDisconnected,
	}
}

// WithObserver sets the observer for this connection and returns it for method chaining.
func (c *Connection) WithObserver(observer observability.Observer) *Connection {
	c.observer = observer
	return c
}

// WithLogger sets the logger for this connection and returns it for method chaining.
func (c *Connection) WithLogger(logger Logger) *Connection {
	c.logger = logger
	return c
}

// OnStateChange registers fn to run after every state change. Hooks run
// synchronously and must not block.
func (c *Connection) OnStateChange(fn func(from, to State)) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// State returns the current state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// EnsureReady returns once the connection is Ready. From Disconnected or
// Failed it connects, retrying with bounded exponential backoff; when every
// attempt fails the connection stays Failed and the error wraps
// ErrConnection. Callers that arrive while a sequence is running wait for it
// and share its outcome instead of starting one of their own. A sequence cut
// short by its caller's context is not shared; the next waiter retries.
func (c *Connection) EnsureReady(ctx context.Context) error {
	gen, ready, err := c.readyOrClosed()
	if ready || err != nil {
		return err
	}

	select {
	case c.sequence <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for broker connection: %w", ctx.Err())
	}
	defer func() { <-c.sequence }()

	seen, ready, err := c.readyOrClosed()
	if ready || err != nil {
		return err
	}
	if seen != gen {
		c.mu.RLock()
		last := c.lastErr
		c.mu.RUnlock()
		if errors.Is(last, ErrConnection) {
			return last
		}
	}

	err = c.connect(ctx)

	c.mu.Lock()
	c.generation++
	c.lastErr = err
	c.mu.Unlock()
	return err
}

func (c *Connection) readyOrClosed() (generation uint64, ready bool, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return c.generation, false, ErrClosed
	}
	return c.generation, c.state == StateReady, nil
}

func (c *Connection) connect(ctx context.Context) error {
	start := time.Now()
	attempts := 0

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.BackoffBase
	policy.MaxInterval = c.cfg.BackoffMax
	policy.RandomizationFactor = c.cfg.BackoffJitter

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		if !c.setState(StateConnecting) {
			return struct{}{}, backoff.Permanent(ErrClosed)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		err := c.transport.Connect(attemptCtx)
		cancel()

		if err != nil {
			c.setState(StateFailed)
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: handshake timed out after %s: %w", ErrBrokerNotAvailable, c.cfg.ConnectTimeout, err)
			}
			err = classifyError(err)
			if errors.Is(err, ErrAuthenticationFailed) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}

		if !c.setState(StateReady) {
			return struct{}{}, backoff.Permanent(ErrClosed)
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.cfg.MaxConnectAttempts)), //nolint:gosec
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logWarn(ctx, "broker connect attempt failed, retrying", err, map[string]interface{}{
				"attempt": attempts,
				"wait":    wait.String(),
			})
		}),
	)

	switch {
	case err == nil:
		c.logInfo(ctx, "broker connection ready", map[string]interface{}{"attempts": attempts, "brokers": c.cfg.Brokers})
	case errors.Is(err, ErrClosed):
	case ctx.Err() != nil:
		c.setState(StateFailed)
		err = fmt.Errorf("connecting to broker: %w", ctx.Err())
	default:
		err = fmt.Errorf("%w: gave up after %d attempts: %w", ErrConnection, attempts, err)
		c.logError(ctx, "broker connection failed", err, map[string]interface{}{"attempts": attempts})
	}

	c.observeOperation("connect", "broker", strconv.Itoa(attempts), 0, time.Since(start), err, map[string]interface{}{
		"attempts": attempts,
	})
	return err
}

// Send produces msg and waits for the acknowledgment. It fails with
// ErrNotReady unless the connection is Ready. A transport failure moves the
// connection to Failed; a broker rejection leaves it Ready.
func (c *Connection) Send(ctx context.Context, msg Message) (Ack, error) {
	c.mu.RLock()
	switch {
	case c.closed:
		c.mu.RUnlock()
		return Ack{}, ErrClosed
	case c.state != StateReady:
		state := c.state
		c.mu.RUnlock()
		return Ack{}, fmt.Errorf("%w: connection is %s", ErrNotReady, state)
	}
	c.inflight.Add(1)
	c.mu.RUnlock()
	defer c.inflight.Done()

	start := time.Now()
	size := int64(len(msg.Key) + len(msg.Value))

	ack, err := c.transport.Send(ctx, msg)
	if err != nil {
		err = classifyError(err)
		if errors.Is(err, ErrConnection) {
			c.transition(StateReady, StateFailed)
			c.logError(ctx, "broker connection lost during send", err, map[string]interface{}{"topic": msg.Topic})
		}
		c.observeOperation("produce", msg.Topic, "", size, time.Since(start), err, nil)
		return Ack{}, fmt.Errorf("produce to %s: %w", msg.Topic, err)
	}

	c.observeOperation("produce", msg.Topic, strconv.Itoa(ack.Partition), size, time.Since(start), nil, map[string]interface{}{
		"partition": ack.Partition,
		"offset":    ack.Offset,
	})
	return ack, nil
}

// Close stops accepting sends, waits for in-flight sends until ctx is done,
// then disconnects the transport. The transport is disconnected even if
// the wait was cut short. Close is idempotent; the connection cannot be
// reused afterwards.
func (c *Connection) Close(ctx context.Context) error {
	start := time.Now()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	from := c.state
	c.state = StateDisconnecting
	c.mu.Unlock()
	c.notify(from, StateDisconnecting)

	var errs []error

	// A connect sequence notices closed on its next step.
	select {
	case c.sequence <- struct{}{}:
		defer func() { <-c.sequence }()
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for connect sequence: %w", ctx.Err()))
	}

	drained := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("in-flight sends still running at disconnect: %w", ctx.Err()))
		c.logWarn(ctx, "closing broker connection with sends in flight", ctx.Err(), nil)
	}

	// The transport is released even when ctx is already done.
	if err := c.transport.Disconnect(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, fmt.Errorf("disconnect: %w", err))
	}

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
	c.notify(StateDisconnecting, StateDisconnected)

	err := errors.Join(errs...)
	c.observeOperation("disconnect", "broker", "", 0, time.Since(start), err, nil)
	c.logInfo(ctx, "broker connection closed", nil)
	return err
}

// setState moves to the given state unless the connection is closed, in which
// case only Close may change it.
func (c *Connection) setState(to State) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	from := c.state
	c.state = to
	c.mu.Unlock()

	if from != to {
		c.notify(from, to)
	}
	return true
}

// transition moves from -> to only if the connection is currently in from.
func (c *Connection) transition(from, to State) {
	c.mu.Lock()
	if c.closed || c.state != from {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.mu.Unlock()
	c.notify(from, to)
}

func (c *Connection) notify(from, to State) {
	c.hooksMu.Lock()
	hooks := append(([]func(State, State))(nil), c.hooks...)
	c.hooksMu.Unlock()
	for _, fn := range hooks {
		fn(from, to)
	}
}

func (c *Connection) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}

func (c *Connection) logWarn(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.WarnWithContext(ctx, msg, err, fields)
	}
}

func (c *Connection) logError(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.ErrorWithContext(ctx, msg, err, fields)
	}
}
