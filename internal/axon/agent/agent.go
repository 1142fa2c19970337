// Package agent runs the Axon loop: connect, publish a discovery payload
// every TTL/2, hand inbound commands to the dispatcher, and publish a final
// offline payload on shutdown.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Alwanly/axon-agent/internal/axon/command"
	"github.com/Alwanly/axon-agent/internal/axon/monitor"
	"github.com/Alwanly/axon-agent/internal/axon/payload"
	"github.com/Alwanly/axon-agent/internal/axon/sampler"
	"github.com/Alwanly/axon-agent/internal/models"
	"github.com/Alwanly/axon-agent/pkg/logger"
	"github.com/Alwanly/axon-agent/pkg/metrics"
	"github.com/Alwanly/axon-agent/pkg/pubsub"
	"github.com/Alwanly/axon-agent/pkg/retry"
)

var (
	// ErrCommandsDisabled is returned by Enqueue when the profile accepts no commands.
	ErrCommandsDisabled = errors.New("commands are disabled for this agent")
	// ErrQueueFull is returned by Enqueue when the command queue is saturated.
	ErrQueueFull = errors.New("command queue is full")
)

const (
	defaultQueueSize       = 32
	defaultShutdownTimeout = 5 * time.Second
	defaultConnectTimeout  = 10 * time.Second
)

// Options configures an Agent. Broker, Sampler and Builder are required.
type Options struct {
	Broker     pubsub.Broker
	Sampler    sampler.Sampler
	Builder    *payload.Builder
	Dispatcher *command.Dispatcher
	Metrics    *metrics.Metrics
	Logger     *logger.CanonicalLogger

	ServiceID string
	TTL       time.Duration
	// Interval overrides the TTL/2 publish cadence. It is capped at TTL/2.
	Interval time.Duration

	ConnectTimeout  time.Duration
	ConnectRetry    retry.Config
	ShutdownTimeout time.Duration
	QueueSize       int
}

// Agent owns the broker connection and the publish timer.
type Agent struct {
	broker     pubsub.Broker
	sampler    sampler.Sampler
	builder    *payload.Builder
	dispatcher *command.Dispatcher
	tracker    *monitor.Tracker
	metrics    *metrics.Metrics
	log        *logger.CanonicalLogger

	serviceID       string
	discoveryTopic  string
	commandTopic    string
	interval        time.Duration
	connectTimeout  time.Duration
	connectRetry    retry.Config
	shutdownTimeout time.Duration

	state       atomic.Int32
	connected   chan struct{}
	connectOnce sync.Once
	forwardOnce sync.Once
	queue       chan pubsub.Message
	done        chan struct{}
	stopping    atomic.Bool

	// lifeMu orders connect callbacks against shutdown so a late
	// acknowledgement cannot reopen a closing agent.
	lifeMu sync.Mutex

	// pubMu serializes publishes; the loop and shutdown both publish.
	pubMu sync.Mutex

	mu          sync.RWMutex
	startedAt   time.Time
	lastPublish time.Time
	lastPayload []byte
	lastReading *sampler.Reading
	subscribed  bool
}

func New(opts Options) (*Agent, error) {
	if opts.Broker == nil || opts.Sampler == nil || opts.Builder == nil {
		return nil, fmt.Errorf("agent: broker, sampler and builder are required")
	}
	if opts.ServiceID == "" {
		return nil, fmt.Errorf("agent: service id is required")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("agent: ttl must be positive")
	}
	if opts.Builder.AcceptsCommands() && opts.Dispatcher == nil {
		return nil, fmt.Errorf("agent: dispatcher is required for profile %q", opts.Builder.Profile())
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	interval := opts.TTL / 2
	if opts.Interval > 0 && opts.Interval < interval {
		interval = opts.Interval
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	a := &Agent{
		broker:          opts.Broker,
		sampler:         opts.Sampler,
		builder:         opts.Builder,
		dispatcher:      opts.Dispatcher,
		tracker:         monitor.NewTracker(log.Component("monitor")),
		metrics:         opts.Metrics,
		log:             log.WithServiceID(opts.ServiceID),
		serviceID:       opts.ServiceID,
		discoveryTopic:  models.DiscoveryTopic(opts.ServiceID),
		commandTopic:    models.CommandTopic(opts.ServiceID),
		interval:        interval,
		connectTimeout:  connectTimeout,
		connectRetry:    opts.ConnectRetry,
		shutdownTimeout: shutdownTimeout,
		connected:       make(chan struct{}),
		queue:           make(chan pubsub.Message, queueSize),
		done:            make(chan struct{}),
	}
	if a.metrics == nil {
		a.metrics = metrics.New(nil)
	}
	a.state.Store(int32(StateDisconnected))
	return a, nil
}

// Interval is the publish cadence.
func (a *Agent) Interval() time.Duration {
	return a.interval
}

// Done is closed once the agent reaches its terminal state.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// Run connects and publishes until ctx is cancelled, then shuts down. It
// returns an error wrapping pubsub.ErrConnect when the initial connect fails.
func (a *Agent) Run(ctx context.Context) error {
	a.mu.Lock()
	a.startedAt = time.Now()
	a.mu.Unlock()

	a.broker.OnConnect(a.handleConnect)
	a.broker.OnConnectionLost(a.handleConnectionLost)

	a.moveTo(StateConnecting)
	if err := a.connect(ctx); err != nil {
		a.moveTo(StateDisconnected)
		a.finish()
		return err
	}

	// The connect acknowledgement may arrive on the client's own goroutine.
	select {
	case <-a.connected:
	case <-time.After(a.connectTimeout):
		a.log.Warn("connect acknowledgement not received yet, continuing")
	case <-ctx.Done():
	}

	var wg sync.WaitGroup
	if a.builder.AcceptsCommands() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.dispatcher.Run(ctx, a.queue)
		}()
	}

	a.loop(ctx)
	a.shutdown()
	wg.Wait()
	return nil
}

func (a *Agent) connect(ctx context.Context) error {
	attempt := 0
	op := func(ctx context.Context) error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, a.connectTimeout)
		defer cancel()

		a.log.Info("connecting to broker", logger.Int("attempt", attempt))
		err := a.broker.Connect(attemptCtx)
		if err != nil {
			a.log.WithError(err).Error("broker connect attempt failed", logger.Int("attempt", attempt))
		}
		if errors.Is(err, pubsub.ErrRefused) {
			return retry.Permanent(err)
		}
		return err
	}

	// MaxRetries 0 is a single attempt.
	if err := retry.WithExponentialBackoff(ctx, a.connectRetry, op); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (a *Agent) loop(ctx context.Context) {
	a.log.Info("publishing discovery payloads",
		logger.String(logger.FieldTopic, a.discoveryTopic),
		logger.Duration("interval", a.interval),
	)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// tick samples, builds and publishes one online payload, returning any monitor
// transitions. Failures are logged and the next tick retries.
func (a *Agent) tick(ctx context.Context) []monitor.Transition {
	if ctx.Err() != nil {
		return nil
	}
	if s := a.State(); s != StateConnected {
		a.log.Debug("skipping tick, not connected", logger.String(logger.FieldState, s.String()))
		return nil
	}

	reading, err := a.sampler.Sample(ctx)
	if err != nil {
		a.metrics.SampleFailed()
		a.log.WithError(err).Warn("sample failed, skipping tick")
		return nil
	}
	a.metrics.SetValue(reading.Value)

	p, err := a.publish(ctx, reading, models.StatusOnline)
	if err != nil {
		a.log.WithError(err).Error("publish failed, retrying next tick",
			logger.String(logger.FieldPhase, reading.Phase),
			logger.Float64(logger.FieldValue, reading.Value),
		)
		return nil
	}
	return a.tracker.Check(p)
}

func (a *Agent) publish(ctx context.Context, reading sampler.Reading, status models.Status) (*models.DiscoveryPayload, error) {
	p, err := a.builder.Build(reading.Value, status)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, a.interval)
	defer cancel()

	a.pubMu.Lock()
	err = a.broker.Publish(pubCtx, a.discoveryTopic, raw)
	a.pubMu.Unlock()
	if err != nil {
		a.metrics.PublishFailed()
		return nil, err
	}

	now := time.Now()
	a.mu.Lock()
	a.lastPublish = now
	a.lastPayload = raw
	r := reading
	a.lastReading = &r
	a.mu.Unlock()

	a.metrics.Published(string(status))
	a.log.Info("published discovery payload",
		logger.String(logger.FieldTopic, a.discoveryTopic),
		logger.String(logger.FieldStatus, string(status)),
		logger.String(logger.FieldPhase, reading.Phase),
		logger.Float64(logger.FieldValue, reading.Value),
	)
	return p, nil
}

// shutdown publishes the offline payload and releases the connection.
func (a *Agent) shutdown() {
	a.lifeMu.Lock()
	a.stopping.Store(true)
	a.setState(StateShuttingDown)
	a.lifeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	reading, err := a.sampler.Sample(ctx)
	if err != nil {
		a.log.WithError(err).Warn("final sample failed, using last published value")
		a.mu.RLock()
		last := a.lastReading
		a.mu.RUnlock()
		if last != nil {
			reading, err = *last, nil
		}
	}

	if err != nil {
		a.log.Error("no value to publish offline payload, consumers will rely on ttl expiry")
	} else if _, err := a.publish(ctx, reading, models.StatusOffline); err != nil {
		a.log.WithError(err).Error("failed to publish offline payload")
	}

	if err := a.broker.Close(); err != nil {
		a.log.WithError(err).Error("error closing broker connection")
	}
	a.setState(StateClosed)
	a.finish()
}

func (a *Agent) finish() {
	select {
	case <-a.done:
	default:
		close(a.done)
	}
}

func (a *Agent) handleConnect(code byte) {
	if code != 0 {
		a.log.Error("broker refused connection", logger.Int("return_code", int(code)))
		return
	}

	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()
	if a.stopping.Load() || !a.moveTo(StateConnected) {
		return
	}
	a.connectOnce.Do(func() { close(a.connected) })

	if a.builder.AcceptsCommands() {
		a.subscribe()
	}
}

func (a *Agent) handleConnectionLost(err error) {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()
	if a.stopping.Load() {
		return
	}
	a.log.WithError(err).Error("broker connection lost, waiting for reconnect")
	a.mu.Lock()
	a.subscribed = false
	a.mu.Unlock()
	a.moveTo(StateConnecting)
}

// subscribe (re)establishes the command subscription. A failure leaves the
// subscription absent until the next connect acknowledgement.
func (a *Agent) subscribe() {
	ctx, cancel := context.WithTimeout(context.Background(), a.connectTimeout)
	defer cancel()

	msgs, err := a.broker.Subscribe(ctx, a.commandTopic)
	if err != nil {
		a.log.WithError(err).Error("command subscription failed", logger.String(logger.FieldTopic, a.commandTopic))
		return
	}

	a.mu.Lock()
	a.subscribed = true
	a.mu.Unlock()
	a.log.Info("subscribed to command topic", logger.String(logger.FieldTopic, a.commandTopic))

	a.forwardOnce.Do(func() { go a.forward(msgs) })
}

// forward moves broker deliveries onto the agent's command queue.
func (a *Agent) forward(msgs <-chan pubsub.Message) {
	for {
		select {
		case <-a.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case a.queue <- msg:
			case <-a.done:
				return
			}
		}
	}
}

// Enqueue submits a command as if it had arrived on the command topic.
func (a *Agent) Enqueue(cmd models.Command) error {
	if !a.builder.AcceptsCommands() {
		return ErrCommandsDisabled
	}
	raw, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	select {
	case a.queue <- pubsub.Message{Channel: a.commandTopic, Payload: raw}:
		return nil
	default:
		return ErrQueueFull
	}
}

// State returns the current loop state.
func (a *Agent) State() State {
	return State(a.state.Load())
}

// moveTo changes to a non-terminal state. It reports false once the agent
// is shutting down or closed; those states are never left.
func (a *Agent) moveTo(s State) bool {
	for {
		cur := a.state.Load()
		if State(cur) >= StateShuttingDown {
			return false
		}
		if a.state.CompareAndSwap(cur, int32(s)) {
			a.recordState(State(cur), s)
			return true
		}
	}
}

func (a *Agent) setState(s State) {
	prev := State(a.state.Swap(int32(s)))
	a.recordState(prev, s)
}

func (a *Agent) recordState(prev, s State) {
	a.metrics.SetState(int(s))
	if prev != s {
		a.log.Info("agent state changed",
			logger.String("from", prev.String()),
			logger.String(logger.FieldState, s.String()),
		)
	}
}

// Snapshot is a point-in-time view of the agent for the admin API.
type Snapshot struct {
	ServiceID   string     `json:"service_id"`
	State       string     `json:"state"`
	Interval    string     `json:"interval"`
	StartedAt   time.Time  `json:"started_at"`
	Uptime      string     `json:"uptime"`
	LastPublish *time.Time `json:"last_publish,omitempty"`
	LastValue   *float64   `json:"last_value,omitempty"`
	Phase       string     `json:"phase,omitempty"`
	Subscribed  bool       `json:"subscribed"`
}

func (a *Agent) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Snapshot{
		ServiceID:  a.serviceID,
		State:      a.State().String(),
		Interval:   a.interval.String(),
		StartedAt:  a.startedAt,
		Subscribed: a.subscribed,
	}
	if !a.startedAt.IsZero() {
		s.Uptime = time.Since(a.startedAt).Truncate(time.Second).String()
	}
	if !a.lastPublish.IsZero() {
		t := a.lastPublish
		s.LastPublish = &t
	}
	if a.lastReading != nil {
		v := a.lastReading.Value
		s.LastValue = &v
		s.Phase = a.lastReading.Phase
	}
	return s
}

// LastPayload returns the last published payload bytes, or nil.
func (a *Agent) LastPayload() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.lastPayload == nil {
		return nil
	}
	out := make([]byte, len(a.lastPayload))
	copy(out, a.lastPayload)
	return out
}
