package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/metrics"
	"hyperwatch/internal/monitor"
	"hyperwatch/internal/monitor/alerts"
	"hyperwatch/internal/monitor/collectors"
	"hyperwatch/internal/monitor/storage"
)

// Agent polls telemetry sources and runs every snapshot through the alert engine
type Agent struct {
	config       *monitor.Config
	alertsConfig *alerts.Config
	logger       *logging.Logger
	server       *Server
	startTime    time.Time
	mu           sync.RWMutex

	store  storage.Store
	engine *alerts.Engine
	hub    *Hub

	collectors []collectors.Collector
	statuses   map[string]*monitor.SourceStatus

	snapshotsEvaluated int64

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// Option customizes an Agent before it is wired
type Option func(*Agent)

// WithStore replaces the configured settings backend
func WithStore(store storage.Store) Option {
	return func(a *Agent) { a.store = store }
}

// WithCollectors replaces the collectors derived from config
func WithCollectors(list ...collectors.Collector) Option {
	return func(a *Agent) { a.collectors = list }
}

// NewAgent creates a new monitoring agent
func NewAgent(config *monitor.Config, alertsConfig *alerts.Config, logger *logging.Logger, opts ...Option) (*Agent, error) {
	ctx, cancel := context.WithCancel(context.Background())

	agent := &Agent{
		config:       config,
		alertsConfig: alertsConfig,
		logger:       logger,
		startTime:    time.Now(),
		statuses:     make(map[string]*monitor.SourceStatus),
		ctx:          ctx,
		cancel:       cancel,
	}
	agent.collectors = buildCollectors(config, logger)
	for _, opt := range opts {
		opt(agent)
	}

	if agent.store == nil {
		store, err := storage.NewStore(ctx, config, logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create settings store: %w", err)
		}
		agent.store = store
	}

	agent.hub = NewHub(logger)
	agent.engine = alerts.NewEngine(agent.store, alertsConfig, logger, alerts.WithPlayer(agent.hub))
	for _, container := range alertsConfig.Containers {
		agent.engine.Dispatcher.RegisterSink(container, agent.hub.Sink(container))
	}
	agent.engine.Load(ctx)

	for _, c := range agent.collectors {
		agent.statuses[c.Name()] = &monitor.SourceStatus{Name: c.Name()}
	}

	agent.server = NewServer(config, logger, agent)

	return agent, nil
}

func buildCollectors(config *monitor.Config, logger *logging.Logger) []collectors.Collector {
	var list []collectors.Collector
	if config.Collectors.Host.Enabled {
		list = append(list, collectors.NewHostCollector(config.Collectors.Host, config.GetHostCollectorInterval(), logger))
	}
	for _, source := range config.Collectors.Remote {
		list = append(list, collectors.NewRemoteCollector(source))
	}
	return list
}

// Start starts the collectors and blocks serving the HTTP API
func (a *Agent) Start() error {
	a.logger.Info("Starting monitoring agent", "collectors", len(a.collectors), "containers", a.alertsConfig.Containers)

	a.startCollectors()

	if err := a.server.Start(); err != nil {
		return err
	}

	return nil
}

// Stop gracefully stops the monitoring agent
func (a *Agent) Stop() error {
	a.logger.Info("Stopping monitoring agent")

	// Cancel context to stop collectors
	a.cancel()

	// Dispatches racing the shutdown are dropped instead of published
	for _, container := range a.engine.Dispatcher.Containers() {
		a.engine.Dispatcher.UnregisterSink(container)
	}
	a.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var stopErr error
	if err := a.server.Stop(ctx); err != nil {
		stopErr = err
	}

	if err := a.store.Close(); err != nil {
		a.logger.Error("Failed to close settings store", "error", err)
	}

	return stopErr
}

// startCollectors starts one polling loop per collector
func (a *Agent) startCollectors() {
	for _, c := range a.collectors {
		go a.collectorLoop(c)
	}
}

// collectorLoop polls c on its interval until the agent stops
func (a *Agent) collectorLoop(c collectors.Collector) {
	interval := c.Interval()
	if interval <= 0 {
		err := fmt.Errorf("invalid poll interval %s", interval)
		a.logger.Error("Collector not started", "source", c.Name(), "error", err)
		a.recordPoll(c.Name(), time.Now(), 0, err)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	a.poll(c)

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.poll(c)
		}
	}
}

// poll collects once from c and evaluates every snapshot it returned
func (a *Agent) poll(c collectors.Collector) {
	start := time.Now()
	snapshots, err := c.Collect(a.ctx)
	metrics.CollectorPollDuration.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())

	now := time.Now()
	if err != nil {
		a.logger.Error("Failed to collect snapshots", "source", c.Name(), "error", err)
		metrics.CollectorPollsTotal.WithLabelValues(c.Name(), "failed").Inc()
		a.recordPoll(c.Name(), now, 0, err)
		return
	}
	metrics.CollectorPollsTotal.WithLabelValues(c.Name(), "success").Inc()
	a.logger.Debug("Collected snapshots", "source", c.Name(), "count", len(snapshots))

	for i := range snapshots {
		a.engine.Process(a.ctx, &snapshots[i])
	}
	a.countEvaluated(len(snapshots))
	a.recordPoll(c.Name(), now, len(snapshots), nil)
}

func (a *Agent) countEvaluated(n int) {
	a.mu.Lock()
	a.snapshotsEvaluated += int64(n)
	a.mu.Unlock()
}

func (a *Agent) recordPoll(name string, at time.Time, snapshots int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	status, ok := a.statuses[name]
	if !ok {
		status = &monitor.SourceStatus{Name: name}
		a.statuses[name] = status
	}
	status.LastPoll = &at
	status.Snapshots = snapshots
	status.LastError = ""
	if err != nil {
		status.LastError = err.Error()
		return
	}
	status.Evaluations += int64(snapshots)
}

// Evaluate runs one pushed snapshot through the engine. It returns every
// threshold crossing and the notifications that were actually shown.
func (a *Agent) Evaluate(ctx context.Context, snapshot *monitor.Snapshot) ([]alerts.NotificationEvent, []*alerts.Notification) {
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now()
	}
	events := a.engine.Evaluate(snapshot)
	shown := a.engine.Dispatcher.DispatchAll(ctx, events)

	a.countEvaluated(1)
	return events, shown
}

// Engine exposes the alert pipeline
func (a *Agent) Engine() *alerts.Engine {
	return a.engine
}

// Hub exposes the websocket hub
func (a *Agent) Hub() *Hub {
	return a.hub
}

// Store exposes the settings backend
func (a *Agent) Store() storage.Store {
	return a.store
}

// GetUptime returns how long the agent has been running
func (a *Agent) GetUptime() time.Duration {
	return time.Since(a.startTime)
}

// GetStartTime returns when the agent was created
func (a *Agent) GetStartTime() time.Time {
	return a.startTime
}

// GetSnapshotsEvaluated returns how many snapshots went through the engine
func (a *Agent) GetSnapshotsEvaluated() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotsEvaluated
}

// GetSourceStatuses returns a copy of every source's polling status
func (a *Agent) GetSourceStatuses() []monitor.SourceStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	statuses := make([]monitor.SourceStatus, 0, len(a.collectors))
	for _, c := range a.collectors {
		if status, ok := a.statuses[c.Name()]; ok {
			statuses = append(statuses, *status)
		}
	}
	return statuses
}
