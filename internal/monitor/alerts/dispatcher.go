package alerts

import (
	"context"
	"sort"
	"sync"
	"time"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/metrics"

	"github.com/google/uuid"
)

// AlertsGate reports whether notifications may be produced at all
type AlertsGate interface {
	AlertsEnabled() bool
}

// Dispatcher renders events into notifications, shows them on the sink
// registered for their container and dismisses each one after a fixed delay.
type Dispatcher struct {
	gate   AlertsGate
	logger *logging.Logger

	mu     sync.Mutex
	sinks  map[string]Sink
	active map[string]*Notification

	notifiers    []Notifier
	player       Player
	soundAsset   string
	dismissAfter time.Duration

	now       func() time.Time
	afterFunc func(time.Duration, func())
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithPlayer sets the audio player used for critical notifications
func WithPlayer(player Player) DispatcherOption {
	return func(d *Dispatcher) { d.player = player }
}

// WithNotifiers adds notification channels that receive every shown notification
func WithNotifiers(notifiers ...Notifier) DispatcherOption {
	return func(d *Dispatcher) { d.notifiers = append(d.notifiers, notifiers...) }
}

// WithSoundAsset overrides the audio asset path
func WithSoundAsset(asset string) DispatcherOption {
	return func(d *Dispatcher) {
		if asset != "" {
			d.soundAsset = asset
		}
	}
}

// WithDismissAfter overrides how long notifications stay visible
func WithDismissAfter(after time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if after > 0 {
			d.dismissAfter = after
		}
	}
}

// WithClock replaces the time source and the timer used for dismissal
func WithClock(now func() time.Time, afterFunc func(time.Duration, func())) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
		d.afterFunc = afterFunc
	}
}

// NewDispatcher creates a dispatcher with no sinks registered
func NewDispatcher(gate AlertsGate, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		gate:         gate,
		logger:       logger,
		sinks:        make(map[string]Sink),
		active:       make(map[string]*Notification),
		soundAsset:   DefaultSoundAsset,
		dismissAfter: DefaultDismissAfter,
		now:          time.Now,
		afterFunc: func(after time.Duration, f func()) {
			time.AfterFunc(after, f)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterSink makes container available as a dispatch target
func (d *Dispatcher) RegisterSink(container string, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks[container] = sink
}

// UnregisterSink removes a container. Pending dismiss timers still fire
// against the sink that showed the notification.
func (d *Dispatcher) UnregisterSink(container string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sinks, container)
}

// Containers lists the registered container identifiers
func (d *Dispatcher) Containers() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	containers := make([]string, 0, len(d.sinks))
	for container := range d.sinks {
		containers = append(containers, container)
	}
	sort.Strings(containers)
	return containers
}

// Dispatch shows the notification for event. It returns nil when alerts are
// disabled, the container is unknown or the sink refused it. Audio and
// notifier failures are logged only.
func (d *Dispatcher) Dispatch(ctx context.Context, event NotificationEvent) *Notification {
	if !d.gate.AlertsEnabled() {
		metrics.NotificationsDropped.WithLabelValues("disabled").Inc()
		return nil
	}

	container := event.Container
	if container == "" {
		container = DefaultContainer
	}

	d.mu.Lock()
	sink, ok := d.sinks[container]
	d.mu.Unlock()
	if !ok {
		d.logger.Debug("Dropping notification for missing container", "container", container, "subject", event.Subject)
		metrics.NotificationsDropped.WithLabelValues("no_container").Inc()
		return nil
	}

	now := d.now()
	notification := &Notification{
		ID:        uuid.New().String(),
		Container: container,
		Severity:  event.Severity,
		Resource:  event.Resource,
		Message:   RenderMessage(event),
		Icon:      Icon(event.Resource),
		Class:     SeverityClass(event.Severity),
		CreatedAt: now,
		ExpiresAt: now.Add(d.dismissAfter),
		Event:     event,
	}
	notification.Event.Container = container

	// Listed as active before it is shown so a client subscribing mid-show
	// finds it either in Active or on the stream
	d.mu.Lock()
	d.active[notification.ID] = notification
	d.mu.Unlock()

	if err := sink.Show(notification); err != nil {
		d.mu.Lock()
		delete(d.active, notification.ID)
		d.mu.Unlock()
		d.logger.Warn("Failed to show notification", "container", container, "error", err)
		metrics.NotificationsDropped.WithLabelValues("sink_error").Inc()
		return nil
	}
	metrics.ActiveNotifications.Inc()
	metrics.NotificationsShown.WithLabelValues(container, string(event.Severity)).Inc()

	id := notification.ID
	d.afterFunc(d.dismissAfter, func() {
		d.dismiss(sink, id)
	})

	d.logger.Info("Resource alert",
		"severity", event.Severity, "container", container, "message", notification.Message)

	if event.Severity == SeverityCritical {
		d.playSound(container)
	}

	if len(d.notifiers) > 0 {
		copied := *notification
		go d.notify(&copied)
	}

	return notification
}

// DispatchAll dispatches events in order and returns the notifications shown
func (d *Dispatcher) DispatchAll(ctx context.Context, events []NotificationEvent) []*Notification {
	var shown []*Notification
	for _, event := range events {
		if n := d.Dispatch(ctx, event); n != nil {
			shown = append(shown, n)
		}
	}
	return shown
}

func (d *Dispatcher) dismiss(sink Sink, id string) {
	d.mu.Lock()
	_, ok := d.active[id]
	delete(d.active, id)
	d.mu.Unlock()

	if !ok {
		return
	}
	metrics.ActiveNotifications.Dec()
	sink.Dismiss(id)
}

func (d *Dispatcher) playSound(container string) {
	if d.player == nil {
		return
	}
	if err := d.player.Play(container, d.soundAsset); err != nil {
		d.logger.Warn("Could not play alert sound", "asset", d.soundAsset, "error", err)
		metrics.SoundAttempts.WithLabelValues("failed").Inc()
		return
	}
	metrics.SoundAttempts.WithLabelValues("success").Inc()
}

func (d *Dispatcher) notify(notification *Notification) {
	for _, notifier := range d.notifiers {
		if !notifier.IsEnabled() {
			continue
		}
		if err := notifier.Send(notification); err != nil {
			d.logger.Warn("Failed to send notification", "notifier", notifier.Name(), "error", err)
			metrics.NotifierSendTotal.WithLabelValues(notifier.Name(), "failed").Inc()
			continue
		}
		metrics.NotifierSendTotal.WithLabelValues(notifier.Name(), "success").Inc()
	}
}

// Active returns the notifications that have not been dismissed yet, oldest first
func (d *Dispatcher) Active() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()

	active := make([]Notification, 0, len(d.active))
	for _, n := range d.active {
		active = append(active, *n)
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active
}
