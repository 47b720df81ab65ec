package alerts

import (
	"context"
	"errors"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/metrics"
	"hyperwatch/internal/monitor"
	"hyperwatch/internal/monitor/alerts/notifiers"
)

// EmailNotifierWrapper wraps the notifiers.EmailNotifier to implement our Notifier interface
type EmailNotifierWrapper struct {
	notifier *notifiers.EmailNotifier
}

func (w *EmailNotifierWrapper) Name() string {
	return w.notifier.Name()
}

func (w *EmailNotifierWrapper) IsEnabled() bool {
	return w.notifier.IsEnabled()
}

func (w *EmailNotifierWrapper) Send(notification *Notification) error {
	err := w.notifier.Send(toMessage(notification))
	if errors.Is(err, notifiers.ErrSkipped) {
		return nil
	}
	return err
}

func toMessage(n *Notification) *notifiers.Message {
	return &notifiers.Message{
		ID:        n.ID,
		Severity:  notifiers.Severity(n.Severity),
		Resource:  string(n.Resource),
		Subject:   n.Event.Subject,
		SubjectID: n.Event.SubjectID,
		Text:      n.Message,
		Value:     n.Event.Value,
		Threshold: n.Event.Threshold,
		Container: n.Container,
		CreatedAt: n.CreatedAt,
	}
}

// Engine ties the threshold store, evaluator and dispatcher together
type Engine struct {
	Store      *ThresholdStore
	Evaluator  *Evaluator
	Dispatcher *Dispatcher

	logger *logging.Logger
}

// NewEngine builds the alert pipeline. Extra options are applied to the
// dispatcher after the ones derived from config.
func NewEngine(backend SettingsBackend, config *Config, logger *logging.Logger, opts ...DispatcherOption) *Engine {
	store := NewThresholdStore(backend, logger)

	dispatcherOpts := []DispatcherOption{
		WithDismissAfter(config.DismissAfter),
		WithSoundAsset(config.SoundAsset),
		WithNotifiers(initializeNotifiers(config, logger)...),
	}
	dispatcherOpts = append(dispatcherOpts, opts...)

	return &Engine{
		Store:      store,
		Evaluator:  NewEvaluator(store, config.TargetContainer),
		Dispatcher: NewDispatcher(store, logger, dispatcherOpts...),
		logger:     logger,
	}
}

// initializeNotifiers sets up notification channels based on configuration
func initializeNotifiers(config *Config, logger *logging.Logger) []Notifier {
	var list []Notifier

	if config.Email.Enabled {
		emailNotifier := notifiers.NewEmailNotifier(&notifiers.EmailConfig{
			Enabled:         config.Email.Enabled,
			ResendAPIKey:    config.Email.ResendAPIKey,
			FromEmail:       config.Email.FromEmail,
			FromName:        config.Email.FromName,
			DefaultTo:       config.Email.DefaultTo,
			MinSeverity:     notifiers.Severity(config.Email.MinSeverity),
			SubjectTemplate: config.Email.SubjectTemplate,
			BodyTemplate:    config.Email.BodyTemplate,
		})
		if !emailNotifier.IsEnabled() {
			logger.Warn("Email alerts enabled but no Resend API key configured")
		}
		list = append(list, &EmailNotifierWrapper{notifier: emailNotifier})
	}

	logger.Debug("Notifiers initialized", "count", len(list))
	return list
}

// Load reads persisted thresholds into the store
func (e *Engine) Load(ctx context.Context) {
	e.Store.Load(ctx)
}

// Evaluate checks a snapshot and records evaluation metrics without dispatching
func (e *Engine) Evaluate(snapshot *monitor.Snapshot) []NotificationEvent {
	if snapshot == nil {
		return nil
	}
	metrics.SnapshotsEvaluated.WithLabelValues(string(snapshot.Kind)).Inc()

	events := e.Evaluator.Evaluate(snapshot)
	for _, event := range events {
		metrics.EventsTotal.WithLabelValues(string(event.Resource), string(event.Severity)).Inc()
	}
	return events
}

// Process evaluates a snapshot and dispatches every resulting event
func (e *Engine) Process(ctx context.Context, snapshot *monitor.Snapshot) []*Notification {
	events := e.Evaluate(snapshot)
	if len(events) == 0 {
		return nil
	}
	e.logger.Debug("Threshold crossings", "entity", snapshot.Label(), "events", len(events))
	return e.Dispatcher.DispatchAll(ctx, events)
}
