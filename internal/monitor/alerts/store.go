package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/monitor/storage"
)

// SettingsBackend is the key/value persistence used by ThresholdStore
type SettingsBackend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// ThresholdStore owns the effective ThresholdSet and the global alerts flag.
//
// Evaluation reads and API updates run on different goroutines, so every
// access goes through mu. Writers also hold persistMu from apply to Set so
// the saved value always matches the last in-memory one. Persistence
// failures are logged and never reach the caller.
type ThresholdStore struct {
	persistMu sync.Mutex

	mu         sync.RWMutex
	thresholds ThresholdSet
	enabled    bool

	backend SettingsBackend
	logger  *logging.Logger
}

// NewThresholdStore creates a store holding the defaults. Call Load to pick
// up persisted values.
func NewThresholdStore(backend SettingsBackend, logger *logging.Logger) *ThresholdStore {
	return &ThresholdStore{
		thresholds: DefaultThresholds(),
		enabled:    true,
		backend:    backend,
		logger:     logger,
	}
}

// Load merges persisted thresholds over the defaults and reads the alerts
// flag. Malformed data is logged and the defaults are kept.
func (s *ThresholdStore) Load(ctx context.Context) {
	thresholds := DefaultThresholds()

	raw, err := s.backend.Get(ctx, ThresholdsKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		s.logger.Error("Failed to read resource thresholds", "error", err)
	default:
		var patch ThresholdSetPatch
		if err := json.Unmarshal([]byte(raw), &patch); err != nil {
			s.logger.Error("Failed to parse resource thresholds, using defaults", "error", err)
		} else {
			thresholds = mergeValid(thresholds, patch, s.logger)
		}
	}

	enabled := true
	flag, err := s.backend.Get(ctx, AlertsEnabledKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := s.backend.Set(ctx, AlertsEnabledKey, "true"); err != nil {
			s.logger.Warn("Failed to persist default alerts flag", "error", err)
		}
	case err != nil:
		s.logger.Error("Failed to read alerts flag", "error", err)
	default:
		enabled = flag != "false"
	}

	s.mu.Lock()
	s.thresholds = thresholds
	s.enabled = enabled
	s.mu.Unlock()

	s.logger.Info("Resource thresholds loaded",
		"cpu", thresholds.CPU, "memory", thresholds.Memory, "storage", thresholds.Storage,
		"alerts_enabled", enabled)
}

// mergeValid applies each kind of the patch on its own so that one bad
// entry does not discard the others
func mergeValid(base ThresholdSet, patch ThresholdSetPatch, logger *logging.Logger) ThresholdSet {
	merge := func(resource Resource, current Threshold, p *ThresholdPatch) Threshold {
		merged := p.Apply(current)
		if err := merged.Validate(); err != nil {
			logger.Warn("Ignoring persisted threshold", "resource", resource, "error", err)
			return current
		}
		return merged
	}

	base.CPU = merge(ResourceCPU, base.CPU, patch.CPU)
	base.Memory = merge(ResourceMemory, base.Memory, patch.Memory)
	base.Storage = merge(ResourceStorage, base.Storage, patch.Storage)
	return base
}

// Thresholds returns a copy of the effective configuration
func (s *ThresholdStore) Thresholds() ThresholdSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds
}

// UpdateThresholds merges patch into the current set and persists the full
// set. Only validation failures are returned.
func (s *ThresholdStore) UpdateThresholds(ctx context.Context, patch ThresholdSetPatch) (ThresholdSet, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	updated := patch.Apply(s.thresholds)
	if err := updated.Validate(); err != nil {
		current := s.thresholds
		s.mu.Unlock()
		return current, err
	}
	s.thresholds = updated
	s.mu.Unlock()

	s.persistThresholds(ctx, updated)
	return updated, nil
}

func (s *ThresholdStore) persistThresholds(ctx context.Context, thresholds ThresholdSet) {
	data, err := json.Marshal(thresholds)
	if err != nil {
		s.logger.Error("Failed to encode resource thresholds", "error", err)
		return
	}
	if err := s.backend.Set(ctx, ThresholdsKey, string(data)); err != nil {
		s.logger.Error("Failed to persist resource thresholds", "error", err)
		return
	}
	s.logger.Debug("Resource thresholds saved", "value", string(data))
}

// AlertsEnabled reports the global flag
func (s *ThresholdStore) AlertsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// ToggleAlerts sets and persists the global flag. Notifications already
// shown keep their dismiss timers.
func (s *ThresholdStore) ToggleAlerts(ctx context.Context, enabled bool) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()

	if err := s.backend.Set(ctx, AlertsEnabledKey, strconv.FormatBool(enabled)); err != nil {
		s.logger.Error("Failed to persist alerts flag", "error", err)
	}
	s.logger.Info("Resource alerts toggled", "enabled", enabled)
}
