package alerts

import (
	"errors"
	"fmt"
)

// ErrInvalidThreshold is returned when a threshold is out of range or
// critical is below warning
var ErrInvalidThreshold = errors.New("invalid threshold")

// DefaultThresholds returns the built-in threshold set
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		CPU:     Threshold{Warning: 75, Critical: 90, Enabled: true},
		Memory:  Threshold{Warning: 80, Critical: 95, Enabled: true},
		Storage: Threshold{Warning: 85, Critical: 95, Enabled: true},
	}
}

// Get returns the threshold for a resource kind
func (s ThresholdSet) Get(resource Resource) Threshold {
	switch resource {
	case ResourceCPU:
		return s.CPU
	case ResourceMemory:
		return s.Memory
	case ResourceStorage:
		return s.Storage
	default:
		return Threshold{}
	}
}

// Validate checks every resource kind
func (s ThresholdSet) Validate() error {
	for _, resource := range Resources {
		if err := s.Get(resource).Validate(); err != nil {
			return fmt.Errorf("%s: %w", resource, err)
		}
	}
	return nil
}

// Validate checks range and ordering of a single threshold
func (t Threshold) Validate() error {
	if t.Warning < 0 || t.Warning > 100 {
		return fmt.Errorf("%w: warning %.1f outside 0-100", ErrInvalidThreshold, t.Warning)
	}
	if t.Critical < 0 || t.Critical > 100 {
		return fmt.Errorf("%w: critical %.1f outside 0-100", ErrInvalidThreshold, t.Critical)
	}
	if t.Critical < t.Warning {
		return fmt.Errorf("%w: critical %.1f below warning %.1f", ErrInvalidThreshold, t.Critical, t.Warning)
	}
	return nil
}

// Apply returns t with the fields present in p replaced
func (p *ThresholdPatch) Apply(t Threshold) Threshold {
	if p == nil {
		return t
	}
	if p.Warning != nil {
		t.Warning = *p.Warning
	}
	if p.Critical != nil {
		t.Critical = *p.Critical
	}
	if p.Enabled != nil {
		t.Enabled = *p.Enabled
	}
	return t
}

// Apply returns s with each resource kind merged field by field. Kinds
// absent from the patch are left untouched.
func (p ThresholdSetPatch) Apply(s ThresholdSet) ThresholdSet {
	s.CPU = p.CPU.Apply(s.CPU)
	s.Memory = p.Memory.Apply(s.Memory)
	s.Storage = p.Storage.Apply(s.Storage)
	return s
}

// IsEmpty reports whether the patch changes nothing
func (p ThresholdSetPatch) IsEmpty() bool {
	return p.CPU == nil && p.Memory == nil && p.Storage == nil
}
