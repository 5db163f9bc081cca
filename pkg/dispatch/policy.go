package dispatch

import "fmt"

// waveCount is the fixed number of concentric broadcast rings (§4.4.1).
const waveCount = 5

// Policy configures the wave dispatcher (§6.2 of SPEC_FULL.md).
type Policy struct {
	WaveTimeoutSeconds      float64    `json:"wave_timeout_seconds,omitempty"`
	WaveRadiiDegrees        [5]float64 `json:"wave_radii_degrees,omitempty"`
	WaveETASeconds          [5]float64 `json:"wave_eta_seconds,omitempty"`
	DefaultRequiredCapacity int        `json:"default_required_capacity,omitempty"`
}

// DefaultPolicy returns reasonable defaults for a single dispatch zone.
func DefaultPolicy() Policy {
	return Policy{
		WaveTimeoutSeconds:      12,
		WaveRadiiDegrees:        [5]float64{0.01, 0.02, 0.04, 0.08, 0.15},
		WaveETASeconds:          [5]float64{120, 240, 420, 660, 900},
		DefaultRequiredCapacity: 1,
	}
}

// Validate checks the invariants of §6.2. Failure here is fatal
// (InvalidPolicy, §7).
func (p Policy) Validate() error {
	if p.WaveTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: wave_timeout_seconds must be > 0, got %v", ErrInvalidPolicy, p.WaveTimeoutSeconds)
	}
	if err := strictlyIncreasing(p.WaveRadiiDegrees); err != nil {
		return fmt.Errorf("%w: wave_radii_degrees %s", ErrInvalidPolicy, err)
	}
	if err := strictlyIncreasing(p.WaveETASeconds); err != nil {
		return fmt.Errorf("%w: wave_eta_seconds %s", ErrInvalidPolicy, err)
	}
	if p.DefaultRequiredCapacity < 1 {
		return fmt.Errorf("%w: default_required_capacity must be >= 1, got %d", ErrInvalidPolicy, p.DefaultRequiredCapacity)
	}
	return nil
}

func strictlyIncreasing(thresholds [waveCount]float64) error {
	for i := 1; i < waveCount; i++ {
		if thresholds[i] <= thresholds[i-1] {
			return fmt.Errorf("must be strictly increasing, got %v", thresholds)
		}
	}
	return nil
}
