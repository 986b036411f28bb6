package scheduler

import "time"

const (
	// DefaultMinTimeout is the intervention window at full sovereignty.
	DefaultMinTimeout = 5 * time.Second
	// DefaultMaxTimeout is the intervention window at zero sovereignty.
	DefaultMaxTimeout = 60 * time.Second
)

// TimeoutPolicy maps sovereignty to an intervention window: the more
// trust the worker has earned, the less time a supervisor gets to veto.
type TimeoutPolicy struct {
	Min time.Duration
	Max time.Duration
}

// DefaultTimeoutPolicy returns the stock 60s-to-5s linear mapping.
func DefaultTimeoutPolicy() TimeoutPolicy {
	return TimeoutPolicy{Min: DefaultMinTimeout, Max: DefaultMaxTimeout}
}

// Duration interpolates linearly between Max (sovereignty 0) and Min
// (sovereignty 1). Out-of-range sovereignty clamps to the nearer bound.
func (p TimeoutPolicy) Duration(sovereignty float64) time.Duration {
	min, max := p.Min, p.Max
	if min <= 0 {
		min = DefaultMinTimeout
	}
	if max < min {
		max = min
	}
	if sovereignty <= 0 {
		return max
	}
	if sovereignty >= 1 {
		return min
	}
	return max - time.Duration(float64(max-min)*sovereignty)
}
