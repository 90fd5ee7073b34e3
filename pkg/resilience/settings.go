package resilience

import "time"

// BuildSettings produces Settings from primitive tuning knobs, substituting
// defaults for non-positive values.
func BuildSettings(name string, interval, timeout time.Duration, failureThreshold, successThreshold int) Settings {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 1
	}

	return Settings{
		Name:             name,
		Interval:         interval,
		Timeout:          timeout,
		FailureThreshold: uint32(failureThreshold),
		SuccessThreshold: uint32(successThreshold),
	}
}
