package sampling

import "errors"

var (
	ErrWalkNotFound     = errors.New("walk not found")
	ErrInvalidSamples   = errors.New("sample count must be positive")
	ErrTooManySamples   = errors.New("sample count too large")
	ErrInvalidSteps     = errors.New("step count must be non-negative")
	ErrStepsTooLarge    = errors.New("step count too large")
	ErrNoConfigurations = errors.New("sweep has no step configurations")
)
