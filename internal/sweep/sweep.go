// Package sweep builds the ordered list of step counts a sampling run
// evaluates.
package sweep

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxConfigurations bounds the number of step counts in one sweep.
	MaxConfigurations = 10_000

	// MaxSteps bounds a single step count.
	MaxSteps = 10_000_000
)

var (
	ErrEmptySweep            = errors.New("sweep is empty")
	ErrNegativeSteps         = errors.New("step count must be non-negative")
	ErrStepsTooLarge         = errors.New("step count too large")
	ErrTooManyConfigurations = errors.New("too many sweep configurations")
)

// Definition describes a sweep. The first non-empty form wins: List, then
// Expression, then the arithmetic progression.
type Definition struct {
	Start      int    `yaml:"start" json:"start"`
	Stride     int    `yaml:"stride" json:"stride"`
	Count      int    `yaml:"count" json:"count"`
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`
	List       []int  `yaml:"list,omitempty" json:"list,omitempty"`
}

// Default is 10, 30, 50, ..., 990: n_i = 20(i+1) - 10 for i in [0, 50).
func Default() Definition {
	return Definition{Start: 10, Stride: 20, Count: 50}
}

// Build expands the definition into step counts.
func (d Definition) Build() ([]int, error) {
	switch {
	case len(d.List) > 0:
		steps := append([]int(nil), d.List...)
		return steps, Validate(steps)
	case strings.TrimSpace(d.Expression) != "":
		return Expression(d.Expression, d.Count)
	default:
		return Arithmetic(d.Start, d.Stride, d.Count)
	}
}

// Arithmetic returns start, start+stride, ... with count entries.
func Arithmetic(start, stride, count int) ([]int, error) {
	if count <= 0 {
		return nil, ErrEmptySweep
	}
	if count > MaxConfigurations {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyConfigurations, count, MaxConfigurations)
	}

	steps := make([]int, count)
	for i := range steps {
		steps[i] = start + i*stride
	}
	return steps, Validate(steps)
}

// Parse reads a comma-separated list such as "10, 990, 30".
func Parse(list string) ([]int, error) {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	steps := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid step count %q: %w", f, err)
		}
		steps = append(steps, n)
	}
	return steps, Validate(steps)
}

// Validate checks a list of step counts against the sweep limits.
func Validate(steps []int) error {
	if len(steps) == 0 {
		return ErrEmptySweep
	}
	if len(steps) > MaxConfigurations {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyConfigurations, len(steps), MaxConfigurations)
	}
	for i, n := range steps {
		if n < 0 {
			return fmt.Errorf("%w: entry %d is %d", ErrNegativeSteps, i, n)
		}
		if n > MaxSteps {
			return fmt.Errorf("%w: entry %d is %d (max %d)", ErrStepsTooLarge, i, n, MaxSteps)
		}
	}
	return nil
}

// String renders steps as a comma-separated list, the inverse of Parse.
func String(steps []int) string {
	parts := make([]string, len(steps))
	for i, n := range steps {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
