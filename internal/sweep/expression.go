package sweep

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dop251/goja"
)

// expressionTimeout bounds the evaluation of a whole expression sweep.
const expressionTimeout = 2 * time.Second

var ErrInvalidExpression = errors.New("invalid sweep expression")

// Expression evaluates a JavaScript expression in i for i = 0..count-1, for
// example "(i+1)*20-10". The expression runs in a sandbox with no module
// loading or dynamic code evaluation, and every result must be a
// non-negative integer.
func Expression(expr string, count int) ([]int, error) {
	if count <= 0 {
		return nil, ErrEmptySweep
	}
	if count > MaxConfigurations {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyConfigurations, count, MaxConfigurations)
	}

	vm := goja.New()

	// Block dangerous globals.
	vm.Set("require", goja.Undefined())
	vm.Set("eval", goja.Undefined())
	vm.Set("Function", goja.Undefined())

	timer := time.AfterFunc(expressionTimeout, func() {
		vm.Interrupt("sweep expression timed out")
	})
	defer timer.Stop()

	fnVal, err := vm.RunString("(function (i) { return (" + expr + "); })")
	if err != nil {
		return nil, expressionError(err, "")
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, fmt.Errorf("%w: not callable", ErrInvalidExpression)
	}

	steps := make([]int, count)
	for i := range steps {
		v, err := fn(goja.Undefined(), vm.ToValue(i))
		if err != nil {
			return nil, expressionError(err, fmt.Sprintf("i=%d", i))
		}

		n, err := toSteps(v)
		if err != nil {
			return nil, fmt.Errorf("%w: i=%d: %w", ErrInvalidExpression, i, err)
		}
		steps[i] = n
	}

	return steps, Validate(steps)
}

func expressionError(err error, where string) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("%w: timed out after %s", ErrInvalidExpression, expressionTimeout)
	}
	if where != "" {
		return fmt.Errorf("%w: %s: %v", ErrInvalidExpression, where, err)
	}
	return fmt.Errorf("%w: %v", ErrInvalidExpression, err)
}

func toSteps(v goja.Value) (int, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, errors.New("expression returned no value")
	}
	f := v.ToFloat()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expression returned %v", f)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expression returned non-integer %v", f)
	}
	if f < 0 {
		return 0, fmt.Errorf("%w: %v", ErrNegativeSteps, f)
	}
	if f > MaxSteps {
		return 0, fmt.Errorf("%w: %v", ErrStepsTooLarge, f)
	}
	return int(f), nil
}
