package walks

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MJE43/lattice-walk-go/internal/engine"
	"github.com/MJE43/lattice-walk-go/internal/lattice"
)

// DefaultMaxSteps caps a single self-avoiding trial. Real 2D walks trap after
// about seventy steps; hitting the cap means something is broken.
const DefaultMaxSteps = 1 << 22

// ErrStepLimit is returned when a self-avoiding trial reaches its step cap
// without trapping.
var ErrStepLimit = errors.New("self-avoiding walk exceeded step limit")

type visitedSet = map[lattice.Vec[int]]struct{}

var visitedPool = sync.Pool{
	New: func() any {
		return make(visitedSet, 256)
	},
}

// SelfAvoiding grows a walk from the origin until every neighbour of the
// current cell has been visited and returns the number of steps taken.
// maxSteps <= 0 disables the cap.
func SelfAvoiding(src engine.Source, maxSteps int) (int, error) {
	return selfAvoiding(src, maxSteps, nil)
}

func selfAvoiding(src engine.Source, maxSteps int, visit func(lattice.Direction)) (int, error) {
	visited := visitedPool.Get().(visitedSet)
	defer func() {
		clear(visited)
		visitedPool.Put(visited)
	}()

	var pos lattice.Vec[int]
	steps := 0

	for {
		// The origin is marked before the first move.
		visited[pos] = struct{}{}

		d, ok := pickUnvisited(src, pos, visited)
		if !ok {
			return steps, nil
		}
		if maxSteps > 0 && steps >= maxSteps {
			return steps, fmt.Errorf("%w: %d steps", ErrStepLimit, steps)
		}

		pos = pos.Add(lattice.Step[int](d))
		steps++
		if visit != nil {
			visit(d)
		}
	}
}

// pickUnvisited tests the four neighbours in a uniformly random order, drawn
// without replacement, and returns the first one not yet visited.
func pickUnvisited(src engine.Source, pos lattice.Vec[int], visited visitedSet) (lattice.Direction, bool) {
	pool := lattice.Directions()
	n := len(pool)

	for n > 0 {
		i := src.IntN(n)
		d := pool[i]
		if _, taken := visited[pos.Add(lattice.Step[int](d))]; !taken {
			return d, true
		}
		copy(pool[i:n-1], pool[i+1:n])
		n--
	}

	return lattice.NoDirection, false
}

// SelfAvoidingWalk is the growing self-avoiding walk that stops when trapped.
type SelfAvoidingWalk struct {
	MaxSteps int
}

func (SelfAvoidingWalk) Spec() WalkSpec {
	return WalkSpec{
		ID:          "selfavoiding",
		Name:        "Self-avoiding walk",
		MetricLabel: "steps",
		FixedLength: false,
	}
}

func (w SelfAvoidingWalk) Sample(src engine.Source, _ int) (float64, error) {
	steps, err := selfAvoiding(src, w.MaxSteps, nil)
	return float64(steps), err
}

func (w SelfAvoidingWalk) Trace(src engine.Source, _ int) (Path, error) {
	rec := newPathRecorder(w.Spec().ID, 128)
	steps, err := selfAvoiding(src, w.MaxSteps, rec.visit)
	rec.path.Metric = float64(steps)
	rec.path.Trapped = err == nil
	return rec.path, err
}
