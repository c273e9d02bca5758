package walks

import (
	"github.com/MJE43/lattice-walk-go/internal/engine"
	"github.com/MJE43/lattice-walk-go/internal/lattice"
)

// NonReversing performs n steps from the origin, never stepping straight back
// onto the previous cell, and returns the Euclidean distance from the origin.
func NonReversing(src engine.Source, n int) float64 {
	return nonReversing(src, n, nil)
}

func nonReversing(src engine.Source, n int, visit func(lattice.Direction)) float64 {
	var pos lattice.Vec[float64]
	prev := lattice.NoDirection

	for range n {
		// At most one of four candidates is ever rejected.
		d := lattice.DirectionOf(src.Uint64())
		for d.Opposite() == prev {
			d = lattice.DirectionOf(src.Uint64())
		}

		prev = d
		pos = pos.Add(lattice.Step[float64](d))
		if visit != nil {
			visit(d)
		}
	}

	return pos.Norm()
}

// NonReversingWalk is the lattice walk without immediate returns.
type NonReversingWalk struct{}

func (NonReversingWalk) Spec() WalkSpec {
	return WalkSpec{
		ID:          "nonreversing",
		Name:        "Lattice walk without returns",
		MetricLabel: "displacement",
		FixedLength: true,
	}
}

func (NonReversingWalk) Sample(src engine.Source, steps int) (float64, error) {
	return nonReversing(src, steps, nil), nil
}

func (w NonReversingWalk) Trace(src engine.Source, steps int) (Path, error) {
	rec := newPathRecorder(w.Spec().ID, steps)
	rec.path.Metric = nonReversing(src, steps, rec.visit)
	return rec.path, nil
}
