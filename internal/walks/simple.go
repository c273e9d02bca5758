package walks

import (
	"github.com/MJE43/lattice-walk-go/internal/engine"
	"github.com/MJE43/lattice-walk-go/internal/lattice"
)

// Simple performs n uniform steps from the origin, allowing immediate
// reversals, and returns the Euclidean distance from the origin.
func Simple(src engine.Source, n int) float64 {
	return simple(src, n, nil)
}

func simple(src engine.Source, n int, visit func(lattice.Direction)) float64 {
	var pos lattice.Vec[float64]

	for range n {
		d := lattice.DirectionOf(src.Uint64())
		pos = pos.Add(lattice.Step[float64](d))
		if visit != nil {
			visit(d)
		}
	}

	return pos.Norm()
}

// SimpleWalk is the unrestricted lattice walk.
type SimpleWalk struct{}

func (SimpleWalk) Spec() WalkSpec {
	return WalkSpec{
		ID:          "simple",
		Name:        "Lattice walk",
		MetricLabel: "displacement",
		FixedLength: true,
	}
}

func (SimpleWalk) Sample(src engine.Source, steps int) (float64, error) {
	return simple(src, steps, nil), nil
}

func (w SimpleWalk) Trace(src engine.Source, steps int) (Path, error) {
	rec := newPathRecorder(w.Spec().ID, steps)
	rec.path.Metric = simple(src, steps, rec.visit)
	return rec.path, nil
}
