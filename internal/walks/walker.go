package walks

import (
	"sort"

	"github.com/MJE43/lattice-walk-go/internal/engine"
	"github.com/MJE43/lattice-walk-go/internal/lattice"
)

// Walker is a stepping algorithm that can be sampled repeatedly. A single
// call to Sample is one independent trial; implementations keep no state
// between calls and are safe for concurrent use as long as every goroutine
// supplies its own Source.
type Walker interface {
	Spec() WalkSpec
	// Sample runs one trial and returns its metric. Walks whose spec is not
	// FixedLength ignore steps.
	Sample(src engine.Source, steps int) (float64, error)
	// Trace runs one trial and records every step taken.
	Trace(src engine.Source, steps int) (Path, error)
}

// WalkSpec describes a registered walk.
type WalkSpec struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MetricLabel string `json:"metric_label"`
	// FixedLength is false for walks whose length is decided by the walk
	// itself rather than by the steps argument.
	FixedLength bool `json:"fixed_length"`
}

// Path is the full record of one traced trial.
type Path struct {
	Walk       string              `json:"walk"`
	Directions []lattice.Direction `json:"-"`
	Positions  []lattice.Vec[int]  `json:"positions"`
	Metric     float64             `json:"metric"`
	Trapped    bool                `json:"trapped,omitempty"`
}

// Steps returns the number of steps taken.
func (p Path) Steps() int {
	return len(p.Directions)
}

// End returns the final position.
func (p Path) End() lattice.Vec[int] {
	return p.Positions[len(p.Positions)-1]
}

// DirectionNames renders the direction history, e.g. ["+x", "-y"].
func (p Path) DirectionNames() []string {
	names := make([]string, len(p.Directions))
	for i, d := range p.Directions {
		names[i] = d.String()
	}
	return names
}

// pathRecorder accumulates a Path through the per-step visit callback.
type pathRecorder struct {
	path Path
	pos  lattice.Vec[int]
}

func newPathRecorder(walk string, capacity int) *pathRecorder {
	if capacity < 0 {
		capacity = 0
	}
	r := &pathRecorder{
		path: Path{
			Walk:       walk,
			Directions: make([]lattice.Direction, 0, capacity),
			Positions:  make([]lattice.Vec[int], 0, capacity+1),
		},
	}
	r.path.Positions = append(r.path.Positions, r.pos)
	return r
}

func (r *pathRecorder) visit(d lattice.Direction) {
	r.pos = r.pos.Add(lattice.Step[int](d))
	r.path.Directions = append(r.path.Directions, d)
	r.path.Positions = append(r.path.Positions, r.pos)
}

// Registry holds all available walks keyed by ID.
var Registry = map[string]Walker{}

// Register adds a walk to the registry.
func Register(w Walker) {
	Registry[w.Spec().ID] = w
}

// Get retrieves a walk by ID.
func Get(id string) (Walker, bool) {
	w, ok := Registry[id]
	return w, ok
}

// List returns the specs of all registered walks ordered by ID.
func List() []WalkSpec {
	specs := make([]WalkSpec, 0, len(Registry))
	for _, w := range Registry {
		specs = append(specs, w.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}

func init() {
	Register(SimpleWalk{})
	Register(NonReversingWalk{})
	Register(SelfAvoidingWalk{MaxSteps: DefaultMaxSteps})
}
