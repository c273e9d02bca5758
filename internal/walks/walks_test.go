package walks

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/lattice-walk-go/internal/engine"
	"github.com/MJE43/lattice-walk-go/internal/lattice"
)

// scriptedSource replays fixed draws and then falls back to a seeded PCG.
type scriptedSource struct {
	draws    []int
	fallback engine.Source
}

func newScripted(draws ...int) *scriptedSource {
	return &scriptedSource{draws: draws, fallback: engine.NewPCG(99)}
}

func (s *scriptedSource) next() (int, bool) {
	if len(s.draws) == 0 {
		return 0, false
	}
	v := s.draws[0]
	s.draws = s.draws[1:]
	return v, true
}

func (s *scriptedSource) Uint64() uint64 {
	if v, ok := s.next(); ok {
		return uint64(v)
	}
	return s.fallback.Uint64()
}

func (s *scriptedSource) IntN(n int) int {
	if v, ok := s.next(); ok {
		return v % n
	}
	return s.fallback.IntN(n)
}

func TestZeroStepsReturnOrigin(t *testing.T) {
	src := engine.NewPCG(1)
	assert.Equal(t, 0.0, Simple(src, 0))
	assert.Equal(t, 0.0, NonReversing(src, 0))

	for _, id := range []string{"simple", "nonreversing"} {
		w, ok := Get(id)
		require.True(t, ok)
		p, err := w.Trace(src, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Steps())
		assert.True(t, p.End().IsOrigin())
	}
}

func TestSimpleWalkParity(t *testing.T) {
	src := engine.NewPCG(7)
	w := SimpleWalk{}

	for n := 1; n <= 60; n++ {
		p, err := w.Trace(src, n)
		require.NoError(t, err)
		require.Equal(t, n, p.Steps())

		end := p.End()
		assert.Equal(t, n%2, mod2(end.X()+end.Y()), "parity of x+y after %d steps", n)

		sq := p.Metric * p.Metric
		assert.InDelta(t, float64(end.NormSquared()), sq, 1e-9)
		assert.InDelta(t, math.Round(sq), sq, 1e-9, "squared displacement is an integer")
	}
}

func TestSimpleWalkScripted(t *testing.T) {
	// +x, +x, +y, -x, +x(4 mod 4 = 0)
	src := newScripted(0, 0, 1, 2, 4)
	p, err := SimpleWalk{}.Trace(src, 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"+x", "+x", "+y", "-x", "+x"}, p.DirectionNames())
	assert.Equal(t, lattice.Vec[int]{2, 1}, p.End())
	assert.InDelta(t, math.Sqrt(5), p.Metric, 1e-12)
}

func TestSimpleWalkAllowsReversal(t *testing.T) {
	src := newScripted(0, 2)
	assert.Equal(t, 0.0, Simple(src, 2))
}

func TestNonReversingRejectsOpposite(t *testing.T) {
	// +x, then -x twice (rejected), then +y.
	src := newScripted(0, 2, 2, 1)
	p, err := NonReversingWalk{}.Trace(src, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"+x", "+y"}, p.DirectionNames())
	assert.InDelta(t, math.Sqrt2, p.Metric, 1e-12)
}

func TestNonReversingFirstStepUnrestricted(t *testing.T) {
	for d := 0; d < 4; d++ {
		src := newScripted(d)
		p, err := NonReversingWalk{}.Trace(src, 1)
		require.NoError(t, err)
		assert.Equal(t, lattice.Direction(d), p.Directions[0])
	}
}

func TestNonReversingNeverReverses(t *testing.T) {
	src := engine.NewPCG(11)
	w := NonReversingWalk{}

	for trial := 0; trial < 200; trial++ {
		p, err := w.Trace(src, 50)
		require.NoError(t, err)
		require.Equal(t, 50, p.Steps())

		for i := 1; i < len(p.Directions); i++ {
			require.NotEqual(t, p.Directions[i-1].Opposite(), p.Directions[i],
				"trial %d: step %d reverses step %d", trial, i, i-1)
		}
	}
}

func TestSelfAvoidingPathIsSelfAvoiding(t *testing.T) {
	src := engine.NewPCG(21)
	w := SelfAvoidingWalk{MaxSteps: DefaultMaxSteps}

	for trial := 0; trial < 200; trial++ {
		p, err := w.Trace(src, 0)
		require.NoError(t, err)
		require.True(t, p.Trapped)
		require.GreaterOrEqual(t, p.Steps(), 1, "the first step always succeeds")
		assert.Equal(t, float64(p.Steps()), p.Metric)

		seen := make(map[lattice.Vec[int]]bool, len(p.Positions))
		for i, pos := range p.Positions {
			require.False(t, seen[pos], "trial %d revisits %v at step %d", trial, pos, i)
			seen[pos] = true
		}

		// Trapped: every neighbour of the final cell is on the path.
		end := p.End()
		for _, d := range lattice.Directions() {
			assert.True(t, seen[end.Add(lattice.Step[int](d))], "trial %d: neighbour %s of end is free", trial, d)
		}
	}
}

func TestSelfAvoidingRandomOrderWithoutReplacement(t *testing.T) {
	// Step 1: pool [+x +y -x -y], draw 0 -> +x.
	// Step 2 from (1,0): draw 2 -> -x (origin, visited), removed;
	// pool [+x +y -y], draw 2 -> -y.
	src := newScripted(0, 2, 2)
	p, _ := SelfAvoidingWalk{MaxSteps: DefaultMaxSteps}.Trace(src, 0)

	require.GreaterOrEqual(t, p.Steps(), 2)
	assert.Equal(t, []string{"+x", "-y"}, p.DirectionNames()[:2])
	assert.Equal(t, lattice.Vec[int]{1, -1}, p.Positions[2])
}

func TestSelfAvoidingStepLimit(t *testing.T) {
	steps, err := SelfAvoiding(engine.NewPCG(5), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStepLimit))
	assert.Equal(t, 1, steps)

	w := SelfAvoidingWalk{MaxSteps: 1}
	_, err = w.Sample(engine.NewPCG(5), 0)
	assert.ErrorIs(t, err, ErrStepLimit)
}

func TestSelfAvoidingMeanTrappingLength(t *testing.T) {
	src := engine.NewPCG(2024)
	const trials = 5000

	sum := 0
	for i := 0; i < trials; i++ {
		n, err := SelfAvoiding(src, DefaultMaxSteps)
		require.NoError(t, err)
		sum += n
	}
	mean := float64(sum) / trials

	// Known value is about 71.
	assert.Greater(t, mean, 55.0)
	assert.Less(t, mean, 90.0)
}

func TestVisitedSetsDoNotLeakBetweenTrials(t *testing.T) {
	src := engine.NewPCG(3)
	for i := 0; i < 50; i++ {
		n, err := SelfAvoiding(src, DefaultMaxSteps)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 1)
	}

	m := visitedPool.Get().(visitedSet)
	assert.Empty(t, m)
	visitedPool.Put(m)
}

func TestByteGeneratorTraceIsReproducible(t *testing.T) {
	seeds := engine.Seeds{Server: "server", Client: "client"}
	for _, spec := range List() {
		w, _ := Get(spec.ID)

		a, errA := w.Trace(engine.NewByteGenerator(seeds, 5, 0), 40)
		b, errB := w.Trace(engine.NewByteGenerator(seeds, 5, 0), 40)
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, a, b, spec.ID)
	}
}

func TestRegistry(t *testing.T) {
	expected := []string{"nonreversing", "selfavoiding", "simple"}

	specs := List()
	require.Len(t, specs, len(expected))
	for i, id := range expected {
		assert.Equal(t, id, specs[i].ID)

		w, ok := Get(id)
		require.True(t, ok)
		assert.Equal(t, id, w.Spec().ID)
	}

	_, ok := Get("spiral")
	assert.False(t, ok)

	simple, _ := Get("simple")
	assert.True(t, simple.Spec().FixedLength)
	saw, _ := Get("selfavoiding")
	assert.False(t, saw.Spec().FixedLength)
	assert.Equal(t, "steps", saw.Spec().MetricLabel)
}

func mod2(v int) int {
	return ((v % 2) + 2) % 2
}
