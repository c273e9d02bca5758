package sampling

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MJE43/lattice-walk-go/internal/engine"
	"github.com/MJE43/lattice-walk-go/internal/walks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testSeeds = engine.Seeds{Server: "test_server", Client: "test_client"}

func TestSweepOrdersRowsBySteps(t *testing.T) {
	sampler := NewSampler(WithWorkers(4), WithChunkSize(16))

	result, err := sampler.Sweep(context.Background(), SweepRequest{
		Samples: 64,
		Steps:   []int{10, 990, 30},
		Seeds:   testSeeds,
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)

	got := []int{result.Rows[0].Steps, result.Rows[1].Steps, result.Rows[2].Steps}
	assert.Equal(t, []int{10, 30, 990}, got)

	for _, row := range result.Rows {
		assert.Equal(t, uint64(64), row.Simple.Count)
		assert.Equal(t, uint64(64), row.NonReversing.Count)
	}
	assert.Equal(t, uint64(64), result.SelfAvoiding.Count)
	assert.Equal(t, uint64(7*64), result.TotalTrials)
	assert.Equal(t, EngineVersion, result.EngineVersion)
}

func TestSweepZeroStepsSingleSample(t *testing.T) {
	sampler := NewSampler()

	result, err := sampler.Sweep(context.Background(), SweepRequest{
		Samples: 1,
		Steps:   []int{0},
		Seeds:   testSeeds,
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	assert.Equal(t, 0.0, result.Rows[0].Simple.Mean)
	assert.Equal(t, 0.0, result.Rows[0].NonReversing.Mean)
	assert.GreaterOrEqual(t, result.SelfAvoiding.Mean, 1.0)
}

func TestSweepIsDeterministicAcrossWorkerCounts(t *testing.T) {
	req := SweepRequest{Samples: 3000, Steps: []int{50, 10, 30}, Seeds: testSeeds}

	one, err := NewSampler(WithWorkers(1), WithChunkSize(500)).Sweep(context.Background(), req)
	require.NoError(t, err)
	many, err := NewSampler(WithWorkers(8), WithChunkSize(500)).Sweep(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, one.SelfAvoiding, many.SelfAvoiding)
	assert.Equal(t, one.Rows, many.Rows)
}

func TestSweepDuplicateStepsAreIndependent(t *testing.T) {
	result, err := NewSampler().Sweep(context.Background(), SweepRequest{
		Samples: 200,
		Steps:   []int{20, 20},
		Seeds:   testSeeds,
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	assert.Equal(t, 20, result.Rows[0].Steps)
	assert.Equal(t, 20, result.Rows[1].Steps)
	assert.NotEqual(t, result.Rows[0].Simple.Sum, result.Rows[1].Simple.Sum)
}

func TestSweepGeneratesSeedsWhenMissing(t *testing.T) {
	result, err := NewSampler().Sweep(context.Background(), SweepRequest{Samples: 10, Steps: []int{4}})
	require.NoError(t, err)
	assert.False(t, result.Seeds.IsZero())
}

func TestSweepValidation(t *testing.T) {
	sampler := NewSampler()
	ctx := context.Background()

	_, err := sampler.Sweep(ctx, SweepRequest{Samples: 0, Steps: []int{10}})
	assert.ErrorIs(t, err, ErrInvalidSamples)

	_, err = sampler.Sweep(ctx, SweepRequest{Samples: MaxSamples + 1, Steps: []int{10}})
	assert.ErrorIs(t, err, ErrTooManySamples)

	_, err = sampler.Sweep(ctx, SweepRequest{Samples: 10})
	assert.ErrorIs(t, err, ErrNoConfigurations)

	_, err = sampler.Sweep(ctx, SweepRequest{Samples: 10, Steps: []int{10, -1}})
	assert.ErrorIs(t, err, ErrInvalidSteps)

	_, err = sampler.Sweep(ctx, SweepRequest{Samples: 10, Steps: []int{10, MaxSteps + 1}})
	assert.ErrorIs(t, err, ErrStepsTooLarge)
}

func TestEstimateRejectsOversizedSteps(t *testing.T) {
	start := time.Now()
	_, err := NewSampler(WithWorkers(1)).Estimate(context.Background(), EstimateRequest{
		Walk:    WalkSimple,
		Steps:   300_000_000,
		Samples: 1,
		Seeds:   testSeeds,
	})
	assert.ErrorIs(t, err, ErrStepsTooLarge)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEstimateDeadlineDuringTrial(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	// One trial of MaxSteps steps outlives the deadline whether or not it
	// started before it.
	_, err := NewSampler(WithWorkers(1)).Estimate(ctx, EstimateRequest{
		Walk:    WalkSimple,
		Steps:   MaxSteps,
		Samples: 1,
		Seeds:   testSeeds,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEstimateSimpleWalkConvergesToTheory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping convergence test in short mode")
	}

	const n = 100
	est, err := NewSampler().Estimate(context.Background(), EstimateRequest{
		Walk:    walks.SimpleWalk{}.Spec().ID,
		Steps:   n,
		Samples: DefaultSamples,
		Seeds:   testSeeds,
	})
	require.NoError(t, err)

	// E|R_n| -> sqrt(pi*n)/2 for the 2D simple walk.
	expected := math.Sqrt(math.Pi*n) / 2
	assert.InEpsilon(t, expected, est.Summary.Mean, 0.05)
	assert.Equal(t, uint64(DefaultSamples), est.Summary.Count)
	assert.GreaterOrEqual(t, est.Summary.Min, 0.0)
	assert.LessOrEqual(t, est.Summary.Max, float64(n))
}

func TestEstimateNonReversingExceedsSimple(t *testing.T) {
	ctx := context.Background()
	sampler := NewSampler()

	simple, err := sampler.Estimate(ctx, EstimateRequest{Walk: WalkSimple, Steps: 200, Samples: 20000, Seeds: testSeeds})
	require.NoError(t, err)
	noRet, err := sampler.Estimate(ctx, EstimateRequest{Walk: WalkNonReversing, Steps: 200, Samples: 20000, Seeds: testSeeds})
	require.NoError(t, err)

	// The non-reversing walk has a larger effective step length (ratio sqrt(2)).
	ratio := noRet.Summary.Mean / simple.Summary.Mean
	assert.InDelta(t, math.Sqrt2, ratio, 0.08)
}

func TestEstimateSelfAvoidingIgnoresSteps(t *testing.T) {
	ctx := context.Background()
	sampler := NewSampler()

	a, err := sampler.Estimate(ctx, EstimateRequest{Walk: WalkSelfAvoiding, Steps: 0, Samples: 500, Seeds: testSeeds})
	require.NoError(t, err)
	b, err := sampler.Estimate(ctx, EstimateRequest{Walk: WalkSelfAvoiding, Steps: 999, Samples: 500, Seeds: testSeeds})
	require.NoError(t, err)

	assert.Equal(t, a.Summary, b.Summary)
	assert.GreaterOrEqual(t, a.Summary.Min, 1.0)
}

func TestEstimateUnknownWalk(t *testing.T) {
	_, err := NewSampler().Estimate(context.Background(), EstimateRequest{Walk: "spiral", Samples: 1})
	assert.ErrorIs(t, err, ErrWalkNotFound)
}

func TestSelfAvoidingLimitAbortsRun(t *testing.T) {
	sampler := NewSampler(WithSelfAvoidingLimit(2))
	_, err := sampler.Estimate(context.Background(), EstimateRequest{
		Walk:    WalkSelfAvoiding,
		Samples: 100,
		Seeds:   testSeeds,
	})
	assert.ErrorIs(t, err, walks.ErrStepLimit)
}

func TestSweepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSampler(WithWorkers(2)).Sweep(ctx, SweepRequest{
		Samples: 10_000,
		Steps:   []int{100, 200},
		Seeds:   testSeeds,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProgressReportsEveryTrial(t *testing.T) {
	var last, calls atomic.Uint64
	var total atomic.Uint64

	sampler := NewSampler(WithChunkSize(10), WithProgress(func(done, planned uint64) {
		calls.Add(1)
		total.Store(planned)
		for {
			cur := last.Load()
			if done <= cur || last.CompareAndSwap(cur, done) {
				break
			}
		}
	}))

	_, err := sampler.Sweep(context.Background(), SweepRequest{Samples: 95, Steps: []int{5}, Seeds: testSeeds})
	require.NoError(t, err)

	assert.Equal(t, uint64(3*95), total.Load())
	assert.Equal(t, uint64(3*95), last.Load())
	assert.Equal(t, uint64(3*10), calls.Load(), "one call per chunk")
}

func TestSummaryMergeAndFinalize(t *testing.T) {
	a := newSummary()
	a.Add(1)
	a.Add(3)

	b := newSummary()
	b.Add(-2)

	empty := newSummary()

	acc := newSummary()
	acc.Merge(a)
	acc.Merge(empty)
	acc.Merge(b)
	acc.finalize()

	assert.Equal(t, Summary{Count: 3, Sum: 2, Mean: 2.0 / 3.0, Min: -2, Max: 3}, acc)

	empty.finalize()
	assert.Equal(t, Summary{}, empty)
}

func TestSortRowsStable(t *testing.T) {
	rows := []Row{
		{Steps: 990},
		{Steps: 10, Simple: Summary{Count: 1}},
		{Steps: 30},
		{Steps: 10, Simple: Summary{Count: 2}},
	}
	SortRows(rows)

	assert.Equal(t, 10, rows[0].Steps)
	assert.Equal(t, uint64(1), rows[0].Simple.Count)
	assert.Equal(t, uint64(2), rows[1].Simple.Count)
	assert.Equal(t, 30, rows[2].Steps)
	assert.Equal(t, 990, rows[3].Steps)
}
