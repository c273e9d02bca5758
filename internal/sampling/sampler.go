package sampling

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MJE43/lattice-walk-go/internal/engine"
	"github.com/MJE43/lattice-walk-go/internal/sweep"
	"github.com/MJE43/lattice-walk-go/internal/walks"
)

// EngineVersion is recorded on every result.
const EngineVersion = "go-1.0.0"

const (
	// DefaultSamples is the number of trials behind every published mean.
	DefaultSamples = 100_000

	// DefaultChunkSize is the number of trials one job runs on one stream.
	DefaultChunkSize = 4096

	// MaxSamples bounds a single estimate.
	MaxSamples = 100_000_000

	// MaxSteps bounds the length of a single fixed-length trial. A trial
	// does not observe cancellation once started.
	MaxSteps = sweep.MaxSteps

	cancelCheckInterval = 256
)

// Sweep walk IDs.
const (
	WalkSimple       = "simple"
	WalkNonReversing = "nonreversing"
	WalkSelfAvoiding = "selfavoiding"
)

// ProgressFunc receives the number of finished trials and the total planned.
// It is called from worker goroutines and must be safe for concurrent use.
type ProgressFunc func(done, total uint64)

// Sampler runs independent walk trials across a pool of workers and reduces
// them to means.
type Sampler struct {
	workerCount       int
	chunkSize         int
	selfAvoidingLimit int
	logger            *zap.Logger
	progress          ProgressFunc
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithWorkers sets the worker count. n <= 0 keeps GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithChunkSize sets how many trials share one random stream.
func WithChunkSize(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithSelfAvoidingLimit overrides the per-trial step cap of the self-avoiding
// walk.
func WithSelfAvoidingLimit(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.selfAvoidingLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Sampler) {
		s.progress = fn
	}
}

// NewSampler creates a sampler with one worker per usable CPU.
func NewSampler(opts ...Option) *Sampler {
	s := &Sampler{
		workerCount:       runtime.GOMAXPROCS(0),
		chunkSize:         DefaultChunkSize,
		selfAvoidingLimit: walks.DefaultMaxSteps,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Workers returns the configured worker count.
func (s *Sampler) Workers() int {
	return s.workerCount
}

// EstimateRequest asks for the mean of one walk at one length.
type EstimateRequest struct {
	Walk    string       `json:"walk"`
	Steps   int          `json:"steps"`
	Samples int          `json:"samples"`
	Seeds   engine.Seeds `json:"seeds"`
}

// Estimate is the outcome of an EstimateRequest.
type Estimate struct {
	Walk          string       `json:"walk"`
	Steps         int          `json:"steps"`
	Summary       Summary      `json:"summary"`
	Seeds         engine.Seeds `json:"seeds"`
	DurationMs    int64        `json:"duration_ms"`
	EngineVersion string       `json:"engine_version"`
}

// SweepRequest asks for the self-avoiding mean plus simple and non-reversing
// means at every step count.
type SweepRequest struct {
	Samples int          `json:"samples"`
	Steps   []int        `json:"steps"`
	Seeds   engine.Seeds `json:"seeds"`
}

// Row holds both fixed-length estimates for one step count.
type Row struct {
	Steps        int     `json:"steps"`
	Simple       Summary `json:"simple"`
	NonReversing Summary `json:"nonreversing"`
}

// SweepResult is the complete outcome of a sweep. Rows are in ascending step
// order whatever order the request listed them in.
type SweepResult struct {
	Samples       int          `json:"samples"`
	SelfAvoiding  Summary      `json:"selfavoiding"`
	Rows          []Row        `json:"rows"`
	Seeds         engine.Seeds `json:"seeds"`
	TotalTrials   uint64       `json:"total_trials"`
	DurationMs    int64        `json:"duration_ms"`
	EngineVersion string       `json:"engine_version"`
}

// task is one (walk, length) estimate, split into chunks of trials.
type task struct {
	walker  walks.Walker
	label   string
	steps   int
	samples int
	chunks  int
}

// job is one chunk of one task.
type job struct {
	task  int
	chunk int
}

// Estimate computes the mean of req.Samples trials of one walk.
func (s *Sampler) Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	if err := validateSamples(req.Samples); err != nil {
		return nil, err
	}
	if err := validateSteps(req.Steps); err != nil {
		return nil, err
	}
	w, err := s.walker(req.Walk)
	if err != nil {
		return nil, err
	}
	seeds, err := resolveSeeds(req.Seeds)
	if err != nil {
		return nil, err
	}

	steps := req.Steps
	if !w.Spec().FixedLength {
		steps = 0
	}

	start := time.Now()
	t := s.newTask(w, w.Spec().ID, steps, req.Samples)
	summaries, err := s.run(ctx, seeds, []task{t})
	if err != nil {
		return nil, err
	}

	return &Estimate{
		Walk:          req.Walk,
		Steps:         req.Steps,
		Summary:       summaries[0],
		Seeds:         seeds,
		DurationMs:    time.Since(start).Milliseconds(),
		EngineVersion: EngineVersion,
	}, nil
}

// Sweep computes the self-avoiding mean and, for every requested step count,
// the simple and non-reversing means. Step counts may repeat; each
// occurrence gets its own independent streams.
func (s *Sampler) Sweep(ctx context.Context, req SweepRequest) (*SweepResult, error) {
	if err := validateSamples(req.Samples); err != nil {
		return nil, err
	}
	if len(req.Steps) == 0 {
		return nil, ErrNoConfigurations
	}
	for _, n := range req.Steps {
		if err := validateSteps(n); err != nil {
			return nil, err
		}
	}
	seeds, err := resolveSeeds(req.Seeds)
	if err != nil {
		return nil, err
	}

	simple, err := s.walker(WalkSimple)
	if err != nil {
		return nil, err
	}
	nonReversing, err := s.walker(WalkNonReversing)
	if err != nil {
		return nil, err
	}
	saw, err := s.walker(WalkSelfAvoiding)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	s.logger.Info("sweep_start",
		zap.Int("samples", req.Samples),
		zap.Int("configurations", len(req.Steps)),
		zap.String("steps", sweep.String(req.Steps)),
		zap.Int("workers", s.workerCount),
		zap.String("server_seed_hash", engine.HashSeed(seeds.Server)),
	)

	// Task 0 is the self-avoiding walk; then one simple and one
	// non-reversing task per configuration, in request order.
	tasks := make([]task, 0, 1+2*len(req.Steps))
	tasks = append(tasks, s.newTask(saw, WalkSelfAvoiding, 0, req.Samples))
	occurrences := make(map[int]int, len(req.Steps))
	for _, n := range req.Steps {
		occ := occurrences[n]
		occurrences[n]++
		tasks = append(tasks,
			s.newTask(simple, streamLabel(WalkSimple, occ), n, req.Samples),
			s.newTask(nonReversing, streamLabel(WalkNonReversing, occ), n, req.Samples),
		)
	}

	summaries, err := s.run(ctx, seeds, tasks)
	if err != nil {
		s.logger.Error("sweep_failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	rows := make([]Row, len(req.Steps))
	for i, n := range req.Steps {
		rows[i] = Row{
			Steps:        n,
			Simple:       summaries[1+2*i],
			NonReversing: summaries[2+2*i],
		}
	}
	SortRows(rows)

	result := &SweepResult{
		Samples:       req.Samples,
		SelfAvoiding:  summaries[0],
		Rows:          rows,
		Seeds:         seeds,
		TotalTrials:   uint64(len(tasks)) * uint64(req.Samples),
		DurationMs:    time.Since(start).Milliseconds(),
		EngineVersion: EngineVersion,
	}

	s.logger.Info("sweep_completed",
		zap.Float64("selfavoiding_mean", result.SelfAvoiding.Mean),
		zap.Int("rows", len(rows)),
		zap.Uint64("total_trials", result.TotalTrials),
		zap.Int64("duration_ms", result.DurationMs),
	)

	return result, nil
}

// SortRows orders rows by ascending step count, keeping the relative order of
// equal step counts.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Steps < rows[j].Steps })
}

func (s *Sampler) newTask(w walks.Walker, label string, steps, samples int) task {
	return task{
		walker:  w,
		label:   label,
		steps:   steps,
		samples: samples,
		chunks:  (samples + s.chunkSize - 1) / s.chunkSize,
	}
}

// run executes every chunk of every task on the worker pool and returns one
// finalized summary per task, in task order.
func (s *Sampler) run(ctx context.Context, seeds engine.Seeds, tasks []task) ([]Summary, error) {
	partials := make([][]Summary, len(tasks))
	var total uint64
	for i, t := range tasks {
		partials[i] = make([]Summary, t.chunks)
		total += uint64(t.samples)
	}

	jobs := make(chan job, s.workerCount*2)
	var done uint64

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for ti, t := range tasks {
			for c := 0; c < t.chunks; c++ {
				select {
				case jobs <- job{task: ti, chunk: c}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
		return nil
	})

	for w := 0; w < s.workerCount; w++ {
		g.Go(func() error {
			for j := range jobs {
				t := tasks[j.task]
				sum, err := s.runChunk(gctx, seeds, t, j.chunk)
				if err != nil {
					return err
				}
				// Each (task, chunk) slot has exactly one writer.
				partials[j.task][j.chunk] = sum

				n := atomic.AddUint64(&done, sum.Count)
				if s.progress != nil {
					s.progress(n, total)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sampling cancelled: %w", ctx.Err())
		}
		return nil, err
	}
	// A trial that started before the deadline still runs to completion.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sampling cancelled: %w", err)
	}

	out := make([]Summary, len(tasks))
	for i := range tasks {
		acc := newSummary()
		for _, p := range partials[i] {
			acc.Merge(p)
		}
		acc.finalize()
		out[i] = acc
	}
	return out, nil
}

// runChunk runs the trials of one chunk on a stream derived from the seeds,
// the task and the chunk index, so the result does not depend on which
// worker picks the job up.
func (s *Sampler) runChunk(ctx context.Context, seeds engine.Seeds, t task, chunk int) (Summary, error) {
	first := chunk * s.chunkSize
	count := min(s.chunkSize, t.samples-first)

	src := engine.NewPCG(engine.DeriveSeed(seeds, t.label, uint64(t.steps), uint64(chunk)))
	sum := newSummary()

	for i := 0; i < count; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Summary{}, fmt.Errorf("sampling cancelled: %w", err)
			}
		}

		v, err := t.walker.Sample(src, t.steps)
		if err != nil {
			s.logger.Error("trial_failed",
				zap.String("walk", t.walker.Spec().ID),
				zap.Int("steps", t.steps),
				zap.Int("trial", first+i),
				zap.Error(err),
			)
			return Summary{}, fmt.Errorf("%s trial %d: %w", t.walker.Spec().ID, first+i, err)
		}
		sum.Add(v)
	}

	return sum, nil
}

func (s *Sampler) walker(id string) (walks.Walker, error) {
	w, ok := walks.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrWalkNotFound, id)
	}
	if _, isSAW := w.(walks.SelfAvoidingWalk); isSAW {
		w = walks.SelfAvoidingWalk{MaxSteps: s.selfAvoidingLimit}
	}
	return w, nil
}

func validateSamples(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSamples, n)
	}
	if n > MaxSamples {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManySamples, n, MaxSamples)
	}
	return nil
}

func validateSteps(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSteps, n)
	}
	if n > MaxSteps {
		return fmt.Errorf("%w: %d (max %d)", ErrStepsTooLarge, n, MaxSteps)
	}
	return nil
}

func resolveSeeds(seeds engine.Seeds) (engine.Seeds, error) {
	if !seeds.IsZero() {
		return seeds, nil
	}
	return engine.RandomSeeds()
}

func streamLabel(walk string, occurrence int) string {
	if occurrence == 0 {
		return walk
	}
	return fmt.Sprintf("%s#%d", walk, occurrence)
}
