package store

import (
	"github.com/MJE43/lattice-walk-go/internal/engine"
	"github.com/MJE43/lattice-walk-go/internal/sampling"
)

// FromSweep converts a sweep result into a run ready for SaveRun.
func FromSweep(res *sampling.SweepResult) *Run {
	run := &Run{
		ServerSeedHash: engine.HashSeed(res.Seeds.Server),
		ClientSeed:     res.Seeds.Client,
		Samples:        res.Samples,
		Configurations: len(res.Rows),
		SAW:            statOf(res.SelfAvoiding),
		TotalTrials:    res.TotalTrials,
		DurationMs:     res.DurationMs,
		EngineVersion:  res.EngineVersion,
		Rows:           make([]Row, len(res.Rows)),
	}
	for i, r := range res.Rows {
		run.Rows[i] = Row{
			Position:     i,
			Steps:        r.Steps,
			Simple:       statOf(r.Simple),
			NonReversing: statOf(r.NonReversing),
		}
	}
	return run
}

// SweepResult rebuilds the sweep result a run was saved from, minus the
// plain server seed.
func (r *Run) SweepResult() *sampling.SweepResult {
	n := uint64(r.Samples)
	res := &sampling.SweepResult{
		Samples:       r.Samples,
		SelfAvoiding:  r.SAW.summary(n),
		Rows:          make([]sampling.Row, len(r.Rows)),
		Seeds:         engine.Seeds{Client: r.ClientSeed},
		TotalTrials:   r.TotalTrials,
		DurationMs:    r.DurationMs,
		EngineVersion: r.EngineVersion,
	}
	for i, row := range r.Rows {
		res.Rows[i] = sampling.Row{
			Steps:        row.Steps,
			Simple:       row.Simple.summary(n),
			NonReversing: row.NonReversing.summary(n),
		}
	}
	return res
}

func statOf(s sampling.Summary) Stat {
	return Stat{Sum: s.Sum, Mean: s.Mean, Min: s.Min, Max: s.Max}
}

func (s Stat) summary(count uint64) sampling.Summary {
	return sampling.Summary{Count: count, Sum: s.Sum, Mean: s.Mean, Min: s.Min, Max: s.Max}
}
