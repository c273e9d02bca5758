package sampling

import "math"

// Summary accumulates trial outcomes. The mean is a plain sum divided by the
// count, which is accurate enough for the sample sizes this package is used
// with (around 1e5 per estimate).
type Summary struct {
	Count uint64  `json:"count"`
	Sum   float64 `json:"sum"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

func newSummary() Summary {
	return Summary{Min: math.Inf(1), Max: math.Inf(-1)}
}

// Add records one outcome.
func (s *Summary) Add(v float64) {
	s.Count++
	s.Sum += v
	if v < s.Min {
		s.Min = v
	}
	if v > s.Max {
		s.Max = v
	}
}

// Merge folds o into s. Merging the same partials in the same order always
// produces the same sum.
func (s *Summary) Merge(o Summary) {
	if o.Count == 0 {
		return
	}
	s.Count += o.Count
	s.Sum += o.Sum
	if o.Min < s.Min {
		s.Min = o.Min
	}
	if o.Max > s.Max {
		s.Max = o.Max
	}
}

// finalize computes the mean and zeroes the bounds of an empty summary.
func (s *Summary) finalize() {
	if s.Count == 0 {
		*s = Summary{}
		return
	}
	s.Mean = s.Sum / float64(s.Count)
}
