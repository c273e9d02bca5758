package report

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/lattice-walk-go/internal/sampling"
)

func sampleResult() *sampling.SweepResult {
	return &sampling.SweepResult{
		Samples:      100000,
		SelfAvoiding: sampling.Summary{Mean: 70.84213},
		Rows: []sampling.Row{
			{Steps: 990, Simple: sampling.Summary{Mean: 27.9}, NonReversing: sampling.Summary{Mean: 39.45}},
			{Steps: 10, Simple: sampling.Summary{Mean: 2.8}, NonReversing: sampling.Summary{Mean: 3.95}},
			{Steps: 30, Simple: sampling.Summary{Mean: 4.86}, NonReversing: sampling.Summary{Mean: 6.875}},
		},
	}
}

func TestWriteFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEmitter(ShortestPrecision).Write(&buf, sampleResult()))

	want := strings.Join([]string{
		"# Mean number of steps for 2D SAW = 70.84213 (100000 samples)",
		"# steps\tlattice\tno_ret",
		"10\t2.8\t3.95",
		"30\t4.86\t6.875",
		"990\t27.9\t39.45",
		"",
	}, "\n")

	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteDoesNotReorderInput(t *testing.T) {
	result := sampleResult()
	require.NoError(t, NewEmitter(ShortestPrecision).Write(io.Discard, result))
	assert.Equal(t, 990, result.Rows[0].Steps)
}

func TestZeroMeansPrintAsZero(t *testing.T) {
	result := &sampling.SweepResult{
		Samples: 1,
		Rows:    []sampling.Row{{Steps: 0}},
	}
	var buf bytes.Buffer
	require.NoError(t, NewEmitter(ShortestPrecision).Write(&buf, result))
	out := buf.String()
	assert.Contains(t, out, "# Mean number of steps for 2D SAW = 0 (1 samples)\n")
	assert.True(t, strings.HasSuffix(out, "0\t0\t0\n"))
}

func TestFormatPrecision(t *testing.T) {
	tests := []struct {
		precision int
		value     float64
		want      string
	}{
		{ShortestPrecision, 8.862269254527579, "8.862269254527579"},
		{ShortestPrecision, 1e-7, "0.0000001"},
		{ShortestPrecision, 123456789, "123456789"},
		{0, 70.5, "71"},
		{2, 8.86227, "8.86"},
		{4, 3, "3.0000"},
		{3, -1.0005, "-1.001"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NewEmitter(tt.precision).Format(tt.value), "precision %d value %v", tt.precision, tt.value)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWritePropagatesErrors(t *testing.T) {
	err := NewEmitter(ShortestPrecision).Write(failingWriter{}, sampleResult())
	assert.EqualError(t, err, "disk full")
}
