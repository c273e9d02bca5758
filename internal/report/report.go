// Package report renders sweep results in the tab-separated text format.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/MJE43/lattice-walk-go/internal/sampling"
)

// ShortestPrecision prints every float in its shortest round-trip form.
const ShortestPrecision = -1

// Emitter writes sweep reports.
type Emitter struct {
	precision int
}

// NewEmitter creates an emitter. precision < 0 selects the shortest
// round-trip form; otherwise values are rounded half away from zero to that
// many decimal places.
func NewEmitter(precision int) *Emitter {
	return &Emitter{precision: precision}
}

// Write renders the result to w:
//
//	# Mean number of steps for 2D SAW = <mean> (<samples> samples)
//	# steps	lattice	no_ret
//	<steps>	<simple mean>	<non-reversing mean>
//
// Rows are written in ascending step order.
func (e *Emitter) Write(w io.Writer, result *sampling.SweepResult) error {
	rows := append([]sampling.Row(nil), result.Rows...)
	sampling.SortRows(rows)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Mean number of steps for 2D SAW = %s (%d samples)\n",
		e.Format(result.SelfAvoiding.Mean), result.Samples)
	fmt.Fprint(bw, "# steps\tlattice\tno_ret\n")

	for _, row := range rows {
		fmt.Fprintf(bw, "%d\t%s\t%s\n", row.Steps, e.Format(row.Simple.Mean), e.Format(row.NonReversing.Mean))
	}

	return bw.Flush()
}

// Format renders one value with the emitter's precision.
func (e *Emitter) Format(v float64) string {
	if e.precision < 0 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(int32(e.precision))
}
