package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MJE43/lattice-walk-go/internal/engine"
	"github.com/MJE43/lattice-walk-go/internal/sampling"
	"github.com/MJE43/lattice-walk-go/internal/walks"
)

func (a *app) traceCmd() *cobra.Command {
	var (
		walk      string
		steps     int
		seeds     engine.Seeds
		nonce     uint64
		positions bool
	)
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Replay one trial on the verifiable HMAC stream",
		Long: `Replays a single walk drawn from HMAC-SHA256(server, "client:nonce:round").
The same seeds and nonce always give the same path.

Example:
  walksim trace --walk selfavoiding --server s3rv3r --client c1ient --nonce 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if seeds.Server == "" {
				return fmt.Errorf("--server is required")
			}
			w, ok := walks.Get(walk)
			if !ok {
				return fmt.Errorf("%w: %q", sampling.ErrWalkNotFound, walk)
			}
			if steps < 0 {
				return fmt.Errorf("%w: %d", sampling.ErrInvalidSteps, steps)
			}

			src := engine.NewByteGenerator(seeds, nonce, 0)
			path, err := w.Trace(src, steps)
			if err != nil {
				return err
			}
			a.logger.Debug("trace_completed",
				zap.String("walk", path.Walk),
				zap.String("server_seed_hash", seedsHash(seeds)),
				zap.Uint64("nonce", nonce),
				zap.Int("steps", path.Steps()),
			)

			spec := w.Spec()
			end := path.End()
			fmt.Fprintf(a.stdout, "walk\t%s\n", spec.ID)
			fmt.Fprintf(a.stdout, "nonce\t%d\n", nonce)
			fmt.Fprintf(a.stdout, "steps\t%d\n", path.Steps())
			fmt.Fprintf(a.stdout, "bytes\t%d\n", src.Cursor())
			fmt.Fprintf(a.stdout, "end\t(%d, %d)\n", end.X(), end.Y())
			fmt.Fprintf(a.stdout, "%s\t%g\n", spec.MetricLabel, path.Metric)
			if !spec.FixedLength {
				fmt.Fprintf(a.stdout, "trapped\t%t\n", path.Trapped)
			}
			fmt.Fprintf(a.stdout, "directions\t%s\n", strings.Join(path.DirectionNames(), " "))
			if positions {
				for i, p := range path.Positions {
					fmt.Fprintf(a.stdout, "%d\t%d\t%d\n", i, p.X(), p.Y())
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&walk, "walk", sampling.WalkSelfAvoiding, "simple, nonreversing or selfavoiding")
	f.IntVar(&steps, "steps", 10, "steps for fixed-length walks")
	f.StringVar(&seeds.Server, "server", "", "server seed")
	f.StringVar(&seeds.Client, "client", "", "client seed")
	f.Uint64Var(&nonce, "nonce", 0, "trial nonce")
	f.BoolVar(&positions, "positions", false, "print every visited position")
	return cmd
}
