package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MJE43/lattice-walk-go/internal/report"
	"github.com/MJE43/lattice-walk-go/internal/store"
)

func (a *app) runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect sweeps saved with --save",
	}

	var (
		page       int
		perPage    int
		clientSeed string
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := db.ListRuns(cmd.Context(), store.RunsQuery{
				ClientSeed: clientSeed,
				Page:       page,
				PerPage:    perPage,
			})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSAMPLES\tCONFIGS\tSAW MEAN\tDURATION")
			emitter := report.NewEmitter(a.cfg.Precision)
			for _, r := range list.Runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
					r.ID,
					r.CreatedAt.Local().Format(time.DateTime),
					r.Samples,
					r.Configurations,
					emitter.Format(r.SAW.Mean),
					(time.Duration(r.DurationMs) * time.Millisecond).String(),
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "page %d/%d (%d runs)\n", list.Page, max(list.TotalPages, 1), list.TotalCount)
			return nil
		},
	}
	listCmd.Flags().IntVar(&page, "page", 1, "page number")
	listCmd.Flags().IntVar(&perPage, "per-page", 20, "runs per page")
	listCmd.Flags().StringVar(&clientSeed, "client-seed", "", "only runs with this client seed")

	showCmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print the report of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			run, err := db.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return report.NewEmitter(a.cfg.Precision).Write(a.stdout, run.SweepResult())
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "deleted run %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd, deleteCmd)
	return cmd
}
