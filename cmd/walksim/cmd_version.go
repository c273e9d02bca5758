package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/MJE43/lattice-walk-go/internal/api"
)

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := api.GetVersionInfo()
			fmt.Fprintf(a.stdout, "walksim %s (engine %s)\n", info.Version, info.EngineVersion)
			fmt.Fprintf(a.stdout, "commit  %s\n", info.GitCommit)
			fmt.Fprintf(a.stdout, "built   %s\n", info.BuildTime)
			fmt.Fprintf(a.stdout, "go      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
