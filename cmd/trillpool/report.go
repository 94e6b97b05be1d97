package main

import (
	"fmt"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// leakReport is the output of the report command.
type leakReport struct {
	Batches int64    `json:"batches"`
	Rows    int64    `json:"rows"`
	Leaked  []string `json:"leaked"`
}

func newReportCommand(a *app) *cobra.Command {
	opts := defaultBenchOptions()
	opts.Batches = 10

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run a short quiet bench and print only the leak report",
		Long: `Run a short bench with logging silenced, then print the names of pools
whose objects were not all returned. Exits non-zero when any pool leaked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			quiet := zap.NewNop()

			reg := newRegistry(a.cfg, quiet)
			defer reg.Close()

			res, err := runBench(ctx, reg, a.cfg, opts, quiet)
			if err != nil {
				return err
			}
			rep := leakReport{Batches: res.Batches, Rows: res.Rows, Leaked: reg.Report(ctx).Leaked}
			data, err := gojson.MarshalIndent(rep, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode leak report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			if len(rep.Leaked) > 0 {
				return fmt.Errorf("%d pools leaked", len(rep.Leaked))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Workers, "workers", opts.Workers, "Number of parallel producers")
	cmd.Flags().IntVar(&opts.Batches, "batches", opts.Batches, "Batches filled by each producer")
	return cmd
}
