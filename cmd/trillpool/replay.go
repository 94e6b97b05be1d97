package main

import (
	"fmt"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/microsoft/Trill-sub013/pkg/batch"
	"github.com/microsoft/Trill-sub013/pkg/checkpoint"
)

// replayReport is the output of the replay command.
type replayReport struct {
	Files   int      `json:"files"`
	Batches int      `json:"batches"`
	Rows    int      `json:"rows"`
	Live    int      `json:"live"`
	Leaked  []string `json:"leaked"`
}

func newReplayCommand(a *app) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "replay FILE...",
		Short: "Read checkpoint files written by bench --checkpoint-dir",
		Long: `Map each checkpoint file, rebuild its batches from a fresh pool and
free them again, then print row counts and the leak report as JSON.

Examples:
  trillpool bench --compression s2 --checkpoint-dir /tmp/ckpt
  trillpool replay /tmp/ckpt/*.trlb`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("batch-size") {
				batchSize = a.cfg.Memory.BatchSize
			}

			reg := newRegistry(a.cfg, a.log)
			defer reg.Close()
			mp := batch.GetMemoryPool[batch.Empty, int64](reg,
				batch.WithBatchSize(batchSize),
				batch.WithPopcount(a.cfg.Memory.PopcountMode()),
				batch.WithLogger(a.log))

			var rep replayReport
			for _, path := range args {
				n, err := checkpoint.ReadFile(ctx, path, mp, nil, checkpoint.Int64Codec{}, func(b *batch.Batch[batch.Empty, int64]) error {
					defer b.Free()
					rep.Rows += b.Count
					rep.Live += b.ComputeCount()
					return nil
				}, checkpoint.WithLogger(a.log))
				rep.Batches += n
				if err != nil {
					return fmt.Errorf("replay %s: %w", path, err)
				}
				rep.Files++
				a.log.Debug("replayed checkpoint", zap.String("file", path), zap.Int("batches", n))
			}

			rep.Leaked = reg.Report(ctx).Leaked
			data, err := gojson.MarshalIndent(rep, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode replay report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			if len(rep.Leaked) > 0 {
				return fmt.Errorf("%d pools leaked", len(rep.Leaked))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Rows per batch of the replay pool (defaults to memory.batch_size)")
	return cmd
}
