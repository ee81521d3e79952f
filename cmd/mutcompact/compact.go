package main

import (
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mutcompact/internal/fixture"
	"mutcompact/pkg/compaction"
	"mutcompact/pkg/metrics"
	"mutcompact/pkg/mutation"
	"mutcompact/pkg/store"
	"mutcompact/pkg/types"
)

func newCompactCmd(opts *options) *cobra.Command {
	var maxPurgeable int64

	cmd := &cobra.Command{
		Use:   "compact [fixture]",
		Short: "Compact a fixture as a table compaction would, printing what is kept and what is purged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := opts.clock()
			if err != nil {
				return err
			}
			f, err := fixture.Load(args[0])
			if err != nil {
				return err
			}
			s, parts, err := f.Build(opts.cfg.Compaction.TombstoneGC())
			if err != nil {
				return err
			}

			// repeated keys are merged, partitions come out in token order
			parts = store.MergePartitions(parts)

			var (
				kept    = mutation.NewPartitionBuilder()
				garbage = mutation.NewPartitionBuilder()
			)
			c := compaction.NewForCompaction(s, types.GCTimeOf(now.Now()),
				func(mutation.DecoratedKey) types.Timestamp { return types.Timestamp(maxPurgeable) },
				compaction.ForwardTo(kept),
				compaction.ForwardTo(garbage),
				compaction.WithLogger(opts.logger),
			)
			mutation.Consume(mutation.NewPartitionReader(parts...), c)

			reg := prometheus.NewRegistry()
			metrics.ReportCompaction(opts.collector(reg), compaction.ForSSTables, c.State().Stats())

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "kept:")
			printPartitions(out, kept.Partitions())
			fmt.Fprintln(out, "garbage:")
			printPartitions(out, garbage.Partitions())
			if opts.cfg.Metrics.Enabled {
				return printMetrics(out, reg)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&maxPurgeable, "max-purgeable", math.MaxInt64,
		"only tombstones older than this write timestamp may be purged")
	return cmd
}
