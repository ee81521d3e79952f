package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mutcompact/internal/fixture"
	"mutcompact/pkg/store"
	"mutcompact/pkg/types"
)

func newQueryCmd(opts *options) *cobra.Command {
	var (
		pageSize       uint64
		rowLimit       uint64
		partitionLimit uint32
		keys           []string
		flush          bool
	)

	cmd := &cobra.Command{
		Use:   "query [fixture]",
		Short: "Read a fixture page by page, as a query would see it",
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

			reg := prometheus.NewRegistry()
			st, err := store.New(opts.cfg, s,
				store.WithTimeProvider(now),
				store.WithLogger(opts.logger),
				store.WithMetrics(opts.collector(reg)),
			)
			if err != nil {
				return err
			}
			defer st.Close()

			for _, p := range parts {
				if err := st.Apply(p); err != nil {
					return err
				}
			}
			if flush {
				if err := st.Flush(cmd.Context()); err != nil {
					return err
				}
			}

			rc := store.ReadCommand{RowLimit: rowLimit, PartitionLimit: partitionLimit, PageSize: pageSize}
			for _, k := range keys {
				rc.Keys = append(rc.Keys, types.Key(k))
			}
			pager, err := st.Query(rc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i := 1; !pager.Done(); i++ {
				page, err := pager.NextPage(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "page %d: %d live rows\n", i, page.Stats.ClusteringRows.Live)
				printPartitions(out, page.Partitions)
			}
			if opts.cfg.Metrics.Enabled {
				return printMetrics(out, reg)
			}
			return nil
		},
	}

	cmd.Flags().Uint64Var(&pageSize, "page-size", 0, "live rows per page (default from config)")
	cmd.Flags().Uint64Var(&rowLimit, "row-limit", 0, "live rows in total (default from config)")
	cmd.Flags().Uint32Var(&partitionLimit, "partition-limit", 0, "partitions per page (default from config)")
	cmd.Flags().StringSliceVarP(&keys, "key", "k", nil, "partition keys to read, all when empty")
	cmd.Flags().BoolVar(&flush, "flush", false, "flush the memtable into a segment before reading")
	return cmd
}
