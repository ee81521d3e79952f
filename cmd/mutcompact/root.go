package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mutcompact/pkg/config"
	"mutcompact/pkg/metrics"
	"mutcompact/pkg/mutation"
)

type options struct {
	configPath string
	now        string

	cfg    config.Config
	logger *slog.Logger
}

type fixedTime time.Time

func (t fixedTime) Now() time.Time { return time.Time(t) }

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "mutcompact",
		Short:        "Compact mutation fixtures the way a read or a table compaction would",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := initConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = initLogger(&cfg, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the config file")
	root.PersistentFlags().StringVar(&opts.now, "now", "", "query or compaction time in RFC 3339 (default current time)")

	root.AddCommand(newQueryCmd(opts), newCompactCmd(opts))
	return root
}

func (o *options) clock() (fixedTime, error) {
	if o.now == "" {
		return fixedTime(time.Now()), nil
	}
	t, err := time.Parse(time.RFC3339, o.now)
	if err != nil {
		return fixedTime{}, fmt.Errorf("invalid --now: %w", err)
	}
	return fixedTime(t), nil
}

// collector returns the metrics sink for a run, registered on reg.
func (o *options) collector(reg *prometheus.Registry) metrics.Collector {
	if !o.cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.NewPrometheus(o.cfg.Metrics.Namespace, reg)
}

func printPartitions(w io.Writer, parts []*mutation.Partition) {
	for _, p := range parts {
		for _, frag := range p.Fragments() {
			fmt.Fprintf(w, "  %s\n", frag)
		}
	}
}

// printMetrics dumps counters and gauges gathered from reg.
func printMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			labels := ""
			for i, lp := range m.GetLabel() {
				if i > 0 {
					labels += ","
				}
				labels += lp.GetName() + "=" + lp.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s{%s} %g\n", f.GetName(), labels, m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				fmt.Fprintf(w, "%s{%s} %g\n", f.GetName(), labels, m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				fmt.Fprintf(w, "%s_count{%s} %d\n", f.GetName(), labels, m.GetHistogram().GetSampleCount())
			}
		}
	}
	return nil
}
