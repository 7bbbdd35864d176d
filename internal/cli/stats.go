package cli

import (
	"io"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/text/message"

	"github.com/tcoratger/keth/internal/store"
)

// StatsResult is the output of the stats command.
type StatsResult struct {
	store.Stats
	LatestBlock string `json:"latest_block,omitempty"`

	// Operations counts store operations run by this command, by name.
	Operations map[string]float64 `json:"operations,omitempty"`
}

func (r StatsResult) renderText(w io.Writer, p *message.Printer) {
	p.Fprintf(w, "Blocks:        %d\n", r.Blocks)
	p.Fprintf(w, "Accounts:      %d\n", r.Accounts)
	p.Fprintf(w, "Bytecodes:     %d\n", r.Bytecodes)
	p.Fprintf(w, "Storage slots: %d\n", r.Slots)
	if r.LatestBlock != "" {
		p.Fprintf(w, "Latest block:  %s\n", r.LatestBlock)
	} else {
		p.Fprintf(w, "Latest block:  none\n")
	}
	if len(r.Operations) == 0 {
		return
	}
	ops := make([]string, 0, len(r.Operations))
	for op := range r.Operations {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	p.Fprintf(w, "Operations:\n")
	for _, op := range ops {
		p.Fprintf(w, "  %-14s %v\n", op, r.Operations[op])
	}
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var showMetrics bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show row counts and the latest block",
		Long: `Count the rows of every table and report the highest stored block.

Example:
  exexdb stats --db ./exex.db
  exexdb stats --db ./exex.db --metrics --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			stats, err := e.store.Stats(cmd.Context())
			if err != nil {
				return e.lookupFailed("stats", err)
			}
			result := StatsResult{Stats: stats}

			latest, err := e.store.LatestBlockNumber(cmd.Context())
			if err != nil {
				return e.lookupFailed("latest block", err)
			}
			if latest != nil {
				result.LatestBlock = latest.Dec()
			}

			if showMetrics {
				ops, err := operationCounts(e)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to gather metrics", err)
				}
				result.Operations = ops
			}
			return e.formatter.Success(result)
		},
	}

	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "include store operation counters")
	return cmd
}

// operationCounts sums the store operation counter per op label.
func operationCounts(e *env) (map[string]float64, error) {
	families, err := e.registry.Gather()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]float64)
	for _, family := range families {
		if family.GetName() != "exex_store_operations_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "op" {
					counts[label.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	return counts, nil
}
