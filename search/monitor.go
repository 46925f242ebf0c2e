package search

import "github.com/poiesic/recall/core"

// Monitor provides hooks to observe the retrieval process.
// SignalDone is called from worker goroutines, so implementations must be
// safe for concurrent use.
type Monitor interface {
	Start(query string)
	Planned(plans []core.QueryPlan)
	SignalDone(plan core.QueryPlan, signal string, results int, err error)
	Fused(plan core.QueryPlan, results []core.RankedResult)
	Finish(results []core.RankedResult)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                        {}
func (n *noopMonitor) Planned(_ []core.QueryPlan)                            {}
func (n *noopMonitor) SignalDone(_ core.QueryPlan, _ string, _ int, _ error) {}
func (n *noopMonitor) Fused(_ core.QueryPlan, _ []core.RankedResult)         {}
func (n *noopMonitor) Finish(_ []core.RankedResult)                          {}
