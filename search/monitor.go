package search

// SearchMonitor provides hooks to observe a search.
// Implement this interface to trace candidate counts and individual hits.
type SearchMonitor interface {
	Start(query string, candidates int)
	Scored(doc Document, score float64)
	Finish(total, returned int)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)        {}
func (n *noopMonitor) Scored(_ Document, _ float64) {}
func (n *noopMonitor) Finish(_, _ int)              {}
