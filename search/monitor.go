package search

import (
	"github.com/poiesic/duograph/core"
)

// Monitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type Monitor interface {
	Start(query string)
	AfterVectorSearch(matches []*core.ChunkMatch)
	VerbatimHit(match *core.ChunkMatch)
	AfterGraphSearch(facts []*core.FactResult)
	Finish(result *Result)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                         {}
func (n *noopMonitor) AfterVectorSearch(_ []*core.ChunkMatch) {}
func (n *noopMonitor) VerbatimHit(_ *core.ChunkMatch)         {}
func (n *noopMonitor) AfterGraphSearch(_ []*core.FactResult)  {}
func (n *noopMonitor) Finish(_ *Result)                       {}
