package orchestrator

import (
	"fmt"
	"sync"

	"github.com/ShayCichocki/claimflow/pkg/models"
)

// AuditTrail is the append-only list of tool results of one session.
// Each tool appears at most once and entries are never modified.
type AuditTrail struct {
	mu      sync.RWMutex
	entries []models.ToolResult
	index   map[models.ToolName]int
}

// NewAuditTrail creates an empty trail.
func NewAuditTrail() *AuditTrail {
	return &AuditTrail{index: make(map[models.ToolName]int)}
}

// Append records r. A second result for the same tool is rejected.
func (a *AuditTrail) Append(r models.ToolResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.index[r.Tool]; ok {
		return fmt.Errorf("audit trail already has a result for %s", r.Tool)
	}
	a.index[r.Tool] = len(a.entries)
	a.entries = append(a.entries, r)
	return nil
}

// Get returns the result recorded for tool.
func (a *AuditTrail) Get(tool models.ToolName) (models.ToolResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, ok := a.index[tool]
	if !ok {
		return models.ToolResult{}, false
	}
	return a.entries[i], true
}

// Entries returns a copy of the trail in append order.
func (a *AuditTrail) Entries() []models.ToolResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.ToolResult(nil), a.entries...)
}

// Snapshot returns the results keyed by tool.
func (a *AuditTrail) Snapshot() map[models.ToolName]models.ToolResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[models.ToolName]models.ToolResult, len(a.entries))
	for _, r := range a.entries {
		out[r.Tool] = r
	}
	return out
}

// Len returns the number of entries.
func (a *AuditTrail) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}
