package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ShayCichocki/claimflow/internal/graph"
	"github.com/ShayCichocki/claimflow/internal/tools"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

// errGraphStalled means pending tools remain but none can run.
var errGraphStalled = errors.New("tool graph stalled")

// Scheduler runs tools in dependency waves. Every tool whose
// prerequisites are resolved runs in the same wave; the next wave starts
// only after the whole wave has finished. Results of a wave are appended
// to the audit trail in canonical tool order.
type Scheduler struct {
	specs      map[models.ToolName]tools.Spec
	nodes      []graph.Node
	sequential bool
	now        func() time.Time
	emit       func(Event)
}

// NewScheduler creates a scheduler for specs.
func NewScheduler(specs []tools.Spec, sequential bool, now func() time.Time, emit func(Event)) *Scheduler {
	s := &Scheduler{
		specs:      make(map[models.ToolName]tools.Spec, len(specs)),
		sequential: sequential,
		now:        now,
		emit:       emit,
	}
	if s.emit == nil {
		s.emit = func(Event) {}
	}
	for _, spec := range specs {
		s.specs[spec.Name] = spec
		s.nodes = append(s.nodes, graph.Node{
			ID:        string(spec.Name),
			DependsOn: toolIDs(spec.DependsOn),
			After:     toolIDs(spec.After),
		})
	}
	return s
}

func toolIDs(names []models.ToolName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}

// Run executes every tool once for claim and appends each result to
// trail. Tool failures never abort the run.
func (s *Scheduler) Run(ctx context.Context, claim *models.ClaimRecord, trail *AuditTrail, started time.Time) error {
	g := graph.New()
	g.SetDebugLog(debugLog)
	if err := g.Build(s.nodes); err != nil {
		return fmt.Errorf("build tool graph: %w", err)
	}

	wave := 0
	for !g.Done() {
		if err := s.resolveBlocked(g, claim, trail, wave); err != nil {
			return err
		}
		if g.Done() {
			break
		}

		ready := g.GetReady()
		if len(ready) == 0 {
			return fmt.Errorf("%w: pending %v", errGraphStalled, g.Pending())
		}
		wave++
		debugLog("[scheduler] wave %d: %v", wave, ready)
		s.emit(Event{Type: EventWaveStarted, Phase: models.PhaseProcessing, Wave: wave, Message: fmt.Sprint(ready), Timestamp: s.now()})

		in := &tools.Input{
			Claim:   claim,
			Results: trail.Snapshot(),
			Elapsed: s.now().Sub(started),
		}
		results := s.runWave(ctx, ready, in, wave)

		for _, r := range results {
			if err := trail.Append(r); err != nil {
				return err
			}
			if r.Success {
				g.MarkComplete(string(r.Tool))
			} else {
				g.MarkFailed(string(r.Tool))
			}
		}
	}
	return nil
}

// resolveBlocked records a failed result for every tool whose hard
// prerequisite failed, repeating until no new tool is blocked.
func (s *Scheduler) resolveBlocked(g *graph.DependencyGraph, claim *models.ClaimRecord, trail *AuditTrail, wave int) error {
	for {
		blocked := g.Blocked()
		if len(blocked) == 0 {
			return nil
		}
		ids := make([]string, 0, len(blocked))
		for id := range blocked {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			return models.ToolName(ids[i]).Rank() < models.ToolName(ids[j]).Rank()
		})

		for _, id := range ids {
			name := models.ToolName(id)
			dep := models.ToolName(blocked[id])
			r := models.ToolResult{
				Tool:      name,
				Reason:    tools.PrerequisiteFailed(dep),
				Kind:      models.ErrorKindToolExecution,
				Timestamp: s.now(),
				Claim:     claim,
			}
			if err := trail.Append(r); err != nil {
				return err
			}
			g.MarkFailed(id)
			debugLog("[scheduler] %s blocked by %s", name, dep)
			s.emit(Event{Type: EventToolBlocked, Phase: models.PhaseProcessing, Tool: name, Wave: wave, Message: r.Reason, Timestamp: r.Timestamp})
		}
	}
}

func (s *Scheduler) runWave(ctx context.Context, ready []string, in *tools.Input, wave int) []models.ToolResult {
	results := make([]models.ToolResult, len(ready))
	if s.sequential {
		for i, id := range ready {
			results[i] = s.execute(ctx, models.ToolName(id), in, wave)
		}
	} else {
		var wg sync.WaitGroup
		for i, id := range ready {
			wg.Add(1)
			go func(i int, name models.ToolName) {
				defer wg.Done()
				results[i] = s.execute(ctx, name, in, wave)
			}(i, models.ToolName(id))
		}
		wg.Wait()
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Tool.Rank() < results[j].Tool.Rank()
	})
	return results
}

// execute runs one tool and converts its outcome, including a panic,
// into a ToolResult.
func (s *Scheduler) execute(ctx context.Context, name models.ToolName, in *tools.Input, wave int) (r models.ToolResult) {
	start := s.now()
	r = models.ToolResult{Tool: name, Timestamp: start, Claim: in.Claim}
	s.emit(Event{Type: EventToolStarted, Phase: models.PhaseProcessing, Tool: name, Wave: wave, Timestamp: start})

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%w: %s panicked: %v", tools.ErrToolExecution, name, p)
			r.Success, r.Payload = false, nil
			r.Reason, r.Kind = err.Error(), models.ErrorKindToolExecution
			r.Duration = s.now().Sub(start)
		}
		if r.Success {
			debugLog("[scheduler] %s completed in %s", name, r.Duration)
			s.emit(Event{Type: EventToolCompleted, Phase: models.PhaseProcessing, Tool: name, Wave: wave, Timestamp: s.now(), Duration: r.Duration})
			return
		}
		logger().Warn("tool failed", "tool", name, "kind", r.Kind, "reason", r.Reason)
		s.emit(Event{Type: EventToolFailed, Phase: models.PhaseProcessing, Tool: name, Wave: wave, Message: r.Reason, Timestamp: s.now(), Duration: r.Duration})
	}()

	spec, ok := s.specs[name]
	if !ok || spec.Handler == nil {
		err := fmt.Errorf("%w: no handler for %s", tools.ErrToolExecution, name)
		r.Reason, r.Kind = err.Error(), tools.Kind(err)
		return r
	}

	payload, err := spec.Handler(ctx, in)
	r.Duration = s.now().Sub(start)
	if err != nil {
		r.Reason, r.Kind = err.Error(), tools.Kind(err)
		return r
	}
	r.Success, r.Payload = true, payload
	return r
}
