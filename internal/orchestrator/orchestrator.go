package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/claimflow/internal/extract"
	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/internal/tools"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

// ErrOracleUnavailable is returned when the oracle cannot be reached. The
// session keeps the state it had before the failed message.
var ErrOracleUnavailable = errors.New("oracle unavailable")

// Oracle phrases intake questions and extracts structured fields from the
// conversation. It never decides which tools run.
type Oracle interface {
	// NextQuestion returns the question asking for the first of missing.
	NextQuestion(ctx context.Context, state *models.ConversationState, missing []string) (string, error)
	// ExtractFields returns field values found in the conversation, keyed
	// by the rules.Field* names.
	ExtractFields(ctx context.Context, state *models.ConversationState) (map[string]string, error)
}

// ClaimRecorder persists finalized claims.
type ClaimRecorder interface {
	CreateClaim(ctx context.Context, c *models.Claim) error
	AddClaimHistory(ctx context.Context, h *models.ClaimHistory) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Oracle Oracle
	// Tools is shared by every tool handler.
	Tools *tools.Dependencies
	// Rules defaults to Tools.Rules, then to the built-in tables.
	Rules rules.Source
	// Recorder is optional; without it finalized claims are not persisted.
	Recorder ClaimRecorder
}

// Orchestrator creates and runs claim sessions.
type Orchestrator struct {
	deps      Deps
	opts      options
	extractor *extract.Extractor
	specs     []tools.Spec
}

// New creates an Orchestrator.
func New(deps Deps, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	td := tools.Dependencies{}
	if deps.Tools != nil {
		td = *deps.Tools
	}
	if deps.Rules == nil {
		deps.Rules = td.Rules
	}
	if deps.Rules == nil {
		deps.Rules = rules.Static{T: rules.Default()}
	}
	if td.Rules == nil {
		td.Rules = deps.Rules
	}
	if td.Now == nil {
		td.Now = o.now
	}
	deps.Tools = &td

	return &Orchestrator{
		deps:      deps,
		opts:      o,
		extractor: extract.New(deps.Rules).WithClock(o.now),
		specs:     tools.Registry(deps.Tools),
	}
}

// NewSession starts a session in INTAKE. An empty id gets a random one.
func (o *Orchestrator) NewSession(id string) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	return &Session{
		orch:    o,
		id:      id,
		phase:   models.PhaseIntake,
		audit:   NewAuditTrail(),
		started: o.opts.now(),
	}
}

// ProcessClaim runs the processing tools for an already finalized claim,
// skipping intake. The returned session is FINALIZED.
func (o *Orchestrator) ProcessClaim(ctx context.Context, rec *models.ClaimRecord) (*Session, error) {
	if rec == nil {
		return nil, fmt.Errorf("process claim: nil claim record")
	}
	s := o.NewSession(rec.SessionID())
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conv.Draft = rec.Draft()
	s.conv.Ready = true
	s.setPhase(models.PhaseTransition)
	s.claim = rec
	if missing := o.extractor.MissingFields(&s.conv.Draft); len(missing) > 0 {
		s.intakeNote = incompleteNote(missing)
	}
	if err := s.process(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// MissingFields returns the required fields draft still lacks, in asking
// order.
func (o *Orchestrator) MissingFields(draft *models.ClaimDraft) []string {
	return o.extractor.MissingFields(draft)
}

func (o *Orchestrator) emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = o.opts.now()
	}
	o.opts.emitter.Emit(e)
}

func (o *Orchestrator) scheduler(sessionID string) *Scheduler {
	return NewScheduler(o.specs, o.opts.sequential, o.opts.now, func(e Event) {
		e.SessionID = sessionID
		o.emit(e)
	})
}

func oracleError(op string, err error) error {
	if errors.Is(err, ErrOracleUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrOracleUnavailable, err)
}

func incompleteNote(missing []string) string {
	return fmt.Sprintf("%s: missing %v", extract.ErrIncompleteIntake, missing)
}

// elapsedSince is used for report processing times.
func (o *Orchestrator) elapsedSince(t time.Time) time.Duration {
	return o.opts.now().Sub(t)
}
