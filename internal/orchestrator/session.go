package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/claimflow/internal/extract"
	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/internal/tools"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

const welcome = "Hello! I can help you file an insurance claim."

// Reply is the assistant's answer to one user message.
type Reply struct {
	Message string
	Phase   models.Phase
	// Missing lists the fields still needed while in INTAKE.
	Missing []string
	// Report is set once the session is FINALIZED.
	Report *tools.Report
}

// Session is one claim conversation. Its methods are safe for concurrent
// use and are serialized.
type Session struct {
	mu sync.Mutex

	orch       *Orchestrator
	id         string
	phase      models.Phase
	conv       models.ConversationState
	pending    string
	claim      *models.ClaimRecord
	audit      *AuditTrail
	decision   *models.Decision
	report     *tools.Report
	intakeNote string
	started    time.Time
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Start returns the opening message and records it in the conversation.
// Calling it again returns the same message.
func (s *Session) Start() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conv.Turns) > 0 && s.conv.Turns[0].Role == models.RoleAssistant {
		return s.conv.Turns[0].Text
	}
	msg := welcome + " " + s.tables().Prompt("", rules.FieldClaimType)
	s.conv.Turns = append([]models.Turn{{Role: models.RoleAssistant, Text: msg, At: s.orch.opts.now()}}, s.conv.Turns...)
	s.pending = rules.FieldClaimType
	return msg
}

// HandleMessage advances the session with one user message. It returns an
// error only when the oracle fails, in which case the session is left as
// it was before the call.
func (s *Session) HandleMessage(ctx context.Context, text string) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != models.PhaseIntake {
		return Reply{
			Message: fmt.Sprintf("Claim %s has already been processed. Start a new session to file another claim.", s.claimID()),
			Phase:   s.phase,
			Report:  s.report,
		}, nil
	}

	text = strings.TrimSpace(text)
	t := s.tables()
	if text == "" {
		return Reply{Message: t.Prompt(s.conv.Draft.Type, s.pendingOrType()), Phase: s.phase, Missing: s.orch.extractor.MissingFields(&s.conv.Draft)}, nil
	}

	snapshot := s.snapshot()
	now := s.orch.opts.now()
	s.conv.Append(models.RoleUser, text, now)

	if s.conv.Draft.Type == "" && extract.IsGreeting(t, text) {
		// Greetings do not count toward the turn limit.
		s.conv.TurnCount--
		msg := welcome + " " + t.Prompt("", rules.FieldClaimType)
		s.conv.Append(models.RoleAssistant, msg, now)
		s.pending = rules.FieldClaimType
		return Reply{Message: msg, Phase: s.phase, Missing: s.orch.extractor.MissingFields(&s.conv.Draft)}, nil
	}

	s.orch.extractor.Apply(&s.conv.Draft, text, s.pending)
	if s.orch.deps.Oracle != nil {
		fields, err := s.orch.deps.Oracle.ExtractFields(ctx, &s.conv)
		if err != nil {
			s.restore(snapshot)
			return Reply{}, oracleError("extract fields", err)
		}
		s.orch.extractor.Merge(&s.conv.Draft, fields)
	}

	missing := s.orch.extractor.MissingFields(&s.conv.Draft)
	if len(missing) > 0 && s.conv.TurnCount < s.orch.opts.maxTurns {
		question := t.Prompt(s.conv.Draft.Type, missing[0])
		if s.orch.deps.Oracle != nil {
			q, err := s.orch.deps.Oracle.NextQuestion(ctx, &s.conv, missing)
			if err != nil {
				s.restore(snapshot)
				return Reply{}, oracleError("next question", err)
			}
			if strings.TrimSpace(q) != "" {
				question = q
			}
		}
		s.conv.Append(models.RoleAssistant, question, s.orch.opts.now())
		s.pending = missing[0]
		debugLog("[session %s] turn %d, missing %v", s.id, s.conv.TurnCount, missing)
		return Reply{Message: question, Phase: s.phase, Missing: missing}, nil
	}

	if len(missing) > 0 {
		s.intakeNote = incompleteNote(missing)
		logger().Warn("intake turn limit reached", "session", s.id, "missing", missing)
	}
	s.conv.Ready = true
	s.setPhase(models.PhaseTransition)
	s.claim = s.orch.extractor.Finalize(s.conv.Draft.Clone(), s.id)

	if err := s.process(ctx); err != nil {
		return Reply{Phase: s.phase}, err
	}

	msg := fmt.Sprintf("Claim %s has been processed.", s.claim.ID())
	if s.report != nil {
		msg = s.report.Text
	}
	s.conv.Append(models.RoleAssistant, msg, s.orch.opts.now())
	return Reply{Message: msg, Phase: s.phase, Missing: missing, Report: s.report}, nil
}

// process runs the tools for s.claim and finalizes the session.
// Callers hold s.mu and have set s.claim.
func (s *Session) process(ctx context.Context) error {
	s.setPhase(models.PhaseProcessing)
	start := s.orch.opts.now()
	if err := s.orch.scheduler(s.id).Run(ctx, s.claim, s.audit, start); err != nil {
		return fmt.Errorf("process claim %s: %w", s.claim.ID(), err)
	}

	if r, ok := s.audit.Get(models.ToolMakeDecision); ok && r.Success {
		if d, ok := r.Payload.(*models.Decision); ok {
			s.decision = d
		}
	}
	if r, ok := s.audit.Get(models.ToolGenerateReport); ok && r.Success {
		if rep, ok := r.Payload.(*tools.Report); ok {
			s.report = rep
		}
	}

	s.setPhase(models.PhaseFinalized)
	s.persist(ctx)

	verdict := models.VerdictReview
	if s.decision != nil {
		verdict = s.decision.Verdict
	}
	logger().Info("claim processed",
		"session", s.id,
		"claim", s.claim.ID(),
		"verdict", verdict,
		"tools", s.audit.Len(),
		"elapsed", s.orch.elapsedSince(start))
	s.orch.emit(Event{Type: EventSessionDone, SessionID: s.id, Phase: s.phase, Message: string(verdict)})
	return nil
}

// persist stores the finalized claim and a history row. Store errors are
// logged and do not change the outcome of the session.
func (s *Session) persist(ctx context.Context) {
	rec := s.orch.deps.Recorder
	if rec == nil {
		return
	}
	now := s.orch.opts.now()
	status := models.ClaimStatusPending
	c := &models.Claim{
		ClaimID:       s.claim.ID(),
		CustomerID:    s.claim.CustomerID(),
		Type:          s.claim.SubType(),
		IncidentDate:  s.claim.IncidentDate(),
		Description:   s.claim.Description(),
		Identifier:    s.claim.Identifier(),
		EstimatedCost: s.claim.Amount(),
		FiledDate:     s.claim.CreatedAt(),
	}
	if r, ok := s.audit.Get(models.ToolRetrievePolicy); ok && r.Success {
		if p, ok := r.Payload.(*models.PolicyRecord); ok {
			c.PolicyNumber = p.PolicyNumber
			if c.CustomerID == "" {
				c.CustomerID = p.CustomerID
			}
		}
	}
	if s.decision != nil {
		status = s.decision.Verdict.ClaimStatus()
		c.PayoutAmount = s.decision.Payable
		c.Decision = string(s.decision.Verdict)
		c.DecisionReason = strings.Join(s.decision.Reasons, "; ")
		c.DecisionDate = &now
	}
	c.Status = status

	if err := rec.CreateClaim(ctx, c); err != nil {
		logger().Error("failed to persist claim", "claim", c.ClaimID, "error", err)
		return
	}
	if c.CustomerID == "" {
		return
	}
	h := &models.ClaimHistory{
		CustomerID: c.CustomerID,
		ClaimID:    c.ClaimID,
		ClaimType:  string(s.claim.Type()),
		Amount:     c.EstimatedCost,
		FiledDate:  c.FiledDate,
		Status:     string(status),
	}
	if err := rec.AddClaimHistory(ctx, h); err != nil {
		logger().Error("failed to record claim history", "claim", c.ClaimID, "error", err)
	}
}

// State returns the current phase.
func (s *Session) State() models.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Conversation returns a copy of the conversation state.
func (s *Session) Conversation() models.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyConversation()
}

// Audit returns the audit trail in append order.
func (s *Session) Audit() []models.ToolResult {
	return s.audit.Entries()
}

// Claim returns the claim record, or nil before TRANSITION.
func (s *Session) Claim() *models.ClaimRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claim
}

// Decision returns the decision, or nil if none was made.
func (s *Session) Decision() *models.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decision == nil {
		return nil
	}
	d := *s.decision
	d.Reasons = append([]string(nil), s.decision.Reasons...)
	return &d
}

// Report returns the final report, or nil before FINALIZED.
func (s *Session) Report() *tools.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// IntakeNote is set when intake ended at the turn limit with fields missing.
func (s *Session) IntakeNote() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intakeNote
}

func (s *Session) setPhase(p models.Phase) {
	if s.phase == p {
		return
	}
	debugLog("[session %s] %s -> %s", s.id, s.phase, p)
	s.phase = p
	s.orch.emit(Event{Type: EventPhaseChanged, SessionID: s.id, Phase: p})
}

func (s *Session) tables() *rules.Tables {
	return s.orch.deps.Rules.Tables()
}

func (s *Session) claimID() string {
	if s.claim == nil {
		return ""
	}
	return s.claim.ID()
}

func (s *Session) pendingOrType() string {
	if s.pending == "" {
		return rules.FieldClaimType
	}
	return s.pending
}

type sessionSnapshot struct {
	conv    models.ConversationState
	pending string
}

func (s *Session) snapshot() sessionSnapshot {
	return sessionSnapshot{conv: s.copyConversation(), pending: s.pending}
}

func (s *Session) restore(snap sessionSnapshot) {
	s.conv = snap.conv
	s.pending = snap.pending
}

func (s *Session) copyConversation() models.ConversationState {
	c := s.conv
	c.Turns = append([]models.Turn(nil), s.conv.Turns...)
	c.Draft = s.conv.Draft.Clone()
	return c
}
