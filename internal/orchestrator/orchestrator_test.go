package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/claimflow/internal/extract"
	"github.com/ShayCichocki/claimflow/internal/retrieval"
	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/internal/tools"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

var testNow = time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// scriptedOracle returns canned fields for each user message.
type scriptedOracle struct {
	fields  map[string]map[string]string
	failErr error
	asked   []string
}

func (o *scriptedOracle) NextQuestion(_ context.Context, _ *models.ConversationState, missing []string) (string, error) {
	if o.failErr != nil {
		return "", o.failErr
	}
	o.asked = append(o.asked, missing[0])
	return "please provide " + missing[0], nil
}

func (o *scriptedOracle) ExtractFields(_ context.Context, state *models.ConversationState) (map[string]string, error) {
	if o.failErr != nil {
		return nil, o.failErr
	}
	return o.fields[state.LastUserText()], nil
}

type policyMap map[string]*models.PolicyRecord

func (m policyMap) GetPolicyByIdentifier(_ context.Context, id string) (*models.PolicyRecord, error) {
	p, ok := m[extract.CanonicalID(id)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

type memRecorder struct {
	mu      sync.Mutex
	claims  []models.Claim
	history []models.ClaimHistory
	err     error
}

func (r *memRecorder) CreateClaim(_ context.Context, c *models.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.claims = append(r.claims, *c)
	return nil
}

func (r *memRecorder) AddClaimHistory(_ context.Context, h *models.ClaimHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, *h)
	return nil
}

func testPolicies() policyMap {
	return policyMap{
		"TS09EF5678": {
			PolicyNumber:        "MI-2024-777",
			CustomerID:          "CUST-009",
			PolicyType:          models.ClaimTypeMotor,
			CoverageType:        "comprehensive",
			SumInsured:          800000,
			IDV:                 800000,
			Deductible:          3000,
			VehicleRegistration: "TS09EF5678",
			Status:              "active",
			Source:              models.PolicySourceDatabase,
		},
	}
}

func motorFields() map[string]string {
	return map[string]string{
		rules.FieldClaimType:    "motor",
		rules.FieldIdentifier:   "TS09EF5678",
		rules.FieldAmount:       "45000",
		rules.FieldIncidentDate: "2026-10-18",
		rules.FieldDescription:  "rear-ended at a traffic signal, bumper and tail light damaged",
		rules.FieldCustomerID:   "CUST-009",
		"documents":             "claim form, driving license, registration certificate, repair estimate, photos, FIR copy",
	}
}

func newTestOrchestrator(t *testing.T, oracle Oracle, policies policyMap, search retrieval.Searcher, rec ClaimRecorder, opts ...Option) *Orchestrator {
	t.Helper()
	deps := Deps{
		Oracle: oracle,
		Tools: &tools.Dependencies{
			Rules:    rules.Static{T: rules.Default()},
			Policies: policies,
			Search:   search,
		},
		Recorder: rec,
	}
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return New(deps, opts...)
}

func TestSession_MotorClaimEndToEnd(t *testing.T) {
	oracle := &scriptedOracle{fields: map[string]map[string]string{
		"my car was hit": motorFields(),
	}}
	rec := &memRecorder{}
	orch := newTestOrchestrator(t, oracle, testPolicies(), retrieval.Static{}, rec)

	s := orch.NewSession("sess-1")
	if greeting := s.Start(); !strings.Contains(greeting, "motor, home or health") {
		t.Errorf("Start() = %q, want the claim type prompt", greeting)
	}

	reply, err := s.HandleMessage(context.Background(), "my car was hit")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if reply.Phase != models.PhaseFinalized {
		t.Fatalf("reply.Phase = %s, want %s", reply.Phase, models.PhaseFinalized)
	}
	if reply.Report == nil || !strings.Contains(reply.Report.Text, "APPROVED") {
		t.Fatalf("reply.Report missing or not approved: %+v", reply.Report)
	}

	d := s.Decision()
	if d == nil || d.Verdict != models.VerdictApproved {
		t.Fatalf("Decision() = %+v, want APPROVED", d)
	}
	if d.Payable != 39750 {
		t.Errorf("Decision().Payable = %v, want 39750", d.Payable)
	}

	want := []models.ToolName{
		models.ToolExtractClaimData,
		models.ToolRetrievePolicy,
		models.ToolCheckClaimHistory,
		models.ToolCheckCoverage,
		models.ToolCheckExclusions,
		models.ToolVerifyDocuments,
		models.ToolCalculatePayout,
		models.ToolMakeDecision,
		models.ToolGenerateReport,
	}
	audit := s.Audit()
	if len(audit) != len(want) {
		t.Fatalf("len(Audit()) = %d, want %d", len(audit), len(want))
	}
	for i, r := range audit {
		if r.Tool != want[i] {
			t.Errorf("Audit()[%d].Tool = %s, want %s", i, r.Tool, want[i])
		}
	}

	if len(rec.claims) != 1 {
		t.Fatalf("persisted %d claims, want 1", len(rec.claims))
	}
	c := rec.claims[0]
	if c.Status != models.ClaimStatusApproved || c.PolicyNumber != "MI-2024-777" || c.PayoutAmount != 39750 {
		t.Errorf("persisted claim = %+v", c)
	}
	if len(rec.history) != 1 || rec.history[0].ClaimID != c.ClaimID {
		t.Errorf("history = %+v, want one row for %s", rec.history, c.ClaimID)
	}

	again, err := s.HandleMessage(context.Background(), "hello?")
	if err != nil {
		t.Fatalf("HandleMessage() after finalize error = %v", err)
	}
	if again.Phase != models.PhaseFinalized || again.Report != reply.Report {
		t.Errorf("HandleMessage() after finalize = %+v, want the finalized report", again)
	}
}

func TestSession_SingleClaimRecord(t *testing.T) {
	oracle := &scriptedOracle{fields: map[string]map[string]string{"claim": motorFields()}}
	orch := newTestOrchestrator(t, oracle, testPolicies(), retrieval.Static{}, nil)
	s := orch.NewSession("")
	s.Start()

	if s.Claim() != nil {
		t.Fatal("Claim() before intake completes should be nil")
	}
	if _, err := s.HandleMessage(context.Background(), "claim"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	claim := s.Claim()
	if claim == nil {
		t.Fatal("Claim() = nil after processing")
	}
	for _, r := range s.Audit() {
		if r.Claim != claim {
			t.Errorf("%s references a different claim record", r.Tool)
		}
	}
	if claim.SessionID() != s.ID() {
		t.Errorf("Claim().SessionID() = %q, want %q", claim.SessionID(), s.ID())
	}
}

func TestSession_AsksForMissingFields(t *testing.T) {
	fields := motorFields()
	delete(fields, rules.FieldAmount)
	oracle := &scriptedOracle{fields: map[string]map[string]string{
		"first":  fields,
		"second": {rules.FieldAmount: "45000"},
	}}
	orch := newTestOrchestrator(t, oracle, testPolicies(), retrieval.Static{}, nil)
	s := orch.NewSession("")
	s.Start()

	reply, err := s.HandleMessage(context.Background(), "first")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if reply.Phase != models.PhaseIntake {
		t.Fatalf("reply.Phase = %s, want INTAKE", reply.Phase)
	}
	if len(reply.Missing) != 1 || reply.Missing[0] != rules.FieldAmount {
		t.Errorf("reply.Missing = %v, want [amount]", reply.Missing)
	}
	if reply.Message != "please provide amount" {
		t.Errorf("reply.Message = %q", reply.Message)
	}

	reply, err = s.HandleMessage(context.Background(), "second")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if reply.Phase != models.PhaseFinalized {
		t.Errorf("reply.Phase = %s, want FINALIZED", reply.Phase)
	}
	if got := s.Claim().Amount(); got != 45000 {
		t.Errorf("Claim().Amount() = %v, want 45000", got)
	}
}

func TestSession_TurnLimit(t *testing.T) {
	oracle := &scriptedOracle{}
	orch := newTestOrchestrator(t, oracle, testPolicies(), retrieval.Static{}, nil, WithMaxTurns(3))
	s := orch.NewSession("")
	s.Start()

	var reply Reply
	var err error
	for i := 0; i < 3; i++ {
		reply, err = s.HandleMessage(context.Background(), "not sure")
		if err != nil {
			t.Fatalf("HandleMessage() turn %d error = %v", i+1, err)
		}
	}
	if reply.Phase != models.PhaseFinalized {
		t.Fatalf("reply.Phase = %s after turn limit, want FINALIZED", reply.Phase)
	}
	if s.IntakeNote() == "" {
		t.Error("IntakeNote() = \"\", want a note about missing fields")
	}

	var extractResult models.ToolResult
	for _, r := range s.Audit() {
		if r.Tool == models.ToolExtractClaimData {
			extractResult = r
		}
	}
	if extractResult.Success || extractResult.Kind != models.ErrorKindIncompleteIntake {
		t.Errorf("extract_claim_data = %+v, want incomplete_intake failure", extractResult)
	}
	if d := s.Decision(); d == nil || d.Verdict != models.VerdictReview {
		t.Errorf("Decision() = %+v, want REVIEW", d)
	}
}

func TestSession_GreetingDoesNotCountAsTurn(t *testing.T) {
	orch := newTestOrchestrator(t, &scriptedOracle{}, testPolicies(), retrieval.Static{}, nil, WithMaxTurns(1))
	s := orch.NewSession("")
	s.Start()

	reply, err := s.HandleMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if reply.Phase != models.PhaseIntake {
		t.Errorf("reply.Phase = %s, want INTAKE", reply.Phase)
	}
	if got := s.Conversation().TurnCount; got != 0 {
		t.Errorf("TurnCount = %d after greeting, want 0", got)
	}
}

func TestSession_OracleFailureKeepsState(t *testing.T) {
	oracle := &scriptedOracle{failErr: errors.New("connection reset")}
	orch := newTestOrchestrator(t, oracle, testPolicies(), retrieval.Static{}, nil)
	s := orch.NewSession("")
	s.Start()
	before := s.Conversation()

	_, err := s.HandleMessage(context.Background(), "my car TS09EF5678 was hit")
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("HandleMessage() error = %v, want ErrOracleUnavailable", err)
	}
	after := s.Conversation()
	if len(after.Turns) != len(before.Turns) || after.TurnCount != before.TurnCount {
		t.Errorf("conversation changed: before %d turns, after %d turns", len(before.Turns), len(after.Turns))
	}
	if after.Draft.Identifier != "" || after.Draft.Type != "" {
		t.Errorf("draft changed after oracle failure: %+v", after.Draft)
	}
	if s.State() != models.PhaseIntake {
		t.Errorf("State() = %s, want INTAKE", s.State())
	}
}

func TestProcessClaim_NoPolicyRetrievalDown(t *testing.T) {
	orch := newTestOrchestrator(t, nil, policyMap{}, retrieval.Unavailable{}, nil)
	draft := models.ClaimDraft{
		Type:         models.ClaimTypeMotor,
		SubType:      models.SubTypeMotorAccident,
		Description:  "hit a divider on the highway",
		Identifier:   "KA01AB9999",
		Amount:       30000,
		IncidentDate: "2026-10-17",
	}
	rec := models.NewClaimRecord("CLM-20261019-DEADBEEF", "sess-x", draft, testNow)

	s, err := orch.ProcessClaim(context.Background(), rec)
	if err != nil {
		t.Fatalf("ProcessClaim() error = %v", err)
	}
	if s.State() != models.PhaseFinalized {
		t.Fatalf("State() = %s, want FINALIZED", s.State())
	}

	results := make(map[models.ToolName]models.ToolResult)
	for _, r := range s.Audit() {
		results[r.Tool] = r
	}
	if len(results) != len(models.ToolOrder) {
		t.Fatalf("audit has %d tools, want %d", len(results), len(models.ToolOrder))
	}
	if r := results[models.ToolRetrievePolicy]; r.Success || r.Kind != models.ErrorKindPolicyNotFound {
		t.Errorf("retrieve_policy = %+v, want policy_not_found", r)
	}

	blocked := map[models.ToolName]string{
		models.ToolCheckCoverage:   "prerequisite failed: retrieve_policy",
		models.ToolCheckExclusions: "prerequisite failed: retrieve_policy",
		models.ToolCalculatePayout: "prerequisite failed: check_coverage",
	}
	for tool, reason := range blocked {
		r := results[tool]
		if r.Success || r.Reason != reason || r.Kind != models.ErrorKindToolExecution {
			t.Errorf("%s = {success %v, reason %q, kind %s}, want blocked with %q", tool, r.Success, r.Reason, r.Kind, reason)
		}
	}
	if d := s.Decision(); d == nil || d.Verdict != models.VerdictReview {
		t.Errorf("Decision() = %+v, want REVIEW", d)
	}
	if s.Report() == nil {
		t.Fatal("Report() = nil, want a report")
	}
}

func TestProcessClaim_PartialIntake(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        models.Verdict
	}{
		{"covered", "rear-ended at a traffic signal, bumper damaged", models.VerdictApproved},
		{"excluded", "I was drunk driving and hit a divider", models.VerdictDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := newTestOrchestrator(t, nil, testPolicies(), retrieval.Static{}, nil)
			draft := models.ClaimDraft{
				Type:        models.ClaimTypeMotor,
				Description: tt.description,
				Identifier:  "TS09EF5678",
				Amount:      45000,
			}
			rec := models.NewClaimRecord("CLM-20261019-0000EEEE", "sess-p", draft, testNow)

			s, err := orch.ProcessClaim(context.Background(), rec)
			if err != nil {
				t.Fatalf("ProcessClaim() error = %v", err)
			}
			for _, r := range s.Audit() {
				if r.Tool == models.ToolExtractClaimData && !r.Success {
					t.Errorf("extract_claim_data failed: %s", r.Reason)
				}
				if r.Tool == models.ToolCheckExclusions && !r.Success {
					t.Errorf("check_exclusions failed: %s", r.Reason)
				}
			}
			if !strings.Contains(s.IntakeNote(), rules.FieldIncidentDate) {
				t.Errorf("IntakeNote() = %q, want incident_date listed", s.IntakeNote())
			}
			if d := s.Decision(); d == nil || d.Verdict != tt.want {
				t.Errorf("Decision() = %+v, want %s", d, tt.want)
			}
			if rep := s.Report(); rep == nil || !strings.Contains(rep.Text, "Not Provided: incident_date") {
				t.Errorf("report does not list the missing incident date")
			}
		})
	}
}

func TestProcessClaim_SequentialMatchesConcurrent(t *testing.T) {
	draft := models.ClaimDraft{
		Type:         models.ClaimTypeMotor,
		SubType:      models.SubTypeMotorAccident,
		Description:  "drunk driver hit my parked car",
		Identifier:   "TS09EF5678",
		Amount:       45000,
		CustomerID:   "CUST-009",
		IncidentDate: "2026-10-18",
	}
	rec := models.NewClaimRecord("CLM-20261019-0000ABCD", "sess-y", draft, testNow)

	run := func(opts ...Option) *Session {
		t.Helper()
		orch := newTestOrchestrator(t, nil, testPolicies(), retrieval.Static{}, nil, opts...)
		s, err := orch.ProcessClaim(context.Background(), rec)
		if err != nil {
			t.Fatalf("ProcessClaim() error = %v", err)
		}
		return s
	}
	seq := run(WithSequential())
	par := run()

	a, b := seq.Audit(), par.Audit()
	if len(a) != len(b) {
		t.Fatalf("sequential audit has %d entries, concurrent %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Tool != b[i].Tool || a[i].Success != b[i].Success || a[i].Reason != b[i].Reason {
			t.Errorf("entry %d differs: sequential %s/%v, concurrent %s/%v", i, a[i].Tool, a[i].Success, b[i].Tool, b[i].Success)
		}
	}
	if seq.Report().Text != par.Report().Text {
		t.Error("sequential and concurrent reports differ")
	}
	if seq.Decision().Verdict != models.VerdictDenied {
		t.Errorf("Decision().Verdict = %s, want DENIED", seq.Decision().Verdict)
	}
}

func TestProcessClaim_PersistFailureIsNotFatal(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	orch := newTestOrchestrator(t, nil, testPolicies(), retrieval.Static{}, rec)
	draft := models.ClaimDraft{
		Type:         models.ClaimTypeMotor,
		SubType:      models.SubTypeMotorAccident,
		Description:  "scraped against a pillar in the parking lot",
		Identifier:   "TS09EF5678",
		Amount:       12000,
		IncidentDate: "2026-10-18",
	}
	s, err := orch.ProcessClaim(context.Background(), models.NewClaimRecord("CLM-20261019-00000001", "", draft, testNow))
	if err != nil {
		t.Fatalf("ProcessClaim() error = %v", err)
	}
	if s.State() != models.PhaseFinalized {
		t.Errorf("State() = %s, want FINALIZED", s.State())
	}
	if len(rec.history) != 0 {
		t.Errorf("history rows = %d, want 0 when the claim was not stored", len(rec.history))
	}
}

func TestScheduler_PanicBecomesFailure(t *testing.T) {
	specs := []tools.Spec{
		{Name: models.ToolExtractClaimData, Handler: func(context.Context, *tools.Input) (any, error) {
			panic("boom")
		}},
		{
			Name:      models.ToolVerifyDocuments,
			DependsOn: []models.ToolName{models.ToolExtractClaimData},
			Handler:   func(context.Context, *tools.Input) (any, error) { return "ok", nil },
		},
	}
	trail := NewAuditTrail()
	rec := models.NewClaimRecord("CLM-1", "s", models.ClaimDraft{}, testNow)
	if err := NewScheduler(specs, false, fixedClock, nil).Run(context.Background(), rec, trail, testNow); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	entries := trail.Entries()
	if len(entries) != 2 {
		t.Fatalf("len(Entries()) = %d, want 2", len(entries))
	}
	if entries[0].Success || !strings.Contains(entries[0].Reason, "panicked") || entries[0].Kind != models.ErrorKindToolExecution {
		t.Errorf("panicking tool result = %+v", entries[0])
	}
	if entries[1].Success || entries[1].Reason != tools.PrerequisiteFailed(models.ToolExtractClaimData) {
		t.Errorf("dependent result = %+v, want blocked", entries[1])
	}
}

func TestScheduler_EmitsEvents(t *testing.T) {
	em := NewEventEmitter(64)
	orch := newTestOrchestrator(t, nil, testPolicies(), retrieval.Static{}, nil, WithEmitter(em))
	rec := models.NewClaimRecord("CLM-2", "sess-ev", models.ClaimDraft{
		Type: models.ClaimTypeMotor, SubType: models.SubTypeMotorAccident, Identifier: "TS09EF5678",
		Description: "minor dent on the door", Amount: 8000, IncidentDate: "2026-10-18",
	}, testNow)
	if _, err := orch.ProcessClaim(context.Background(), rec); err != nil {
		t.Fatalf("ProcessClaim() error = %v", err)
	}
	em.Close()

	counts := make(map[EventType]int)
	for e := range em.Events() {
		if e.SessionID != "sess-ev" {
			t.Errorf("event %s has session %q", e.Type, e.SessionID)
		}
		counts[e.Type]++
	}
	if counts[EventToolStarted] != len(models.ToolOrder) {
		t.Errorf("tool_started events = %d, want %d", counts[EventToolStarted], len(models.ToolOrder))
	}
	if counts[EventSessionDone] != 1 {
		t.Errorf("session_done events = %d, want 1", counts[EventSessionDone])
	}
}

func TestAuditTrail_RejectsDuplicates(t *testing.T) {
	a := NewAuditTrail()
	if err := a.Append(models.ToolResult{Tool: models.ToolRetrievePolicy}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := a.Append(models.ToolResult{Tool: models.ToolRetrievePolicy}); err == nil {
		t.Error("Append() duplicate error = nil, want error")
	}
	if a.Len() != 1 {
		t.Errorf("Len() = %d, want 1", a.Len())
	}
}
