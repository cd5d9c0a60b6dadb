// Package tools implements the nine claim processing tools and the static
// dependency graph that orders them.
//
// Handlers are built by factories that close over a Dependencies value.
// Every handler reads the frozen claim and the results of earlier tools
// from an Input and returns a payload or an error; the orchestrator turns
// that into a ToolResult.
package tools

import (
	"context"
	"time"

	"github.com/ShayCichocki/claimflow/internal/retrieval"
	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/internal/state"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

// Default history check parameters.
const (
	DefaultHistoryLookback  = 365 * 24 * time.Hour
	DefaultHistoryThreshold = 3
)

// HistorySource is the slice of the relational store the history check reads.
type HistorySource interface {
	GetCustomer(ctx context.Context, customerID string) (*models.Customer, error)
	ListPoliciesByCustomer(ctx context.Context, customerID string) ([]models.PolicyRecord, error)
	ListClaimsByCustomer(ctx context.Context, customerID string) ([]models.Claim, error)
	ListClaimHistory(ctx context.Context, customerID string) ([]models.ClaimHistory, error)
}

// Dependencies holds the collaborators shared by all tool handlers.
type Dependencies struct {
	Rules    rules.Source
	Policies state.PolicyLookup
	Search   retrieval.Searcher
	History  HistorySource

	Now              func() time.Time
	HistoryLookback  time.Duration
	HistoryThreshold int
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dependencies) tables() *rules.Tables {
	if d.Rules == nil {
		return rules.Default()
	}
	return d.Rules.Tables()
}

// Input is what a handler sees when it runs.
type Input struct {
	Claim *models.ClaimRecord
	// Results holds every result recorded before the current wave.
	Results map[models.ToolName]models.ToolResult
	// Elapsed is the processing time so far.
	Elapsed time.Duration
}

// Payload returns the payload of a successful result of tool.
func (in *Input) Payload(tool models.ToolName) (any, bool) {
	r, ok := in.Results[tool]
	if !ok || !r.Success {
		return nil, false
	}
	return r.Payload, true
}

// Failure returns the failure reason recorded for tool, if it failed.
func (in *Input) Failure(tool models.ToolName) (string, bool) {
	r, ok := in.Results[tool]
	if !ok {
		return "not run", true
	}
	if r.Success {
		return "", false
	}
	return r.Reason, true
}

// Handler executes one tool.
type Handler func(ctx context.Context, in *Input) (any, error)

// Spec declares a tool, its prerequisites and its handler. DependsOn are
// hard prerequisites that must succeed; After only orders the tool behind
// others and tolerates their failure.
type Spec struct {
	Name      models.ToolName
	DependsOn []models.ToolName
	After     []models.ToolName
	Handler   Handler
}

// Registry returns the tool specs in canonical order.
func Registry(deps *Dependencies) []Spec {
	return []Spec{
		{Name: models.ToolExtractClaimData, Handler: NewExtractHandler(deps)},
		{Name: models.ToolRetrievePolicy, Handler: NewRetrievePolicyHandler(deps)},
		{
			Name:      models.ToolCheckCoverage,
			DependsOn: []models.ToolName{models.ToolRetrievePolicy},
			Handler:   NewCoverageHandler(deps),
		},
		{
			Name:      models.ToolCheckExclusions,
			DependsOn: []models.ToolName{models.ToolExtractClaimData, models.ToolRetrievePolicy},
			Handler:   NewExclusionsHandler(deps),
		},
		{
			Name:      models.ToolCalculatePayout,
			DependsOn: []models.ToolName{models.ToolCheckCoverage},
			Handler:   NewPayoutHandler(deps),
		},
		{
			Name:      models.ToolVerifyDocuments,
			DependsOn: []models.ToolName{models.ToolExtractClaimData},
			Handler:   NewDocumentsHandler(deps),
		},
		{Name: models.ToolCheckClaimHistory, Handler: NewHistoryHandler(deps)},
		{
			Name: models.ToolMakeDecision,
			After: []models.ToolName{
				models.ToolCheckCoverage,
				models.ToolCheckExclusions,
				models.ToolCalculatePayout,
				models.ToolVerifyDocuments,
				models.ToolCheckClaimHistory,
			},
			Handler: NewDecisionHandler(deps),
		},
		{
			Name:      models.ToolGenerateReport,
			DependsOn: []models.ToolName{models.ToolMakeDecision},
			Handler:   NewReportHandler(deps),
		},
	}
}
