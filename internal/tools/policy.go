package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ShayCichocki/claimflow/internal/retrieval"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

const (
	contextSnippets   = 2
	snippetMaxLength  = 500
	unnamedPolicyName = "policy document"
)

// NewRetrievePolicyHandler returns the retrieve_policy handler. The
// relational store is consulted first; a hit there is enriched with
// policy wording from the semantic store. Without a stored policy the
// best semantic match is turned into a synthetic policy record.
func NewRetrievePolicyHandler(deps *Dependencies) Handler {
	return func(ctx context.Context, in *Input) (any, error) {
		identifier := in.Claim.Identifier()
		claimType := in.Claim.Type()

		if identifier != "" && deps.Policies != nil {
			p, err := deps.Policies.GetPolicyByIdentifier(ctx, identifier)
			switch {
			case err != nil:
				slog.Warn("policy lookup failed, trying semantic store", "identifier", identifier, "error", err)
			case p != nil:
				enrichPolicy(ctx, deps.Search, p, in.Claim.Description())
				return p, nil
			}
		}

		if deps.Search == nil {
			return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, identifier)
		}
		query := strings.TrimSpace(fmt.Sprintf("%s %s insurance policy coverage %s", identifier, claimType, in.Claim.Description()))
		hits, err := deps.Search.Search(ctx, query, retrieval.Filter{ClaimType: claimType}, contextSnippets)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrPolicyNotFound, identifier, err)
		}
		if len(hits) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, identifier)
		}
		return policyFromHits(identifier, claimType, hits), nil
	}
}

// enrichPolicy attaches the top policy wording snippets to p. Search
// failures are logged and leave p unchanged.
func enrichPolicy(ctx context.Context, search retrieval.Searcher, p *models.PolicyRecord, description string) {
	if search == nil {
		return
	}
	query := fmt.Sprintf("What are the coverage details and benefits for %s insurance? %s", p.PolicyType, description)
	hits, err := search.Search(ctx, query, retrieval.Filter{ClaimType: p.PolicyType}, contextSnippets)
	if err != nil {
		slog.Warn("policy context unavailable", "policy", p.PolicyNumber, "error", err)
		return
	}
	p.Context = snippets(hits)
}

func snippets(hits []retrieval.Hit) []models.PolicySnippet {
	out := make([]models.PolicySnippet, 0, len(hits))
	for _, h := range hits {
		content := h.Text
		if r := []rune(content); len(r) > snippetMaxLength {
			content = string(r[:snippetMaxLength])
		}
		out = append(out, models.PolicySnippet{
			Source:    hitSource(h),
			Content:   content,
			Relevance: h.Relevance,
		})
	}
	return out
}

func hitSource(h retrieval.Hit) string {
	for _, k := range []string{retrieval.MetaPolicyName, retrieval.MetaFilename} {
		if v := h.Metadata[k]; v != "" {
			return v
		}
	}
	if h.DocumentID != "" {
		return h.DocumentID
	}
	return unnamedPolicyName
}

// policyFromHits builds a policy from the metadata of the best hit. When
// the document carries no policy terms, Source is "default" and the
// payout falls back to the table defaults.
func policyFromHits(identifier string, claimType models.ClaimType, hits []retrieval.Hit) *models.PolicyRecord {
	meta := hits[0].Metadata
	p := &models.PolicyRecord{
		PolicyNumber: meta[retrieval.MetaPolicyNumber],
		PolicyType:   models.ClaimType(meta[retrieval.MetaPolicyType]),
		CoverageType: meta[retrieval.MetaCoverageType],
		Status:       "active",
		Source:       models.PolicySourceSemantic,
		Context:      snippets(hits),
	}
	if p.PolicyNumber == "" {
		p.PolicyNumber = identifier
	}
	if !p.PolicyType.Valid() {
		p.PolicyType = claimType
	}

	p.SumInsured = metaFloat(meta, retrieval.MetaSumInsured)
	p.Deductible = metaFloat(meta, retrieval.MetaDeductible)
	p.CopayPercent = metaFloat(meta, retrieval.MetaCopayPercent)
	p.ZeroDepreciation, _ = strconv.ParseBool(meta[retrieval.MetaZeroDepreciation])
	p.Coverages = metaList(meta, retrieval.MetaCoverages)
	p.Exclusions = metaList(meta, retrieval.MetaExclusions)

	if p.SumInsured == 0 && p.Deductible == 0 && len(p.Coverages) == 0 {
		p.Source = models.PolicySourceDefault
	}
	return p
}

func metaFloat(meta map[string]string, key string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(meta[key]), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func metaList(meta map[string]string, key string) []string {
	var out []string
	for _, part := range strings.Split(meta[key], ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
