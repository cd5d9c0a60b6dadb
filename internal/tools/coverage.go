package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

// CoverageResult is the payload of check_coverage.
type CoverageResult struct {
	Covered      bool                `json:"covered"`
	PolicyNumber string              `json:"policy_number"`
	PolicyType   models.ClaimType    `json:"policy_type"`
	CoverageType string              `json:"coverage_type"`
	SubType      models.ClaimSubType `json:"sub_type"`
	Section      string              `json:"section"`
	Limit        float64             `json:"coverage_limit"`
	Reason       string              `json:"reason,omitempty"`
}

// NewCoverageHandler returns the check_coverage handler.
func NewCoverageHandler(deps *Dependencies) Handler {
	return func(_ context.Context, in *Input) (any, error) {
		policy, err := payloadAs[*models.PolicyRecord](in, models.ToolRetrievePolicy)
		if err != nil {
			return nil, err
		}
		t := deps.tables()
		ct := in.Claim.Type()
		return EvaluateCoverage(t, policy, ct, claimSubType(t, ct, in.Claim.SubType())), nil
	}
}

func claimSubType(t *rules.Tables, ct models.ClaimType, sub models.ClaimSubType) models.ClaimSubType {
	if sub != "" && sub.Category() == ct {
		return sub
	}
	return t.ClaimTypes[ct].DefaultSubType
}

// EvaluateCoverage decides whether policy covers a claim of type ct and
// sub-type sub. An explicit coverage list on the policy takes precedence
// over the plan table for its coverage type; a plan the tables do not
// know covers every peril of its line.
func EvaluateCoverage(t *rules.Tables, policy *models.PolicyRecord, ct models.ClaimType, sub models.ClaimSubType) *CoverageResult {
	rule := t.Coverage[ct]
	res := &CoverageResult{
		PolicyNumber: policy.PolicyNumber,
		PolicyType:   policy.PolicyType,
		CoverageType: policy.CoverageType,
		SubType:      sub,
		Section:      rule.DefaultSection,
		Limit:        coverageLimit(rule, policy),
	}
	if s, ok := rule.Sections[sub]; ok {
		res.Section = s
	}

	switch {
	case policy.PolicyType != ct:
		res.Reason = fmt.Sprintf("%s policy does not cover %s claims", policy.PolicyType, ct)
	case policy.Status != "" && policy.Status != "active":
		res.Reason = fmt.Sprintf("policy status is %s", policy.Status)
	case len(policy.Coverages) > 0:
		res.Covered = containsFold(policy.Coverages, string(sub)) || containsFold(policy.Coverages, string(ct))
		if !res.Covered {
			res.Reason = fmt.Sprintf("%s is not listed in the policy coverages", sub)
		}
	default:
		plan, known := rule.Plans[policy.CoverageType]
		res.Covered = !known || containsSubType(plan, sub)
		if !res.Covered {
			res.Reason = fmt.Sprintf("%s plan does not cover %s", policy.CoverageType, sub)
		}
	}
	return res
}

func coverageLimit(rule rules.CoverageRule, p *models.PolicyRecord) float64 {
	if rule.LimitField == "idv" && p.IDV > 0 {
		return p.IDV
	}
	return p.SumInsured
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}

func containsSubType(list []models.ClaimSubType, v models.ClaimSubType) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ExclusionCheck is the outcome of one exclusion.
type ExclusionCheck struct {
	Exclusion string `json:"exclusion"`
	Applies   bool   `json:"applies"`
	Matched   string `json:"matched,omitempty"`
	// Origin is "policy" or "common".
	Origin string `json:"origin"`
}

// ExclusionResult is the payload of check_exclusions.
type ExclusionResult struct {
	Excluded   bool             `json:"excluded"`
	Matched    string           `json:"matched_exclusion,omitempty"`
	Exclusions []ExclusionCheck `json:"exclusions"`
}

// NewExclusionsHandler returns the check_exclusions handler.
func NewExclusionsHandler(deps *Dependencies) Handler {
	return func(_ context.Context, in *Input) (any, error) {
		claim, err := payloadAs[*ClaimData](in, models.ToolExtractClaimData)
		if err != nil {
			return nil, err
		}
		policy, err := payloadAs[*models.PolicyRecord](in, models.ToolRetrievePolicy)
		if err != nil {
			return nil, err
		}
		return EvaluateExclusions(deps.tables(), policy, claim.Type, claim.SearchText()), nil
	}
}

// EvaluateExclusions matches text against the policy's own exclusions and
// the common exclusions for claim type ct. A policy exclusion that names a
// common one uses that entry's phrases; any other is matched literally.
func EvaluateExclusions(t *rules.Tables, policy *models.PolicyRecord, ct models.ClaimType, text string) *ExclusionResult {
	byName := make(map[string]rules.Exclusion, len(t.Exclusions))
	for _, e := range t.Exclusions {
		byName[strings.ToLower(e.Name)] = e
	}

	res := &ExclusionResult{Exclusions: []ExclusionCheck{}}
	seen := make(map[string]bool)
	check := func(name string, patterns []string, origin string) {
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		c := ExclusionCheck{Exclusion: name, Origin: origin}
		if m := matchPhrase(text, patterns); m != "" {
			c.Applies, c.Matched = true, m
			if !res.Excluded {
				res.Excluded, res.Matched = true, name
			}
		}
		res.Exclusions = append(res.Exclusions, c)
	}

	for _, name := range policy.Exclusions {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if e, ok := byName[strings.ToLower(name)]; ok {
			check(e.Name, e.Patterns, "policy")
			continue
		}
		check(name, []string{name}, "policy")
	}
	for _, e := range t.Exclusions {
		if e.AppliesTo(ct) {
			check(e.Name, e.Patterns, "common")
		}
	}
	return res
}

// matchPhrase returns the first pattern found in text as a whole phrase.
func matchPhrase(text string, patterns []string) string {
	lower := strings.ToLower(text)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || !strings.Contains(lower, p) {
			continue
		}
		re, err := regexp.Compile(`(^|\W)` + regexp.QuoteMeta(p) + `($|\W)`)
		if err != nil {
			continue
		}
		if re.MatchString(lower) {
			return p
		}
	}
	return ""
}
