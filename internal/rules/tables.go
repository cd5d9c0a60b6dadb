// Package rules holds the static lookup tables that drive claim evaluation:
// claim-type synonyms, intake requirements, coverage sections, exclusions,
// depreciation bands, document checklists and decision thresholds.
//
// Tables are plain data. Built-in defaults come from Default; a YAML file
// loaded with Load overrides any subset of them.
package rules

import (
	"fmt"
	"sort"

	"github.com/ShayCichocki/claimflow/pkg/models"
)

// Tables is the complete set of rule tables.
type Tables struct {
	ClaimTypes   map[models.ClaimType]TypeRule     `yaml:"claim_types"`
	Intake       IntakeRules                       `yaml:"intake"`
	Coverage     map[models.ClaimType]CoverageRule `yaml:"coverage"`
	Exclusions   []Exclusion                       `yaml:"exclusions"`
	Depreciation DepreciationRules                 `yaml:"depreciation"`
	Documents    map[string][]string               `yaml:"documents"`
	Decision     DecisionRules                     `yaml:"decision"`
	Defaults     PolicyDefaults                    `yaml:"defaults"`
}

// TypeRule maps free text onto a claim type and sub-type.
type TypeRule struct {
	Keywords []string `yaml:"keywords"`
	// SubTypes are checked in order; the first rule with a matching keyword wins.
	SubTypes       []SubTypeRule       `yaml:"sub_types"`
	DefaultSubType models.ClaimSubType `yaml:"default_sub_type"`
}

// SubTypeRule lists the keywords that select a sub-type.
type SubTypeRule struct {
	SubType  models.ClaimSubType `yaml:"sub_type"`
	Keywords []string            `yaml:"keywords"`
}

// IntakeRules declares which fields must be collected before processing.
type IntakeRules struct {
	Common    []string                         `yaml:"common"`
	ByType    map[models.ClaimType][]string    `yaml:"by_type"`
	BySubType map[models.ClaimSubType][]string `yaml:"by_sub_type"`
	Prompts   map[string]string                `yaml:"prompts"`
	Greetings []string                         `yaml:"greetings"`
}

// CoverageRule describes what a policy line covers.
type CoverageRule struct {
	// Plans maps a policy coverage type to the sub-types it covers.
	Plans map[string][]models.ClaimSubType `yaml:"plans"`
	// Sections names the policy section each sub-type falls under.
	Sections       map[models.ClaimSubType]string `yaml:"sections"`
	DefaultSection string                         `yaml:"default_section"`
	// LimitField is "idv" or "sum_insured".
	LimitField string `yaml:"limit_field"`
}

// Exclusion is a named policy exclusion and the phrases that trigger it.
type Exclusion struct {
	Name     string             `yaml:"name"`
	Patterns []string           `yaml:"patterns"`
	Types    []models.ClaimType `yaml:"types"`
}

// AppliesTo reports whether the exclusion is relevant for claim type t.
func (e Exclusion) AppliesTo(t models.ClaimType) bool {
	if len(e.Types) == 0 {
		return true
	}
	for _, et := range e.Types {
		if et == t {
			return true
		}
	}
	return false
}

// AgeBand is a depreciation rate for assets up to MaxYears old.
// MaxYears <= 0 marks the open-ended final band.
type AgeBand struct {
	MaxYears float64 `yaml:"max_years"`
	Rate     float64 `yaml:"rate"`
}

// DepreciationRules holds depreciation rates in percent.
type DepreciationRules struct {
	Motor  []AgeBand `yaml:"motor"`
	Home   float64   `yaml:"home"`
	Health float64   `yaml:"health"`
}

// DecisionRules holds decision thresholds.
type DecisionRules struct {
	AutoApproveLimit float64 `yaml:"auto_approve_limit"`
	MaxPriorClaims   int     `yaml:"max_prior_claims"`
}

// PolicyDefaults fills gaps in policies that do not specify a value.
type PolicyDefaults struct {
	Deductible         float64 `yaml:"deductible"`
	HealthCopayPercent float64 `yaml:"health_copay_percent"`
	AssetAgeYears      float64 `yaml:"asset_age_years"`
}

// DepreciationRate returns the depreciation percentage for a claim type
// and asset age.
func (t *Tables) DepreciationRate(ct models.ClaimType, ageYears float64) float64 {
	switch ct {
	case models.ClaimTypeMotor:
		bands := append([]AgeBand(nil), t.Depreciation.Motor...)
		sort.SliceStable(bands, func(i, j int) bool {
			return bandLimit(bands[i]) < bandLimit(bands[j])
		})
		for _, b := range bands {
			if b.MaxYears <= 0 || ageYears <= b.MaxYears {
				return b.Rate
			}
		}
		if len(bands) > 0 {
			return bands[len(bands)-1].Rate
		}
		return 0
	case models.ClaimTypeHome:
		return t.Depreciation.Home
	case models.ClaimTypeHealth:
		return t.Depreciation.Health
	default:
		return 0
	}
}

func bandLimit(b AgeBand) float64 {
	if b.MaxYears <= 0 {
		return 1 << 30
	}
	return b.MaxYears
}

// RequiredDocuments returns the checklist for a sub-type, falling back to
// the claim type and then to the "default" entry.
func (t *Tables) RequiredDocuments(sub models.ClaimSubType, ct models.ClaimType) []string {
	for _, key := range []string{string(sub), string(ct), "default"} {
		if key == "" {
			continue
		}
		if docs, ok := t.Documents[key]; ok && len(docs) > 0 {
			return append([]string(nil), docs...)
		}
	}
	return nil
}

// RequiredFields returns the intake fields needed for a claim, in order
// and without duplicates.
func (t *Tables) RequiredFields(ct models.ClaimType, sub models.ClaimSubType) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(fields []string) {
		for _, f := range fields {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	add(t.Intake.Common)
	if ct != "" {
		add(t.Intake.ByType[ct])
	}
	if sub != "" {
		add(t.Intake.BySubType[sub])
	}
	return out
}

// Prompt returns the question used to ask for a field. A type-specific
// prompt ("motor.identifier") takes precedence over the generic one.
func (t *Tables) Prompt(ct models.ClaimType, field string) string {
	if ct != "" {
		if p, ok := t.Intake.Prompts[string(ct)+"."+field]; ok {
			return p
		}
	}
	if p, ok := t.Intake.Prompts[field]; ok {
		return p
	}
	return fmt.Sprintf("Could you provide the %s?", field)
}

// Validate checks that the tables are internally consistent.
func (t *Tables) Validate() error {
	for ct, rule := range t.ClaimTypes {
		if !ct.Valid() {
			return fmt.Errorf("claim_types: unknown claim type %q", ct)
		}
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("claim_types.%s: no keywords", ct)
		}
		if rule.DefaultSubType != "" && rule.DefaultSubType.Category() != ct {
			return fmt.Errorf("claim_types.%s: default sub-type %q belongs to %q", ct, rule.DefaultSubType, rule.DefaultSubType.Category())
		}
	}
	for _, b := range t.Depreciation.Motor {
		if b.Rate < 0 || b.Rate > 100 {
			return fmt.Errorf("depreciation.motor: rate %.1f out of range", b.Rate)
		}
	}
	if t.Depreciation.Home < 0 || t.Depreciation.Home > 100 {
		return fmt.Errorf("depreciation.home: rate %.1f out of range", t.Depreciation.Home)
	}
	for _, e := range t.Exclusions {
		if e.Name == "" {
			return fmt.Errorf("exclusions: entry without a name")
		}
	}
	if t.Decision.AutoApproveLimit < 0 {
		return fmt.Errorf("decision.auto_approve_limit must be non-negative")
	}
	if t.Defaults.HealthCopayPercent < 0 || t.Defaults.HealthCopayPercent > 100 {
		return fmt.Errorf("defaults.health_copay_percent out of range")
	}
	return nil
}
