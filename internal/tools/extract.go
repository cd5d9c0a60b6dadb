package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/claimflow/internal/extract"
	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

// ClaimData is the normalized view of the claim used by later tools.
type ClaimData struct {
	ClaimID       string              `json:"claim_id"`
	Type          models.ClaimType    `json:"claim_type"`
	SubType       models.ClaimSubType `json:"sub_type"`
	Description   string              `json:"description"`
	Identifier    string              `json:"identifier"`
	CustomerID    string              `json:"customer_id,omitempty"`
	IncidentDate  string              `json:"incident_date"`
	Amount        float64             `json:"amount"`
	AssetAgeYears float64             `json:"asset_age_years,omitempty"`
	Documents     []string            `json:"documents,omitempty"`
	Fields        map[string]string   `json:"fields,omitempty"`
	// Missing lists intake fields that were still blank when intake ended.
	Missing []string `json:"missing,omitempty"`
}

// SearchText returns the description and free-form fields as one
// lowercase string for phrase matching.
func (c *ClaimData) SearchText() string {
	parts := []string{c.Description}
	for _, k := range sortedKeys(c.Fields) {
		parts = append(parts, c.Fields[k])
	}
	return strings.ToLower(strings.Join(parts, "\n"))
}

// NewExtractHandler returns the extract_claim_data handler. Blank intake
// fields are listed in ClaimData.Missing and left for later tools to
// default. Only a claim without a valid type fails, with
// extract.ErrIncompleteIntake.
func NewExtractHandler(deps *Dependencies) Handler {
	return func(_ context.Context, in *Input) (any, error) {
		t := deps.tables()
		rec := in.Claim
		draft := rec.Draft()

		if !draft.Type.Valid() {
			return nil, fmt.Errorf("%w: claim type %q", extract.ErrIncompleteIntake, draft.Type)
		}
		missing := extract.New(rules.Static{T: t}).MissingFields(&draft)

		sub := draft.SubType
		if sub == "" || sub.Category() != draft.Type {
			sub = t.ClaimTypes[draft.Type].DefaultSubType
		}

		return &ClaimData{
			ClaimID:       rec.ID(),
			Type:          draft.Type,
			SubType:       sub,
			Description:   draft.Description,
			Identifier:    draft.Identifier,
			CustomerID:    draft.CustomerID,
			IncidentDate:  draft.IncidentDate,
			Amount:        draft.Amount,
			AssetAgeYears: draft.AssetAgeYears,
			Documents:     draft.Documents,
			Fields:        draft.Fields,
			Missing:       missing,
		}, nil
	}
}
