package tools

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/ShayCichocki/claimflow/pkg/models"
)

// DocumentResult is the payload of verify_documents.
type DocumentResult struct {
	Required  []string `json:"required"`
	Submitted []string `json:"submitted"`
	Missing   []string `json:"missing"`
	Complete  bool     `json:"complete"`
}

// NewDocumentsHandler returns the verify_documents handler.
func NewDocumentsHandler(deps *Dependencies) Handler {
	return func(_ context.Context, in *Input) (any, error) {
		claim, err := payloadAs[*ClaimData](in, models.ToolExtractClaimData)
		if err != nil {
			return nil, err
		}
		required := deps.tables().RequiredDocuments(claim.SubType, claim.Type)
		return CheckDocuments(required, claim.Documents), nil
	}
}

// CheckDocuments compares submitted document names with the required
// checklist. A required document counts as submitted when one of the
// first two significant words of its name appears in any submission.
func CheckDocuments(required, submitted []string) *DocumentResult {
	res := &DocumentResult{
		Required:  append([]string{}, required...),
		Submitted: append([]string{}, submitted...),
		Missing:   []string{},
	}
	joined := strings.ToLower(strings.Join(submitted, " "))
	for _, doc := range required {
		found := false
		for _, kw := range documentKeywords(doc) {
			if strings.Contains(joined, kw) {
				found = true
				break
			}
		}
		if !found {
			res.Missing = append(res.Missing, doc)
		}
	}
	res.Complete = len(res.Missing) == 0
	return res
}

func documentKeywords(name string) []string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	var out []string
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		out = append(out, w)
		if len(out) == 2 {
			break
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
