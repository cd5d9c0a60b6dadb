// Package retrieval stores policy wording in chunks and serves keyword
// and embedding ranked search over it.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/ShayCichocki/claimflow/pkg/models"
)

// ErrRetrievalUnavailable reports that the semantic store cannot be queried.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// Metadata keys understood by the policy resolver.
const (
	MetaPolicyType       = "policy_type"
	MetaPolicyName       = "policy_name"
	MetaPolicyNumber     = "policy_number"
	MetaFilename         = "filename"
	MetaCoverageType     = "coverage_type"
	MetaSumInsured       = "sum_insured"
	MetaDeductible       = "deductible"
	MetaCopayPercent     = "copay_percent"
	MetaZeroDepreciation = "zero_depreciation"
	MetaCoverages        = "coverages"
	MetaExclusions       = "exclusions"
)

// Filter narrows a search to one policy line. An empty ClaimType matches all.
type Filter struct {
	ClaimType models.ClaimType
}

// Hit is one ranked chunk.
type Hit struct {
	ChunkID    string
	DocumentID string
	Text       string
	Metadata   map[string]string
	// Relevance is normalized to [0,1]; higher is better.
	Relevance float64
}

// Searcher ranks stored policy chunks against a query.
type Searcher interface {
	Search(ctx context.Context, query string, filter Filter, topK int) ([]Hit, error)
}

// Document is a policy document to ingest.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Unavailable is a Searcher whose backend is down.
type Unavailable struct {
	Cause error
}

// Search always fails with ErrRetrievalUnavailable.
func (u Unavailable) Search(context.Context, string, Filter, int) ([]Hit, error) {
	if u.Cause != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, u.Cause)
	}
	return nil, ErrRetrievalUnavailable
}

// Static is an in-memory Searcher returning fixed hits, filtered by type.
type Static struct {
	Hits []Hit
}

// Search returns up to topK hits whose policy_type matches the filter.
func (s Static) Search(_ context.Context, _ string, filter Filter, topK int) ([]Hit, error) {
	var out []Hit
	for _, h := range s.Hits {
		if filter.ClaimType != "" && h.Metadata[MetaPolicyType] != string(filter.ClaimType) {
			continue
		}
		out = append(out, h)
		if topK > 0 && len(out) == topK {
			break
		}
	}
	return out, nil
}

var (
	_ Searcher = Unavailable{}
	_ Searcher = Static{}
	_ Searcher = (*Store)(nil)
)
