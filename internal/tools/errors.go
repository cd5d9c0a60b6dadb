package tools

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/claimflow/internal/extract"
	"github.com/ShayCichocki/claimflow/internal/retrieval"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

var (
	// ErrPolicyNotFound is returned when no source yields a policy.
	ErrPolicyNotFound = errors.New("policy not found")
	// ErrToolExecution marks a tool that failed or could not run.
	ErrToolExecution = errors.New("tool execution failed")
	// ErrMissingInput is returned when a prerequisite payload is absent.
	ErrMissingInput = errors.New("missing input")
)

// Kind classifies err for the audit trail. Policy lookups that failed
// because the semantic store was down are reported as policy not found;
// the reason text still carries the retrieval error.
func Kind(err error) models.ErrorKind {
	switch {
	case err == nil:
		return models.ErrorKindNone
	case errors.Is(err, extract.ErrIncompleteIntake):
		return models.ErrorKindIncompleteIntake
	case errors.Is(err, ErrPolicyNotFound):
		return models.ErrorKindPolicyNotFound
	case errors.Is(err, retrieval.ErrRetrievalUnavailable):
		return models.ErrorKindRetrievalUnavailable
	default:
		return models.ErrorKindToolExecution
	}
}

// payloadAs fetches a prerequisite payload of type T.
func payloadAs[T any](in *Input, tool models.ToolName) (T, error) {
	var zero T
	p, ok := in.Payload(tool)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrMissingInput, tool)
	}
	v, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s has payload %T", ErrMissingInput, tool, p)
	}
	return v, nil
}
