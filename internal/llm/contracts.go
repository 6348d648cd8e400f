package llm

import (
	"context"
	"errors"
	"fmt"
)

// ColumnSpec is one field of the extraction schema handed to a provider:
// a stable key plus a natural-language description.
type ColumnSpec struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// Extractor is the capability every document-understanding provider must
// implement: given a retrievable document URL and an instruction prompt,
// produce the model's raw text reply.
type Extractor interface {
	Extract(ctx context.Context, documentURL, prompt, displayName string) (string, error)
	Name() string
}

// Sentinel errors for prompt building and response recovery.
var (
	ErrEmptySchema    = errors.New("schema has no columns")
	ErrNoJSONFound    = errors.New("no JSON object found in response")
	ErrUnclosedJSON   = errors.New("JSON object is not closed")
	ErrNotPlainObject = errors.New("response JSON is not a plain object")
	ErrPollTimeout    = errors.New("document processing did not finish in time")
)

// ProviderError is a non-success reply from a provider. Status is the HTTP
// status when the request reached the provider, 0 for transport failures.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.Status, e.Message)
	}
	return "provider error: " + e.Message
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not a
// ProviderError (or wraps none).
func StatusOf(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Status
	}
	return 0
}
