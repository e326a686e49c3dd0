package persona

import (
	"errors"
	"fmt"
)

// Error classes surfaced by the pipeline. Only ErrExtraction and ErrConfiguration
// escape a resolution run; the others are recovered where they occur.
var (
	ErrExtraction    = errors.New("extraction failed")
	ErrConfiguration = errors.New("configuration error")
	ErrDiscovery     = errors.New("discovery query failed")
	ErrAcquisition   = errors.New("acquisition failed")
	ErrScoring       = errors.New("scoring failed")
	ErrMissingName   = errors.New("record has no name")
	ErrNoDocument    = errors.New("no document retrieved")
)

// ExtractionError reports an enrichment transform whose output could not be parsed.
type ExtractionError struct {
	Err error
	Raw string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%v: %v", ErrExtraction, e.Err)
}

// Unwrap exposes both the class sentinel and the underlying cause.
func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}
