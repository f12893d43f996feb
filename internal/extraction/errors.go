package extraction

import (
	"errors"
	"fmt"
)

// ErrExtractionFailed matches every *ExtractionFailedError.
var ErrExtractionFailed = errors.New("extraction failed")

// ExtractionFailedError reports that a document could not be turned into a profile.
type ExtractionFailedError struct {
	SourceID string
	Reason   string
	Err      error
}

func (e *ExtractionFailedError) Error() string {
	msg := fmt.Sprintf("extract %s: %s", e.SourceID, e.Reason)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ExtractionFailedError) Is(target error) bool {
	return target == ErrExtractionFailed
}

func (e *ExtractionFailedError) Unwrap() error {
	return e.Err
}
