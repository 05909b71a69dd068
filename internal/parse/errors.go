package parse

import (
	"errors"
	"fmt"
)

// Reason names why a candidate was rejected. The values double as metric
// label values.
type Reason string

const (
	ReasonTooFewSegments Reason = "too_few_segments"
	ReasonEmptyTitle     Reason = "empty_title"
	ReasonSentinel       Reason = "sentinel"
	ReasonNoDate         Reason = "no_date"
	ReasonBadDate        Reason = "bad_date"
	ReasonUnknownMonth   Reason = "unknown_month"
	ReasonBadTime        Reason = "bad_time"
	ReasonNoTime         Reason = "no_time"
)

// ErrRejected matches every *RejectError via errors.Is.
var ErrRejected = errors.New("parse: candidate rejected")

// RejectError reports a candidate that does not fit the event grammar.
type RejectError struct {
	Reason Reason
	Raw    string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("parse: candidate rejected (%s): %q", e.Reason, e.Raw)
}

func (e *RejectError) Is(target error) bool {
	return target == ErrRejected
}

func reject(raw string, reason Reason) error {
	return &RejectError{Reason: reason, Raw: raw}
}

// ReasonOf extracts the rejection reason from err, or "" if err is not a
// *RejectError.
func ReasonOf(err error) Reason {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
