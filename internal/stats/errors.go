package stats

import (
	"errors"
	"fmt"
)

// ErrMalformedBatch matches any *MalformedBatchError via errors.Is.
var ErrMalformedBatch = errors.New("malformed batch")

// MalformedBatchError reports a batch that violates the aggregation contract.
// Row is -1 when the problem is not tied to a single row.
type MalformedBatchError struct {
	Row    int
	Column string
	Reason string
}

func (e *MalformedBatchError) Error() string {
	switch {
	case e.Row < 0 && e.Column == "":
		return fmt.Sprintf("malformed batch: %s", e.Reason)
	case e.Row < 0:
		return fmt.Sprintf("malformed batch: column %q: %s", e.Column, e.Reason)
	case e.Column == "":
		return fmt.Sprintf("malformed batch: row %d: %s", e.Row, e.Reason)
	default:
		return fmt.Sprintf("malformed batch: row %d, column %q: %s", e.Row, e.Column, e.Reason)
	}
}

// Is reports whether target is ErrMalformedBatch.
func (e *MalformedBatchError) Is(target error) bool {
	return target == ErrMalformedBatch
}

// ConfidenceColumn returns the flattened column name for a category's confidence.
func ConfidenceColumn(category string) string {
	return category + "_confidence"
}

// IssuesColumn returns the flattened column name for a category's issue count.
func IssuesColumn(category string) string {
	return category + "_issues"
}
