// Package docerr holds the classified errors shared by the resolver, the
// structure parser and their callers.
package docerr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is wrapped by loaders when an identifier has no document.
var ErrNotFound = errors.New("document not found")

// Error kinds reported by KindOf.
const (
	KindReferenceNotFound       = "reference_not_found"
	KindCircularReference       = "circular_reference"
	KindMaxDepthExceeded        = "max_depth_exceeded"
	KindMalformedConditional    = "malformed_conditional"
	KindUnterminatedConditional = "unterminated_conditional"
	KindMaxNestingExceeded      = "max_nesting_exceeded"
	KindMalformedTable          = "malformed_table"
	KindTimeout                 = "timeout"
	KindInternal                = "internal"
)

func formatChain(chain []string) string {
	return "[" + strings.Join(chain, " -> ") + "]"
}

// ReferenceNotFoundError reports a reference the loader could not satisfy.
type ReferenceNotFoundError struct {
	ID    string
	Chain []string // identifiers from the root to the referring block
	Err   error
}

func (e *ReferenceNotFoundError) Error() string {
	if len(e.Chain) > 0 {
		return fmt.Sprintf("reference %q not found (via %s)", e.ID, formatChain(e.Chain))
	}
	return fmt.Sprintf("reference %q not found", e.ID)
}

func (e *ReferenceNotFoundError) Unwrap() error { return e.Err }

// CircularReferenceError carries the identifier chain ending in the repeated
// identifier, e.g. [A B A].
type CircularReferenceError struct {
	Chain []string
}

func (e *CircularReferenceError) Error() string {
	return "circular reference " + formatChain(e.Chain)
}

// MaxDepthExceededError is returned before the loader is invoked for a
// reference that would exceed the inclusion depth limit.
type MaxDepthExceededError struct {
	ID    string
	Depth int
	Max   int
	Chain []string
}

func (e *MaxDepthExceededError) Error() string {
	return fmt.Sprintf("reference %q at depth %d exceeds max depth %d (via %s)", e.ID, e.Depth, e.Max, formatChain(e.Chain))
}

// MalformedConditionalError reports an else/elif/endif with no valid frame.
type MalformedConditionalError struct {
	Pos    int
	Reason string
}

func (e *MalformedConditionalError) Error() string {
	return fmt.Sprintf("malformed conditional at node %d: %s", e.Pos, e.Reason)
}

// UnterminatedConditionalError names the condition left open at end of input.
type UnterminatedConditionalError struct {
	Condition string
	Pos       int
}

func (e *UnterminatedConditionalError) Error() string {
	return fmt.Sprintf("unterminated conditional %q opened at node %d", e.Condition, e.Pos)
}

// MaxNestingExceededError is raised at the opener that would exceed the
// structural nesting limit.
type MaxNestingExceededError struct {
	Depth int
	Max   int
	Pos   int
}

func (e *MaxNestingExceededError) Error() string {
	return fmt.Sprintf("nesting depth %d exceeds max %d at node %d", e.Depth, e.Max, e.Pos)
}

// MalformedTableError reports table markup that cannot form rows and cells.
type MalformedTableError struct {
	Pos    int
	Reason string
}

func (e *MalformedTableError) Error() string {
	return fmt.Sprintf("malformed table at node %d: %s", e.Pos, e.Reason)
}

// TimeoutError reports cancellation between resolution or parsing steps.
type TimeoutError struct {
	Stage string // "resolve" or "parse"
	ID    string
	Err   error
}

func (e *TimeoutError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s timed out at %q: %v", e.Stage, e.ID, e.Err)
	}
	return fmt.Sprintf("%s timed out: %v", e.Stage, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// FragmentError attaches the content-block identifier to a structure error
// raised while parsing that block.
type FragmentError struct {
	ID  string
	Err error
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("content block %q: %v", e.ID, e.Err)
}

func (e *FragmentError) Unwrap() error { return e.Err }

// KindOf classifies err. Unclassified errors report KindInternal.
func KindOf(err error) string {
	var (
		notFound     *ReferenceNotFoundError
		circular     *CircularReferenceError
		depth        *MaxDepthExceededError
		malformed    *MalformedConditionalError
		unterminated *UnterminatedConditionalError
		nesting      *MaxNestingExceededError
		table        *MalformedTableError
		timeout      *TimeoutError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &timeout):
		return KindTimeout
	case errors.As(err, &circular):
		return KindCircularReference
	case errors.As(err, &depth):
		return KindMaxDepthExceeded
	case errors.As(err, &notFound):
		return KindReferenceNotFound
	case errors.As(err, &malformed):
		return KindMalformedConditional
	case errors.As(err, &unterminated):
		return KindUnterminatedConditional
	case errors.As(err, &nesting):
		return KindMaxNestingExceeded
	case errors.As(err, &table):
		return KindMalformedTable
	case errors.Is(err, ErrNotFound):
		return KindReferenceNotFound
	default:
		return KindInternal
	}
}

// IsStructural reports whether err came from structure parsing.
func IsStructural(err error) bool {
	switch KindOf(err) {
	case KindMalformedConditional, KindUnterminatedConditional, KindMaxNestingExceeded, KindMalformedTable:
		return true
	}
	return false
}
