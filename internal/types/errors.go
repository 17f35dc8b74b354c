package types

import (
	"errors"
	"strconv"
	"strings"
)

// TaskError is a domain error tied to a source location.
type TaskError struct {
	Path       string
	LineNumber int // 1-based, 0 when not applicable
	Message    string
	Snippet    string
	Cause      error
}

// NewTaskError creates a TaskError.
func NewTaskError(message, path string, lineNumber int, snippet string) *TaskError {
	return &TaskError{
		Path:       path,
		LineNumber: lineNumber,
		Message:    message,
		Snippet:    snippet,
	}
}

// Error renders "in <path> at line <n>: <message>\n\n<snippet>", omitting absent parts.
func (e *TaskError) Error() string {
	var sb strings.Builder
	if e.Path != "" {
		sb.WriteString("in ")
		sb.WriteString(e.Path)
	}
	if e.LineNumber > 0 {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString("at line ")
		sb.WriteString(strconv.Itoa(e.LineNumber))
	}
	if sb.Len() > 0 {
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Snippet != "" {
		sb.WriteString("\n\n")
		sb.WriteString(e.Snippet)
	}
	return sb.String()
}

func (e *TaskError) Unwrap() error { return e.Cause }

// LineOf returns the line number carried by err, or 0.
func LineOf(err error) int {
	var te *TaskError
	if errors.As(err, &te) {
		return te.LineNumber
	}
	return 0
}

// =============================================================================
// ERROR POLICY
// =============================================================================

// ErrorPolicy decides what happens to a reported error.
// Report returns nil when processing may continue, or the error to return immediately.
type ErrorPolicy interface {
	Report(err error) error
}

type collectPolicy struct {
	sink *[]error
}

func (p collectPolicy) Report(err error) error {
	*p.sink = append(*p.sink, err)
	return nil
}

type raisePolicy struct{}

func (raisePolicy) Report(err error) error { return err }

// Collect appends every error to sink and lets processing continue.
func Collect(sink *[]error) ErrorPolicy {
	return collectPolicy{sink: sink}
}

// RaiseImmediately stops at the first error.
func RaiseImmediately() ErrorPolicy {
	return raisePolicy{}
}
