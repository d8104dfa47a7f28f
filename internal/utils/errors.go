package utils

import (
	"fmt"
	"strings"
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// ValidationError reports an input table that cannot be analysed: required
// columns missing or a timestamp column that is not a proper time type. It
// aborts the pipeline before any statistics are computed.
type ValidationError struct {
	Table   string
	Columns []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Columns) > 0 {
		return fmt.Sprintf("%s table invalid: missing column(s) %s", e.Table, strings.Join(e.Columns, ", "))
	}
	return fmt.Sprintf("%s table invalid: %s", e.Table, e.Reason)
}

// NewMissingColumnsError flags required columns absent from an input table.
func NewMissingColumnsError(table string, columns ...string) error {
	return &ValidationError{Table: table, Columns: columns}
}

// NewBadTimestampError flags a timestamp column with unusable values.
func NewBadTimestampError(table, reason string) error {
	return &ValidationError{Table: table, Reason: reason}
}
