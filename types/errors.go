/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned for negative arguments, spans wider than the
	// cache can hold, or rows beyond a final row count.
	ErrOutOfRange = errors.New("row index out of range")
	// ErrUnknownCount is returned when the row count is not final yet
	ErrUnknownCount = errors.New("row count not yet known")
	// ErrCancelled is returned when the caller cancelled an operation
	ErrCancelled = errors.New("operation cancelled")
	// ErrColumnNotIncluded is returned when reading a projected away column
	ErrColumnNotIncluded = errors.New("column not included")
	// ErrUnknownColumn is returned for a column that is not in the schema
	ErrUnknownColumn = errors.New("unknown column")
	// ErrBuilderFrozen is returned when adding to a built transformation pipeline
	ErrBuilderFrozen = errors.New("transformation builder already built")
	// ErrClosed is returned when using a closed cache
	ErrClosed = errors.New("cache closed")
)

// CancelledError carries the context error behind a cancellation
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string {
	if e.Cause == nil {
		return ErrCancelled.Error()
	}
	return fmt.Sprintf("%s: %v", ErrCancelled, e.Cause)
}

func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}

func (e *CancelledError) Unwrap() error {
	return e.Cause
}

// SourceError wraps a failure raised by a row source
type SourceError struct {
	Op  string
	Row int64
	Err error
}

func (e *SourceError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("source %s failed at row %d: %v", e.Op, e.Row, e.Err)
	}
	return fmt.Sprintf("source %s failed: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// OutOfRangef formats an ErrOutOfRange with details
func OutOfRangef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrOutOfRange, fmt.Sprintf(format, args...))
}

// IsRecoverable reports whether the caller may retry with the same cache
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrUnknownCount) ||
		errors.Is(err, ErrCancelled)
}
