// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package resilience

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCircuitOpen is wrapped by the Transient error returned when a breaker rejects a call.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrAttemptTimeout is wrapped when a fallback attempt exceeds its deadline.
	ErrAttemptTimeout = errors.New("attempt timed out")

	// ErrActionPanicked is wrapped when an action panics instead of returning.
	ErrActionPanicked = errors.New("action panicked")

	// ErrNoOperations is returned by a fallback chain with nothing to run.
	ErrNoOperations = errors.New("no operations available")
)

// Category classifies an action failure and decides how every resilience
// layer reacts to it.
type Category int

const (
	// CategoryPermanent means neither retrying nor falling back on the same
	// operation will help. Unclassified errors land here.
	CategoryPermanent Category = iota
	// CategoryTransient means the operation may succeed if retried unchanged
	// (rate limit, timeout, connection reset).
	CategoryTransient
	// CategoryRecoverable means the input was at fault; retrying unchanged is
	// pointless but an alternative may succeed.
	CategoryRecoverable
	// CategoryCatastrophic requires the whole run to stop at once.
	CategoryCatastrophic
)

// String returns the lower-case category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryRecoverable:
		return "recoverable"
	case CategoryPermanent:
		return "permanent"
	case CategoryCatastrophic:
		return "catastrophic"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// ParseCategory maps a category name to its value.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "transient":
		return CategoryTransient, nil
	case "recoverable":
		return CategoryRecoverable, nil
	case "permanent", "":
		return CategoryPermanent, nil
	case "catastrophic":
		return CategoryCatastrophic, nil
	default:
		return CategoryPermanent, fmt.Errorf("unknown error category %q", s)
	}
}

// Error is a categorized action failure.
type Error struct {
	Category Category
	Message  string

	// Suggestion is an optional hint for a Recoverable error on how the input
	// could be corrected.
	Suggestion string

	// Detail carries optional structured context (status codes, resource names).
	Detail map[string]any

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s error: %s", e.Category, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail returns a copy of e with key set in its detail map.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Detail = make(map[string]any, len(e.Detail)+1)
	for k, v := range e.Detail {
		cp.Detail[k] = v
	}
	cp.Detail[key] = value
	return &cp
}

// NewTransient creates a Transient error.
func NewTransient(format string, args ...any) *Error {
	return &Error{Category: CategoryTransient, Message: fmt.Sprintf(format, args...)}
}

// NewRecoverable creates a Recoverable error with a correction hint.
func NewRecoverable(message, suggestion string) *Error {
	return &Error{Category: CategoryRecoverable, Message: message, Suggestion: suggestion}
}

// NewPermanent creates a Permanent error.
func NewPermanent(format string, args ...any) *Error {
	return &Error{Category: CategoryPermanent, Message: fmt.Sprintf(format, args...)}
}

// NewCatastrophic creates a Catastrophic error.
func NewCatastrophic(format string, args ...any) *Error {
	return &Error{Category: CategoryCatastrophic, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a category to err. A nil err yields nil.
func Wrap(category Category, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Category: category, Err: err}
}

// Classify returns the category of err. The outermost *Error in the chain
// wins; anything else is Permanent.
func Classify(err error) Category {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category
	}
	return CategoryPermanent
}

// IsTransient reports whether err classifies as Transient.
func IsTransient(err error) bool { return err != nil && Classify(err) == CategoryTransient }

// IsCatastrophic reports whether err classifies as Catastrophic.
func IsCatastrophic(err error) bool { return err != nil && Classify(err) == CategoryCatastrophic }

func circuitOpenError(name string) error {
	e := &Error{
		Category: CategoryTransient,
		Message:  fmt.Sprintf("circuit %s rejected the call", name),
		Err:      ErrCircuitOpen,
	}
	return e.WithDetail("circuit", name)
}
