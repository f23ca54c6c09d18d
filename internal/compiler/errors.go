// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"errors"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
)

// ErrTransform is the sentinel error wrapped by TransformError.
var ErrTransform = errors.New("transform failed")

// TransformError reports a source file a compile, bundle or style step
// rejected. Line is 1-based and Column 0-based; both are 0 when unknown.
type TransformError struct {
	Stage   string
	Path    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface for TransformError.
func (e *TransformError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "<unknown>"
	}
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", loc, e.Line, e.Column)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, loc, e.Message)
}

// Unwrap returns ErrTransform for errors.Is() compatibility.
func (e *TransformError) Unwrap() error { return ErrTransform }

// FromMessages converts esbuild error messages into TransformErrors joined
// into one error. It returns nil for no messages.
func FromMessages(stage string, messages []api.Message) error {
	if len(messages) == 0 {
		return nil
	}
	errs := make([]error, 0, len(messages))
	for _, msg := range messages {
		te := &TransformError{Stage: stage, Message: msg.Text}
		if msg.Location != nil {
			te.Path = msg.Location.File
			te.Line = msg.Location.Line
			te.Column = msg.Location.Column
		}
		errs = append(errs, te)
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}
