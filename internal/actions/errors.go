package actions

import (
	"errors"
	"fmt"
)

// ErrEmptySelection is returned by actions that need selected text when the
// host reports the selection is blank. Nothing has been mutated.
var ErrEmptySelection = errors.New("no text selected")

// ValidationError reports caller input rejected before any host call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
