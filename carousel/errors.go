package carousel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput is wrapped by every ValidationError.
var ErrInvalidInput = errors.New("carousel: invalid input")

// FieldError locates one problem in the input document.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (f FieldError) String() string { return f.Path + ": " + f.Message }

// ValidationError reports why the input matched no supported format.
// Format is the attempt whose errors are reported.
type ValidationError struct {
	Format Format
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	if e.Format == "" {
		return "carousel: invalid input: " + strings.Join(parts, "; ")
	}
	return fmt.Sprintf("carousel: invalid %s carousel: %s", e.Format, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// MarshalJSON renders the error as {error, format, fields}.
func (e *ValidationError) MarshalJSON() ([]byte, error) {
	fields := e.Fields
	if fields == nil {
		fields = []FieldError{}
	}
	return json.Marshal(struct {
		Error  string       `json:"error"`
		Format Format       `json:"format,omitempty"`
		Fields []FieldError `json:"fields"`
	}{e.Error(), e.Format, fields})
}

type problems []FieldError

func (p *problems) add(path, format string, args ...any) {
	*p = append(*p, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}
