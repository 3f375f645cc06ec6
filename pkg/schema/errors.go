package schema

import (
	"strings"

	"github.com/pkg/errors"
)

// Schema-time errors. Every error returned by this package wraps one of them
// in an *Error.
var (
	ErrDuplicateFieldName      = errors.New("duplicate field name")
	ErrDuplicateMessageName    = errors.New("duplicate message name")
	ErrUnresolvedTypeReference = errors.New("unresolved type reference")
	ErrCyclicMessageReference  = errors.New("cyclic message reference")

	ErrInvalidFieldIndex  = errors.New("invalid field index")
	ErrDuplicateEnumValue = errors.New("duplicate enum value")
	ErrInvalidEnum        = errors.New("invalid enum")
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidType        = errors.New("invalid type")
	ErrEmptyMessage       = errors.New("message has no fields")
	ErrInvalidTemplateID  = errors.New("invalid template id")
	ErrInvalidVersion     = errors.New("invalid version")
)

// Error carries the declaration an error was found in.
type Error struct {
	Message string
	Field   string
	// Path lists the messages of a reference cycle, first name repeated last.
	Path   []string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("schema: ")
	if e.Message != "" {
		b.WriteString(e.Message)
		if e.Field != "" {
			b.WriteByte('.')
			b.WriteString(e.Field)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	if len(e.Path) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Path, " -> "))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(err error, message, field, detail string) *Error {
	return &Error{Message: message, Field: field, Detail: detail, Err: err}
}
