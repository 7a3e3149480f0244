package errors

import (
	"fmt"
	"strings"
)

/*
Error aggregates underlying errors and free-form context messages into a
single error value. It is the base every taxonomy error in this package can
be wrapped into when more than one cause needs reporting.
*/
type Error struct {
	Errs []error
	Msgs []any
}

/*
NewError collects errors and string messages into an *Error. Values of any
other type, nil errors included, are ignored, and nil is returned when no
error was collected.
*/
func NewError(errs ...any) error {
	err := &Error{}

	for _, msg := range errs {
		switch v := msg.(type) {
		case error:
			err.Errs = append(err.Errs, v)
		case string:
			err.Msgs = append(err.Msgs, v)
		}
	}

	if len(err.Errs) == 0 {
		return nil
	}

	return err
}

func (err *Error) Error() string {
	builder := &strings.Builder{}

	for _, err := range err.Errs {
		builder.WriteString(err.Error())
		builder.WriteString("\n")
	}

	for _, msg := range err.Msgs {
		builder.WriteString(fmt.Sprintf("%v\n", msg))
	}

	return strings.TrimRight(builder.String(), "\n")
}

/*
Unwrap exposes the collected errors so errors.Is and errors.As see through
the aggregate.
*/
func (err *Error) Unwrap() []error {
	return err.Errs
}
