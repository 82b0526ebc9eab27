package httpproxy

import "fmt"

// InvalidPatternError is returned when a rule's match specification cannot
// be compiled into a valid regular expression. Rules failing compilation are
// rejected before activation and never reach the registry.
type InvalidPatternError struct {
	// Spec is the match specification that failed to compile.
	Spec string

	// Err is the underlying regexp compile error.
	Err error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid match pattern %q: %v", e.Spec, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}

// MalformedRequestError is returned when an inbound request carries no
// target URL and therefore cannot be dispatched.
type MalformedRequestError struct {
	Detail string
}

func (e *MalformedRequestError) Error() string {
	return fmt.Sprintf("malformed request: %s", e.Detail)
}
