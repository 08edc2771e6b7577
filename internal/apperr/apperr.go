// Package apperr defines the error kinds shared by the catalog, CMS and
// reconciliation layers. Edge handlers map a Kind to an HTTP status; nothing
// else inspects upstream error shapes.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindUpstream
	KindApplication
	KindReconciliation
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindApplication:
		return "application"
	case KindReconciliation:
		return "reconciliation"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Details carries an opaque diagnostic payload
// (for example the GraphQL error list of an application error).
type Error struct {
	Kind    Kind
	Op      string
	Msg     string
	Err     error
	Details any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) ErrorKind() Kind {
	return e.Kind
}

// Classified is implemented by errors that carry their own kind, so wrappers
// in other packages can reclassify what they wrap.
type Classified interface {
	error
	ErrorKind() Kind
}

func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

func NotFound(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

func Upstream(op string, err error) error {
	return &Error{Kind: KindUpstream, Op: op, Msg: "upstream unavailable", Err: err}
}

func Application(op string, err error, details any) error {
	return &Error{Kind: KindApplication, Op: op, Msg: "upstream rejected the operation", Err: err, Details: details}
}

func Reconciliation(op, msg string) error {
	return &Error{Kind: KindReconciliation, Op: op, Msg: msg}
}

// KindOf reports the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var c Classified
	if errors.As(err, &c) {
		return c.ErrorKind()
	}
	return KindUnknown
}

// DetailsOf returns the first diagnostic payload found in err's chain.
func DetailsOf(err error) any {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return nil
		}
		if e.Details != nil {
			return e.Details
		}
		err = e.Err
	}
	return nil
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
