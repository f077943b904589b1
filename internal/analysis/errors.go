package analysis

import (
	"errors"
	"fmt"
)

// Kind classifies a failed analysis request.
type Kind string

const (
	KindInvalidEndpoint Kind = "invalid_endpoint"
	KindEmptyContent    Kind = "empty_content"
	KindNoData          Kind = "no_data"
	KindDecode          Kind = "decode"
	KindUnauthorized    Kind = "unauthorized"
	KindServer          Kind = "server"
	KindNetwork         Kind = "network"
)

// Error is returned by Client.Generate for every failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := "analysis " + string(e.Kind)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of an analysis error anywhere in err's chain, or "".
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
