package avwx

import (
	"encoding/json"
	"fmt"
)

// FailureKind classifies why a primary provider call did not produce a usable body
type FailureKind string

const (
	FailureTransport FailureKind = "transport"
	FailureTimeout   FailureKind = "timeout"
	FailureStatus    FailureKind = "status"
	FailurePayload   FailureKind = "payload"
)

// Failure describes a failed AVWX call
type Failure struct {
	Kind       FailureKind
	StatusCode int // zero when no response was received
	Err        error
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("avwx %s failure (status %d): %v", f.Kind, f.StatusCode, f.Err)
	}
	return fmt.Sprintf("avwx %s failure: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Result is either a verbatim JSON body or a Failure, never both
type Result struct {
	Body    json.RawMessage
	Failure *Failure
}

// OK reports whether the call produced a body
func (r Result) OK() bool {
	return r.Failure == nil
}

func failed(kind FailureKind, status int, err error) Result {
	return Result{Failure: &Failure{Kind: kind, StatusCode: status, Err: err}}
}
