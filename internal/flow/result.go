package flow

import (
	"context"
	"errors"

	"github.com/v0xg/jobfill/internal/execlog"
	"github.com/v0xg/jobfill/internal/protocol"
)

// ErrorCancelled is the error string reported when the caller's context
// ended the run.
const ErrorCancelled = "Cancelled"

// Result is the outcome of one run.
type Result struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Detail  string          `json:"detail,omitempty"`
	Log     []execlog.Entry `json:"log"`

	// Err is the error that aborted the run.
	Err error `json:"-"`
}

func newFailure(err error, log []execlog.Entry) *Result {
	if log == nil {
		log = []execlog.Entry{}
	}
	res := &Result{Success: false, Log: log, Err: err}

	var perr *protocol.Error
	switch {
	case errors.As(err, &perr):
		res.Error = string(perr.Kind)
		res.Detail = perr.Detail
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		res.Error = ErrorCancelled
		res.Detail = err.Error()
	default:
		res.Error = "Error"
		res.Detail = err.Error()
	}
	return res
}

// Kind returns the failure kind, or "" for successful and cancelled runs.
func (r *Result) Kind() protocol.ErrorKind {
	if r == nil || r.Success {
		return ""
	}
	return protocol.KindOf(r.Err)
}
