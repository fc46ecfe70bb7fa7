package action

import (
	"context"
	"errors"
	"net"
	"time"

	"chirpbot/internal/social"
	"chirpbot/internal/state"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailure Status = "failure"
)

// Kind tags a failure so callers can react without inspecting errors.
type Kind string

const (
	KindNone             Kind = ""
	KindTransientNetwork Kind = "transient_network"
	KindPermissionDenied Kind = "permission_denied"
	KindRateLimited      Kind = "rate_limited"
	KindValidation       Kind = "validation"
	KindStorage          Kind = "storage"
	KindNoContent        Kind = "no_content"
	KindUnknown          Kind = "unknown"
)

// Result is the outcome of one action. Executor methods never return a bare
// error; failures are carried here.
type Result struct {
	Action string        `json:"action"`
	Status Status        `json:"status"`
	Reason string        `json:"reason,omitempty"`
	Kind   Kind          `json:"kind,omitempty"`
	Err    error         `json:"-"`
	Took   time.Duration `json:"took"`

	// Tweet is set on a successful post.
	Tweet *state.TweetRecord `json:"tweet,omitempty"`
	// Count is follows, unfollows or likes depending on the action.
	Count    int `json:"count"`
	Reposted int `json:"reposted,omitempty"`
	Failed   int `json:"failed,omitempty"`
}

func (r Result) OK() bool { return r.Status == StatusSuccess }

// ErrText returns the failure message or "".
func (r Result) ErrText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func skipped(action, reason string) Result {
	return Result{Action: action, Status: StatusSkipped, Reason: reason}
}

func failed(action string, err error) Result {
	return Result{Action: action, Status: StatusFailure, Kind: Classify(err), Err: err, Reason: err.Error()}
}

// Classify maps a collaborator error onto the failure taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var apiErr *social.APIError
	var netErr net.Error
	switch {
	case errors.Is(err, social.ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, social.ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, errNoContent):
		return KindNoContent
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransientNetwork
	case errors.As(err, &apiErr):
		if apiErr.Temporary() {
			return KindTransientNetwork
		}
		if apiErr.Status == 400 || apiErr.Status == 422 {
			return KindValidation
		}
		return KindUnknown
	case errors.As(err, &netErr):
		return KindTransientNetwork
	}
	return KindUnknown
}
