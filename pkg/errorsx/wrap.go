package errorsx

import "errors"

// ReasonedError carries a stable machine-readable reason alongside the
// underlying error. The reason never shows up in Error() output, so
// wrapped messages stay clean wherever they surface; callers that want
// the code ask for it with Reason.
type ReasonedError struct {
	Err    error
	Reason ReasonCode
}

func (e ReasonedError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e ReasonedError) Unwrap() error { return e.Err }

// Wrap attaches a reason to err. A nil err stays nil, and an error that
// already carries a reason keeps its original one, so the first
// classification along a call chain wins.
func Wrap(err error, reason ReasonCode) error {
	switch {
	case err == nil:
		return nil
	case classified(err):
		return err
	default:
		return ReasonedError{Err: err, Reason: reason}
	}
}

// Reason reports the code attached to err. Nil and never-wrapped errors
// report ReasonUnknown.
func Reason(err error) ReasonCode {
	var re ReasonedError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ReasonUnknown
}

// HasReason reports whether err carries exactly the given reason.
func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}

func classified(err error) bool {
	var re ReasonedError
	return errors.As(err, &re)
}
