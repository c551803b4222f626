package common_errors

import (
	"golang.org/x/xerrors"
)

var (
	ErrStreamEmpty             = xerrors.New("stream empty")
	ErrEndOfStream             = xerrors.New("end of stream")
	ErrConsumerCompleted       = xerrors.New("consumer already completed")
	ErrInterrupted             = xerrors.New("interrupted while waiting")
	ErrInvalidArgument         = xerrors.New("invalid argument")
	ErrJobDropped              = xerrors.New("Job has unexpectedly been dropped")
	ErrUnrecognizedSerdeFormat = xerrors.New("Unrecognized serde format")
	ErrEmptyPayload            = xerrors.New("payload cannot be empty")
)

func IsStreamEmptyError(err error) bool {
	return xerrors.Is(err, ErrStreamEmpty)
}

func IsEndOfStreamError(err error) bool {
	return xerrors.Is(err, ErrEndOfStream)
}

func IsInterruptedError(err error) bool {
	return xerrors.Is(err, ErrInterrupted)
}

// Interrupted wraps the context error of a cancelled wait so that callers can
// match both ErrInterrupted and context.Canceled/DeadlineExceeded.
func Interrupted(cause error) error {
	return &interruptedErr{cause: cause}
}

type interruptedErr struct {
	cause error
}

func (e *interruptedErr) Error() string {
	return ErrInterrupted.Error() + ": " + e.cause.Error()
}

func (e *interruptedErr) Is(target error) bool {
	return target == ErrInterrupted
}

func (e *interruptedErr) Unwrap() error {
	return e.cause
}
