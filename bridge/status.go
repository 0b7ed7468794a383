// Package bridge exposes SPI drivers over a framed byte stream, so host
// tools can run transactions on a board through its serial link.
//
// Every request payload is a VLQ command ID followed by the command's
// arguments. Every reply starts with a VLQ status; on success the
// command's results follow, otherwise an error message.
package bridge

import (
	"errors"
	"strconv"

	"gopal/core"
)

// Status is the result code of a bridge command.
type Status uint32

const (
	StatusOK Status = iota
	StatusUnknownCommand
	StatusBadArgs
	StatusUnknownBus
	StatusTimeout
	StatusFault
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnknownCommand:
		return "unknown command"
	case StatusBadArgs:
		return "bad arguments"
	case StatusUnknownBus:
		return "unknown bus"
	case StatusTimeout:
		return "timeout"
	case StatusFault:
		return "fault"
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

// MaxTransfer is the largest buffer one command moves, so that the reply
// fits in a single frame.
const MaxTransfer = 240

var (
	ErrUnknownBus  = errors.New("unknown bus")
	ErrBadArgs     = errors.New("bad arguments")
	ErrFault       = errors.New("device fault")
	ErrTooLong     = errors.New("transfer too long for one frame")
	ErrWrongBridge = errors.New("unexpected reply")
)

// StatusError is a non-OK reply.
type StatusError struct {
	Command string
	Status  Status
	Msg     string
}

func (e *StatusError) Error() string {
	if e.Msg == "" {
		return e.Command + ": " + e.Status.String()
	}
	return e.Command + ": " + e.Status.String() + ": " + e.Msg
}

// Is maps statuses onto the matching sentinel errors.
func (e *StatusError) Is(target error) bool {
	switch e.Status {
	case StatusUnknownCommand:
		return target == core.ErrUnknownCommand
	case StatusBadArgs:
		return target == ErrBadArgs
	case StatusUnknownBus:
		return target == ErrUnknownBus
	case StatusTimeout:
		return target == core.ErrTimeout
	case StatusFault:
		return target == ErrFault
	}
	return false
}

// statusOf classifies a handler error.
func statusOf(err error) Status {
	var fault *core.Fault
	switch {
	case err == nil:
		return StatusOK
	case errors.As(err, &fault):
		return StatusFault
	case errors.Is(err, core.ErrUnknownCommand):
		return StatusUnknownCommand
	case errors.Is(err, ErrUnknownBus):
		return StatusUnknownBus
	case errors.Is(err, core.ErrTimeout):
		return StatusTimeout
	}
	return StatusBadArgs
}
