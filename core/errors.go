package core

import "errors"

// Configuration and usage-sequence errors. They are never returned: the
// operation that detects one panics with a *Fault wrapping it, since
// continuing would leave the hardware in an undefined state.
var (
	ErrUnsupportedPadMode = errors.New("unsupported pad mode")
	ErrIRQRange           = errors.New("irq number out of range")
	ErrIRQInstalled       = errors.New("irq handler already installed")
	ErrNilHandler         = errors.New("nil irq handler")
	ErrInvalidState       = errors.New("invalid driver state")
	ErrInvalidConfig      = errors.New("invalid spi configuration")
	ErrShortBuffer        = errors.New("buffer shorter than transfer")
	ErrHardwareTimeout    = errors.New("spi unit not responding")
)

// ErrTimeout is returned when a caller's context expires while it waits for
// the bus or for transfer completion.
var ErrTimeout = errors.New("wait timed out")

// Fault is the panic value of the fatal error path.
type Fault struct {
	Op  string
	Err error
}

func (f *Fault) Error() string { return f.Op + ": " + f.Err.Error() }
func (f *Fault) Unwrap() error { return f.Err }

// fatal records the fault, dumps the event ring and aborts.
func fatal(op string, err error) {
	RecordEvent(EvtFault, 0, 0, 0)
	DebugPrintln("[FATAL] " + op + ": " + err.Error())
	DumpEventRing()
	panic(&Fault{Op: op, Err: err})
}

// waitError reports an expired wait. It matches both ErrTimeout and the
// context error.
type waitError struct {
	op  string
	err error
}

func (e *waitError) Error() string { return e.op + ": " + ErrTimeout.Error() + ": " + e.err.Error() }
func (e *waitError) Unwrap() []error { return []error{ErrTimeout, e.err} }
