package scale

import (
	"errors"
	"fmt"
)

// ErrPortBusy is wrapped by a TransportError when another handle owns the port
var ErrPortBusy = errors.New("serial port busy")

// TransportError reports a failure to open or read the serial device
type TransportError struct {
	Op   string
	Port string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("scale transport %s %s: %v", e.Op, e.Port, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError reports a line that matched the net weight pattern but held no number
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse weight from line %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a reading that could not be stored
type PersistenceError struct {
	ScaleID int64
	Weight  float64
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to store weight %g for scale %d: %v", e.Weight, e.ScaleID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ShutdownTimeout lists listeners that were still running when the grace period ended
type ShutdownTimeout struct {
	ScaleIDs []int64
}

func (e *ShutdownTimeout) Error() string {
	return fmt.Sprintf("%d scale listener(s) did not stop in time: %v", len(e.ScaleIDs), e.ScaleIDs)
}
