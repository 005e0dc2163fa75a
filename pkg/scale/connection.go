package scale

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kuncy7/toolid/pkg/models"
	"go.bug.st/serial"
)

// Connection is an open handle on one scale
type Connection interface {
	// ReadChunk reads whatever bytes are available, waiting at most the
	// configured read timeout. Zero bytes with a nil error means timeout.
	ReadChunk(buf []byte) (int, error)

	// Close releases the device. Calling it more than once is allowed.
	Close() error
}

// Opener opens connections to scales
type Opener interface {
	Open(cfg models.ScaleConfig) (Connection, error)
}

var parityModes = map[models.Parity]serial.Parity{
	models.ParityNone: serial.NoParity,
	models.ParityEven: serial.EvenParity,
	models.ParityOdd:  serial.OddParity,
}

var stopBitModes = map[float64]serial.StopBits{
	1:   serial.OneStopBit,
	1.5: serial.OnePointFiveStopBits,
	2:   serial.TwoStopBits,
}

// ModeFromConfig maps a scale configuration onto a serial port mode
func ModeFromConfig(cfg models.ScaleConfig) (*serial.Mode, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scale configuration: %w", err)
	}

	parity, err := models.ParseParity(cfg.Parity)
	if err != nil {
		return nil, err
	}

	return &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   parityModes[parity],
		StopBits: stopBitModes[cfg.StopBits],
	}, nil
}

// SerialOpener opens real serial ports
type SerialOpener struct{}

// Open opens the configured port and applies the read timeout
func (SerialOpener) Open(cfg models.ScaleConfig) (Connection, error) {
	mode, err := ModeFromConfig(cfg)
	if err != nil {
		return nil, &TransportError{Op: "configure", Port: cfg.Port, Err: err}
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		if isPortBusy(err) {
			err = fmt.Errorf("%w: %v", ErrPortBusy, err)
		}
		return nil, &TransportError{Op: "open", Port: cfg.Port, Err: err}
	}

	if err := port.SetReadTimeout(cfg.ReadTimeout()); err != nil {
		_ = port.Close()
		return nil, &TransportError{Op: "set timeout", Port: cfg.Port, Err: err}
	}

	return &serialConnection{port: port, name: cfg.Port}, nil
}

func isPortBusy(err error) bool {
	var portErr serial.PortError
	if errors.As(err, &portErr) {
		return portErr.Code() == serial.PortBusy
	}

	var portErrPtr *serial.PortError
	if errors.As(err, &portErrPtr) {
		return portErrPtr.Code() == serial.PortBusy
	}

	return false
}

type serialConnection struct {
	port serial.Port
	name string

	closeOnce sync.Once
	closeErr  error
}

func (c *serialConnection) ReadChunk(buf []byte) (int, error) {
	n, err := c.port.Read(buf)
	if err != nil {
		return n, &TransportError{Op: "read", Port: c.name, Err: err}
	}
	return n, nil
}

func (c *serialConnection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.port.Close()
	})
	return c.closeErr
}
