package models

import (
	"fmt"
	"strings"
	"time"
)

// Parity is the normalized parity mode of a serial scale
type Parity string

const (
	ParityNone Parity = "N"
	ParityEven Parity = "E"
	ParityOdd  Parity = "O"
)

// Defaults used when no scale is configured yet
const (
	DefaultScalePort      = "/dev/ttyUSB0"
	DefaultScaleBaudRate  = 9600
	DefaultScaleDataBits  = 8
	DefaultScaleStopBits  = 1
	DefaultScaleTimeoutMs = 500
)

// ScaleConfig describes how to reach one serial scale
type ScaleConfig struct {
	ID        int64     `json:"id"`
	Port      string    `json:"port"`
	BaudRate  int       `json:"baudrate"`
	Parity    string    `json:"parity"`
	DataBits  int       `json:"data_bits"`
	StopBits  float64   `json:"stop_bits"`
	TimeoutMs int       `json:"timeout"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultScaleConfig returns the configuration created when the store is empty
func DefaultScaleConfig() ScaleConfig {
	return ScaleConfig{
		Port:      DefaultScalePort,
		BaudRate:  DefaultScaleBaudRate,
		Parity:    string(ParityNone),
		DataBits:  DefaultScaleDataBits,
		StopBits:  DefaultScaleStopBits,
		TimeoutMs: DefaultScaleTimeoutMs,
	}
}

// ParseParity accepts both the short (N/E/O) and long (none/even/odd) spellings
func ParseParity(raw string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "n", "none":
		return ParityNone, nil
	case "e", "even":
		return ParityEven, nil
	case "o", "odd":
		return ParityOdd, nil
	}
	return "", fmt.Errorf("invalid parity: %q (valid: N, E, O)", raw)
}

// ReadTimeout returns the per-read timeout of the scale
func (c ScaleConfig) ReadTimeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Validate checks that the configuration can be mapped onto a serial mode
func (c ScaleConfig) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("port must not be empty")
	}

	if c.BaudRate <= 0 {
		return fmt.Errorf("baudrate must be positive, got %d", c.BaudRate)
	}

	if _, err := ParseParity(c.Parity); err != nil {
		return err
	}

	switch c.DataBits {
	case 5, 6, 7, 8:
	default:
		return fmt.Errorf("invalid data_bits: %d (valid: 5, 6, 7, 8)", c.DataBits)
	}

	switch c.StopBits {
	case 1, 1.5, 2:
	default:
		return fmt.Errorf("invalid stop_bits: %v (valid: 1, 1.5, 2)", c.StopBits)
	}

	if c.TimeoutMs <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.TimeoutMs)
	}

	return nil
}

// ScaleWeight is one persisted net weight reading of a scale
type ScaleWeight struct {
	ID        int64     `json:"id"`
	ScaleID   int64     `json:"scale_id"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}
