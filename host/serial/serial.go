// Package serial opens the host side of the MCU link.
package serial

import (
	"io"
	"time"

	"github.com/pkg/errors"
)

// DefaultBaud is the Klipper serial rate. USB CDC ports ignore it.
const DefaultBaud = 250000

// Port is an open serial link.
type Port interface {
	io.ReadWriteCloser

	// Flush discards data not yet transmitted or read.
	Flush() error
}

// Config describes the port to open.
type Config struct {
	// Device path, e.g. /dev/ttyACM0 or COM3.
	Device string

	Baud int

	// ReadTimeout bounds each Read. Zero blocks.
	ReadTimeout time.Duration
}

// DefaultConfig returns the Klipper settings for device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c == nil:
		return errors.New("nil serial config")
	case c.Device == "":
		return errors.New("no serial device")
	case c.Baud <= 0:
		return errors.Errorf("invalid baud rate %d", c.Baud)
	case c.ReadTimeout < 0:
		return errors.Errorf("invalid read timeout %v", c.ReadTimeout)
	}
	return nil
}
