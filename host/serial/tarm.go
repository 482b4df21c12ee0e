package serial

import (
	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

type tarmPort struct {
	*serial.Port
}

// Open opens the device described by cfg.
func Open(cfg *Config) (Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.Device)
	}
	return tarmPort{p}, nil
}
