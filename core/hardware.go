package core

import (
	"errors"

	"gopperh7/stm32"
)

// Global GPIO context used by core code. Targets build it once at start-up.
var hardware *stm32.Hardware

// SetHardware is called by target-specific code to register its GPIO banks.
// It also publishes the pin names of the present banks as the "pin"
// enumeration, so it must run before the dictionary is built.
func SetHardware(hw *stm32.Hardware) {
	hardware = hw
	if hw != nil {
		RegisterEnumeration("pin", hw.PinNames())
	}
}

// MustHardware returns the configured GPIO context or panics if missing.
func MustHardware() *stm32.Hardware {
	if hardware == nil {
		panic("GPIO hardware not configured")
	}
	return hardware
}

// checkConfig shuts the firmware down when err is a pin or bus configuration
// failure. The error is returned unchanged so the rest of the frame is
// dropped.
func checkConfig(err error) error {
	var cerr *stm32.ConfigError
	if errors.As(err, &cerr) {
		TryShutdown(cerr.Msg)
	}
	return err
}
