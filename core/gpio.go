// GPIO (General Purpose Input/Output) support
// Implements Klipper's digital_out protocol on the STM32 output cache
package core

import (
	"errors"

	"gopperh7/protocol"
	"gopperh7/stm32"
)

var errUnknownDigitalOut = errors.New("digital_out: unknown oid")

// DigitalOut flags
const (
	DF_ON         = 1 << 0 // Current pin state (1=high, 0=low)
	DF_TOGGLING   = 1 << 1 // PWM mode active
	DF_CHECK_END  = 1 << 2 // Monitor max_duration
	DF_DEFAULT_ON = 1 << 3 // Default state for shutdown/power-loss
)

// DigitalOut represents a configured GPIO output pin
type DigitalOut struct {
	OID   uint8 // Object ID
	Pin   stm32.Pin
	Flags uint8 // State flags (DF_*)

	out stm32.GpioOut

	// Timer for scheduled updates and PWM
	Timer Timer

	// PWM timing
	OnDuration  uint32 // PWM on time in ticks
	OffDuration uint32 // PWM off time in ticks
	CycleTime   uint32 // Total PWM cycle time in ticks
	EndTime     uint32 // Time when max_duration expires

	// Safety parameters
	MaxDuration uint32 // Maximum time pin can be in non-default state
}

// Global registry of digital outputs
var digitalOutputs = make(map[uint8]*DigitalOut)

// InitGPIOCommands registers GPIO-related commands with the command registry
func InitGPIOCommands() {
	RegisterCommand("config_digital_out", "oid=%c pin=%u value=%c default_value=%c max_duration=%u", handleConfigDigitalOut)
	RegisterCommand("set_digital_out", "pin=%u value=%c", handleSetDigitalOut)
	RegisterCommand("queue_digital_out", "oid=%c clock=%u on_ticks=%u", handleQueueDigitalOut)
	RegisterCommand("update_digital_out", "oid=%c value=%c", handleUpdateDigitalOut)
	RegisterCommand("set_digital_out_pwm_cycle", "oid=%c cycle_ticks=%u", handleSetDigitalOutPWMCycle)
}

// GetDigitalOut returns a configured digital output by oid.
func GetDigitalOut(oid uint8) (*DigitalOut, bool) {
	dout, ok := digitalOutputs[oid]
	return dout, ok
}

// handleConfigDigitalOut configures a pin for digital output
// Format: config_digital_out oid=%c pin=%u value=%c default_value=%c max_duration=%u
func handleConfigDigitalOut(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	pin, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	value, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	defaultValue, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	maxDuration, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	out, err := MustHardware().SetupOutput(stm32.Pin(pin), value != 0)
	if err != nil {
		return checkConfig(err)
	}

	dout := &DigitalOut{
		OID:         uint8(oid),
		Pin:         stm32.Pin(pin),
		out:         out,
		MaxDuration: maxDuration,
	}
	if defaultValue != 0 {
		dout.Flags |= DF_DEFAULT_ON
	}
	if value != 0 {
		dout.Flags |= DF_ON
	}

	digitalOutputs[uint8(oid)] = dout

	return nil
}

// handleSetDigitalOut drives a pin once without creating an object
// Format: set_digital_out pin=%u value=%c
func handleSetDigitalOut(data *[]byte) error {
	pin, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	value, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	_, err = MustHardware().SetupOutput(stm32.Pin(pin), value != 0)
	return checkConfig(err)
}

// handleQueueDigitalOut schedules a pin state change
// Format: queue_digital_out oid=%c clock=%u on_ticks=%u
func handleQueueDigitalOut(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	clock, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	onTicks, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	dout, exists := digitalOutputs[uint8(oid)]
	if !exists {
		return errUnknownDigitalOut
	}

	dout.queue(clock, onTicks)
	return nil
}

// queue computes the new state flags and arms the load timer for clock.
func (d *DigitalOut) queue(clock, onTicks uint32) {
	RemoveTimer(&d.Timer)

	if d.CycleTime != 0 {
		d.OnDuration = onTicks
		if d.OnDuration > d.CycleTime {
			d.OnDuration = d.CycleTime
		}
		d.OffDuration = d.CycleTime - d.OnDuration

		if d.OnDuration > 0 && d.OffDuration > 0 {
			d.Flags |= DF_TOGGLING
		} else {
			d.Flags &^= DF_TOGGLING
		}
	} else {
		d.Flags &^= DF_TOGGLING
	}

	on := onTicks > 0
	if on {
		d.Flags |= DF_ON
	} else {
		d.Flags &^= DF_ON
	}

	// A pin left away from its default level must come back within
	// max_duration.
	d.Flags &^= DF_CHECK_END
	if d.MaxDuration != 0 {
		defaultOn := d.Flags&DF_DEFAULT_ON != 0
		if on != defaultOn || d.Flags&DF_TOGGLING != 0 {
			d.EndTime = clock + d.MaxDuration
			d.Flags |= DF_CHECK_END
		}
	}

	d.Timer.WakeTime = clock
	d.Timer.Handler = d.loadEvent
	ScheduleTimer(&d.Timer)
}

// handleUpdateDigitalOut immediately updates a pin value
// Format: update_digital_out oid=%c value=%c
func handleUpdateDigitalOut(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	value, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	dout, exists := digitalOutputs[uint8(oid)]
	if !exists {
		return errUnknownDigitalOut
	}

	RemoveTimer(&dout.Timer)
	dout.set(value != 0)
	dout.Flags &^= DF_TOGGLING | DF_CHECK_END

	return nil
}

// handleSetDigitalOutPWMCycle sets the PWM cycle time
// Format: set_digital_out_pwm_cycle oid=%c cycle_ticks=%u
func handleSetDigitalOutPWMCycle(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	cycleTicks, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	dout, exists := digitalOutputs[uint8(oid)]
	if !exists {
		return errUnknownDigitalOut
	}

	dout.CycleTime = cycleTicks

	return nil
}

// set drives the pin and records the level in the flags.
func (d *DigitalOut) set(on bool) {
	d.out.Write(on)
	if on {
		d.Flags |= DF_ON
	} else {
		d.Flags &^= DF_ON
	}
}

// loadEvent applies a queued update at its scheduled time and starts PWM
// toggling if needed.
func (d *DigitalOut) loadEvent(t *Timer) uint8 {
	if d.Flags&DF_TOGGLING != 0 {
		// Each cycle starts with the on period
		d.set(true)
		t.WakeTime += d.OnDuration
		t.Handler = d.toggleEvent
		return d.checkEnd(t)
	}

	d.set(d.Flags&DF_ON != 0)

	if d.Flags&DF_CHECK_END != 0 {
		t.WakeTime = d.EndTime
		t.Handler = d.endEvent
		return SF_RESCHEDULE
	}

	return SF_DONE
}

// toggleEvent flips the pin for soft PWM. It runs from the timer dispatcher
// with interrupts already disabled.
func (d *DigitalOut) toggleEvent(t *Timer) uint8 {
	d.out.ToggleNoIRQ()
	d.Flags ^= DF_ON

	if d.Flags&DF_ON != 0 {
		t.WakeTime += d.OnDuration
	} else {
		t.WakeTime += d.OffDuration
	}
	return d.checkEnd(t)
}

// checkEnd hands the timer to endEvent when the next wake would pass the
// max_duration deadline.
func (d *DigitalOut) checkEnd(t *Timer) uint8 {
	if d.Flags&DF_CHECK_END != 0 && !TimerIsBefore(t.WakeTime, d.EndTime) {
		t.WakeTime = d.EndTime
		t.Handler = d.endEvent
	}
	return SF_RESCHEDULE
}

// endEvent enforces max_duration. A pin still away from its default when
// the deadline passes means the host stopped updating it.
func (d *DigitalOut) endEvent(t *Timer) uint8 {
	TryShutdown(MsgMissedDeadline)
	return SF_DONE
}

// ShutdownDigitalOut returns a pin to its default state (called during shutdown)
func ShutdownDigitalOut(dout *DigitalOut) {
	RemoveTimer(&dout.Timer)
	dout.Flags &^= DF_TOGGLING | DF_CHECK_END
	dout.set(dout.Flags&DF_DEFAULT_ON != 0)
}

// ShutdownAllDigitalOut returns all pins to their default states
func ShutdownAllDigitalOut() {
	for _, dout := range digitalOutputs {
		if dout != nil {
			ShutdownDigitalOut(dout)
		}
	}
}

func resetDigitalOut() {
	digitalOutputs = make(map[uint8]*DigitalOut)
}
