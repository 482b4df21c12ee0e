// SPI (Serial Peripheral Interface) support
// Implements Klipper's SPI device protocol over bit-banged buses
package core

import (
	"errors"

	"gopperh7/protocol"
	"gopperh7/softspi"
	"gopperh7/stm32"
)

// SPI device flags
const (
	SF_SOFTWARE       = 0x01 // Software SPI (bit-banged)
	SF_CS_ACTIVE_HIGH = 0x02 // Chip select active high (default is active low)
	SF_HAVE_PIN       = 0x04 // Has chip select pin
)

// MsgSPINoBus is the shutdown reason for an exchange on a device whose bus
// was never set.
const MsgSPINoBus = "SPI device has no bus"

var errUnknownSPI = errors.New("spi: unknown oid")

// SPIDevice represents a configured SPI device
type SPIDevice struct {
	OID   uint8 // Object ID
	Flags uint8 // Device flags (software, CS polarity, etc.)

	cs  stm32.GpioOut
	bus *softspi.Bus

	// Shutdown safety
	ShutdownMsg []byte // Message to send on shutdown
}

// Global registry of SPI devices
var spiDevices = make(map[uint8]*SPIDevice)

// InitSPICommands registers SPI-related commands with the command registry
func InitSPICommands() {
	RegisterCommand("config_spi", "oid=%c pin=%u cs_active_high=%c", handleConfigSPI)
	RegisterCommand("config_spi_without_cs", "oid=%c", handleConfigSPIWithoutCS)
	RegisterCommand("spi_set_sw_bus", "oid=%c miso_pin=%u mosi_pin=%u sclk_pin=%u mode=%u pulse_ticks=%u", handleSPISetSoftwareBus)
	RegisterCommand("config_spi_shutdown", "oid=%c spi_oid=%c shutdown_msg=%*s", handleConfigSPIShutdown)
	RegisterCommand("spi_transfer", "oid=%c data=%*s", handleSPITransfer)
	RegisterCommand("spi_send", "oid=%c data=%*s", handleSPISend)

	RegisterResponse("spi_transfer_response", "oid=%c response=%*s")
}

// GetSPIDevice returns a configured SPI device by oid.
func GetSPIDevice(oid uint8) (*SPIDevice, bool) {
	dev, ok := spiDevices[oid]
	return dev, ok
}

// Bus returns the bit-banged bus of the device, or nil before spi_set_sw_bus.
func (d *SPIDevice) Bus() *softspi.Bus {
	return d.bus
}

// handleConfigSPI configures an SPI device with a chip select pin
// Format: config_spi oid=%c pin=%u cs_active_high=%c
func handleConfigSPI(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	pin, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	csActiveHigh, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	dev := &SPIDevice{
		OID:   uint8(oid),
		Flags: SF_HAVE_PIN,
	}
	if csActiveHigh != 0 {
		dev.Flags |= SF_CS_ACTIVE_HIGH
	}

	// Chip select starts deasserted
	dev.cs, err = MustHardware().SetupOutput(stm32.Pin(pin), csActiveHigh == 0)
	if err != nil {
		return checkConfig(err)
	}

	spiDevices[uint8(oid)] = dev

	return nil
}

// handleConfigSPIWithoutCS configures an SPI device without a chip select pin
// Format: config_spi_without_cs oid=%c
func handleConfigSPIWithoutCS(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	spiDevices[uint8(oid)] = &SPIDevice{OID: uint8(oid)}

	return nil
}

// handleSPISetSoftwareBus attaches a bit-banged bus to a device
// Format: spi_set_sw_bus oid=%c miso_pin=%u mosi_pin=%u sclk_pin=%u mode=%u pulse_ticks=%u
func handleSPISetSoftwareBus(data *[]byte) error {
	var args [6]uint32
	for i := range args {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		args[i] = v
	}
	oid, miso, mosi, sclk, mode, pulseTicks := args[0], args[1], args[2], args[3], args[4], args[5]

	dev, exists := spiDevices[uint8(oid)]
	if !exists {
		return errUnknownSPI
	}

	// Out of range modes must not wrap into a valid one
	bus, err := softspi.Setup(MustHardware(), SystemClock{},
		stm32.Pin(miso), stm32.Pin(mosi), stm32.Pin(sclk),
		uint8(min(mode, 0xff)), pulseTicks)
	if err != nil {
		return checkConfig(err)
	}

	dev.bus = bus
	dev.Flags |= SF_SOFTWARE

	return nil
}

// handleConfigSPIShutdown configures a message to send on MCU shutdown
// Format: config_spi_shutdown oid=%c spi_oid=%c shutdown_msg=%*s
func handleConfigSPIShutdown(data *[]byte) error {
	// The shutdown object oid is not tracked separately
	if _, err := protocol.DecodeVLQUint(data); err != nil {
		return err
	}

	spiOID, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	msg, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}

	dev, exists := spiDevices[uint8(spiOID)]
	if !exists {
		return errUnknownSPI
	}

	dev.ShutdownMsg = append([]byte(nil), msg...)

	return nil
}

// Transfer runs one chip-select framed exchange. The bus is parked at its
// idle clock level before chip select is asserted.
func (d *SPIDevice) Transfer(receive bool, data []byte) error {
	if d.bus == nil {
		TryShutdown(MsgSPINoBus)
		return errors.New(MsgSPINoBus)
	}

	d.bus.Prepare()
	if d.Flags&SF_HAVE_PIN != 0 {
		d.cs.Write(d.Flags&SF_CS_ACTIVE_HIGH != 0)
	}

	d.bus.Transfer(receive, data)

	if d.Flags&SF_HAVE_PIN != 0 {
		d.cs.Write(d.Flags&SF_CS_ACTIVE_HIGH == 0)
	}
	return nil
}

// handleSPITransfer sends and receives SPI data
// Format: spi_transfer oid=%c data=%*s
// Response: spi_transfer_response oid=%c response=%*s
func handleSPITransfer(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	payload, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}

	dev, exists := spiDevices[uint8(oid)]
	if !exists {
		return errUnknownSPI
	}

	buf := append([]byte(nil), payload...)
	if err := dev.Transfer(true, buf); err != nil {
		return err
	}

	SendResponse("spi_transfer_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, oid)
		protocol.EncodeVLQBytes(output, buf)
	})

	return nil
}

// handleSPISend sends SPI data without receiving
// Format: spi_send oid=%c data=%*s
func handleSPISend(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	payload, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}

	dev, exists := spiDevices[uint8(oid)]
	if !exists {
		return errUnknownSPI
	}

	return dev.Transfer(false, append([]byte(nil), payload...))
}

// ShutdownSPI sends the configured shutdown messages
func ShutdownSPI() {
	for _, dev := range spiDevices {
		if dev != nil && dev.bus != nil && len(dev.ShutdownMsg) > 0 {
			msg := append([]byte(nil), dev.ShutdownMsg...)
			_ = dev.Transfer(false, msg)
		}
	}
}

func resetSPI() {
	spiDevices = make(map[uint8]*SPIDevice)
}
