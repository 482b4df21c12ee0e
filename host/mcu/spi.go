package mcu

import (
	"hash/crc32"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/pkg/errors"
)

// SoftwareSPI describes a bit-banged bus and the device on it.
type SoftwareSPI struct {
	OID uint8

	// CS names the chip select pin; empty for a device without one.
	CS           string
	CSActiveHigh bool

	MISO, MOSI, SCLK string
	Mode             uint8
	Rate             uint32 // Hz
}

// Commands returns the config commands for the bus. pulse_ticks is one
// clock period at clockFreq.
func (s SoftwareSPI) Commands(clockFreq uint32) ([]string, error) {
	if s.Rate == 0 || s.Rate > clockFreq {
		return nil, errors.Errorf("invalid SPI rate %d", s.Rate)
	}
	oid := strconv.Itoa(int(s.OID))
	cmds := []string{"allocate_oids count=" + strconv.Itoa(int(s.OID)+1)}
	if s.CS == "" {
		cmds = append(cmds, "config_spi_without_cs oid="+oid)
	} else {
		high := "0"
		if s.CSActiveHigh {
			high = "1"
		}
		cmds = append(cmds, "config_spi oid="+oid+" pin="+s.CS+" cs_active_high="+high)
	}
	cmds = append(cmds, "spi_set_sw_bus oid="+oid+
		" miso_pin="+s.MISO+" mosi_pin="+s.MOSI+" sclk_pin="+s.SCLK+
		" mode="+strconv.Itoa(int(s.Mode))+
		" pulse_ticks="+strconv.FormatUint(uint64(clockFreq/s.Rate), 10))
	return cmds, nil
}

// ConfigCRC is the finalize_config crc of a command list.
func ConfigCRC(cmds []string) uint32 {
	return crc32.ChecksumIEEE([]byte(strings.Join(cmds, "\n")))
}

// ConfigureSoftwareSPI sends the bus configuration and finalizes it. An
// MCU already finalized with the same commands is left alone.
func (m *MCU) ConfigureSoftwareSPI(bus SoftwareSPI) error {
	dict := m.Dictionary()
	if dict == nil {
		return errors.New("dictionary not loaded")
	}
	freq, err := dict.ConstantInt("CLOCK_FREQ")
	if err != nil {
		return err
	}
	cmds, err := bus.Commands(uint32(freq))
	if err != nil {
		return err
	}
	crc := ConfigCRC(cmds)

	state, err := m.Config()
	if err != nil {
		return err
	}
	if state.IsShutdown {
		return errors.Wrap(ErrShutdown, m.ShutdownReason())
	}
	if state.IsConfig {
		if state.CRC == crc {
			return nil
		}
		return errors.Errorf("mcu already configured (crc %08x); reset it first", state.CRC)
	}

	for _, c := range append(cmds, "finalize_config crc="+strconv.FormatUint(uint64(crc), 10)) {
		fields, err := shlex.Split(c)
		if err != nil {
			return errors.Wrap(err, c)
		}
		if err := m.SendFields(fields); err != nil {
			return err
		}
	}

	state, err = m.Config()
	if err != nil {
		return err
	}
	if state.IsShutdown {
		return errors.Wrapf(ErrShutdown, "configuring spi: %s", m.ShutdownReason())
	}
	return nil
}

// SPITransfer exchanges data with a configured device.
func (m *MCU) SPITransfer(oid uint8, data []byte) ([]byte, error) {
	r, err := m.Query("spi_transfer", map[string]interface{}{
		"oid":  oid,
		"data": data,
	}, "spi_transfer_response")
	if err != nil {
		return nil, err
	}
	return r.Bytes("response"), nil
}

// SPISend writes data to a configured device.
func (m *MCU) SPISend(oid uint8, data []byte) error {
	return m.Send("spi_send", map[string]interface{}{
		"oid":  oid,
		"data": data,
	})
}
