package core

import "gopperh7/protocol"

func registerDebugCommands() {
	RegisterCommandFlags("debug_read", "order=%c addr=%u", HF_IN_SHUTDOWN, handleDebugRead)
	RegisterResponse("debug_result", "val=%u")
	RegisterCommandFlags("set_debug", "enable=%c", HF_IN_SHUTDOWN, handleSetDebug)
}

// handleSetDebug switches DebugPrintln output on or off
// Format: set_debug enable=%c
func handleSetDebug(data *[]byte) error {
	enable, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	SetDebugEnabled(enable != 0)
	return nil
}

// handleDebugRead reads a value from a memory address
// This is used by Klipper's temperature_mcu to read the STM32 factory
// calibration words
// Format: debug_read order=%c addr=%u
//
//	order: 1 = read 16-bit (uint16), 2 = read 32-bit (uint32)
//	addr: memory address to read from
//
// Response: debug_result val=%u
func handleDebugRead(data *[]byte) error {
	order, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	addr, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	val := readMemory(order, addr)

	SendResponse("debug_result", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, val)
	})

	return nil
}
