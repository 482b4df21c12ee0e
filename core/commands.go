package core

import (
	"sync/atomic"

	"gopperh7/protocol"
	"gopperh7/softspi"
	"gopperh7/stm32"
)

// FirmwareState holds the global firmware state
type FirmwareState struct {
	configCRC      uint32 // atomic
	isShutdown     uint32 // atomic bool
	shutdownReason uint32 // atomic static string id
	moveCount      uint16
}

var globalState = &FirmwareState{
	moveCount: 16, // Command queue size - minimum for Klipper
}

// Shutdown reasons raised by the core itself.
const (
	MsgCommandRequest  = "Command request"
	MsgConfigReset     = "config_reset only available when shutdown"
	MsgAlreadyConfig   = "Already finalized"
	MsgShutdownCleared = "Shutdown cleared when not shutdown"
	MsgMissedDeadline  = "Missed scheduling of next digital out event"
)

// staticStrings is the static_string_id enumeration. Shutdown reasons are
// sent to the host by index.
var staticStrings = []string{
	MsgCommandRequest,
	MsgConfigReset,
	MsgAlreadyConfig,
	MsgShutdownCleared,
	MsgMissedDeadline,
	stm32.MsgNotOutputPin,
	stm32.MsgNotInputPin,
	stm32.MsgInvalidGPIO,
	softspi.MsgInvalidConfig,
	MsgSPINoBus,
}

// staticStringID returns the enumeration index of a shutdown reason. Reasons
// that were never declared map to MsgCommandRequest.
func staticStringID(msg string) uint16 {
	for i, s := range staticStrings {
		if s == msg {
			return uint16(i)
		}
	}
	return 0
}

// InitCoreCommands registers all core protocol commands
// IMPORTANT: Command registration order matters!
// Klipper has a hardcoded bootstrap dictionary:
//
//	identify_response = ID 0
//	identify = ID 1
func InitCoreCommands() {
	// Bootstrap messages - MUST be first to match Klipper's DefaultMessages
	RegisterCommand("identify_response", "offset=%u data=%.*s", nil)                        // ID 0
	RegisterCommandFlags("identify", "offset=%u count=%c", HF_IN_SHUTDOWN, handleIdentify) // ID 1

	RegisterCommandFlags("get_uptime", "", HF_IN_SHUTDOWN, handleGetUptime)
	RegisterCommandFlags("get_clock", "", HF_IN_SHUTDOWN, handleGetClock)
	RegisterCommandFlags("get_config", "", HF_IN_SHUTDOWN, handleGetConfig)
	RegisterCommandFlags("config_reset", "", HF_IN_SHUTDOWN, handleConfigReset)
	RegisterCommand("finalize_config", "crc=%u", handleFinalizeConfig)
	RegisterCommand("allocate_oids", "count=%c", handleAllocateOids)
	RegisterCommandFlags("emergency_stop", "", HF_IN_SHUTDOWN, handleEmergencyStop)
	RegisterCommandFlags("clear_shutdown", "", HF_IN_SHUTDOWN, handleClearShutdown)
	RegisterCommandFlags("reset", "", HF_IN_SHUTDOWN, handleReset)
	registerDebugCommands()

	// Response messages (MCU → Host)
	RegisterResponse("clock", "clock=%u")
	RegisterResponse("uptime", "high=%u clock=%u")
	RegisterResponse("config", "is_config=%c crc=%u is_shutdown=%c move_count=%hu")
	RegisterResponse("shutdown", "clock=%u static_string_id=%hu")
	RegisterResponse("is_shutdown", "static_string_id=%hu")

	// Note: MCU and CLOCK_FREQ are platform-specific and registered in targets
	RegisterConstant("STATS_SUMSQ_BASE", uint32(256))
	RegisterEnumeration("static_string_id", staticStrings)
}

// handleIdentify returns chunks of the data dictionary
func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	count8, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	chunk := GetGlobalDictionary().GetChunk(offset, uint8(count8))

	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})

	return nil
}

// handleGetUptime returns the system uptime
func handleGetUptime(data *[]byte) error {
	uptime := GetUptime()
	high := uint32(uptime >> 32)
	low := uint32(uptime & 0xFFFFFFFF)

	SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, high)
		protocol.EncodeVLQUint(output, low)
	})

	return nil
}

// handleGetClock returns the current clock value
func handleGetClock(data *[]byte) error {
	clock := GetTime()

	SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, clock)
	})

	return nil
}

func boolToUint(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// handleGetConfig returns the configuration state
func handleGetConfig(data *[]byte) error {
	crc := atomic.LoadUint32(&globalState.configCRC)
	isShutdown := IsShutdown()

	SendResponse("config", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, boolToUint(crc != 0))
		protocol.EncodeVLQUint(output, crc)
		protocol.EncodeVLQUint(output, boolToUint(isShutdown))
		protocol.EncodeVLQUint(output, uint32(globalState.moveCount))
	})

	return nil
}

// handleConfigReset drops every configured object so the host can send a
// new configuration. Only allowed while shut down.
func handleConfigReset(data *[]byte) error {
	if !IsShutdown() {
		TryShutdown(MsgConfigReset)
		return nil
	}
	resetObjects()
	atomic.StoreUint32(&globalState.configCRC, 0)
	atomic.StoreUint32(&globalState.isShutdown, 0)
	return nil
}

// handleFinalizeConfig finalizes the configuration with a CRC
func handleFinalizeConfig(data *[]byte) error {
	crc, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	if atomic.LoadUint32(&globalState.configCRC) != 0 {
		TryShutdown(MsgAlreadyConfig)
		return nil
	}
	atomic.StoreUint32(&globalState.configCRC, crc)
	return nil
}

// handleAllocateOids allocates object IDs. Objects live in per-type maps
// keyed by oid, so there is nothing to reserve.
func handleAllocateOids(data *[]byte) error {
	_, err := protocol.DecodeVLQUint(data)
	return err
}

// handleEmergencyStop triggers an emergency stop
func handleEmergencyStop(data *[]byte) error {
	TryShutdown(MsgCommandRequest)
	return nil
}

// handleClearShutdown leaves the shutdown state. Configured objects keep
// their shutdown levels until the host reconfigures them.
func handleClearShutdown(data *[]byte) error {
	if !atomic.CompareAndSwapUint32(&globalState.isShutdown, 1, 0) {
		TryShutdown(MsgShutdownCleared)
	}
	return nil
}

// TryShutdown enters the shutdown state with a static reason message.
// Outputs go to their default levels, SPI shutdown messages are sent and
// the host receives a shutdown response. Calls while already shut down are
// ignored.
func TryShutdown(reason string) {
	if !atomic.CompareAndSwapUint32(&globalState.isShutdown, 0, 1) {
		return
	}
	id := staticStringID(reason)
	atomic.StoreUint32(&globalState.shutdownReason, uint32(id))
	DebugAsync("[SHUTDOWN] " + reason)

	resetTimers()
	ShutdownAllDigitalOut()
	ShutdownSPI()

	clock := GetTime()
	SendResponse("shutdown", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, clock)
		protocol.EncodeVLQUint(output, uint32(id))
	})
}

// ShutdownReason returns the static string id of the last shutdown.
func ShutdownReason() uint16 {
	return uint16(atomic.LoadUint32(&globalState.shutdownReason))
}

func sendIsShutdown() {
	id := ShutdownReason()
	SendResponse("is_shutdown", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(id))
	})
}

// IsShutdown returns true if the firmware is in shutdown state
func IsShutdown() bool {
	return atomic.LoadUint32(&globalState.isShutdown) != 0
}

// resetObjects drops all configured objects and pending timers.
func resetObjects() {
	resetTimers()
	resetDigitalOut()
	resetSPI()
}

// ResetFirmwareState resets the firmware state for reconnection
// This is called when the host reconnects or a firmware restart is requested
func ResetFirmwareState() {
	atomic.StoreUint32(&globalState.configCRC, 0)
	atomic.StoreUint32(&globalState.isShutdown, 0)
	atomic.StoreUint32(&globalState.shutdownReason, 0)
	atomic.StoreUint32(&resetPending, 0)
	resetObjects()
}

// SendResponse sends a response message using the global transport
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport != nil {
		cmd, ok := globalRegistry.GetCommandByName(responseName)
		if !ok {
			// All responses are registered at init
			panic("Response not registered: " + responseName)
		}

		globalTransport.SendCommand(cmd.ID, args)
	}
}

// Global transport for sending responses (set by main)
var globalTransport *protocol.Transport

// SetGlobalTransport sets the global transport for sending responses
func SetGlobalTransport(transport *protocol.Transport) {
	globalTransport = transport
}

// Global reset handler (set by target-specific code)
var globalResetHandler func()

// resetPending is set when a reset command is received
// The actual reset happens in the main loop after ACK is sent
var resetPending uint32 // atomic bool

// SetResetHandler sets the platform-specific reset handler
func SetResetHandler(handler func()) {
	globalResetHandler = handler
}

// handleReset triggers a hardware reset of the MCU
// This is used by Klipper's FIRMWARE_RESTART command
// NOTE: The actual reset is deferred until after the ACK is sent to the host
func handleReset(_ *[]byte) error {
	atomic.StoreUint32(&resetPending, 1)
	return nil
}

// CheckPendingReset checks if a reset was requested and executes it
// This should be called from the main loop after all pending messages are sent
func CheckPendingReset() {
	if atomic.LoadUint32(&resetPending) != 0 && globalResetHandler != nil {
		// Should never return
		globalResetHandler()
	}
}
