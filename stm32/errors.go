package stm32

// ConfigError reports an invalid pin or bus configuration. It is only ever
// returned while setting up a pin; the firmware treats it as fatal.
type ConfigError struct {
	Msg string
	Pin Pin
}

func (e *ConfigError) Error() string {
	return e.Msg
}

// Configuration failure messages. They double as shutdown reasons and so
// must stay static.
const (
	MsgNotOutputPin = "Not an output pin"
	MsgNotInputPin  = "Not a valid input pin"
	MsgInvalidGPIO  = "Invalid gpio"
)
