package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")
	assert.Equal(t, "/dev/ttyACM0", cfg.Device)
	assert.Equal(t, 250000, cfg.Baud)
	assert.Equal(t, 100*time.Millisecond, cfg.ReadTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
	assert.Error(t, (&Config{Baud: 115200}).Validate())
	assert.Error(t, (&Config{Device: "x", Baud: 0}).Validate())
	assert.Error(t, (&Config{Device: "x", Baud: 1, ReadTimeout: -1}).Validate())
}

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open(DefaultConfig("/nonexistent/ttyGOPPER"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open /nonexistent/ttyGOPPER")

	_, err = Open(&Config{})
	assert.EqualError(t, err, "no serial device")
}
