// A utility to talk to a gopper MCU over its serial link.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"gopperh7/host/mcu"
	"gopperh7/host/serial"
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&rootOpts.Device, "device", "d", envString("GOPPER_DEVICE", "/dev/ttyACM0"), "serial device ($GOPPER_DEVICE)")
	pf.IntVarP(&rootOpts.Baud, "baud", "b", envInt("GOPPER_BAUD", serial.DefaultBaud), "baud rate ($GOPPER_BAUD)")
	pf.DurationVarP(&rootOpts.Timeout, "timeout", "t", mcu.DefaultTimeout, "command timeout")
}

var (
	rootCmd = &cobra.Command{
		Use:   "gopper-host",
		Short: "gopper-host talks to a gopper MCU",
		Long:  "gopper-host reads the data dictionary of a gopper MCU, configures software SPI buses and sends raw commands.",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
		SilenceUsage: true,
	}
	rootOpts = struct {
		Device  string
		Baud    int
		Timeout time.Duration
	}{}

	// openPort is replaced in tests.
	openPort = func(cfg *serial.Config) (io.ReadWriteCloser, error) {
		return serial.Open(cfg)
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envString(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(name)); err == nil {
		return v
	}
	return def
}

// connect opens the device and reads its dictionary.
func connect() (*mcu.MCU, error) {
	cfg := serial.DefaultConfig(rootOpts.Device)
	cfg.Baud = rootOpts.Baud
	port, err := openPort(cfg)
	if err != nil {
		return nil, err
	}
	m := mcu.Attach(port)
	m.SetTimeout(rootOpts.Timeout)
	if _, err := m.RetrieveDictionary(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "gopper-host %s: %s\n", cmd.Name(), err)
}
