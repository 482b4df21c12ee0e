package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gopperh7/host/mcu"
)

func init() {
	f := swspiCmd.Flags()
	f.Uint8Var(&swspiOpts.OID, "oid", 0, "object id of the SPI device")
	f.StringVar(&swspiOpts.CS, "cs", "", "chip select pin, empty for none")
	f.BoolVar(&swspiOpts.CSActiveHigh, "cs-active-high", false, "assert chip select high")
	f.StringVar(&swspiOpts.MISO, "miso", "", "MISO pin")
	f.StringVar(&swspiOpts.MOSI, "mosi", "", "MOSI pin")
	f.StringVar(&swspiOpts.SCLK, "sclk", "", "SCLK pin")
	f.Uint8VarP(&swspiOpts.Mode, "mode", "m", 0, "SPI mode (0-3)")
	f.Uint32VarP(&swspiOpts.Rate, "rate", "r", 1000000, "clock rate in Hz")
	swspiCmd.MarkFlagRequired("miso")
	swspiCmd.MarkFlagRequired("mosi")
	swspiCmd.MarkFlagRequired("sclk")
	rootCmd.AddCommand(swspiCmd)
}

var (
	swspiCmd = &cobra.Command{
		Use:   "swspi --miso <pin> --mosi <pin> --sclk <pin> [flags]",
		Short: "Configure a bit-banged SPI bus",
		Long: `Configure a bit-banged SPI bus and device, then finalize the MCU config.
An MCU already finalized with the same bus is left alone.`,
		Args:                  cobra.NoArgs,
		RunE:                  swspi,
		DisableFlagsInUseLine: true,
	}
	swspiOpts = mcu.SoftwareSPI{}
)

func swspi(cmd *cobra.Command, args []string) error {
	m, err := connect()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.ConfigureSoftwareSPI(swspiOpts); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "spi oid=%d mode=%d rate=%d configured\n",
		swspiOpts.OID, swspiOpts.Mode, swspiOpts.Rate)
	return nil
}
