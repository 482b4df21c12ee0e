package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pinsCmd)
}

var pinsCmd = &cobra.Command{
	Use:   "pins",
	Short: "List the MCU's GPIO pins and their ids",
	Args:  cobra.NoArgs,
	RunE:  pins,
}

func pins(cmd *cobra.Command, args []string) error {
	m, err := connect()
	if err != nil {
		return err
	}
	defer m.Close()

	out := cmd.OutOrStdout()
	d := m.Dictionary()
	for _, name := range d.Pins() {
		id, _ := d.LookupPin(name)
		fmt.Fprintf(out, "%-5s %d\n", name, id)
	}
	return nil
}
