package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	transferCmd.Flags().Uint8Var(&transferOpts.OID, "oid", 0, "object id of the SPI device")
	transferCmd.Flags().BoolVarP(&transferOpts.Send, "send", "s", false, "write only, without reading the response")
	rootCmd.AddCommand(transferCmd)
}

var (
	transferCmd = &cobra.Command{
		Use:   "transfer [flags] <hex>...",
		Short: "Exchange bytes with a configured SPI device",
		Long:  "Exchange bytes with a configured SPI device. The hex arguments are joined, e.g. transfer 9f 0000.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  transfer,
	}
	transferOpts = struct {
		OID  uint8
		Send bool
	}{}
)

func transfer(cmd *cobra.Command, args []string) error {
	data, err := hex.DecodeString(strings.Join(args, ""))
	if err != nil {
		return errors.Wrap(err, "invalid hex")
	}

	m, err := connect()
	if err != nil {
		return err
	}
	defer m.Close()

	if transferOpts.Send {
		return m.SPISend(transferOpts.OID, data)
	}
	resp, err := m.SPITransfer(transferOpts.OID, data)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(resp))
	return nil
}
