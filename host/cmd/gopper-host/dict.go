package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"gopperh7/host/mcu"
)

func init() {
	dictCmd.Flags().BoolVarP(&dictOpts.JSON, "json", "j", false, "print the raw dictionary JSON")
	rootCmd.AddCommand(dictCmd)
}

var (
	dictCmd = &cobra.Command{
		Use:   "dict",
		Short: "Print the MCU data dictionary",
		Args:  cobra.NoArgs,
		RunE:  dict,
	}
	dictOpts = struct {
		JSON bool
	}{}
)

func dict(cmd *cobra.Command, args []string) error {
	m, err := connect()
	if err != nil {
		return err
	}
	defer m.Close()

	out := cmd.OutOrStdout()
	if dictOpts.JSON {
		fmt.Fprintln(out, string(m.Dictionary().JSON()))
		return nil
	}
	printDictionary(out, m.Dictionary())
	return nil
}

func printDictionary(w io.Writer, d *mcu.Dictionary) {
	fmt.Fprintf(w, "version: %s\n", d.Version)
	fmt.Fprintf(w, "build: %s\n", d.BuildVersions)

	fmt.Fprintln(w, "config:")
	for _, k := range sortedKeys(d.Config) {
		fmt.Fprintf(w, "  %s = %s\n", k, d.Config[k])
	}

	fmt.Fprintf(w, "commands (%d):\n", len(d.Commands))
	printIDs(w, d.Commands)
	fmt.Fprintf(w, "responses (%d):\n", len(d.Responses))
	printIDs(w, d.Responses)

	if len(d.Enumerations) > 0 {
		fmt.Fprintln(w, "enumerations:")
		for _, k := range sortedKeys(d.Enumerations) {
			fmt.Fprintf(w, "  %s: %d values\n", k, len(d.Enumerations[k]))
		}
	}
}

func printIDs(w io.Writer, ids map[string]int) {
	formats := make([]string, 0, len(ids))
	for f := range ids {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return ids[formats[i]] < ids[formats[j]] })
	for _, f := range formats {
		fmt.Fprintf(w, "  [%d] %s\n", ids[f], f)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
