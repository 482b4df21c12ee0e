package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"gopperh7/host/mcu"
)

func init() {
	consoleCmd.Flags().BoolVarP(&consoleOpts.Quiet, "quiet", "q", false, "don't print responses")
	rootCmd.AddCommand(consoleCmd)
}

var (
	consoleCmd = &cobra.Command{
		Use:   "console",
		Short: "Send raw commands interactively",
		Long: `Send raw commands interactively, one per line, as "name param=value ...".
Integers accept 0x prefixes, byte strings take hex and pin params take pin names.
Responses are printed as they arrive.`,
		Args: cobra.NoArgs,
		RunE: console,
	}
	consoleOpts = struct {
		Quiet bool
	}{}
)

const consoleHelp = `commands:
  help             this text
  list             list MCU commands
  pins             list pins
  quit             leave the console
  <name> [p=v...]  send an MCU command
`

// lockedWriter serializes the prompt loop and the response callback.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func console(cmd *cobra.Command, args []string) error {
	m, err := connect()
	if err != nil {
		return err
	}
	defer m.Close()

	out := &lockedWriter{w: cmd.OutOrStdout()}
	if !consoleOpts.Quiet {
		m.OnResponse(func(r *mcu.Response) {
			fmt.Fprintln(out, r)
		})
	}
	return runConsole(cmd, m, cmd.InOrStdin(), out)
}

func runConsole(cmd *cobra.Command, m *mcu.MCU, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		fields, err := shlex.Split(scanner.Text())
		if err != nil {
			logErr(cmd, err)
			continue
		}
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprint(out, consoleHelp)
		case "list":
			d := m.Dictionary()
			for _, name := range d.CommandNames() {
				f, _ := d.Command(name)
				fmt.Fprintln(out, f.Text)
			}
		case "pins":
			fmt.Fprintln(out, strings.Join(m.Dictionary().Pins(), " "))
		default:
			if err := m.SendFields(fields); err != nil {
				logErr(cmd, err)
			}
		}
	}
}
