/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/allbin/go-serialhost/session"
	"github.com/spf13/cobra"
)

// rtsCmd represents the rts command
var rtsCmd = &cobra.Command{
	Use:   "rts <port> <state>",
	Short: "Control RTS (Request To Send) signal",
	Long: `Manually set the RTS (Request To Send) signal state.

The RTS signal can be used for software flow control or custom signaling.

Examples:
  serialhost rts /dev/ttyUSB0 high
  serialhost rts /dev/ttyUSB0 low
  serialhost rts /dev/ttyUSB0 on
  serialhost rts /dev/ttyUSB0 off

Valid states: high, low, on, off, true, false, 1, 0`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runSetLine(args[0], args[1], "RTS", (*session.Dispatcher).WriteRequestToSend, (*session.Dispatcher).ReadRequestToSend)
	},
}

// runSetLine drives one output line of portPath and reports the level read
// back from the port
func runSetLine(portPath, stateArg, name string,
	set func(*session.Dispatcher, session.Handle, bool) error,
	get func(*session.Dispatcher, session.Handle) (session.LineState, error)) {
	state, err := parseSignalState(stateArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	d, h, release, err := openSession(portPath, 115200)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening port: %v\n", err)
		os.Exit(1)
	}
	defer release()

	if err := set(d, h, state); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting %s: %v\n", name, err)
		os.Exit(1)
	}

	// Verify the state was set
	current, err := get(d, h)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not verify %s state: %v\n", name, err)
	}

	fmt.Printf("%s set to %s on %s\n", name, formatLineState(current), portPath)
}

func parseSignalState(state string) (bool, error) {
	switch strings.ToLower(state) {
	case "high", "on", "true", "1":
		return true, nil
	case "low", "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid state: %s (valid: high, low, on, off, true, false, 1, 0)", state)
	}
}

func init() {
	rootCmd.AddCommand(rtsCmd)
}
