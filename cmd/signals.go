/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/allbin/go-serialhost/session"
	"github.com/spf13/cobra"
)

// signalsCmd represents the signals command
var signalsCmd = &cobra.Command{
	Use:   "signals <port>",
	Short: "Display current modem signal states",
	Long: `Display the current state of the modem status lines.

Each line reads HIGH (asserted), LOW (not asserted) or ERR when the
device could not report it.

Examples:
  serialhost signals /dev/ttyUSB0
  serialhost signals /dev/ttyACM0

Signal meanings:
  CTS - Clear To Send (input)
  DSR - Data Set Ready (input)
  RI  - Ring Indicator (input)
  DCD - Data Carrier Detect (input)`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		portPath := args[0]
		baudRate, _ := cmd.Flags().GetInt("baud")

		d, h, release, err := openSession(portPath, baudRate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening port: %v\n", err)
			os.Exit(1)
		}
		defer release()

		fmt.Printf("Modem Signals for %s:\n\n", portPath)
		for _, line := range statusLines(d) {
			state, err := line.read(h)
			fmt.Printf("  %-4s(%s):%*s%s\n", line.name, line.long, 25-len(line.long), "", formatLineState(state))
			if err != nil {
				fmt.Fprintf(os.Stderr, "  %s: %v\n", line.name, err)
			}
		}
	},
}

// statusLine is one readable modem status line
type statusLine struct {
	name string
	long string
	read func(session.Handle) (session.LineState, error)
}

func statusLines(d *session.Dispatcher) []statusLine {
	return []statusLine{
		{"CTS", "Clear To Send", d.ReadClearToSend},
		{"DSR", "Data Set Ready", d.ReadDataSetReady},
		{"RI", "Ring Indicator", d.ReadRingIndicator},
		{"DCD", "Data Carrier Detect", d.ReadCarrierDetect},
	}
}

func formatLineState(state session.LineState) string {
	switch state {
	case session.LineAsserted:
		return "HIGH"
	case session.LineNotAsserted:
		return "LOW"
	default:
		return "ERR"
	}
}

func init() {
	rootCmd.AddCommand(signalsCmd)

	signalsCmd.Flags().IntP("baud", "b", 115200, "Baud rate")
}
