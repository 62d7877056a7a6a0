/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"github.com/allbin/go-serialhost/session"
	"github.com/spf13/cobra"
)

// dtrCmd represents the dtr command
var dtrCmd = &cobra.Command{
	Use:   "dtr <port> <state>",
	Short: "Control DTR (Data Terminal Ready) signal",
	Long: `Manually set the DTR (Data Terminal Ready) signal state.

The DTR signal indicates that the terminal is ready for communication.

Examples:
  serialhost dtr /dev/ttyUSB0 high
  serialhost dtr /dev/ttyUSB0 low
  serialhost dtr /dev/ttyUSB0 on
  serialhost dtr /dev/ttyUSB0 off

Valid states: high, low, on, off, true, false, 1, 0`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runSetLine(args[0], args[1], "DTR", (*session.Dispatcher).WriteDataTerminalReady, (*session.Dispatcher).ReadDataTerminalReady)
	},
}

func init() {
	rootCmd.AddCommand(dtrCmd)
}
