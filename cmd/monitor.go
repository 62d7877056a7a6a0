/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/allbin/go-serialhost/session"
	"github.com/spf13/cobra"
)

var (
	monitorSignals  []string
	monitorInterval time.Duration
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <port>",
	Short: "Monitor modem signal changes",
	Long: `Monitor modem status line changes.

Polls the selected lines and reports when one changes state. Press Ctrl+C
to stop.

Examples:
  serialhost monitor /dev/ttyUSB0
  serialhost monitor /dev/ttyUSB0 --signals cts,dsr
  serialhost monitor /dev/ttyUSB0 --signals dcd --interval 50ms

Available signals: cts, dsr, ri, dcd`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		portPath := args[0]

		d, h, release, err := openSession(portPath, 115200)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening port: %v\n", err)
			os.Exit(1)
		}
		defer release()

		lines, err := selectLines(statusLines(d), monitorSignals)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing signals: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Monitoring signals on %s (signals: %s)\n", portPath, strings.Join(monitorSignals, ", "))
		fmt.Println("Press Ctrl+C to stop")

		if err := runMonitor(ctx, h, lines, monitorInterval); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	},
}

func selectLines(all []statusLine, names []string) ([]statusLine, error) {
	if len(names) == 0 {
		return all, nil
	}

	var selected []statusLine
	for _, name := range names {
		found := false
		for _, line := range all {
			if strings.EqualFold(line.name, name) {
				selected = append(selected, line)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown signal: %s (valid: cts, dsr, ri, dcd)", name)
		}
	}
	return selected, nil
}

// runMonitor polls lines until ctx is done. A handle that is no longer open
// ends the loop; device failures are reported as ERR states.
func runMonitor(ctx context.Context, h session.Handle, lines []statusLine, interval time.Duration) error {
	previous := make([]session.LineState, len(lines))
	for i, line := range lines {
		state, err := line.read(h)
		if session.IsUnknownHandle(err) {
			return err
		}
		previous[i] = state
	}
	printLineStates("Initial state", lines, previous, nil)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopping monitor...")
			return nil
		case <-ticker.C:
		}

		current := make([]session.LineState, len(lines))
		changed := make([]bool, len(lines))
		anyChanged := false
		for i, line := range lines {
			state, err := line.read(h)
			if session.IsUnknownHandle(err) {
				return err
			}
			current[i] = state
			if state != previous[i] {
				changed[i] = true
				anyChanged = true
			}
		}
		if anyChanged {
			printLineStates("Signal change detected", lines, current, changed)
		}
		previous = current
	}
}

func printLineStates(title string, lines []statusLine, states []session.LineState, only []bool) {
	fmt.Printf("[%s] %s:\n", time.Now().Format("15:04:05"), title)
	for i, line := range lines {
		if only != nil && !only[i] {
			continue
		}
		fmt.Printf("  %-4s %s\n", line.name+":", formatLineState(states[i]))
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringSliceVarP(&monitorSignals, "signals", "s", []string{"cts", "dsr", "ri", "dcd"},
		"Signals to monitor (comma-separated: cts,dsr,ri,dcd)")
	monitorCmd.Flags().DurationVarP(&monitorInterval, "interval", "i", 100*time.Millisecond,
		"Polling interval")
}
