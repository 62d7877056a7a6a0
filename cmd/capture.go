/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/allbin/go-serialhost/session"
	"github.com/spf13/cobra"
)

const idlePause = 10 * time.Millisecond

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture <port> <output-file>",
	Short: "Capture serial data to a file",
	Long: `Capture incoming serial data to a file for later parsing.

Drains the port's input in read_all batches and appends them to the
output file. Runs until interrupted (Ctrl+C) or until --duration elapses.

The output file is opened in append mode, allowing you to resume captures
without overwriting existing data.

Example usage:
  serialhost capture /dev/ttyUSB0 data.log
  serialhost capture /dev/ttyUSB0 output.txt --baud 9600
  serialhost capture /dev/ttyUSB0 capture.log --console --duration 1m`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		portPath := args[0]
		outputPath := args[1]

		baudRate, _ := cmd.Flags().GetInt("baud")
		showConsole, _ := cmd.Flags().GetBool("console")
		duration, _ := cmd.Flags().GetDuration("duration")

		if err := runCapture(portPath, outputPath, baudRate, duration, showConsole); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().IntP("baud", "b", 115200, "Baud rate")
	captureCmd.Flags().BoolP("console", "c", false, "Display incoming data on console while capturing")
	captureCmd.Flags().DurationP("duration", "d", 0, "Stop after this long (0 = until interrupted)")
}

func runCapture(portPath, outputPath string, baud int, duration time.Duration, showConsole bool) error {
	d, h, release, err := openSession(portPath, baud)
	if err != nil {
		return fmt.Errorf("failed to open port: %w", err)
	}
	defer release()

	file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer file.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	fmt.Fprintf(os.Stderr, "Capturing data from %s to %s\n", portPath, outputPath)
	if showConsole {
		fmt.Fprintf(os.Stderr, "Console display enabled\n")
	}
	fmt.Fprintf(os.Stderr, "Press Ctrl+C to stop\n\n")

	var out io.Writer = file
	if showConsole {
		out = io.MultiWriter(file, os.Stdout)
	}

	startTime := time.Now()
	written, err := captureLoop(ctx, d, h, out)
	fmt.Fprintf(os.Stderr, "\nCapture complete: %d bytes written in %v\n", written, time.Since(startTime).Round(time.Millisecond))
	return err
}

// captureLoop copies everything read from h to out until ctx is done. Each
// ReadAll returns once the port's read timeout passes without data, so
// cancellation is noticed within one timeout.
func captureLoop(ctx context.Context, d *session.Dispatcher, h session.Handle, out io.Writer) (int64, error) {
	var total int64
	for ctx.Err() == nil {
		data, err := d.ReadAll(h)
		if err != nil {
			return total, fmt.Errorf("read error: %w", err)
		}
		if len(data) == 0 {
			// A zero read timeout returns immediately
			select {
			case <-ctx.Done():
			case <-time.After(idlePause):
			}
			continue
		}
		n, err := out.Write(data)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("write error: %w", err)
		}
	}
	return total, nil
}
