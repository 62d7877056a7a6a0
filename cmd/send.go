/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [data] <port>",
	Short: "Send data to a serial port",
	Long: `Send data to a serial port.

Data can be provided as:
- Command line argument: send "Hello World" /dev/ttyUSB0
- From stdin (pipe): echo "test data" | serialhost send /dev/ttyUSB0
- Interactive mode: serialhost send /dev/ttyUSB0 (prompts for input)

The data is written completely or the command fails. Use --newline to add a
line ending and --hex to give the data as hexadecimal bytes.

Example usage:
  serialhost send "Hello World" /dev/ttyUSB0
  serialhost send "AT+GMR" /dev/ttyUSB0 --newline
  serialhost send "48 65 6c 6c 6f" /dev/ttyUSB0 --hex
  echo "test" | serialhost send /dev/ttyUSB0`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		var data string
		var portPath string

		// Parse arguments: either "send data port" or "send port"
		if len(args) == 1 {
			portPath = args[0]
			stat, err := os.Stdin.Stat()
			if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
				data = promptForData()
			} else {
				stdinData, err := io.ReadAll(os.Stdin)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error reading from stdin: %v\n", err)
					os.Exit(1)
				}
				data = strings.TrimRight(string(stdinData), "\r\n")
			}
		} else {
			data = args[0]
			portPath = args[1]
		}

		baudRate, _ := cmd.Flags().GetInt("baud")
		addNewline, _ := cmd.Flags().GetBool("newline")
		hexMode, _ := cmd.Flags().GetBool("hex")

		payload := []byte(data)
		if hexMode {
			decoded, err := parseHexString(data)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid hex data: %v\n", err)
				os.Exit(1)
			}
			payload = decoded
		}

		if addNewline && !hexMode {
			payload = append(payload, '\n')
		}

		if err := sendData(portPath, baudRate, payload); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().IntP("baud", "b", 115200, "Baud rate")
	sendCmd.Flags().BoolP("newline", "n", false, "Add newline character to the end of data")
	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	sendCmd.Flags().Bool("sync", false, "Use synchronous writes (O_SYNC)")
	if err := v.BindPFlag("port.sync_write", sendCmd.Flags().Lookup("sync")); err != nil {
		panic(err)
	}
}

func promptForData() string {
	promptStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99"))

	fmt.Print(promptStyle.Render("Enter data to send: "))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

// parseHexString decodes hex bytes, ignoring whitespace and 0x prefixes
func parseHexString(hexStr string) ([]byte, error) {
	hexStr = strings.ReplaceAll(hexStr, "0x", "")
	hexStr = strings.ReplaceAll(hexStr, "0X", "")
	hexStr = strings.Join(strings.Fields(hexStr), "")

	if len(hexStr)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even length")
	}
	return hex.DecodeString(hexStr)
}

func sendData(portPath string, baud int, data []byte) error {
	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		Bold(true)

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("40")).
		Bold(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	fmt.Printf("%s Opening %s...\n", infoStyle.Render("⚡"), portPath)

	d, h, release, err := openSession(portPath, baud)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("✗"), err)
	}
	defer release()

	info, err := d.Info(h)
	if err != nil {
		return err
	}
	fmt.Printf("%s Connected as handle %d (session %s)\n", successStyle.Render("✓"), h, info.ID)

	fmt.Printf("%s Sending %d bytes...\n", infoStyle.Render("📤"), len(data))
	if err := d.WriteAll(h, data); err != nil {
		return fmt.Errorf("%s failed to send data: %w", errorStyle.Render("✗"), err)
	}

	// Let the kernel transmit before the port is closed
	if err := d.Drain(h); err != nil {
		return fmt.Errorf("%s failed to drain output: %w", errorStyle.Render("✗"), err)
	}
	fmt.Printf("%s Successfully sent %d bytes\n", successStyle.Render("✓"), len(data))

	fmt.Printf("%s Data: %s\n", infoStyle.Render("📋"), preview(data, 50))
	return nil
}

// preview returns the first limit bytes of data with non-printable bytes
// replaced for display
func preview(data []byte, limit int) string {
	suffix := ""
	if len(data) > limit {
		data = data[:limit]
		suffix = "..."
	}
	var b strings.Builder
	for _, c := range data {
		if c < 32 || c > 126 {
			b.WriteRune('·')
		} else {
			b.WriteByte(c)
		}
	}
	return b.String() + suffix
}
