/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/allbin/go-serialhost/wire"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run session operations read from stdin",
	Long: `Read one operation per line from stdin and print its result frame.

Each line is an operation name followed by its arguments, separated by
spaces. The op_serial_ prefix may be left out. Every result is printed as
a quoted frame: "+" followed by the result, or "!", an error code letter,
":" and the message.

All operations share one handle registry. Handles still open at end of
input are closed.

Example session:
  $ serialhost shell
  > available_ports
  +[{"name":"/dev/ttyUSB0","port_type":2,"usb_info":{...}}]
  > new /dev/ttyUSB0 115200
  +0
  > write_all 0 ATI\r\n
  +1
  > read_all 0
  +"OK\r\n"
  > close 0
  +1

With --hex the payload of write and write_all is given as hex bytes.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		hexMode, _ := cmd.Flags().GetBool("hex")

		d, err := newDispatcher()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		mux := wire.NewMux(d)

		runErr := runShell(os.Stdin, os.Stdout, mux, hexMode, isTerminal(os.Stdin))
		if err := d.CloseAll(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)

	shellCmd.Flags().BoolP("hex", "x", false, "Payload arguments of write and write_all are hex")
}

var (
	okStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("40"))
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// runShell executes every line of in against mux and writes one frame per
// line to out
func runShell(in io.Reader, out io.Writer, mux *wire.Mux, hexMode, prompt bool) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		if prompt {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		op := resolveOp(mux, fields[0])
		argv, err := shellArgs(op, fields[1:], hexMode)
		var frame []byte
		if err != nil {
			frame = []byte(fmt.Sprintf("!%c:%s: %v", byte(wire.CodeBadArgument), op, err))
		} else {
			frame = mux.Frame(op, argv...)
		}

		line := formatFrame(frame)
		if prompt {
			if frame[0] == '+' {
				line = okStyle.Render(line)
			} else {
				line = errStyle.Render(line)
			}
		}
		fmt.Fprintln(out, line)
	}
}

// resolveOp accepts an operation name with or without its op_serial_ or op_
// prefix
func resolveOp(mux *wire.Mux, name string) string {
	served := make(map[string]bool)
	for _, op := range mux.Ops() {
		served[op] = true
	}
	for _, candidate := range []string{name, "op_serial_" + name, "op_" + name} {
		if served[candidate] {
			return candidate
		}
	}
	return name
}

// shellArgs converts command line words to argument buffers. Escapes such as
// \r\n in payloads are interpreted.
func shellArgs(op string, words []string, hexMode bool) ([][]byte, error) {
	payload := op == wire.OpWrite || op == wire.OpWriteAll

	argv := make([][]byte, len(words))
	for i, w := range words {
		if payload && i == 1 {
			var b []byte
			var err error
			if hexMode {
				b, err = parseHexString(w)
			} else {
				b, err = unescape(w)
			}
			if err != nil {
				return nil, err
			}
			argv[i] = b
			continue
		}
		argv[i] = []byte(w)
	}
	return argv, nil
}

func unescape(s string) ([]byte, error) {
	if !strings.Contains(s, `\`) {
		return []byte(s), nil
	}
	u, err := strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
	if err != nil {
		return nil, fmt.Errorf("invalid escape in %q", s)
	}
	return []byte(u), nil
}

// formatFrame prints success bodies as text when they are printable and
// quoted otherwise
func formatFrame(frame []byte) string {
	body := string(frame[1:])
	if frame[0] == '+' && !isPrintable(body) {
		return "+" + strconv.Quote(body)
	}
	return string(frame[0]) + body
}

func isPrintable(s string) bool {
	for _, r := range s {
		if !strconv.IsPrint(r) {
			return false
		}
	}
	return true
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd())
}
