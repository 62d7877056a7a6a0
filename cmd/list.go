/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/allbin/go-serialhost"
	"github.com/allbin/go-serialhost/wire"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available serial ports",
	Long: `List all available serial ports on the system.

Each port is classified by the bus it hangs off:
- USB: USB serial adapters and CDC/ACM devices, with vendor/product IDs
- PCI: on-board and PCI UARTs
- Bluetooth: RFCOMM ports
- Unknown: anything else

Use --json to print the same record list a host receives from
op_available_ports.`,
	Run: func(cmd *cobra.Command, args []string) {
		d, err := newDispatcher()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ports, err := d.ListPorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing ports: %v\n", err)
			os.Exit(1)
		}

		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")
		jsonFormat, _ := cmd.Flags().GetBool("json")

		filteredPorts, err := filterPorts(ports, filterType)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonFormat {
			out, err := wire.EncodePorts(filteredPorts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error encoding ports: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(out))
			return
		}

		if len(filteredPorts) == 0 {
			if filterType != "" && filterType != "all" {
				fmt.Printf("No serial ports found matching filter: %s\n", filterType)
			} else {
				fmt.Println("No serial ports found")
			}
			return
		}

		if tableFormat {
			renderTable(filteredPorts)
		} else {
			renderSimple(filteredPorts)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("filter", "f", "", "Filter by port type: usb, pci, bluetooth, unknown, all")
	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
	listCmd.Flags().BoolP("json", "j", false, "Print the port records as JSON")
}

// filterPorts keeps the ports of the requested kind
func filterPorts(ports []serial.PortInfo, filterType string) ([]serial.PortInfo, error) {
	var kind serial.PortKind
	switch strings.ToLower(filterType) {
	case "", "all":
		return ports, nil
	case "usb":
		kind = serial.KindUSB
	case "pci":
		kind = serial.KindPCI
	case "bluetooth", "bt":
		kind = serial.KindBluetooth
	case "unknown":
		kind = serial.KindUnknown
	default:
		return nil, fmt.Errorf("unknown filter %q (valid: usb, pci, bluetooth, unknown, all)", filterType)
	}

	filtered := []serial.PortInfo{}
	for _, p := range ports {
		if p.Kind == kind {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// renderTable renders the port list in a styled static table format
func renderTable(ports []serial.PortInfo) {
	fmt.Printf("Found %d serial port(s):\n\n", len(ports))

	portWidth := 16
	typeWidth := 10
	idWidth := 10
	descWidth := 30

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("240")).
		PaddingBottom(1)

	cellStyle := lipgloss.NewStyle().
		PaddingRight(2)

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s",
		portWidth, "Port",
		typeWidth, "Type",
		idWidth, "VID:PID",
		descWidth, "Description")
	fmt.Println(headerStyle.Render(header))

	for _, p := range ports {
		ids := "-"
		desc := p.Description
		if p.USB != nil {
			ids = fmt.Sprintf("%04x:%04x", p.USB.VendorID, p.USB.ProductID)
			if p.USB.Product != "" {
				desc = p.USB.Product
			}
		}
		row := fmt.Sprintf("%-*s %-*s %-*s %-*s",
			portWidth, p.Name,
			typeWidth, p.Kind,
			idWidth, ids,
			descWidth, desc)
		fmt.Println(cellStyle.Render(row))
	}
}

// renderSimple renders the port list in simple text format
func renderSimple(ports []serial.PortInfo) {
	for _, p := range ports {
		fmt.Println(p.Name)
	}
}
