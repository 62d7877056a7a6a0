/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/allbin/go-serialhost"
	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Display detailed information about a serial port",
	Long: `Display detailed information about a serial port including USB metadata.

Examples:
  serialhost info /dev/ttyUSB0
  serialhost info /dev/ttyACM0

For USB devices, this displays vendor/product IDs, serial numbers, interface
numbers, and other USB-specific metadata extracted from sysfs.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		portPath := args[0]

		info, err := serial.GetPortInfo(portPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting port info: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Port Information: %s\n\n", info.Name)
		fmt.Printf("  Type:        %s\n", info.Kind)
		fmt.Printf("  Description: %s\n", info.Description)

		if usb := info.USB; usb != nil {
			fmt.Println("\nUSB Device Information:")
			fmt.Printf("  Vendor ID:    %04x\n", usb.VendorID)
			fmt.Printf("  Product ID:   %04x\n", usb.ProductID)
			if usb.SerialNumber != "" {
				fmt.Printf("  Serial:       %s\n", usb.SerialNumber)
			}
			if info.InterfaceNumber != "" {
				fmt.Printf("  Interface:    %s\n", info.InterfaceNumber)
			}
			if info.BusNumber != "" {
				fmt.Printf("  Bus:          %s\n", info.BusNumber)
			}
			if info.DeviceNumber != "" {
				fmt.Printf("  Device:       %s\n", info.DeviceNumber)
			}
			if usb.Manufacturer != "" {
				fmt.Printf("  Manufacturer: %s\n", usb.Manufacturer)
			}
			if usb.Product != "" {
				fmt.Printf("  Product:      %s\n", usb.Product)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
