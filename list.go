package serial

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortKind classifies the bus a serial device hangs off
type PortKind int

// The numeric values are part of the enumeration wire format.
const (
	KindPCI       PortKind = 1
	KindUSB       PortKind = 2
	KindBluetooth PortKind = 3
	KindUnknown   PortKind = 4
)

func (k PortKind) String() string {
	switch k {
	case KindPCI:
		return "PCI"
	case KindUSB:
		return "USB"
	case KindBluetooth:
		return "Bluetooth"
	default:
		return "Unknown"
	}
}

// USBInfo holds the identifiers of a USB serial adapter
type USBInfo struct {
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
	Manufacturer string
	Product      string
}

// PortInfo describes one serial device found on the system
type PortInfo struct {
	Name        string // Device path, e.g. /dev/ttyUSB0
	Description string
	Kind        PortKind
	USB         *USBInfo // Set iff Kind == KindUSB

	// sysfs location of USB devices, empty otherwise
	InterfaceNumber string
	BusNumber       string
	DeviceNumber    string
}

var (
	// sysfsRoot is swapped out by tests
	sysfsRoot = "/sys"

	// detailedPortsList is the OS enumeration primitive
	detailedPortsList = enumerator.GetDetailedPortsList
)

// Regular expressions for different types of serial devices
var serialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters
	regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM devices
	regexp.MustCompile(`^ttyS\d+$`),   // Standard serial ports
	regexp.MustCompile(`^ttyAMA\d+$`), // ARM/Raspberry Pi serial
	regexp.MustCompile(`^ttymxc\d+$`), // i.MX serial ports
	regexp.MustCompile(`^ttyO\d+$`),   // OMAP serial ports
	regexp.MustCompile(`^ttySAC\d+$`), // Samsung serial ports
	regexp.MustCompile(`^ttyTHS\d+$`), // Tegra serial ports
	regexp.MustCompile(`^rfcomm\d+$`), // Bluetooth RFCOMM
}

// Exclude patterns for virtual terminals and other non-serial devices
var excludePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^tty\d+$`),  // Virtual terminals (tty1, tty2, etc.)
	regexp.MustCompile(`^console$`), // Console
	regexp.MustCompile(`^ptmx$`),    // Pseudo-terminal multiplexer
	regexp.MustCompile(`^pty.*$`),   // Pseudo-terminals
	regexp.MustCompile(`^pts/.*$`),  // Pseudo-terminal slaves
}

func matchesSerialPattern(name string) bool {
	for _, pattern := range excludePatterns {
		if pattern.MatchString(name) {
			return false
		}
	}
	for _, pattern := range serialPatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// ListPorts returns the device paths of serial ports on the system.
// Filters for communication-capable devices and excludes virtual terminals.
func ListPorts() ([]string, error) {
	return listPortsIn("/dev")
}

func listPortsIn(devDir string) ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, entry := range entries {
		if !matchesSerialPattern(entry.Name()) {
			continue
		}
		fullPath := filepath.Join(devDir, entry.Name())
		// Verify it's a character device (not a directory or regular file)
		if isCharacterDevice(fullPath) {
			ports = append(ports, fullPath)
		}
	}

	// Sort the ports for consistent ordering
	sort.Strings(ports)

	return ports, nil
}

// ListPortDetails enumerates serial devices together with their bus
// classification and USB identifiers. No devices is an empty slice, not an
// error; only a failing OS query is reported.
func ListPortDetails() ([]PortInfo, error) {
	details, err := detailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		ports = append(ports, describePort(d))
	}
	return ports, nil
}

// describePort builds a PortInfo from enumerator output and sysfs
func describePort(d *enumerator.PortDetails) PortInfo {
	name := filepath.Base(d.Name)
	info := PortInfo{
		Name:        d.Name,
		Description: getPortDescription(name),
		Kind:        classifyPort(name, d.IsUSB),
	}

	if info.Kind == KindUSB {
		enrichUSBInfo(&info)
		usb := info.USB
		// The enumerator knows VID/PID on every platform; prefer it over sysfs.
		if v, ok := parseHexID(d.VID); ok {
			usb.VendorID = v
		}
		if p, ok := parseHexID(d.PID); ok {
			usb.ProductID = p
		}
		if d.SerialNumber != "" {
			usb.SerialNumber = d.SerialNumber
		}
		if d.Product != "" {
			usb.Product = d.Product
		}
	}
	return info
}

// classifyPort decides the bus of a tty from its sysfs subsystem
func classifyPort(name string, isUSB bool) PortKind {
	if isUSB {
		return KindUSB
	}
	if strings.HasPrefix(name, "rfcomm") {
		return KindBluetooth
	}
	switch ttySubsystem(name) {
	case "usb", "usb-serial":
		return KindUSB
	case "pci":
		return KindPCI
	case "bluetooth":
		return KindBluetooth
	default:
		return KindUnknown
	}
}

// ttySubsystem returns the subsystem of the device behind a tty, e.g. "pci"
func ttySubsystem(name string) string {
	link := filepath.Join(sysfsRoot, "class", "tty", name, "device", "subsystem")
	target, err := filepath.EvalSymlinks(link)
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}

func parseHexID(s string) (uint16, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	mode := info.Mode()
	return mode&os.ModeCharDevice != 0
}

// GetPortInfo returns detailed information about a specific port
func GetPortInfo(portPath string) (*PortInfo, error) {
	if !isCharacterDevice(portPath) {
		return nil, ErrDeviceNotFound
	}

	name := filepath.Base(portPath)
	isUSB := strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM")

	info := &PortInfo{
		Name:        portPath,
		Description: getPortDescription(name),
		Kind:        classifyPort(name, isUSB),
	}
	if info.Kind == KindUSB {
		enrichUSBInfo(info)
	}

	return info, nil
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial Port"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung Serial Port"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra Serial Port"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	case strings.HasPrefix(name, "rfcomm"):
		return "Bluetooth RFCOMM Port"
	default:
		return "Serial Port"
	}
}

// enrichUSBInfo reads USB metadata from sysfs. The tty's device link points
// at the USB interface; its parent directory is the USB device holding
// idVendor, idProduct and the string descriptors. Missing files leave the
// corresponding fields empty.
func enrichUSBInfo(info *PortInfo) {
	usb := &USBInfo{}
	info.USB = usb

	name := filepath.Base(info.Name)
	devicePath := filepath.Join(sysfsRoot, "class", "tty", name, "device")
	resolvedPath, err := filepath.EvalSymlinks(devicePath)
	if err != nil {
		return
	}

	// ttyUSB devices sit one level below the interface (usb-serial port node)
	interfacePath := resolvedPath
	if readSysfsFile(filepath.Join(interfacePath, "bInterfaceNumber")) == "" {
		interfacePath = filepath.Dir(resolvedPath)
	}
	info.InterfaceNumber = readSysfsFile(filepath.Join(interfacePath, "bInterfaceNumber"))

	usbDevicePath := filepath.Dir(interfacePath)
	if v, ok := parseHexID(readSysfsFile(filepath.Join(usbDevicePath, "idVendor"))); ok {
		usb.VendorID = v
	}
	if p, ok := parseHexID(readSysfsFile(filepath.Join(usbDevicePath, "idProduct"))); ok {
		usb.ProductID = p
	}
	usb.SerialNumber = readSysfsFile(filepath.Join(usbDevicePath, "serial"))
	usb.Manufacturer = readSysfsFile(filepath.Join(usbDevicePath, "manufacturer"))
	usb.Product = readSysfsFile(filepath.Join(usbDevicePath, "product"))
	info.BusNumber = readSysfsFile(filepath.Join(usbDevicePath, "busnum"))
	info.DeviceNumber = readSysfsFile(filepath.Join(usbDevicePath, "devnum"))
}

// readSysfsFile returns the trimmed content of a sysfs attribute, or "" if
// it cannot be read
func readSysfsFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
