// Package serial provides the Linux serial port resource and port discovery
// used by serialhost sessions.
//
// Ports are opened in raw mode with a bounded read timeout, so a read
// returns as soon as data arrives and returns zero bytes when the timeout
// passes without any. Hosts normally drive ports through the session
// package, which assigns handles and serializes access; this package can
// also be used on its own.
//
// # Basic Usage
//
// Open a serial port with default configuration (115200 8N1, no flow control,
// 2.5s read timeout):
//
//	port, err := serial.Open("/dev/ttyUSB0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	n, err := port.Write([]byte("Hello"))
//	buffer := make([]byte, 256)
//	n, err = port.Read(buffer)
//
// # Configuration Options
//
// Use functional options for custom configuration:
//
//	port, err := serial.Open("/dev/ttyUSB0",
//	    serial.WithBaudRate(9600),
//	    serial.WithParity(serial.ParityEven),
//	    serial.WithFlowControl(serial.FlowControlRTSCTS),
//	    serial.WithReadTimeout(500*time.Millisecond),
//	    serial.WithInitialDTR(true),
//	)
//
// The baud rate can be changed on an open port with SetBaudRate. Only the
// standard termios rates are accepted.
//
// # Port Discovery
//
// ListPortDetails classifies every serial device by bus and reports USB
// identifiers where they exist:
//
//	ports, err := serial.ListPortDetails()
//	for _, p := range ports {
//	    fmt.Printf("%s %s\n", p.Name, p.Kind)
//	    if p.USB != nil {
//	        fmt.Printf("  %04x:%04x %s\n", p.USB.VendorID, p.USB.ProductID, p.USB.SerialNumber)
//	    }
//	}
//
// # Modem Lines
//
//	signals, err := port.GetModemSignals()
//	fmt.Printf("CTS=%v DSR=%v DCD=%v RI=%v\n",
//	    signals.CTS, signals.DSR, signals.DCD, signals.RI)
//
//	err = port.SetRTS(true)
//	err = port.SetDTR(false)
//	err = port.SetBreak()
//	err = port.ClearBreak()
//
// # Kernel Queues
//
// BytesToRead and BytesToWrite report the kernel queue sizes; FlushInput,
// FlushOutput and Flush discard them.
//
// # Errors
//
// Open classifies failures with sentinel errors while keeping the errno:
//
//	port, err := serial.Open("/dev/ttyUSB0")
//	switch {
//	case errors.Is(err, serial.ErrDeviceNotFound):
//	case errors.Is(err, serial.ErrPermissionDenied):
//	case errors.Is(err, serial.ErrDeviceInUse):
//	}
//
// Operations on a closed port return ErrPortClosed.
//
// # Platform Support
//
// Linux only: x86_64 (amd64), ARM64 (aarch64), ARMv7.
package serial
