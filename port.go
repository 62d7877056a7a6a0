package serial

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Port represents a serial port connection interface
type Port interface {
	Close() error
	Read(buf []byte) (int, error)
	Write(data []byte) (int, error)

	// Line configuration
	BaudRate() int
	SetBaudRate(rate int) error
	SetBreak() error
	ClearBreak() error

	// Kernel queue state
	BytesToRead() (int, error)
	BytesToWrite() (int, error)
	Drain() error
	FlushInput() error
	FlushOutput() error
	Flush() error

	// Modem signal control and monitoring
	GetModemSignals() (ModemSignals, error)
	GetCTSStatus() (bool, error)
	SetRTS(state bool) error
	SetDTR(state bool) error
}

// port is the concrete implementation of the Port interface
type port struct {
	mu     sync.RWMutex
	fd     int
	device string
	config Config
	closed bool
}

// Ensure port implements Port interface at compile time
var _ Port = (*port)(nil)

// FlowControl represents the flow control mode
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlRTSCTS
)

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

// ModemSignals represents modem control signal states
type ModemSignals struct {
	CTS bool // Clear To Send
	DSR bool // Data Set Ready
	RI  bool // Ring Indicator
	DCD bool // Data Carrier Detect
	RTS bool // Request To Send
	DTR bool // Data Terminal Ready
}

// getBaudRate converts an integer baud rate to the unix constant
func getBaudRate(rate int) (uint32, error) {
	switch rate {
	case 50:
		return unix.B50, nil
	case 75:
		return unix.B75, nil
	case 110:
		return unix.B110, nil
	case 134:
		return unix.B134, nil
	case 150:
		return unix.B150, nil
	case 200:
		return unix.B200, nil
	case 300:
		return unix.B300, nil
	case 600:
		return unix.B600, nil
	case 1200:
		return unix.B1200, nil
	case 1800:
		return unix.B1800, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 500000:
		return unix.B500000, nil
	case 576000:
		return unix.B576000, nil
	case 921600:
		return unix.B921600, nil
	case 1000000:
		return unix.B1000000, nil
	case 1152000:
		return unix.B1152000, nil
	case 1500000:
		return unix.B1500000, nil
	case 2000000:
		return unix.B2000000, nil
	case 2500000:
		return unix.B2500000, nil
	case 3000000:
		return unix.B3000000, nil
	case 3500000:
		return unix.B3500000, nil
	case 4000000:
		return unix.B4000000, nil
	default:
		return 0, ErrInvalidBaudRate
	}
}

// getModemStatus retrieves modem control signals using unix package
func getModemStatus(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCMGET)
}

// setModemBit raises or drops one TIOCM_* line. TIOCMBIS/TIOCMBIC take a
// pointer to the bit mask.
func setModemBit(fd int, bit int, state bool) error {
	if state {
		return unix.IoctlSetPointerInt(fd, unix.TIOCMBIS, bit)
	}
	return unix.IoctlSetPointerInt(fd, unix.TIOCMBIC, bit)
}

// decodeModemStatus converts a TIOCMGET bit set to ModemSignals
func decodeModemStatus(status int) ModemSignals {
	return ModemSignals{
		CTS: status&unix.TIOCM_CTS != 0,
		DSR: status&unix.TIOCM_DSR != 0,
		RI:  status&unix.TIOCM_RI != 0,
		DCD: status&unix.TIOCM_CAR != 0,
		RTS: status&unix.TIOCM_RTS != 0,
		DTR: status&unix.TIOCM_DTR != 0,
	}
}

// Open opens a serial port with the given device path and options
func Open(device string, opts ...Option) (Port, error) {
	// Apply default configuration
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, err
		}
	}

	// O_NONBLOCK keeps open from waiting on carrier detect; blocking mode is
	// restored once the line is configured.
	flags := unix.O_RDWR | unix.O_NOCTTY | unix.O_NONBLOCK | unix.O_CLOEXEC
	if config.WriteMode == WriteModeSynced {
		flags |= unix.O_SYNC
	}

	fd, err := unix.Open(device, flags, 0)
	if err != nil {
		return nil, classifyOpenError(device, err)
	}

	p := &port{
		fd:     fd,
		device: device,
		config: config,
	}
	if err := p.setup(); err != nil {
		unix.Close(fd)
		return nil, err
	}

	return p, nil
}

// setup brings a freshly opened descriptor into the configured state
func (p *port) setup() error {
	if p.config.Exclusive {
		if err := unix.IoctlSetInt(p.fd, unix.TIOCEXCL, 0); err != nil {
			return fmt.Errorf("failed to get exclusive access to %s: %w", p.device, err)
		}
	}

	if err := configurePort(p.fd, p.config); err != nil {
		return err
	}

	if err := unix.SetNonblock(p.fd, false); err != nil {
		return fmt.Errorf("failed to set blocking mode: %w", err)
	}

	// Apply initial signal states if configured
	if p.config.InitialRTS != nil {
		if err := setModemBit(p.fd, unix.TIOCM_RTS, *p.config.InitialRTS); err != nil {
			return fmt.Errorf("failed to set initial RTS: %w", err)
		}
	}
	if p.config.InitialDTR != nil {
		if err := setModemBit(p.fd, unix.TIOCM_DTR, *p.config.InitialDTR); err != nil {
			return fmt.Errorf("failed to set initial DTR: %w", err)
		}
	}
	return nil
}

// configurePort puts the line into raw mode with the configured framing
func configurePort(fd int, config Config) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}

	// Raw mode, receiver on, modem control lines ignored
	termios.Cflag = unix.CREAD | unix.CLOCAL
	termios.Iflag = 0
	termios.Oflag = 0
	termios.Lflag = 0

	// VMIN=0 with VTIME from config: a read returns as soon as any data is
	// available, or with zero bytes once the timeout expires.
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = config.vtime()

	if err := setSpeed(termios, config.BaudRate); err != nil {
		return err
	}

	switch config.DataBits {
	case 5:
		termios.Cflag |= unix.CS5
	case 6:
		termios.Cflag |= unix.CS6
	case 7:
		termios.Cflag |= unix.CS7
	default:
		termios.Cflag |= unix.CS8
	}

	if config.StopBits == 2 {
		termios.Cflag |= unix.CSTOPB
	}

	switch config.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	case ParityMark:
		termios.Cflag |= unix.PARENB | unix.PARODD | unix.CMSPAR
	case ParitySpace:
		termios.Cflag |= unix.PARENB | unix.CMSPAR
	}

	if config.FlowControl == FlowControlRTSCTS {
		termios.Cflag |= unix.CRTSCTS
	}

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}
	return nil
}

// setSpeed writes the baud rate into both speed fields of termios
func setSpeed(termios *unix.Termios, rate int) error {
	baudRate, err := getBaudRate(rate)
	if err != nil {
		return err
	}
	termios.Cflag = (termios.Cflag &^ unix.CBAUD) | baudRate
	termios.Ispeed = baudRate
	termios.Ospeed = baudRate
	return nil
}

// Close closes the serial port
func (p *port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}

	err := unix.Close(p.fd)
	p.closed = true
	return err
}

// Read reads data from the serial port. A return of zero bytes with a nil
// error means the read timeout expired without data.
func (p *port) Read(buf []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	for {
		n, err := unix.Read(p.fd, buf)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// Write writes data to the serial port
func (p *port) Write(data []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	for {
		n, err := unix.Write(p.fd, data)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// BaudRate returns the baud rate currently in effect
func (p *port) BaudRate() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.BaudRate
}

// SetBaudRate changes the line speed of an open port
func (p *port) SetBaudRate(rate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}

	termios, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}
	if err := setSpeed(termios, rate); err != nil {
		return err
	}
	// TCSETSW lets pending output leave at the old speed first
	if err := unix.IoctlSetTermios(p.fd, unix.TCSETSW, termios); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}

	p.config.BaudRate = rate
	return nil
}

// SetBreak starts transmitting a continuous break condition
func (p *port) SetBreak() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	return unix.IoctlSetInt(p.fd, unix.TIOCSBRK, 0)
}

// ClearBreak stops transmitting a break condition
func (p *port) ClearBreak() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	return unix.IoctlSetInt(p.fd, unix.TIOCCBRK, 0)
}

// BytesToRead returns the number of bytes waiting in the input queue
func (p *port) BytesToRead() (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	return unix.IoctlGetInt(p.fd, unix.TIOCINQ)
}

// BytesToWrite returns the number of bytes not yet transmitted
func (p *port) BytesToWrite() (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	return unix.IoctlGetInt(p.fd, unix.TIOCOUTQ)
}

// GetCTSStatus returns the current CTS status
func (p *port) GetCTSStatus() (bool, error) {
	signals, err := p.GetModemSignals()
	if err != nil {
		return false, err
	}
	return signals.CTS, nil
}

// GetModemSignals returns current state of all modem control signals
func (p *port) GetModemSignals() (ModemSignals, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ModemSignals{}, ErrPortClosed
	}

	status, err := getModemStatus(p.fd)
	if err != nil {
		return ModemSignals{}, err
	}
	return decodeModemStatus(status), nil
}

// SetRTS manually sets the RTS signal state
// When true, asserts RTS (signals readiness to receive)
// When false, deasserts RTS (signals not ready)
func (p *port) SetRTS(state bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	return setModemBit(p.fd, unix.TIOCM_RTS, state)
}

// SetDTR sets the DTR signal state
func (p *port) SetDTR(state bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	return setModemBit(p.fd, unix.TIOCM_DTR, state)
}

// Drain waits until all output written to the port has been transmitted
func (p *port) Drain() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	return unix.IoctlSetInt(p.fd, unix.TCSBRK, 1)
}

// FlushInput discards any unread input data
func (p *port) FlushInput() error {
	return p.flush(unix.TCIFLUSH)
}

// FlushOutput discards any unwritten output data
func (p *port) FlushOutput() error {
	return p.flush(unix.TCOFLUSH)
}

// Flush discards both unread input and unwritten output
func (p *port) Flush() error {
	return p.flush(unix.TCIOFLUSH)
}

func (p *port) flush(queue int) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	return unix.IoctlSetInt(p.fd, unix.TCFLSH, queue)
}
