package serial

import "time"

// WriteMode represents the write synchronization mode
type WriteMode int

const (
	WriteModeBuffered WriteMode = iota // Default: kernel buffers writes
	WriteModeSynced                    // O_SYNC: writes block until hardware transmission
)

// MaxReadTimeout is the longest read timeout termios can express (VTIME=255).
const MaxReadTimeout = 25500 * time.Millisecond

// Config holds the configuration for a serial port
type Config struct {
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      Parity
	FlowControl FlowControl
	ReadTimeout time.Duration // VTIME, whole tenths of a second; 0 returns immediately
	WriteMode   WriteMode     // Controls write synchronization behavior
	InitialRTS  *bool         // RTS level applied right after open, nil leaves it alone
	InitialDTR  *bool         // DTR level applied right after open, nil leaves it alone
	Exclusive   bool          // TIOCEXCL: refuse further opens of the device
}

// Option is a functional option for configuring a serial port
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaudRate:    115200,
		DataBits:    8,
		StopBits:    1,
		Parity:      ParityNone,
		FlowControl: FlowControlNone,
		ReadTimeout: 2500 * time.Millisecond,
		WriteMode:   WriteModeBuffered,
	}
}

// vtime returns the VTIME value for the configured read timeout.
func (c Config) vtime() uint8 {
	return uint8(c.ReadTimeout / (100 * time.Millisecond))
}

// WithBaudRate sets the baud rate
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if _, err := getBaudRate(rate); err != nil {
			return err
		}
		c.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(c *Config) error {
		if bits < 5 || bits > 8 {
			return ErrInvalidConfig
		}
		c.DataBits = bits
		return nil
	}
}

// WithStopBits sets the number of stop bits (1 or 2)
func WithStopBits(bits int) Option {
	return func(c *Config) error {
		if bits != 1 && bits != 2 {
			return ErrInvalidConfig
		}
		c.StopBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(c *Config) error {
		if parity < ParityNone || parity > ParitySpace {
			return ErrInvalidConfig
		}
		c.Parity = parity
		return nil
	}
}

// WithFlowControl sets the flow control mode
func WithFlowControl(fc FlowControl) Option {
	return func(c *Config) error {
		if fc != FlowControlNone && fc != FlowControlRTSCTS {
			return ErrInvalidConfig
		}
		c.FlowControl = fc
		return nil
	}
}

// WithReadTimeout sets how long a read waits for the first byte. The kernel
// counts in tenths of a second, so the timeout must be a multiple of 100ms
// no larger than MaxReadTimeout.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout < 0 || timeout > MaxReadTimeout || timeout%(100*time.Millisecond) != 0 {
			return ErrInvalidConfig
		}
		c.ReadTimeout = timeout
		return nil
	}
}

// WithSyncWrite enables synchronous writes (O_SYNC) for guaranteed transmission
func WithSyncWrite() Option {
	return func(c *Config) error {
		c.WriteMode = WriteModeSynced
		return nil
	}
}

// WithInitialRTS sets the RTS level applied when the port is opened
func WithInitialRTS(state bool) Option {
	return func(c *Config) error {
		c.InitialRTS = &state
		return nil
	}
}

// WithInitialDTR sets the DTR level applied when the port is opened
func WithInitialDTR(state bool) Option {
	return func(c *Config) error {
		c.InitialDTR = &state
		return nil
	}
}

// WithExclusive requests exclusive access to the tty
func WithExclusive() Option {
	return func(c *Config) error {
		c.Exclusive = true
		return nil
	}
}
