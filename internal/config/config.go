// Package config loads serialhost settings from a config file, the
// environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/allbin/go-serialhost"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. SERIALHOST_LOG_LEVEL
const EnvPrefix = "SERIALHOST"

// DefaultName is the config file name searched for in the home directory
const DefaultName = ".serialhost"

// Config is the complete serialhost configuration
type Config struct {
	Log  LogConfig  `mapstructure:"log"`
	Port PortConfig `mapstructure:"port"`
}

// LogConfig selects where and how much to log
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
	Output string `mapstructure:"output"` // stderr, stdout or a file path
}

// PortConfig holds the framing applied to every port a session opens. The
// baud rate is chosen per open.
type PortConfig struct {
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	FlowControl string        `mapstructure:"flow_control"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	Exclusive   bool          `mapstructure:"exclusive"`
	SyncWrite   bool          `mapstructure:"sync_write"`
}

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	def := serial.DefaultConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("port.data_bits", def.DataBits)
	v.SetDefault("port.stop_bits", def.StopBits)
	v.SetDefault("port.parity", "none")
	v.SetDefault("port.flow_control", "none")
	v.SetDefault("port.read_timeout", def.ReadTimeout)
	v.SetDefault("port.exclusive", false)
	v.SetDefault("port.sync_write", false)
}

// Load reads the configuration into v and decodes it. An explicit file must
// exist; without one, $HOME/.serialhost.* is used when present.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(DefaultName)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// PortOptions converts the port section to serial options
func (c *Config) PortOptions() ([]serial.Option, error) {
	parity, err := parseParity(c.Port.Parity)
	if err != nil {
		return nil, err
	}
	flow, err := parseFlowControl(c.Port.FlowControl)
	if err != nil {
		return nil, err
	}

	opts := []serial.Option{
		serial.WithDataBits(c.Port.DataBits),
		serial.WithStopBits(c.Port.StopBits),
		serial.WithParity(parity),
		serial.WithFlowControl(flow),
		serial.WithReadTimeout(c.Port.ReadTimeout),
	}
	if c.Port.Exclusive {
		opts = append(opts, serial.WithExclusive())
	}
	if c.Port.SyncWrite {
		opts = append(opts, serial.WithSyncWrite())
	}
	return opts, nil
}

func parseParity(s string) (serial.Parity, error) {
	switch strings.ToLower(s) {
	case "", "none", "n":
		return serial.ParityNone, nil
	case "odd", "o":
		return serial.ParityOdd, nil
	case "even", "e":
		return serial.ParityEven, nil
	case "mark", "m":
		return serial.ParityMark, nil
	case "space", "s":
		return serial.ParitySpace, nil
	default:
		return 0, fmt.Errorf("%w: unknown parity %q", serial.ErrInvalidConfig, s)
	}
}

func parseFlowControl(s string) (serial.FlowControl, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return serial.FlowControlNone, nil
	case "rtscts", "hardware":
		return serial.FlowControlRTSCTS, nil
	default:
		return 0, fmt.Errorf("%w: unknown flow control %q", serial.ErrInvalidConfig, s)
	}
}
