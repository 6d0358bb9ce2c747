// Package config loads shepherd settings with Viper from defaults, an
// optional config file, SHEPHERD_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OpenTraceLab/OpenTraceShepherd/internal/logging"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/monitor"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/transport"
)

// EnvPrefix prefixes environment overrides, e.g. SHEPHERD_PORT.
const EnvPrefix = "SHEPHERD"

// ErrInvalid is wrapped by Validate failures.
var ErrInvalid = errors.New("config: invalid value")

// Config holds all runtime settings.
type Config struct {
	// Transport is serial, usb, replay or sim.
	Transport   string        `mapstructure:"transport"`
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	USBVID      int           `mapstructure:"usb_vid"`
	USBPID      int           `mapstructure:"usb_pid"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	QueueSize        int           `mapstructure:"queue_size"`
	IdleSleep        time.Duration `mapstructure:"idle_sleep"`
	GracePeriod      time.Duration `mapstructure:"grace_period"`
	StopWhenComplete bool          `mapstructure:"stop_when_complete"`

	ExtendedPhases bool `mapstructure:"extended_phases"`
	// ExpectedDevices overrides the device count announced in headers when
	// greater than zero.
	ExpectedDevices int `mapstructure:"expected_devices"`

	OutputDir  string `mapstructure:"output_dir"`
	KeepMasked bool   `mapstructure:"keep_masked"`
	// Tables is an optional decoding-table file layered over the built-ins.
	Tables string `mapstructure:"tables"`
	// Capture tees raw received bytes to this file when set.
	Capture string `mapstructure:"capture"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogOutput string `mapstructure:"log_output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport", string(transport.KindSerial))
	v.SetDefault("port", "")
	v.SetDefault("baud", transport.DefaultBaud)
	v.SetDefault("usb_vid", 0x1915)
	v.SetDefault("usb_pid", 0x520F)
	v.SetDefault("read_timeout", transport.DefaultReadTimeout)

	v.SetDefault("queue_size", monitor.DefaultQueueSize)
	v.SetDefault("idle_sleep", monitor.DefaultIdleSleep)
	v.SetDefault("grace_period", monitor.DefaultGracePeriod)
	v.SetDefault("stop_when_complete", false)

	v.SetDefault("extended_phases", false)
	v.SetDefault("expected_devices", 0)

	v.SetDefault("output_dir", "raw_data")
	v.SetDefault("keep_masked", false)
	v.SetDefault("tables", "")
	v.SetDefault("capture", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("log_output", "stderr")
}

// Options tells Load where to look.
type Options struct {
	// File is an explicit config file. When empty, shepherd.{yaml,toml,json}
	// is searched in the working directory and $HOME/.config/shepherd, and a
	// missing file is not an error.
	File string
	// Flags are bound by name, with dashes read as underscores
	// (--queue-size sets queue_size). Only flags the user set take effect.
	Flags *pflag.FlagSet
}

// Load resolves the configuration and validates it.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("shepherd")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/shepherd")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		known := make(map[string]bool)
		for _, k := range v.AllKeys() {
			known[k] = true
		}
		var bindErr error
		opts.Flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if known[key] && bindErr == nil {
				bindErr = v.BindPFlag(key, f)
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("config: bind flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalises out-of-range values to their defaults and rejects
// values that cannot be repaired.
func (c *Config) Validate() error {
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	switch transport.Kind(c.Transport) {
	case "":
		c.Transport = string(transport.KindSerial)
	case transport.KindSerial, transport.KindUSB, transport.KindReplay, transport.KindSim:
	default:
		return fmt.Errorf("%w: transport %q", ErrInvalid, c.Transport)
	}

	if c.USBVID < 0 || c.USBVID > 0xFFFF {
		return fmt.Errorf("%w: usb_vid 0x%X", ErrInvalid, c.USBVID)
	}
	if c.USBPID < 0 || c.USBPID > 0xFFFF {
		return fmt.Errorf("%w: usb_pid 0x%X", ErrInvalid, c.USBPID)
	}

	if c.Baud <= 0 {
		c.Baud = transport.DefaultBaud
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = transport.DefaultReadTimeout
	}
	if c.QueueSize < 1 {
		c.QueueSize = monitor.DefaultQueueSize
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = monitor.DefaultIdleSleep
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = monitor.DefaultGracePeriod
	}
	if c.ExpectedDevices < 0 {
		c.ExpectedDevices = 0
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	return nil
}

// TransportConfig returns the port settings.
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		Kind:        transport.Kind(c.Transport),
		Name:        c.Port,
		Baud:        c.Baud,
		VendorID:    uint16(c.USBVID),
		ProductID:   uint16(c.USBPID),
		ReadTimeout: c.ReadTimeout,
	}
}

// MonitorConfig returns the pipeline settings.
func (c *Config) MonitorConfig() monitor.Config {
	return monitor.Config{
		QueueSize:        c.QueueSize,
		IdleSleep:        c.IdleSleep,
		GracePeriod:      c.GracePeriod,
		StopWhenComplete: c.StopWhenComplete,
	}
}

// LoggingConfig returns the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  c.LogLevel,
		Output: c.LogOutput,
		Format: c.LogFormat,
	}
}
