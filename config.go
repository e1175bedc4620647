package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind_address"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 9600)
	BaudRate int `yaml:"baud_rate"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
	// SimPIN is the SIM card PIN code
	SimPIN string `yaml:"sim_pin"`
	// EchoOn keeps command echo enabled on the modem
	EchoOn bool `yaml:"echo"`
	// ATTimeout is the default timeout for a single AT exchange
	ATTimeout time.Duration `yaml:"at_timeout"`
	// Controls declares the named string and on/off controls
	Controls []ControlConfig `yaml:"controls"`
}

// ControlConfig declares one named control.
type ControlConfig struct {
	Name string `yaml:"name"`
	// Kind is "string" or "onoff"
	Kind string `yaml:"kind"`
	// Read is the read command, or the command stem for onoff controls
	Read  string `yaml:"read"`
	Write string `yaml:"write,omitempty"`
	// Key selects a keyed response field for onoff controls
	Key          string        `yaml:"key,omitempty"`
	Readable     *bool         `yaml:"readable,omitempty"`
	Writeable    *bool         `yaml:"writeable,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 9600
		c.LogLevel = "info"
		c.ATTimeout = 5 * time.Second
		c.Controls = []ControlConfig{
			{Name: "model", Kind: "string", Read: "AT+CGMM", Writeable: ptr(false)},
			{Name: "revision", Kind: "string", Read: "AT+CGMR", Writeable: ptr(false)},
			{Name: "radio", Kind: "onoff", Read: "AT+CFUN", Key: "+CFUN", WriteTimeout: 10 * time.Second},
		}
		return nil
	}
}

// WithFile merges settings from a YAML file. Controls declared in the file
// replace defaults of the same name. An empty path is a no-op.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}

		defaults := c.Controls
		c.Controls = nil
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse YAML: %w", err)
		}
		c.Controls = mergeControls(defaults, c.Controls)
		return nil
	}
}

func mergeControls(base, overrides []ControlConfig) []ControlConfig {
	merged := append([]ControlConfig(nil), base...)
	for _, o := range overrides {
		replaced := false
		for i := range merged {
			if merged[i].Name == o.Name {
				merged[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, o)
		}
	}
	return merged
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if simPIN := os.Getenv("SIM_PIN"); simPIN != "" {
			c.SimPIN = simPIN
		}

		if echo := os.Getenv("ECHO_ON"); echo != "" {
			if b, err := strconv.ParseBool(echo); err == nil {
				c.EchoOn = b
			}
		}

		if timeout := os.Getenv("AT_TIMEOUT"); timeout != "" {
			if d, err := time.ParseDuration(timeout); err == nil {
				c.ATTimeout = d
			}
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags that were set
// explicitly.
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *pflag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, perr := strconv.Atoi(f.Value.String()); perr == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "sim-pin":
				c.SimPIN = f.Value.String()
			case "echo":
				c.EchoOn, _ = strconv.ParseBool(f.Value.String())
			case "at-timeout":
				d, perr := time.ParseDuration(f.Value.String())
				if perr != nil {
					err = fmt.Errorf("flag --at-timeout: %w", perr)
					return
				}
				c.ATTimeout = d
			}
		})
		return err
	}
}

func ptr[T any](v T) *T {
	return &v
}
