package modem

import (
	"log/slog"
	"time"
)

// Config holds the settings used by New. Build one with NewConfigBuilder.
type Config struct {
	dialer      Dialer
	simPIN      string
	echoOn      bool
	atTimeout   time.Duration
	initTimeout time.Duration
	urcBuffer   int
	logger      *slog.Logger
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.atTimeout == 0 {
		c.atTimeout = 5 * time.Second
	}
	if c.initTimeout == 0 {
		c.initTimeout = 30 * time.Second
	}
	if c.urcBuffer == 0 {
		c.urcBuffer = 100
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
}

// ATTimeout returns the default per-command timeout.
func (c Config) ATTimeout() time.Duration { return c.atTimeout }

// EchoOn reports whether the modem is configured to echo commands.
func (c Config) EchoOn() bool { return c.echoOn }

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

// WithDialer sets how the transport is opened. Required.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithSimPIN sets the PIN entered when the SIM asks for one.
func (b *ConfigBuilder) WithSimPIN(pin string) *ConfigBuilder {
	b.config.simPIN = pin
	return b
}

// WithEchoOn selects ATE1 instead of ATE0 during initialization.
func (b *ConfigBuilder) WithEchoOn(on bool) *ConfigBuilder {
	b.config.echoOn = on
	return b
}

// WithATTimeout sets the timeout applied to commands sent without one.
func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.atTimeout = d
	return b
}

// WithInitTimeout bounds the whole initialization sequence.
func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.initTimeout = d
	return b
}

// WithURCBuffer sets the capacity of the URC channel.
func (b *ConfigBuilder) WithURCBuffer(n int) *ConfigBuilder {
	b.config.urcBuffer = n
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
