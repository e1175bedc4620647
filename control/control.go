// Package control maps modem settings onto AT commands.
//
// Each control knows how to build the command strings for its get and set
// operations and how to decode the typed value from an at.Response. The set
// of controls is closed: StringControl, OnOffControl, BandControl,
// PDPContextControl and OperatorSelectionControl. All of them share one
// Sender, which they borrow and never close.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"i4.energy/across/nbctl/at"
)

// Kind identifies the variant of a control.
type Kind int

const (
	KindString Kind = iota
	KindOnOff
	KindBand
	KindPDPContext
	KindOperatorSelection
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindOnOff:
		return "onoff"
	case KindBand:
		return "band"
	case KindPDPContext:
		return "pdp"
	case KindOperatorSelection:
		return "operator"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Control is implemented by every control variant.
type Control interface {
	Kind() Kind
	Readable() bool
	Writeable() bool
}

// Getter reads a typed value from the modem.
type Getter[T any] interface {
	Get(ctx context.Context) (T, error)
}

// Setter writes a typed value to the modem.
type Setter[T any] interface {
	Set(ctx context.Context, value T) error
}

// Option configures the capabilities and timeouts shared by all controls.
type Option func(*base)

// WithReadable enables or disables read operations. Controls are readable by
// default.
func WithReadable(readable bool) Option {
	return func(b *base) { b.readable = readable }
}

// WithWriteable enables or disables write operations. Controls are writeable
// by default.
func WithWriteable(writeable bool) Option {
	return func(b *base) { b.writeable = writeable }
}

// WithReadTimeout sets the timeout passed to the Sender for reads.
func WithReadTimeout(d time.Duration) Option {
	return func(b *base) { b.readTimeout = d }
}

// WithWriteTimeout sets the timeout passed to the Sender for writes.
func WithWriteTimeout(d time.Duration) Option {
	return func(b *base) { b.writeTimeout = d }
}

// WithLogger sets the logger used to report failed exchanges at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// base holds the state every control owns.
type base struct {
	// sender is shared between controls and outlives them
	sender       Sender
	readable     bool
	writeable    bool
	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger
}

func newBase(sender Sender, opts []Option) base {
	b := base{
		sender:    sender,
		readable:  true,
		writeable: true,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Readable reports whether read operations are permitted.
func (b *base) Readable() bool { return b.readable }

// Writeable reports whether write operations are permitted.
func (b *base) Writeable() bool { return b.writeable }

// ReadTimeout returns the timeout used for reads.
func (b *base) ReadTimeout() time.Duration { return b.readTimeout }

// WriteTimeout returns the timeout used for writes.
func (b *base) WriteTimeout() time.Duration { return b.writeTimeout }

// send issues cmd and requires a successful response.
func (b *base) send(ctx context.Context, cmd string, timeout time.Duration) (*at.Response, error) {
	resp, err := b.sender.Send(ctx, cmd, timeout)
	switch {
	case err != nil:
		err = fmt.Errorf("%s: %w: %w", cmd, ErrTransport, err)
	case resp == nil:
		err = fmt.Errorf("%s: %w: empty response", cmd, ErrTransport)
	case !resp.IsOK():
		err = fmt.Errorf("%s: %w: %s", cmd, ErrProtocol, resp.Final())
	default:
		return resp, nil
	}
	b.logger.Debug("Command failed", "cmd", cmd, "error", err)
	return nil, err
}

// execOK sends cmd and reports whether it succeeded.
func (b *base) execOK(ctx context.Context, cmd string, timeout time.Duration) error {
	_, err := b.send(ctx, cmd, timeout)
	return err
}

// execFirstLine sends cmd and returns the first response line that is not
// the echo of cmd.
func (b *base) execFirstLine(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	resp, err := b.send(ctx, cmd, timeout)
	if err != nil {
		return "", err
	}
	line, ok := firstLine(resp, cmd)
	if !ok {
		return "", fmt.Errorf("%s: %w: no response line", cmd, ErrDecode)
	}
	return line, nil
}

// execKeyedField sends cmd and returns the first value recorded under key.
func (b *base) execKeyedField(ctx context.Context, cmd, key string, timeout time.Duration) (string, error) {
	resp, err := b.send(ctx, cmd, timeout)
	if err != nil {
		return "", err
	}
	value, ok := resp.CommandResponse(key)
	if !ok {
		return "", fmt.Errorf("%s: %w: missing %s", cmd, ErrDecode, key)
	}
	return value, nil
}

// firstLine drops a leading echo of cmd and returns the next line, if any.
func firstLine(resp *at.Response, cmd string) (string, bool) {
	lines := resp.Lines()
	if len(lines) > 0 && lines[0] == cmd {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return "", false
	}
	return lines[0], true
}
