package control

import (
	"context"
	"fmt"
)

// StringControl reads and writes a single string setting.
//
// Reads send the read command verbatim and return the first response line
// that is not the command echo. Writes send the write command immediately
// followed by the value, so the write command carries its own delimiter,
// e.g. "AT+CGMR=" or "AT+NCONFIG=AUTOCONNECT,".
type StringControl struct {
	base
	readCmd  string
	writeCmd string
}

func NewStringControl(sender Sender, readCmd, writeCmd string, opts ...Option) *StringControl {
	return &StringControl{
		base:     newBase(sender, opts),
		readCmd:  readCmd,
		writeCmd: writeCmd,
	}
}

func (c *StringControl) Kind() Kind { return KindString }

// Get returns the current value.
func (c *StringControl) Get(ctx context.Context) (string, error) {
	if !c.readable {
		return "", fmt.Errorf("%s: %w", c.readCmd, ErrNotReadable)
	}
	return c.execFirstLine(ctx, c.readCmd, c.readTimeout)
}

// Set writes value.
func (c *StringControl) Set(ctx context.Context, value string) error {
	if !c.writeable {
		return fmt.Errorf("%s: %w", c.writeCmd, ErrNotWriteable)
	}
	return c.execOK(ctx, c.writeCmd+value, c.writeTimeout)
}

var (
	_ Control        = (*StringControl)(nil)
	_ Getter[string] = (*StringControl)(nil)
	_ Setter[string] = (*StringControl)(nil)
)
