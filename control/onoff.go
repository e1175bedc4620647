package control

import (
	"context"
	"fmt"
)

// OnOffControl reads and writes a boolean setting encoded as "1" or "0".
//
// With a key, the value is taken from the keyed field of that name
// ("+CSCON: 1"). Without one, it is taken from the first response line that
// is not the command echo.
type OnOffControl struct {
	base
	readCmd  string
	writeCmd string
	key      string
}

// NewOnOffControl derives the read and write commands from stem, reading
// with "<stem>?" and writing with "<stem>=".
func NewOnOffControl(sender Sender, stem, key string, opts ...Option) *OnOffControl {
	return NewOnOffControlWithCommands(sender, stem+"?", stem+"=", key, opts...)
}

// NewOnOffControlWithCommands uses explicit read and write commands.
func NewOnOffControlWithCommands(sender Sender, readCmd, writeCmd, key string, opts ...Option) *OnOffControl {
	return &OnOffControl{
		base:     newBase(sender, opts),
		readCmd:  readCmd,
		writeCmd: writeCmd,
		key:      key,
	}
}

func (c *OnOffControl) Kind() Kind { return KindOnOff }

// Key returns the field key used for decoding, or "" for positional decoding.
func (c *OnOffControl) Key() string { return c.key }

// Get returns true when the modem reports "1".
func (c *OnOffControl) Get(ctx context.Context) (bool, error) {
	if !c.readable {
		return false, fmt.Errorf("%s: %w", c.readCmd, ErrNotReadable)
	}

	var (
		value string
		err   error
	)
	if c.key != "" {
		value, err = c.execKeyedField(ctx, c.readCmd, c.key, c.readTimeout)
	} else {
		value, err = c.execFirstLine(ctx, c.readCmd, c.readTimeout)
	}
	if err != nil {
		return false, err
	}
	return value == "1", nil
}

// Set writes "1" for true and "0" for false.
func (c *OnOffControl) Set(ctx context.Context, on bool) error {
	if !c.writeable {
		return fmt.Errorf("%s: %w", c.writeCmd, ErrNotWriteable)
	}
	v := "0"
	if on {
		v = "1"
	}
	return c.execOK(ctx, c.writeCmd+v, c.writeTimeout)
}

var (
	_ Control      = (*OnOffControl)(nil)
	_ Getter[bool] = (*OnOffControl)(nil)
	_ Setter[bool] = (*OnOffControl)(nil)
)
