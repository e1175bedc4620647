package control

import (
	"context"
	"fmt"

	"i4.energy/across/nbctl/at"
)

const (
	cmdBandSupported = "AT+NBAND=?"
	cmdBandActive    = "AT+NBAND?"
	cmdBandSet       = "AT+NBAND="
	keyBand          = "+NBAND"
)

// BandControl manages the frequency bands the modem searches.
type BandControl struct {
	base
}

func NewBandControl(sender Sender, opts ...Option) *BandControl {
	return &BandControl{base: newBase(sender, opts)}
}

func (c *BandControl) Kind() Kind { return KindBand }

// SupportedBands returns the bands the modem is able to use.
func (c *BandControl) SupportedBands(ctx context.Context) ([]int, error) {
	return c.query(ctx, cmdBandSupported)
}

// ActiveBands returns the bands currently configured.
func (c *BandControl) ActiveBands(ctx context.Context) ([]int, error) {
	return c.query(ctx, cmdBandActive)
}

// Get is an alias for ActiveBands.
func (c *BandControl) Get(ctx context.Context) ([]int, error) {
	return c.ActiveBands(ctx)
}

func (c *BandControl) query(ctx context.Context, cmd string) ([]int, error) {
	if !c.readable {
		return nil, fmt.Errorf("%s: %w", cmd, ErrNotReadable)
	}
	v, err := c.execKeyedField(ctx, cmd, keyBand, c.readTimeout)
	if err != nil {
		return nil, err
	}
	return at.IntList(v), nil
}

// Set configures bands, in the given order of preference.
func (c *BandControl) Set(ctx context.Context, bands []int) error {
	if !c.writeable {
		return fmt.Errorf("%s: %w", cmdBandSet, ErrNotWriteable)
	}
	if len(bands) == 0 {
		return fmt.Errorf("%s: %w", cmdBandSet, ErrNoBands)
	}
	return c.execOK(ctx, cmdBandSet+at.JoinInts(bands), c.writeTimeout)
}

var (
	_ Control       = (*BandControl)(nil)
	_ Getter[[]int] = (*BandControl)(nil)
	_ Setter[[]int] = (*BandControl)(nil)
)
