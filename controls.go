package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"i4.energy/across/nbctl/control"
)

var (
	ErrUnknownControl = errors.New("unknown control")
	ErrInvalidValue   = errors.New("invalid value")
)

// Controls is the set of controls the CLI and the HTTP server operate on.
type Controls struct {
	Band  *control.BandControl
	PDP   *control.PDPContextControl
	named map[string]control.Control
}

// NewControls builds the fixed band and PDP controls plus every named
// control declared in cfg, all sharing sender.
func NewControls(sender control.Sender, cfg []ControlConfig, logger *slog.Logger) (*Controls, error) {
	logOpt := control.WithLogger(logger)
	c := &Controls{
		Band:  control.NewBandControl(sender, logOpt),
		PDP:   control.NewPDPContextControl(sender, logOpt),
		named: make(map[string]control.Control, len(cfg)),
	}

	for _, cc := range cfg {
		if cc.Name == "" {
			return nil, errors.New("control without name")
		}
		if _, dup := c.named[cc.Name]; dup {
			return nil, fmt.Errorf("control %q declared twice", cc.Name)
		}

		opts := []control.Option{
			logOpt,
			control.WithReadTimeout(cc.ReadTimeout),
			control.WithWriteTimeout(cc.WriteTimeout),
		}
		if cc.Readable != nil {
			opts = append(opts, control.WithReadable(*cc.Readable))
		}
		if cc.Writeable != nil {
			opts = append(opts, control.WithWriteable(*cc.Writeable))
		}

		switch cc.Kind {
		case control.KindString.String():
			c.named[cc.Name] = control.NewStringControl(sender, cc.Read, cc.Write, opts...)
		case control.KindOnOff.String():
			if cc.Write != "" {
				c.named[cc.Name] = control.NewOnOffControlWithCommands(sender, cc.Read, cc.Write, cc.Key, opts...)
			} else {
				c.named[cc.Name] = control.NewOnOffControl(sender, cc.Read, cc.Key, opts...)
			}
		default:
			return nil, fmt.Errorf("control %q: unsupported kind %q", cc.Name, cc.Kind)
		}
	}
	return c, nil
}

// Names returns the named controls in sorted order.
func (c *Controls) Names() []string {
	names := make([]string, 0, len(c.named))
	for name := range c.named {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Named looks up a control declared by configuration.
func (c *Controls) Named(name string) (control.Control, bool) {
	ctrl, ok := c.named[name]
	return ctrl, ok
}

// Get reads a named control. String controls yield a string, on/off
// controls a bool.
func (c *Controls) Get(ctx context.Context, name string) (any, error) {
	switch ctrl := c.named[name].(type) {
	case *control.StringControl:
		return ctrl.Get(ctx)
	case *control.OnOffControl:
		return ctrl.Get(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownControl, name)
	}
}

// Set writes a named control from its textual form. On/off controls accept
// anything strconv.ParseBool does, plus "on" and "off".
func (c *Controls) Set(ctx context.Context, name, value string) error {
	switch ctrl := c.named[name].(type) {
	case *control.StringControl:
		return ctrl.Set(ctx, value)
	case *control.OnOffControl:
		on, err := parseOnOff(value)
		if err != nil {
			return err
		}
		return ctrl.Set(ctx, on)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownControl, name)
	}
}

func parseOnOff(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	on, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%w: %q is not on/off", ErrInvalidValue, value)
	}
	return on, nil
}
