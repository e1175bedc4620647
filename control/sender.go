package control

import (
	"context"
	"time"

	"i4.energy/across/nbctl/at"
)

//go:generate go tool mockgen -source=sender.go -destination=mock_sender.go -package=control

// Sender exchanges a single AT command with the modem.
//
// A non-nil error means no interpretable reply was obtained. Otherwise the
// returned Response carries at least its status flags; a failed command is
// reported through Response.HasError, not through the error. A timeout of
// zero or less selects the Sender's default.
type Sender interface {
	Send(ctx context.Context, cmd string, timeout time.Duration) (*at.Response, error)
}
