package control

import "context"

// OperatorSelectionControl will drive AT+COPS. Until then every operation
// fails with ErrNotImplemented without sending anything.
type OperatorSelectionControl struct {
	base
	mode         int
	operatorName string
}

func NewOperatorSelectionControl(sender Sender, opts ...Option) *OperatorSelectionControl {
	return &OperatorSelectionControl{base: newBase(sender, opts)}
}

func (c *OperatorSelectionControl) Kind() Kind { return KindOperatorSelection }

// Mode returns the selection mode last read from the modem.
func (c *OperatorSelectionControl) Mode() int { return c.mode }

// OperatorName returns the operator last read from the modem.
func (c *OperatorSelectionControl) OperatorName() string { return c.operatorName }

// Get would query AT+COPS?.
func (c *OperatorSelectionControl) Get(ctx context.Context) error {
	return ErrNotImplemented
}

// Set would issue AT+COPS=.
func (c *OperatorSelectionControl) Set(ctx context.Context) error {
	return ErrNotImplemented
}

var _ Control = (*OperatorSelectionControl)(nil)
