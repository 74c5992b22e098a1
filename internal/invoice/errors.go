package invoice

import (
	"fmt"

	"invoicecore/internal/domain"
)

// TransitionError describes a rejected lifecycle change, e.g. "cannot cancel a
// deleted invoice". It unwraps to domain.ErrInvalidTransition.
type TransitionError struct {
	Op     string
	From   domain.InvoiceStatus
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s", e.Op, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	return domain.ErrInvalidTransition
}
