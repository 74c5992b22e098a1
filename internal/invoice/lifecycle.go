package invoice

import (
	"strings"
	"time"

	"invoicecore/internal/domain"
)

// Finalize moves a Draft invoice to Final.
func Finalize(inv domain.Invoice, now time.Time) (domain.Invoice, error) {
	if inv.Deleted {
		return inv, &TransitionError{Op: "finalize", From: inv.Status, Reason: "a deleted invoice"}
	}
	if inv.Status != domain.InvoiceDraft {
		return inv, &TransitionError{Op: "finalize", From: inv.Status, Reason: article(inv.Status) + " invoice; only drafts can be finalized"}
	}
	out := touch(inv, now)
	out.Status = domain.InvoiceFinal
	return out, nil
}

// Cancel moves a Final invoice to Cancelled and records when and why.
func Cancel(inv domain.Invoice, reason string, now time.Time) (domain.Invoice, error) {
	switch {
	case inv.Deleted:
		return inv, &TransitionError{Op: "cancel", From: inv.Status, Reason: "a deleted invoice"}
	case inv.Status == domain.InvoiceCancelled:
		return inv, &TransitionError{Op: "cancel", From: inv.Status, Reason: "an already cancelled invoice"}
	case inv.Status != domain.InvoiceFinal:
		return inv, &TransitionError{Op: "cancel", From: inv.Status, Reason: article(inv.Status) + " invoice; only final invoices can be cancelled"}
	}

	out := touch(inv, now)
	at := out.UpdatedAt
	out.Status = domain.InvoiceCancelled
	out.CancelledAt = &at
	out.CancelReason = strings.TrimSpace(reason)
	return out, nil
}

// SoftDelete flags the invoice as deleted. Deleting an already deleted
// invoice returns it unchanged.
func SoftDelete(inv domain.Invoice, now time.Time) domain.Invoice {
	if inv.Deleted {
		return inv
	}
	out := touch(inv, now)
	at := out.UpdatedAt
	out.Deleted = true
	out.DeletedAt = &at
	return out
}

func touch(inv domain.Invoice, now time.Time) domain.Invoice {
	inv.UpdatedAt = now.UTC()
	inv.Version++
	return inv
}

func article(status domain.InvoiceStatus) string {
	return "a " + strings.ToLower(string(status))
}
