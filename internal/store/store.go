package store

import (
	"context"
	"errors"
	"time"

	"invoicecore/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when a write collides with a concurrent one:
	// a stale version on update or a duplicate invoice number on insert.
	ErrConflict = errors.New("conflict")
)

// Repository persists rows. Invoice and purchase rows carry codec-encoded
// columns; the store never interprets them.
type Repository interface {
	InsertInvoice(ctx context.Context, row domain.InvoiceRow) error
	GetInvoice(ctx context.Context, id string) (*domain.InvoiceRow, error)
	// UpdateInvoice replaces the row whose stored version is row.Version-1.
	UpdateInvoice(ctx context.Context, row domain.InvoiceRow) error
	ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.InvoiceRow, error)

	InsertPurchase(ctx context.Context, row domain.PurchaseRow) error
	ListPurchases(ctx context.Context, limit int) ([]domain.PurchaseRow, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) error
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) error
	ListCustomers(ctx context.Context, includeInactive bool) ([]domain.Customer, error)

	LoadCounter(ctx context.Context, name string) (int64, error)
	SwapCounter(ctx context.Context, name string, old int64, next int64) (bool, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, entityType string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
