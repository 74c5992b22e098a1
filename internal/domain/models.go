package domain

import "time"

type SupplyType string

const (
	SupplyIntraState SupplyType = "INTRA_STATE"
	SupplyInterState SupplyType = "INTER_STATE"
)

func (s SupplyType) Valid() bool {
	return s == SupplyIntraState || s == SupplyInterState
}

type InvoiceStatus string

// Stored as text in the invoices table; values must stay stable.
const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoiceFinal     InvoiceStatus = "FINAL"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceFinal, InvoiceCancelled:
		return true
	default:
		return false
	}
}

// LineItem is the shared shape of purchase and invoice lines. Total is set
// from Quantity*Price when the line is created and is stored as-is afterwards.
type LineItem struct {
	ID        string  `json:"id"`
	ProductID *string `json:"product_id,omitempty"`
	Name      string  `json:"name"`
	HSN       string  `json:"hsn"`
	Unit      string  `json:"unit"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Total     float64 `json:"total"`
}

type PurchasedItem LineItem

type InvoiceItem LineItem

func NewInvoiceItem(id string, productID *string, name, hsn, unit string, quantity, price float64) InvoiceItem {
	return InvoiceItem{
		ID:        id,
		ProductID: productID,
		Name:      name,
		HSN:       hsn,
		Unit:      unit,
		Quantity:  quantity,
		Price:     price,
		Total:     quantity * price,
	}
}

func NewPurchasedItem(id string, productID *string, name, hsn, unit string, quantity, price float64) PurchasedItem {
	return PurchasedItem(NewInvoiceItem(id, productID, name, hsn, unit, quantity, price))
}

// GstBreakdown holds either the CGST+SGST pair (intra-state) or IGST
// (inter-state). TotalTax is the sum of the three amounts.
type GstBreakdown struct {
	CGSTRate   float64 `json:"cgst_rate"`
	SGSTRate   float64 `json:"sgst_rate"`
	IGSTRate   float64 `json:"igst_rate"`
	CGSTAmount float64 `json:"cgst_amount"`
	SGSTAmount float64 `json:"sgst_amount"`
	IGSTAmount float64 `json:"igst_amount"`
	TotalTax   float64 `json:"total_tax"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	GSTIN     *string   `json:"gstin,omitempty"`
	Address   string    `json:"address"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	StateCode *string   `json:"state_code,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CustomerSnapshot is the copy of a customer embedded in an invoice. Edits to
// the live customer never reach it.
type CustomerSnapshot Customer

// Snapshot copies the customer, including its optional fields, so the result
// shares no memory with the live record. Timestamps are truncated to the
// millisecond precision of the encoded snapshot column.
func (c Customer) Snapshot() CustomerSnapshot {
	return CustomerSnapshot{
		ID:        c.ID,
		Name:      c.Name,
		GSTIN:     cloneString(c.GSTIN),
		Address:   c.Address,
		Phone:     cloneString(c.Phone),
		Email:     cloneString(c.Email),
		StateCode: cloneString(c.StateCode),
		Active:    c.Active,
		CreatedAt: truncateMillis(c.CreatedAt),
		UpdatedAt: truncateMillis(c.UpdatedAt),
	}
}

func truncateMillis(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Millisecond)
}

type Invoice struct {
	ID              string           `json:"id"`
	Number          string           `json:"number"`
	IssueDate       time.Time        `json:"issue_date"`
	SellerID        string           `json:"seller_id"`
	Customer        CustomerSnapshot `json:"customer"`
	SupplyType      SupplyType       `json:"supply_type"`
	Items           []InvoiceItem    `json:"items"`
	ShippingCharge  float64          `json:"shipping_charge"`
	TotalBeforeTax  float64          `json:"total_before_tax"`
	TaxLines        []GstBreakdown   `json:"tax_lines"`
	Gst             GstBreakdown     `json:"gst"`
	TotalWithTax    float64          `json:"total_with_tax"`
	RoundOffEnabled bool             `json:"round_off_enabled"`
	RoundOff        float64          `json:"round_off"`
	RoundedTotal    float64          `json:"rounded_total"`
	AmountInWords   string           `json:"amount_in_words"`
	Status          InvoiceStatus    `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	CancelledAt     *time.Time       `json:"cancelled_at,omitempty"`
	CancelReason    string           `json:"cancel_reason,omitempty"`
	Deleted         bool             `json:"deleted"`
	DeletedAt       *time.Time       `json:"deleted_at,omitempty"`
	Version         int64            `json:"version"`
}

// InvoiceRow is the persisted shape of an invoice. The *Text columns hold
// codec output; everything else is a scalar column.
type InvoiceRow struct {
	ID              string
	Number          string
	IssueDate       time.Time
	SellerID        string
	CustomerID      string
	CustomerText    string
	SupplyType      string
	ItemsText       string
	ShippingCharge  float64
	TotalBeforeTax  float64
	TaxLinesText    string
	GstText         string
	TotalWithTax    float64
	RoundOffEnabled bool
	RoundOff        float64
	RoundedTotal    float64
	AmountInWords   string
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CancelledAt     *time.Time
	CancelReason    string
	Deleted         bool
	DeletedAt       *time.Time
	Version         int64
}

type InvoiceFilter struct {
	Status         InvoiceStatus
	CustomerID     string
	IncludeDeleted bool
	Limit          int
}

// Match reports whether a row satisfies the filter. Limit is applied by callers.
func (f InvoiceFilter) Match(row InvoiceRow) bool {
	if row.Deleted && !f.IncludeDeleted {
		return false
	}
	if f.Status != "" && row.Status != string(f.Status) {
		return false
	}
	if f.CustomerID != "" && row.CustomerID != f.CustomerID {
		return false
	}
	return true
}

type Purchase struct {
	ID           string          `json:"id"`
	SupplierName string          `json:"supplier_name"`
	Reference    string          `json:"reference,omitempty"`
	PurchaseDate time.Time       `json:"purchase_date"`
	Items        []PurchasedItem `json:"items"`
	Total        float64         `json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
}

type PurchaseRow struct {
	ID           string
	SupplierName string
	Reference    string
	PurchaseDate time.Time
	ItemsText    string
	Total        float64
	CreatedAt    time.Time
}

type LineItemInput struct {
	ProductID *string `json:"product_id,omitempty"`
	Name      string  `json:"name"`
	HSN       string  `json:"hsn"`
	Unit      string  `json:"unit"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
}

type GenerateInvoiceRequest struct {
	// Number is the display number. Empty means use the suggested number.
	Number         string          `json:"number,omitempty"`
	CustomerID     string          `json:"customer_id"`
	IssueDate      string          `json:"issue_date,omitempty"`
	Items          []LineItemInput `json:"items"`
	ShippingCharge float64         `json:"shipping_charge"`
	Draft          bool            `json:"draft"`
}

type CancelInvoiceRequest struct {
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin"`
}

type NextNumberResponse struct {
	Suggested int64  `json:"suggested"`
	Display   string `json:"display"`
}

type InvoiceListResponse struct {
	Invoices []Invoice `json:"invoices"`
}

type TaxQuoteRequest struct {
	TaxableAmount   float64  `json:"taxable_amount"`
	SellerStateCode *string  `json:"seller_state_code,omitempty"`
	BuyerStateCode  *string  `json:"buyer_state_code,omitempty"`
	Rate            *float64 `json:"rate,omitempty"`
}

type TaxQuoteResponse struct {
	SupplyType    SupplyType   `json:"supply_type"`
	Breakdown     GstBreakdown `json:"breakdown"`
	TotalWithTax  float64      `json:"total_with_tax"`
	RoundedTotal  float64      `json:"rounded_total"`
	RoundOff      float64      `json:"round_off"`
	AmountInWords string       `json:"amount_in_words"`
}

type AmountInWordsResponse struct {
	Amount float64 `json:"amount"`
	Words  string  `json:"words"`
}

type CustomerCreateRequest struct {
	Name      string  `json:"name"`
	GSTIN     *string `json:"gstin,omitempty"`
	Address   string  `json:"address"`
	Phone     *string `json:"phone,omitempty"`
	Email     *string `json:"email,omitempty"`
	StateCode *string `json:"state_code,omitempty"`
}

type CustomerUpdateRequest struct {
	Name      *string `json:"name,omitempty"`
	GSTIN     *string `json:"gstin,omitempty"`
	Address   *string `json:"address,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Email     *string `json:"email,omitempty"`
	StateCode *string `json:"state_code,omitempty"`
	Active    *bool   `json:"active,omitempty"`
}

type PurchaseCreateRequest struct {
	SupplierName string          `json:"supplier_name"`
	Reference    string          `json:"reference,omitempty"`
	PurchaseDate string          `json:"purchase_date,omitempty"`
	Items        []LineItemInput `json:"items"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        Role   `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     Role
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type User struct {
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      Role
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     Role      `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

// Role is the access level carried in tokens and audit entries.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleClerk Role = "clerk"
	// RoleSystem marks audit entries written without an authenticated actor.
	RoleSystem Role = "system"
)

// CanSignIn reports whether accounts with this role may hold a token.
func (r Role) CanSignIn() bool {
	return r == RoleAdmin || r == RoleClerk
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
