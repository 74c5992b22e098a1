package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"invoicecore/internal/domain"
	"invoicecore/internal/store"
	"invoicecore/internal/xid"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Migrate creates the tables if they do not exist. It is safe to run on
// every start.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const invoiceColumns = `
	id, number, issue_date, seller_id, customer_id, customer_text, supply_type,
	items_text, shipping_charge, total_before_tax, tax_lines_text, gst_text,
	total_with_tax, round_off_enabled, round_off, rounded_total, amount_in_words,
	status, created_at, updated_at, cancelled_at, cancel_reason, deleted, deleted_at, version`

func (s *Store) InsertInvoice(ctx context.Context, row domain.InvoiceRow) error {
	if strings.TrimSpace(row.ID) == "" || strings.TrimSpace(row.Number) == "" {
		return store.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
	`, invoiceArgs(row)...)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.InvoiceRow, error) {
	row, err := scanInvoice(s.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return row, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, row domain.InvoiceRow) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		version int64
		number  string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT version, number
		FROM invoices
		WHERE id = $1
		FOR UPDATE
	`, row.ID).Scan(&version, &number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if version != row.Version-1 {
		return store.ErrConflict
	}
	if number != row.Number {
		return store.ErrInvalidInput
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE invoices
		SET customer_text = $2, items_text = $3, tax_lines_text = $4, gst_text = $5,
			status = $6, updated_at = $7, cancelled_at = $8, cancel_reason = $9,
			deleted = $10, deleted_at = $11, version = $12
		WHERE id = $1
	`, row.ID, row.CustomerText, row.ItemsText, row.TaxLinesText, row.GstText,
		row.Status, row.UpdatedAt, nullTime(row.CancelledAt), row.CancelReason,
		row.Deleted, nullTime(row.DeletedAt), row.Version)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.InvoiceRow, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	where := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if !filter.IncludeDeleted {
		where = append(where, "deleted = false")
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		where = append(where, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.InvoiceRow, 0, limit)
	for rows.Next() {
		row, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(src scanner) (*domain.InvoiceRow, error) {
	var (
		row         domain.InvoiceRow
		cancelledAt sql.NullTime
		deletedAt   sql.NullTime
	)
	err := src.Scan(
		&row.ID, &row.Number, &row.IssueDate, &row.SellerID, &row.CustomerID, &row.CustomerText, &row.SupplyType,
		&row.ItemsText, &row.ShippingCharge, &row.TotalBeforeTax, &row.TaxLinesText, &row.GstText,
		&row.TotalWithTax, &row.RoundOffEnabled, &row.RoundOff, &row.RoundedTotal, &row.AmountInWords,
		&row.Status, &row.CreatedAt, &row.UpdatedAt, &cancelledAt, &row.CancelReason, &row.Deleted, &deletedAt, &row.Version,
	)
	if err != nil {
		return nil, err
	}
	row.IssueDate = row.IssueDate.UTC()
	row.CreatedAt = row.CreatedAt.UTC()
	row.UpdatedAt = row.UpdatedAt.UTC()
	row.CancelledAt = timeFromNull(cancelledAt)
	row.DeletedAt = timeFromNull(deletedAt)
	return &row, nil
}

func invoiceArgs(row domain.InvoiceRow) []any {
	return []any{
		row.ID, row.Number, row.IssueDate, row.SellerID, row.CustomerID, row.CustomerText, row.SupplyType,
		row.ItemsText, row.ShippingCharge, row.TotalBeforeTax, row.TaxLinesText, row.GstText,
		row.TotalWithTax, row.RoundOffEnabled, row.RoundOff, row.RoundedTotal, row.AmountInWords,
		row.Status, row.CreatedAt, row.UpdatedAt, nullTime(row.CancelledAt), row.CancelReason, row.Deleted, nullTime(row.DeletedAt), row.Version,
	}
}

func (s *Store) InsertPurchase(ctx context.Context, row domain.PurchaseRow) error {
	if strings.TrimSpace(row.ID) == "" || strings.TrimSpace(row.SupplierName) == "" {
		return store.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (id, supplier_name, reference, purchase_date, items_text, total, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, row.ID, row.SupplierName, row.Reference, row.PurchaseDate, row.ItemsText, row.Total, row.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListPurchases(ctx context.Context, limit int) ([]domain.PurchaseRow, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier_name, reference, purchase_date, items_text, total, created_at
		FROM purchases
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.PurchaseRow, 0, limit)
	for rows.Next() {
		var row domain.PurchaseRow
		if err := rows.Scan(&row.ID, &row.SupplierName, &row.Reference, &row.PurchaseDate, &row.ItemsText, &row.Total, &row.CreatedAt); err != nil {
			return nil, err
		}
		row.PurchaseDate = row.PurchaseDate.UTC()
		row.CreatedAt = row.CreatedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

const customerColumns = `id, name, gstin, address, phone, email, state_code, active, created_at, updated_at`

func (s *Store) CreateCustomer(ctx context.Context, c domain.Customer) error {
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
		return store.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, c.ID, c.Name, nullString(c.GSTIN), c.Address, nullString(c.Phone), nullString(c.Email), nullString(c.StateCode), c.Active, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c domain.Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, gstin = $3, address = $4, phone = $5, email = $6, state_code = $7, active = $8, updated_at = $9
		WHERE id = $1
	`, c.ID, c.Name, nullString(c.GSTIN), c.Address, nullString(c.Phone), nullString(c.Email), nullString(c.StateCode), c.Active, c.UpdatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context, includeInactive bool) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE active = true OR $1
		ORDER BY name, id
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanCustomer(src scanner) (*domain.Customer, error) {
	var (
		c                              domain.Customer
		gstin, phone, email, stateCode sql.NullString
	)
	if err := src.Scan(&c.ID, &c.Name, &gstin, &c.Address, &phone, &email, &stateCode, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.GSTIN = stringFromNull(gstin)
	c.Phone = stringFromNull(phone)
	c.Email = stringFromNull(email)
	c.StateCode = stringFromNull(stateCode)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func (s *Store) LoadCounter(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		SELECT value
		FROM sequence_counters
		WHERE name = $1
	`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return value, err
}

// SwapCounter updates the row only while it still holds old. A missing row
// counts as zero and is created by whichever writer inserts first.
func (s *Store) SwapCounter(ctx context.Context, name string, old int64, next int64) (bool, error) {
	if next < 0 {
		return false, store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sequence_counters
		SET value = $3, updated_at = now()
		WHERE name = $1 AND value = $2
	`, name, old, next)
	if err != nil {
		return false, err
	}
	if affected, err := res.RowsAffected(); err != nil || affected == 1 {
		return affected == 1, err
	}
	if old != 0 {
		return false, nil
	}

	res, err = s.db.ExecContext(ctx, `
		INSERT INTO sequence_counters (name, value, updated_at)
		VALUES ($1,$2,now())
		ON CONFLICT (name) DO NOTHING
	`, name, next)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, string(entry.ActorRole), entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, entityType string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR entity_type = $1)
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, entityType, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleClerk
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, string(user.Role), user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullString(val *string) any {
	if val == nil {
		return nil
	}
	return *val
}

func stringFromNull(val sql.NullString) *string {
	if !val.Valid {
		return nil
	}
	out := val.String
	return &out
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func timeFromNull(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	at := val.Time.UTC()
	return &at
}
