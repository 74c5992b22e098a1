package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"invoicecore/internal/domain"
	"invoicecore/internal/logger"
	"invoicecore/internal/store"
	"invoicecore/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	invoicesByID    map[string]domain.InvoiceRow
	invoiceByNumber map[string]string
	purchasesByID   map[string]domain.PurchaseRow
	customersByID   map[string]domain.Customer
	counters        map[string]int64
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		invoicesByID:    make(map[string]domain.InvoiceRow),
		invoiceByNumber: make(map[string]string),
		purchasesByID:   make(map[string]domain.PurchaseRow),
		customersByID:   make(map[string]domain.Customer),
		counters:        make(map[string]int64),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD; when
// unset, dev defaults are used and a warning is logged. The backend uses
// PostgreSQL when DATABASE_URL is set, so these never reach production.
func seedUsers() (map[string]domain.UserAccount, error) {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	clerkPwd := envOr("SEED_CLERK_PASSWORD", "clerk123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CLERK_PASSWORD") == "" {
		log := logger.WithComponent("memory-store")
		log.Warn().Msg("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CLERK_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     domain.Role
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"clerk", clerkPwd, domain.RoleClerk},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with dev users and two sample customers, one in
// the seller's default state and one outside it.
func NewSeeded() (*Store, error) {
	users, err := seedUsers()
	if err != nil {
		return nil, err
	}
	s := New()
	s.usersByUsername = users

	now := time.Now().UTC()
	for _, c := range []domain.Customer{
		{ID: "cus-local", Name: "Kaveri Stores", Address: "12 MG Road, Bengaluru", StateCode: ptr("29")},
		{ID: "cus-outstation", Name: "Sahyadri Traders", GSTIN: ptr("27AAPFU0939F1ZV"), Address: "Shivaji Nagar, Pune", StateCode: ptr("27")},
	} {
		c.Active = true
		c.CreatedAt = now
		c.UpdatedAt = now
		s.customersByID[c.ID] = c
	}
	return s, nil
}

func ptr(v string) *string { return &v }

func (s *Store) InsertInvoice(_ context.Context, row domain.InvoiceRow) error {
	if strings.TrimSpace(row.ID) == "" || strings.TrimSpace(row.Number) == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoicesByID[row.ID]; exists {
		return store.ErrConflict
	}
	if _, exists := s.invoiceByNumber[row.Number]; exists {
		return store.ErrConflict
	}
	s.invoicesByID[row.ID] = row
	s.invoiceByNumber[row.Number] = row.ID
	return nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (*domain.InvoiceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.invoicesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneInvoiceRow(row), nil
}

func (s *Store) UpdateInvoice(_ context.Context, row domain.InvoiceRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.invoicesByID[row.ID]
	if !exists {
		return store.ErrNotFound
	}
	if current.Version != row.Version-1 {
		return store.ErrConflict
	}
	if current.Number != row.Number {
		return store.ErrInvalidInput
	}
	s.invoicesByID[row.ID] = row
	return nil
}

func (s *Store) ListInvoices(_ context.Context, filter domain.InvoiceFilter) ([]domain.InvoiceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InvoiceRow, 0, len(s.invoicesByID))
	for _, row := range s.invoicesByID {
		if !filter.Match(row) {
			continue
		}
		result = append(result, *cloneInvoiceRow(row))
	}
	slices.SortFunc(result, func(a, b domain.InvoiceRow) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) InsertPurchase(_ context.Context, row domain.PurchaseRow) error {
	if strings.TrimSpace(row.ID) == "" || strings.TrimSpace(row.SupplierName) == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.purchasesByID[row.ID]; exists {
		return store.ErrConflict
	}
	s.purchasesByID[row.ID] = row
	return nil
}

func (s *Store) ListPurchases(_ context.Context, limit int) ([]domain.PurchaseRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.PurchaseRow, 0, len(s.purchasesByID))
	for _, row := range s.purchasesByID {
		result = append(result, row)
	}
	slices.SortFunc(result, func(a, b domain.PurchaseRow) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) error {
	if strings.TrimSpace(customer.ID) == "" || strings.TrimSpace(customer.Name) == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customersByID[customer.ID]; exists {
		return store.ErrConflict
	}
	s.customersByID[customer.ID] = domain.Customer(customer.Snapshot())
	return nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := domain.Customer(customer.Snapshot())
	return &out, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) error {
	if strings.TrimSpace(customer.Name) == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customersByID[customer.ID]; !exists {
		return store.ErrNotFound
	}
	s.customersByID[customer.ID] = domain.Customer(customer.Snapshot())
	return nil
}

func (s *Store) ListCustomers(_ context.Context, includeInactive bool) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		if !c.Active && !includeInactive {
			continue
		}
		result = append(result, domain.Customer(c.Snapshot()))
	}
	slices.SortFunc(result, func(a, b domain.Customer) int {
		if a.Name == b.Name {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) LoadCounter(_ context.Context, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[name], nil
}

func (s *Store) SwapCounter(_ context.Context, name string, old int64, next int64) (bool, error) {
	if next < 0 {
		return false, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters[name] != old {
		return false, nil
	}
	s.counters[name] = next
	return true, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, entityType string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entityType != "" && entry.EntityType != entityType {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleClerk
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// newestFirst orders by descending time, then descending id for ties.
func newestFirst(a, b time.Time, aID, bID string) int {
	if a.Equal(b) {
		return strings.Compare(bID, aID)
	}
	if a.After(b) {
		return -1
	}
	return 1
}

func cloneInvoiceRow(src domain.InvoiceRow) *domain.InvoiceRow {
	out := src
	if src.CancelledAt != nil {
		at := *src.CancelledAt
		out.CancelledAt = &at
	}
	if src.DeletedAt != nil {
		at := *src.DeletedAt
		out.DeletedAt = &at
	}
	return &out
}
