package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"invoicecore/internal/cache"
	"invoicecore/internal/codec"
	"invoicecore/internal/domain"
	"invoicecore/internal/invoice"
	"invoicecore/internal/logger"
	"invoicecore/internal/sequence"
	"invoicecore/internal/store"
	"invoicecore/internal/tax"
	"invoicecore/internal/words"
	"invoicecore/internal/xid"
)

var ErrForbidden = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	SellerID        string
	SellerStateCode string
	Rates           tax.RateTable
	RoundOffEnabled bool
	CacheTTL        time.Duration
}

type Service struct {
	repo      store.Repository
	allocator *sequence.Allocator
	cache     cache.InvoiceCache
	opts      Options
	log       zerolog.Logger
	now       func() time.Time

	watchMu  sync.Mutex
	watchers map[int]chan struct{}
	watchSeq int
}

func New(repo store.Repository, allocator *sequence.Allocator, invoiceCache cache.InvoiceCache, opts Options) *Service {
	if invoiceCache == nil {
		invoiceCache = cache.NoopInvoiceCache{}
	}
	if opts.SellerID == "" {
		opts.SellerID = "main-seller"
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	return &Service{
		repo:      repo,
		allocator: allocator,
		cache:     invoiceCache,
		opts:      opts,
		log:       logger.WithComponent("service"),
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		watchers:  make(map[int]chan struct{}),
	}
}

func (s *Service) SuggestInvoiceNumber(ctx context.Context) (domain.NextNumberResponse, error) {
	n, err := s.allocator.PeekSuggested(ctx)
	if err != nil {
		return domain.NextNumberResponse{}, err
	}
	return domain.NextNumberResponse{Suggested: n, Display: s.allocator.Format(n)}, nil
}

// GenerateInvoice assembles and persists a new invoice, then advances the
// number counter if the suggested number was used. A failed advance is
// logged and not retried.
func (s *Service) GenerateInvoice(ctx context.Context, req domain.GenerateInvoiceRequest) (domain.Invoice, error) {
	if len(req.Items) == 0 || strings.TrimSpace(req.CustomerID) == "" {
		return domain.Invoice{}, store.ErrInvalidInput
	}

	number := strings.TrimSpace(req.Number)
	if err := checkText(number); err != nil {
		return domain.Invoice{}, err
	}
	if number == "" {
		suggested, err := s.SuggestInvoiceNumber(ctx)
		if err != nil {
			return domain.Invoice{}, err
		}
		number = suggested.Display
	}

	customer, err := s.repo.GetCustomer(ctx, strings.TrimSpace(req.CustomerID))
	if err != nil {
		return domain.Invoice{}, err
	}
	if !customer.Active {
		return domain.Invoice{}, fmt.Errorf("customer %s is inactive: %w", customer.ID, store.ErrInvalidInput)
	}

	items, err := buildItems[domain.InvoiceItem](req.Items, domain.NewInvoiceItem)
	if err != nil {
		return domain.Invoice{}, err
	}
	now := s.now()
	issueDate, err := parseDate(req.IssueDate, now)
	if err != nil {
		return domain.Invoice{}, err
	}

	inv, err := invoice.Assemble(invoice.AssembleInput{
		ID:              xid.New("inv"),
		Number:          number,
		IssueDate:       issueDate,
		SellerID:        s.opts.SellerID,
		Customer:        customer.Snapshot(),
		SupplyType:      tax.ClassifySupply(s.sellerState(), customer.StateCode),
		Items:           items,
		ShippingCharge:  req.ShippingCharge,
		Rates:           s.opts.Rates,
		RoundOffEnabled: s.opts.RoundOffEnabled,
		Final:           !req.Draft,
		Now:             now,
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	if err := s.repo.InsertInvoice(ctx, invoice.ToRow(inv)); err != nil {
		return domain.Invoice{}, err
	}
	if _, err := s.allocator.ConfirmIfSuggested(ctx, inv.Number); err != nil {
		s.log.Warn().Err(err).Str("invoice", inv.ID).Str("number", inv.Number).Msg("counter not advanced")
	}

	s.cacheInvoice(ctx, inv)
	s.logAudit(ctx, "invoice.generate", "invoice", inv.ID, fmt.Sprintf("number=%s,status=%s,total=%.2f", inv.Number, inv.Status, inv.RoundedTotal))
	s.notifyWatchers()
	return inv, nil
}

func (s *Service) FinalizeInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	return s.transition(ctx, id, "invoice.finalize", "", func(inv domain.Invoice, now time.Time) (domain.Invoice, error) {
		return invoice.Finalize(inv, now)
	})
}

func (s *Service) CancelInvoice(ctx context.Context, id string, req domain.CancelInvoiceRequest) (domain.Invoice, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "unspecified"
	}
	return s.transition(ctx, id, "invoice.cancel", reason, func(inv domain.Invoice, now time.Time) (domain.Invoice, error) {
		return invoice.Cancel(inv, reason, now)
	})
}

// DeleteInvoice soft-deletes the invoice. Deleting twice is a no-op.
func (s *Service) DeleteInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Invoice{}, ErrForbidden
	}
	return s.transition(ctx, id, "invoice.delete", "", func(inv domain.Invoice, now time.Time) (domain.Invoice, error) {
		return invoice.SoftDelete(inv, now), nil
	})
}

func (s *Service) transition(ctx context.Context, id string, action string, detail string, apply func(domain.Invoice, time.Time) (domain.Invoice, error)) (domain.Invoice, error) {
	row, err := s.repo.GetInvoice(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Invoice{}, err
	}
	current := invoice.FromRow(*row)

	next, err := apply(current, s.now())
	if err != nil {
		return domain.Invoice{}, err
	}
	if next.Version == current.Version {
		return current, nil
	}
	if err := s.repo.UpdateInvoice(ctx, invoice.ToRow(next)); err != nil {
		return domain.Invoice{}, err
	}

	s.cacheInvoice(ctx, next)
	s.logAudit(ctx, action, "invoice", next.ID, detail)
	s.notifyWatchers()
	return next, nil
}

// GetInvoice reads through the invoice cache. Deleted invoices are still
// returned; callers check Deleted.
func (s *Service) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Invoice{}, store.ErrInvalidInput
	}
	if cached, ok, err := s.cache.Get(ctx, id); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		s.log.Warn().Err(err).Str("invoice", id).Msg("cache read failed")
	}

	row, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv := invoice.FromRow(*row)
	s.cacheInvoice(ctx, inv)
	return inv, nil
}

func (s *Service) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) (domain.InvoiceListResponse, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return domain.InvoiceListResponse{}, store.ErrInvalidInput
	}
	rows, err := s.repo.ListInvoices(ctx, filter)
	if err != nil {
		return domain.InvoiceListResponse{}, err
	}
	invoices := make([]domain.Invoice, 0, len(rows))
	for _, row := range rows {
		invoices = append(invoices, invoice.FromRow(row))
	}
	return domain.InvoiceListResponse{Invoices: invoices}, nil
}

func (s *Service) QuoteGST(_ context.Context, req domain.TaxQuoteRequest) (domain.TaxQuoteResponse, error) {
	seller := req.SellerStateCode
	if seller == nil {
		seller = s.sellerState()
	}
	rate := s.opts.Rates.Default
	if req.Rate != nil {
		rate = *req.Rate
	}

	supply := tax.ClassifySupply(seller, req.BuyerStateCode)
	breakdown, err := tax.ComputeGST(req.TaxableAmount, supply, rate)
	if err != nil {
		return domain.TaxQuoteResponse{}, err
	}
	total := req.TaxableAmount + breakdown.TotalTax
	rounded, adjustment := invoice.RoundOff(total, s.opts.RoundOffEnabled)
	inWords, err := words.AmountInWords(rounded)
	if err != nil {
		return domain.TaxQuoteResponse{}, err
	}

	return domain.TaxQuoteResponse{
		SupplyType:    supply,
		Breakdown:     breakdown,
		TotalWithTax:  total,
		RoundedTotal:  rounded,
		RoundOff:      adjustment,
		AmountInWords: inWords,
	}, nil
}

func (s *Service) AmountInWords(_ context.Context, amount float64) (domain.AmountInWordsResponse, error) {
	text, err := words.AmountInWords(amount)
	if err != nil {
		return domain.AmountInWordsResponse{}, err
	}
	return domain.AmountInWordsResponse{Amount: amount, Words: text}, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, store.ErrInvalidInput
	}

	if err := checkText(name, req.Address, deref(req.GSTIN), deref(req.Phone), deref(req.Email), deref(req.StateCode)); err != nil {
		return domain.Customer{}, err
	}

	now := s.now()
	customer := domain.Customer{
		ID:        xid.New("cus"),
		Name:      name,
		GSTIN:     normalizeOptional(req.GSTIN),
		Address:   strings.TrimSpace(req.Address),
		Phone:     normalizeOptional(req.Phone),
		Email:     normalizeOptional(req.Email),
		StateCode: normalizeOptional(req.StateCode),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer.create", "customer", customer.ID, "name="+customer.Name)
	return customer, nil
}

// UpdateCustomer edits the live customer record. Invoices already issued keep
// their own snapshot.
func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	existing, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}
	if req.GSTIN != nil {
		updated.GSTIN = normalizeOptional(req.GSTIN)
	}
	if req.Phone != nil {
		updated.Phone = normalizeOptional(req.Phone)
	}
	if req.Email != nil {
		updated.Email = normalizeOptional(req.Email)
	}
	if req.StateCode != nil {
		updated.StateCode = normalizeOptional(req.StateCode)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if err := checkText(updated.Name, updated.Address, deref(updated.GSTIN), deref(updated.Phone), deref(updated.Email), deref(updated.StateCode)); err != nil {
		return domain.Customer{}, err
	}
	updated.UpdatedAt = s.now()

	if err := s.repo.UpdateCustomer(ctx, updated); err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer.update", "customer", updated.ID, fmt.Sprintf("name=%s,active=%t", updated.Name, updated.Active))
	return updated, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, includeInactive bool) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, includeInactive)
}

func (s *Service) RecordPurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	supplier := strings.TrimSpace(req.SupplierName)
	if supplier == "" || len(req.Items) == 0 {
		return domain.Purchase{}, store.ErrInvalidInput
	}

	items, err := buildItems[domain.PurchasedItem](req.Items, domain.NewPurchasedItem)
	if err != nil {
		return domain.Purchase{}, err
	}
	var total float64
	for _, item := range items {
		total += item.Total
	}
	if err := tax.CheckAmount("purchase total", total); err != nil {
		return domain.Purchase{}, err
	}

	now := s.now()
	purchaseDate, err := parseDate(req.PurchaseDate, now)
	if err != nil {
		return domain.Purchase{}, err
	}
	purchase := domain.Purchase{
		ID:           xid.New("pur"),
		SupplierName: supplier,
		Reference:    strings.TrimSpace(req.Reference),
		PurchaseDate: purchaseDate,
		Items:        items,
		Total:        total,
		CreatedAt:    now,
	}
	if err := s.repo.InsertPurchase(ctx, invoice.PurchaseToRow(purchase)); err != nil {
		return domain.Purchase{}, err
	}

	s.logAudit(ctx, "purchase.record", "purchase", purchase.ID, fmt.Sprintf("supplier=%s,total=%.2f", supplier, total))
	return purchase, nil
}

func (s *Service) ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error) {
	rows, err := s.repo.ListPurchases(ctx, limit)
	if err != nil {
		return nil, err
	}
	purchases := make([]domain.Purchase, 0, len(rows))
	for _, row := range rows {
		purchases = append(purchases, invoice.PurchaseFromRow(row))
	}
	return purchases, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, entityType string, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	// Without a date the window is the trailing 24 hours, inclusive of now.
	to := s.now().Add(time.Nanosecond)
	from := to.Add(-24 * time.Hour)
	if strings.TrimSpace(date) != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = parsed.UTC()
		to = from.Add(24 * time.Hour)
	}

	return s.repo.ListAuditLogs(ctx, strings.TrimSpace(entityType), from, to, limit)
}

func (s *Service) sellerState() *string {
	if s.opts.SellerStateCode == "" {
		return nil
	}
	code := s.opts.SellerStateCode
	return &code
}

func (s *Service) cacheInvoice(ctx context.Context, inv domain.Invoice) {
	if err := s.cache.Set(ctx, &inv, s.opts.CacheTTL); err != nil {
		s.log.Warn().Err(err).Str("invoice", inv.ID).Msg("cache write failed")
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: domain.RoleSystem}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		s.log.Warn().Err(err).
			Str("action", action).
			Str("entity", entityType+"/"+entityID).
			Msg("failed to write audit log")
	}
}

func buildItems[T any](inputs []domain.LineItemInput, build func(string, *string, string, string, string, float64, float64) T) ([]T, error) {
	items := make([]T, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, fmt.Errorf("item %d: %w", i+1, store.ErrInvalidInput)
		}
		if err := checkText(name, in.HSN, in.Unit, deref(in.ProductID)); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		if err := tax.CheckAmount(fmt.Sprintf("item %d quantity", i+1), in.Quantity); err != nil {
			return nil, err
		}
		if err := tax.CheckAmount(fmt.Sprintf("item %d price", i+1), in.Price); err != nil {
			return nil, err
		}
		items = append(items, build(
			xid.New("li"),
			normalizeOptional(in.ProductID),
			name,
			strings.TrimSpace(in.HSN),
			strings.TrimSpace(in.Unit),
			in.Quantity,
			in.Price,
		))
	}
	return items, nil
}

// checkText rejects values that would corrupt an encoded column.
func checkText(values ...string) error {
	for _, v := range values {
		if !codec.SafeText(strings.TrimSpace(v)) {
			return fmt.Errorf("text %q contains a reserved separator: %w", v, store.ErrInvalidInput)
		}
	}
	return nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// normalizeOptional trims v and maps a blank value to nil.
func normalizeOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func parseDate(raw string, fallback time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", raw, store.ErrInvalidInput)
	}
	return parsed.UTC(), nil
}
