package service

import (
	"context"

	"invoicecore/internal/domain"
)

// WatchInvoices streams invoices matching filter. The current snapshot is sent
// on subscribe and a fresh one after every successful invoice write; bursts of
// writes may be coalesced into one snapshot. The channel is closed when ctx
// is done.
func (s *Service) WatchInvoices(ctx context.Context, filter domain.InvoiceFilter) <-chan []domain.Invoice {
	out := make(chan []domain.Invoice)
	notify := make(chan struct{}, 1)
	notify <- struct{}{}

	s.watchMu.Lock()
	s.watchSeq++
	id := s.watchSeq
	s.watchers[id] = notify
	s.watchMu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			s.watchMu.Lock()
			delete(s.watchers, id)
			s.watchMu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-notify:
			}

			snapshot, err := s.ListInvoices(ctx, filter)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.Warn().Err(err).Int("watcher", id).Msg("watch snapshot failed")
				continue
			}
			select {
			case out <- snapshot.Invoices:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (s *Service) notifyWatchers() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, notify := range s.watchers {
		select {
		case notify <- struct{}{}:
		default:
		}
	}
}
