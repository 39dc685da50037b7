package purchasebills

import (
	"context"
	"log/slog"
	"sync"
)

// BillReader is the read side of the remote API.
type BillReader interface {
	ListPurchaseBills(ctx context.Context) ([]PurchaseBill, error)
	GetPurchaseBill(ctx context.Context, id int64) (PurchaseBill, error)
}

const (
	listFallbackMessage   = "Failed to load purchase bills."
	detailFallbackMessage = "Failed to load purchase bill."
)

// ListView is the bill list slot.
type ListView struct {
	Status LoadStatus     `json:"status"`
	Error  string         `json:"error,omitempty"`
	Bills  []PurchaseBill `json:"bills"`
}

// SelectedView is the selected-bill slot.
type SelectedView struct {
	Status LoadStatus    `json:"status"`
	Error  string        `json:"error,omitempty"`
	ID     int64         `json:"id,omitempty"`
	Bill   *PurchaseBill `json:"bill,omitempty"`
}

// StoreView is a consistent copy of both slots.
type StoreView struct {
	List     ListView     `json:"list"`
	Selected SelectedView `json:"selected"`
}

// Store holds the bill list and the selected bill. It is written only with
// server responses. A mutation response is written into both slots under one
// lock, so readers never observe them diverging.
type Store struct {
	reader BillReader
	logger *slog.Logger

	mu          sync.RWMutex
	list        []PurchaseBill
	listStatus  LoadStatus
	listErr     string
	listGen     uint64
	selected    *PurchaseBill
	selectedID  int64
	selStatus   LoadStatus
	selErr      string
	selectedGen uint64
}

// NewStore constructs an empty store.
func NewStore(reader BillReader, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{reader: reader, logger: logger, listStatus: StatusIdle, selStatus: StatusIdle}
}

// FetchList loads the list. Only the most recent fetch is applied.
func (s *Store) FetchList(ctx context.Context) ([]PurchaseBill, error) {
	s.mu.Lock()
	s.listGen++
	gen := s.listGen
	s.listStatus = StatusLoading
	s.listErr = ""
	s.mu.Unlock()

	bills, err := s.reader.ListPurchaseBills(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.listGen {
		s.logger.Debug("superseded bill list response discarded")
		return bills, err
	}
	if err != nil {
		s.listStatus = StatusFailed
		s.listErr = UserMessage(err, listFallbackMessage)
		return nil, err
	}
	merged := make([]PurchaseBill, 0, len(bills))
	for _, bill := range bills {
		if s.selected != nil && s.selected.ID == bill.ID {
			if olderThan(bill, *s.selected) {
				bill = *s.selected
			} else {
				fresh := bill.Clone()
				s.selected = &fresh
			}
		}
		merged = append(merged, bill.Clone())
	}
	s.list = merged
	s.listStatus = StatusSucceeded
	return cloneBills(merged), nil
}

// FetchByID loads one bill into the selected slot, replacing it wholesale.
// A response is dropped when another fetch or ClearSelected came after it.
func (s *Store) FetchByID(ctx context.Context, id int64) (PurchaseBill, error) {
	s.mu.Lock()
	s.selectedGen++
	gen := s.selectedGen
	if s.selectedID != id {
		s.selected = nil
	}
	s.selectedID = id
	s.selStatus = StatusLoading
	s.selErr = ""
	s.mu.Unlock()

	bill, err := s.reader.GetPurchaseBill(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.selectedGen {
		s.logger.Debug("superseded bill response discarded", slog.Int64("bill_id", id))
		return bill, err
	}
	if err != nil {
		s.selStatus = StatusFailed
		s.selErr = UserMessage(err, detailFallbackMessage)
		return PurchaseBill{}, err
	}
	fresh := bill.Clone()
	s.selected = &fresh
	s.selStatus = StatusSucceeded
	for i := range s.list {
		if s.list[i].ID == bill.ID && !olderThan(bill, s.list[i]) {
			s.list[i] = bill.Clone()
		}
	}
	return bill.Clone(), nil
}

// ClearSelected resets the selected slot; an in-flight fetch is discarded.
func (s *Store) ClearSelected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedGen++
	s.selected = nil
	s.selectedID = 0
	s.selStatus = StatusIdle
	s.selErr = ""
}

// Append adds a newly created bill to the list. An entry with the same id is
// replaced the way ApplyUpdate replaces it, including the selected slot.
func (s *Store) Append(bill PurchaseBill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if applied, listed := s.applyLocked(bill); applied && !listed {
		s.list = append(s.list, bill.Clone())
	}
}

// ApplyUpdate writes a mutation response into the selected slot (when the ids
// match) and the matching list entry. A response older than the version the
// store already holds is discarded; the return value reports whether it was
// applied.
func (s *Store) ApplyUpdate(bill PurchaseBill) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	applied, _ := s.applyLocked(bill)
	return applied
}

// applyLocked writes bill into both slots; listed reports whether the list
// holds its id. Callers hold s.mu.
func (s *Store) applyLocked(bill PurchaseBill) (applied, listed bool) {
	if s.selected != nil && s.selected.ID == bill.ID && olderThan(bill, *s.selected) {
		return false, false
	}
	for i := range s.list {
		if s.list[i].ID == bill.ID && olderThan(bill, s.list[i]) {
			return false, true
		}
	}
	if s.selected != nil && s.selected.ID == bill.ID {
		fresh := bill.Clone()
		s.selected = &fresh
	}
	for i := range s.list {
		if s.list[i].ID == bill.ID {
			s.list[i] = bill.Clone()
			listed = true
		}
	}
	return true, listed
}

// View returns both slots.
func (s *Store) View() StoreView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := StoreView{
		List: ListView{Status: s.listStatus, Error: s.listErr, Bills: cloneBills(s.list)},
		Selected: SelectedView{
			Status: s.selStatus,
			Error:  s.selErr,
			ID:     s.selectedID,
		},
	}
	if view.List.Bills == nil {
		view.List.Bills = []PurchaseBill{}
	}
	if s.selected != nil {
		bill := s.selected.Clone()
		view.Selected.Bill = &bill
	}
	return view
}

// ListStatus reports the list slot status.
func (s *Store) ListStatus() LoadStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listStatus
}

// Selected returns the selected bill.
func (s *Store) Selected() (PurchaseBill, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return PurchaseBill{}, false
	}
	return s.selected.Clone(), true
}

// Bill returns the freshest known copy of a bill from either slot.
func (s *Store) Bill(id int64) (PurchaseBill, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *PurchaseBill
	if s.selected != nil && s.selected.ID == id {
		found = s.selected
	}
	for i := range s.list {
		if s.list[i].ID == id && (found == nil || olderThan(*found, s.list[i])) {
			found = &s.list[i]
		}
	}
	if found == nil {
		return PurchaseBill{}, false
	}
	return found.Clone(), true
}

// BillForLine returns the bill that owns lineID.
func (s *Store) BillForLine(lineID int64) (PurchaseBill, BillLine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected != nil {
		if line, ok := s.selected.Line(lineID); ok {
			return s.selected.Clone(), line, true
		}
	}
	for i := range s.list {
		if line, ok := s.list[i].Line(lineID); ok {
			return s.list[i].Clone(), line, true
		}
	}
	return PurchaseBill{}, BillLine{}, false
}

// olderThan reports whether candidate predates known. Bills without an
// updatedAt are never considered older.
func olderThan(candidate, known PurchaseBill) bool {
	if candidate.UpdatedAt.IsZero() || known.UpdatedAt.IsZero() {
		return false
	}
	return candidate.UpdatedAt.Before(known.UpdatedAt.Time)
}

func cloneBills(bills []PurchaseBill) []PurchaseBill {
	if bills == nil {
		return nil
	}
	out := make([]PurchaseBill, len(bills))
	for i, bill := range bills {
		out[i] = bill.Clone()
	}
	return out
}
