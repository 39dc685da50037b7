package purchasebills

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ReceiptUpdater issues the GRN partial updates. Both return the full bill.
type ReceiptUpdater interface {
	UpdateLineReceipt(ctx context.Context, lineID int64, received bool, remarks *string) (PurchaseBill, error)
	UpdateHardcopy(ctx context.Context, billID int64, receivedByPurchaser, handedToAccountant bool) (PurchaseBill, error)
}

// Channel names a GRN update channel.
type Channel string

const (
	ChannelLine   Channel = "line"
	ChannelHeader Channel = "header"
)

// Hardcopy flag names accepted by ToggleHardcopy.
const (
	HardcopyReceivedByPurchaser = "receivedByPurchaser"
	HardcopyHandedToAccountant  = "handedToAccountant"
)

const (
	lineFallbackMessage   = "Failed to update item receipt status."
	headerFallbackMessage = "Failed to update hardcopy status."
)

// ChannelStatus reports one channel; InFlight lists the line or bill ids
// whose controls must stay disabled.
type ChannelStatus struct {
	Status   LoadStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
	InFlight []int64    `json:"inFlight"`
}

// GRNStatus reports both channels.
type GRNStatus struct {
	Line   ChannelStatus `json:"line"`
	Header ChannelStatus `json:"header"`
}

type channelState struct {
	status   LoadStatus
	err      string
	failedID int64
	inFlight map[int64]struct{}
}

func newChannelState() *channelState {
	return &channelState{status: StatusIdle, inFlight: map[int64]struct{}{}}
}

func (c *channelState) view() ChannelStatus {
	ids := make([]int64, 0, len(c.inFlight))
	for id := range c.inFlight {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ChannelStatus{Status: c.status, Error: c.err, InFlight: ids}
}

// GRN issues receipt updates. Each channel refuses a second update for the
// same target while one is in flight; the channels never block each other.
// Bill state is only changed by confirmed server responses.
type GRN struct {
	updater ReceiptUpdater
	store   *Store
	audit   AuditPort
	metrics *Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	line   *channelState
	header *channelState
}

// NewGRN wires the GRN workflow.
func NewGRN(updater ReceiptUpdater, store *Store, audit AuditPort, metrics *Metrics, logger *slog.Logger) *GRN {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRN{
		updater: updater,
		store:   store,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
		line:    newChannelState(),
		header:  newChannelState(),
	}
}

// UpdateLineReceipt sets a line's received flag.
func (g *GRN) UpdateLineReceipt(ctx context.Context, actorID string, lineID int64, received bool, remarks *string) (PurchaseBill, error) {
	if err := g.acquire(g.line, lineID); err != nil {
		g.metrics.grn(ChannelLine, "rejected")
		return PurchaseBill{}, err
	}

	bill, err := g.updater.UpdateLineReceipt(ctx, lineID, received, remarks)
	if err == nil {
		g.store.ApplyUpdate(bill)
	}
	g.release(g.line, lineID, err, lineFallbackMessage)
	g.metrics.grn(ChannelLine, outcomeOf(err))
	if err != nil {
		g.logger.Warn("line receipt update failed", slog.Int64("line_id", lineID), slog.Any("error", err))
		return PurchaseBill{}, err
	}
	recordAudit(ctx, g.audit, g.logger, actorID, "GRN_LINE_UPDATE", bill.ID, map[string]any{
		"line_id":  lineID,
		"received": received,
		"status":   bill.OverallGRNStatus,
	})
	return bill, nil
}

// UpdateHardcopyStatus sends both hardcopy flags for a bill.
func (g *GRN) UpdateHardcopyStatus(ctx context.Context, actorID string, billID int64, receivedByPurchaser, handedToAccountant bool) (PurchaseBill, error) {
	if err := g.acquire(g.header, billID); err != nil {
		g.metrics.grn(ChannelHeader, "rejected")
		return PurchaseBill{}, err
	}

	bill, err := g.updater.UpdateHardcopy(ctx, billID, receivedByPurchaser, handedToAccountant)
	if err == nil {
		g.store.ApplyUpdate(bill)
	}
	g.release(g.header, billID, err, headerFallbackMessage)
	g.metrics.grn(ChannelHeader, outcomeOf(err))
	if err != nil {
		g.logger.Warn("hardcopy update failed", slog.Int64("bill_id", billID), slog.Any("error", err))
		return PurchaseBill{}, err
	}
	recordAudit(ctx, g.audit, g.logger, actorID, "GRN_HARDCOPY_UPDATE", bill.ID, map[string]any{
		"received_by_purchaser": receivedByPurchaser,
		"handed_to_accountant":  handedToAccountant,
	})
	return bill, nil
}

// ToggleHardcopy flips one hardcopy flag of a bill held by the store and
// resends it together with the other flag's current value.
func (g *GRN) ToggleHardcopy(ctx context.Context, actorID string, billID int64, field string) (PurchaseBill, error) {
	bill, ok := g.store.Bill(billID)
	if !ok {
		return PurchaseBill{}, ErrBillNotFound
	}
	received := bill.GRNHardcopyReceivedByPurchaser
	handed := bill.GRNHardcopyHandedToAccountant
	switch field {
	case HardcopyReceivedByPurchaser:
		received = !received
	case HardcopyHandedToAccountant:
		handed = !handed
	default:
		return PurchaseBill{}, newValidationError(nil, map[string]string{
			"field": fmt.Sprintf("must be %s or %s", HardcopyReceivedByPurchaser, HardcopyHandedToAccountant),
		})
	}
	return g.UpdateHardcopyStatus(ctx, actorID, billID, received, handed)
}

// Status reports both channels.
func (g *GRN) Status() GRNStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GRNStatus{Line: g.line.view(), Header: g.header.view()}
}

// ResetLineChannel clears the line channel's status and error.
func (g *GRN) ResetLineChannel() { g.reset(g.line) }

// ResetHeaderChannel clears the header channel's status and error.
func (g *GRN) ResetHeaderChannel() { g.reset(g.header) }

func (g *GRN) acquire(ch *channelState, id int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := ch.inFlight[id]; busy {
		return ErrUpdateInFlight
	}
	ch.inFlight[id] = struct{}{}
	// a failure stays visible until reset or until its own target is retried
	if ch.status == StatusFailed && ch.failedID != id {
		return nil
	}
	ch.status = StatusLoading
	ch.err = ""
	ch.failedID = 0
	return nil
}

func (g *GRN) release(ch *channelState, id int64, err error, fallback string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(ch.inFlight, id)
	switch {
	case err != nil:
		ch.status = StatusFailed
		ch.err = UserMessage(err, fallback)
		ch.failedID = id
	case ch.status == StatusFailed:
	case len(ch.inFlight) > 0:
		ch.status = StatusLoading
	default:
		ch.status = StatusSucceeded
	}
}

func (g *GRN) reset(ch *channelState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(ch.inFlight) > 0 {
		ch.status = StatusLoading
	} else {
		ch.status = StatusIdle
	}
	ch.err = ""
	ch.failedID = 0
}
