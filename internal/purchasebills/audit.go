package purchasebills

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/billdesk/internal/shared"
)

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// recordAudit is best effort: failures are logged and never surfaced.
func recordAudit(ctx context.Context, audit AuditPort, logger *slog.Logger, actorID, action string, billID int64, meta map[string]any) {
	if audit == nil {
		return
	}
	err := audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_bill",
		EntityID: strconv.FormatInt(billID, 10),
		Meta:     meta,
		At:       time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
