package purchasebills

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// BillCreator issues the atomic "create bill" request.
type BillCreator interface {
	CreatePurchaseBill(ctx context.Context, bill NewPurchaseBill, idempotencyKey string) (PurchaseBill, error)
}

// SubmissionState is the state of the submission workflow.
type SubmissionState string

const (
	SubmissionIdle       SubmissionState = "idle"
	SubmissionSubmitting SubmissionState = "submitting"
	SubmissionFailed     SubmissionState = "failed"
)

const submitFallbackMessage = "Failed to create purchase bill. Please try again."

// SubmissionStatus is exposed to the UI layer.
type SubmissionStatus struct {
	State       SubmissionState   `json:"state"`
	Message     string            `json:"message,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	LastBillID  int64             `json:"lastBillId,omitempty"`
}

// Submission validates the draft and submits it as one creation request.
type Submission struct {
	composer *Composer
	store    *Store
	creator  BillCreator
	audit    AuditPort
	metrics  *Metrics
	logger   *slog.Logger
	newKey   func() string

	mu          sync.Mutex
	state       SubmissionState
	message     string
	fieldErrors map[string]string
	lastBillID  int64
	key         string
	keyRevision uint64
}

// NewSubmission wires the workflow.
func NewSubmission(composer *Composer, store *Store, creator BillCreator, audit AuditPort, metrics *Metrics, logger *slog.Logger) *Submission {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submission{
		composer: composer,
		store:    store,
		creator:  creator,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		newKey:   func() string { return uuid.NewString() },
		state:    SubmissionIdle,
	}
}

// Submit creates the bill from the current draft. Preconditions are checked
// before any request is made. On failure the draft is kept as is and the same
// idempotency key is reused on retry while the draft is unchanged.
func (s *Submission) Submit(ctx context.Context, actorID string) (PurchaseBill, error) {
	s.mu.Lock()
	if s.state == SubmissionSubmitting {
		s.mu.Unlock()
		s.metrics.submission("rejected")
		return PurchaseBill{}, ErrSubmitInFlight
	}
	payload, revision, err := s.composer.beginSubmit()
	if err != nil {
		s.mu.Unlock()
		s.metrics.submission("rejected")
		return PurchaseBill{}, err
	}
	if s.key == "" || s.keyRevision != revision {
		s.key = s.newKey()
		s.keyRevision = revision
	}
	key := s.key
	s.state = SubmissionSubmitting
	s.message = ""
	s.fieldErrors = nil
	s.mu.Unlock()

	bill, err := s.creator.CreatePurchaseBill(ctx, payload, key)
	if err != nil {
		s.composer.finishSubmit(false)
		s.mu.Lock()
		s.state = SubmissionFailed
		s.message = UserMessage(err, submitFallbackMessage)
		s.fieldErrors = remoteFieldErrors(err)
		s.mu.Unlock()
		s.metrics.submission("failure")
		s.logger.Warn("purchase bill submission failed", slog.String("bill_number", payload.BillNumber), slog.Any("error", err))
		return PurchaseBill{}, err
	}

	if s.store != nil {
		s.store.Append(bill)
	}
	s.composer.finishSubmit(true)
	s.mu.Lock()
	s.state = SubmissionIdle
	s.lastBillID = bill.ID
	s.key = ""
	s.mu.Unlock()
	s.metrics.submission("success")
	s.logger.Info("purchase bill created", slog.Int64("bill_id", bill.ID), slog.Int("lines", len(payload.Items)))
	recordAudit(ctx, s.audit, s.logger, actorID, "PURCHASE_BILL_CREATE", bill.ID, map[string]any{
		"bill_number": bill.BillNumber,
		"lines":       len(payload.Items),
		"total":       bill.TotalAmount.String(),
	})
	return bill, nil
}

// Status returns the current submission status.
func (s *Submission) Status() SubmissionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := SubmissionStatus{State: s.state, Message: s.message, LastBillID: s.lastBillID}
	if len(s.fieldErrors) > 0 {
		status.FieldErrors = make(map[string]string, len(s.fieldErrors))
		for k, v := range s.fieldErrors {
			status.FieldErrors[k] = v
		}
	}
	return status
}

// Reset clears a failed status. It is a no-op while submitting.
func (s *Submission) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SubmissionSubmitting {
		return
	}
	s.state = SubmissionIdle
	s.message = ""
	s.fieldErrors = nil
}

func remoteFieldErrors(err error) map[string]string {
	var carrier interface{ FieldErrors() map[string]string }
	if errors.As(err, &carrier) {
		return carrier.FieldErrors()
	}
	return nil
}
