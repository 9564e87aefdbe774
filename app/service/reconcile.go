package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
	"github.com/vibast-solutions/ms-go-payment-links/app/provider"
	"github.com/vibast-solutions/ms-go-payment-links/app/repository"
)

type ReconcileResult struct {
	EventKind string
	RequestID string
	PaymentID string
	Outcome   entity.AuditOutcome
}

type reconcileInput struct {
	event     *provider.NormalizedEvent
	source    entity.AuditSource
	signature string
	payload   []byte
	now       time.Time

	// replay re-applies an entry that is already in the audit log.
	replay bool
}

func (s *PaymentService) reconcile(ctx context.Context, in reconcileInput) (*ReconcileResult, error) {
	if in.now.IsZero() {
		in.now = time.Now().UTC()
	}

	var (
		result *ReconcileResult
		err    error
	)
	switch {
	case in.event.IsLinkEvent():
		result, err = s.reconcileLinkEvent(ctx, in)
	case in.event.Kind == provider.EventKindPaymentCaptured:
		result, err = s.reconcileCapture(ctx, in)
	default:
		result = &ReconcileResult{EventKind: in.event.RawKind, Outcome: entity.AuditOutcomeIgnored}
		err = s.appendAudit(ctx, in, nil, nil, entity.AuditOutcomeIgnored)
	}
	if err != nil {
		return nil, err
	}

	if !in.replay {
		s.metrics.WebhookEvent(in.event.RawKind, string(result.Outcome))
	}
	return result, nil
}

func (s *PaymentService) reconcileLinkEvent(ctx context.Context, in reconcileInput) (*ReconcileResult, error) {
	requestID := in.event.RequestID
	result := &ReconcileResult{EventKind: in.event.RawKind, RequestID: requestID}

	err := s.locker.WithLock(ctx, recordLockKey(requestID), func(ctx context.Context) error {
		record, err := s.recordRepo.FindByRequestID(ctx, requestID)
		if err != nil {
			return fmt.Errorf("load payment record: %w", err)
		}
		if record == nil {
			result.Outcome = entity.AuditOutcomeLostUpdate
			s.logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"event":      in.event.RawKind,
				"source":     in.source,
			}).Warn("Dropping event for unknown payment request")
			return s.appendAudit(ctx, in, &requestID, nil, result.Outcome)
		}

		patch := decideLinkTransition(record.Status, in.event.Status)
		return s.applyPatch(ctx, in, record, patch, nil, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PaymentService) reconcileCapture(ctx context.Context, in reconcileInput) (*ReconcileResult, error) {
	capture := in.event.Capture
	result := &ReconcileResult{EventKind: in.event.RawKind, PaymentID: capture.PaymentID}
	paymentID := capture.PaymentID

	for _, requestID := range captureCandidates(capture) {
		resolved := false
		err := s.locker.WithLock(ctx, recordLockKey(requestID), func(ctx context.Context) error {
			record, err := s.recordRepo.FindByRequestID(ctx, requestID)
			if err != nil {
				return fmt.Errorf("load payment record: %w", err)
			}
			if record == nil {
				return nil
			}
			resolved = true
			result.RequestID = requestID
			return s.applyPatch(ctx, in, record, decideCapture(record, capture), &paymentID, result)
		})
		if err != nil {
			return nil, err
		}
		if resolved {
			return result, nil
		}
	}

	result.Outcome = entity.AuditOutcomeUnlinked
	err := s.locker.WithLock(ctx, captureLockKey(paymentID), func(ctx context.Context) error {
		if err := s.appendAudit(ctx, in, nil, &paymentID, result.Outcome); err != nil {
			return err
		}

		err := s.unlinkedRepo.Create(ctx, &entity.UnlinkedCapture{
			PaymentID:   paymentID,
			OrderID:     capture.OrderID,
			Method:      capture.Method,
			Captured:    capture.Captured,
			Email:       capture.Email,
			Contact:     capture.Contact,
			AmountMinor: capture.AmountMinor,
			Payload:     string(in.payload),
			CreatedAt:   in.now,
		})
		if errors.Is(err, repository.ErrCaptureAlreadyRecorded) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("record unlinked capture: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id":   paymentID,
		"amount_minor": capture.AmountMinor,
		"source":       in.source,
	}).Info("Captured payment has no matching payment request")
	return result, nil
}

// applyPatch audits the decision and then writes it. Must be called while
// holding the record lock.
func (s *PaymentService) applyPatch(
	ctx context.Context,
	in reconcileInput,
	record *entity.PaymentRecord,
	patch entity.PaymentRecordPatch,
	paymentID *string,
	result *ReconcileResult,
) error {
	result.Outcome = entity.AuditOutcomeApplied
	if patch.IsEmpty() {
		result.Outcome = entity.AuditOutcomeNoop
	}

	requestID := record.RequestID
	if err := s.appendAudit(ctx, in, &requestID, paymentID, result.Outcome); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}

	if err := s.recordRepo.Update(ctx, requestID, patch, in.now); err != nil {
		return fmt.Errorf("update payment record: %w", err)
	}

	fields := logrus.Fields{"request_id": requestID, "event": in.event.RawKind, "source": in.source}
	if patch.Status != nil {
		fields["from"] = record.Status
		fields["to"] = *patch.Status
	}
	s.logger.WithFields(fields).Info("Payment record reconciled")
	return nil
}

func (s *PaymentService) appendAudit(
	ctx context.Context,
	in reconcileInput,
	requestID *string,
	paymentID *string,
	outcome entity.AuditOutcome,
) error {
	if in.replay {
		return nil
	}

	err := s.auditRepo.Append(ctx, &entity.AuditEntry{
		EventID:   uuid.NewString(),
		Source:    in.source,
		EventKind: in.event.RawKind,
		RequestID: requestID,
		PaymentID: paymentID,
		Outcome:   outcome,
		Signature: in.signature,
		Payload:   string(in.payload),
		CreatedAt: in.now,
	})
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// decideLinkTransition moves non-terminal records to the event status. paid
// and failed records are never changed by link events.
func decideLinkTransition(current, target entity.Status) entity.PaymentRecordPatch {
	if current == target || current.Terminal() || !target.Valid() {
		return entity.PaymentRecordPatch{}
	}
	return entity.PaymentRecordPatch{Status: &target}
}

// decideCapture fills write-once payment fields and empty contact details, and
// marks the record paid.
func decideCapture(record *entity.PaymentRecord, capture *provider.CapturedPayment) entity.PaymentRecordPatch {
	var patch entity.PaymentRecordPatch

	if record.PaymentID == nil {
		paymentID := capture.PaymentID
		patch.PaymentID = &paymentID
	}
	if record.OrderID == nil && capture.OrderID != nil {
		patch.OrderID = capture.OrderID
	}
	if record.Method == nil && capture.Method != nil {
		patch.Method = capture.Method
	}
	if record.Captured == nil {
		captured := capture.Captured
		patch.Captured = &captured
	}
	if isBlank(record.Email) && capture.Email != nil {
		patch.Email = capture.Email
	}
	if isBlank(record.Contact) && capture.Contact != nil {
		patch.Contact = capture.Contact
	}
	if record.Status != entity.StatusPaid {
		paid := entity.StatusPaid
		patch.Status = &paid
	}

	return patch
}

// captureCandidates lists the request ids a capture may belong to: the id in
// the payment notes, then the order id, which is the request id of order
// backed requests.
func captureCandidates(capture *provider.CapturedPayment) []string {
	candidates := make([]string, 0, 2)
	if capture.LinkedRequestID != nil {
		candidates = append(candidates, *capture.LinkedRequestID)
	}
	if capture.OrderID != nil && (len(candidates) == 0 || candidates[0] != *capture.OrderID) {
		candidates = append(candidates, *capture.OrderID)
	}
	return candidates
}

func isBlank(v *string) bool {
	return v == nil || strings.TrimSpace(*v) == ""
}
