package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
	"github.com/vibast-solutions/ms-go-payment-links/app/provider"
)

const defaultSyncStaleAfter = 15 * time.Minute

// RunSyncBatch polls the provider for open records that have not changed for a
// while and reconciles any newer status through the regular event path. Every
// polled record is stamped so the next batch moves on to other records.
func (s *PaymentService) RunSyncBatch(ctx context.Context) error {
	staleAfter := s.paymentsCfg.SyncStaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultSyncStaleAfter
	}

	before := time.Now().UTC().Add(-staleAfter)
	items, err := s.recordRepo.ListForSync(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, record := range items {
		if record == nil {
			continue
		}

		status, err := s.provider.FetchPaymentRequestStatus(ctx, record.Kind, record.RequestID)
		if markErr := s.recordRepo.MarkSynced(ctx, record.RequestID, time.Now().UTC()); markErr != nil {
			firstErr = keepFirstErr(firstErr, fmt.Errorf("mark %s synced: %w", record.RequestID, markErr))
		}
		if err != nil {
			upstreamErr := newUpstreamError(err)
			s.metrics.UpstreamFailure(upstreamErr.Code)
			s.metrics.SyncRecord("failed")
			firstErr = keepFirstErr(firstErr, fmt.Errorf("fetch status of %s: %w", record.RequestID, upstreamErr))
			continue
		}

		body, ok := provider.BuildLinkStatusEvent(record.RequestID, status)
		if !ok {
			s.metrics.SyncRecord("unchanged")
			continue
		}

		event, err := provider.NormalizeEvent(body)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		result, err := s.reconcile(ctx, reconcileInput{
			event:   event,
			source:  entity.AuditSourceSync,
			payload: body,
		})
		if err != nil {
			s.metrics.SyncRecord("failed")
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		s.metrics.SyncRecord(string(result.Outcome))
	}

	return firstErr
}
