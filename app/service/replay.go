package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
	"github.com/vibast-solutions/ms-go-payment-links/app/provider"
)

type AuditLogReader interface {
	ListAfter(ctx context.Context, afterSeq uint64, limit int32) ([]*entity.AuditEntry, error)
}

type ReplayStats struct {
	Entries    int
	Created    int
	Skipped    int
	Reconciled int
	Failed     int
}

// ReplayAuditLog re-applies source in sequence order to the service store.
// Creations insert the recorded snapshot; events go through the reconciler
// with their original timestamps and without new audit entries.
func (s *PaymentService) ReplayAuditLog(ctx context.Context, source AuditLogReader) (*ReplayStats, error) {
	stats := &ReplayStats{}
	var afterSeq uint64

	for {
		entries, err := source.ListAfter(ctx, afterSeq, s.batchSize())
		if err != nil {
			return stats, err
		}
		if len(entries) == 0 {
			return stats, nil
		}

		for _, entry := range entries {
			afterSeq = entry.Seq
			stats.Entries++
			if err := s.replayEntry(ctx, entry, stats); err != nil {
				return stats, fmt.Errorf("replay audit entry %d: %w", entry.Seq, err)
			}
		}
	}
}

func (s *PaymentService) replayEntry(ctx context.Context, entry *entity.AuditEntry, stats *ReplayStats) error {
	switch entry.Source {
	case entity.AuditSourceCreation:
		var record entity.PaymentRecord
		if err := json.Unmarshal([]byte(entry.Payload), &record); err != nil || record.RequestID == "" {
			stats.Failed++
			s.logger.WithField("seq", entry.Seq).Warn("Skipping unreadable creation entry")
			return nil
		}
		if err := s.insertRecord(ctx, &record, false); err != nil {
			if errors.Is(err, ErrRecordAlreadyExists) {
				stats.Skipped++
				return nil
			}
			return err
		}
		stats.Created++
		return nil

	case entity.AuditSourceWebhook, entity.AuditSourceSync:
		event, err := provider.NormalizeEvent([]byte(entry.Payload))
		if err != nil {
			stats.Failed++
			s.logger.WithError(err).WithField("seq", entry.Seq).Warn("Skipping unreadable event entry")
			return nil
		}
		if _, err := s.reconcile(ctx, reconcileInput{
			event:     event,
			source:    entry.Source,
			signature: entry.Signature,
			payload:   []byte(entry.Payload),
			now:       entry.CreatedAt,
			replay:    true,
		}); err != nil {
			return err
		}
		stats.Reconciled++
		return nil

	default:
		stats.Failed++
		s.logger.WithField("seq", entry.Seq).WithField("source", entry.Source).Warn("Skipping entry with unknown source")
		return nil
	}
}
