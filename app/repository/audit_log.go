package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
)

// AuditLogRepository is insert-only; rows are never updated or deleted.
type AuditLogRepository struct {
	db DBTX
}

func NewAuditLogRepository(db DBTX) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Append(ctx context.Context, entry *entity.AuditEntry) error {
	query := `
		INSERT INTO payment_audit_log (
			event_id, source, event_kind, request_id, payment_id, outcome, signature, payload, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.EventID,
		string(entry.Source),
		entry.EventKind,
		nullableStringValue(entry.RequestID),
		nullableStringValue(entry.PaymentID),
		string(entry.Outcome),
		entry.Signature,
		entry.Payload,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.Seq = uint64(id)
	return nil
}

// ListAfter pages through the log in append order.
func (r *AuditLogRepository) ListAfter(ctx context.Context, afterSeq uint64, limit int32) ([]*entity.AuditEntry, error) {
	query := `
		SELECT seq, event_id, source, event_kind, request_id, payment_id, outcome, signature, payload, created_at
		FROM payment_audit_log
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.AuditEntry, 0)
	for rows.Next() {
		var (
			entry     entity.AuditEntry
			source    string
			outcome   string
			requestID sql.NullString
			paymentID sql.NullString
		)
		if err := rows.Scan(
			&entry.Seq,
			&entry.EventID,
			&source,
			&entry.EventKind,
			&requestID,
			&paymentID,
			&outcome,
			&entry.Signature,
			&entry.Payload,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.Source = entity.AuditSource(source)
		entry.Outcome = entity.AuditOutcome(outcome)
		entry.RequestID = stringPtrFromNull(requestID)
		entry.PaymentID = stringPtrFromNull(paymentID)
		entry.CreatedAt = entry.CreatedAt.UTC()
		items = append(items, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
