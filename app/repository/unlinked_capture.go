package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
)

type UnlinkedCaptureRepository struct {
	db DBTX
}

func NewUnlinkedCaptureRepository(db DBTX) *UnlinkedCaptureRepository {
	return &UnlinkedCaptureRepository{db: db}
}

func (r *UnlinkedCaptureRepository) Create(ctx context.Context, capture *entity.UnlinkedCapture) error {
	query := `
		INSERT INTO unlinked_captures (
			payment_id, order_id, method, captured, email, contact, amount_minor, payload, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		capture.PaymentID,
		nullableStringValue(capture.OrderID),
		nullableStringValue(capture.Method),
		capture.Captured,
		nullableStringValue(capture.Email),
		nullableStringValue(capture.Contact),
		capture.AmountMinor,
		capture.Payload,
		capture.CreatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrCaptureAlreadyRecorded
		}
		return err
	}
	return nil
}

func (r *UnlinkedCaptureRepository) List(ctx context.Context, limit int32) ([]*entity.UnlinkedCapture, error) {
	query := `
		SELECT payment_id, order_id, method, captured, email, contact, amount_minor, payload, created_at
		FROM unlinked_captures
		ORDER BY created_at ASC, payment_id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.UnlinkedCapture, 0)
	for rows.Next() {
		var (
			item    entity.UnlinkedCapture
			orderID sql.NullString
			method  sql.NullString
			email   sql.NullString
			contact sql.NullString
		)
		if err := rows.Scan(
			&item.PaymentID,
			&orderID,
			&method,
			&item.Captured,
			&email,
			&contact,
			&item.AmountMinor,
			&item.Payload,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.OrderID = stringPtrFromNull(orderID)
		item.Method = stringPtrFromNull(method)
		item.Email = stringPtrFromNull(email)
		item.Contact = stringPtrFromNull(contact)
		item.CreatedAt = item.CreatedAt.UTC()
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
