package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
)

type RecordFilter struct {
	HasStatus bool
	Status    entity.Status
	Limit     int32
	Offset    int32
}

const paymentRecordColumns = `
	request_id, kind, status, amount_minor, currency,
	name, description, contact, email, checkout_url,
	payment_id, order_id, method, captured,
	created_at, updated_at
`

type PaymentRecordRepository struct {
	db DBTX
}

func NewPaymentRecordRepository(db DBTX) *PaymentRecordRepository {
	return &PaymentRecordRepository{db: db}
}

func (r *PaymentRecordRepository) Create(ctx context.Context, record *entity.PaymentRecord) error {
	query := `
		INSERT INTO payment_records (` + paymentRecordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.RequestID,
		string(record.Kind),
		string(record.Status),
		record.AmountMinor,
		record.Currency,
		nullableStringValue(record.Name),
		nullableStringValue(record.Description),
		nullableStringValue(record.Contact),
		nullableStringValue(record.Email),
		nullableStringValue(record.CheckoutURL),
		nullableStringValue(record.PaymentID),
		nullableStringValue(record.OrderID),
		nullableStringValue(record.Method),
		nullableBoolValue(record.Captured),
		record.CreatedAt.UTC(),
		nullableTimeValue(record.UpdatedAt),
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrRecordAlreadyExists
		}
		return err
	}
	return nil
}

// Update writes the non-nil fields of patch in a single statement. The caller
// serializes read-modify-write cycles on the same request id.
func (r *PaymentRecordRepository) Update(ctx context.Context, requestID string, patch entity.PaymentRecordPatch, now time.Time) error {
	sets := make([]string, 0, 8)
	args := make([]interface{}, 0, 9)

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.Contact != nil {
		sets = append(sets, "contact = ?")
		args = append(args, *patch.Contact)
	}
	if patch.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *patch.Email)
	}
	if patch.PaymentID != nil {
		sets = append(sets, "payment_id = ?")
		args = append(args, *patch.PaymentID)
	}
	if patch.OrderID != nil {
		sets = append(sets, "order_id = ?")
		args = append(args, *patch.OrderID)
	}
	if patch.Method != nil {
		sets = append(sets, "method = ?")
		args = append(args, *patch.Method)
	}
	if patch.Captured != nil {
		sets = append(sets, "captured = ?")
		args = append(args, *patch.Captured)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now.UTC(), requestID)

	query := `UPDATE payment_records SET ` + strings.Join(sets, ", ") + ` WHERE request_id = ?`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *PaymentRecordRepository) FindByRequestID(ctx context.Context, requestID string) (*entity.PaymentRecord, error) {
	query := `SELECT ` + paymentRecordColumns + ` FROM payment_records WHERE request_id = ?`

	record := &entity.PaymentRecord{}
	if err := scanPaymentRecord(r.db.QueryRowContext(ctx, query, requestID), record); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *PaymentRecordRepository) List(ctx context.Context, filter RecordFilter) ([]*entity.PaymentRecord, error) {
	query := `SELECT ` + paymentRecordColumns + ` FROM payment_records`
	args := make([]interface{}, 0, 3)
	if filter.HasStatus {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, request_id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	return r.queryRecords(ctx, query, args...)
}

// ListForSync returns open records that have neither changed nor been polled
// since before, least recently polled first.
func (r *PaymentRecordRepository) ListForSync(ctx context.Context, before time.Time, limit int32) ([]*entity.PaymentRecord, error) {
	query := `SELECT ` + paymentRecordColumns + `
		FROM payment_records
		WHERE status IN (?, ?)
			AND COALESCE(updated_at, created_at) <= ?
			AND (last_synced_at IS NULL OR last_synced_at <= ?)
		ORDER BY COALESCE(last_synced_at, created_at) ASC, request_id ASC
		LIMIT ?`

	return r.queryRecords(ctx, query,
		string(entity.StatusCreated),
		string(entity.StatusPartiallyPaid),
		before.UTC(),
		before.UTC(),
		limit,
	)
}

// MarkSynced records a provider poll without touching updated_at.
func (r *PaymentRecordRepository) MarkSynced(ctx context.Context, requestID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE payment_records SET last_synced_at = ? WHERE request_id = ?`, at.UTC(), requestID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *PaymentRecordRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*entity.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.PaymentRecord, 0)
	for rows.Next() {
		record := &entity.PaymentRecord{}
		if err := scanPaymentRecord(rows, record); err != nil {
			return nil, err
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPaymentRecord(row rowScanner, record *entity.PaymentRecord) error {
	var (
		kind        string
		status      string
		name        sql.NullString
		description sql.NullString
		contact     sql.NullString
		email       sql.NullString
		checkoutURL sql.NullString
		paymentID   sql.NullString
		orderID     sql.NullString
		method      sql.NullString
		captured    sql.NullBool
		updatedAt   sql.NullTime
	)

	if err := row.Scan(
		&record.RequestID,
		&kind,
		&status,
		&record.AmountMinor,
		&record.Currency,
		&name,
		&description,
		&contact,
		&email,
		&checkoutURL,
		&paymentID,
		&orderID,
		&method,
		&captured,
		&record.CreatedAt,
		&updatedAt,
	); err != nil {
		return err
	}

	record.Kind = entity.RequestKind(kind)
	record.Status = entity.Status(status)
	record.Name = stringPtrFromNull(name)
	record.Description = stringPtrFromNull(description)
	record.Contact = stringPtrFromNull(contact)
	record.Email = stringPtrFromNull(email)
	record.CheckoutURL = stringPtrFromNull(checkoutURL)
	record.PaymentID = stringPtrFromNull(paymentID)
	record.OrderID = stringPtrFromNull(orderID)
	record.Method = stringPtrFromNull(method)
	record.Captured = boolPtrFromNull(captured)
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = timePtrFromNull(updatedAt)
	return nil
}
