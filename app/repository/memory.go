package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
)

// MemoryPaymentRecordRepository keeps records in process memory. Every read and
// write copies the record so callers never share state with the store.
type MemoryPaymentRecordRepository struct {
	mu       sync.RWMutex
	records  map[string]*entity.PaymentRecord
	lastSync map[string]time.Time
}

func NewMemoryPaymentRecordRepository() *MemoryPaymentRecordRepository {
	return &MemoryPaymentRecordRepository{
		records:  make(map[string]*entity.PaymentRecord),
		lastSync: make(map[string]time.Time),
	}
}

func (r *MemoryPaymentRecordRepository) Create(_ context.Context, record *entity.PaymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[record.RequestID]; ok {
		return ErrRecordAlreadyExists
	}
	r.records[record.RequestID] = record.Clone()
	return nil
}

func (r *MemoryPaymentRecordRepository) Update(_ context.Context, requestID string, patch entity.PaymentRecordPatch, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[requestID]
	if !ok {
		return ErrRecordNotFound
	}
	record.Apply(patch, now.UTC())
	return nil
}

func (r *MemoryPaymentRecordRepository) FindByRequestID(_ context.Context, requestID string) (*entity.PaymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[requestID]
	if !ok {
		return nil, nil
	}
	return record.Clone(), nil
}

func (r *MemoryPaymentRecordRepository) List(_ context.Context, filter RecordFilter) ([]*entity.PaymentRecord, error) {
	r.mu.RLock()
	items := make([]*entity.PaymentRecord, 0, len(r.records))
	for _, record := range r.records {
		if filter.HasStatus && record.Status != filter.Status {
			continue
		}
		items = append(items, record.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].RequestID > items[j].RequestID
	})

	if filter.Limit <= 0 {
		return items, nil
	}
	return page(items, filter.Offset, filter.Limit), nil
}

func (r *MemoryPaymentRecordRepository) ListForSync(_ context.Context, before time.Time, limit int32) ([]*entity.PaymentRecord, error) {
	type candidate struct {
		record *entity.PaymentRecord
		order  time.Time
	}

	r.mu.RLock()
	candidates := make([]candidate, 0)
	for _, record := range r.records {
		if record.Status != entity.StatusCreated && record.Status != entity.StatusPartiallyPaid {
			continue
		}
		changed := record.CreatedAt
		if record.UpdatedAt != nil {
			changed = *record.UpdatedAt
		}
		if changed.After(before) {
			continue
		}
		order := record.CreatedAt
		if synced, ok := r.lastSync[record.RequestID]; ok {
			if synced.After(before) {
				continue
			}
			order = synced
		}
		candidates = append(candidates, candidate{record: record.Clone(), order: order})
	}
	r.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].order.Equal(candidates[j].order) {
			return candidates[i].order.Before(candidates[j].order)
		}
		return candidates[i].record.RequestID < candidates[j].record.RequestID
	})

	items := make([]*entity.PaymentRecord, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, c.record)
	}
	return page(items, 0, limit), nil
}

func (r *MemoryPaymentRecordRepository) MarkSynced(_ context.Context, requestID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[requestID]; !ok {
		return ErrRecordNotFound
	}
	r.lastSync[requestID] = at.UTC()
	return nil
}

type MemoryAuditLogRepository struct {
	mu      sync.RWMutex
	entries []entity.AuditEntry
}

func NewMemoryAuditLogRepository() *MemoryAuditLogRepository {
	return &MemoryAuditLogRepository{}
}

func (r *MemoryAuditLogRepository) Append(_ context.Context, entry *entity.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.Seq = uint64(len(r.entries) + 1)
	stored := *entry
	stored.RequestID = cloneStringPtr(entry.RequestID)
	stored.PaymentID = cloneStringPtr(entry.PaymentID)
	r.entries = append(r.entries, stored)
	return nil
}

func (r *MemoryAuditLogRepository) ListAfter(_ context.Context, afterSeq uint64, limit int32) ([]*entity.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*entity.AuditEntry, 0)
	for i := range r.entries {
		if r.entries[i].Seq <= afterSeq {
			continue
		}
		if limit > 0 && int32(len(items)) >= limit {
			break
		}
		entry := r.entries[i]
		entry.RequestID = cloneStringPtr(entry.RequestID)
		entry.PaymentID = cloneStringPtr(entry.PaymentID)
		items = append(items, &entry)
	}
	return items, nil
}

type MemoryUnlinkedCaptureRepository struct {
	mu       sync.RWMutex
	captures map[string]entity.UnlinkedCapture
	order    []string
}

func NewMemoryUnlinkedCaptureRepository() *MemoryUnlinkedCaptureRepository {
	return &MemoryUnlinkedCaptureRepository{captures: make(map[string]entity.UnlinkedCapture)}
}

func (r *MemoryUnlinkedCaptureRepository) Create(_ context.Context, capture *entity.UnlinkedCapture) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.captures[capture.PaymentID]; ok {
		return ErrCaptureAlreadyRecorded
	}
	r.captures[capture.PaymentID] = *capture
	r.order = append(r.order, capture.PaymentID)
	return nil
}

func (r *MemoryUnlinkedCaptureRepository) List(_ context.Context, limit int32) ([]*entity.UnlinkedCapture, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*entity.UnlinkedCapture, 0, len(r.order))
	for _, paymentID := range r.order {
		if limit > 0 && int32(len(items)) >= limit {
			break
		}
		capture := r.captures[paymentID]
		items = append(items, &capture)
	}
	return items, nil
}

func page(items []*entity.PaymentRecord, offset, limit int32) []*entity.PaymentRecord {
	if offset < 0 {
		offset = 0
	}
	if int(offset) >= len(items) {
		return []*entity.PaymentRecord{}
	}
	items = items[offset:]
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneStringPtr(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
