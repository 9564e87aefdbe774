package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
	"github.com/vibast-solutions/ms-go-payment-links/app/factory"
	"github.com/vibast-solutions/ms-go-payment-links/app/lock"
	"github.com/vibast-solutions/ms-go-payment-links/app/metrics"
	"github.com/vibast-solutions/ms-go-payment-links/app/provider"
	"github.com/vibast-solutions/ms-go-payment-links/app/repository"
	"github.com/vibast-solutions/ms-go-payment-links/config"
)

const (
	defaultListLimit = int32(100)
	defaultBatchSize = int32(100)
)

type createPaymentRequest interface {
	GetAmountMinor() int64
	GetName() string
	GetEmail() string
	GetContact() string
	GetDescription() string
}

type listRecordsRequest interface {
	GetHasStatus() bool
	GetStatus() entity.Status
	GetLimit() int32
	GetOffset() int32
}

type recordRepository interface {
	Create(ctx context.Context, record *entity.PaymentRecord) error
	Update(ctx context.Context, requestID string, patch entity.PaymentRecordPatch, now time.Time) error
	FindByRequestID(ctx context.Context, requestID string) (*entity.PaymentRecord, error)
	List(ctx context.Context, filter repository.RecordFilter) ([]*entity.PaymentRecord, error)
	ListForSync(ctx context.Context, before time.Time, limit int32) ([]*entity.PaymentRecord, error)
	MarkSynced(ctx context.Context, requestID string, at time.Time) error
}

type auditLogRepository interface {
	Append(ctx context.Context, entry *entity.AuditEntry) error
}

type listUnlinkedCapturesRequest interface {
	GetLimit() int32
}

type unlinkedCaptureRepository interface {
	Create(ctx context.Context, capture *entity.UnlinkedCapture) error
	List(ctx context.Context, limit int32) ([]*entity.UnlinkedCapture, error)
}

type PaymentService struct {
	recordRepo    recordRepository
	auditRepo     auditLogRepository
	unlinkedRepo  unlinkedCaptureRepository
	locker        lock.Locker
	provider      provider.Provider
	paymentsCfg   config.PaymentsConfig
	webhookSecret string
	metrics       *metrics.Metrics
	logger        logrus.FieldLogger
}

func NewPaymentService(
	recordRepo recordRepository,
	auditRepo auditLogRepository,
	unlinkedRepo unlinkedCaptureRepository,
	locker lock.Locker,
	paymentProvider provider.Provider,
	paymentsCfg config.PaymentsConfig,
	webhookSecret string,
	m *metrics.Metrics,
) *PaymentService {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if strings.TrimSpace(paymentsCfg.Currency) == "" {
		paymentsCfg.Currency = "INR"
	}

	return &PaymentService{
		recordRepo:    recordRepo,
		auditRepo:     auditRepo,
		unlinkedRepo:  unlinkedRepo,
		locker:        locker,
		provider:      paymentProvider,
		paymentsCfg:   paymentsCfg,
		webhookSecret: webhookSecret,
		metrics:       m,
		logger:        factory.NewModuleLogger("payment-service"),
	}
}

// CreatePaymentRequest creates the request at the provider and persists the
// initial record. The provider call happens before any lock is taken.
func (s *PaymentService) CreatePaymentRequest(ctx context.Context, req createPaymentRequest, kind entity.RequestKind) (*entity.PaymentRecord, error) {
	if req.GetAmountMinor() <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidRequest)
	}

	now := time.Now().UTC()
	input := &provider.CreateInput{
		Kind:        kind,
		AmountMinor: req.GetAmountMinor(),
		Currency:    s.paymentsCfg.Currency,
		Name:        strings.TrimSpace(req.GetName()),
		Email:       strings.TrimSpace(req.GetEmail()),
		Contact:     strings.TrimSpace(req.GetContact()),
		Description: strings.TrimSpace(req.GetDescription()),
	}
	if s.paymentsCfg.LinkExpiry > 0 {
		input.ExpireBy = now.Add(s.paymentsCfg.LinkExpiry)
	}

	output, err := s.provider.CreatePaymentRequest(ctx, input)
	if err != nil {
		if errors.Is(err, provider.ErrUnsupportedRequestKind) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		upstreamErr := newUpstreamError(err)
		s.metrics.UpstreamFailure(upstreamErr.Code)
		return nil, upstreamErr
	}

	record := &entity.PaymentRecord{
		RequestID:   output.RequestID,
		Kind:        kind,
		Status:      entity.StatusCreated,
		AmountMinor: input.AmountMinor,
		Currency:    input.Currency,
		Name:        normalizeOptionalString(input.Name),
		Description: normalizeOptionalString(input.Description),
		Contact:     normalizeOptionalString(input.Contact),
		Email:       normalizeOptionalString(input.Email),
		CheckoutURL: output.CheckoutURL,
		OrderID:     output.OrderID,
		CreatedAt:   now,
	}

	if err := s.insertRecord(ctx, record, true); err != nil {
		return nil, err
	}

	s.metrics.RequestCreated(string(kind))
	s.logger.WithFields(logrus.Fields{
		"request_id":   record.RequestID,
		"kind":         record.Kind,
		"amount_minor": record.AmountMinor,
	}).Info("Payment request created")

	return record, nil
}

// insertRecord stores a new record under its lock, preceded by a creation
// audit entry unless audit is false.
func (s *PaymentService) insertRecord(ctx context.Context, record *entity.PaymentRecord, audit bool) error {
	return s.locker.WithLock(ctx, recordLockKey(record.RequestID), func(ctx context.Context) error {
		existing, err := s.recordRepo.FindByRequestID(ctx, record.RequestID)
		if err != nil {
			return fmt.Errorf("load payment record: %w", err)
		}
		if existing != nil {
			return ErrRecordAlreadyExists
		}

		if audit {
			snapshot, err := json.Marshal(record)
			if err != nil {
				return err
			}
			requestID := record.RequestID
			if err := s.auditRepo.Append(ctx, &entity.AuditEntry{
				EventID:   uuid.NewString(),
				Source:    entity.AuditSourceCreation,
				EventKind: string(entity.AuditSourceCreation),
				RequestID: &requestID,
				Outcome:   entity.AuditOutcomeCreated,
				Payload:   string(snapshot),
				CreatedAt: record.CreatedAt,
			}); err != nil {
				return fmt.Errorf("append audit entry: %w", err)
			}
		}

		if err := s.recordRepo.Create(ctx, record); err != nil {
			if errors.Is(err, repository.ErrRecordAlreadyExists) {
				return ErrRecordAlreadyExists
			}
			return fmt.Errorf("create payment record: %w", err)
		}
		return nil
	})
}

func (s *PaymentService) GetRecord(ctx context.Context, requestID string) (*entity.PaymentRecord, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, fmt.Errorf("%w: request id is required", ErrInvalidRequest)
	}

	record, err := s.recordRepo.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrRecordNotFound
	}
	return record, nil
}

func (s *PaymentService) ListRecords(ctx context.Context, req listRecordsRequest) ([]*entity.PaymentRecord, error) {
	limit := req.GetLimit()
	if limit <= 0 {
		limit = defaultListLimit
	}

	filter := repository.RecordFilter{
		HasStatus: req.GetHasStatus(),
		Status:    req.GetStatus(),
		Limit:     limit,
		Offset:    req.GetOffset(),
	}
	if filter.HasStatus && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, filter.Status)
	}

	return s.recordRepo.List(ctx, filter)
}

// ListUnlinkedCaptures returns captures that could not be matched to a record,
// oldest first, for manual reconciliation.
func (s *PaymentService) ListUnlinkedCaptures(ctx context.Context, req listUnlinkedCapturesRequest) ([]*entity.UnlinkedCapture, error) {
	limit := req.GetLimit()
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.unlinkedRepo.List(ctx, limit)
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func recordLockKey(requestID string) string {
	return "payment-record:" + requestID
}

func captureLockKey(paymentID string) string {
	return "payment-capture:" + paymentID
}

func normalizeOptionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
