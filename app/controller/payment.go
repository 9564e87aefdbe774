package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
	"github.com/vibast-solutions/ms-go-payment-links/app/factory"
	"github.com/vibast-solutions/ms-go-payment-links/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-links/app/service"
	"github.com/vibast-solutions/ms-go-payment-links/app/types"
)

type PaymentController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.StatusResponse{Status: "ok"})
}

func (c *PaymentController) CreateLink(ctx echo.Context) error {
	item, err := c.create(ctx, entity.RequestKindPaymentLink)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}
	return ctx.JSON(http.StatusCreated, mapper.RecordToCreateLinkResponse(item))
}

func (c *PaymentController) CreateOrder(ctx echo.Context) error {
	item, err := c.create(ctx, entity.RequestKindUPIQR)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}
	return ctx.JSON(http.StatusCreated, mapper.RecordToCreateOrderResponse(item))
}

// create returns a nil record once an error response has already been written.
func (c *PaymentController) create(ctx echo.Context, kind entity.RequestKind) (*entity.PaymentRecord, error) {
	req, err := types.NewCreatePaymentRequestFromContext(ctx)
	if err != nil {
		return nil, c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return nil, c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.CreatePaymentRequest(ctx.Request().Context(), req, kind)
	if err != nil {
		var upstreamErr *service.UpstreamError
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return nil, c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.As(err, &upstreamErr):
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn("Payment provider call failed")
			return nil, ctx.JSON(http.StatusInternalServerError, &types.ErrorResponse{
				Error: "payment provider request failed",
				Code:  upstreamErr.Code,
			})
		case errors.Is(err, service.ErrRecordAlreadyExists):
			return nil, c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create payment request failed")
			return nil, c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return item, nil
}

func (c *PaymentController) GetStatus(ctx echo.Context) error {
	req, err := types.NewGetRecordRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetRecord(ctx.Request().Context(), req.RequestID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRecordNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment record not found")
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment record failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, mapper.RecordToResponse(item))
}

func (c *PaymentController) ListRecords(ctx echo.Context) error {
	req, err := types.NewListRecordsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.paymentService.ListRecords(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List payment records failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.RecordsToResponse(items))
}

func (c *PaymentController) ListUnlinkedCaptures(ctx echo.Context) error {
	req, err := types.NewListUnlinkedCapturesRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.paymentService.ListUnlinkedCaptures(ctx.Request().Context(), req)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List unlinked captures failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.UnlinkedCapturesToResponse(items))
}

// Webhook answers 200 for every authentic, parseable event, whatever the
// reconciliation outcome.
func (c *PaymentController) Webhook(ctx echo.Context) error {
	req, err := types.NewWebhookRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid webhook")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid webhook")
	}

	result, err := c.paymentService.HandleWebhook(ctx.Request().Context(), req.Payload, req.Signature)
	if err != nil {
		logger := factory.LoggerWithContext(c.logger, ctx)
		switch {
		case errors.Is(err, service.ErrInvalidSignature), errors.Is(err, service.ErrMalformedEvent):
			logger.WithError(err).Warn("Webhook rejected")
			return c.writeError(ctx, http.StatusBadRequest, "invalid webhook")
		default:
			logger.WithError(err).Error("Webhook reconciliation failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	factory.LoggerWithContext(c.logger, ctx).WithFields(logrus.Fields{
		"event":           result.EventKind,
		"payment_request": result.RequestID,
		"payment_id":      result.PaymentID,
		"outcome":         result.Outcome,
	}).Info("Webhook processed")

	return ctx.JSON(http.StatusOK, &types.StatusResponse{Status: "ok"})
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
