package mapper

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
	"github.com/vibast-solutions/ms-go-payment-links/app/types"
)

// AmountFromMinor renders minor units as a major unit JSON number, so 50000
// becomes 500 and 50050 becomes 500.5.
func AmountFromMinor(minor int64) json.Number {
	return json.Number(decimal.New(minor, -2).String())
}

func RecordToResponse(item *entity.PaymentRecord) *types.PaymentRecord {
	if item == nil {
		return nil
	}

	return &types.PaymentRecord{
		RequestID:   item.RequestID,
		Kind:        string(item.Kind),
		Status:      string(item.Status),
		Amount:      AmountFromMinor(item.AmountMinor),
		Currency:    item.Currency,
		Name:        item.Name,
		Description: item.Description,
		Contact:     item.Contact,
		Email:       item.Email,
		CheckoutURL: item.CheckoutURL,
		PaymentID:   item.PaymentID,
		OrderID:     item.OrderID,
		Method:      item.Method,
		Captured:    item.Captured,
		CreatedAt:   item.CreatedAt.UTC(),
		UpdatedAt:   item.UpdatedAt,
	}
}

func RecordsToResponse(items []*entity.PaymentRecord) []*types.PaymentRecord {
	result := make([]*types.PaymentRecord, 0, len(items))
	for _, item := range items {
		result = append(result, RecordToResponse(item))
	}
	return result
}

func UnlinkedCapturesToResponse(items []*entity.UnlinkedCapture) []*types.UnlinkedCapture {
	result := make([]*types.UnlinkedCapture, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		result = append(result, &types.UnlinkedCapture{
			PaymentID: item.PaymentID,
			OrderID:   item.OrderID,
			Method:    item.Method,
			Captured:  item.Captured,
			Email:     item.Email,
			Contact:   item.Contact,
			Amount:    AmountFromMinor(item.AmountMinor),
			Payload:   item.Payload,
			CreatedAt: item.CreatedAt.UTC(),
		})
	}
	return result
}

func RecordToCreateLinkResponse(item *entity.PaymentRecord) *types.CreateLinkResponse {
	return &types.CreateLinkResponse{
		RequestID: item.RequestID,
		ShortURL:  derefString(item.CheckoutURL),
		Status:    string(item.Status),
		Amount:    AmountFromMinor(item.AmountMinor),
		Currency:  item.Currency,
	}
}

func RecordToCreateOrderResponse(item *entity.PaymentRecord) *types.CreateOrderResponse {
	return &types.CreateOrderResponse{
		RequestID:  item.RequestID,
		QRImageURL: derefString(item.CheckoutURL),
		Status:     string(item.Status),
		Amount:     AmountFromMinor(item.AmountMinor),
		Currency:   item.Currency,
	}
}

// RecordToMap flattens a record into plain values accepted by structpb.
func RecordToMap(item *entity.PaymentRecord) map[string]interface{} {
	if item == nil {
		return nil
	}

	amount, _ := decimal.New(item.AmountMinor, -2).Float64()
	out := map[string]interface{}{
		"requestId":   item.RequestID,
		"kind":        string(item.Kind),
		"status":      string(item.Status),
		"amount":      amount,
		"amountMinor": float64(item.AmountMinor),
		"currency":    item.Currency,
		"createdAt":   item.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	putString(out, "name", item.Name)
	putString(out, "description", item.Description)
	putString(out, "contact", item.Contact)
	putString(out, "email", item.Email)
	putString(out, "checkoutUrl", item.CheckoutURL)
	putString(out, "paymentId", item.PaymentID)
	putString(out, "orderId", item.OrderID)
	putString(out, "method", item.Method)
	if item.Captured != nil {
		out["captured"] = *item.Captured
	}
	if item.UpdatedAt != nil {
		out["updatedAt"] = item.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func putString(out map[string]interface{}, key string, v *string) {
	if v != nil {
		out[key] = *v
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
