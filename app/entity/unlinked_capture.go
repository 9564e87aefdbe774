package entity

import "time"

type UnlinkedCapture struct {
	PaymentID string

	OrderID  *string
	Method   *string
	Captured bool
	Email    *string
	Contact  *string

	AmountMinor int64
	Payload     string

	CreatedAt time.Time
}
