package payment

import (
	"context"
)

type AuthorizationStatus string

const (
	AuthorizationStatusAuthorized AuthorizationStatus = "authorized"
	AuthorizationStatusPending    AuthorizationStatus = "pending"
	AuthorizationStatusFailed     AuthorizationStatus = "failed"
)

// Provider is the boundary to the payment collaborator. The dispatch engine
// only ever asks whether a ride's payment is authorized and, on cancellation
// of an active ride, requests a refund; authorization and capture themselves
// happen outside the engine.
type Provider interface {
	GetAuthorizationStatus(ctx context.Context, paymentIntentID string) (AuthorizationStatus, error)
	RefundPayment(ctx context.Context, request *RefundRequest) (*RefundResponse, error)
}

type RefundRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	AmountCents     int64  `json:"amount_cents"`
	Reason          string `json:"reason"`
}

type RefundResponse struct {
	RefundID    string `json:"refund_id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	CreatedAt   int64  `json:"created_at"`
}
