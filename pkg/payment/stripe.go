package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type StripeProvider struct {
	client *client.API
}

func NewStripeProvider(secretKey string) *StripeProvider {
	sc := &client.API{}
	sc.Init(secretKey, nil)

	return &StripeProvider{
		client: sc,
	}
}

func (s *StripeProvider) GetAuthorizationStatus(ctx context.Context, paymentIntentID string) (AuthorizationStatus, error) {
	pi, err := s.client.PaymentIntents.Get(paymentIntentID, nil)
	if err != nil {
		return AuthorizationStatusFailed, fmt.Errorf("failed to get payment intent: %w", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusRequiresCapture, stripe.PaymentIntentStatusSucceeded:
		return AuthorizationStatusAuthorized, nil
	case stripe.PaymentIntentStatusCanceled:
		return AuthorizationStatusFailed, nil
	default:
		return AuthorizationStatusPending, nil
	}
}

func (s *StripeProvider) RefundPayment(ctx context.Context, request *RefundRequest) (*RefundResponse, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(request.PaymentIntentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}

	if request.AmountCents > 0 {
		params.Amount = stripe.Int64(request.AmountCents)
	}

	refund, err := s.client.Refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create refund: %w", err)
	}

	return &RefundResponse{
		RefundID:    refund.ID,
		Status:      string(refund.Status),
		AmountCents: refund.Amount,
		Currency:    string(refund.Currency),
		CreatedAt:   refund.Created,
	}, nil
}
