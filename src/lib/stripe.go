package lib

import (
	"context"
	"fmt"
	"os"

	"tablebook/src/logger"
	"tablebook/src/money"
	"tablebook/src/types"

	"github.com/stripe/stripe-go/v82"
)

var stripeClient *stripe.Client

// GetStripeClient reads the key from STRIPE_SECRET_KEY, or from Secrets Manager
// when only STRIPE_SECRET_ARN is set.
func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	if arn := os.Getenv("STRIPE_SECRET_ARN"); apiKey == "" && arn != "" {
		secret, err := GetSecretString(context.Background(), arn)
		if err != nil {
			logger.Get().Error().Err(err).Msg("could not read stripe key from secrets manager")
		} else {
			apiKey = secret
		}
	}
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

// StripeGateway backs charges with PaymentIntents. Amounts are converted to
// minor units here and nowhere else.
type StripeGateway struct {
	sc *stripe.Client
}

func NewStripeGateway(sc *stripe.Client) *StripeGateway {
	return &StripeGateway{sc: sc}
}

func (g *StripeGateway) CreateCharge(ctx context.Context, req types.ChargeRequest) (*types.Charge, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(money.ToMinorUnits(req.Amount)),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	pi, err := g.sc.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: create payment intent: %w", types.ErrGateway, err)
	}
	return chargeFromIntent(pi), nil
}

func (g *StripeGateway) RetrieveCharge(ctx context.Context, id string) (*types.Charge, error) {
	pi, err := g.sc.V1PaymentIntents.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve payment intent %s: %w", types.ErrGateway, id, err)
	}
	return chargeFromIntent(pi), nil
}

func (g *StripeGateway) CreateRefund(ctx context.Context, req types.RefundRequest) (*types.GatewayRefund, error) {
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(req.ChargeID),
		Amount:        stripe.Int64(money.ToMinorUnits(req.Amount)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	r, err := g.sc.V1Refunds.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: create refund for %s: %w", types.ErrGateway, req.ChargeID, err)
	}
	return &types.GatewayRefund{
		ID:     r.ID,
		Status: string(r.Status),
		Amount: money.FromMinorUnits(r.Amount),
	}, nil
}

func chargeFromIntent(pi *stripe.PaymentIntent) *types.Charge {
	return &types.Charge{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       money.FromMinorUnits(pi.Amount),
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}
