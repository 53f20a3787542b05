package payment

import (
	"context"
	"fmt"
)

// Gateway is the narrow seam to the external payment provider. The core
// only ever creates a session and later receives the asynchronous result
// through the webhook; the provider protocol lives entirely behind this
// interface.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, orderID string, amountCents int64, currency string) (string, error)
}

// RedirectGateway builds provider-hosted checkout URLs from a base URL.
// It stands in for the real provider client in development and tests.
type RedirectGateway struct {
	BaseURL string
}

func NewRedirect(baseURL string) *RedirectGateway {
	return &RedirectGateway{BaseURL: baseURL}
}

func (g *RedirectGateway) CreateCheckoutSession(_ context.Context, orderID string, amountCents int64, currency string) (string, error) {
	if orderID == "" {
		return "", fmt.Errorf("order id required")
	}
	return fmt.Sprintf("%s/session?order=%s&amount=%d&currency=%s", g.BaseURL, orderID, amountCents, currency), nil
}
