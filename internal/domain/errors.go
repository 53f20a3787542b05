package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCode indicates the promotion code does not exist.
	ErrInvalidCode = errors.New("invalid promotion code")
	// ErrPromotionExpired indicates the promotion is outside its validity window.
	ErrPromotionExpired = errors.New("promotion expired")
	// ErrPromotionNotApplicable indicates the cart does not satisfy the promotion rules.
	ErrPromotionNotApplicable = errors.New("promotion not applicable")
	// ErrUsageExceeded indicates the promotion usage ceiling has been reached.
	ErrUsageExceeded = errors.New("promotion usage exceeded")

	// ErrDropNotActive indicates a limited drop is outside its availability window.
	ErrDropNotActive = errors.New("drop not active")
	// ErrWaitlistClosed indicates the drop does not accept waitlist entries.
	ErrWaitlistClosed = errors.New("waitlist closed")

	// ErrReservationExpired indicates a reservation was already swept or released.
	ErrReservationExpired = errors.New("reservation expired")
	// ErrCartUnavailableItems indicates checkout was attempted with unavailable lines.
	ErrCartUnavailableItems = errors.New("cart contains unavailable items")
	// ErrPriceChanged indicates line prices drifted and the shopper has not re-confirmed.
	ErrPriceChanged = errors.New("cart prices changed")
	// ErrCartEmpty indicates checkout was attempted on an empty cart.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrCartNotActive indicates the cart was already ordered or deleted.
	ErrCartNotActive = errors.New("cart not active")

	// ErrPaymentDeclined indicates the gateway declined the payment.
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrGatewayUnavailable indicates the payment gateway could not be reached.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// InsufficientStockError reports which variant could not be reserved.
type InsufficientStockError struct {
	VariantID string
	Requested int
	Available int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s: requested %d, available %d", e.VariantID, e.Requested, e.Available)
}

// InvalidTransitionError reports a rejected state machine move. The order is
// left in its previous state; callers surface the error, never clamp.
type InvalidTransitionError struct {
	Field string
	From  string
	To    string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %s to %s", e.Field, e.From, e.To)
}
