package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"maison-commerce/internal/clock"
	"maison-commerce/internal/domain"
	"maison-commerce/internal/events"
	"maison-commerce/internal/payment"
	"maison-commerce/internal/redisx"
	orderrepo "maison-commerce/internal/repository/order"
)

type cartRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	SetState(ctx context.Context, cartID, state string) error
}

type cartValidator interface {
	ValidateLines(ctx context.Context, lines []domain.CartLine) ([]domain.LineDiff, error)
}

type promotionEvaluator interface {
	Evaluate(ctx context.Context, code string, lines []domain.CartLine, locale string, shippingCents int64) (*domain.Discount, error)
}

type promotionRepo interface {
	ConsumeUsage(ctx context.Context, promotionID, orderID string) error
	RestoreUsage(ctx context.Context, orderID string) error
}

type inventoryLedger interface {
	Reserve(ctx context.Context, orderID, variantID string, quantity int, expiresAt time.Time) (*domain.Reservation, error)
	Release(ctx context.Context, token string) error
	Commit(ctx context.Context, token string) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.Reservation, error)
	SweepExpired(ctx context.Context, now time.Time) ([]string, error)
}

type orderRepo interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, in orderrepo.CreateOrderInput) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Order, error)
	SetStatus(ctx context.Context, id string, status domain.OrderStatus) error
	SetPayment(ctx context.Context, id string, status domain.PaymentStatus) error
	AppendPaymentRecord(ctx context.Context, rec domain.PaymentRecord) error
	ListPendingByIDs(ctx context.Context, ids []string) ([]string, error)
}

type publisher interface {
	Publish(topic, eventType, orderID string, payload any)
}

// Service is the transactional boundary of the system: it turns an
// active cart into reserved stock plus a pending order, hands off to the
// payment gateway, and later settles the attempt from the gateway
// callback.
type Service struct {
	carts          cartRepo
	validator      cartValidator
	promotions     promotionEvaluator
	promotionStore promotionRepo
	ledger         inventoryLedger
	orders         orderRepo
	gateway        payment.Gateway
	events         publisher
	rdb            *redis.Client
	clock          clock.Clock
	logger         *log.Logger
	reservationTTL time.Duration
	shippingCents  int64
}

type Options struct {
	ReservationTTL time.Duration
	ShippingCents  int64
}

func New(
	carts cartRepo,
	validator cartValidator,
	promotions promotionEvaluator,
	promotionStore promotionRepo,
	ledger inventoryLedger,
	orders orderRepo,
	gateway payment.Gateway,
	ev publisher,
	rdb *redis.Client,
	clk clock.Clock,
	logger *log.Logger,
	opts Options,
) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.ReservationTTL <= 0 {
		opts.ReservationTTL = 15 * time.Minute
	}
	return &Service{
		carts:          carts,
		validator:      validator,
		promotions:     promotions,
		promotionStore: promotionStore,
		ledger:         ledger,
		orders:         orders,
		gateway:        gateway,
		events:         ev,
		rdb:            rdb,
		clock:          clk,
		logger:         logger,
		reservationTTL: opts.ReservationTTL,
		shippingCents:  opts.ShippingCents,
	}
}

type BeginInput struct {
	CartID         string `json:"cartId"`
	Email          string `json:"email"`
	Locale         string `json:"locale,omitempty"`
	PromotionCode  string `json:"promotionCode,omitempty"`
	PriceConfirmed bool   `json:"priceConfirmed,omitempty"`
}

type BeginResult struct {
	Order       *domain.Order     `json:"order"`
	RedirectURL string            `json:"redirectUrl"`
	Discount    *domain.Discount  `json:"discount,omitempty"`
	Diffs       []domain.LineDiff `json:"diffs,omitempty"`
}

// Begin runs INITIATED -> RESERVED -> PAYMENT_PENDING. Reservation is
// all-or-nothing: the first failing line rolls the whole transaction
// back, order row included, and nothing stays held.
func (s *Service) Begin(ctx context.Context, in BeginInput) (*BeginResult, error) {
	cart, err := s.carts.GetByID(ctx, in.CartID)
	if err != nil {
		return nil, err
	}
	if cart.State != domain.CartStateActive {
		return nil, domain.ErrCartNotActive
	}
	if len(cart.Lines) == 0 {
		return nil, domain.ErrCartEmpty
	}

	diffs, err := s.validator.ValidateLines(ctx, cart.Lines)
	if err != nil {
		return nil, err
	}
	priceChanged := false
	unavailable := false
	dropGated := false
	for _, d := range diffs {
		switch d.Result {
		case domain.LineUnavailable:
			unavailable = true
			if d.Reason == domain.ReasonDropNotActive {
				dropGated = true
			}
		case domain.LinePriceChanged:
			priceChanged = true
		}
	}
	if dropGated {
		return &BeginResult{Diffs: diffs}, domain.ErrDropNotActive
	}
	if unavailable {
		return &BeginResult{Diffs: diffs}, domain.ErrCartUnavailableItems
	}
	if priceChanged && !in.PriceConfirmed {
		return &BeginResult{Diffs: diffs}, domain.ErrPriceChanged
	}

	locale := in.Locale
	if locale == "" {
		locale = cart.Locale
	}

	// A confirmed price change charges the current variant price, not the
	// stale one the cart still carries.
	lines := cart.Lines
	if priceChanged {
		repriced := make(map[string]int64, len(diffs))
		for _, d := range diffs {
			if d.Result == domain.LinePriceChanged {
				repriced[d.VariantID] = d.NewPriceCents
			}
		}
		lines = make([]domain.CartLine, len(cart.Lines))
		copy(lines, cart.Lines)
		for i := range lines {
			if p, ok := repriced[lines[i].VariantID]; ok {
				lines[i].UnitPriceCents = p
				lines[i].TotalCents = p * int64(lines[i].Quantity)
			}
		}
	}

	subtotal := int64(0)
	for _, line := range lines {
		subtotal += line.TotalCents
	}
	shipping := s.shippingCents

	var discount *domain.Discount
	var promoCode *string
	if in.PromotionCode != "" {
		discount, err = s.promotions.Evaluate(ctx, in.PromotionCode, lines, locale, shipping)
		if err != nil {
			return nil, err
		}
		promoCode = &discount.Code
	}

	discountCents := int64(0)
	if discount != nil {
		discountCents = discount.MerchandiseCents
		shipping -= discount.ShippingCents
		if shipping < 0 {
			shipping = 0
		}
	}
	merchandise := subtotal - discountCents
	if merchandise < 0 {
		merchandise = 0
	}
	total := merchandise + shipping

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.OrderItem{
			VariantID:      line.VariantID,
			SKU:            line.SKU,
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     line.TotalCents,
		})
	}

	expiresAt := s.clock.Now().Add(s.reservationTTL)
	var ord *domain.Order
	err = s.orders.WithTx(ctx, func(ctx context.Context) error {
		ord, err = s.orders.Create(ctx, orderrepo.CreateOrderInput{
			CartID:        cart.ID,
			Email:         in.Email,
			Locale:        locale,
			Currency:      cart.Currency,
			SubtotalCents: subtotal,
			DiscountCents: discountCents,
			ShippingCents: shipping,
			TotalCents:    total,
			PromotionCode: promoCode,
			Items:         items,
		})
		if err != nil {
			return err
		}

		if discount != nil {
			if err := s.promotionStore.ConsumeUsage(ctx, discount.PromotionID, ord.ID); err != nil {
				return err
			}
		}

		for _, line := range lines {
			if _, err := s.ledger.Reserve(ctx, ord.ID, line.VariantID, line.Quantity, expiresAt); err != nil {
				return err
			}
		}

		return s.carts.SetState(ctx, cart.ID, domain.CartStateOrdered)
	})
	if err != nil {
		return nil, err
	}

	redirectURL, err := s.gateway.CreateCheckoutSession(ctx, ord.ID, ord.TotalCents, ord.Currency)
	if err != nil {
		// The order stays PENDING; the TTL sweep reclaims the stock if the
		// shopper never retries. The initial call is not retried
		// automatically to avoid duplicate charges.
		s.logger.Printf("checkout: create session order=%s failed: %v", ord.ID, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	if err := s.orders.AppendPaymentRecord(ctx, domain.PaymentRecord{
		OrderID:     ord.ID,
		Kind:        domain.PaymentRecordSession,
		AmountCents: ord.TotalCents,
	}); err != nil {
		s.logger.Printf("checkout: record session order=%s: %v", ord.ID, err)
	}
	s.cacheSession(ctx, ord.ID, redirectURL)

	s.logger.Printf("checkout: order=%s reserved lines=%d total=%d", ord.ID, len(items), total)
	return &BeginResult{Order: ord, RedirectURL: redirectURL, Discount: discount, Diffs: diffs}, nil
}

// HandlePaymentResult settles a checkout attempt from the gateway
// callback. It is replay-safe: duplicate callbacks for an order already
// settled are no-ops.
func (s *Service) HandlePaymentResult(ctx context.Context, orderID string, success bool, reference string) error {
	if s.alreadySettled(ctx, orderID, success, reference) {
		s.logger.Printf("checkout: duplicate callback order=%s ignored", orderID)
		return nil
	}

	var confirmed *domain.Order
	err := s.orders.WithTx(ctx, func(ctx context.Context) error {
		ord, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		switch ord.Status {
		case domain.OrderConfirmed:
			// Replay of a confirmation, or a late failure after settle.
			return nil
		case domain.OrderCancelled:
			if success {
				// The hold was swept before the gateway confirmed. The money
				// side must be reconciled by hand; never re-commit stock.
				s.logger.Printf("checkout: late confirmation for cancelled order=%s ref=%s", orderID, reference)
				return s.orders.AppendPaymentRecord(ctx, domain.PaymentRecord{
					OrderID:          orderID,
					Kind:             domain.PaymentRecordOrphaned,
					GatewayReference: reference,
					AmountCents:      ord.TotalCents,
					Note:             "confirmation arrived after reservation expiry",
				})
			}
			return nil
		case domain.OrderPending:
			// fall through
		default:
			return nil
		}

		reservations, err := s.ledger.ListByOrder(ctx, orderID)
		if err != nil {
			return err
		}

		if !success {
			for _, res := range reservations {
				if err := s.ledger.Release(ctx, res.ID); err != nil {
					return err
				}
			}
			if err := s.promotionStore.RestoreUsage(ctx, orderID); err != nil {
				return err
			}
			if err := s.orders.SetStatus(ctx, orderID, domain.OrderCancelled); err != nil {
				return err
			}
			return s.orders.AppendPaymentRecord(ctx, domain.PaymentRecord{
				OrderID:          orderID,
				Kind:             domain.PaymentRecordDeclined,
				GatewayReference: reference,
				AmountCents:      ord.TotalCents,
			})
		}

		for _, res := range reservations {
			if err := s.ledger.Commit(ctx, res.ID); err != nil {
				if errors.Is(err, domain.ErrReservationExpired) {
					s.logger.Printf("checkout: reservation %s expired before confirmation order=%s", res.ID, orderID)
				}
				return err
			}
		}
		if err := s.orders.SetPayment(ctx, orderID, domain.PaymentPaid); err != nil {
			return err
		}
		if err := s.orders.SetStatus(ctx, orderID, domain.OrderConfirmed); err != nil {
			return err
		}
		if err := s.orders.AppendPaymentRecord(ctx, domain.PaymentRecord{
			OrderID:          orderID,
			Kind:             domain.PaymentRecordConfirm,
			GatewayReference: reference,
			AmountCents:      ord.TotalCents,
		}); err != nil {
			return err
		}
		confirmed = ord
		return nil
	})
	if err != nil {
		return err
	}
	s.markSettled(ctx, orderID, success, reference)

	if confirmed != nil {
		s.events.Publish(events.TopicOrderConfirmed, events.EventOrderConfirmed, orderID, events.OrderConfirmedPayload{
			OrderID:    orderID,
			Email:      confirmed.Email,
			Locale:     confirmed.Locale,
			TotalCents: confirmed.TotalCents,
			Currency:   confirmed.Currency,
		})
		s.logger.Printf("checkout: order=%s confirmed ref=%s", orderID, reference)
	}
	return nil
}

// SweepExpired releases every overdue hold and cancels the pending orders
// they belonged to. Idempotent and safe to run from several instances.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	orderIDs, err := s.ledger.SweepExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if len(orderIDs) == 0 {
		return 0, nil
	}

	pending, err := s.orders.ListPendingByIDs(ctx, orderIDs)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, id := range pending {
		err := s.orders.WithTx(ctx, func(ctx context.Context) error {
			ord, err := s.orders.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if ord.Status != domain.OrderPending {
				return nil
			}
			if err := s.promotionStore.RestoreUsage(ctx, id); err != nil {
				return err
			}
			return s.orders.SetStatus(ctx, id, domain.OrderCancelled)
		})
		if err != nil {
			s.logger.Printf("checkout: sweep cancel order=%s: %v", id, err)
			continue
		}
		cancelled++
	}
	if cancelled > 0 {
		s.logger.Printf("checkout: sweep cancelled %d abandoned orders", cancelled)
	}
	return cancelled, nil
}

// RunSweeper loops the TTL sweep until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepExpired(ctx); err != nil {
				s.logger.Printf("checkout: sweep failed: %v", err)
			}
		}
	}
}

// alreadySettled reports whether an identical callback was already
// processed to completion. Redis being down only disables the fast path;
// the row lock plus status check keep replays safe regardless.
func (s *Service) alreadySettled(ctx context.Context, orderID string, success bool, reference string) bool {
	if s.rdb == nil {
		return false
	}
	n, err := s.rdb.Exists(ctx, dedupKey(orderID, success, reference)).Result()
	if err != nil {
		s.logger.Printf("checkout: dedup check order=%s: %v", orderID, err)
		return false
	}
	return n > 0
}

// markSettled records a fully processed callback. The key is written only
// after the transaction commits: a callback that failed transiently must
// stay unmarked so the gateway's redelivery does the work.
func (s *Service) markSettled(ctx context.Context, orderID string, success bool, reference string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Set(ctx, dedupKey(orderID, success, reference), 1, redisx.TTLPaymentDedup).Err(); err != nil {
		s.logger.Printf("checkout: dedup mark order=%s: %v", orderID, err)
	}
}

func dedupKey(orderID string, success bool, reference string) string {
	result := "failure"
	if success {
		result = "success"
	}
	return fmt.Sprintf(redisx.KeyPaymentDedup, orderID, result, reference)
}

func (s *Service) cacheSession(ctx context.Context, orderID, redirectURL string) {
	if s.rdb == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyCheckoutSession, orderID)
	if err := s.rdb.Set(ctx, key, redirectURL, redisx.TTLCheckoutSession).Err(); err != nil {
		s.logger.Printf("checkout: cache session order=%s: %v", orderID, err)
	}
}
