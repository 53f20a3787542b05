package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"maison-commerce/internal/clock"
	"maison-commerce/internal/domain"
	"maison-commerce/internal/events"
	orderrepo "maison-commerce/internal/repository/order"
)

type stubCartRepo struct {
	cart      *domain.Cart
	getErr    error
	lastState string
}

func (s *stubCartRepo) GetByID(_ context.Context, _ string) (*domain.Cart, error) {
	return s.cart, s.getErr
}

func (s *stubCartRepo) SetState(_ context.Context, _, state string) error {
	s.lastState = state
	return nil
}

type stubValidator struct {
	diffs []domain.LineDiff
	err   error
}

func (s *stubValidator) ValidateLines(_ context.Context, _ []domain.CartLine) ([]domain.LineDiff, error) {
	return s.diffs, s.err
}

type stubEvaluator struct {
	discount *domain.Discount
	err      error
}

func (s *stubEvaluator) Evaluate(_ context.Context, _ string, _ []domain.CartLine, _ string, _ int64) (*domain.Discount, error) {
	return s.discount, s.err
}

type stubPromotionStore struct {
	consumeErr error
	consumed   []string
	restored   []string
}

func (s *stubPromotionStore) ConsumeUsage(_ context.Context, promotionID, _ string) error {
	if s.consumeErr != nil {
		return s.consumeErr
	}
	s.consumed = append(s.consumed, promotionID)
	return nil
}

func (s *stubPromotionStore) RestoreUsage(_ context.Context, orderID string) error {
	s.restored = append(s.restored, orderID)
	return nil
}

type reserveCall struct {
	variantID string
	quantity  int
}

type stubLedger struct {
	reserveCalls []reserveCall
	failVariant  string
	reservations []domain.Reservation
	released     []string
	committed    []string
	commitErr    error
	sweptOrders  []string
}

func (s *stubLedger) Reserve(_ context.Context, orderID, variantID string, quantity int, expiresAt time.Time) (*domain.Reservation, error) {
	if variantID == s.failVariant {
		return nil, domain.InsufficientStockError{VariantID: variantID, Requested: quantity, Available: 0}
	}
	s.reserveCalls = append(s.reserveCalls, reserveCall{variantID: variantID, quantity: quantity})
	return &domain.Reservation{ID: "res-" + variantID, OrderID: orderID, VariantID: variantID, Quantity: quantity, Status: domain.ReservationHeld, ExpiresAt: expiresAt}, nil
}

func (s *stubLedger) Release(_ context.Context, token string) error {
	s.released = append(s.released, token)
	return nil
}

func (s *stubLedger) Commit(_ context.Context, token string) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.committed = append(s.committed, token)
	return nil
}

func (s *stubLedger) ListByOrder(_ context.Context, _ string) ([]domain.Reservation, error) {
	return s.reservations, nil
}

func (s *stubLedger) SweepExpired(_ context.Context, _ time.Time) ([]string, error) {
	return s.sweptOrders, nil
}

type stubOrderRepo struct {
	created     *orderrepo.CreateOrderInput
	createErr   error
	order       *domain.Order
	getErr      error
	setStatuses []domain.OrderStatus
	setPayments []domain.PaymentStatus
	records     []domain.PaymentRecord
	pendingIDs  []string
	txErr       error
}

func (s *stubOrderRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txErr != nil {
		err := s.txErr
		s.txErr = nil
		return err
	}
	return fn(ctx)
}

func (s *stubOrderRepo) Create(_ context.Context, in orderrepo.CreateOrderInput) (*domain.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = &in
	return &domain.Order{
		ID:            "o1",
		CartID:        in.CartID,
		Email:         in.Email,
		Locale:        in.Locale,
		Currency:      in.Currency,
		Status:        domain.OrderPending,
		SubtotalCents: in.SubtotalCents,
		DiscountCents: in.DiscountCents,
		ShippingCents: in.ShippingCents,
		TotalCents:    in.TotalCents,
	}, nil
}

func (s *stubOrderRepo) GetByID(_ context.Context, _ string) (*domain.Order, error) {
	return s.order, s.getErr
}

func (s *stubOrderRepo) GetForUpdate(_ context.Context, _ string) (*domain.Order, error) {
	return s.order, s.getErr
}

func (s *stubOrderRepo) SetStatus(_ context.Context, _ string, status domain.OrderStatus) error {
	s.setStatuses = append(s.setStatuses, status)
	return nil
}

func (s *stubOrderRepo) SetPayment(_ context.Context, _ string, status domain.PaymentStatus) error {
	s.setPayments = append(s.setPayments, status)
	return nil
}

func (s *stubOrderRepo) AppendPaymentRecord(_ context.Context, rec domain.PaymentRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func (s *stubOrderRepo) ListPendingByIDs(_ context.Context, _ []string) ([]string, error) {
	return s.pendingIDs, nil
}

type stubGateway struct {
	url string
	err error
}

func (s *stubGateway) CreateCheckoutSession(_ context.Context, _ string, _ int64, _ string) (string, error) {
	return s.url, s.err
}

type stubPublisher struct {
	topics []string
}

func (s *stubPublisher) Publish(topic, _, _ string, _ any) {
	s.topics = append(s.topics, topic)
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	carts      *stubCartRepo
	validator  *stubValidator
	evaluator  *stubEvaluator
	promotions *stubPromotionStore
	ledger     *stubLedger
	orders     *stubOrderRepo
	gateway    *stubGateway
	publisher  *stubPublisher
	svc        *Service
}

func newFixture() *fixture {
	f := &fixture{
		carts: &stubCartRepo{cart: &domain.Cart{
			ID:       "c1",
			Currency: "EUR",
			Locale:   "fr",
			State:    domain.CartStateActive,
			Lines: []domain.CartLine{
				{ID: "l1", VariantID: "v1", SKU: "A", Quantity: 1, UnitPriceCents: 289000, TotalCents: 289000},
				{ID: "l2", VariantID: "v2", SKU: "B", Quantity: 2, UnitPriceCents: 42000, TotalCents: 84000},
			},
		}},
		validator: &stubValidator{diffs: []domain.LineDiff{
			{LineID: "l1", Result: domain.LineUnchanged},
			{LineID: "l2", Result: domain.LineUnchanged},
		}},
		evaluator:  &stubEvaluator{},
		promotions: &stubPromotionStore{},
		ledger:     &stubLedger{},
		orders:     &stubOrderRepo{},
		gateway:    &stubGateway{url: "https://pay.example.test/session"},
		publisher:  &stubPublisher{},
	}
	f.svc = New(f.carts, f.validator, f.evaluator, f.promotions, f.ledger, f.orders, f.gateway, f.publisher, nil,
		clock.NewFixed(testNow), nil, Options{ReservationTTL: 15 * time.Minute, ShippingCents: 2500})
	return f
}

func newRedisFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := newFixture()
	f.svc = New(f.carts, f.validator, f.evaluator, f.promotions, f.ledger, f.orders, f.gateway, f.publisher, rdb,
		clock.NewFixed(testNow), nil, Options{ReservationTTL: 15 * time.Minute, ShippingCents: 2500})
	return f
}

func TestBeginReservesEveryLine(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Begin(context.Background(), BeginInput{CartID: "c1", Email: "a@b.fr"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.ledger.reserveCalls) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(f.ledger.reserveCalls))
	}
	if f.carts.lastState != domain.CartStateOrdered {
		t.Fatalf("cart should move to ordered, got %q", f.carts.lastState)
	}
	if res.RedirectURL == "" {
		t.Fatal("expected redirect URL")
	}
	if res.Order.SubtotalCents != 373000 || res.Order.ShippingCents != 2500 || res.Order.TotalCents != 375500 {
		t.Fatalf("unexpected totals %+v", res.Order)
	}
	if len(f.orders.records) != 1 || f.orders.records[0].Kind != domain.PaymentRecordSession {
		t.Fatalf("expected session record, got %+v", f.orders.records)
	}
}

func TestBeginAllOrNothing(t *testing.T) {
	f := newFixture()
	f.ledger.failVariant = "v2"

	_, err := f.svc.Begin(context.Background(), BeginInput{CartID: "c1", Email: "a@b.fr"})
	var stock domain.InsufficientStockError
	if !errors.As(err, &stock) || stock.VariantID != "v2" {
		t.Fatalf("expected InsufficientStockError for v2, got %v", err)
	}
	if f.carts.lastState != "" {
		t.Fatalf("cart state must not change on failure, got %q", f.carts.lastState)
	}
}

func TestBeginRejectsUnavailableItems(t *testing.T) {
	f := newFixture()
	f.validator.diffs = []domain.LineDiff{
		{LineID: "l1", Result: domain.LineUnchanged},
		{LineID: "l2", Result: domain.LineUnavailable, Reason: "out_of_stock"},
	}

	res, err := f.svc.Begin(context.Background(), BeginInput{CartID: "c1", Email: "a@b.fr"})
	if !errors.Is(err, domain.ErrCartUnavailableItems) {
		t.Fatalf("expected ErrCartUnavailableItems, got %v", err)
	}
	if res == nil || len(res.Diffs) != 2 {
		t.Fatalf("expected diffs returned with the rejection, got %+v", res)
	}
	if len(f.ledger.reserveCalls) != 0 {
		t.Fatal("nothing should be reserved")
	}
}

func TestBeginRejectsDropGatedLines(t *testing.T) {
	f := newFixture()
	f.validator.diffs = []domain.LineDiff{
		{LineID: "l1", Result: domain.LineUnchanged},
		{LineID: "l2", VariantID: "v2", Result: domain.LineUnavailable, Reason: domain.ReasonDropNotActive},
	}

	res, err := f.svc.Begin(context.Background(), BeginInput{CartID: "c1", Email: "a@b.fr"})
	if !errors.Is(err, domain.ErrDropNotActive) {
		t.Fatalf("expected ErrDropNotActive, got %v", err)
	}
	if res == nil || len(res.Diffs) != 2 {
		t.Fatalf("expected diffs returned with the rejection, got %+v", res)
	}
	if len(f.ledger.reserveCalls) != 0 {
		t.Fatal("nothing should be reserved")
	}
}

func TestBeginPriceChangeNeedsConfirmation(t *testing.T) {
	f := newFixture()
	f.validator.diffs = []domain.LineDiff{
		{LineID: "l1", Result: domain.LinePriceChanged, OldPriceCents: 289000, NewPriceCents: 295000},
		{LineID: "l2", Result: domain.LineUnchanged},
	}

	_, err := f.svc.Begin(context.Background(), BeginInput{CartID: "c1", Email: "a@b.fr"})
	if !errors.Is(err, domain.ErrPriceChanged) {
		t.Fatalf("expected ErrPriceChanged, got %v", err)
	}

	_, err = f.svc.Begin(context.Background(), BeginInput{CartID: "c1", Email: "a@b.fr", PriceConfirmed: true})
	if err != nil {
		t.Fatalf("confirmed price change should proceed, got %v", err)
	}
}

func TestBeginConfirmedPriceChangeChargesNewPrice(t *testing.T) {
	f := newFixture()
	f.validator.diffs = []domain.LineDiff{
		{LineID: "l1", VariantID: "v1", Result: domain.LinePriceChanged, OldPriceCents: 289000, NewPriceCents: 295000},
		{LineID: "l2", VariantID: "v2", Result: domain.LineUnchanged},
	}

	res, err := f.svc.Begin(context.Background(), BeginInput{CartID: "c1", Email: "a@b.fr", PriceConfirmed: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 295000 + 2*42000 merchandise, 2500 shipping.
	if res.Order.SubtotalCents != 379000 || res.Order.TotalCents != 381500 {
		t.Fatalf("re-confirmed price must be charged, got subtotal=%d total=%d", res.Order.SubtotalCents, res.Order.TotalCents)
	}
	if f.orders.created == nil || len(f.orders.created.Items) != 2 {
		t.Fatalf("expected 2 order items, got %+v", f.orders.created)
	}
	item := f.orders.created.Items[0]
	if item.UnitPriceCents != 295000 || item.TotalCents != 295000 {
		t.Fatalf("order item must snapshot the current price, got %+v", item)
	}
}

func TestBeginAppliesPromotion(t *testing.T) {
	f := newFixture()
	f.evaluator.discount = &domain.Discount{PromotionID: "p1", Code: "BIENVENUE", Type: domain.DiscountPercentage, MerchandiseCents: 37300}

	res, err := f.svc.Begin(context.Background(), BeginInput{CartID: "c1", Email: "a@b.fr", PromotionCode: "BIENVENUE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Order.DiscountCents != 37300 {
		t.Fatalf("expected discount 37300, got %d", res.Order.DiscountCents)
	}
	if res.Order.TotalCents != 373000-37300+2500 {
		t.Fatalf("unexpected total %d", res.Order.TotalCents)
	}
	if len(f.promotions.consumed) != 1 || f.promotions.consumed[0] != "p1" {
		t.Fatalf("expected usage slot consumed in the checkout transaction, got %v", f.promotions.consumed)
	}
}

func TestBeginUsageExceededAborts(t *testing.T) {
	f := newFixture()
	f.evaluator.discount = &domain.Discount{PromotionID: "p1", Code: "CAPPED"}
	f.promotions.consumeErr = domain.ErrUsageExceeded

	_, err := f.svc.Begin(context.Background(), BeginInput{CartID: "c1", Email: "a@b.fr", PromotionCode: "CAPPED"})
	if !errors.Is(err, domain.ErrUsageExceeded) {
		t.Fatalf("expected ErrUsageExceeded, got %v", err)
	}
	if f.carts.lastState != "" {
		t.Fatal("cart must stay active when the usage ceiling aborts checkout")
	}
}

func TestBeginGatewayFailureKeepsOrderPending(t *testing.T) {
	f := newFixture()
	f.gateway.err = errors.New("connect timeout")

	_, err := f.svc.Begin(context.Background(), BeginInput{CartID: "c1", Email: "a@b.fr"})
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	// Reservation happened; the TTL sweep reclaims the stock later.
	if len(f.ledger.reserveCalls) != 2 {
		t.Fatalf("expected reservations kept, got %d", len(f.ledger.reserveCalls))
	}
	if len(f.ledger.released) != 0 {
		t.Fatal("no immediate release on gateway failure")
	}
}

func TestBeginRejectsEmptyAndInactiveCarts(t *testing.T) {
	f := newFixture()
	f.carts.cart.Lines = nil
	if _, err := f.svc.Begin(context.Background(), BeginInput{CartID: "c1", Email: "a@b.fr"}); !errors.Is(err, domain.ErrCartEmpty) {
		t.Fatalf("expected ErrCartEmpty, got %v", err)
	}

	f = newFixture()
	f.carts.cart.State = domain.CartStateOrdered
	if _, err := f.svc.Begin(context.Background(), BeginInput{CartID: "c1", Email: "a@b.fr"}); !errors.Is(err, domain.ErrCartNotActive) {
		t.Fatalf("expected ErrCartNotActive, got %v", err)
	}
}

func TestHandlePaymentSuccessCommitsAndConfirms(t *testing.T) {
	f := newFixture()
	f.orders.order = &domain.Order{ID: "o1", Status: domain.OrderPending, Email: "a@b.fr", TotalCents: 375500, Currency: "EUR"}
	f.ledger.reservations = []domain.Reservation{
		{ID: "res-v1", OrderID: "o1", VariantID: "v1", Quantity: 1, Status: domain.ReservationHeld},
		{ID: "res-v2", OrderID: "o1", VariantID: "v2", Quantity: 2, Status: domain.ReservationHeld},
	}

	if err := f.svc.HandlePaymentResult(context.Background(), "o1", true, "ref-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.ledger.committed) != 2 {
		t.Fatalf("expected both holds committed, got %v", f.ledger.committed)
	}
	if len(f.orders.setPayments) != 1 || f.orders.setPayments[0] != domain.PaymentPaid {
		t.Fatalf("expected PAID, got %v", f.orders.setPayments)
	}
	if len(f.orders.setStatuses) != 1 || f.orders.setStatuses[0] != domain.OrderConfirmed {
		t.Fatalf("expected CONFIRMED, got %v", f.orders.setStatuses)
	}
	if len(f.publisher.topics) != 1 || f.publisher.topics[0] != events.TopicOrderConfirmed {
		t.Fatalf("expected confirmation event, got %v", f.publisher.topics)
	}
}

func TestHandlePaymentFailureReleasesAndCancels(t *testing.T) {
	f := newFixture()
	f.orders.order = &domain.Order{ID: "o1", Status: domain.OrderPending, TotalCents: 375500}
	f.ledger.reservations = []domain.Reservation{
		{ID: "res-v1", OrderID: "o1", Status: domain.ReservationHeld},
	}

	if err := f.svc.HandlePaymentResult(context.Background(), "o1", false, "ref-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.ledger.released) != 1 {
		t.Fatalf("expected hold released, got %v", f.ledger.released)
	}
	if len(f.promotions.restored) != 1 {
		t.Fatalf("expected usage slot restored, got %v", f.promotions.restored)
	}
	if len(f.orders.setStatuses) != 1 || f.orders.setStatuses[0] != domain.OrderCancelled {
		t.Fatalf("expected CANCELLED, got %v", f.orders.setStatuses)
	}
	if len(f.orders.records) != 1 || f.orders.records[0].Kind != domain.PaymentRecordDeclined {
		t.Fatalf("expected declined record, got %+v", f.orders.records)
	}
	if len(f.publisher.topics) != 0 {
		t.Fatal("no event on decline")
	}
}

func TestHandlePaymentReplayIsNoOp(t *testing.T) {
	f := newFixture()
	f.orders.order = &domain.Order{ID: "o1", Status: domain.OrderConfirmed}

	if err := f.svc.HandlePaymentResult(context.Background(), "o1", true, "ref-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.ledger.committed) != 0 || len(f.orders.setStatuses) != 0 || len(f.publisher.topics) != 0 {
		t.Fatal("replay of a settled order must not touch anything")
	}
}

func TestHandlePaymentRedeliveryAfterTransientFailure(t *testing.T) {
	f := newRedisFixture(t)
	f.orders.order = &domain.Order{ID: "o1", Status: domain.OrderPending, Email: "a@b.fr", TotalCents: 375500, Currency: "EUR"}
	f.ledger.reservations = []domain.Reservation{
		{ID: "res-v1", OrderID: "o1", VariantID: "v1", Quantity: 1, Status: domain.ReservationHeld},
	}
	f.orders.txErr = errors.New("deadlock detected")

	if err := f.svc.HandlePaymentResult(context.Background(), "o1", true, "ref-1"); err == nil {
		t.Fatal("expected the transient failure to surface")
	}

	// The gateway redelivers the identical callback; the failed attempt
	// must not have marked it as seen.
	if err := f.svc.HandlePaymentResult(context.Background(), "o1", true, "ref-1"); err != nil {
		t.Fatalf("redelivery must succeed, got %v", err)
	}
	if len(f.ledger.committed) != 1 {
		t.Fatalf("expected hold committed on redelivery, got %v", f.ledger.committed)
	}
	if len(f.orders.setStatuses) != 1 || f.orders.setStatuses[0] != domain.OrderConfirmed {
		t.Fatalf("expected CONFIRMED on redelivery, got %v", f.orders.setStatuses)
	}
}

func TestHandlePaymentDuplicateShortCircuitsAfterSettle(t *testing.T) {
	f := newRedisFixture(t)
	f.orders.order = &domain.Order{ID: "o1", Status: domain.OrderPending, Email: "a@b.fr", TotalCents: 375500, Currency: "EUR"}
	f.ledger.reservations = []domain.Reservation{
		{ID: "res-v1", OrderID: "o1", VariantID: "v1", Quantity: 1, Status: domain.ReservationHeld},
	}

	if err := f.svc.HandlePaymentResult(context.Background(), "o1", true, "ref-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A settled callback is answered from the dedup key alone.
	f.orders.getErr = errors.New("db unavailable")
	if err := f.svc.HandlePaymentResult(context.Background(), "o1", true, "ref-1"); err != nil {
		t.Fatalf("duplicate must short-circuit, got %v", err)
	}
	if len(f.ledger.committed) != 1 {
		t.Fatalf("duplicate must not touch the ledger, got %v", f.ledger.committed)
	}
}

func TestHandlePaymentLateConfirmationAfterSweep(t *testing.T) {
	f := newFixture()
	f.orders.order = &domain.Order{ID: "o1", Status: domain.OrderCancelled, TotalCents: 375500}

	if err := f.svc.HandlePaymentResult(context.Background(), "o1", true, "ref-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.ledger.committed) != 0 {
		t.Fatal("stock must never be re-committed for a cancelled order")
	}
	if len(f.orders.records) != 1 || f.orders.records[0].Kind != domain.PaymentRecordOrphaned {
		t.Fatalf("expected orphaned confirmation record, got %+v", f.orders.records)
	}
}

func TestHandlePaymentExpiredReservation(t *testing.T) {
	f := newFixture()
	f.orders.order = &domain.Order{ID: "o1", Status: domain.OrderPending}
	f.ledger.reservations = []domain.Reservation{{ID: "res-v1", OrderID: "o1"}}
	f.ledger.commitErr = domain.ErrReservationExpired

	err := f.svc.HandlePaymentResult(context.Background(), "o1", true, "ref-1")
	if !errors.Is(err, domain.ErrReservationExpired) {
		t.Fatalf("expected ErrReservationExpired, got %v", err)
	}
	if len(f.orders.setStatuses) != 0 {
		t.Fatal("order must not confirm on an expired hold")
	}
}

func TestSweepExpiredCancelsPendingOrders(t *testing.T) {
	f := newFixture()
	f.ledger.sweptOrders = []string{"o1", "o2"}
	f.orders.pendingIDs = []string{"o1"}
	f.orders.order = &domain.Order{ID: "o1", Status: domain.OrderPending}

	n, err := f.svc.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 cancelled, got %d", n)
	}
	if len(f.orders.setStatuses) != 1 || f.orders.setStatuses[0] != domain.OrderCancelled {
		t.Fatalf("expected CANCELLED write, got %v", f.orders.setStatuses)
	}
	if len(f.promotions.restored) != 1 {
		t.Fatalf("expected usage restored for swept order, got %v", f.promotions.restored)
	}
}
