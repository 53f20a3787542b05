package order

import (
	"context"
	"errors"
	"io"
	"log"

	"maison-commerce/internal/domain"
	"maison-commerce/internal/events"
)

type orderRepo interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Order, error)
	SetStatus(ctx context.Context, id string, status domain.OrderStatus) error
	SetFulfillment(ctx context.Context, id string, status domain.FulfillmentStatus, tracking *string) error
	SetPayment(ctx context.Context, id string, status domain.PaymentStatus) error
	AppendPaymentRecord(ctx context.Context, rec domain.PaymentRecord) error
	ListPaymentRecords(ctx context.Context, orderID string) ([]domain.PaymentRecord, error)
}

type publisher interface {
	Publish(topic, eventType, orderID string, payload any)
}

// Service advances order state machines. Every move is checked against
// the transition tables; an invalid move is rejected and logged, the
// order stays in its last valid state.
type Service struct {
	repo   orderRepo
	events publisher
	logger *log.Logger
}

func New(repo orderRepo, ev publisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{repo: repo, events: ev, logger: logger}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) PaymentRecords(ctx context.Context, orderID string) ([]domain.PaymentRecord, error) {
	return s.repo.ListPaymentRecords(ctx, orderID)
}

type TransitionInput struct {
	Field    string  `json:"field"`
	To       string  `json:"to"`
	Tracking *string `json:"tracking,omitempty"`
}

const (
	FieldStatus      = "status"
	FieldFulfillment = "fulfillmentStatus"
	FieldPayment     = "paymentStatus"
)

// Transition applies one state machine move under a row lock.
func (s *Service) Transition(ctx context.Context, orderID string, in TransitionInput) (*domain.Order, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		ord, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		switch in.Field {
		case FieldStatus:
			to := domain.OrderStatus(in.To)
			if !domain.CanTransitionStatus(ord.Status, to) {
				return s.reject(domain.InvalidTransitionError{Field: in.Field, From: string(ord.Status), To: in.To})
			}
			return s.repo.SetStatus(ctx, orderID, to)

		case FieldFulfillment:
			to := domain.FulfillmentStatus(in.To)
			if !domain.CanTransitionFulfillment(ord.FulfillmentStatus, to) {
				return s.reject(domain.InvalidTransitionError{Field: in.Field, From: string(ord.FulfillmentStatus), To: in.To})
			}
			if err := s.repo.SetFulfillment(ctx, orderID, to, in.Tracking); err != nil {
				return err
			}
			if to == domain.FulfillmentShipped {
				tracking := ""
				if in.Tracking != nil {
					tracking = *in.Tracking
				}
				s.events.Publish(events.TopicOrderShipped, events.EventOrderShipped, orderID, events.OrderShippedPayload{
					OrderID:      orderID,
					Email:        ord.Email,
					TrackingCode: tracking,
				})
			}
			return nil

		case FieldPayment:
			to := domain.PaymentStatus(in.To)
			if !domain.CanTransitionPayment(ord.PaymentStatus, to) {
				return s.reject(domain.InvalidTransitionError{Field: in.Field, From: string(ord.PaymentStatus), To: in.To})
			}
			return s.repo.SetPayment(ctx, orderID, to)

		default:
			return errors.New("unknown field")
		}
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, orderID)
}

// Refund is the single escape valve: a CONFIRMED, PAID order moves to
// REFUNDED on both machines in one transaction, with a refund row in the
// payment log.
func (s *Service) Refund(ctx context.Context, orderID, reference string) (*domain.Order, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		ord, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !domain.CanTransitionStatus(ord.Status, domain.OrderRefunded) {
			return s.reject(domain.InvalidTransitionError{Field: FieldStatus, From: string(ord.Status), To: string(domain.OrderRefunded)})
		}
		if !domain.CanTransitionPayment(ord.PaymentStatus, domain.PaymentRefunded) {
			return s.reject(domain.InvalidTransitionError{Field: FieldPayment, From: string(ord.PaymentStatus), To: string(domain.PaymentRefunded)})
		}
		if err := s.repo.SetStatus(ctx, orderID, domain.OrderRefunded); err != nil {
			return err
		}
		if err := s.repo.SetPayment(ctx, orderID, domain.PaymentRefunded); err != nil {
			return err
		}
		return s.repo.AppendPaymentRecord(ctx, domain.PaymentRecord{
			OrderID:          orderID,
			Kind:             domain.PaymentRecordRefund,
			GatewayReference: reference,
			AmountCents:      ord.TotalCents,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, orderID)
}

func (s *Service) reject(err domain.InvalidTransitionError) error {
	s.logger.Printf("order service: %v", err)
	return err
}
