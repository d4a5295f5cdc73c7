package fuelorder

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/flightbase/fbo-management/internal"
	"github.com/flightbase/fbo-management/internal/feecalc"
)

// Repository defines the data access methods for fuel orders.
type Repository interface {
	Create(order *FuelOrder) error
	GetByID(id int64) (*FuelOrder, error)
	GetByCustomerID(customerID int64, limit, offset int) ([]*FuelOrder, error)
	GetAllOrders(limit, offset int) ([]*FuelOrder, error)
	UpdateStatus(id int64, status string, completedAt *time.Time) error
	SaveReceipt(receipt *Receipt) error
	GetReceiptByOrderID(orderID int64) (*Receipt, error)
}

// FeeQuoter is the slice of the fee service client the order lifecycle
// needs: queue a quote, receive the result asynchronously.
type FeeQuoter interface {
	EnqueueQuote(req feecalc.FeeRequest) error
	OnResult(handler feecalc.ResultHandler)
}

// Service handles fuel order business logic. Authorization happens in
// the transport layer; the service assumes the caller was already
// cleared for the operation.
type Service struct {
	repo   Repository
	fees   FeeQuoter
	logger *slog.Logger
}

func NewService(repo Repository, fees FeeQuoter, logger *slog.Logger) *Service {
	s := &Service{
		repo:   repo,
		fees:   fees,
		logger: logger,
	}
	if fees != nil {
		fees.OnResult(s.handleFeeQuote)
	}
	return s
}

func (s *Service) CreateOrder(customerID int64, dto CreateOrderDTO) (*FuelOrder, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("fuel order validation failed", "error", err, "customer_id", customerID)
		return nil, err
	}

	now := time.Now()
	order := &FuelOrder{
		CustomerID:      customerID,
		TailNumber:      dto.TailNumber,
		FuelType:        dto.FuelType,
		QuantityGallons: dto.QuantityGallons,
		OrderStatus:     OrderStatusPending,
		RequestedAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(order); err != nil {
		s.logger.Error("failed to create fuel order", "error", err, "customer_id", customerID)
		return nil, err
	}

	s.logger.Info("fuel order created",
		"order_id", order.ID,
		"customer_id", customerID,
		"fuel_type", dto.FuelType,
		"quantity_gallons", dto.QuantityGallons)

	return order, nil
}

func (s *Service) GetOrderByID(id int64) (*FuelOrder, error) {
	order, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, internal.ErrOrderNotFound) {
			return nil, internal.ErrOrderNotFound
		}
		s.logger.Error("failed to get fuel order", "error", err, "order_id", id)
		return nil, err
	}
	return order, nil
}

func (s *Service) GetCustomerOrders(customerID int64, limit, offset int) ([]*FuelOrder, error) {
	orders, err := s.repo.GetByCustomerID(customerID, limit, offset)
	if err != nil {
		s.logger.Error("failed to get customer orders", "error", err, "customer_id", customerID)
		return nil, err
	}
	return orders, nil
}

func (s *Service) GetAllOrders(limit, offset int) ([]*FuelOrder, error) {
	orders, err := s.repo.GetAllOrders(limit, offset)
	if err != nil {
		s.logger.Error("failed to get all orders", "error", err)
		return nil, err
	}
	return orders, nil
}

// StartOrder moves a pending order onto the ramp.
func (s *Service) StartOrder(orderID int64) error {
	order, err := s.repo.GetByID(orderID)
	if err != nil {
		return err
	}
	if !order.CanStart() {
		s.logger.Warn("cannot start order in current status", "order_id", orderID, "status", order.OrderStatus)
		return internal.ErrInvalidOrderStatus
	}

	if err := s.repo.UpdateStatus(orderID, OrderStatusInProgress, nil); err != nil {
		s.logger.Error("failed to start fuel order", "error", err, "order_id", orderID)
		return err
	}

	s.logger.Info("fuel order started", "order_id", orderID)
	return nil
}

// CompleteOrder finishes fueling and queues receipt generation with the
// fee service. The receipt lands asynchronously via handleFeeQuote.
func (s *Service) CompleteOrder(orderID int64) error {
	order, err := s.repo.GetByID(orderID)
	if err != nil {
		return err
	}
	if !order.CanComplete() {
		s.logger.Warn("cannot complete order in current status", "order_id", orderID, "status", order.OrderStatus)
		return internal.ErrInvalidOrderStatus
	}

	completedAt := time.Now()
	if err := s.repo.UpdateStatus(orderID, OrderStatusCompleted, &completedAt); err != nil {
		s.logger.Error("failed to complete fuel order", "error", err, "order_id", orderID)
		return err
	}

	s.logger.Info("fuel order completed", "order_id", orderID, "quantity_gallons", order.QuantityGallons)

	if s.fees == nil {
		return nil
	}
	if err := s.fees.EnqueueQuote(feecalc.FeeRequest{
		OrderID:         orderID,
		FuelType:        order.FuelType,
		QuantityGallons: order.QuantityGallons,
		TailNumber:      order.TailNumber,
	}); err != nil {
		// the order stays completed; receipts can be requeued later
		s.logger.Error("failed to queue receipt generation", "error", err, "order_id", orderID)
	}
	return nil
}

func (s *Service) CancelOrder(orderID int64) error {
	order, err := s.repo.GetByID(orderID)
	if err != nil {
		return err
	}
	if !order.CanCancel() {
		s.logger.Warn("cannot cancel order in current status", "order_id", orderID, "status", order.OrderStatus)
		return internal.ErrInvalidOrderStatus
	}

	if err := s.repo.UpdateStatus(orderID, OrderStatusCancelled, nil); err != nil {
		s.logger.Error("failed to cancel fuel order", "error", err, "order_id", orderID)
		return err
	}

	s.logger.Info("fuel order cancelled", "order_id", orderID)
	return nil
}

func (s *Service) GetReceipt(orderID int64) (*Receipt, error) {
	receipt, err := s.repo.GetReceiptByOrderID(orderID)
	if err != nil {
		s.logger.Error("failed to get receipt", "error", err, "order_id", orderID)
		return nil, err
	}
	return receipt, nil
}

// handleFeeQuote persists the line items returned by the fee service
// verbatim; no local arithmetic, the remote totals are authoritative.
func (s *Service) handleFeeQuote(ctx context.Context, quote *feecalc.FeeQuote, err error) {
	if err != nil {
		s.logger.Error("receipt generation failed", "error", err)
		return
	}

	receipt := &Receipt{
		FuelOrderID: quote.OrderID,
		TotalCents:  quote.TotalCents,
		Currency:    quote.Currency,
		GeneratedAt: time.Now(),
	}
	if receipt.Currency == "" {
		receipt.Currency = "USD"
	}
	for _, item := range quote.LineItems {
		receipt.LineItems = append(receipt.LineItems, ReceiptLineItem{
			Code:        item.Code,
			Description: item.Description,
			Quantity:    item.Quantity,
			AmountCents: item.AmountCents,
		})
	}

	if err := s.repo.SaveReceipt(receipt); err != nil {
		s.logger.Error("failed to save receipt", "error", err, "order_id", quote.OrderID)
		return
	}

	s.logger.Info("receipt generated",
		"order_id", quote.OrderID,
		"total_cents", quote.TotalCents,
		"line_items", len(receipt.LineItems))
}

// IsOwner is the ownership delegate registered for the fuel_order
// resource type. Resource ids arrive as strings from grant scopes and
// URL parameters.
func (s *Service) IsOwner(ctx context.Context, resourceID string, userID int64) (bool, error) {
	orderID, err := strconv.ParseInt(resourceID, 10, 64)
	if err != nil {
		s.logger.Warn("ownership check with malformed order id", "resource_id", resourceID)
		return false, nil
	}

	order, err := s.repo.GetByID(orderID)
	if err != nil {
		if errors.Is(err, internal.ErrOrderNotFound) {
			return false, nil
		}
		return false, err
	}
	return order.CustomerID == userID, nil
}
