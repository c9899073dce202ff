package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/xozmart/order-service/internal/catalog"
	"github.com/xozmart/order-service/internal/metrics"
)

var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusNew: {
		StatusProcessing: true,
		StatusCanceled:   true,
	},
	StatusProcessing: {
		StatusReady:    true,
		StatusCanceled: true,
	},
	StatusReady: {
		StatusDelivered: true,
		StatusCanceled:  true,
	},
	StatusDelivered: {},
	StatusCanceled:  {},
}

var (
	ErrInvalidStatus           = errors.New("invalid order status")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

// CatalogChecker verifies item references against the catalog and resolves
// authoritative pricing, index-aligned with the given refs.
type CatalogChecker interface {
	Check(ctx context.Context, refs []catalog.ItemRef) ([]catalog.Pricing, error)
}

// Notifier receives a created order. Implementations must never block the
// caller for long and must swallow their own failures.
type Notifier interface {
	OrderCreated(ord *Order)
}

type Service interface {
	CreateOrder(ctx context.Context, input *OrderInput) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, status OrderStatus) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus OrderStatus) error
}

type ServiceConfig struct {
	// TrustClientPrice keeps the client-submitted unit/cost prices after the
	// existence check instead of recomputing them from catalog data.
	TrustClientPrice bool
}

type service struct {
	repo     Repository
	checker  CatalogChecker
	notifier Notifier
	cfg      ServiceConfig
}

func NewService(repo Repository, checker CatalogChecker, notifier Notifier, cfg ServiceConfig) Service {
	return &service{
		repo:     repo,
		checker:  checker,
		notifier: notifier,
		cfg:      cfg,
	}
}

// CreateOrder takes a sanitized submission through the catalog integrity
// check, persists the order with its items and dispatches a best-effort
// notification. No write happens before the catalog check passes.
func (s *service) CreateOrder(ctx context.Context, input *OrderInput) (*Order, error) {
	refs := make([]catalog.ItemRef, len(input.Items))
	for i, item := range input.Items {
		refs[i] = catalog.ItemRef{ProductID: item.ProductID, VariantID: item.VariantID}
	}

	pricing, err := s.checker.Check(ctx, refs)
	if err != nil {
		var integrityErr *catalog.IntegrityError
		if errors.As(err, &integrityErr) {
			log.Warn().Str("reason", string(integrityErr.Reason)).Msg("service: order rejected by catalog check")
			metrics.OrdersRejectedTotal.WithLabelValues("catalog").Inc()
			return nil, err
		}
		log.Error().Err(err).Msg("service: catalog check failed")
		return nil, fmt.Errorf("service: catalog check failed: %w", err)
	}

	ord := &Order{
		CustomerName:        input.CustomerName,
		CustomerPhone:       input.CustomerPhone,
		DeliveryType:        input.DeliveryType,
		DeliveryLat:         input.DeliveryLat,
		DeliveryLng:         input.DeliveryLng,
		DeliveryAddressText: input.DeliveryAddressText,
		PaymentType:         input.PaymentType,
		Comment:             input.Comment,
		Status:              StatusNew,
		Items:               make([]OrderItem, len(input.Items)),
	}

	var total int64
	for i, item := range input.Items {
		unitPrice, costPrice := pricing[i].UnitPrice, pricing[i].CostPrice
		if s.cfg.TrustClientPrice {
			unitPrice, costPrice = item.UnitPrice, item.CostPrice
		}

		lineTotal := unitPrice * int64(item.Quantity)
		total += lineTotal

		productID := item.ProductID
		ord.Items[i] = OrderItem{
			ProductID:           &productID,
			VariantID:           item.VariantID,
			Quantity:            item.Quantity,
			UnitPrice:           unitPrice,
			LineTotal:           lineTotal,
			CostPriceSnapshot:   costPrice,
			ProductNameSnapshot: item.ProductName,
		}
	}
	ord.TotalAmount = total

	if err := s.repo.CreateOrder(ctx, ord); err != nil {
		log.Error().Err(err).Msg("service: failed to persist order")
		return nil, err
	}

	metrics.OrdersCreatedTotal.Inc()
	log.Info().
		Str("order_number", ord.OrderNumber).
		Int64("total_amount", ord.TotalAmount).
		Int("items", len(ord.Items)).
		Msg("service: order created")

	// Fire-and-forget: the response must not wait on the messaging channel.
	go s.notifier.OrderCreated(ord)

	return ord, nil
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	ord, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	return ord, nil
}

func (s *service) ListOrders(ctx context.Context, status OrderStatus) ([]Order, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}

	orders, err := s.repo.ListOrders(ctx, status)
	if err != nil {
		log.Error().Err(err).Str("status", string(status)).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus OrderStatus) error {
	if !newStatus.Valid() {
		return ErrInvalidStatus
	}

	current, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to get order for status update")
		return fmt.Errorf("service: failed to get order for status update: %w", err)
	}

	if current.Status == newStatus {
		return nil
	}

	if !allowedTransitions[current.Status][newStatus] {
		log.Warn().
			Stringer("order_id", orderID).
			Str("current_status", string(current.Status)).
			Str("new_status", string(newStatus)).
			Msg("service: invalid status transition attempt")
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, newStatus)
	}

	if err := s.repo.UpdateOrderStatus(ctx, orderID, newStatus); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to update order status")
		return fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().
		Stringer("order_id", orderID).
		Str("old_status", string(current.Status)).
		Str("new_status", string(newStatus)).
		Msg("service: order status updated")
	return nil
}
