package order

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrCreateOrder and ErrCreateOrderItems are surfaced to the HTTP layer
	// without store detail; the underlying cause is logged server-side.
	ErrCreateOrder      = errors.New("failed to create order")
	ErrCreateOrderItems = errors.New("failed to create order items")
)

type Repository interface {
	CreateOrder(ctx context.Context, ord *Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, status OrderStatus) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus OrderStatus) error
}

type postgresRepository struct {
	db     *pgxpool.Pool
	prefix string
}

func NewRepository(db *pgxpool.Pool, orderNumberPrefix string) Repository {
	return &postgresRepository{db: db, prefix: orderNumberPrefix}
}

// NewOrderNumber builds a human-readable order number: PREFIX-YYYYMMDD-NNNN
// with a random zero-padded suffix. Uniqueness is advisory here; the
// order_number column carries a UNIQUE constraint so a collision surfaces
// as an insert failure instead of a silent duplicate.
func NewOrderNumber(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, now.Format("20060102"), rand.Intn(10000))
}

// CreateOrder inserts the order row and then its items. The two writes are
// not wrapped in a transaction: the items insert failing triggers a
// compensating delete of the order row so no order exists without items.
// A failed compensation is logged but the caller only sees the items error.
func (r *postgresRepository) CreateOrder(ctx context.Context, ord *Order) error {
	orderID, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate order ID: %w", err)
	}

	now := time.Now().UTC()
	ord.ID = orderID
	ord.OrderNumber = NewOrderNumber(r.prefix, now)
	ord.CreatedAt = now
	ord.UpdatedAt = now

	queryOrder := `
		INSERT INTO orders (id, order_number, customer_name, customer_phone, delivery_type,
			delivery_lat, delivery_lng, delivery_address_text, payment_type, status,
			total_amount, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.db.Exec(ctx, queryOrder,
		ord.ID,
		ord.OrderNumber,
		ord.CustomerName,
		ord.CustomerPhone,
		string(ord.DeliveryType),
		ord.DeliveryLat,
		ord.DeliveryLng,
		ord.DeliveryAddressText,
		string(ord.PaymentType),
		string(ord.Status),
		ord.TotalAmount,
		ord.Comment,
		ord.CreatedAt,
		ord.UpdatedAt,
	)
	if err != nil {
		log.Error().Err(err).Str("order_number", ord.OrderNumber).Msg("repository: failed to insert order")
		return fmt.Errorf("%w: %v", ErrCreateOrder, err)
	}

	queryItem := `
		INSERT INTO order_items (id, order_id, product_id, variant_id, quantity,
			unit_price, line_total, cost_price_snapshot, product_name_snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	batch := &pgx.Batch{}
	for i := range ord.Items {
		item := &ord.Items[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			r.compensate(ctx, ord)
			return fmt.Errorf("%w: %v", ErrCreateOrderItems, genErr)
		}
		item.ID = itemID
		item.OrderID = ord.ID
		item.CreatedAt = now

		batch.Queue(queryItem,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.VariantID,
			item.Quantity,
			item.UnitPrice,
			item.LineTotal,
			item.CostPriceSnapshot,
			item.ProductNameSnapshot,
			item.CreatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	var batchErr error
	for range ord.Items {
		if _, execErr := results.Exec(); execErr != nil && batchErr == nil {
			batchErr = execErr
		}
	}
	if closeErr := results.Close(); closeErr != nil && batchErr == nil {
		batchErr = closeErr
	}

	if batchErr != nil {
		log.Error().Err(batchErr).Stringer("order_id", ord.ID).Msg("repository: failed to insert order items")
		r.compensate(ctx, ord)
		return fmt.Errorf("%w: %v", ErrCreateOrderItems, batchErr)
	}

	return nil
}

// compensate removes the already-inserted order row after an items failure.
func (r *postgresRepository) compensate(ctx context.Context, ord *Order) {
	if _, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, ord.ID); err != nil {
		log.Error().Err(err).Stringer("order_id", ord.ID).Msg("repository: compensating delete failed, order left without items")
	}
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	queryOrder := `
		SELECT id, order_number, customer_name, customer_phone, delivery_type,
			delivery_lat, delivery_lng, delivery_address_text, payment_type, status,
			total_amount, comment, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var ord Order
	err := r.db.QueryRow(ctx, queryOrder, orderID).Scan(
		&ord.ID,
		&ord.OrderNumber,
		&ord.CustomerName,
		&ord.CustomerPhone,
		&ord.DeliveryType,
		&ord.DeliveryLat,
		&ord.DeliveryLng,
		&ord.DeliveryAddressText,
		&ord.PaymentType,
		&ord.Status,
		&ord.TotalAmount,
		&ord.Comment,
		&ord.CreatedAt,
		&ord.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	items, err := r.itemsByOrderIDs(ctx, []uuid.UUID{orderID})
	if err != nil {
		return nil, err
	}
	ord.Items = items[orderID]
	if ord.Items == nil {
		ord.Items = []OrderItem{}
	}

	return &ord, nil
}

func (r *postgresRepository) ListOrders(ctx context.Context, status OrderStatus) ([]Order, error) {
	query := `
		SELECT id, order_number, customer_name, customer_phone, delivery_type,
			delivery_lat, delivery_lng, delivery_address_text, payment_type, status,
			total_amount, comment, created_at, updated_at
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for rows.Next() {
		var ord Order
		err := rows.Scan(
			&ord.ID,
			&ord.OrderNumber,
			&ord.CustomerName,
			&ord.CustomerPhone,
			&ord.DeliveryType,
			&ord.DeliveryLat,
			&ord.DeliveryLng,
			&ord.DeliveryAddressText,
			&ord.PaymentType,
			&ord.Status,
			&ord.TotalAmount,
			&ord.Comment,
			&ord.CreatedAt,
			&ord.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		ord.Items = []OrderItem{}
		ordersMap[ord.ID] = &ord
		orderIDs = append(orderIDs, ord.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	items, err := r.itemsByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	for orderID, orderItems := range items {
		if ord, ok := ordersMap[orderID]; ok {
			ord.Items = orderItems
		}
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *ordersMap[id])
	}

	return result, nil
}

func (r *postgresRepository) itemsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, variant_id, quantity,
			unit_price, line_total, cost_price_snapshot, product_name_snapshot, created_at
		FROM order_items
		WHERE order_id = ANY($1)
	`

	rows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]OrderItem)
	for rows.Next() {
		var item OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.VariantID,
			&item.Quantity,
			&item.UnitPrice,
			&item.LineTotal,
			&item.CostPriceSnapshot,
			&item.ProductNameSnapshot,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	return items, nil
}

func (r *postgresRepository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	cmdTag, err := r.db.Exec(ctx, query, string(newStatus), time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}
