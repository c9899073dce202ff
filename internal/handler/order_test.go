package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xozmart/order-service/internal/catalog"
	"github.com/xozmart/order-service/internal/order"
	"github.com/xozmart/order-service/internal/ratelimit"
)

type mockOrderService struct {
	createFunc       func(ctx context.Context, input *order.OrderInput) (*order.Order, error)
	getByIDFunc      func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	listFunc         func(ctx context.Context, status order.OrderStatus) ([]order.Order, error)
	updateStatusFunc func(ctx context.Context, id uuid.UUID, status order.OrderStatus) error
}

func (m *mockOrderService) CreateOrder(ctx context.Context, input *order.OrderInput) (*order.Order, error) {
	return m.createFunc(ctx, input)
}

func (m *mockOrderService) GetOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockOrderService) ListOrders(ctx context.Context, status order.OrderStatus) ([]order.Order, error) {
	return m.listFunc(ctx, status)
}

func (m *mockOrderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status order.OrderStatus) error {
	return m.updateStatusFunc(ctx, id, status)
}

func newLimiter() *ratelimit.Limiter {
	return ratelimit.New(ratelimit.NewMemoryStore(nil), 5, time.Minute)
}

const validBody = `{
	"customer_name": "Ali Valiyev",
	"customer_phone": "+998901234567",
	"delivery_type": "pickup",
	"payment_type": "cash",
	"items": [{
		"product_id": "550e8400-e29b-41d4-a716-446655440000",
		"quantity": 2,
		"unit_price": 15000,
		"cost_price": 10000,
		"product_name": "Metall qoshiq"
	}]
}`

func creatingService(t *testing.T) *mockOrderService {
	return &mockOrderService{
		createFunc: func(_ context.Context, input *order.OrderInput) (*order.Order, error) {
			require.NotNil(t, input)
			return &order.Order{
				ID:          uuid.Must(uuid.FromString("123e4567-e89b-12d3-a456-426614174000")),
				OrderNumber: "XOZ-20250601-0042",
				TotalAmount: 30000,
				Status:      order.StatusNew,
			}, nil
		},
	}
}

func postOrder(h *OrderHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec := httptest.NewRecorder()
	h.CreateOrder(rec, req)
	return rec
}

func TestOrderHandler_CreateOrder_Success(t *testing.T) {
	h := NewOrderHandler(creatingService(t), newLimiter())

	rec := postOrder(h, validBody)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp createOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "XOZ-20250601-0042", resp.Order.OrderNumber)
	assert.Equal(t, int64(30000), resp.Order.TotalAmount)
	assert.Equal(t, order.StatusNew, resp.Order.Status)
}

func TestOrderHandler_CreateOrder_ValidationFailure(t *testing.T) {
	h := NewOrderHandler(&mockOrderService{
		createFunc: func(_ context.Context, _ *order.OrderInput) (*order.Order, error) {
			t.Fatal("service must not be called for an invalid payload")
			return nil, nil
		},
	}, newLimiter())

	rec := postOrder(h, `{"customer_name": "Ali Valiyev", "items": []}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp validationFailedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Validation failed", resp.Error)

	var hasItems bool
	for _, fe := range resp.Details {
		if fe.Field == "items" {
			hasItems = true
		}
	}
	assert.True(t, hasItems, "details must contain an entry for items")
}

func TestOrderHandler_CreateOrder_MalformedJSON(t *testing.T) {
	h := NewOrderHandler(creatingService(t), newLimiter())

	rec := postOrder(h, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Validation failed")
}

func TestOrderHandler_CreateOrder_IntegrityFailure(t *testing.T) {
	h := NewOrderHandler(&mockOrderService{
		createFunc: func(_ context.Context, _ *order.OrderInput) (*order.Order, error) {
			return nil, &catalog.IntegrityError{
				Reason:  catalog.ReasonVariantMismatch,
				Message: "Variant does not belong to product",
			}
		},
	}, newLimiter())

	rec := postOrder(h, validBody)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Variant does not belong to product"}`, rec.Body.String())
}

func TestOrderHandler_CreateOrder_PersistenceFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantBody string
	}{
		{"order_insert", fmt.Errorf("%w: timeout", order.ErrCreateOrder), `{"error":"Failed to create order"}`},
		{"items_insert", fmt.Errorf("%w: fk violation", order.ErrCreateOrderItems), `{"error":"Failed to create order items"}`},
		{"unexpected", fmt.Errorf("boom"), `{"error":"Internal server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOrderHandler(&mockOrderService{
				createFunc: func(_ context.Context, _ *order.OrderInput) (*order.Order, error) {
					return nil, tt.err
				},
			}, newLimiter())

			rec := postOrder(h, validBody)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestOrderHandler_CreateOrder_RateLimited(t *testing.T) {
	h := NewOrderHandler(creatingService(t), newLimiter())

	for i := 0; i < 5; i++ {
		rec := postOrder(h, validBody)
		assert.Equal(t, http.StatusCreated, rec.Code, "request %d should be admitted", i+1)
	}

	rec := postOrder(h, validBody)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Too many requests. Please try again later."}`, rec.Body.String())

	// A different client identity is unaffected.
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(validBody))
	req.Header.Set("X-Forwarded-For", "198.51.100.23, 10.0.0.1")
	other := httptest.NewRecorder()
	h.CreateOrder(other, req)
	assert.Equal(t, http.StatusCreated, other.Code)
}

func TestClientIdentity(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded_chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1, 10.0.0.2"}, "203.0.113.7"},
		{"forwarded_single", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "203.0.113.7"},
		{"cloudflare", map[string]string{"CF-Connecting-IP": "198.51.100.23"}, "198.51.100.23"},
		{"none", nil, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/orders", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIdentity(req))
		})
	}
}
