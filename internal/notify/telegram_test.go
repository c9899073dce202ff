package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xozmart/order-service/internal/order"
)

func sampleOrder() *order.Order {
	address := "Toshkent, Chilonzor 5"
	comment := "tezroq bo'lsin"
	return &order.Order{
		ID:                  uuid.Must(uuid.NewV4()),
		OrderNumber:         "XOZ-20250601-0042",
		CustomerName:        "Ali Valiyev",
		CustomerPhone:       "+998901234567",
		DeliveryType:        order.DeliveryCourier,
		DeliveryAddressText: &address,
		PaymentType:         order.PaymentCard,
		Status:              order.StatusNew,
		TotalAmount:         1234500,
		Comment:             &comment,
		Items: []order.OrderItem{
			{Quantity: 2, UnitPrice: 15000, LineTotal: 30000, ProductNameSnapshot: "Metall qoshiq"},
			{Quantity: 1, UnitPrice: 1204500, LineTotal: 1204500, ProductNameSnapshot: "Katta qozon"},
		},
	}
}

func TestFormatOrderMessage(t *testing.T) {
	msg := FormatOrderMessage(sampleOrder())

	assert.Contains(t, msg, "YANGI BUYURTMA")
	assert.Contains(t, msg, "`XOZ-20250601-0042`")
	assert.Contains(t, msg, "Ali Valiyev")
	assert.Contains(t, msg, "+998901234567")
	assert.Contains(t, msg, "Yetkazib berish")
	assert.Contains(t, msg, "Toshkent, Chilonzor 5")
	assert.Contains(t, msg, "Karta")
	assert.Contains(t, msg, "1. Metall qoshiq x 2 = 30 000 so'm")
	assert.Contains(t, msg, "2. Katta qozon x 1 = 1 204 500 so'm")
	assert.Contains(t, msg, "*Jami:* 1 234 500 so'm")
	assert.Contains(t, msg, "tezroq bo'lsin")
}

func TestFormatOrderMessage_PickupWithoutOptionalFields(t *testing.T) {
	ord := sampleOrder()
	ord.DeliveryType = order.DeliveryPickup
	ord.DeliveryAddressText = nil
	ord.Comment = nil

	msg := FormatOrderMessage(ord)

	assert.Contains(t, msg, "Olib ketish")
	assert.NotContains(t, msg, "Manzil")
	assert.NotContains(t, msg, "Izoh")
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		price int64
		want  string
	}{
		{0, "0 so'm"},
		{999, "999 so'm"},
		{1000, "1 000 so'm"},
		{15000, "15 000 so'm"},
		{1234500, "1 234 500 so'm"},
		{100000000, "100 000 000 so'm"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPrice(tt.price))
	}
}

func TestTelegramNotifier_SendsMessage(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("test-token", "-100123")
	n.baseURL = srv.URL

	n.OrderCreated(sampleOrder())

	assert.Equal(t, "-100123", got.ChatID)
	assert.Equal(t, "Markdown", got.ParseMode)
	assert.Contains(t, got.Text, "XOZ-20250601-0042")
}

func TestTelegramNotifier_SwallowsAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("test-token", "-100123")
	n.baseURL = srv.URL

	// Must not panic or surface anything to the caller.
	n.OrderCreated(sampleOrder())
}

func TestTelegramNotifier_SkipsWhenUnconfigured(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	n := NewTelegramNotifier("", "")
	n.baseURL = srv.URL

	n.OrderCreated(sampleOrder())

	assert.False(t, called, "unconfigured notifier must not call the API")
}
