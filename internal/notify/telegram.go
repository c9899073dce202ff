// Package notify sends a human-readable summary of a created order to a
// Telegram channel. Delivery is strictly best-effort: every failure is
// logged and swallowed, order creation never depends on it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xozmart/order-service/internal/metrics"
	"github.com/xozmart/order-service/internal/order"
)

const sendTimeout = 5 * time.Second

type TelegramNotifier struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

// NewTelegramNotifier builds a notifier for the given bot token and chat.
// Empty credentials are allowed and turn every send into a no-op, so an
// unconfigured deployment simply runs without notifications.
func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: sendTimeout},
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// OrderCreated formats and sends the order summary. It is safe to call from
// a detached goroutine; the request path never waits on it. The send runs
// on its own context so a disconnected caller cannot cancel the
// notification of an already-committed order.
func (n *TelegramNotifier) OrderCreated(ord *order.Order) {
	if n.token == "" || n.chatID == "" {
		metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
		log.Debug().Str("order_number", ord.OrderNumber).Msg("notify: telegram not configured, skipping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    n.chatID,
		Text:      FormatOrderMessage(ord),
		ParseMode: "Markdown",
	})
	if err != nil {
		n.fail(ord, err)
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		n.fail(ord, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.fail(ord, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.fail(ord, fmt.Errorf("telegram API returned status %d", resp.StatusCode))
		return
	}

	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	log.Info().Str("order_number", ord.OrderNumber).Msg("notify: telegram notification sent")
}

func (n *TelegramNotifier) fail(ord *order.Order, err error) {
	metrics.NotificationsTotal.WithLabelValues("failed").Inc()
	log.Error().Err(err).Str("order_number", ord.OrderNumber).Msg("notify: telegram notification failed")
}

// FormatOrderMessage renders the Uzbek-language summary posted to the shop
// channel: order number, customer, delivery and payment method, itemized
// lines and the total.
func FormatOrderMessage(ord *order.Order) string {
	var b strings.Builder

	b.WriteString("🛒 *YANGI BUYURTMA!*\n\n")
	fmt.Fprintf(&b, "📦 *Buyurtma:* `%s`\n\n", ord.OrderNumber)
	fmt.Fprintf(&b, "👤 *Mijoz:* %s\n", ord.CustomerName)
	fmt.Fprintf(&b, "📞 *Telefon:* %s\n\n", ord.CustomerPhone)

	b.WriteString(deliveryTypeLabel(ord.DeliveryType))
	b.WriteString("\n")
	if ord.DeliveryAddressText != nil && *ord.DeliveryAddressText != "" {
		fmt.Fprintf(&b, "📍 *Manzil:* %s\n", *ord.DeliveryAddressText)
	}
	b.WriteString("\n")

	b.WriteString(paymentTypeLabel(ord.PaymentType))
	b.WriteString("\n\n*Mahsulotlar:*\n")

	for i, item := range ord.Items {
		fmt.Fprintf(&b, "%d. %s x %d = %s\n", i+1, item.ProductNameSnapshot, item.Quantity, FormatPrice(item.LineTotal))
	}

	fmt.Fprintf(&b, "\n💰 *Jami:* %s\n", FormatPrice(ord.TotalAmount))

	if ord.Comment != nil && *ord.Comment != "" {
		fmt.Fprintf(&b, "\n💬 *Izoh:* %s\n", *ord.Comment)
	}

	return strings.TrimSpace(b.String())
}

// FormatPrice groups digits by thousands with spaces, the uz-UZ convention:
// 1234500 -> "1 234 500 so'm".
func FormatPrice(price int64) string {
	s := fmt.Sprintf("%d", price)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var groups []string
	for len(s) > 3 {
		groups = append([]string{s[len(s)-3:]}, groups...)
		s = s[:len(s)-3]
	}
	groups = append([]string{s}, groups...)

	out := strings.Join(groups, " ")
	if neg {
		out = "-" + out
	}
	return out + " so'm"
}

func paymentTypeLabel(t order.PaymentType) string {
	switch t {
	case order.PaymentCash:
		return "💵 Naqd"
	case order.PaymentCard:
		return "💳 Karta"
	case order.PaymentTransfer:
		return "🏦 O'tkazma"
	}
	return string(t)
}

func deliveryTypeLabel(t order.DeliveryType) string {
	if t == order.DeliveryCourier {
		return "🚗 Yetkazib berish"
	}
	return "🏪 Olib ketish"
}
