package order

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/gofrs/uuid"
)

// FieldError is a single validation violation. Validation collects every
// violation before returning instead of stopping at the first one.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	maxItems    = 50
	maxQuantity = 1000
	maxPrice    = 100_000_000
	maxNameLen  = 100
	maxAddrLen  = 500
	maxComment  = 1000
	maxItemName = 255
)

var (
	phoneRegexp      = regexp.MustCompile(`^\+?998\d{9}$`)
	whitespaceRegexp = regexp.MustCompile(`\s`)
	uuidRegexp       = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
)

// ValidateOrderInput checks an untyped payload against the submission rules
// and returns either the sanitized input or the full list of field errors.
// It never fails with a Go error on malformed input: structural problems are
// reported as field errors.
func ValidateOrderInput(payload map[string]any) (*OrderInput, []FieldError) {
	if payload == nil {
		return nil, []FieldError{{Field: "root", Message: "Invalid request body"}}
	}

	var errs []FieldError

	name, ok := payload["customer_name"].(string)
	if !ok || len([]rune(strings.TrimSpace(name))) < 2 {
		errs = append(errs, FieldError{Field: "customer_name", Message: "Customer name is required (min 2 characters)"})
	} else if len([]rune(name)) > maxNameLen {
		errs = append(errs, FieldError{Field: "customer_name", Message: "Customer name is too long (max 100 characters)"})
	}

	var cleanPhone string
	phone, ok := payload["customer_phone"].(string)
	if !ok {
		errs = append(errs, FieldError{Field: "customer_phone", Message: "Customer phone is required"})
	} else {
		cleanPhone = whitespaceRegexp.ReplaceAllString(phone, "")
		if !phoneRegexp.MatchString(cleanPhone) {
			errs = append(errs, FieldError{Field: "customer_phone", Message: "Invalid phone number format (must be +998XXXXXXXXX)"})
		}
	}

	deliveryType, _ := payload["delivery_type"].(string)
	if deliveryType != string(DeliveryPickup) && deliveryType != string(DeliveryCourier) {
		errs = append(errs, FieldError{Field: "delivery_type", Message: "Invalid delivery type (must be pickup or delivery)"})
	}

	if deliveryType == string(DeliveryCourier) {
		addr, ok := payload["delivery_address_text"].(string)
		if !ok || len([]rune(strings.TrimSpace(addr))) < 5 {
			errs = append(errs, FieldError{Field: "delivery_address_text", Message: "Delivery address is required for delivery orders"})
		} else if len([]rune(addr)) > maxAddrLen {
			errs = append(errs, FieldError{Field: "delivery_address_text", Message: "Delivery address is too long (max 500 characters)"})
		}

		if lat, ok := payload["delivery_lat"].(float64); ok && (lat < -90 || lat > 90) {
			errs = append(errs, FieldError{Field: "delivery_lat", Message: "Invalid latitude"})
		}
		if lng, ok := payload["delivery_lng"].(float64); ok && (lng < -180 || lng > 180) {
			errs = append(errs, FieldError{Field: "delivery_lng", Message: "Invalid longitude"})
		}
	}

	paymentType, _ := payload["payment_type"].(string)
	if paymentType != string(PaymentCash) && paymentType != string(PaymentCard) && paymentType != string(PaymentTransfer) {
		errs = append(errs, FieldError{Field: "payment_type", Message: "Invalid payment type (must be cash, card, or transfer)"})
	}

	if c, present := payload["comment"]; present && c != nil {
		comment, ok := c.(string)
		if !ok {
			errs = append(errs, FieldError{Field: "comment", Message: "Comment must be a string"})
		} else if len([]rune(comment)) > maxComment {
			errs = append(errs, FieldError{Field: "comment", Message: "Comment is too long (max 1000 characters)"})
		}
	}

	rawItems, ok := payload["items"].([]any)
	switch {
	case !ok || len(rawItems) == 0:
		errs = append(errs, FieldError{Field: "items", Message: "At least one item is required"})
	case len(rawItems) > maxItems:
		errs = append(errs, FieldError{Field: "items", Message: "Too many items (max 50)"})
	default:
		for i, raw := range rawItems {
			errs = append(errs, validateItem(i, raw)...)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	input := &OrderInput{
		CustomerName:  sanitizeString(name, maxNameLen),
		CustomerPhone: normalizePhone(cleanPhone),
		DeliveryType:  DeliveryType(deliveryType),
		PaymentType:   PaymentType(paymentType),
		Items:         make([]OrderItemInput, 0, len(rawItems)),
	}

	for _, raw := range rawItems {
		item := raw.(map[string]any)

		productID, _ := uuid.FromString(item["product_id"].(string))
		sanitized := OrderItemInput{
			ProductID:   productID,
			Quantity:    int(math.Floor(item["quantity"].(float64))),
			UnitPrice:   int64(math.Floor(item["unit_price"].(float64))),
			CostPrice:   int64(math.Floor(item["cost_price"].(float64))),
			ProductName: sanitizeString(item["product_name"].(string), maxItemName),
		}
		if v, ok := item["variant_id"].(string); ok {
			variantID, _ := uuid.FromString(v)
			sanitized.VariantID = &variantID
		}
		input.Items = append(input.Items, sanitized)
	}

	// Address and coordinates only make sense for courier delivery; for
	// pickup they are dropped even when present in the payload.
	if input.DeliveryType == DeliveryCourier {
		if lat, ok := payload["delivery_lat"].(float64); ok {
			input.DeliveryLat = &lat
		}
		if lng, ok := payload["delivery_lng"].(float64); ok {
			input.DeliveryLng = &lng
		}
		addr := sanitizeString(payload["delivery_address_text"].(string), maxAddrLen)
		input.DeliveryAddressText = &addr
	}

	if c, ok := payload["comment"].(string); ok && c != "" {
		comment := sanitizeString(c, maxComment)
		input.Comment = &comment
	}

	return input, nil
}

func validateItem(index int, raw any) []FieldError {
	field := func(name string) string {
		return fmt.Sprintf("items[%d].%s", index, name)
	}

	item, ok := raw.(map[string]any)
	if !ok {
		return []FieldError{{Field: fmt.Sprintf("items[%d]", index), Message: "Invalid item"}}
	}

	var errs []FieldError

	if id, ok := item["product_id"].(string); !ok || !validUUID(id) {
		errs = append(errs, FieldError{Field: field("product_id"), Message: "Invalid product ID"})
	}

	if v, present := item["variant_id"]; present && v != nil {
		if id, ok := v.(string); !ok || !validUUID(id) {
			errs = append(errs, FieldError{Field: field("variant_id"), Message: "Invalid variant ID"})
		}
	}

	if q, ok := item["quantity"].(float64); !ok || q < 1 || q > maxQuantity {
		errs = append(errs, FieldError{Field: field("quantity"), Message: "Invalid quantity (must be 1-1000)"})
	}

	if p, ok := item["unit_price"].(float64); !ok || p < 0 || p > maxPrice {
		errs = append(errs, FieldError{Field: field("unit_price"), Message: "Invalid unit price"})
	}

	if p, ok := item["cost_price"].(float64); !ok || p < 0 || p > maxPrice {
		errs = append(errs, FieldError{Field: field("cost_price"), Message: "Invalid cost price"})
	}

	if name, ok := item["product_name"].(string); !ok || len(strings.TrimSpace(name)) < 1 {
		errs = append(errs, FieldError{Field: field("product_name"), Message: "Product name is required"})
	} else if len([]rune(name)) > maxItemName {
		errs = append(errs, FieldError{Field: field("product_name"), Message: "Product name is too long (max 255 characters)"})
	}

	return errs
}

// sanitizeString trims, truncates to maxLen runes and strips angle brackets
// as a minimal injection guard for free-text fields.
func sanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
	}
	return strings.NewReplacer("<", "", ">", "").Replace(s)
}

// normalizePhone expects an already whitespace-stripped phone that matched
// the +?998XXXXXXXXX pattern and enforces the leading plus.
func normalizePhone(clean string) string {
	if strings.HasPrefix(clean, "+") {
		return clean
	}
	return "+" + clean
}

func validUUID(s string) bool {
	return uuidRegexp.MatchString(strings.ToLower(s))
}
