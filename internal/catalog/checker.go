package catalog

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
)

// IntegrityReason classifies why a submission failed the catalog check.
type IntegrityReason string

const (
	ReasonProductNotFound IntegrityReason = "product_not_found"
	ReasonProductInactive IntegrityReason = "product_inactive"
	ReasonVariantNotFound IntegrityReason = "variant_not_found"
	ReasonVariantInactive IntegrityReason = "variant_inactive"
	ReasonVariantMismatch IntegrityReason = "variant_mismatch"
)

// IntegrityError is terminal for a submission: no partial order is created.
// The message is safe to return to the client.
type IntegrityError struct {
	Reason  IntegrityReason
	Message string
}

func (e *IntegrityError) Error() string {
	return e.Message
}

// ItemRef is one order line's catalog reference.
type ItemRef struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
}

// Pricing carries the authoritative prices resolved for one item:
// the variant override when set, otherwise the product price.
type Pricing struct {
	UnitPrice int64
	CostPrice int64
}

// Checker cross-references order items against the catalog.
type Checker struct {
	repo Repository
}

func NewChecker(repo Repository) *Checker {
	return &Checker{repo: repo}
}

// Check verifies that every referenced product and variant exists, is active,
// and that each variant belongs to the product declared on its item. Products
// and variants are each fetched in a single batch query. The first violation
// aborts the whole submission. On success it returns the authoritative
// pricing for each item, index-aligned with refs.
func (c *Checker) Check(ctx context.Context, refs []ItemRef) ([]Pricing, error) {
	productIDs := make([]uuid.UUID, 0, len(refs))
	seen := make(map[uuid.UUID]struct{}, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref.ProductID]; ok {
			continue
		}
		seen[ref.ProductID] = struct{}{}
		productIDs = append(productIDs, ref.ProductID)
	}

	products, err := c.repo.ProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("checker: failed to fetch products: %w", err)
	}

	for _, ref := range refs {
		product, ok := products[ref.ProductID]
		if !ok {
			return nil, &IntegrityError{
				Reason:  ReasonProductNotFound,
				Message: fmt.Sprintf("Product not found: %s", ref.ProductID),
			}
		}
		if !product.IsActive {
			return nil, &IntegrityError{
				Reason:  ReasonProductInactive,
				Message: fmt.Sprintf("Product is not available: %s", product.Name),
			}
		}
	}

	var variantIDs []uuid.UUID
	for _, ref := range refs {
		if ref.VariantID != nil {
			variantIDs = append(variantIDs, *ref.VariantID)
		}
	}

	variants := make(map[uuid.UUID]Variant)
	if len(variantIDs) > 0 {
		variants, err = c.repo.VariantsByIDs(ctx, variantIDs)
		if err != nil {
			return nil, fmt.Errorf("checker: failed to fetch product variants: %w", err)
		}
	}

	pricing := make([]Pricing, len(refs))
	for i, ref := range refs {
		product := products[ref.ProductID]
		pricing[i] = Pricing{UnitPrice: product.Price, CostPrice: product.CostPrice}

		if ref.VariantID == nil {
			continue
		}

		variant, ok := variants[*ref.VariantID]
		if !ok {
			return nil, &IntegrityError{
				Reason:  ReasonVariantNotFound,
				Message: fmt.Sprintf("Variant not found: %s", *ref.VariantID),
			}
		}
		if !variant.IsActive {
			return nil, &IntegrityError{
				Reason:  ReasonVariantInactive,
				Message: "Product variant is not available",
			}
		}
		if variant.ProductID != ref.ProductID {
			return nil, &IntegrityError{
				Reason:  ReasonVariantMismatch,
				Message: "Variant does not belong to product",
			}
		}

		if variant.PriceOverride != nil {
			pricing[i].UnitPrice = *variant.PriceOverride
		}
		if variant.CostPriceOverride != nil {
			pricing[i].CostPrice = *variant.CostPriceOverride
		}
	}

	return pricing, nil
}
