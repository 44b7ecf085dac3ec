package actions

import (
	"context"

	"github.com/shopopti/extension-gateway/internal/gateway"
	"github.com/shopopti/extension-gateway/internal/store"
)

const (
	maxTitleBytes       = 500
	maxDescriptionBytes = 10000
	maxImages           = 20
	maxBulkProducts     = 50
)

// productPayload mirrors what the extension scrapes off a product page.
type productPayload struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	CostPrice   float64  `json:"costPrice"`
	Currency    string   `json:"currency"`
	SKU         string   `json:"sku"`
	Category    string   `json:"category"`
	Images      []string `json:"images"`
	Platform    string   `json:"platform"`
}

func (p productPayload) toProduct(userID string) store.Product {
	cost := p.CostPrice
	if cost == 0 {
		cost = p.Price
	}
	images := p.Images
	if len(images) > maxImages {
		images = images[:maxImages]
	}
	return store.Product{
		UserID:         userID,
		Title:          truncate(p.Title, maxTitleBytes),
		Description:    truncate(p.Description, maxDescriptionBytes),
		Price:          p.Price,
		CostPrice:      cost,
		Currency:       p.Currency,
		SKU:            p.SKU,
		Category:       p.Category,
		ImageURLs:      images,
		SourceURL:      p.URL,
		SourcePlatform: p.Platform,
	}
}

// importProduct stores a single scraped product as a draft.
func (s *Service) importProduct(ctx context.Context, req gateway.HandlerRequest) (any, error) {
	var p struct {
		Product productPayload `json:"product"`
	}
	if err := decodePayload(importPayloadSchema, req.Payload, &p); err != nil {
		return nil, err
	}

	product, err := s.store.InsertProduct(ctx, p.Product.toProduct(req.Caller.UserID))
	if err != nil {
		return nil, gateway.Errorf(gateway.CodeHandlerError, "import failed: %v", err)
	}
	s.log.Info("product imported",
		"userId", req.Caller.UserID, "productId", product.ID, "platform", product.SourcePlatform)

	return map[string]any{
		"id":     product.ID,
		"title":  product.Title,
		"price":  product.Price,
		"status": product.Status,
	}, nil
}

// importBulk stores up to maxBulkProducts scraped products in one call.
// Partial failure is reported per item, not as an all-or-nothing error.
func (s *Service) importBulk(ctx context.Context, req gateway.HandlerRequest) (any, error) {
	var p struct {
		Products []productPayload `json:"products"`
	}
	if err := decodePayload(bulkImportPayloadSchema, req.Payload, &p); err != nil {
		return nil, err
	}
	if len(p.Products) == 0 {
		return nil, gateway.NewError(gateway.CodeInvalidPayload, "products must not be empty")
	}
	if len(p.Products) > maxBulkProducts {
		return nil, gateway.Errorf(gateway.CodeInvalidPayload, "at most %d products per bulk import", maxBulkProducts)
	}

	imported := make([]map[string]any, 0, len(p.Products))
	failed := 0
	for _, item := range p.Products {
		product, err := s.store.InsertProduct(ctx, item.toProduct(req.Caller.UserID))
		if err != nil {
			s.log.Error("bulk import item failed",
				"userId", req.Caller.UserID, "sourceUrl", item.URL, "error", err)
			failed++
			continue
		}
		imported = append(imported, map[string]any{
			"id":    product.ID,
			"title": product.Title,
		})
	}

	return map[string]any{
		"imported": len(imported),
		"failed":   failed,
		"products": imported,
	}, nil
}
