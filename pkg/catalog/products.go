package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wkc-labs/wkc-server/pkg/docstore"
	"github.com/wkc-labs/wkc-server/pkg/events"
)

const productsLogPrefix = "catalog:products"

// CreateProduct validates in and stores it, returning the new product id.
// Required fields are checked in a fixed order and nothing reaches the store
// until every check passes.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (string, error) {
	if err := validateProductInput(in); err != nil {
		return "", err
	}

	userType := in.UserType
	if userType == "" {
		userType = DefaultUserType
	}
	ts := s.now().UTC().Format(productTimeLayout)
	fields := map[string]any{
		"category":    in.Category,
		"companyName": in.CompanyName,
		"description": in.Description,
		"imageUrl":    in.ImageURL,
		"name":        strings.TrimSpace(in.Name),
		"price":       *in.Price,
		"quantity":    *in.Quantity,
		"sku":         in.SKU,
		"userId":      in.UserID,
		"userType":    userType,
		"createdAt":   ts,
		"updatedAt":   ts,
	}

	id, err := s.store.Create(ctx, docstore.CollectionProducts, fields)
	if err != nil {
		return "", internal("Failed to create product", err)
	}
	log.Info().Msgf("%s - Created product %s for seller %s", productsLogPrefix, id, in.UserID)
	s.publish(ctx, &events.ChangeEvent{Collection: docstore.CollectionProducts, Action: events.ActionCreated, ID: id, UserID: in.UserID})
	return id, nil
}

func validateProductInput(in ProductInput) error {
	required := []struct {
		name    string
		present bool
	}{
		{"category", in.Category != ""},
		{"companyName", in.CompanyName != ""},
		{"description", in.Description != ""},
		{"imageUrl", in.ImageURL != ""},
		{"name", in.Name != ""},
		{"price", in.Price != nil},
		{"quantity", in.Quantity != nil},
		{"sku", in.SKU != ""},
		{"userId", in.UserID != ""},
	}
	for _, f := range required {
		if !f.present {
			return invalidf("Missing required field: %s", f.name)
		}
	}
	if strings.TrimSpace(in.Name) == "" {
		return invalidf("Product name cannot be empty")
	}
	if *in.Price <= 0 {
		return invalidf("Price must be greater than 0")
	}
	if *in.Quantity < 0 {
		return invalidf("Quantity cannot be negative")
	}
	return nil
}

// GetProduct loads a product by id.
func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalidf("Product ID is required")
	}
	doc, err := s.store.Get(ctx, docstore.CollectionProducts, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, NewError(CodeNotFound, "Product not found")
	}
	if err != nil {
		return nil, internal("Failed to get product", err)
	}
	return toProduct(doc)
}

// GetSellerProducts returns one page of a seller's products.
// total_pages is ceil(total/limit), 0 when the seller has no products.
func (s *Service) GetSellerProducts(ctx context.Context, userID string, page, limit int) (*ProductPage, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalidf("User ID is required")
	}
	if page < 1 {
		return nil, invalidf("Page must be at least 1")
	}
	if limit < 1 || limit > MaxLimit {
		return nil, invalidf("Limit must be between 1 and %d", MaxLimit)
	}

	total, err := s.store.CountByEquality(ctx, docstore.CollectionProducts, "userId", userID)
	if err != nil {
		return nil, internal("Failed to count products", err)
	}
	docs, err := s.store.QueryByEquality(ctx, docstore.CollectionProducts, "userId", userID, limit, (page-1)*limit)
	if err != nil {
		return nil, internal("Failed to list products", err)
	}
	products, err := toProducts(docs)
	if err != nil {
		return nil, err
	}

	return &ProductPage{
		Products:    products,
		Count:       len(products),
		TotalCount:  total,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
		Limit:       limit,
	}, nil
}

// UpdateProduct applies the non-nil fields of upd and returns the stored result.
func (s *Service) UpdateProduct(ctx context.Context, id string, upd ProductUpdate) (*Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalidf("Product ID is required")
	}
	fields, err := upd.fields()
	if err != nil {
		return nil, err
	}
	changed := sortedKeys(fields)
	fields["updatedAt"] = s.now().UTC().Format(productTimeLayout)

	err = s.store.Update(ctx, docstore.CollectionProducts, id, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, NewError(CodeNotFound, "Product not found")
	}
	if err != nil {
		return nil, internal("Failed to update product", err)
	}
	s.publish(ctx, &events.ChangeEvent{Collection: docstore.CollectionProducts, Action: events.ActionUpdated, ID: id, ChangedFields: changed})
	return s.GetProduct(ctx, id)
}

func (u ProductUpdate) fields() (map[string]any, error) {
	fields := map[string]any{}
	setString := func(key string, v *string) {
		if v != nil {
			fields[key] = *v
		}
	}
	setString("category", u.Category)
	setString("companyName", u.CompanyName)
	setString("description", u.Description)
	setString("imageUrl", u.ImageURL)
	setString("sku", u.SKU)
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, invalidf("Product name cannot be empty")
		}
		fields["name"] = name
	}
	if u.Price != nil {
		if *u.Price <= 0 {
			return nil, invalidf("Price must be greater than 0")
		}
		fields["price"] = *u.Price
	}
	if u.Quantity != nil {
		if *u.Quantity < 0 {
			return nil, invalidf("Quantity cannot be negative")
		}
		fields["quantity"] = *u.Quantity
	}
	if len(fields) == 0 {
		return nil, invalidf("No valid update data provided")
	}
	return fields, nil
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalidf("Product ID is required")
	}
	err := s.store.Delete(ctx, docstore.CollectionProducts, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return NewError(CodeNotFound, "Product not found")
	}
	if err != nil {
		return internal("Failed to delete product", err)
	}
	log.Info().Msgf("%s - Deleted product %s", productsLogPrefix, id)
	s.publish(ctx, &events.ChangeEvent{Collection: docstore.CollectionProducts, Action: events.ActionDeleted, ID: id})
	return nil
}

// SearchProducts filters a seller's products by a case-insensitive substring
// of name, description or sku, and by exact category. Empty filters match all.
func (s *Service) SearchProducts(ctx context.Context, userID, term, category string) ([]Product, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalidf("User ID is required")
	}
	docs, err := s.store.QueryByEquality(ctx, docstore.CollectionProducts, "userId", userID, 0, 0)
	if err != nil {
		return nil, internal("Failed to search products", err)
	}
	products, err := toProducts(docs)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(term)
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) &&
			!strings.Contains(strings.ToLower(p.SKU), needle) {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// UpdateProductQuantity overwrites the stock level of a product.
// Concurrent writers race; the last write wins.
func (s *Service) UpdateProductQuantity(ctx context.Context, id string, quantity int) error {
	if strings.TrimSpace(id) == "" {
		return invalidf("Product ID is required")
	}
	if quantity < 0 {
		return invalidf("Quantity cannot be negative")
	}
	err := s.store.Update(ctx, docstore.CollectionProducts, id, map[string]any{
		"quantity":  quantity,
		"updatedAt": s.now().UTC().Format(productTimeLayout),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return NewError(CodeNotFound, "Product not found")
	}
	if err != nil {
		return internal("Failed to update product quantity", err)
	}
	s.publish(ctx, &events.ChangeEvent{Collection: docstore.CollectionProducts, Action: events.ActionUpdated, ID: id, ChangedFields: []string{"quantity"}})
	return nil
}

func toProduct(doc *docstore.Document) (*Product, error) {
	var p Product
	if err := decodeDocument(doc, &p); err != nil {
		return nil, internal("Failed to read product", err)
	}
	p.ID = doc.ID
	return &p, nil
}

func toProducts(docs []docstore.Document) ([]Product, error) {
	out := make([]Product, 0, len(docs))
	for i := range docs {
		p, err := toProduct(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
