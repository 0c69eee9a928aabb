// Package catalog implements the product and order operations on top of the
// document store.
package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wkc-labs/wkc-server/pkg/docstore"
)

// Paging bounds for seller product listings.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// DefaultUserType is applied to products created without a userType.
const DefaultUserType = "seller"

// productTimeLayout renders product timestamps as ISO-8601 with a Z suffix.
const productTimeLayout = "2006-01-02T15:04:05.000000Z"

// Product is a seller-owned catalog item.
type Product struct {
	ID          string  `json:"id"`
	Category    string  `json:"category"`
	CompanyName string  `json:"companyName"`
	Description string  `json:"description"`
	ImageURL    string  `json:"imageUrl"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	SKU         string  `json:"sku"`
	UserID      string  `json:"userId"`
	UserType    string  `json:"userType"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

// ProductInput carries the fields of a new product. Nil Price or Quantity
// means the field was not supplied.
type ProductInput struct {
	Category    string   `json:"category"`
	CompanyName string   `json:"companyName"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl"`
	Name        string   `json:"name"`
	Price       *float64 `json:"price"`
	Quantity    *int     `json:"quantity"`
	SKU         string   `json:"sku"`
	UserID      string   `json:"userId"`
	UserType    string   `json:"userType,omitempty"`
}

// ProductUpdate is a partial product update; nil fields are left untouched.
type ProductUpdate struct {
	Category    *string  `json:"category,omitempty"`
	CompanyName *string  `json:"companyName,omitempty"`
	Description *string  `json:"description,omitempty"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
	Name        *string  `json:"name,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Quantity    *int     `json:"quantity,omitempty"`
	SKU         *string  `json:"sku,omitempty"`
}

// ProductPage is one page of a seller's products.
type ProductPage struct {
	Products    []Product `json:"products"`
	Count       int       `json:"count"`
	TotalCount  int       `json:"total_count"`
	TotalPages  int       `json:"total_pages"`
	CurrentPage int       `json:"current_page"`
	Limit       int       `json:"limit"`
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
	StatusModified   OrderStatus = "modified"
)

// ParseOrderStatus validates s against the known statuses.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled, StatusModified:
		return st, nil
	}
	return "", invalidf("Invalid status %q: must be one of pending, processing, completed, cancelled, modified", s)
}

// Order is a customer order captured from chat.
type Order struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	ChatMessage  string         `json:"chat_message"`
	OrderDetails map[string]any `json:"order_details"`
	Status       OrderStatus    `json:"status"`
	AIProcessed  bool           `json:"ai_processed"`
	AIAnalysis   string         `json:"ai_analysis,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewOrder carries the fields of an order to persist.
type NewOrder struct {
	UserID       string
	ChatMessage  string
	OrderDetails map[string]any
	AIProcessed  bool
	AIAnalysis   string
}

// decodeDocument converts a stored document into a typed value. Field maps
// from different backends carry different Go types (time.Time vs string,
// int vs float64); a JSON round trip normalizes both.
func decodeDocument(doc *docstore.Document, v any) error {
	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return nil
}
