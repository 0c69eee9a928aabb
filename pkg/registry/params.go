package registry

import (
	"fmt"
	"reflect"
	"strings"
)

// Typed parameters, one struct per operation. Fields tagged required:"true"
// must match the descriptor's required parameters exactly.

type SellerProductsParams struct {
	UserID string `json:"user_id" required:"true"`
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
}

type ProductIDParams struct {
	ProductID string `json:"product_id" required:"true"`
}

type CreateProductParams struct {
	Category    string   `json:"category" required:"true"`
	CompanyName string   `json:"companyName" required:"true"`
	Description string   `json:"description" required:"true"`
	ImageURL    string   `json:"imageUrl" required:"true"`
	Name        string   `json:"name" required:"true"`
	Price       *float64 `json:"price" required:"true"`
	Quantity    *int     `json:"quantity" required:"true"`
	SKU         string   `json:"sku" required:"true"`
	UserID      string   `json:"userId" required:"true"`
	UserType    string   `json:"userType"`
}

type UpdateProductParams struct {
	ProductID   string   `json:"product_id" required:"true"`
	Name        *string  `json:"name"`
	Price       *float64 `json:"price"`
	Quantity    *int     `json:"quantity"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	ImageURL    *string  `json:"imageUrl"`
	CompanyName *string  `json:"companyName"`
	SKU         *string  `json:"sku"`
}

type SearchProductsParams struct {
	UserID     string `json:"user_id" required:"true"`
	SearchTerm string `json:"search_term"`
	Category   string `json:"category"`
}

type UpdateQuantityParams struct {
	ProductID string `json:"product_id" required:"true"`
	Quantity  *int   `json:"quantity" required:"true"`
}

type UserOrdersParams struct {
	UserID string `json:"user_id" required:"true"`
}

type OrderIDParams struct {
	OrderID string `json:"order_id" required:"true"`
}

type PlaceOrderParams struct {
	UserID          string         `json:"user_id" required:"true"`
	ChatMessage     string         `json:"chat_message" required:"true"`
	OrderDetails    map[string]any `json:"order_details"`
	UseAIProcessing bool           `json:"use_ai_processing"`
}

type UpdateOrderStatusParams struct {
	OrderID string `json:"order_id" required:"true"`
	Status  string `json:"status" required:"true"`
}

// newParams returns a pointer to the zero parameter struct for k.
func newParams(k Kind) (any, bool) {
	switch k {
	case KindGetSellerProducts:
		return &SellerProductsParams{}, true
	case KindGetProductDetails, KindDeleteProduct:
		return &ProductIDParams{}, true
	case KindCreateProduct:
		return &CreateProductParams{}, true
	case KindUpdateProduct:
		return &UpdateProductParams{}, true
	case KindSearchProducts:
		return &SearchProductsParams{}, true
	case KindUpdateProductQuantity:
		return &UpdateQuantityParams{}, true
	case KindGetUserOrders:
		return &UserOrdersParams{}, true
	case KindGetOrderDetails:
		return &OrderIDParams{}, true
	case KindPlaceOrder:
		return &PlaceOrderParams{}, true
	case KindUpdateOrderStatus:
		return &UpdateOrderStatusParams{}, true
	}
	return nil, false
}

type paramField struct {
	name     string
	required bool
	index    int
}

// paramFields lists the JSON-tagged fields of a parameter struct in
// declaration order.
func paramFields(t reflect.Type) []paramField {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := make([]paramField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		out = append(out, paramField{name: name, required: f.Tag.Get("required") == "true", index: i})
	}
	return out
}

// missingRequired returns the first required field of p (a struct pointer)
// holding its zero value, or "".
func missingRequired(p any) string {
	v := reflect.ValueOf(p).Elem()
	for _, f := range paramFields(v.Type()) {
		if !f.required {
			continue
		}
		fv := v.Field(f.index)
		if fv.IsZero() {
			return f.name
		}
		if fv.Kind() == reflect.String && strings.TrimSpace(fv.String()) == "" {
			return f.name
		}
	}
	return ""
}

// checkConsistency verifies that d and the parameter struct for d.Kind agree
// on parameter names and on which are required.
func checkConsistency(d Descriptor, params any) error {
	fields := paramFields(reflect.TypeOf(params))
	structRequired := map[string]bool{}
	structNames := map[string]bool{}
	for _, f := range fields {
		structNames[f.name] = true
		structRequired[f.name] = f.required
	}

	for _, p := range d.Parameters {
		if !structNames[p.Name] {
			return fmt.Errorf("%s: parameter %q has no field in %T", d.Name, p.Name, params)
		}
		if structRequired[p.Name] != p.Required {
			return fmt.Errorf("%s: parameter %q required=%t in descriptor but %t in %T",
				d.Name, p.Name, p.Required, structRequired[p.Name], params)
		}
	}
	if len(fields) != len(d.Parameters) {
		return fmt.Errorf("%s: descriptor lists %d parameters, %T has %d",
			d.Name, len(d.Parameters), params, len(fields))
	}
	return nil
}
