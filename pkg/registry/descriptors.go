package registry

// ParamType is the JSON type of an operation parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
)

// ParamSpec describes one operation parameter.
type ParamSpec struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
	Default     any       `json:"default,omitempty"`
}

// Descriptor is the model-facing description of an operation.
type Descriptor struct {
	Kind        Kind        `json:"-"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []ParamSpec `json:"parameters"`
}

func req(name string, t ParamType, desc string) ParamSpec {
	return ParamSpec{Name: name, Type: t, Description: desc, Required: true}
}

func opt(name string, t ParamType, desc string) ParamSpec {
	return ParamSpec{Name: name, Type: t, Description: desc}
}

func withDefault(p ParamSpec, v any) ParamSpec {
	p.Default = v
	return p
}

// describe returns the descriptor for k. ok is false for a Kind without one,
// which New reports as a startup error.
func describe(k Kind) (Descriptor, bool) {
	d := Descriptor{Kind: k, Name: k.String()}
	switch k {
	case KindGetSellerProducts:
		d.Description = "Get all products for a specific seller with pagination"
		d.Parameters = []ParamSpec{
			req("user_id", TypeString, "Seller's user ID"),
			withDefault(opt("page", TypeInteger, "Page number"), 1),
			withDefault(opt("limit", TypeInteger, "Number of products per page (1-100)"), 10),
		}
	case KindGetProductDetails:
		d.Description = "Get detailed information about a specific product"
		d.Parameters = []ParamSpec{req("product_id", TypeString, "Product ID to retrieve")}
	case KindCreateProduct:
		d.Description = "Create a new product for a seller"
		d.Parameters = []ParamSpec{
			req("category", TypeString, "Product category (e.g., Electronics, Clothing)"),
			req("companyName", TypeString, "Company name"),
			req("description", TypeString, "Product description"),
			req("imageUrl", TypeString, "Product image URL"),
			req("name", TypeString, "Product name"),
			req("price", TypeNumber, "Product price, greater than 0"),
			req("quantity", TypeInteger, "Available quantity, 0 or more"),
			req("sku", TypeString, "Product SKU"),
			req("userId", TypeString, "Seller's user ID"),
			withDefault(opt("userType", TypeString, "User type"), "seller"),
		}
	case KindUpdateProduct:
		d.Description = "Update an existing product's information"
		d.Parameters = []ParamSpec{
			req("product_id", TypeString, "Product ID to update"),
			opt("name", TypeString, "New product name"),
			opt("price", TypeNumber, "New price"),
			opt("quantity", TypeInteger, "New quantity"),
			opt("description", TypeString, "New description"),
			opt("category", TypeString, "New category"),
			opt("imageUrl", TypeString, "New image URL"),
			opt("companyName", TypeString, "New company name"),
			opt("sku", TypeString, "New SKU"),
		}
	case KindDeleteProduct:
		d.Description = "Delete a product"
		d.Parameters = []ParamSpec{req("product_id", TypeString, "Product ID to delete")}
	case KindSearchProducts:
		d.Description = "Search products for a seller by name, description, or SKU"
		d.Parameters = []ParamSpec{
			req("user_id", TypeString, "Seller's user ID"),
			opt("search_term", TypeString, "Search term"),
			opt("category", TypeString, "Category filter"),
		}
	case KindUpdateProductQuantity:
		d.Description = "Update the quantity of a specific product"
		d.Parameters = []ParamSpec{
			req("product_id", TypeString, "Product ID"),
			req("quantity", TypeInteger, "New quantity"),
		}
	case KindGetUserOrders:
		d.Description = "Get all orders for a specific user"
		d.Parameters = []ParamSpec{req("user_id", TypeString, "User's user ID")}
	case KindGetOrderDetails:
		d.Description = "Get detailed information about a specific order"
		d.Parameters = []ParamSpec{req("order_id", TypeString, "Order ID to retrieve")}
	case KindPlaceOrder:
		d.Description = "Place a new order via chat message"
		d.Parameters = []ParamSpec{
			req("user_id", TypeString, "Buyer's user ID"),
			req("chat_message", TypeString, "Order message"),
			opt("order_details", TypeObject, "Additional order details"),
			withDefault(opt("use_ai_processing", TypeBoolean, "Whether to use AI processing"), true),
		}
	case KindUpdateOrderStatus:
		d.Description = "Update the status of an order"
		d.Parameters = []ParamSpec{
			req("order_id", TypeString, "Order ID"),
			req("status", TypeString, "New status (pending, processing, completed, cancelled, modified)"),
		}
	default:
		return Descriptor{}, false
	}
	return d, true
}

// schema renders the JSON Schema used to type-check parameters. Required
// fields are left out; each operation reports its own missing fields.
func (d Descriptor) schema() map[string]any {
	props := make(map[string]any, len(d.Parameters))
	for _, p := range d.Parameters {
		props[p.Name] = map[string]any{"type": string(p.Type)}
	}
	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
	}
}
