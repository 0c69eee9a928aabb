package registry

import "fmt"

// Kind identifies one registered operation. The set is closed: every Kind
// has a descriptor, a parameter type and a handler, checked by New.
type Kind int

const (
	KindGetSellerProducts Kind = iota + 1
	KindGetProductDetails
	KindCreateProduct
	KindUpdateProduct
	KindDeleteProduct
	KindSearchProducts
	KindUpdateProductQuantity
	KindGetUserOrders
	KindGetOrderDetails
	KindPlaceOrder
	KindUpdateOrderStatus
)

// allKinds lists every Kind in catalog order.
var allKinds = []Kind{
	KindGetSellerProducts,
	KindGetProductDetails,
	KindCreateProduct,
	KindUpdateProduct,
	KindDeleteProduct,
	KindSearchProducts,
	KindUpdateProductQuantity,
	KindGetUserOrders,
	KindGetOrderDetails,
	KindPlaceOrder,
	KindUpdateOrderStatus,
}

// AllKinds returns every operation kind in catalog order.
func AllKinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// String returns the operation name used on the wire and in prompts.
func (k Kind) String() string {
	switch k {
	case KindGetSellerProducts:
		return "get_seller_products"
	case KindGetProductDetails:
		return "get_product_details"
	case KindCreateProduct:
		return "create_product"
	case KindUpdateProduct:
		return "update_product"
	case KindDeleteProduct:
		return "delete_product"
	case KindSearchProducts:
		return "search_products"
	case KindUpdateProductQuantity:
		return "update_product_quantity"
	case KindGetUserOrders:
		return "get_user_orders"
	case KindGetOrderDetails:
		return "get_order_details"
	case KindPlaceOrder:
		return "place_order"
	case KindUpdateOrderStatus:
		return "update_order_status"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps an operation name to its Kind.
func ParseKind(name string) (Kind, bool) {
	for _, k := range allKinds {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}
