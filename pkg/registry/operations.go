package registry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/wkc-labs/wkc-server/pkg/catalog"
	"github.com/wkc-labs/wkc-server/pkg/intake"
)

const opsLogPrefix = "registry:operations"

func succeeded(data any, format string, args ...any) *OperationResult {
	return &OperationResult{Success: true, Data: data, Message: fmt.Sprintf(format, args...)}
}

func failed(op string, err error) *OperationResult {
	code := catalog.ErrorCode(err)
	if code == catalog.CodeInternal {
		log.Error().Err(err).Msgf("%s - %s failed", opsLogPrefix, op)
	}
	return &OperationResult{Success: false, Error: catalog.ErrorMessage(err), Code: code}
}

func (r *Registry) getSellerProducts(ctx context.Context, p SellerProductsParams) *OperationResult {
	page, err := r.catalog.GetSellerProducts(ctx, p.UserID, p.Page, p.Limit)
	if err != nil {
		return failed("get_seller_products", err)
	}
	return succeeded(page, "Retrieved %d products for seller", page.Count)
}

func (r *Registry) getProductDetails(ctx context.Context, p ProductIDParams) *OperationResult {
	product, err := r.catalog.GetProduct(ctx, p.ProductID)
	if err != nil {
		return failed("get_product_details", err)
	}
	return succeeded(product, "Retrieved details for product %s", p.ProductID)
}

func (r *Registry) createProduct(ctx context.Context, p CreateProductParams) *OperationResult {
	id, err := r.catalog.CreateProduct(ctx, catalog.ProductInput{
		Category:    p.Category,
		CompanyName: p.CompanyName,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Name:        p.Name,
		Price:       p.Price,
		Quantity:    p.Quantity,
		SKU:         p.SKU,
		UserID:      p.UserID,
		UserType:    p.UserType,
	})
	if err != nil {
		return failed("create_product", err)
	}
	return succeeded(map[string]any{"product_id": id}, "Product '%s' created successfully", p.Name)
}

func (r *Registry) updateProduct(ctx context.Context, p UpdateProductParams) *OperationResult {
	product, err := r.catalog.UpdateProduct(ctx, p.ProductID, catalog.ProductUpdate{
		Category:    p.Category,
		CompanyName: p.CompanyName,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Name:        p.Name,
		Price:       p.Price,
		Quantity:    p.Quantity,
		SKU:         p.SKU,
	})
	if err != nil {
		return failed("update_product", err)
	}
	return succeeded(map[string]any{"product_id": p.ProductID, "product": product},
		"Product %s updated successfully", p.ProductID)
}

func (r *Registry) deleteProduct(ctx context.Context, p ProductIDParams) *OperationResult {
	if err := r.catalog.DeleteProduct(ctx, p.ProductID); err != nil {
		return failed("delete_product", err)
	}
	return succeeded(map[string]any{"product_id": p.ProductID}, "Product %s deleted successfully", p.ProductID)
}

func (r *Registry) searchProducts(ctx context.Context, p SearchProductsParams) *OperationResult {
	products, err := r.catalog.SearchProducts(ctx, p.UserID, p.SearchTerm, p.Category)
	if err != nil {
		return failed("search_products", err)
	}
	return succeeded(map[string]any{"products": products, "count": len(products)},
		"Found %d products matching '%s'", len(products), p.SearchTerm)
}

func (r *Registry) updateProductQuantity(ctx context.Context, p UpdateQuantityParams) *OperationResult {
	if err := r.catalog.UpdateProductQuantity(ctx, p.ProductID, *p.Quantity); err != nil {
		return failed("update_product_quantity", err)
	}
	return succeeded(map[string]any{"product_id": p.ProductID, "quantity": *p.Quantity},
		"Product quantity updated to %d", *p.Quantity)
}

func (r *Registry) getUserOrders(ctx context.Context, p UserOrdersParams) *OperationResult {
	orders, err := r.catalog.GetUserOrders(ctx, p.UserID)
	if err != nil {
		return failed("get_user_orders", err)
	}
	return succeeded(map[string]any{"orders": orders, "count": len(orders)}, "Retrieved %d orders for user", len(orders))
}

func (r *Registry) getOrderDetails(ctx context.Context, p OrderIDParams) *OperationResult {
	order, err := r.catalog.GetOrder(ctx, p.OrderID)
	if err != nil {
		return failed("get_order_details", err)
	}
	return succeeded(order, "Retrieved details for order %s", p.OrderID)
}

func (r *Registry) placeOrder(ctx context.Context, p PlaceOrderParams) *OperationResult {
	res, err := r.placer.PlaceOrder(ctx, intake.PlaceOrderRequest{
		UserID:          p.UserID,
		ChatMessage:     p.ChatMessage,
		OrderDetails:    p.OrderDetails,
		UseAIProcessing: p.UseAIProcessing,
	})
	if err != nil {
		return failed("place_order", err)
	}
	return succeeded(res, "Order placed successfully with ID: %s", res.OrderID)
}

func (r *Registry) updateOrderStatus(ctx context.Context, p UpdateOrderStatusParams) *OperationResult {
	if err := r.catalog.UpdateOrderStatus(ctx, p.OrderID, p.Status); err != nil {
		return failed("update_order_status", err)
	}
	return succeeded(map[string]any{"order_id": p.OrderID, "status": p.Status}, "Order status updated to %s", p.Status)
}
