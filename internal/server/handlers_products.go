package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wkc-labs/wkc-server/pkg/catalog"
)

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if !decodeBody(w, r, &in) {
		return
	}
	id, err := s.catalog.CreateProduct(r.Context(), in)
	if err != nil {
		respondCatalogError(w, "Failed to create product", err)
		return
	}
	product, err := s.catalog.GetProduct(r.Context(), id)
	if err != nil {
		respondCatalogError(w, "Failed to create product", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"product_id": id,
		"message":    "Product created successfully",
		"data":       product,
	})
}

func (s *Server) handleSellerProducts(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(w, r, "page", catalog.DefaultPage)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", catalog.DefaultLimit)
	if !ok {
		return
	}
	result, err := s.catalog.GetSellerProducts(r.Context(), chi.URLParam(r, "userID"), page, limit)
	if err != nil {
		respondCatalogError(w, "Failed to fetch seller products", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"products":     result.Products,
		"count":        result.Count,
		"total_count":  result.TotalCount,
		"total_pages":  result.TotalPages,
		"current_page": result.CurrentPage,
	})
}

func (s *Server) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("search_term")
	if strings.TrimSpace(term) == "" {
		respondError(w, http.StatusBadRequest, "Search term is required")
		return
	}
	category := r.URL.Query().Get("category")
	products, err := s.catalog.SearchProducts(r.Context(), chi.URLParam(r, "userID"), term, category)
	if err != nil {
		respondCatalogError(w, "Failed to search products", err)
		return
	}
	var categoryValue any
	if category != "" {
		categoryValue = category
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"products":    products,
		"count":       len(products),
		"search_term": term,
		"category":    categoryValue,
	})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.catalog.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		respondCatalogError(w, "Failed to fetch product", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"product": product,
		"message": "Product retrieved successfully",
	})
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")
	var upd catalog.ProductUpdate
	if !decodeBody(w, r, &upd) {
		return
	}
	product, err := s.catalog.UpdateProduct(r.Context(), id, upd)
	if err != nil {
		respondCatalogError(w, "Failed to update product", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"product_id": id,
		"message":    "Product updated successfully",
		"data":       product,
	})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")
	if err := s.catalog.DeleteProduct(r.Context(), id); err != nil {
		respondCatalogError(w, "Failed to delete product", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Product %s deleted successfully", id),
	})
}

func (s *Server) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")
	raw := r.URL.Query().Get("quantity")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "Quantity is required")
		return
	}
	quantity, err := strconv.Atoi(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Quantity must be an integer, got %q", raw))
		return
	}
	if err := s.catalog.UpdateProductQuantity(r.Context(), id, quantity); err != nil {
		respondCatalogError(w, "Failed to update product quantity", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    fmt.Sprintf("Product quantity updated to %d", quantity),
		"product_id": id,
		"quantity":   quantity,
	})
}

// queryInt reads an optional integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("%s must be an integer, got %q", name, raw))
		return 0, false
	}
	return v, true
}
