package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wkc-labs/wkc-server/pkg/intake"
)

// placeOrderBody defaults use_ai_processing to true when omitted.
type placeOrderBody struct {
	UserID          string         `json:"user_id"`
	ChatMessage     string         `json:"chat_message"`
	OrderDetails    map[string]any `json:"order_details"`
	UseAIProcessing *bool          `json:"use_ai_processing"`
}

type chatBody struct {
	UserID  string         `json:"user_id"`
	Message string         `json:"message"`
	Context map[string]any `json:"context"`
}

type modifyBody struct {
	UserID              string `json:"user_id"`
	OrderID             string `json:"order_id"`
	ModificationMessage string `json:"modification_message"`
}

type statusBody struct {
	Status string `json:"status"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var body placeOrderBody
	if !decodeBody(w, r, &body) {
		return
	}
	useAI := true
	if body.UseAIProcessing != nil {
		useAI = *body.UseAIProcessing
	}
	res, err := s.orders.PlaceOrder(r.Context(), intake.PlaceOrderRequest{
		UserID:          body.UserID,
		ChatMessage:     body.ChatMessage,
		OrderDetails:    body.OrderDetails,
		UseAIProcessing: useAI,
	})
	if err != nil {
		respondCatalogError(w, "Failed to place order", err)
		return
	}
	var analysis, confirmation any
	if res.AIAnalysis != "" {
		analysis = res.AIAnalysis
	}
	if res.ConfirmationMessage != "" {
		confirmation = res.ConfirmationMessage
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"order_id":             res.OrderID,
		"message":              res.Message,
		"data":                 res.Data,
		"ai_processed":         res.AIProcessed,
		"ai_analysis":          analysis,
		"confirmation_message": confirmation,
	})
}

func (s *Server) handleProcessChat(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	if !decodeBody(w, r, &body) {
		return
	}
	res, err := s.orders.ProcessChat(r.Context(), body.UserID, body.Message)
	if err != nil {
		respondCatalogError(w, "Failed to process chat message", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"processed_message": res.ProcessedMessage,
		"ai_response":       res.AIResponse,
		"order_details":     res.OrderDetails,
		"intent":            res.Intent,
	})
}

func (s *Server) handleModifyOrder(w http.ResponseWriter, r *http.Request) {
	var body modifyBody
	if !decodeBody(w, r, &body) {
		return
	}
	res, err := s.orders.ModifyOrder(r.Context(), chi.URLParam(r, "orderID"), body.ModificationMessage)
	if err != nil {
		respondCatalogError(w, "Failed to modify order", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"order_id":             res.OrderID,
		"message":              res.Message,
		"original_order":       res.OriginalOrder,
		"updated_order":        res.UpdatedOrder,
		"modification_summary": res.ModificationSummary,
	})
}

func (s *Server) handleUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.catalog.GetUserOrders(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondCatalogError(w, "Failed to fetch user orders", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orders":  orders,
		"count":   len(orders),
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.catalog.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		respondCatalogError(w, "Failed to fetch order", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   order,
		"message": "Order retrieved successfully",
	})
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")
	var body statusBody
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.catalog.UpdateOrderStatus(r.Context(), id, body.Status); err != nil {
		respondCatalogError(w, "Failed to update order status", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  fmt.Sprintf("Order status updated to %s", body.Status),
		"order_id": id,
		"status":   body.Status,
	})
}
