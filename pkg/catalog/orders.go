package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wkc-labs/wkc-server/pkg/docstore"
	"github.com/wkc-labs/wkc-server/pkg/events"
)

const ordersLogPrefix = "catalog:orders"

// CreateOrder stores a new pending order and returns its id. Timestamps are
// kept in the store's native time representation.
func (s *Service) CreateOrder(ctx context.Context, in NewOrder) (string, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return "", invalidf("User ID is required")
	}
	if strings.TrimSpace(in.ChatMessage) == "" {
		return "", invalidf("Chat message is required")
	}
	details := in.OrderDetails
	if details == nil {
		details = map[string]any{}
	}

	now := s.now().UTC()
	fields := map[string]any{
		"user_id":       in.UserID,
		"chat_message":  in.ChatMessage,
		"order_details": details,
		"status":        string(StatusPending),
		"ai_processed":  in.AIProcessed,
		"created_at":    now,
		"updated_at":    now,
	}
	if in.AIAnalysis != "" {
		fields["ai_analysis"] = in.AIAnalysis
	}

	id, err := s.store.Create(ctx, docstore.CollectionOrders, fields)
	if err != nil {
		return "", internal("Failed to place order", err)
	}
	log.Info().Msgf("%s - Placed order %s for user %s (ai_processed=%t)", ordersLogPrefix, id, in.UserID, in.AIProcessed)
	s.publish(ctx, &events.ChangeEvent{Collection: docstore.CollectionOrders, Action: events.ActionCreated, ID: id, UserID: in.UserID, Status: string(StatusPending)})
	return id, nil
}

// GetOrder loads an order by id.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalidf("Order ID is required")
	}
	doc, err := s.store.Get(ctx, docstore.CollectionOrders, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, NewError(CodeNotFound, "Order not found")
	}
	if err != nil {
		return nil, internal("Failed to get order", err)
	}
	return toOrder(doc)
}

// GetUserOrders returns a user's orders, newest first.
func (s *Service) GetUserOrders(ctx context.Context, userID string) ([]Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalidf("User ID is required")
	}
	docs, err := s.store.QueryOrderedByTime(ctx, docstore.CollectionOrders, "user_id", userID, "created_at", docstore.Descending)
	if err != nil {
		return nil, internal("Failed to get orders", err)
	}
	out := make([]Order, 0, len(docs))
	for i := range docs {
		o, err := toOrder(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}

// UpdateOrderStatus sets the status of an order.
func (s *Service) UpdateOrderStatus(ctx context.Context, id, status string) error {
	if strings.TrimSpace(id) == "" {
		return invalidf("Order ID is required")
	}
	st, err := ParseOrderStatus(status)
	if err != nil {
		return err
	}
	err = s.store.Update(ctx, docstore.CollectionOrders, id, map[string]any{
		"status":     string(st),
		"updated_at": s.now().UTC(),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return NewError(CodeNotFound, "Order not found")
	}
	if err != nil {
		return internal("Failed to update order status", err)
	}
	log.Info().Msgf("%s - Order %s status set to %s", ordersLogPrefix, id, st)
	s.publish(ctx, &events.ChangeEvent{Collection: docstore.CollectionOrders, Action: events.ActionStatusChanged, ID: id, Status: string(st)})
	return nil
}

// ReplaceOrderDetails overwrites an order's details with a modified version
// and marks it modified.
func (s *Service) ReplaceOrderDetails(ctx context.Context, id string, details map[string]any, analysis string) error {
	if strings.TrimSpace(id) == "" {
		return invalidf("Order ID is required")
	}
	fields := map[string]any{
		"order_details": details,
		"status":        string(StatusModified),
		"updated_at":    s.now().UTC(),
	}
	if analysis != "" {
		fields["ai_analysis"] = analysis
	}
	err := s.store.Update(ctx, docstore.CollectionOrders, id, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return NewError(CodeNotFound, "Order not found")
	}
	if err != nil {
		return internal("Failed to modify order", err)
	}
	s.publish(ctx, &events.ChangeEvent{
		Collection:    docstore.CollectionOrders,
		Action:        events.ActionModified,
		ID:            id,
		Status:        string(StatusModified),
		ChangedFields: []string{"order_details", "status"},
	})
	return nil
}

func toOrder(doc *docstore.Document) (*Order, error) {
	var o Order
	if err := decodeDocument(doc, &o); err != nil {
		return nil, internal("Failed to read order", err)
	}
	o.ID = doc.ID
	return &o, nil
}
