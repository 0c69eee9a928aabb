package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wkc-labs/wkc-server/pkg/catalog"
	"github.com/wkc-labs/wkc-server/pkg/jsonscan"
)

const serviceLogPrefix = "intake:service"

// OrderStore is the subset of the catalog the workflows persist through.
type OrderStore interface {
	CreateOrder(ctx context.Context, in catalog.NewOrder) (string, error)
	GetOrder(ctx context.Context, id string) (*catalog.Order, error)
	ReplaceOrderDetails(ctx context.Context, id string, details map[string]any, analysis string) error
}

// Service runs the order workflows.
type Service struct {
	orders   OrderStore
	pipeline *Pipeline
}

// NewService creates a Service.
func NewService(orders OrderStore, pipeline *Pipeline) *Service {
	return &Service{orders: orders, pipeline: pipeline}
}

// Pipeline returns the underlying extraction pipeline.
func (s *Service) Pipeline() *Pipeline { return s.pipeline }

// PlaceOrder stores an order built from a chat message. With AI processing
// enabled, extracted details are merged over the caller's details and a
// confirmation is generated; extraction failures fall back to the caller's
// details and never fail the placement.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, catalog.NewError(catalog.CodeInvalidArgument, "User ID is required")
	}
	if strings.TrimSpace(req.ChatMessage) == "" {
		return nil, catalog.NewError(catalog.CodeInvalidArgument, "Chat message is required")
	}

	details := make(map[string]any, len(req.OrderDetails)+5)
	for k, v := range req.OrderDetails {
		details[k] = v
	}

	var (
		processed    bool
		analysis     string
		confirmation string
	)
	if req.UseAIProcessing {
		res := s.pipeline.ExtractOrder(ctx, req.ChatMessage, req.UserID)
		if res.Err == nil {
			processed = true
			analysis = res.Details.AIAnalysis
			for k, v := range res.Details.Map() {
				details[k] = v
			}
			confirmation = s.pipeline.SummarizeForConfirmation(ctx, res.Details)
		} else {
			log.Warn().Err(res.Err).Msgf("%s - AI processing failed, placing order without it", serviceLogPrefix)
		}
	}

	id, err := s.orders.CreateOrder(ctx, catalog.NewOrder{
		UserID:       req.UserID,
		ChatMessage:  req.ChatMessage,
		OrderDetails: details,
		AIProcessed:  processed,
		AIAnalysis:   analysis,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Msgf("%s - Order placed for user %s with ID: %s", serviceLogPrefix, req.UserID, id)

	return &PlaceOrderResult{
		OrderID:             id,
		Message:             "Order placed successfully",
		Data: map[string]any{
			"user_id":       req.UserID,
			"chat_message":  req.ChatMessage,
			"order_details": details,
			"status":        string(catalog.StatusPending),
		},
		AIProcessed:         processed,
		AIAnalysis:          analysis,
		ConfirmationMessage: confirmation,
	}, nil
}

// ProcessChat analyses a message without placing an order. The intent is
// "order" when any items were extracted. A failed model call is an internal
// error; an unusable reply still returns the placeholder details.
func (s *Service) ProcessChat(ctx context.Context, userID, message string) (*ChatResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, catalog.NewError(catalog.CodeInvalidArgument, "User ID is required")
	}
	if strings.TrimSpace(message) == "" {
		return nil, catalog.NewError(catalog.CodeInvalidArgument, "Message is required")
	}

	res := s.pipeline.ExtractOrder(ctx, message, userID)
	if res.Err != nil && !errors.Is(res.Err, jsonscan.ErrUnparseable) {
		return nil, &catalog.Error{Code: catalog.CodeInternal, Message: fmt.Sprintf("Failed to process order: %v", res.Err)}
	}

	intent := IntentConversation
	if len(res.Details.Items) > 0 {
		intent = IntentOrder
	}
	details := res.Details
	return &ChatResult{
		ProcessedMessage: message,
		AIResponse:       details.AIAnalysis,
		OrderDetails:     &details,
		Intent:           intent,
	}, nil
}

// ModifyOrder rewrites an order's details from a modification request and
// marks it modified.
func (s *Service) ModifyOrder(ctx context.Context, orderID, request string) (*ModifyResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, catalog.NewError(catalog.CodeInvalidArgument, "Order ID is required")
	}
	if strings.TrimSpace(request) == "" {
		return nil, catalog.NewError(catalog.CodeInvalidArgument, "Modification message is required")
	}

	original, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	updated, summary, err := s.pipeline.ApplyModification(ctx, original, request)
	if err != nil {
		log.Error().Err(err).Msgf("%s - modification of order %s failed", serviceLogPrefix, orderID)
		return nil, &catalog.Error{Code: catalog.CodeInternal, Message: fmt.Sprintf("Failed to process modification: %v", err)}
	}

	if err := s.orders.ReplaceOrderDetails(ctx, orderID, updated.Map(), updated.AIAnalysis); err != nil {
		return nil, err
	}

	return &ModifyResult{
		OrderID:             orderID,
		Message:             "Order modified successfully",
		OriginalOrder:       original,
		UpdatedOrder:        updated,
		ModificationSummary: summary,
	}, nil
}
