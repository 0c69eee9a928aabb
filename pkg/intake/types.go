// Package intake turns free-form chat messages into structured orders using
// the text-generation client, and runs the order placement, chat and
// modification workflows on top of it.
package intake

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/wkc-labs/wkc-server/pkg/catalog"
)

// DefaultDeliveryPreference is used when the model names no preference.
const DefaultDeliveryPreference = "not specified"

// Placeholder item used when the model output cannot be used.
const (
	PlaceholderItemName     = "order from chat"
	PlaceholderItemQuantity = 1
)

// OrderItem is one line of an extracted order.
type OrderItem struct {
	Name         string   `json:"name"`
	Quantity     int      `json:"quantity"`
	Price        *float64 `json:"price,omitempty"`
	SpecialNotes string   `json:"special_notes,omitempty"`
}

// OrderDetails is the structured form of a chat order.
type OrderDetails struct {
	Items                  []OrderItem `json:"items"`
	SpecialInstructions    string      `json:"special_instructions"`
	DeliveryPreference     string      `json:"delivery_preference"`
	AdditionalRequirements string      `json:"additional_requirements"`
	AIAnalysis             string      `json:"ai_analysis"`
}

// Map returns d as a generic field map suitable for persistence.
func (d OrderDetails) Map() map[string]any {
	items := make([]any, 0, len(d.Items))
	for _, it := range d.Items {
		m := map[string]any{"name": it.Name, "quantity": it.Quantity}
		if it.Price != nil {
			m["price"] = *it.Price
		}
		if it.SpecialNotes != "" {
			m["special_notes"] = it.SpecialNotes
		}
		items = append(items, m)
	}
	return map[string]any{
		"items":                   items,
		"special_instructions":    d.SpecialInstructions,
		"delivery_preference":     d.DeliveryPreference,
		"additional_requirements": d.AdditionalRequirements,
		"ai_analysis":             d.AIAnalysis,
	}
}

func placeholder(analysis string) OrderDetails {
	return OrderDetails{
		Items:              []OrderItem{{Name: PlaceholderItemName, Quantity: PlaceholderItemQuantity}},
		DeliveryPreference: DefaultDeliveryPreference,
		AIAnalysis:         analysis,
	}
}

// detailsFromMap normalizes a decoded model reply. Models are inconsistent
// about shapes: items may be strings, a single object, or carry quoted
// quantities, and text fields sometimes come back as lists.
func detailsFromMap(raw map[string]any, fallbackAnalysis string) OrderDetails {
	d := OrderDetails{
		Items:                  normalizeItems(raw["items"]),
		SpecialInstructions:    text(raw["special_instructions"]),
		DeliveryPreference:     text(raw["delivery_preference"]),
		AdditionalRequirements: text(raw["additional_requirements"]),
		AIAnalysis:             text(raw["ai_analysis"]),
	}
	if d.DeliveryPreference == "" {
		d.DeliveryPreference = DefaultDeliveryPreference
	}
	if d.AIAnalysis == "" {
		d.AIAnalysis = fallbackAnalysis
	}
	return d
}

func normalizeItems(v any) []OrderItem {
	var list []any
	switch t := v.(type) {
	case []any:
		list = t
	case map[string]any, string:
		list = []any{t}
	}

	items := make([]OrderItem, 0, len(list))
	for _, el := range list {
		switch it := el.(type) {
		case string:
			if name := strings.TrimSpace(it); name != "" {
				items = append(items, OrderItem{Name: name, Quantity: 1})
			}
		case map[string]any:
			name := text(it["name"])
			if name == "" {
				name = text(it["item"])
			}
			if name == "" {
				continue
			}
			item := OrderItem{Name: name, Quantity: 1, SpecialNotes: text(it["special_notes"])}
			if q, ok := number(it["quantity"]); ok && q >= 1 {
				item.Quantity = int(q)
			}
			if p, ok := number(it["price"]); ok {
				item.Price = &p
			}
			items = append(items, item)
		}
	}
	return items
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, el := range t {
			if s := text(el); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(t, "$")), 64)
		return f, err == nil
	}
	return 0, false
}

// PlaceOrderRequest is the input of the placement workflow.
type PlaceOrderRequest struct {
	UserID          string         `json:"user_id"`
	ChatMessage     string         `json:"chat_message"`
	OrderDetails    map[string]any `json:"order_details,omitempty"`
	UseAIProcessing bool           `json:"use_ai_processing"`
}

// PlaceOrderResult describes a placed order.
type PlaceOrderResult struct {
	OrderID             string         `json:"order_id"`
	Message             string         `json:"message"`
	Data                map[string]any `json:"data,omitempty"`
	AIProcessed         bool           `json:"ai_processed"`
	AIAnalysis          string         `json:"ai_analysis,omitempty"`
	ConfirmationMessage string         `json:"confirmation_message,omitempty"`
}

// ChatResult is the outcome of analysing a chat message without placing an
// order.
type ChatResult struct {
	ProcessedMessage string        `json:"processed_message"`
	AIResponse       string        `json:"ai_response"`
	OrderDetails     *OrderDetails `json:"order_details,omitempty"`
	Intent           string        `json:"intent"`
}

// Chat intents.
const (
	IntentOrder        = "order"
	IntentConversation = "conversation"
)

// ModifyResult describes an order rewritten from a modification request.
type ModifyResult struct {
	OrderID             string         `json:"order_id"`
	Message             string         `json:"message"`
	OriginalOrder       *catalog.Order `json:"original_order"`
	UpdatedOrder        OrderDetails   `json:"updated_order"`
	ModificationSummary string         `json:"modification_summary"`
}
