package intake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wkc-labs/wkc-server/pkg/catalog"
	"github.com/wkc-labs/wkc-server/pkg/docstore"
	"github.com/wkc-labs/wkc-server/pkg/genai"
	"github.com/wkc-labs/wkc-server/pkg/jsonscan"
)

// scriptedModel replies with the next canned response and records prompts.
type scriptedModel struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (m *scriptedModel) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", errors.New("no scripted response left")
	}
	r := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return r, nil
}

const pizzaReply = `Sure! Here is the order:
{"items": [{"name": "margherita pizza", "quantity": 2}, "garlic bread"],
 "special_instructions": "extra basil",
 "delivery_preference": "delivery",
 "additional_requirements": "",
 "ai_analysis": "Two pizzas and a side for delivery"}`

func newService(model genai.Generator) (*Service, *catalog.Service) {
	cat := catalog.NewService(catalog.NewServiceParams{Store: docstore.NewMemoryStore()})
	return NewService(cat, NewPipeline(model)), cat
}

func TestExtractOrder_ParsesAndNormalizes(t *testing.T) {
	p := NewPipeline(&scriptedModel{responses: []string{pizzaReply}})

	res := p.ExtractOrder(context.Background(), "2 margherita and garlic bread please", "u1")
	require.NoError(t, res.Err)
	assert.True(t, res.AIProcessed)
	require.Len(t, res.Details.Items, 2)
	assert.Equal(t, OrderItem{Name: "margherita pizza", Quantity: 2}, res.Details.Items[0])
	assert.Equal(t, OrderItem{Name: "garlic bread", Quantity: 1}, res.Details.Items[1])
	assert.Equal(t, "extra basil", res.Details.SpecialInstructions)
	assert.Equal(t, "delivery", res.Details.DeliveryPreference)
	assert.Equal(t, "Two pizzas and a side for delivery", res.Details.AIAnalysis)
}

func TestExtractOrder_Idempotent(t *testing.T) {
	p := NewPipeline(genai.GeneratorFunc(func(context.Context, string) (string, error) {
		return pizzaReply, nil
	}))

	first := p.ExtractOrder(context.Background(), "same message", "u1")
	second := p.ExtractOrder(context.Background(), "same message", "u1")
	assert.Equal(t, first, second)
}

func TestExtractOrder_GenerationErrorYieldsPlaceholder(t *testing.T) {
	p := NewPipeline(&scriptedModel{err: errors.New("quota exceeded")})

	res := p.ExtractOrder(context.Background(), "one large coffee", "u1")
	require.Error(t, res.Err)
	assert.False(t, res.AIProcessed)
	assert.Equal(t, []OrderItem{{Name: "order from chat", Quantity: 1}}, res.Details.Items)
	assert.Equal(t, "one large coffee", res.Details.AIAnalysis)
	assert.Equal(t, DefaultDeliveryPreference, res.Details.DeliveryPreference)
}

func TestExtractOrder_UnparseableYieldsPlaceholder(t *testing.T) {
	p := NewPipeline(&scriptedModel{responses: []string{"I could not understand that order."}})

	res := p.ExtractOrder(context.Background(), "???", "u1")
	require.Error(t, res.Err)
	assert.Equal(t, PlaceholderItemName, res.Details.Items[0].Name)
	assert.Equal(t, "???", res.Details.AIAnalysis)
}

func TestExtractOrder_NullReplyYieldsPlaceholder(t *testing.T) {
	p := NewPipeline(&scriptedModel{responses: []string{"null"}})

	res := p.ExtractOrder(context.Background(), "two bagels", "u1")
	require.ErrorIs(t, res.Err, jsonscan.ErrUnparseable)
	assert.False(t, res.AIProcessed)
	assert.Equal(t, PlaceholderItemName, res.Details.Items[0].Name)
	assert.Equal(t, "two bagels", res.Details.AIAnalysis)
}

func TestExtractOrder_PromptCarriesMessageVerbatim(t *testing.T) {
	model := &scriptedModel{responses: []string{pizzaReply}}
	p := NewPipeline(model)

	msg := "a \"large\" latte\nand a café muffin"
	p.ExtractOrder(context.Background(), msg, "u1")
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], `Chat Message: "`+msg+`"`)
}

func TestExtractOrder_LenientItemShapes(t *testing.T) {
	reply := `{"items": {"item": "tea", "quantity": "3", "price": "$2.50"}, "special_instructions": ["no sugar", "hot"]}`
	p := NewPipeline(&scriptedModel{responses: []string{reply}})

	res := p.ExtractOrder(context.Background(), "3 teas", "u1")
	require.NoError(t, res.Err)
	require.Len(t, res.Details.Items, 1)
	assert.Equal(t, "tea", res.Details.Items[0].Name)
	assert.Equal(t, 3, res.Details.Items[0].Quantity)
	require.NotNil(t, res.Details.Items[0].Price)
	assert.InDelta(t, 2.5, *res.Details.Items[0].Price, 1e-9)
	assert.Equal(t, "no sugar; hot", res.Details.SpecialInstructions)
	assert.Equal(t, DefaultDeliveryPreference, res.Details.DeliveryPreference)
	assert.Equal(t, reply, res.Details.AIAnalysis)
}

func TestSummarizeForConfirmation_Fallback(t *testing.T) {
	p := NewPipeline(&scriptedModel{err: errors.New("down")})
	assert.Equal(t, DefaultConfirmation, p.SummarizeForConfirmation(context.Background(), placeholder("x")))

	p = NewPipeline(&scriptedModel{responses: []string{"  Thanks, 2 pizzas are on the way.  "}})
	assert.Equal(t, "Thanks, 2 pizzas are on the way.", p.SummarizeForConfirmation(context.Background(), placeholder("x")))
}

func TestPlaceOrder_WithAIProcessing(t *testing.T) {
	model := &scriptedModel{responses: []string{pizzaReply, "Your order is confirmed."}}
	svc, cat := newService(model)
	ctx := context.Background()

	res, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		UserID:          "u1",
		ChatMessage:     "2 margherita and garlic bread please",
		OrderDetails:    map[string]any{"table": "7"},
		UseAIProcessing: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.OrderID)
	assert.True(t, res.AIProcessed)
	assert.Equal(t, "Two pizzas and a side for delivery", res.AIAnalysis)
	assert.Equal(t, "Your order is confirmed.", res.ConfirmationMessage)

	order, err := cat.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusPending, order.Status)
	assert.True(t, order.AIProcessed)
	assert.Equal(t, "7", order.OrderDetails["table"])
	assert.Equal(t, "delivery", order.OrderDetails["delivery_preference"])
	assert.Len(t, model.prompts, 2)
}

func TestPlaceOrder_AIFailureStillPlaces(t *testing.T) {
	svc, cat := newService(&scriptedModel{err: errors.New("timeout")})
	ctx := context.Background()

	res, err := svc.PlaceOrder(ctx, PlaceOrderRequest{UserID: "u1", ChatMessage: "coffee", UseAIProcessing: true})
	require.NoError(t, err)
	assert.False(t, res.AIProcessed)
	assert.Empty(t, res.ConfirmationMessage)

	order, err := cat.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.False(t, order.AIProcessed)
	assert.Empty(t, order.OrderDetails)
}

func TestPlaceOrder_Validation(t *testing.T) {
	model := &scriptedModel{responses: []string{pizzaReply}}
	svc, _ := newService(model)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{UserID: " ", ChatMessage: "x", UseAIProcessing: true})
	assert.Equal(t, catalog.CodeInvalidArgument, catalog.ErrorCode(err))
	_, err = svc.PlaceOrder(context.Background(), PlaceOrderRequest{UserID: "u1", ChatMessage: ""})
	assert.Equal(t, catalog.CodeInvalidArgument, catalog.ErrorCode(err))
	assert.Empty(t, model.prompts)
}

func TestProcessChat(t *testing.T) {
	svc, _ := newService(&scriptedModel{responses: []string{pizzaReply}})
	res, err := svc.ProcessChat(context.Background(), "u1", "2 margherita please")
	require.NoError(t, err)
	assert.Equal(t, IntentOrder, res.Intent)
	assert.Equal(t, "2 margherita please", res.ProcessedMessage)
	assert.Equal(t, "Two pizzas and a side for delivery", res.AIResponse)

	svc, _ = newService(&scriptedModel{responses: []string{`{"items": [], "ai_analysis": "Just saying hello"}`}})
	res, err = svc.ProcessChat(context.Background(), "u1", "hello there")
	require.NoError(t, err)
	assert.Equal(t, IntentConversation, res.Intent)

	svc, _ = newService(&scriptedModel{err: errors.New("down")})
	_, err = svc.ProcessChat(context.Background(), "u1", "hello there")
	assert.Equal(t, catalog.CodeInternal, catalog.ErrorCode(err))
}

func TestModifyOrder(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`{"items": [{"name": "margherita pizza", "quantity": 3}], "delivery_preference": "pickup", "ai_analysis": "Three pizzas for pickup"}`,
	}}
	svc, cat := newService(model)
	ctx := context.Background()

	id, err := cat.CreateOrder(ctx, catalog.NewOrder{UserID: "u1", ChatMessage: "2 pizzas", OrderDetails: map[string]any{"items": []any{}}})
	require.NoError(t, err)

	res, err := svc.ModifyOrder(ctx, id, "make it three and I'll pick up")
	require.NoError(t, err)
	assert.Equal(t, "Order modified based on: make it three and I'll pick up", res.ModificationSummary)
	assert.Equal(t, catalog.StatusPending, res.OriginalOrder.Status)
	assert.Equal(t, 3, res.UpdatedOrder.Items[0].Quantity)
	require.Len(t, model.prompts, 1)
	assert.True(t, strings.Contains(model.prompts[0], "2 pizzas"))

	order, err := cat.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusModified, order.Status)
	assert.Equal(t, "pickup", order.OrderDetails["delivery_preference"])
	assert.Equal(t, "Three pizzas for pickup", order.AIAnalysis)
}

func TestModifyOrder_Errors(t *testing.T) {
	svc, cat := newService(&scriptedModel{err: errors.New("down")})
	ctx := context.Background()

	_, err := svc.ModifyOrder(ctx, "missing", "more")
	assert.Equal(t, catalog.CodeNotFound, catalog.ErrorCode(err))

	id, err := cat.CreateOrder(ctx, catalog.NewOrder{UserID: "u1", ChatMessage: "tea"})
	require.NoError(t, err)
	_, err = svc.ModifyOrder(ctx, id, "more")
	assert.Equal(t, catalog.CodeInternal, catalog.ErrorCode(err))

	order, err := cat.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusPending, order.Status)
}
