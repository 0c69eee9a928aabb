package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wkc-labs/wkc-server/internal/config"
	"github.com/wkc-labs/wkc-server/pkg/docstore"
	"github.com/wkc-labs/wkc-server/pkg/ratelimit"
	"github.com/wkc-labs/wkc-server/pkg/registry"
)

const serverTestPrefix = "server:server_test"

// scriptedModel replies with queued responses in order; the last one repeats.
type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (m *scriptedModel) Generate(context.Context, string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.replies) == 0 {
		return "", nil
	}
	r := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return r, nil
}

func (m *scriptedModel) script(replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = replies
	m.calls = 0
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testConfig() *config.Config {
	return &config.Config{
		AllowedOrigins:     []string{"http://localhost:3000"},
		HealthCheckTimeout: 5 * time.Second,
		RequestTimeout:     5 * time.Second,
		ServiceVersion:     "2.0.0",
	}
}

// testServer returns a Server on the memory store with a generous limiter.
func testServer(t *testing.T, model *scriptedModel) *Server {
	t.Helper()
	limiter := ratelimit.NewLocalLimiter(1000, 1000)
	t.Cleanup(limiter.Close)
	s, err := newServer(testConfig(), deps{
		store:   docstore.NewMemoryStore(),
		gen:     model,
		limiter: limiter,
	})
	require.NoError(t, err, "%s - newServer", serverTestPrefix)
	return s
}

func do(t *testing.T, h http.Handler, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "%s - %s %s: body %q", serverTestPrefix, method, path, rec.Body.String())
	return rec.Code, out
}

func gamingMouse() map[string]any {
	return map[string]any{
		"category":    "electronics",
		"companyName": "Acme",
		"description": "RGB gaming mouse",
		"imageUrl":    "https://img.example/mouse.png",
		"name":        "Gaming Mouse",
		"price":       49.99,
		"quantity":    10,
		"sku":         "GM-001",
		"userId":      "seller-1",
	}
}

func TestRootAndHealth(t *testing.T) {
	h := testServer(t, &scriptedModel{}).Handler()

	code, body := do(t, h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2.0.0", body["version"])
	assert.Contains(t, body["features"], "natural_language_queries")

	code, body = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]any{"store": true}, body["checks"])
}

func TestHealth_CommsDown(t *testing.T) {
	s := testServer(t, &scriptedModel{})
	s.commsConnected = func() bool { return false }

	code, body := do(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestProductLifecycle(t *testing.T) {
	h := testServer(t, &scriptedModel{}).Handler()

	code, body := do(t, h, http.MethodPost, "/products", gamingMouse())
	require.Equal(t, http.StatusOK, code, "%s - create: %v", serverTestPrefix, body)
	assert.Equal(t, "Product created successfully", body["message"])
	id := body["product_id"].(string)
	require.NotEmpty(t, id)

	code, body = do(t, h, http.MethodGet, "/products/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	product := body["product"].(map[string]any)
	assert.Equal(t, "Gaming Mouse", product["name"])
	assert.Equal(t, "seller", product["userType"])

	code, body = do(t, h, http.MethodPut, "/products/"+id, map[string]any{"price": 39.5})
	require.Equal(t, http.StatusOK, code, "%s - update: %v", serverTestPrefix, body)
	assert.Equal(t, 39.5, body["data"].(map[string]any)["price"])

	code, body = do(t, h, http.MethodPut, "/products/"+id+"/quantity?quantity=25", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Product quantity updated to 25", body["message"])
	assert.EqualValues(t, 25, body["quantity"])

	code, body = do(t, h, http.MethodGet, "/products/seller/seller-1/search?search_term=mouse", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])
	assert.Nil(t, body["category"])

	code, body = do(t, h, http.MethodGet, "/products/seller/seller-1?page=1&limit=5", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])
	assert.EqualValues(t, 1, body["total_pages"])
	assert.EqualValues(t, 1, body["current_page"])

	code, body = do(t, h, http.MethodDelete, "/products/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Product "+id+" deleted successfully", body["message"])

	code, body = do(t, h, http.MethodGet, "/products/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Product not found", body["error"])
	assert.Equal(t, "HTTP 404", body["details"])
}

func TestProductValidationErrors(t *testing.T) {
	h := testServer(t, &scriptedModel{}).Handler()

	bad := gamingMouse()
	bad["price"] = 0
	code, body := do(t, h, http.MethodPost, "/products", bad)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Price must be greater than 0", body["error"])

	code, body = do(t, h, http.MethodGet, "/products/seller/seller-1/search", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Search term is required", body["error"])

	code, _ = do(t, h, http.MethodGet, "/products/seller/seller-1?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, http.MethodPut, "/products/p-1/quantity?quantity=-1", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, h, http.MethodPut, "/products/missing", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Product not found", body["error"])
}

func TestQuery(t *testing.T) {
	model := &scriptedModel{}
	h := testServer(t, model).Handler()

	code, body := do(t, h, http.MethodPost, "/query", map[string]any{"query": "  "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Query is required", body["error"])
	assert.Zero(t, model.callCount())

	_, created := do(t, h, http.MethodPost, "/products", gamingMouse())
	id := created["product_id"].(string)

	model.script(`{"function_name":"update_product_quantity","parameters":{"product_id":"` + id + `","quantity":"25"},"explanation":"Set stock"}`)
	code, body = do(t, h, http.MethodPost, "/query", map[string]any{
		"query":   "Update the quantity of my mouse to 25",
		"user_id": "seller-1",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "update_product_quantity", body["function_called"])
	assert.Equal(t, "Set stock", body["explanation"])
	result := body["result"].(map[string]any)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "Product quantity updated to 25", result["message"])

	_, got := do(t, h, http.MethodGet, "/products/"+id, nil)
	assert.EqualValues(t, 25, got["product"].(map[string]any)["quantity"])
}

func TestQuery_NoMatch(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"function_name": null, "parameters": {}, "explanation": "No matching function found for this query"}`}}
	h := testServer(t, model).Handler()

	code, body := do(t, h, http.MethodPost, "/query", map[string]any{"query": "what's the weather"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["success"])
	assert.Nil(t, body["function_called"])
	assert.Len(t, body["available_functions"], len(registry.AllKinds()))
}

func TestQuery_Unparseable(t *testing.T) {
	model := &scriptedModel{replies: []string{"sorry, I can't help with that"}}
	h := testServer(t, model).Handler()

	code, body := do(t, h, http.MethodPost, "/query", map[string]any{"query": "hello"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Failed to parse AI response", body["error"])
	assert.Equal(t, "sorry, I can't help with that", body["raw_response"])
}

func TestPlaceOrderAndLifecycle(t *testing.T) {
	model := &scriptedModel{replies: []string{
		`{"items":[{"name":"coffee","quantity":2}],"special_instructions":"oat milk","delivery_preference":"pickup","additional_requirements":"","ai_analysis":"Two coffees"}`,
		"Thanks! Two coffees with oat milk, ready for pickup.",
	}}
	h := testServer(t, model).Handler()

	code, body := do(t, h, http.MethodPost, "/place_order", map[string]any{
		"user_id":      "buyer-1",
		"chat_message": "two oat milk coffees for pickup",
	})
	require.Equal(t, http.StatusOK, code, "%s - place: %v", serverTestPrefix, body)
	assert.Equal(t, true, body["ai_processed"])
	assert.Equal(t, "Two coffees", body["ai_analysis"])
	assert.Equal(t, "Thanks! Two coffees with oat milk, ready for pickup.", body["confirmation_message"])
	assert.Equal(t, 2, model.callCount())
	orderID := body["order_id"].(string)

	code, body = do(t, h, http.MethodGet, "/order/"+orderID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pending", body["order"].(map[string]any)["status"])

	code, body = do(t, h, http.MethodPut, "/order/"+orderID+"/status", map[string]any{"status": "processing"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Order status updated to processing", body["message"])

	code, _ = do(t, h, http.MethodPut, "/order/"+orderID+"/status", map[string]any{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, code)

	model.script(`{"items":[{"name":"coffee","quantity":3}],"special_instructions":"oat milk","delivery_preference":"pickup","additional_requirements":"","ai_analysis":"Three coffees"}`)
	code, body = do(t, h, http.MethodPut, "/order/"+orderID+"/modify", map[string]any{
		"user_id":              "buyer-1",
		"order_id":             orderID,
		"modification_message": "make it three",
	})
	require.Equal(t, http.StatusOK, code, "%s - modify: %v", serverTestPrefix, body)
	assert.Equal(t, "Order modified based on: make it three", body["modification_summary"])

	code, body = do(t, h, http.MethodGet, "/user/buyer-1/orders", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])
	order := body["orders"].([]any)[0].(map[string]any)
	assert.Equal(t, "modified", order["status"])
}

func TestPlaceOrder_WithoutAI(t *testing.T) {
	model := &scriptedModel{}
	h := testServer(t, model).Handler()

	code, body := do(t, h, http.MethodPost, "/place_order", map[string]any{
		"user_id":           "buyer-1",
		"chat_message":      "one tea",
		"order_details":     map[string]any{"items": []any{map[string]any{"name": "tea", "quantity": 1}}},
		"use_ai_processing": false,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["ai_processed"])
	assert.Nil(t, body["confirmation_message"])
	assert.Zero(t, model.callCount())

	code, body = do(t, h, http.MethodPost, "/place_order", map[string]any{"user_id": "buyer-1", "chat_message": " "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Chat message is required", body["error"])
}

func TestProcessChat(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"items":[],"ai_analysis":"Just saying hello"}`}}
	h := testServer(t, model).Handler()

	code, body := do(t, h, http.MethodPost, "/process_chat", map[string]any{"user_id": "u-1", "message": "hi there"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "conversation", body["intent"])
	assert.Equal(t, "Just saying hello", body["ai_response"])
}

func TestModifyOrder_NotFound(t *testing.T) {
	h := testServer(t, &scriptedModel{}).Handler()

	code, body := do(t, h, http.MethodPut, "/order/nope/modify", map[string]any{"modification_message": "add milk"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Order not found", body["error"])
}

func TestOperations(t *testing.T) {
	h := testServer(t, &scriptedModel{}).Handler()

	code, body := do(t, h, http.MethodGet, "/operations", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, len(registry.AllKinds()), body["count"])

	code, body = do(t, h, http.MethodGet, "/operations/openapi.json", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "3.0.0", body["openapi"])
	assert.Contains(t, body["paths"], "/operations/create_product")

	code, body = do(t, h, http.MethodPost, "/operations/create_product", gamingMouse())
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	code, body = do(t, h, http.MethodPost, "/operations/get_user_orders", map[string]any{})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Missing required field: user_id", body["error"])

	code, _ = do(t, h, http.MethodPost, "/operations/update_product_quantity", map[string]any{"product_id": "p", "quantity": "lots"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, h, http.MethodPost, "/operations/launch_rocket", map[string]any{})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Unknown operation: launch_rocket", body["error"])
}

func TestRateLimitedRoutes(t *testing.T) {
	s := testServer(t, &scriptedModel{replies: []string{`{"function_name": null}`}})
	limiter := ratelimit.NewLocalLimiter(0.001, 1)
	t.Cleanup(limiter.Close)
	s.limiter = limiter
	h := s.Handler()

	code, _ := do(t, h, http.MethodPost, "/query", map[string]any{"query": "hello"})
	assert.Equal(t, http.StatusOK, code)
	code, body := do(t, h, http.MethodPost, "/query", map[string]any{"query": "hello"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Rate limit exceeded", body["error"])

	code, _ = do(t, h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, code, "%s - catalog routes are not limited", serverTestPrefix)
}

func TestCORSPreflight(t *testing.T) {
	h := testServer(t, &scriptedModel{}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/query", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	h := testServer(t, &scriptedModel{}).Handler()
	code, body := do(t, h, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])
}

func TestBuildOpenAPISpec(t *testing.T) {
	descs := []registry.Descriptor{{
		Name:        "update_product_quantity",
		Description: "Update stock",
		Parameters: []registry.ParamSpec{
			{Name: "product_id", Type: registry.TypeString, Required: true},
			{Name: "quantity", Type: registry.TypeInteger, Required: true},
		},
	}, {
		Name:       "get_seller_products",
		Parameters: []registry.ParamSpec{{Name: "page", Type: registry.TypeInteger, Default: 1}},
	}}
	spec := buildOpenAPISpec(descs, "2.0.0")

	assert.Equal(t, "3.0.0", spec.OpenAPI)
	assert.Equal(t, "2.0.0", spec.Info.Version)
	require.Len(t, spec.Paths, 2)

	op := spec.Paths["/operations/update_product_quantity"].Post
	require.NotNil(t, op)
	assert.Equal(t, "update_product_quantity", op.OperationID)
	assert.Equal(t, "Update stock", op.Description)
	schema := op.RequestBody.Content["application/json"].Schema
	assert.Equal(t, []string{"product_id", "quantity"}, schema["required"])

	paged := spec.Paths["/operations/get_seller_products"].Post.RequestBody.Content["application/json"].Schema
	assert.NotContains(t, paged, "required")
	assert.Equal(t, 1, paged["properties"].(map[string]any)["page"].(map[string]any)["default"])
}
