package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/wkc-labs/wkc-server/pkg/catalog"
	"github.com/wkc-labs/wkc-server/pkg/genai"
	"github.com/wkc-labs/wkc-server/pkg/intake"
	"github.com/wkc-labs/wkc-server/pkg/registry"
)

type quantityCall struct {
	id       string
	quantity int
}

// stubCatalog records quantity updates; GetProduct panics to exercise
// recovery. Other methods are not expected to be called.
type stubCatalog struct {
	registry.Catalog
	calls []quantityCall
}

func (c *stubCatalog) UpdateProductQuantity(_ context.Context, id string, quantity int) error {
	c.calls = append(c.calls, quantityCall{id: id, quantity: quantity})
	return nil
}

func (c *stubCatalog) GetProduct(context.Context, string) (*catalog.Product, error) {
	panic("store exploded")
}

type stubPlacer struct{}

func (stubPlacer) PlaceOrder(context.Context, intake.PlaceOrderRequest) (*intake.PlaceOrderResult, error) {
	return &intake.PlaceOrderResult{OrderID: "o-1"}, nil
}

// countingModel returns reply and counts calls.
type countingModel struct {
	reply string
	err   error
	calls int
	last  string
}

func (m *countingModel) Generate(_ context.Context, prompt string) (string, error) {
	m.calls++
	m.last = prompt
	return m.reply, m.err
}

func newTestDispatcher(t *testing.T, gen genai.Generator) (*Dispatcher, *stubCatalog) {
	t.Helper()
	cat := &stubCatalog{}
	reg, err := registry.New(cat, stubPlacer{})
	if err != nil {
		t.Fatalf("dispatcher:dispatcher_test - registry.New: %v", err)
	}
	return NewDispatcher(reg, gen), cat
}

func TestDispatch_BlankQueryMakesNoModelCall(t *testing.T) {
	model := &countingModel{reply: "{}"}
	d, _ := newTestDispatcher(t, model)

	for _, q := range []string{"", "   ", "\n\t"} {
		res := d.Dispatch(context.Background(), q, nil)
		if res.Success {
			t.Errorf("dispatcher:dispatcher_test - expected success=false for %q", q)
		}
		if res.ErrorCode != CodeInvalidArgument {
			t.Errorf("dispatcher:dispatcher_test - expected %s, got %s", CodeInvalidArgument, res.ErrorCode)
		}
	}
	if model.calls != 0 {
		t.Errorf("dispatcher:dispatcher_test - expected no model calls, got %d", model.calls)
	}
}

func TestDispatch_UnparseableReplyKeepsRawText(t *testing.T) {
	raw := "I am not sure what you mean, could you rephrase?"
	d, _ := newTestDispatcher(t, &countingModel{reply: raw})

	res := d.Dispatch(context.Background(), "do the thing", nil)
	if res.Success {
		t.Fatal("dispatcher:dispatcher_test - expected success=false")
	}
	if res.ErrorCode != CodeUnparseableOutput {
		t.Errorf("dispatcher:dispatcher_test - expected %s, got %s", CodeUnparseableOutput, res.ErrorCode)
	}
	if res.RawResponse != raw {
		t.Errorf("dispatcher:dispatcher_test - expected raw response attached, got %q", res.RawResponse)
	}
}

func TestDispatch_GenerationFailure(t *testing.T) {
	d, _ := newTestDispatcher(t, &countingModel{err: errors.New("503 from upstream")})

	res := d.Dispatch(context.Background(), "list my orders", nil)
	if res.Success || res.ErrorCode != CodeGenerationFailed {
		t.Fatalf("dispatcher:dispatcher_test - expected GENERATION_FAILED, got %+v", res)
	}
	if !strings.Contains(res.Error, "503 from upstream") {
		t.Errorf("dispatcher:dispatcher_test - expected cause in error, got %q", res.Error)
	}
}

func TestDispatch_UnknownOperationListsAll(t *testing.T) {
	for _, reply := range []string{
		`{"function_name": "launch_rocket", "parameters": {}, "explanation": "no idea"}`,
		`{"function_name": null, "parameters": {}, "explanation": "No matching function found for this query"}`,
	} {
		d, _ := newTestDispatcher(t, &countingModel{reply: reply})
		res := d.Dispatch(context.Background(), "launch a rocket", nil)
		if res.Success {
			t.Fatalf("dispatcher:dispatcher_test - expected success=false for %s", reply)
		}
		if res.ErrorCode != CodeNoMatch {
			t.Errorf("dispatcher:dispatcher_test - expected NO_MATCH, got %s", res.ErrorCode)
		}
		if res.FunctionCalled != nil {
			t.Errorf("dispatcher:dispatcher_test - expected no function called, got %s", *res.FunctionCalled)
		}
		if !reflect.DeepEqual(res.AvailableFunctions, d.registry.Names()) {
			t.Errorf("dispatcher:dispatcher_test - expected all %d names, got %v", len(d.registry.Names()), res.AvailableFunctions)
		}
	}
}

func TestDispatch_UpdateQuantityScenario(t *testing.T) {
	model := &countingModel{reply: "```json\n" +
		`{"function_name":"update_product_quantity","parameters":{"product_id":"ABC123","quantity":25},"explanation":"Set stock to 25"}` +
		"\n```"}
	d, cat := newTestDispatcher(t, model)

	res := d.Dispatch(context.Background(), "Update the quantity of product ABC123 to 25", map[string]any{})
	if !res.Success {
		t.Fatalf("dispatcher:dispatcher_test - expected success, got %+v", res)
	}
	if res.FunctionCalled == nil || *res.FunctionCalled != "update_product_quantity" {
		t.Errorf("dispatcher:dispatcher_test - unexpected function_called %v", res.FunctionCalled)
	}
	want := []quantityCall{{id: "ABC123", quantity: 25}}
	if !reflect.DeepEqual(cat.calls, want) {
		t.Errorf("dispatcher:dispatcher_test - expected calls %v, got %v", want, cat.calls)
	}
	if res.Result == nil || !res.Result.Success {
		t.Fatalf("dispatcher:dispatcher_test - expected nested successful result, got %+v", res.Result)
	}
	if res.Result.Message != "Product quantity updated to 25" {
		t.Errorf("dispatcher:dispatcher_test - unexpected message %q", res.Result.Message)
	}
	if !strings.Contains(model.last, `User Query: "Update the quantity of product ABC123 to 25"`) {
		t.Error("dispatcher:dispatcher_test - prompt is missing the verbatim query")
	}
	if !strings.Contains(model.last, `"name": "update_product_quantity"`) {
		t.Error("dispatcher:dispatcher_test - prompt is missing the operation catalog")
	}
}

func TestDispatch_OperationFailureIsNested(t *testing.T) {
	d, cat := newTestDispatcher(t, &countingModel{
		reply: `{"function_name":"update_product_quantity","parameters":{"product_id":"ABC123"},"explanation":"x"}`,
	})

	res := d.Dispatch(context.Background(), "update ABC123", nil)
	if !res.Success {
		t.Fatalf("dispatcher:dispatcher_test - expected dispatch success, got %+v", res)
	}
	if res.Result.Success {
		t.Error("dispatcher:dispatcher_test - expected nested failure for missing quantity")
	}
	if res.Result.Error != "Missing required field: quantity" {
		t.Errorf("dispatcher:dispatcher_test - unexpected nested error %q", res.Result.Error)
	}
	if len(cat.calls) != 0 {
		t.Errorf("dispatcher:dispatcher_test - expected no catalog call, got %v", cat.calls)
	}
}

func TestDispatch_InvalidParameterTypes(t *testing.T) {
	d, cat := newTestDispatcher(t, &countingModel{
		reply: `{"function_name":"update_product_quantity","parameters":{"product_id":"ABC123","quantity":"lots"}}`,
	})

	res := d.Dispatch(context.Background(), "update ABC123", nil)
	if res.Success || res.ErrorCode != CodeInvalidParameters {
		t.Fatalf("dispatcher:dispatcher_test - expected INVALID_PARAMETERS, got %+v", res)
	}
	if res.FunctionCalled == nil || *res.FunctionCalled != "update_product_quantity" {
		t.Errorf("dispatcher:dispatcher_test - expected function_called to be kept")
	}
	if len(cat.calls) != 0 {
		t.Errorf("dispatcher:dispatcher_test - expected no catalog call, got %v", cat.calls)
	}
}

func TestDispatch_RecoversPanic(t *testing.T) {
	d, _ := newTestDispatcher(t, &countingModel{
		reply: `{"function_name":"get_product_details","parameters":{"product_id":"p1"}}`,
	})

	res := d.Dispatch(context.Background(), "show p1", nil)
	if res.Success || res.ErrorCode != CodeInvocationFailed {
		t.Fatalf("dispatcher:dispatcher_test - expected INVOCATION_FAILED, got %+v", res)
	}
	if !strings.Contains(res.Error, "store exploded") {
		t.Errorf("dispatcher:dispatcher_test - expected panic value in error, got %q", res.Error)
	}
}

func TestDispatch_ContextInPrompt(t *testing.T) {
	model := &countingModel{reply: `{"function_name": null}`}
	d, _ := newTestDispatcher(t, model)

	d.Dispatch(context.Background(), "what can you do", map[string]any{"user_id": "u-9", "locale": "en"})
	if !strings.Contains(model.last, "Context Information:\n- locale: en\n- user_id: u-9\n") {
		t.Errorf("dispatcher:dispatcher_test - context not flattened in sorted order:\n%s", model.last)
	}
}

func TestServe(t *testing.T) {
	model := &countingModel{reply: `{"function_name": null}`}
	d, _ := newTestDispatcher(t, model)

	resp := d.Serve(context.Background(), &QueryRequest{ID: "q-1", Query: " "})
	if resp.Ok || resp.Error == nil || resp.Error.Code != CodeInvalidArgument {
		t.Fatalf("dispatcher:dispatcher_test - expected INVALID_ARGUMENT, got %+v", resp)
	}

	resp = d.Serve(context.Background(), &QueryRequest{ID: "q-2", Query: "hello", UserID: "u-1"})
	if !resp.Ok || resp.ID != "q-2" || resp.Result == nil {
		t.Fatalf("dispatcher:dispatcher_test - unexpected response %+v", resp)
	}
	if !strings.Contains(model.last, "- user_id: u-1") {
		t.Error("dispatcher:dispatcher_test - expected user_id merged into context")
	}
}

func TestResult_FunctionCalledIsNull(t *testing.T) {
	data, err := json.Marshal(&Result{Success: false, ErrorCode: CodeNoMatch})
	if err != nil {
		t.Fatalf("dispatcher:dispatcher_test - marshal: %v", err)
	}
	if !strings.Contains(string(data), `"function_called":null`) {
		t.Errorf("dispatcher:dispatcher_test - expected explicit null, got %s", data)
	}
}

func TestDispatch_ReportsPreparedParameters(t *testing.T) {
	d, cat := newTestDispatcher(t, &countingModel{
		reply: `{"function_name":"update_product_quantity","parameters":{"product_id":"ABC123","quantity":"25","colour":"red"}}`,
	})

	res := d.Dispatch(context.Background(), "set ABC123 to 25", nil)
	if !res.Success || !res.Result.Success {
		t.Fatalf("dispatcher:dispatcher_test - expected success, got %+v", res)
	}
	want := map[string]any{"product_id": "ABC123", "quantity": int64(25)}
	if !reflect.DeepEqual(res.Parameters, want) {
		t.Errorf("dispatcher:dispatcher_test - parameters = %#v, want %#v", res.Parameters, want)
	}
	if len(cat.calls) != 1 || cat.calls[0].quantity != 25 {
		t.Errorf("dispatcher:dispatcher_test - unexpected catalog calls %v", cat.calls)
	}
}

func TestDispatch_QueryVerbatimInPrompt(t *testing.T) {
	model := &countingModel{reply: `{"function_name": null}`}
	d, _ := newTestDispatcher(t, model)

	query := "find products named \"blue mug\"\nthen café items"
	d.Dispatch(context.Background(), query, nil)
	if !strings.Contains(model.last, "User Query: \""+query+"\"\n") {
		t.Errorf("dispatcher:dispatcher_test - query not carried verbatim:\n%s", model.last)
	}
}
