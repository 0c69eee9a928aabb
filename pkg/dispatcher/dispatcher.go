package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wkc-labs/wkc-server/pkg/genai"
	"github.com/wkc-labs/wkc-server/pkg/jsonscan"
	"github.com/wkc-labs/wkc-server/pkg/registry"
)

const logPrefix = "dispatcher:dispatch"

var tracer = otel.Tracer("wkc-server/dispatcher")

// Dispatch error codes.
const (
	CodeInvalidArgument   = "INVALID_ARGUMENT"
	CodeGenerationFailed  = "GENERATION_FAILED"
	CodeUnparseableOutput = "UNPARSEABLE_OUTPUT"
	CodeNoMatch           = "NO_MATCH"
	CodeInvalidParameters = "INVALID_PARAMETERS"
	CodeInvocationFailed  = "INVOCATION_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
)

// Result is the outcome of one dispatch. Success reports whether an
// operation was chosen and invoked; the operation's own outcome is nested
// under Result and carries its own success flag.
type Result struct {
	Success            bool                      `json:"success"`
	FunctionCalled     *string                   `json:"function_called"`
	Parameters         map[string]any            `json:"parameters,omitempty"`
	Explanation        string                    `json:"explanation,omitempty"`
	Result             *registry.OperationResult `json:"result,omitempty"`
	Error              string                    `json:"error,omitempty"`
	ErrorCode          string                    `json:"error_code,omitempty"`
	RawResponse        string                    `json:"raw_response,omitempty"`
	AvailableFunctions []string                  `json:"available_functions,omitempty"`
}

// Dispatcher maps free text to one registry operation.
type Dispatcher struct {
	registry *registry.Registry
	gen      genai.Generator
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(reg *registry.Registry, gen genai.Generator) *Dispatcher {
	return &Dispatcher{registry: reg, gen: gen}
}

// Dispatch asks the model to pick an operation for query and runs it. It
// never returns an error or panics; every failure is reported in the Result.
// A blank query is rejected without calling the model.
func (d *Dispatcher) Dispatch(ctx context.Context, query string, queryCtx map[string]any) *Result {
	if strings.TrimSpace(query) == "" {
		return &Result{Success: false, Error: "Query is required", ErrorCode: CodeInvalidArgument}
	}

	ctx, span := tracer.Start(ctx, "dispatcher.Dispatch")
	defer span.End()

	prompt, err := d.buildPrompt(query, queryCtx)
	if err != nil {
		return failure(CodeInternal, "Failed to build prompt: "+err.Error())
	}

	raw, err := d.gen.Generate(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Msgf("%s - model call failed", logPrefix)
		return failure(CodeGenerationFailed, "Failed to process query: "+err.Error())
	}

	var reply map[string]any
	if err := jsonscan.Decode(raw, &reply); err != nil {
		log.Warn().Msgf("%s - unparseable model reply (%d chars)", logPrefix, len(raw))
		return &Result{
			Success:     false,
			Error:       "Failed to parse AI response",
			ErrorCode:   CodeUnparseableOutput,
			RawResponse: raw,
		}
	}

	name, _ := reply["function_name"].(string)
	explanation, _ := reply["explanation"].(string)
	params, _ := reply["parameters"].(map[string]any)
	if params == nil {
		params = map[string]any{}
	}

	desc, found := d.registry.Lookup(name)
	if !found {
		if explanation == "" {
			explanation = "No matching function found"
		}
		log.Info().Msgf("%s - no operation matched (model chose %q)", logPrefix, name)
		return &Result{
			Success:            false,
			Explanation:        explanation,
			ErrorCode:          CodeNoMatch,
			AvailableFunctions: d.registry.Names(),
		}
	}
	span.SetAttributes(attribute.String("dispatch.operation", desc.Name))

	params = d.registry.Prepare(desc.Kind, params)
	opResult, err := d.invoke(ctx, desc, params)
	if err != nil {
		code := CodeInvocationFailed
		var perr *registry.ParamError
		if errors.As(err, &perr) {
			code = CodeInvalidParameters
		}
		log.Warn().Err(err).Msgf("%s - %s could not be invoked", logPrefix, desc.Name)
		res := failure(code, err.Error())
		res.FunctionCalled = &desc.Name
		res.Parameters = params
		res.Explanation = explanation
		return res
	}

	log.Info().Msgf("%s - %s invoked (operation success=%t)", logPrefix, desc.Name, opResult.Success)
	return &Result{
		Success:        true,
		FunctionCalled: &desc.Name,
		Parameters:     params,
		Explanation:    explanation,
		Result:         opResult,
	}
}

// invoke runs the operation, converting a panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, desc registry.Descriptor, params map[string]any) (res *registry.OperationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("%s - panic in %s: %v", logPrefix, desc.Name, r)
			res, err = nil, fmt.Errorf("panic in %s: %v", desc.Name, r)
		}
	}()
	return d.registry.Invoke(ctx, desc.Kind, params)
}

func failure(code, message string) *Result {
	return &Result{Success: false, Error: message, ErrorCode: code}
}

// Serve answers one query envelope. A missing query is the only request-level
// failure; everything else is reported in the dispatch Result. UserID, when
// set, overrides any user_id in the context.
func (d *Dispatcher) Serve(ctx context.Context, req *QueryRequest) *QueryResponse {
	log.Debug().Msgf("%s - query id=%s", logPrefix, req.ID)

	if strings.TrimSpace(req.Query) == "" {
		return &QueryResponse{
			ID: req.ID,
			Ok: false,
			Error: &ErrorDetail{
				Code:    CodeInvalidArgument,
				Message: "Query is required",
			},
		}
	}

	queryCtx := make(map[string]any, len(req.Context)+1)
	for k, v := range req.Context {
		queryCtx[k] = v
	}
	if req.UserID != "" {
		queryCtx["user_id"] = req.UserID
	}
	return &QueryResponse{ID: req.ID, Ok: true, Result: d.Dispatch(ctx, req.Query, queryCtx)}
}

const preamble = `You are an AI assistant for WKC (wkc.vercel.app) that helps users manage their product inventory and orders through natural language.
Understand the user's query, pick the one function that fulfils it, extract its parameters from the query and context, and briefly explain what will be done.`

const responseFormat = `Respond with a single JSON object:
{"function_name": "name of the function to call", "parameters": {"param": "value"}, "explanation": "what this call will do"}

If no function fits the query, respond with:
{"function_name": null, "parameters": {}, "explanation": "No matching function found for this query"}`

func (d *Dispatcher) buildPrompt(query string, queryCtx map[string]any) (string, error) {
	catalog, err := d.registry.PromptCatalog()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\nContext Information:\n")
	keys := make([]string, 0, len(queryCtx))
	for k := range queryCtx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %v\n", k, queryCtx[k])
	}
	fmt.Fprintf(&b, "\nUser Query: \"%s\"\n\nAvailable Functions:\n%s\n\n%s\n", query, catalog, responseFormat)
	return b.String(), nil
}
