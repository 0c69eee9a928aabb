package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wkc-labs/wkc-server/pkg/catalog"
)

const invokeLogPrefix = "registry:invoke"

// OperationResult is the operation-level outcome, nested by the dispatcher
// under its own result envelope.
type OperationResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ParamError reports parameters whose types do not match the descriptor.
type ParamError struct {
	Operation string
	Err       error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameters for %s: %v", e.Operation, e.Err)
}

func (e *ParamError) Unwrap() error { return e.Err }

// Invoke runs operation k with loosely-typed parameters (as produced by the
// model). Parameters are defaulted, coerced, type-checked against the
// compiled schema and decoded into the typed struct for k; a type mismatch is
// returned as *ParamError. Unknown parameter names are ignored. Everything
// after decoding, including missing required fields, is reported in the
// returned OperationResult.
func (r *Registry) Invoke(ctx context.Context, k Kind, raw map[string]any) (*OperationResult, error) {
	schema, ok := r.schemas[k]
	if !ok {
		return nil, &ParamError{Operation: k.String(), Err: fmt.Errorf("operation not registered")}
	}
	d := r.descriptor(k)

	values := prepare(d, raw)
	data, err := json.Marshal(values)
	if err != nil {
		return nil, &ParamError{Operation: d.Name, Err: err}
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParamError{Operation: d.Name, Err: err}
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &ParamError{Operation: d.Name, Err: err}
	}

	log.Debug().Msgf("%s - invoking %s", invokeLogPrefix, d.Name)

	switch k {
	case KindGetSellerProducts:
		return invoke(ctx, d.Name, data, r.getSellerProducts)
	case KindGetProductDetails:
		return invoke(ctx, d.Name, data, r.getProductDetails)
	case KindCreateProduct:
		return invoke(ctx, d.Name, data, r.createProduct)
	case KindUpdateProduct:
		return invoke(ctx, d.Name, data, r.updateProduct)
	case KindDeleteProduct:
		return invoke(ctx, d.Name, data, r.deleteProduct)
	case KindSearchProducts:
		return invoke(ctx, d.Name, data, r.searchProducts)
	case KindUpdateProductQuantity:
		return invoke(ctx, d.Name, data, r.updateProductQuantity)
	case KindGetUserOrders:
		return invoke(ctx, d.Name, data, r.getUserOrders)
	case KindGetOrderDetails:
		return invoke(ctx, d.Name, data, r.getOrderDetails)
	case KindPlaceOrder:
		return invoke(ctx, d.Name, data, r.placeOrder)
	case KindUpdateOrderStatus:
		return invoke(ctx, d.Name, data, r.updateOrderStatus)
	}
	return nil, &ParamError{Operation: d.Name, Err: fmt.Errorf("no handler for operation kind %d", int(k))}
}

func invoke[P any](ctx context.Context, name string, data []byte, handler func(context.Context, P) *OperationResult) (*OperationResult, error) {
	var p P
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &ParamError{Operation: name, Err: err}
	}
	if field := missingRequired(&p); field != "" {
		return &OperationResult{
			Success: false,
			Error:   "Missing required field: " + field,
			Code:    catalog.CodeInvalidArgument,
		}, nil
	}
	return handler(ctx, p), nil
}

// Prepare returns the parameters Invoke would pass on for operation k: unknown
// names and nulls dropped, defaults filled and quoted scalars coerced.
// Preparing an already prepared map returns an equal map.
func (r *Registry) Prepare(k Kind, raw map[string]any) map[string]any {
	return prepare(r.descriptor(k), raw)
}

// prepare copies raw, dropping nulls and unknown names, filling descriptor
// defaults and coercing string-encoded scalars to their declared types.
func prepare(d Descriptor, raw map[string]any) map[string]any {
	known := make(map[string]ParamSpec, len(d.Parameters))
	for _, p := range d.Parameters {
		known[p.Name] = p
	}

	out := make(map[string]any, len(d.Parameters))
	for name, v := range raw {
		spec, ok := known[name]
		if !ok {
			log.Debug().Msgf("%s - %s: ignoring unknown parameter %q", invokeLogPrefix, d.Name, name)
			continue
		}
		if v == nil {
			continue
		}
		out[name] = coerce(spec.Type, v)
	}
	for _, p := range d.Parameters {
		if _, set := out[p.Name]; !set && p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}

// coerce converts values the model commonly quotes ("25", "true") and
// integral floats into the declared type. Anything else passes through for
// the schema to judge.
func coerce(t ParamType, v any) any {
	switch t {
	case TypeInteger:
		switch n := v.(type) {
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				return i
			}
		case float64:
			if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
				return int64(n)
			}
		}
	case TypeNumber:
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(s, "$")), 64); err == nil {
				return f
			}
		}
	case TypeBoolean:
		if s, ok := v.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b
			}
		}
	case TypeString:
		switch n := v.(type) {
		case float64:
			return strconv.FormatFloat(n, 'f', -1, 64)
		case int:
			return strconv.Itoa(n)
		}
	}
	return v
}
