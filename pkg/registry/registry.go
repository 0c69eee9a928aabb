// Package registry is the closed catalog of operations the natural-language
// dispatcher may invoke: their descriptors, typed parameters and handlers.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wkc-labs/wkc-server/pkg/catalog"
	"github.com/wkc-labs/wkc-server/pkg/intake"
)

const logPrefix = "registry:registry"

// Catalog is the product and order backend the operations call.
type Catalog interface {
	GetSellerProducts(ctx context.Context, userID string, page, limit int) (*catalog.ProductPage, error)
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (string, error)
	UpdateProduct(ctx context.Context, id string, upd catalog.ProductUpdate) (*catalog.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	SearchProducts(ctx context.Context, userID, term, category string) ([]catalog.Product, error)
	UpdateProductQuantity(ctx context.Context, id string, quantity int) error
	GetUserOrders(ctx context.Context, userID string) ([]catalog.Order, error)
	GetOrder(ctx context.Context, id string) (*catalog.Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string) error
}

// OrderPlacer places orders, optionally running the intake pipeline first.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req intake.PlaceOrderRequest) (*intake.PlaceOrderResult, error)
}

// Registry holds the descriptors and compiled parameter schemas of every
// operation kind.
type Registry struct {
	catalog     Catalog
	placer      OrderPlacer
	descriptors []Descriptor
	byName      map[string]Kind
	schemas     map[Kind]*jsonschema.Schema
}

// New builds the registry. It fails when any kind lacks a descriptor or
// parameter type, when the two disagree, or when a schema does not compile,
// so a broken catalog never reaches serving.
func New(cat Catalog, placer OrderPlacer) (*Registry, error) {
	if cat == nil || placer == nil {
		return nil, fmt.Errorf("%s - catalog and order placer are required", logPrefix)
	}
	return build(cat, placer, allKinds)
}

func build(cat Catalog, placer OrderPlacer, kinds []Kind) (*Registry, error) {
	r := &Registry{
		catalog: cat,
		placer:  placer,
		byName:  make(map[string]Kind, len(kinds)),
		schemas: make(map[Kind]*jsonschema.Schema, len(kinds)),
	}

	for _, k := range kinds {
		d, ok := describe(k)
		if !ok {
			return nil, fmt.Errorf("%s - operation %s has no descriptor", logPrefix, k)
		}
		params, ok := newParams(k)
		if !ok {
			return nil, fmt.Errorf("%s - operation %s has no parameter type", logPrefix, k)
		}
		if err := checkConsistency(d, params); err != nil {
			return nil, fmt.Errorf("%s - %w", logPrefix, err)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("%s - duplicate operation name %q", logPrefix, d.Name)
		}
		schema, err := compileSchema(d)
		if err != nil {
			return nil, fmt.Errorf("%s - %w", logPrefix, err)
		}

		r.descriptors = append(r.descriptors, d)
		r.byName[d.Name] = k
		r.schemas[k] = schema
	}

	log.Debug().Msgf("%s - Registered %d operations", logPrefix, len(r.descriptors))
	return r, nil
}

func compileSchema(d Descriptor) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(d.schema())
	if err != nil {
		return nil, fmt.Errorf("encode schema for %s: %w", d.Name, err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://wkc.schemas.local/operations/%s.schema.json", d.Name)
	if err := c.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("load schema for %s: %w", d.Name, err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", d.Name, err)
	}
	return schema, nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	k, ok := r.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptor(k), true
}

func (r *Registry) descriptor(k Kind) Descriptor {
	for _, d := range r.descriptors {
		if d.Kind == k {
			return d
		}
	}
	return Descriptor{}
}

// List returns every descriptor in catalog order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Names returns every operation name in catalog order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d.Name)
	}
	return out
}

type promptEntry struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters"`
}

// PromptCatalog serializes the descriptors for inclusion in a model prompt.
// Each parameter renders as "<type> - <description>" plus its optionality.
func (r *Registry) PromptCatalog() (string, error) {
	entries := make([]promptEntry, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		params := make(map[string]string, len(d.Parameters))
		for _, p := range d.Parameters {
			line := fmt.Sprintf("%s - %s", p.Type, p.Description)
			switch {
			case p.Default != nil:
				line += fmt.Sprintf(" (default: %v)", p.Default)
			case !p.Required:
				line += " (optional)"
			}
			params[p.Name] = line
		}
		entries = append(entries, promptEntry{Name: d.Name, Description: d.Description, Parameters: params})
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%s - encode prompt catalog: %w", logPrefix, err)
	}
	return string(data), nil
}
