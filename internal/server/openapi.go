package server

import "github.com/wkc-labs/wkc-server/pkg/registry"

// openAPI3 types for the operation catalog.
type openAPI3Spec struct {
	OpenAPI string                      `json:"openapi"`
	Info    openAPI3Info                `json:"info"`
	Paths   map[string]openAPI3PathItem `json:"paths"`
}

type openAPI3Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

type openAPI3PathItem struct {
	Post *openAPI3Operation `json:"post,omitempty"`
}

type openAPI3Operation struct {
	Summary     string                      `json:"summary"`
	Description string                      `json:"description,omitempty"`
	OperationID string                      `json:"operationId"`
	RequestBody *openAPI3RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]openAPI3Response `json:"responses"`
}

type openAPI3RequestBody struct {
	Content map[string]openAPI3MediaType `json:"content"`
}

type openAPI3Response struct {
	Description string                       `json:"description"`
	Content     map[string]openAPI3MediaType `json:"content,omitempty"`
}

type openAPI3MediaType struct {
	Schema map[string]any `json:"schema,omitempty"`
}

// operationResultSchema describes registry.OperationResult.
var operationResultSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"success": map[string]any{"type": "boolean"},
		"data":    map[string]any{},
		"message": map[string]any{"type": "string"},
		"error":   map[string]any{"type": "string"},
		"code":    map[string]any{"type": "string"},
	},
	"required": []string{"success"},
}

// buildOpenAPISpec builds an OpenAPI 3.0 spec with one POST path per
// operation under /operations.
func buildOpenAPISpec(descs []registry.Descriptor, version string) *openAPI3Spec {
	paths := make(map[string]openAPI3PathItem, len(descs))
	for _, d := range descs {
		paths["/operations/"+d.Name] = openAPI3PathItem{
			Post: &openAPI3Operation{
				Summary:     d.Name,
				Description: d.Description,
				OperationID: d.Name,
				RequestBody: &openAPI3RequestBody{
					Content: map[string]openAPI3MediaType{
						"application/json": {Schema: inputSchema(d)},
					},
				},
				Responses: map[string]openAPI3Response{
					"200": {
						Description: "Operation result",
						Content: map[string]openAPI3MediaType{
							"application/json": {Schema: operationResultSchema},
						},
					},
					"400": {Description: "Parameters of the wrong type"},
				},
			},
		}
	}
	return &openAPI3Spec{
		OpenAPI: "3.0.0",
		Info: openAPI3Info{
			Title:       "wkc-server operations",
			Description: "Operations available to natural-language queries",
			Version:     version,
		},
		Paths: paths,
	}
}

func inputSchema(d registry.Descriptor) map[string]any {
	props := make(map[string]any, len(d.Parameters))
	var required []string
	for _, p := range d.Parameters {
		prop := map[string]any{"type": string(p.Type), "description": p.Description}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
