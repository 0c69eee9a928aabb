package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wkc-labs/wkc-server/pkg/catalog"
	"github.com/wkc-labs/wkc-server/pkg/genai"
	"github.com/wkc-labs/wkc-server/pkg/jsonscan"
)

const pipelineLogPrefix = "intake:pipeline"

// DefaultConfirmation is returned when no confirmation text can be generated.
const DefaultConfirmation = "Thank you for your order! We've received it and will process it shortly."

const persona = `You are an AI assistant for WKC (wkc.vercel.app) that turns chat messages into orders.
Extract what was ordered and any instructions, preferences or requirements.
Be friendly, helpful and accurate.`

const detailsSchema = `Respond with a single JSON object with these fields:
- items: list of {"name": string, "quantity": integer, "price": number (optional), "special_notes": string (optional)}
- special_instructions: string
- delivery_preference: string
- additional_requirements: string
- ai_analysis: brief summary of the order`

// Pipeline runs single prompt/parse round trips against a Generator. It holds
// no state between calls.
type Pipeline struct {
	gen genai.Generator
}

// NewPipeline creates a Pipeline.
func NewPipeline(gen genai.Generator) *Pipeline {
	return &Pipeline{gen: gen}
}

// ExtractResult is the outcome of ExtractOrder. Details is always usable; Err
// records why the placeholder was substituted, if it was.
type ExtractResult struct {
	Details     OrderDetails
	AIProcessed bool
	Err         error
}

// ExtractOrder asks the model to structure chatText as an order. When the
// model call fails or its reply holds no object, Details is a one-item
// placeholder whose analysis is the original message.
func (p *Pipeline) ExtractOrder(ctx context.Context, chatText, userID string) *ExtractResult {
	prompt := fmt.Sprintf("%s\n\nUser ID: %s\nChat Message: \"%s\"\n\n%s\n", persona, userID, chatText, detailsSchema)

	reply, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Msgf("%s - order extraction failed for user %s", pipelineLogPrefix, userID)
		return &ExtractResult{Details: placeholder(chatText), Err: err}
	}

	var raw map[string]any
	if err := jsonscan.Decode(reply, &raw); err != nil {
		log.Warn().Err(err).Msgf("%s - unusable extraction reply for user %s", pipelineLogPrefix, userID)
		return &ExtractResult{Details: placeholder(chatText), Err: err}
	}
	return &ExtractResult{Details: detailsFromMap(raw, truncate(reply, 200)), AIProcessed: true}
}

// SummarizeForConfirmation writes a customer-facing confirmation for details.
// It never fails; DefaultConfirmation stands in for any model error.
func (p *Pipeline) SummarizeForConfirmation(ctx context.Context, details OrderDetails) string {
	encoded, err := json.Marshal(details)
	if err != nil {
		return DefaultConfirmation
	}
	prompt := fmt.Sprintf(`Write a friendly order confirmation message for this order:

Order Details: %s

Confirm that the order was received, summarize the items and any special instructions,
and describe the next steps. Keep it concise and professional.`, encoded)

	reply, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Msgf("%s - confirmation generation failed", pipelineLogPrefix)
		return DefaultConfirmation
	}
	if reply = strings.TrimSpace(reply); reply == "" {
		return DefaultConfirmation
	}
	return reply
}

// ApplyModification sends the full original order and the request text and
// expects a complete replacement back. An unusable reply yields the
// placeholder tagged with the request text; a failed model call is an error.
func (p *Pipeline) ApplyModification(ctx context.Context, original *catalog.Order, request string) (OrderDetails, string, error) {
	encoded, err := json.Marshal(original)
	if err != nil {
		return OrderDetails{}, "", fmt.Errorf("encode original order: %w", err)
	}
	prompt := fmt.Sprintf(`%s

Original Order: %s
Modification Request: "%s"

Apply the modification request and return the complete updated order.
%s
`, persona, encoded, request, detailsSchema)

	reply, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		return OrderDetails{}, "", err
	}

	summary := "Order modified based on: " + request
	var raw map[string]any
	if err := jsonscan.Decode(reply, &raw); err != nil {
		log.Warn().Msgf("%s - unusable modification reply for order %s", pipelineLogPrefix, original.ID)
		return placeholder(request), summary, nil
	}
	return detailsFromMap(raw, truncate(reply, 200)), summary, nil
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
