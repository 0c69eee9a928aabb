package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	logPrefix = "genai:gemini"

	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash"
)

var tracer = otel.Tracer("wkc-server/genai")

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned no text")

// APIError is a non-200 response or an error object from the hosted model.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini api error (status %d %s): %s", e.StatusCode, e.Status, e.Message)
}

// GeminiClient calls the Gemini generateContent REST endpoint.
type GeminiClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// GeminiOption configures a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) GeminiOption {
	return func(g *GeminiClient) { g.client = c }
}

// WithBaseURL points the client at a different API root (tests, proxies).
func WithBaseURL(u string) GeminiOption {
	return func(g *GeminiClient) {
		if u != "" {
			g.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithModel selects the model name.
func WithModel(m string) GeminiOption {
	return func(g *GeminiClient) {
		if m != "" {
			g.model = m
		}
	}
}

// NewGeminiClient creates a client authenticated with apiKey.
func NewGeminiClient(apiKey string, opts ...GeminiOption) *GeminiClient {
	g := &GeminiClient{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		model:   DefaultModel,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Model returns the configured model name.
func (g *GeminiClient) Model() string { return g.model }

// -- Gemini wire types --

type gemRequest struct {
	Contents []gemContent `json:"contents"`
}

type gemContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []gemPart `json:"parts"`
}

type gemPart struct {
	Text string `json:"text"`
}

type gemResponse struct {
	Candidates []struct {
		Content      gemContent `json:"content"`
		FinishReason string     `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Generate sends prompt as a single user turn and returns the concatenated
// text parts of the first candidate.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "genai.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("genai.model", g.model), attribute.Int("genai.prompt_chars", len(prompt)))

	text, err := g.generate(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("genai.response_chars", len(text)))
	return text, nil
}

func (g *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(gemRequest{
		Contents: []gemContent{{Role: "user", Parts: []gemPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("%s - marshal request: %w", logPrefix, err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s - create request: %w", logPrefix, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s - http request: %w", logPrefix, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s - read response: %w", logPrefix, err)
	}
	log.Debug().Msgf("%s - model=%s status=%d took=%s", logPrefix, g.model, resp.StatusCode, time.Since(start))

	var gr gemResponse
	decodeErr := json.Unmarshal(respBody, &gr)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		if decodeErr == nil && gr.Error != nil {
			msg = gr.Error.Message
		}
		return "", &APIError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode), Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%s - unmarshal response: %w", logPrefix, decodeErr)
	}
	if gr.Error != nil {
		return "", &APIError{StatusCode: gr.Error.Code, Status: gr.Error.Status, Message: gr.Error.Message}
	}
	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%s - prompt blocked: %s", logPrefix, gr.PromptFeedback.BlockReason)
	}
	if len(gr.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
