package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go-soda-machine/internal/config"
	"go-soda-machine/pkg/validator"
)

const promptTemplate = `You are the assistant of a soda vending machine.
Interpret the user's sentence and return ONLY a JSON object.

If it is a purchase:
{"type": "purchase", "data": {"product_name": "Coca-Cola", "quantity": 3}}

If the sentence is ambiguous or incomplete:
{"type": "unknown", "data": {"reason": "Ambiguous or incomplete text"}}

Sentence: %q`

// jsonPattern grabs the first "{" through the last "}" of the model's reply.
// Deliberately permissive: models wrap JSON in prose and code fences, and the
// greedy match strips both. It misfires if the reply contains two unrelated
// brace groups, which we accept.
var jsonPattern = regexp.MustCompile(`(?s)\{.*\}`)

// GeminiParser turns free text into an Intent by asking the Gemini
// generateContent endpoint. It never returns an error: every failure mode,
// from a missing API key to a malformed reply, degrades to an Unknown intent.
type GeminiParser struct {
	client  *http.Client
	apiKey  string
	model   string
	baseURL string
}

func NewGeminiParser(cfg config.GeminiConfig) *GeminiParser {
	return &GeminiParser{
		client:  &http.Client{Timeout: 30 * time.Second},
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// generateContent request/response wire shapes, reduced to the fields we use.
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// envelope is the JSON object the prompt instructs the model to produce.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Parse sends the user's message to the language service and returns the
// typed intent it resolves to.
func (p *GeminiParser) Parse(ctx context.Context, message string) Intent {
	reply, err := p.generate(ctx, fmt.Sprintf(promptTemplate, message))
	if err != nil {
		return Unrecognized(fmt.Sprintf("language service error: %v", err))
	}

	raw := jsonPattern.FindString(reply)
	if raw == "" {
		return Unrecognized("no JSON object found in language service reply")
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Unrecognized(fmt.Sprintf("malformed intent JSON: %v", err))
	}

	switch Type(env.Type) {
	case TypePurchase:
		var purchase Purchase
		if err := json.Unmarshal(env.Data, &purchase); err != nil {
			return Unrecognized(fmt.Sprintf("malformed purchase data: %v", err))
		}
		if errs := validator.ValidateStruct(purchase); len(errs) > 0 {
			return Unrecognized(fmt.Sprintf("invalid purchase data: field '%s' failed on tag '%s'",
				errs[0].FailedField, errs[0].Tag))
		}
		return Intent{Type: TypePurchase, Purchase: &purchase}

	case TypeUnknown:
		var unknown Unknown
		if err := json.Unmarshal(env.Data, &unknown); err != nil {
			return Unrecognized(fmt.Sprintf("malformed unknown data: %v", err))
		}
		if unknown.Reason == "" {
			return Unrecognized("language service gave no reason")
		}
		return Intent{Type: TypeUnknown, Unknown: &unknown}

	default:
		return Unrecognized(fmt.Sprintf("unrecognized intent type %q", env.Type))
	}
}

// generate performs one synchronous generateContent round-trip and returns
// the first candidate's text.
func (p *GeminiParser) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.baseURL, p.model, url.QueryEscape(p.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling language service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("language service returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("language service returned no candidates")
	}

	return decoded.Candidates[0].Content.Parts[0].Text, nil
}
