package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaURL = "http://localhost:11434"
	// Generation is blocking; keep it bounded so session-end never
	// hangs on a stuck backend.
	defaultOllamaTimeout = 60 * time.Second
	generateTemperature  = 0.3
)

// Ollama implements Backend against an Ollama-compatible HTTP API.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// OllamaOption configures an Ollama client.
type OllamaOption func(*Ollama)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) OllamaOption {
	return func(o *Ollama) { o.client.Timeout = d }
}

// NewOllama creates a client for the given base URL and model.
// An empty baseURL uses the default local endpoint.
func NewOllama(baseURL, model string, opts ...OllamaOption) *Ollama {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	o := &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: defaultOllamaTimeout},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Model returns the configured model identifier.
func (o *Ollama) Model() string {
	return o.model
}

// Available reports whether the backend answers its tags endpoint.
func (o *Ollama) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// HasModel reports whether the configured model is pulled, comparing
// names without their tag suffix.
func (o *Ollama) HasModel(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}
	want := baseModelName(o.model)
	for _, m := range tags.Models {
		if baseModelName(m.Name) == want {
			return true
		}
	}
	return false
}

type ollamaGenerateRequest struct {
	Model   string                `json:"model"`
	Prompt  string                `json:"prompt"`
	Stream  bool                  `json:"stream"`
	Options ollamaGenerateOptions `json:"options"`
}

type ollamaGenerateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Generate runs a single non-streaming completion with fixed low
// temperature and the given output token bound.
func (o *Ollama) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaGenerateOptions{
			Temperature: generateTemperature,
			NumPredict:  maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("generate returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding generate response: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}

func baseModelName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return name
}
