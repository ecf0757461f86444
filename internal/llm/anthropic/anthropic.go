// Package anthropic is a core.LLMProvider backed by the Anthropic Messages
// API: the same klient construction as the other internal/llm providers,
// with the request shape reduced to a single-turn generate(prompt, params)
// -> text capability.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/worldline-go/klient"

	"github.com/aramirez087/tuitbot/internal/core"
)

const DefaultBaseURL = "https://api.anthropic.com"
const defaultTimeout = 60 * time.Second

type Provider struct {
	Model  string
	client *klient.Client
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type response struct {
	Type       string         `json:"type"`
	Error      *apiError      `json:"error,omitempty"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// New builds an Anthropic-backed provider. baseURL defaults to DefaultBaseURL.
func New(apiKey, model, baseURL, proxy string, insecureSkipVerify bool) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	opts := []klient.OptionClientFn{
		klient.WithBaseURL(baseURL),
		klient.WithLogger(slog.Default()),
		klient.WithHeaderSet(http.Header{
			"X-Api-Key":         []string{apiKey},
			"Anthropic-Version": []string{"2023-06-01"},
			"Content-Type":      []string{"application/json"},
		}),
	}
	if proxy != "" {
		opts = append(opts, klient.WithProxy(proxy))
	}
	if insecureSkipVerify {
		opts = append(opts, klient.WithInsecureSkipVerify(true))
	}

	client, err := klient.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("build anthropic client: %w", err)
	}

	return &Provider{Model: model, client: client}, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, params core.GenerateParams) (string, error) {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	reqBody := request{
		Model:     p.Model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", core.Wrap(core.CodeSerializationError, "marshal anthropic request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", core.Wrap(core.CodeLLMError, "build anthropic request", err)
	}

	var result response
	doErr := p.client.Do(req, func(r *http.Response) error {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &result)
	})
	if doErr != nil {
		if ctx.Err() != nil {
			return "", core.NewError(core.CodeLLMTimeout, "anthropic request timed out")
		}
		return "", core.Wrap(core.CodeLLMError, "anthropic request failed", doErr)
	}

	if result.Type == "error" && result.Error != nil {
		return "", core.NewError(core.CodeLLMError, fmt.Sprintf("anthropic error: %s", result.Error.Message))
	}

	var text string
	for _, block := range result.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return text, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.Generate(ctx, "ping", core.GenerateParams{MaxTokens: 1})
	return err
}
