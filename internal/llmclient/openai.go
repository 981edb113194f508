package llmclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/net/http2"
)

// OpenAIClient implements Client against any OpenAI-compatible
// chat/completions endpoint, including local OpenAI-compatible gateways.
//
// The underlying transport forces HTTP/2 (golang.org/x/net/http2): fewer,
// multiplexed connections hold up better under the scrubber's
// bounded-concurrency chunk fan-out than one new HTTP/1.1 connection per
// in-flight chunk.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient builds a client for apiKey against baseURL (empty uses
// the public OpenAI API).
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{
		Timeout: 0, // per-request deadlines come from ctx's adaptive timeout
		Transport: &http2.Transport{
			AllowHTTP: false,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}
}

// ChatJSON sends a chat-completion request with response_format:json_object
// and returns the raw JSON content for the caller to parse defensively:
// unknown fields should be ignored and a missing entities list treated
// as empty.
func (c *OpenAIClient) ChatJSON(ctx context.Context, req Request) (Response, error) {
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
	}
	if req.JSONObject {
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return Response{}, classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("llmclient: empty choices in response")
	}

	out := Response{Content: resp.Choices[0].Message.Content}
	if resp.Usage.TotalTokens > 0 {
		out.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		}
	}
	return out, nil
}

// classifyError wraps provider errors so auth/validation failures (HTTP
// 400/401) surface as AuthError, preventing the detector's retry loop from
// retrying a request that can never succeed.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if ok := asAPIError(err, &apiErr); ok {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusBadRequest {
			return &AuthError{Status: apiErr.HTTPStatusCode, Err: err}
		}
	}
	return err
}

func asAPIError(err error, target **openai.APIError) bool {
	ae, ok := err.(*openai.APIError)
	if ok {
		*target = ae
	}
	return ok
}
