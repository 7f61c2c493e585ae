package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mossy-p/castiq/internal/apperr"
	"google.golang.org/genai"
)

const geminiPrompt = `Summarize the following text in plain English in roughly %d to %d words.
Keep the order of the content. Do not add information that is not in the text.

Text:
---
%s
---`

// GeminiClient summarizes through the Gemini API. Profile.Model is the Gemini
// model name; the length targets are expressed in the prompt.
type GeminiClient struct {
	client  *genai.Client
	timeout time.Duration
}

func NewGeminiClient(ctx context.Context, apiKey string, timeout time.Duration) (*GeminiClient, error) {
	return newGeminiClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, timeout)
}

func newGeminiClient(ctx context.Context, cfg *genai.ClientConfig, timeout time.Duration) (*GeminiClient, error) {
	cfg.HTTPClient = &http.Client{Transport: statusRecorder{next: http.DefaultTransport}}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, timeout: timeout}, nil
}

func (g *GeminiClient) Summarize(ctx context.Context, text string, profile Profile) (string, error) {
	prompt := fmt.Sprintf(geminiPrompt, profile.MinLength, profile.MaxLength, text)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var status int
	ctx = context.WithValue(ctx, statusKey{}, &status)

	result, err := g.client.Models.GenerateContent(ctx, profile.Model, genai.Text(prompt), nil)
	if err != nil {
		return "", classifyGemini(err, status, profile.Model)
	}

	if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		var sb strings.Builder
		for _, part := range result.Candidates[0].Content.Parts {
			if part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			return text, nil
		}
	}

	return "", &apperr.ServiceFailureError{Service: serviceName, Err: errors.New("empty response from Gemini")}
}

// classifyGemini maps a GenerateContent error onto the service error kinds.
// genai takes the code from the JSON error body, so a body without one falls
// back to the HTTP status of the response.
func classifyGemini(err error, status int, model string) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.Code
		if code == 0 {
			code = status
		}
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return &apperr.ServiceRejectedError{Service: serviceName, StatusCode: code, Body: apiErr.Message}
		}
		return &apperr.ServiceFailureError{Service: serviceName, StatusCode: code, Body: apiErr.Message, Err: err}
	}
	if apperr.IsConnectFailure(err) {
		return &apperr.ServiceUnreachableError{Service: serviceName, URL: "gemini:" + model, Err: err}
	}
	return &apperr.ServiceFailureError{Service: serviceName, Err: err}
}

type statusKey struct{}

// statusRecorder stores each response status in the *int found under
// statusKey in the request context.
type statusRecorder struct {
	next http.RoundTripper
}

func (r statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.next.RoundTrip(req)
	if resp != nil {
		if p, ok := req.Context().Value(statusKey{}).(*int); ok {
			*p = resp.StatusCode
		}
	}
	return resp, err
}
