package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mossy-p/castiq/internal/apperr"
)

// HFClient calls a Hugging Face style inference endpoint:
// POST {baseURL}/{model} {"inputs": ..., "parameters": {...}}.
type HFClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHFClient(baseURL, token string, timeout time.Duration) *HFClient {
	return &HFClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxLength int  `json:"max_length"`
	MinLength int  `json:"min_length"`
	DoSample  bool `json:"do_sample"`
}

func (c *HFClient) Summarize(ctx context.Context, text string, profile Profile) (string, error) {
	payload, err := json.Marshal(hfRequest{
		Inputs: text,
		Parameters: hfParameters{
			MaxLength: profile.MaxLength,
			MinLength: profile.MinLength,
			DoSample:  false,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal summarization request: %w", err)
	}

	target := c.baseURL + "/" + profile.Model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build summarization request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if apperr.IsConnectFailure(err) {
			return "", &apperr.ServiceUnreachableError{Service: serviceName, URL: target, Err: err}
		}
		return "", &apperr.ServiceFailureError{Service: serviceName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &apperr.ServiceFailureError{Service: serviceName, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", &apperr.ServiceRejectedError{Service: serviceName, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if resp.StatusCode >= 300 {
		return "", &apperr.ServiceFailureError{Service: serviceName, StatusCode: resp.StatusCode, Body: string(body)}
	}

	summary, err := parseSummary(body)
	if err != nil {
		return "", &apperr.ServiceFailureError{Service: serviceName, StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}
	return summary, nil
}

// parseSummary accepts [{"summary_text": ...}], {"summary_text": ...} or a bare string.
func parseSummary(body []byte) (string, error) {
	type item struct {
		SummaryText string `json:"summary_text"`
	}

	var list []item
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) > 0 && list[0].SummaryText != "" {
			return strings.TrimSpace(list[0].SummaryText), nil
		}
		return "", errors.New("empty summary list")
	}

	var single item
	if err := json.Unmarshal(body, &single); err == nil && single.SummaryText != "" {
		return strings.TrimSpace(single.SummaryText), nil
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil && s != "" {
		return strings.TrimSpace(s), nil
	}

	return "", errors.New("unrecognized summary response")
}
