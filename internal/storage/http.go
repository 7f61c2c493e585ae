package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mossy-p/castiq/internal/apperr"
)

const serviceName = "storage"

// HTTP talks to a bucket-style object store REST API:
//
//	POST {base}/object/{bucket}/{name}  -> {"Key": "..."}
//	GET  {base}/object/{bucket}/{name}
type HTTP struct {
	baseURL string
	bucket  string
	key     string
	client  *http.Client
}

func NewHTTP(baseURL, bucket, key string, timeout time.Duration) *HTTP {
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		key:     key,
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTP) objectURL(name string) string {
	return fmt.Sprintf("%s/object/%s/%s", h.baseURL, url.PathEscape(h.bucket), url.PathEscape(name))
}

func (h *HTTP) Upload(ctx context.Context, name string, body io.Reader, contentType string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	target := h.objectURL(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	h.authorize(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", h.transportError(target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", statusError(resp)
	}

	var out struct {
		Key string `json:"Key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Key == "" {
		return h.bucket + "/" + name, nil
	}
	return out.Key, nil
}

func (h *HTTP) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	target := h.objectURL(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	h.authorize(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, h.transportError(target, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	case resp.StatusCode >= 300:
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp.Body, nil
}

func (h *HTTP) authorize(req *http.Request) {
	if h.key != "" {
		req.Header.Set("Authorization", "Bearer "+h.key)
		req.Header.Set("apikey", h.key)
	}
}

func (h *HTTP) transportError(target string, err error) error {
	if apperr.IsConnectFailure(err) {
		return &apperr.ServiceUnreachableError{Service: serviceName, URL: target, Err: err}
	}
	return &apperr.ServiceFailureError{Service: serviceName, Err: err}
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &apperr.ServiceRejectedError{Service: serviceName, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return &apperr.ServiceFailureError{Service: serviceName, StatusCode: resp.StatusCode, Body: string(body)}
}
