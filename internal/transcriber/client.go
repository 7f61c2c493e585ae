// Package transcriber calls the external speech-to-text service.
package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/mossy-p/castiq/internal/apperr"
)

const serviceName = "transcription"

// Client posts 16 kHz mono PCM WAV audio as multipart field "audio" and
// expects {"transcript": "..."} back.
type Client struct {
	url    string
	client *http.Client
}

func New(url string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Transcribe streams audio to the service without buffering it in memory.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, fileName string) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// The writer may still be reading audio when the service answers early;
	// stop it and wait so the caller can close and remove the file.
	done := make(chan struct{})
	defer func() {
		pr.Close()
		<-done
	}()

	go func() {
		defer close(done)
		part, err := mw.CreateFormFile("audio", fileName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, audio); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, pr)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		if apperr.IsConnectFailure(err) {
			return "", &apperr.ServiceUnreachableError{Service: serviceName, URL: c.url, Err: err}
		}
		return "", &apperr.ServiceFailureError{Service: serviceName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", &apperr.ServiceFailureError{Service: serviceName, Err: err}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", &apperr.ServiceRejectedError{Service: serviceName, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if resp.StatusCode >= 300 {
		return "", &apperr.ServiceFailureError{Service: serviceName, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out struct {
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &apperr.ServiceFailureError{Service: serviceName, StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}
	return out.Transcript, nil
}
