package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mossy-p/castiq/internal/apperr"
)

func TestParseSummary(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"array", `[{"summary_text":" first "}]`, "first", false},
		{"object", `{"summary_text":"obj"}`, "obj", false},
		{"bare string", `"just text"`, "just text", false},
		{"empty array", `[]`, "", true},
		{"unknown", `{"error":"loading"}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSummary([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSummary() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHFClientRequestShape(t *testing.T) {
	var got hfRequest
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`[{"summary_text":"done"}]`))
	}))
	defer srv.Close()

	c := NewHFClient(srv.URL, "tok", 5*time.Second)
	out, err := c.Summarize(context.Background(), "some text", Profile{Model: "org/model", MaxLength: 130, MinLength: 30})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if out != "done" {
		t.Errorf("summary = %q", out)
	}
	if auth != "Bearer tok" || path != "/org/model" {
		t.Errorf("auth=%q path=%q", auth, path)
	}
	if got.Inputs != "some text" || got.Parameters.MaxLength != 130 || got.Parameters.MinLength != 30 || got.Parameters.DoSample {
		t.Errorf("request = %+v", got)
	}
}

func TestHFClientStatusKinds(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusBadRequest, func(err error) bool {
			var e *apperr.ServiceRejectedError
			return errors.As(err, &e) && e.Body != ""
		}},
		{http.StatusServiceUnavailable, func(err error) bool {
			var e *apperr.ServiceFailureError
			return errors.As(err, &e) && e.StatusCode == http.StatusServiceUnavailable
		}},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"model busy"}`, tt.status)
		}))

		_, err := NewHFClient(srv.URL, "", 5*time.Second).Summarize(context.Background(), "x", Profile{Model: "m"})
		if !tt.check(err) {
			t.Errorf("status %d: unexpected error %v", tt.status, err)
		}
		srv.Close()
	}
}
