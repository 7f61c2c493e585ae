package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mossy-p/castiq/internal/apperr"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		blob    string
		wantErr bool
	}{
		{"plain", "recording.webm", false},
		{"empty", "  ", true},
		{"traversal", "../etc/passwd", true},
		{"nested", "a/b.webm", true},
		{"backslash", `a\b.webm`, true},
		{"dot", ".", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateName(tt.blob); (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.blob, err, tt.wantErr)
			}
		})
	}
}

func TestDiskRoundTrip(t *testing.T) {
	dir := t.TempDir()
	disk, err := NewDisk(dir)
	if err != nil {
		t.Fatalf("NewDisk() error = %v", err)
	}
	ctx := context.Background()

	path, err := disk.Upload(ctx, "clip.webm", strings.NewReader("video-bytes"), "video/webm")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if path != filepath.Join(dir, "clip.webm") {
		t.Errorf("path = %q", path)
	}

	rc, err := disk.Download(ctx, "clip.webm")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "video-bytes" {
		t.Errorf("content = %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("storage dir has %d entries, want only the blob", len(entries))
	}
}

func TestDiskDownloadMissing(t *testing.T) {
	disk, _ := NewDisk(t.TempDir())
	if _, err := disk.Download(context.Background(), "nope.webm"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestHTTPUploadAndDownload(t *testing.T) {
	var gotAuth, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/object/recordings/a.webm":
			gotAuth = r.Header.Get("Authorization")
			gotType = r.Header.Get("Content-Type")
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			w.Write([]byte(`{"Key":"recordings/a.webm"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/object/recordings/a.webm":
			w.Write([]byte("payload"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	gw := NewHTTP(srv.URL+"/", "recordings", "secret", 5*time.Second)
	ctx := context.Background()

	path, err := gw.Upload(ctx, "a.webm", strings.NewReader("payload"), "video/webm")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if path != "recordings/a.webm" {
		t.Errorf("path = %q", path)
	}
	if gotAuth != "Bearer secret" || gotType != "video/webm" || gotBody != "payload" {
		t.Errorf("upload request: auth=%q type=%q body=%q", gotAuth, gotType, gotBody)
	}

	rc, err := gw.Download(ctx, "a.webm")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "payload" {
		t.Errorf("content = %q", data)
	}

	if _, err := gw.Download(ctx, "missing.webm"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing blob error = %v, want ErrNotFound", err)
	}
}

func TestHTTPErrorKinds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "forbidden") {
			http.Error(w, "bad key", http.StatusForbidden)
			return
		}
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := NewHTTP(srv.URL, "b", "", 5*time.Second)
	ctx := context.Background()

	_, err := gw.Download(ctx, "forbidden.webm")
	var rejected *apperr.ServiceRejectedError
	if !errors.As(err, &rejected) || rejected.StatusCode != http.StatusForbidden {
		t.Errorf("4xx error = %v, want ServiceRejectedError", err)
	}

	_, err = gw.Download(ctx, "other.webm")
	var failure *apperr.ServiceFailureError
	if !errors.As(err, &failure) || failure.StatusCode != http.StatusBadGateway {
		t.Errorf("5xx error = %v, want ServiceFailureError", err)
	}
}

func TestHTTPUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	gw := NewHTTP(addr, "b", "", 2*time.Second)
	_, err := gw.Download(context.Background(), "a.webm")

	var unreachable *apperr.ServiceUnreachableError
	if !errors.As(err, &unreachable) {
		t.Errorf("error = %v, want ServiceUnreachableError", err)
	}
}
