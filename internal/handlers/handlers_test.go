package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/castiq/config"
	"github.com/mossy-p/castiq/internal/apperr"
	"github.com/mossy-p/castiq/internal/models"
	"github.com/mossy-p/castiq/internal/signaling"
	"github.com/mossy-p/castiq/internal/store"
)

// fakePipeline returns canned results and remembers its last input.
type fakePipeline struct {
	err      error
	uploaded string
	body     string
	lastFile string
	lastText string
}

func (f *fakePipeline) Upload(ctx context.Context, originalName string, body io.Reader, contentType string) (models.UploadResponse, error) {
	data, _ := io.ReadAll(body)
	f.uploaded, f.body = originalName, string(data)
	if f.err != nil {
		return models.UploadResponse{}, f.err
	}
	return models.UploadResponse{Message: "Upload successful", Path: "/data/u1.webm", FileName: "u1.webm"}, nil
}

func (f *fakePipeline) Render(ctx context.Context, fileName string) (models.RenderResponse, error) {
	f.lastFile = fileName
	if f.err != nil {
		return models.RenderResponse{}, f.err
	}
	return models.RenderResponse{Message: "Video rendered successfully", FinalPath: "/out/final.mp4", JobID: "job-1"}, nil
}

func (f *fakePipeline) Transcribe(ctx context.Context, fileName string) (models.TranscribeResponse, error) {
	f.lastFile = fileName
	if f.err != nil {
		return models.TranscribeResponse{}, f.err
	}
	return models.TranscribeResponse{Transcript: "hello", JobID: "job-2"}, nil
}

func (f *fakePipeline) Summarize(ctx context.Context, transcript string) (models.SummarizeResponse, error) {
	f.lastText = transcript
	if f.err != nil {
		return models.SummarizeResponse{}, f.err
	}
	return models.SummarizeResponse{
		SummaryResult: models.SummaryResult{Summary: "joined", Chunks: []string{"a", "b"}, Note: "merge failed"},
		JobID:         "job-3",
	}, nil
}

func (f *fakePipeline) Job(ctx context.Context, id string) (models.Job, error) {
	if id == "job-1" {
		return models.Job{ID: id, Kind: models.JobKindRender, Status: models.JobStatusDone}, nil
	}
	return models.Job{}, &apperr.ResourceMissingError{Kind: "job", Name: id, Err: store.ErrJobNotFound}
}

type fakeAssets struct{ ready bool }

func (f fakeAssets) Ready() bool { return f.ready }
func (f fakeAssets) Status() map[string]bool {
	return map[string]bool{"assets/intro.mp4": true, "assets/outro.mp4": f.ready}
}

type testEnv struct {
	router   *gin.Engine
	registry *signaling.Registry
	presence *store.Memory
	pipeline *fakePipeline
	cfg      *config.Config
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		AllowedOrigins: []string{"http://localhost:5173"},
		JWTSecret:      "secret",
	}
	cfg.Pipeline.TempDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}

	registry := signaling.NewRegistry()
	env := &testEnv{
		registry: registry,
		presence: store.NewMemory(),
		pipeline: &fakePipeline{},
		cfg:      cfg,
	}
	env.router = NewRouter(Deps{
		Config:   cfg,
		Registry: registry,
		Relay:    signaling.NewRelay(registry),
		Presence: env.presence,
		Pipeline: env.pipeline,
		Assets:   fakeAssets{ready: true},
	})
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestErrorResponseMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		wantDetail string
	}{
		{"input", apperr.Input("fileName is required"), http.StatusBadRequest, ""},
		{"missing", fmt.Errorf("wrap: %w", &apperr.ResourceMissingError{Kind: "recording", Name: "x.webm"}), http.StatusNotFound, ""},
		{"config", &apperr.ConfigError{Message: "render asset missing: assets/intro.mp4"}, http.StatusInternalServerError, "render asset missing: assets/intro.mp4"},
		{"process", &apperr.ExternalProcessError{Executable: "ffmpeg", ExitCode: 1, Diagnostics: []string{"line1", "line2"}}, http.StatusInternalServerError, "line1\nline2"},
		{"unreachable", &apperr.ServiceUnreachableError{Service: "transcription", URL: "http://x"}, http.StatusBadGateway, "Could not connect"},
		{"rejected", &apperr.ServiceRejectedError{Service: "summarization", StatusCode: 400, Body: "input too long"}, http.StatusBadGateway, "input too long"},
		{"exhausted", &apperr.RetryExhaustedError{Attempts: 3, Last: &apperr.ServiceFailureError{StatusCode: 503}}, http.StatusBadGateway, "3 attempts"},
		{"exhausted timeout", &apperr.RetryExhaustedError{Attempts: 3, Last: context.DeadlineExceeded}, http.StatusGatewayTimeout, ""},
		{"other", errors.New("boom"), http.StatusInternalServerError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorResponse(tt.err)
			if status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
			if body.Error == "" {
				t.Error("empty error message")
			}
			if !strings.Contains(body.Detail, tt.wantDetail) {
				t.Errorf("detail = %q, want it to contain %q", body.Detail, tt.wantDetail)
			}
		})
	}
}

func TestUploadHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("video", "call.webm")
	part.Write([]byte("video-bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := env.do(req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp models.UploadResponse
	decode(t, w, &resp)
	if resp.FileName != "u1.webm" || resp.Path == "" || resp.Message == "" {
		t.Errorf("response = %+v", resp)
	}
	if env.pipeline.uploaded != "call.webm" || env.pipeline.body != "video-bytes" {
		t.Errorf("pipeline got %q / %q", env.pipeline.uploaded, env.pipeline.body)
	}
}

func TestUploadWithoutFile(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := env.do(req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRenderHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(jsonRequest(http.MethodPost, "/render", `{"fileName":"rec.webm"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp models.RenderResponse
	decode(t, w, &resp)
	if resp.FinalPath != "/out/final.mp4" || resp.JobID != "job-1" {
		t.Errorf("response = %+v", resp)
	}
	if env.pipeline.lastFile != "rec.webm" {
		t.Errorf("pipeline got %q", env.pipeline.lastFile)
	}
}

func TestRenderHandlerErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	if w := env.do(jsonRequest(http.MethodPost, "/render", `not json`)); w.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d", w.Code)
	}

	env.pipeline.err = &apperr.ExternalProcessError{Executable: "ffmpeg", ExitCode: 1, Diagnostics: []string{"moov atom not found"}}
	w := env.do(jsonRequest(http.MethodPost, "/render", `{"fileName":"rec.webm"}`))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body models.ErrorResponse
	decode(t, w, &body)
	if !strings.Contains(body.Detail, "moov atom not found") {
		t.Errorf("detail = %q", body.Detail)
	}
}

func TestTranscribeUnreachable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.pipeline.err = fmt.Errorf("transcribe rec.webm: %w", &apperr.ServiceUnreachableError{Service: "transcription", URL: "http://localhost:5001/transcribe"})

	w := env.do(jsonRequest(http.MethodPost, "/transcribe", `{"fileName":"rec.webm"}`))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	var body models.ErrorResponse
	decode(t, w, &body)
	if !strings.Contains(body.Detail, "localhost:5001") {
		t.Errorf("detail = %q", body.Detail)
	}
}

func TestSummarizeHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(jsonRequest(http.MethodPost, "/summarize", `{"transcript":"long talk"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	decode(t, w, &resp)
	if resp["summary"] != "joined" || resp["note"] != "merge failed" || resp["jobId"] != "job-3" {
		t.Errorf("response = %v", resp)
	}
	if chunks, ok := resp["chunks"].([]any); !ok || len(chunks) != 2 {
		t.Errorf("chunks = %v", resp["chunks"])
	}
	if env.pipeline.lastText != "long talk" {
		t.Errorf("pipeline got %q", env.pipeline.lastText)
	}
}

func TestExportSummary(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(jsonRequest(http.MethodPost, "/summarize/export", `{"title":"Sync","summary":"All good","chunks":["a","b"]}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "summary.docx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if _, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len())); err != nil {
		t.Errorf("body is not a docx archive: %v", err)
	}

	if w := env.do(jsonRequest(http.MethodPost, "/summarize/export", `{"summary":"  "}`)); w.Code != http.StatusBadRequest {
		t.Errorf("empty summary status = %d", w.Code)
	}
}

func TestGetJob(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var job models.Job
	decode(t, w, &job)
	if job.ID != "job-1" || job.Status != models.JobStatusDone {
		t.Errorf("job = %+v", job)
	}

	if w := env.do(httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil)); w.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.AuthRequired = true })

	if w := env.do(jsonRequest(http.MethodPost, "/render", `{"fileName":"rec.webm"}`)); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", w.Code)
	}

	w := env.do(jsonRequest(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"pw"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d", w.Code)
	}
	var login LoginResponse
	decode(t, w, &login)

	req := jsonRequest(http.MethodPost, "/render", `{"fileName":"rec.webm"}`)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	if w := env.do(req); w.Code != http.StatusOK {
		t.Errorf("authenticated status = %d", w.Code)
	}

	if w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil)); w.Code != http.StatusOK {
		t.Errorf("health should stay public, status = %d", w.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	if w := env.do(jsonRequest(http.MethodPost, "/api/auth/login", `{"username":"alice"}`)); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestOriginFilter(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	if w := env.do(req); w.Code != http.StatusForbidden {
		t.Errorf("foreign origin status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodOptions, "/render", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := env.do(req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("preflight status = %d, headers = %v", w.Code, w.Header())
	}

	wildcard := newTestEnv(t, func(c *config.Config) { c.AllowedOrigins = []string{"*"} })
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://anything.example")
	if w := wildcard.do(req); w.Code != http.StatusOK {
		t.Errorf("wildcard status = %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", Health(fakeAssets{ready: false}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body struct {
		Status string          `json:"status"`
		Assets map[string]bool `json:"assets"`
	}
	decode(t, w, &body)
	if body.Status != "degraded" || body.Assets["assets/outro.mp4"] {
		t.Errorf("body = %+v", body)
	}
}

// wsPeer is a test client holding its assigned id.
type wsPeer struct {
	conn *websocket.Conn
	id   string
}

func dialPeer(t *testing.T, srv *httptest.Server, path string) *wsPeer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	var hello models.IDAssignedMessage
	readJSON(t, conn, &hello)
	if hello.Type != models.SignalTypeIDAssigned || hello.UserID == "" {
		t.Fatalf("first message = %+v", hello)
	}
	return &wsPeer{conn: conn, id: hello.UserID}
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
}

func TestSignalingOverWebSocket(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	u1 := dialPeer(t, srv, "/ws")
	u2 := dialPeer(t, srv, "/")
	if u1.id == u2.id {
		t.Fatal("peers share an id")
	}

	// offer reaches the target with the sender stamped
	u1.conn.WriteJSON(map[string]any{"offer": "X", "to": u2.id, "from": "spoofed"})
	var got map[string]any
	readJSON(t, u2.conn, &got)
	if got["offer"] != "X" || got["to"] != u2.id || got["from"] != u1.id {
		t.Errorf("u2 received %v", got)
	}

	// unknown target answers the sender
	u1.conn.WriteJSON(map[string]any{"offer": "X", "to": "u3"})
	var notice models.RelayError
	readJSON(t, u1.conn, &notice)
	if notice.Error != models.ErrTargetNotFound || notice.TargetID != "u3" {
		t.Errorf("notice = %+v", notice)
	}

	// presence mirrors the connection
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/peers/"+u2.id, nil))
	var status models.PeerStatus
	decode(t, w, &status)
	if !status.Online {
		t.Errorf("u2 not online: %s", w.Body.String())
	}

	u2.conn.Close()
	deadline := time.Now().Add(3 * time.Second)
	for {
		online, _ := env.presence.IsOnline(context.Background(), u2.id)
		_, registered := env.registry.Lookup(u2.id)
		if !online && !registered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("u2 still registered after close")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// the departed id is now unknown
	u1.conn.WriteJSON(map[string]any{"answer": "Y", "to": u2.id})
	readJSON(t, u1.conn, &notice)
	if notice.Error != models.ErrTargetNotFound || notice.TargetID != u2.id {
		t.Errorf("notice after close = %+v", notice)
	}
}

func TestPeerStatusOffline(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/peers/nobody", nil))

	var status models.PeerStatus
	decode(t, w, &status)
	if w.Code != http.StatusOK || status.Online || status.PeerID != "nobody" {
		t.Errorf("status = %d %+v", w.Code, status)
	}
}
