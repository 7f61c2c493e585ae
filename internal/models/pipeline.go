package models

// FileRequest is the request body for /render and /transcribe
type FileRequest struct {
	FileName string `json:"fileName"`
}

// SummarizeRequest is the request body for /summarize
type SummarizeRequest struct {
	Transcript string `json:"transcript"`
}

// UploadResponse is the response for /upload
type UploadResponse struct {
	Message  string `json:"message"`
	Path     string `json:"path"`
	FileName string `json:"fileName"`
}

// RenderResponse is the response for /render
type RenderResponse struct {
	Message   string `json:"message"`
	FinalPath string `json:"finalPath"`
	JobID     string `json:"jobId"`
}

// TranscribeResponse is the response for /transcribe
type TranscribeResponse struct {
	Transcript string `json:"transcript"`
	JobID      string `json:"jobId"`
}

// SummaryResult is the outcome of the summarize stage
type SummaryResult struct {
	Summary string   `json:"summary"`
	Chunks  []string `json:"chunks,omitempty"`
	Note    string   `json:"note,omitempty"`
}

// SummarizeResponse is the response for /summarize
type SummarizeResponse struct {
	SummaryResult
	JobID string `json:"jobId"`
}

// ExportRequest is the request body for /summarize/export
type ExportRequest struct {
	Title string `json:"title"`
	SummaryResult
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
