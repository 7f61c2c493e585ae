package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/castiq/internal/apperr"
	"github.com/mossy-p/castiq/internal/export"
	"github.com/mossy-p/castiq/internal/models"
	"github.com/rs/zerolog/log"
)

// Pipeline is the job-shaped surface of the media pipeline.
type Pipeline interface {
	Upload(ctx context.Context, originalName string, body io.Reader, contentType string) (models.UploadResponse, error)
	Render(ctx context.Context, fileName string) (models.RenderResponse, error)
	Transcribe(ctx context.Context, fileName string) (models.TranscribeResponse, error)
	Summarize(ctx context.Context, transcript string) (models.SummarizeResponse, error)
	Job(ctx context.Context, id string) (models.Job, error)
}

// Upload stores the multipart field "video".
func Upload(p Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("video")
		if err != nil {
			respondError(c, apperr.Input("No video file uploaded"))
			return
		}

		f, err := fh.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer f.Close()

		resp, err := p.Upload(c.Request.Context(), fh.Filename, f, fh.Header.Get("Content-Type"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func Render(p Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.FileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperr.Input("Invalid request body"))
			return
		}

		resp, err := p.Render(c.Request.Context(), req.FileName)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func Transcribe(p Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.FileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperr.Input("Invalid request body"))
			return
		}

		resp, err := p.Transcribe(c.Request.Context(), req.FileName)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func Summarize(p Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SummarizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperr.Input("Invalid request body"))
			return
		}

		resp, err := p.Summarize(c.Request.Context(), req.Transcript)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ExportSummary returns the posted summary as a .docx attachment.
func ExportSummary(tempDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ExportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperr.Input("Invalid request body"))
			return
		}
		if strings.TrimSpace(req.Summary) == "" {
			respondError(c, apperr.Input("summary is required"))
			return
		}

		f, err := os.CreateTemp(tempDir, "summary-*.docx")
		if err != nil {
			respondError(c, err)
			return
		}
		path := f.Name()
		f.Close()
		defer os.Remove(path)

		if err := export.SummaryToDocx(req.Title, req.SummaryResult, path); err != nil {
			respondError(c, err)
			return
		}

		log.Info().Int("chunks", len(req.Chunks)).Msg("Summary exported")
		c.FileAttachment(path, "summary.docx")
	}
}

func GetJob(p Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := p.Job(c.Request.Context(), c.Param("jobId"))
		if err != nil {
			var missing *apperr.ResourceMissingError
			if errors.As(err, &missing) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
				return
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}
