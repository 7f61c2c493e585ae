package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mossy-p/castiq/internal/apperr"
	"github.com/mossy-p/castiq/internal/models"
	"github.com/mossy-p/castiq/internal/storage"
	"github.com/mossy-p/castiq/internal/store"
	"github.com/rs/zerolog/log"
)

// Summarizer is the summarize stage as seen by the orchestrator.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (models.SummaryResult, error)
}

type renderer interface {
	Run(ctx context.Context, jobID, fileName string) (string, error)
}

type audioTranscriber interface {
	Run(ctx context.Context, jobID, fileName string) (string, error)
}

// Orchestrator exposes the job-shaped operations to the HTTP layer. Each call
// gets its own job id, workspace and job record.
type Orchestrator struct {
	gateway    storage.Gateway
	render     renderer
	transcribe audioTranscriber
	summarizer Summarizer
	jobs       store.JobStore
	sem        *semaphore
	newID      func() string
	now        func() time.Time
}

// New wires the stages. maxConcurrent bounds render and transcribe jobs; 0
// means unlimited.
func New(gw storage.Gateway, render *RenderStage, transcribe *TranscribeStage, summarizer Summarizer, jobs store.JobStore, maxConcurrent int) *Orchestrator {
	return &Orchestrator{
		gateway:    gw,
		render:     render,
		transcribe: transcribe,
		summarizer: summarizer,
		jobs:       jobs,
		sem:        newSemaphore(maxConcurrent),
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// Upload stores a recording under a fresh unique name.
func (o *Orchestrator) Upload(ctx context.Context, originalName string, body io.Reader, contentType string) (models.UploadResponse, error) {
	if body == nil {
		return models.UploadResponse{}, apperr.Input("video file is required")
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if ext == "" || len(ext) > 8 {
		ext = ".webm"
	}
	name := o.newID() + ext

	path, err := o.gateway.Upload(ctx, name, body, contentType)
	if err != nil {
		return models.UploadResponse{}, fmt.Errorf("upload recording: %w", err)
	}

	log.Info().Str("file", name).Str("path", path).Msg("Recording uploaded")
	return models.UploadResponse{
		Message:  "Upload successful",
		Path:     path,
		FileName: name,
	}, nil
}

func (o *Orchestrator) Render(ctx context.Context, fileName string) (models.RenderResponse, error) {
	if err := checkFileName(fileName); err != nil {
		return models.RenderResponse{}, err
	}

	job := o.start(ctx, models.JobKindRender, fileName)
	out, err := o.bounded(ctx, func() (string, error) {
		return o.render.Run(ctx, job.ID, fileName)
	})
	o.finish(ctx, job, out, err)
	if err != nil {
		return models.RenderResponse{}, err
	}

	return models.RenderResponse{
		Message:   "Video rendered successfully",
		FinalPath: out,
		JobID:     job.ID,
	}, nil
}

func (o *Orchestrator) Transcribe(ctx context.Context, fileName string) (models.TranscribeResponse, error) {
	if err := checkFileName(fileName); err != nil {
		return models.TranscribeResponse{}, err
	}

	job := o.start(ctx, models.JobKindTranscribe, fileName)
	transcript, err := o.bounded(ctx, func() (string, error) {
		return o.transcribe.Run(ctx, job.ID, fileName)
	})
	o.finish(ctx, job, fmt.Sprintf("%d characters", len(transcript)), err)
	if err != nil {
		return models.TranscribeResponse{}, err
	}

	return models.TranscribeResponse{Transcript: transcript, JobID: job.ID}, nil
}

// Summarize does not take a transcoder slot.
func (o *Orchestrator) Summarize(ctx context.Context, transcript string) (models.SummarizeResponse, error) {
	job := o.start(ctx, models.JobKindSummarize, "")

	res, err := o.summarizer.Summarize(ctx, transcript)
	result := res.Note
	if result == "" && err == nil {
		result = fmt.Sprintf("%d sections", max(len(res.Chunks), 1))
	}
	o.finish(ctx, job, result, err)
	if err != nil {
		return models.SummarizeResponse{}, err
	}

	return models.SummarizeResponse{SummaryResult: res, JobID: job.ID}, nil
}

// Job returns a recorded job.
func (o *Orchestrator) Job(ctx context.Context, id string) (models.Job, error) {
	job, err := o.jobs.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return models.Job{}, &apperr.ResourceMissingError{Kind: "job", Name: id, Err: err}
		}
		return models.Job{}, err
	}
	return job, nil
}

func (o *Orchestrator) bounded(ctx context.Context, run func() (string, error)) (string, error) {
	if err := o.sem.acquire(ctx); err != nil {
		return "", fmt.Errorf("wait for a free job slot: %w", err)
	}
	defer o.sem.release()
	return run()
}

func (o *Orchestrator) start(ctx context.Context, kind models.JobKind, fileName string) models.Job {
	now := o.now()
	job := models.Job{
		ID:        o.newID(),
		Kind:      kind,
		Status:    models.JobStatusRunning,
		FileName:  fileName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.save(ctx, job)
	return job
}

func (o *Orchestrator) finish(ctx context.Context, job models.Job, result string, err error) {
	job.UpdatedAt = o.now()
	if err != nil {
		job.Status = models.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("Job failed")
	} else {
		job.Status = models.JobStatusDone
		job.Result = result
		log.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Dur("took", job.UpdatedAt.Sub(job.CreatedAt)).Msg("Job finished")
	}
	o.save(ctx, job)
}

// save never fails the job; the record is best effort.
func (o *Orchestrator) save(ctx context.Context, job models.Job) {
	if err := o.jobs.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to save job record")
	}
}

func checkFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Input("fileName is required")
	}
	if err := storage.ValidateName(name); err != nil {
		return apperr.Input("%v", err)
	}
	return nil
}
