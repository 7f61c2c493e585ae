package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mossy-p/castiq/internal/process"
	"github.com/mossy-p/castiq/internal/storage"
	"github.com/rs/zerolog/log"
)

// Transcriber turns 16 kHz mono PCM WAV audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, fileName string) (string, error)
}

// TranscribeStage extracts the audio track of a recording and transcribes it.
type TranscribeStage struct {
	gateway     storage.Gateway
	runner      process.Runner
	ffmpeg      string
	transcriber Transcriber
	tempDir     string
}

func NewTranscribeStage(gw storage.Gateway, runner process.Runner, ffmpeg string, t Transcriber, tempDir string) *TranscribeStage {
	return &TranscribeStage{
		gateway:     gw,
		runner:      runner,
		ffmpeg:      ffmpeg,
		transcriber: t,
		tempDir:     tempDir,
	}
}

// Run removes the downloaded video and the extracted audio on every path.
func (s *TranscribeStage) Run(ctx context.Context, jobID, fileName string) (string, error) {
	l := log.With().Str("job_id", jobID).Str("stage", "transcribe").Logger()

	ws, err := newWorkspace(s.tempDir, jobID)
	if err != nil {
		return "", err
	}
	defer ws.cleanup()

	video := ws.path("source" + filepath.Ext(fileName))
	if err := fetch(ctx, s.gateway, fileName, video); err != nil {
		return "", err
	}

	audio := ws.path("audio.wav")
	l.Info().Str("file", fileName).Msg("Extracting audio")
	if err := s.runner.Run(ctx, s.ffmpeg, buildAudioArgs(video, audio), nil); err != nil {
		return "", fmt.Errorf("extract audio from %s: %w", fileName, err)
	}

	f, err := os.Open(audio)
	if err != nil {
		return "", fmt.Errorf("open extracted audio: %w", err)
	}
	defer f.Close()

	transcript, err := s.transcriber.Transcribe(ctx, f, "audio.wav")
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", fileName, err)
	}

	l.Info().Int("chars", len(transcript)).Msg("Transcription finished")
	return transcript, nil
}

// buildAudioArgs builds args for mono 16k PCM WAV output.
func buildAudioArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}
