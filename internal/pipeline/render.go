package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mossy-p/castiq/config"
	"github.com/mossy-p/castiq/internal/apperr"
	"github.com/mossy-p/castiq/internal/process"
	"github.com/mossy-p/castiq/internal/storage"
	"github.com/rs/zerolog/log"
)

// Segment names accepted in RenderConfig.Order.
const (
	SegmentIntro     = "intro"
	SegmentRecording = "recording"
	SegmentOutro     = "outro"
)

// RenderStage composites the fixed intro and outro around a recording.
type RenderStage struct {
	gateway   storage.Gateway
	runner    process.Runner
	ffmpeg    string
	policy    config.RenderConfig
	tempDir   string
	outputDir string
}

func NewRenderStage(gw storage.Gateway, runner process.Runner, ffmpeg string, policy config.RenderConfig, tempDir, outputDir string) *RenderStage {
	return &RenderStage{
		gateway:   gw,
		runner:    runner,
		ffmpeg:    ffmpeg,
		policy:    policy,
		tempDir:   tempDir,
		outputDir: outputDir,
	}
}

// Run returns the path of the rendered file. The job workspace is removed on
// every path; a partial output is removed on failure.
func (s *RenderStage) Run(ctx context.Context, jobID, fileName string) (string, error) {
	l := log.With().Str("job_id", jobID).Str("stage", "render").Logger()

	ws, err := newWorkspace(s.tempDir, jobID)
	if err != nil {
		return "", err
	}
	defer ws.cleanup()

	source := ws.path("source" + filepath.Ext(fileName))
	if err := fetch(ctx, s.gateway, fileName, source); err != nil {
		return "", err
	}

	if err := s.checkAssets(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return "", &apperr.ConfigError{Message: "output directory is not writable", Err: err}
	}
	out := filepath.Join(s.outputDir, outputName(fileName, jobID))

	inputs := make([]string, len(s.policy.Order))
	for i, seg := range s.policy.Order {
		switch seg {
		case SegmentIntro:
			inputs[i] = s.policy.IntroPath
		case SegmentOutro:
			inputs[i] = s.policy.OutroPath
		default:
			inputs[i] = source
		}
	}

	l.Info().Str("file", fileName).Strs("order", s.policy.Order).Msg("Rendering final video")
	args := buildRenderArgs(inputs, s.policy, out)
	if err := s.runner.Run(ctx, s.ffmpeg, args, nil); err != nil {
		if rmErr := os.Remove(out); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			l.Warn().Err(rmErr).Msg("Failed to remove partial output")
		}
		return "", fmt.Errorf("render %s: %w", fileName, err)
	}

	l.Info().Str("output", out).Msg("Render finished")
	return out, nil
}

func (s *RenderStage) checkAssets() error {
	for _, p := range []string{s.policy.IntroPath, s.policy.OutroPath} {
		info, err := os.Stat(p)
		if err != nil {
			return &apperr.ConfigError{Message: fmt.Sprintf("render asset missing: %s", p), Err: err}
		}
		if info.IsDir() {
			return &apperr.ConfigError{Message: fmt.Sprintf("render asset is a directory: %s", p)}
		}
	}
	return nil
}

// outputName is final-<stem>-<job prefix>.mp4.
func outputName(fileName, jobID string) string {
	stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	if stem == "" {
		stem = "recording"
	}
	short := jobID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("final-%s-%s.mp4", stem, short)
}

// buildRenderArgs normalizes every input to one geometry, frame rate and
// audio format, then concatenates them in input order.
func buildRenderArgs(inputs []string, policy config.RenderConfig, out string) []string {
	args := []string{"-hide_banner", "-nostdin", "-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}

	args = append(args,
		"-filter_complex", buildFilterGraph(policy),
		"-map", "[outv]",
		"-map", "[outa]",
		"-c:v", policy.VideoCodec,
		"-preset", policy.Preset,
		"-crf", strconv.Itoa(policy.CRF),
		"-r", strconv.Itoa(policy.FPS),
		"-pix_fmt", "yuv420p",
		"-c:a", policy.AudioCodec,
		"-b:a", policy.AudioBitrate,
		"-ar", strconv.Itoa(policy.SampleRate),
		"-movflags", "+faststart",
		out,
	)
	return args
}

func buildFilterGraph(policy config.RenderConfig) string {
	w, h := policy.Width, policy.Height
	var parts []string
	var concatIn strings.Builder

	for i, seg := range policy.Order {
		parts = append(parts, fmt.Sprintf(
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d,format=yuv420p,setpts=PTS-STARTPTS[v%d]",
			i, w, h, w, h, policy.FPS, i))

		audio := fmt.Sprintf("[%d:a]aresample=%d", i, policy.SampleRate)
		if seg == SegmentRecording && !policy.DisableUpmix {
			// browser recordings are often mono; duplicate the channel instead of dropping it
			audio += ",pan=stereo|c0=c0|c1=c0"
		}
		audio += fmt.Sprintf(",aformat=sample_fmts=fltp:sample_rates=%d:channel_layouts=stereo,asetpts=PTS-STARTPTS[a%d]", policy.SampleRate, i)
		parts = append(parts, audio)

		fmt.Fprintf(&concatIn, "[v%d][a%d]", i, i)
	}

	parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=1:a=1[outv][outa]", concatIn.String(), len(policy.Order)))
	return strings.Join(parts, ";")
}
