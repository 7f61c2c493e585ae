// Package summarizer turns a transcript into a summary through an external
// inference service: split into chunks, summarize each with retry, merge.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mossy-p/castiq/internal/apperr"
	"github.com/mossy-p/castiq/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	NoteChunkFallback = "Some sections could not be summarized; an excerpt of the original text was used instead."
	NoteMergeFailed   = "Merging the section summaries failed; the per-section summaries are returned as-is."
)

const defaultExcerptChars = 300

const mergePrompt = `Combine the following section summaries of one recorded conversation into:
1. A one-line headline.
2. At most 5 bullet points with the key takeaways.
3. Any action items that were mentioned (or "None").

Section summaries:
%s`

// Options are the tunables of the stage.
type Options struct {
	ChunkChars   int
	ExcerptChars int
	Fast         Profile
	Merge        Profile
	Retry        RetryPolicy
}

// Summarizer is the summarize stage.
type Summarizer struct {
	backend Backend
	opts    Options
	sleep   sleepFunc
}

func New(backend Backend, opts Options) *Summarizer {
	if opts.ExcerptChars <= 0 {
		opts.ExcerptChars = defaultExcerptChars
	}
	return &Summarizer{
		backend: backend,
		opts:    opts,
		sleep:   sleepCtx,
	}
}

// chunkSummary is the outcome of the per-chunk step.
type chunkSummary struct {
	Chunk    Chunk
	Summary  string
	Fallback bool
}

// Summarize rejects empty input; otherwise it always returns some summary for
// multi-chunk input, degrading with a note instead of failing.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (models.SummaryResult, error) {
	text := clean(transcript)
	if text == "" {
		return models.SummaryResult{}, apperr.Input("transcript is empty")
	}

	if utf8.RuneCountInString(text) <= s.opts.ChunkChars {
		summary, err := s.call(ctx, text, s.opts.Merge)
		if err != nil {
			return models.SummaryResult{}, fmt.Errorf("summarize transcript: %w", err)
		}
		return models.SummaryResult{Summary: summary}, nil
	}

	chunks := split(text, s.opts.ChunkChars)
	log.Info().Int("chunks", len(chunks)).Int("chars", utf8.RuneCountInString(text)).Msg("Summarizing transcript in chunks")

	summaries := s.summarizeChunks(ctx, chunks)

	var notes []string
	texts := make([]string, len(summaries))
	for i, cs := range summaries {
		texts[i] = cs.Summary
		if cs.Fallback && len(notes) == 0 {
			notes = append(notes, NoteChunkFallback)
		}
	}

	if len(texts) == 1 {
		return models.SummaryResult{Summary: texts[0], Note: strings.Join(notes, " ")}, nil
	}

	merged, ok := s.merge(ctx, texts)
	if !ok {
		notes = append(notes, NoteMergeFailed)
	}

	return models.SummaryResult{
		Summary: merged,
		Chunks:  texts,
		Note:    strings.Join(notes, " "),
	}, nil
}

// summarizeChunks summarizes in order; a failed chunk gets an excerpt.
func (s *Summarizer) summarizeChunks(ctx context.Context, chunks []Chunk) []chunkSummary {
	out := make([]chunkSummary, 0, len(chunks))
	for _, c := range chunks {
		summary, err := s.call(ctx, c.Text, s.opts.Fast)
		if err != nil {
			log.Warn().Err(err).Int("chunk", c.Index).Msg("Chunk summarization failed, using excerpt")
			out = append(out, chunkSummary{Chunk: c, Summary: excerpt(c.Text, s.opts.ExcerptChars), Fallback: true})
			continue
		}
		out = append(out, chunkSummary{Chunk: c, Summary: summary})
	}
	return out
}

// merge combines chunk summaries; on failure it returns them joined.
func (s *Summarizer) merge(ctx context.Context, texts []string) (string, bool) {
	var sb strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&sb, "Section %d: %s\n", i+1, t)
	}

	merged, err := s.call(ctx, fmt.Sprintf(mergePrompt, sb.String()), s.opts.Merge)
	if err != nil {
		log.Warn().Err(err).Msg("Merge call failed, returning joined chunk summaries")
		return strings.Join(texts, "\n\n"), false
	}
	return merged, true
}

func (s *Summarizer) call(ctx context.Context, text string, profile Profile) (string, error) {
	return withRetry(ctx, s.opts.Retry, s.sleep, func(ctx context.Context) (string, error) {
		return s.backend.Summarize(ctx, text, profile)
	})
}
