// Package pipeline runs memo analysis end to end, synchronously or through the job queue.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"memoflux/internal/analysis"
	"memoflux/internal/imageproc"
	"memoflux/internal/jobs"
	"memoflux/internal/memo"
	"memoflux/internal/ocr"
)

type Generator interface {
	Generate(ctx context.Context, req analysis.Request) (*analysis.Response, error)
}

// TagLister supplies the known tag names sent with each request.
type TagLister interface {
	Names(ctx context.Context) ([]string, error)
}

type Analyzer struct {
	Memos  *memo.Service
	Client Generator
	Tags   TagLister
	OCR    ocr.Recognizer
	Preset imageproc.Preset
	Log    zerolog.Logger
}

// Analyze runs one analysis now. The memo is marked processing for the
// duration and ends with either a stored response or a failure.
func (a *Analyzer) Analyze(ctx context.Context, id uuid.UUID) (*analysis.Response, error) {
	if err := a.Memos.BeginProcessing(ctx, id); err != nil {
		return nil, err
	}
	m, err := a.Memos.Get(ctx, id)
	if err != nil {
		a.markFailed(ctx, id)
		return nil, err
	}
	return a.run(ctx, m)
}

// Enqueue marks the memo processing and leaves the analysis to the worker.
func (a *Analyzer) Enqueue(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	return a.Memos.Enqueue(ctx, id)
}

func (a *Analyzer) run(ctx context.Context, m *memo.Memo) (*analysis.Response, error) {
	log := a.Log.With().Str("memo_id", m.ID.String()).Logger()

	req, err := a.buildRequest(ctx, m)
	if err != nil {
		log.Warn().Err(err).Msg("build analysis request")
		a.markFailed(ctx, m.ID)
		return nil, err
	}

	resp, err := a.Client.Generate(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(analysis.KindOf(err))).Msg("analysis failed")
		a.markFailed(ctx, m.ID)
		return nil, err
	}

	if _, err := a.Memos.ApplyResponse(ctx, m.ID, resp); err != nil {
		if !errors.Is(err, memo.ErrEncodeResponse) {
			a.markFailed(ctx, m.ID)
		}
		return nil, err
	}
	log.Info().Str("category", string(resp.Category())).Int("tasks", len(resp.Tasks())).Msg("analysis stored")
	return resp, nil
}

func (a *Analyzer) buildRequest(ctx context.Context, m *memo.Memo) (analysis.Request, error) {
	var known []string
	if a.Tags != nil {
		names, err := a.Tags.Names(ctx)
		if err != nil {
			a.Log.Warn().Err(err).Msg("load known tags")
		}
		known = names
	}

	if m.HasImage() {
		content, err := imageproc.CompressToBase64(m.ImageData, a.Preset)
		if err != nil {
			return analysis.Request{}, fmt.Errorf("prepare image: %w", err)
		}
		return analysis.Request{Tags: known, Content: content, IsImage: true}, nil
	}
	return analysis.Request{Tags: known, Content: m.ContentForAnalysis()}, nil
}

func (a *Analyzer) markFailed(ctx context.Context, id uuid.UUID) {
	if err := a.Memos.MarkFailed(ctx, id); err != nil && !errors.Is(err, memo.ErrNotFound) {
		a.Log.Error().Err(err).Str("memo_id", id.String()).Msg("mark memo failed")
	}
}

// Register installs the job handlers on w.
func (a *Analyzer) Register(w *jobs.Worker) {
	w.Handle(jobs.TypeAnalyzeMemo, a.HandleAnalyze)
	w.Handle(jobs.TypeRecognizeText, a.HandleRecognize)
}

// HandleAnalyze completes a queued analysis. Analysis failures are final;
// only store reads are retried.
func (a *Analyzer) HandleAnalyze(ctx context.Context, job *jobs.Job) error {
	m, err := a.Memos.Get(ctx, job.MemoID)
	if errors.Is(err, memo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return jobs.Retryable(err)
	}
	_, err = a.run(ctx, m)
	return err
}

// HandleRecognize fills in recognized text for photo memos. Recognition
// failures are logged and the memo is left as is.
func (a *Analyzer) HandleRecognize(ctx context.Context, job *jobs.Job) error {
	if a.OCR == nil {
		return nil
	}
	m, err := a.Memos.Get(ctx, job.MemoID)
	if errors.Is(err, memo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return jobs.Retryable(err)
	}
	if !m.HasImage() || m.RecognizedText != "" {
		return nil
	}

	text, err := a.OCR.Recognize(ctx, m.ImageData)
	if err != nil {
		a.Log.Warn().Err(err).Str("memo_id", m.ID.String()).Msg("text recognition failed")
		return nil
	}
	if _, err := a.Memos.SetRecognizedText(ctx, m.ID, text); err != nil {
		return jobs.Retryable(err)
	}
	return nil
}
