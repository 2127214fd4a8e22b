// Package pipeline implements the summarization dispatch: read an uploaded
// transcript, submit it to the inference endpoint, wait for the job, extract
// the summary, and write it back to the object store.
//
// Each invocation handles exactly one job; no job state survives the
// invocation. Every stage fails fast, there is no partial success and no
// internal retry; retry on failure belongs to the invoking platform.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/your-org/transcript-summarizer/internal/assets"
	"github.com/your-org/transcript-summarizer/internal/config"
	"github.com/your-org/transcript-summarizer/internal/runpod"
	"github.com/your-org/transcript-summarizer/internal/summary"
)

// ObjectStore is the object storage surface the pipeline needs.
// s3util.Store implements it.
type ObjectStore interface {
	ReadText(ctx context.Context, bucket, key string) (string, error)
	WriteText(ctx context.Context, bucket, key, body string) error
}

// JobService submits inference jobs and waits for their output.
// runpod.Client implements it.
type JobService interface {
	Run(ctx context.Context, input runpod.GenerationInput) (string, error)
	Wait(ctx context.Context, jobID string) (json.RawMessage, error)
}

// Dispatcher runs the summarization pipeline for uploaded transcripts.
type Dispatcher struct {
	store ObjectStore
	jobs  JobService
	cfg   config.Config
}

// NewDispatcher creates a Dispatcher. cfg is taken by value; the Dispatcher
// never re-reads the environment.
func NewDispatcher(store ObjectStore, jobs JobService, cfg config.Config) *Dispatcher {
	return &Dispatcher{store: store, jobs: jobs, cfg: cfg}
}

// Result describes one processed upload.
type Result struct {
	SourceBucket string
	SourceKey    string
	OutputBucket string
	OutputKey    string
	SummaryBytes int
	// Skipped is true when the upload was not a transcript and the
	// invocation was a no-op.
	Skipped bool
}

// ProcessUpload runs the full pipeline for one uploaded object. Non-.txt
// keys are a logged no-op. The returned error wraps the stage sentinel
// (runpod.ErrJobFailed, poll.ErrDeadline, summary.ErrNoSummary) where one
// applies.
func (d *Dispatcher) ProcessUpload(ctx context.Context, bucket, key string) (Result, error) {
	logger := log.With().Str("bucket", bucket).Str("key", key).Logger()

	if !strings.HasSuffix(strings.ToLower(key), ".txt") {
		logger.Warn().Msg("Object is not a .txt transcript, skipping")
		return Result{SourceBucket: bucket, SourceKey: key, Skipped: true}, nil
	}

	logger.Info().Msg("Processing uploaded transcript")

	transcript, err := d.store.ReadText(ctx, bucket, key)
	if err != nil {
		return Result{}, fmt.Errorf("read transcript %s/%s: %w", bucket, key, err)
	}
	logger.Debug().Int("transcriptLength", len(transcript)).Msg("Transcript retrieved")

	jobID, err := d.jobs.Run(ctx, runpod.GenerationInput{
		Prompt:       assets.RenderSummarizePrompt(transcript),
		MaxNewTokens: d.cfg.MaxNewTokens,
		Temperature:  d.cfg.Temperature,
		TopP:         d.cfg.TopP,
	})
	if err != nil {
		return Result{}, fmt.Errorf("submit summarization job: %w", err)
	}

	output, err := d.jobs.Wait(ctx, jobID)
	if err != nil {
		return Result{}, fmt.Errorf("wait for summarization job: %w", err)
	}

	text, err := summary.Extract(output)
	if err != nil {
		return Result{}, fmt.Errorf("parse job %s output: %w", jobID, err)
	}

	outputBucket := d.cfg.OutputBucket
	if outputBucket == "" {
		outputBucket = bucket
	}
	outputKey := summary.OutputKey(d.cfg.OutputPrefix, key)

	if err := d.store.WriteText(ctx, outputBucket, outputKey, text); err != nil {
		return Result{}, fmt.Errorf("write summary %s/%s: %w", outputBucket, outputKey, err)
	}

	logger.Info().
		Str("jobId", jobID).
		Str("outputBucket", outputBucket).
		Str("outputKey", outputKey).
		Int("summaryLength", len(text)).
		Msg("Summary stored")

	return Result{
		SourceBucket: bucket,
		SourceKey:    key,
		OutputBucket: outputBucket,
		OutputKey:    outputKey,
		SummaryBytes: len(text),
	}, nil
}
