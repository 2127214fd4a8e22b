// Package main provides the SummarizationDispatcher Lambda entry point.
//
// The Lambda is triggered by S3 ObjectCreated notifications for uploaded
// transcription files. For each .txt upload it submits the file contents to
// a RunPod serverless endpoint for summarization, polls the job to a
// terminal state, and writes the summary back to S3 under the configured
// prefix. Non-transcript uploads are skipped.
//
// The invocation is stateless: one job per upload, nothing persisted across
// invocations. Failures abort the record and surface to Lambda's native
// error handling; any retry is the platform's.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/your-org/transcript-summarizer/internal/config"
	"github.com/your-org/transcript-summarizer/internal/logging"
	"github.com/your-org/transcript-summarizer/internal/metrics"
	"github.com/your-org/transcript-summarizer/internal/pipeline"
	"github.com/your-org/transcript-summarizer/internal/runpod"
	"github.com/your-org/transcript-summarizer/internal/s3util"
)

var coldStart = true

// Initialized at cold start.
var (
	cfg        config.Config
	dispatcher *pipeline.Dispatcher
)

func init() {
	initStart := time.Now()
	logging.Init()

	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", awsCfg.Region).Msg("AWS config loaded")

	// Load the RunPod API key from SSM Parameter Store when not set via
	// RUNPOD_API_KEY.
	if cfg.RunPodAPIKey == "" {
		ssmClient := ssm.NewFromConfig(awsCfg)
		ssmStart := time.Now()
		result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
			Name:           &cfg.SSMKeyParam,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			log.Fatal().Err(err).Str("param", cfg.SSMKeyParam).Msg("Failed to read RunPod API key from SSM")
		}
		cfg.RunPodAPIKey = *result.Parameter.Value
		log.Debug().Str("param", cfg.SSMKeyParam).Dur("elapsed", time.Since(ssmStart)).Msg("RunPod API key loaded from SSM")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	store := s3util.NewStore(s3.NewFromConfig(awsCfg))
	jobs := runpod.NewClient(runpod.Settings{
		Endpoint:      cfg.RunPodEndpoint,
		APIKey:        cfg.RunPodAPIKey,
		SubmitTimeout: cfg.SubmitTimeout,
		StatusTimeout: cfg.StatusTimeout,
		PollInterval:  cfg.PollInterval,
		PollDeadline:  cfg.PollDeadline,
	})
	dispatcher = pipeline.NewDispatcher(store, jobs, cfg)

	logging.NewStartupLogger("summarizer-lambda").
		InitDuration(time.Since(initStart)).
		Endpoint("runpod", cfg.RunPodEndpoint).
		S3Bucket("outputBucket", cfg.OutputBucket).
		SSMParam("runpodApiKey", cfg.SSMKeyParam).
		Config("outputPrefix", cfg.OutputPrefix).
		Config("pollInterval", cfg.PollInterval.String()).
		Config("pollDeadline", cfg.PollDeadline.String()).
		Log()
}

func main() {
	lambda.Start(handler)
}

// handler processes one S3 notification. S3 normally delivers a single
// record per event, but all records are handled; the last error is returned
// only when no record succeeded, so Lambda's retry applies to whole-event
// failures without re-running completed summaries needlessly.
func handler(ctx context.Context, event events.S3Event) error {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "summarizer-lambda").Msg("Cold start — first invocation")
	}
	if len(event.Records) == 0 {
		log.Info().Msg("No S3 records to process")
		return nil
	}

	var lastErr error
	successCount := 0

	for _, record := range event.Records {
		bucket := record.S3.Bucket.Name
		key := s3util.DecodeKey(record.S3.Object.Key)

		if err := processRecord(ctx, bucket, key); err != nil {
			log.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("Failed to process upload")
			lastErr = err
		} else {
			successCount++
		}
	}

	if successCount == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

func processRecord(ctx context.Context, bucket, key string) error {
	jobStart := time.Now()

	result, err := dispatcher.ProcessUpload(ctx, bucket, key)

	rec := metrics.New("TranscriptSummarizer").
		Dim("JobType", "summarize").
		Duration("JobDurationMs", time.Since(jobStart)).
		Property("bucket", bucket).
		Property("key", key)

	switch {
	case err != nil:
		rec.Count("JobFailure").Emit()
		return err
	case result.Skipped:
		rec.Count("JobSkipped").Emit()
	default:
		rec.Count("JobSuccess").
			Bytes("SummaryBytes", result.SummaryBytes).
			Property("outputKey", result.OutputKey).
			Emit()
	}
	return nil
}
