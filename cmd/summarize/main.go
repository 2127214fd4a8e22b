// Package main provides a local CLI for the summarization pipeline.
//
// It reads a transcript from a local file, submits it to a RunPod endpoint
// through the same client the Lambda uses, polls to completion, and prints
// the summary. Useful for smoke-testing an endpoint and prompt without
// deploying.
//
// The endpoint and credential come from the environment (RUNPOD_API_KEY,
// RUNPOD_ENDPOINT_URL), same as the Lambda.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/your-org/transcript-summarizer/internal/assets"
	"github.com/your-org/transcript-summarizer/internal/config"
	"github.com/your-org/transcript-summarizer/internal/logging"
	"github.com/your-org/transcript-summarizer/internal/runpod"
	"github.com/your-org/transcript-summarizer/internal/summary"
)

// CLI flags
var (
	fileFlag   string
	outputFlag string
)

// rootCmd is the main Cobra command for the summarize CLI.
var rootCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize a transcript file through a RunPod endpoint",
	Long: `Summarize reads a transcription text file, submits it to the configured
RunPod serverless endpoint, polls the job to completion, and prints the
summary to stdout (or writes it to a file).

Configuration comes from the environment: RUNPOD_API_KEY and
RUNPOD_ENDPOINT_URL are required; POLL_INTERVAL, POLL_DEADLINE, and
SUMMARY_MAX_NEW_TOKENS are optional tuning knobs.

Examples:
  summarize --file session1.txt
  summarize -f session1.txt -o session1_summary.txt`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Transcript text file to summarize (required)")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write the summary to this file instead of stdout")
	rootCmd.MarkFlagRequired("file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	data, err := os.ReadFile(fileFlag)
	if err != nil {
		log.Fatal().Err(err).Str("file", fileFlag).Msg("Failed to read transcript file")
	}
	log.Info().Str("file", fileFlag).Int("size", len(data)).Msg("Transcript loaded")

	client := runpod.NewClient(runpod.Settings{
		Endpoint:      cfg.RunPodEndpoint,
		APIKey:        cfg.RunPodAPIKey,
		SubmitTimeout: cfg.SubmitTimeout,
		StatusTimeout: cfg.StatusTimeout,
		PollInterval:  cfg.PollInterval,
		PollDeadline:  cfg.PollDeadline,
	})

	ctx := context.Background()
	jobID, err := client.Run(ctx, runpod.GenerationInput{
		Prompt:       assets.RenderSummarizePrompt(string(data)),
		MaxNewTokens: cfg.MaxNewTokens,
		Temperature:  cfg.Temperature,
		TopP:         cfg.TopP,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to submit summarization job")
	}

	log.Info().Str("jobId", jobID).Dur("deadline", cfg.PollDeadline).Msg("Waiting for job")
	output, err := client.Wait(ctx, jobID)
	if err != nil {
		log.Fatal().Err(err).Str("jobId", jobID).Msg("Job did not complete")
	}

	text, err := summary.Extract(output)
	if err != nil {
		log.Fatal().Err(err).Str("jobId", jobID).Msg("Failed to extract summary from job output")
	}

	if outputFlag != "" {
		if err := os.WriteFile(outputFlag, []byte(text), 0644); err != nil {
			log.Fatal().Err(err).Str("file", outputFlag).Msg("Failed to write summary file")
		}
		log.Info().Str("file", outputFlag).Int("size", len(text)).Msg("Summary written")
		return
	}
	fmt.Println(text)
}
