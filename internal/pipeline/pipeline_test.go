package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/your-org/transcript-summarizer/internal/config"
	"github.com/your-org/transcript-summarizer/internal/poll"
	"github.com/your-org/transcript-summarizer/internal/runpod"
	"github.com/your-org/transcript-summarizer/internal/summary"
)

// --- Mocks ---

type write struct {
	bucket, key, body string
}

type fakeStore struct {
	objects  map[string]string // "bucket/key" -> contents
	writes   []write
	writeErr error
}

func (f *fakeStore) ReadText(ctx context.Context, bucket, key string) (string, error) {
	body, ok := f.objects[bucket+"/"+key]
	if !ok {
		return "", errors.New("NoSuchKey")
	}
	return body, nil
}

func (f *fakeStore) WriteText(ctx context.Context, bucket, key, body string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, write{bucket, key, body})
	return nil
}

type fakeJobs struct {
	jobID   string
	runErr  error
	output  json.RawMessage
	waitErr error

	submitted []runpod.GenerationInput
	waited    []string
}

func (f *fakeJobs) Run(ctx context.Context, input runpod.GenerationInput) (string, error) {
	f.submitted = append(f.submitted, input)
	if f.runErr != nil {
		return "", f.runErr
	}
	return f.jobID, nil
}

func (f *fakeJobs) Wait(ctx context.Context, jobID string) (json.RawMessage, error) {
	f.waited = append(f.waited, jobID)
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	return f.output, nil
}

func testConfig() config.Config {
	return config.Config{
		OutputPrefix: "summaries/",
		MaxNewTokens: 16000,
		Temperature:  0.7,
		TopP:         0.9,
	}
}

// --- Intake Tests ---

func TestProcessUpload_NonTxtSkipped(t *testing.T) {
	store := &fakeStore{objects: map[string]string{}}
	jobs := &fakeJobs{jobID: "job-1"}
	d := NewDispatcher(store, jobs, testConfig())

	for _, key := range []string{"photo.jpg", "audio.mp3", "notes.TXT.bak", "archive.zip"} {
		result, err := d.ProcessUpload(context.Background(), "my-transcripts", key)
		if err != nil {
			t.Fatalf("key %s: expected nil error, got %v", key, err)
		}
		if !result.Skipped {
			t.Errorf("key %s: expected skip", key)
		}
	}
	if len(jobs.submitted) != 0 {
		t.Errorf("expected no job submissions for non-.txt keys, got %d", len(jobs.submitted))
	}
	if len(store.writes) != 0 {
		t.Errorf("expected no writes for non-.txt keys, got %d", len(store.writes))
	}
}

func TestProcessUpload_UppercaseTxtAccepted(t *testing.T) {
	store := &fakeStore{objects: map[string]string{"b/SESSION1.TXT": "hello"}}
	jobs := &fakeJobs{jobID: "job-1", output: json.RawMessage(`"summary"`)}
	d := NewDispatcher(store, jobs, testConfig())

	result, err := d.ProcessUpload(context.Background(), "b", "SESSION1.TXT")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Skipped {
		t.Error("expected .TXT upload to be processed")
	}
}

func TestProcessUpload_MissingObject(t *testing.T) {
	store := &fakeStore{objects: map[string]string{}}
	jobs := &fakeJobs{jobID: "job-1"}
	d := NewDispatcher(store, jobs, testConfig())

	_, err := d.ProcessUpload(context.Background(), "b", "missing.txt")
	if err == nil {
		t.Fatal("expected intake error for unreadable object")
	}
	if len(jobs.submitted) != 0 {
		t.Errorf("expected no submission after intake failure, got %d", len(jobs.submitted))
	}
}

// --- Happy Path Tests ---

func TestProcessUpload_Success(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"my-transcripts/session1.txt": "the full transcription",
	}}
	jobs := &fakeJobs{jobID: "job-1", output: json.RawMessage(`{"text":"The summary."}`)}
	d := NewDispatcher(store, jobs, testConfig())

	result, err := d.ProcessUpload(context.Background(), "my-transcripts", "session1.txt")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(store.writes) != 1 {
		t.Fatalf("expected exactly one write, got %d", len(store.writes))
	}
	w := store.writes[0]
	if w.bucket != "my-transcripts" {
		t.Errorf("expected write to source bucket, got %s", w.bucket)
	}
	if w.key != "summaries/session1_summary.txt" {
		t.Errorf("expected derived output key, got %s", w.key)
	}
	if w.body != "The summary." {
		t.Errorf("expected parsed summary text, got %q", w.body)
	}

	if result.OutputKey != "summaries/session1_summary.txt" {
		t.Errorf("unexpected result output key %s", result.OutputKey)
	}
	if result.SummaryBytes != len("The summary.") {
		t.Errorf("unexpected summary size %d", result.SummaryBytes)
	}

	if len(jobs.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(jobs.submitted))
	}
	input := jobs.submitted[0]
	if !strings.Contains(input.Prompt, "the full transcription") {
		t.Error("expected prompt to contain the transcript")
	}
	if input.MaxNewTokens != 16000 {
		t.Errorf("expected max tokens 16000, got %d", input.MaxNewTokens)
	}
	if len(jobs.waited) != 1 || jobs.waited[0] != "job-1" {
		t.Errorf("expected wait on job-1, got %v", jobs.waited)
	}
}

func TestProcessUpload_OutputBucketOverride(t *testing.T) {
	store := &fakeStore{objects: map[string]string{"src/a.txt": "text"}}
	jobs := &fakeJobs{jobID: "job-1", output: json.RawMessage(`"s"`)}
	cfg := testConfig()
	cfg.OutputBucket = "summaries-bucket"
	d := NewDispatcher(store, jobs, cfg)

	result, err := d.ProcessUpload(context.Background(), "src", "a.txt")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.OutputBucket != "summaries-bucket" {
		t.Errorf("expected override bucket, got %s", result.OutputBucket)
	}
	if store.writes[0].bucket != "summaries-bucket" {
		t.Errorf("expected write to override bucket, got %s", store.writes[0].bucket)
	}
}

func TestProcessUpload_Reprocessing_OverwritesSameKey(t *testing.T) {
	store := &fakeStore{objects: map[string]string{"b/session1.txt": "text"}}
	jobs := &fakeJobs{jobID: "job-1", output: json.RawMessage(`"s"`)}
	d := NewDispatcher(store, jobs, testConfig())

	first, err := d.ProcessUpload(context.Background(), "b", "session1.txt")
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.ProcessUpload(context.Background(), "b", "session1.txt")
	if err != nil {
		t.Fatal(err)
	}
	if first.OutputKey != second.OutputKey {
		t.Errorf("expected identical output keys, got %s and %s", first.OutputKey, second.OutputKey)
	}
}

// --- Failure Tests ---

func TestProcessUpload_SubmissionFailure(t *testing.T) {
	store := &fakeStore{objects: map[string]string{"b/a.txt": "text"}}
	jobs := &fakeJobs{runErr: errors.New("endpoint returned status 500")}
	d := NewDispatcher(store, jobs, testConfig())

	_, err := d.ProcessUpload(context.Background(), "b", "a.txt")
	if err == nil {
		t.Fatal("expected submission error")
	}
	if len(store.writes) != 0 {
		t.Errorf("expected no writes after submission failure, got %d", len(store.writes))
	}
}

func TestProcessUpload_Timeout_NoWrite(t *testing.T) {
	store := &fakeStore{objects: map[string]string{"b/a.txt": "text"}}
	jobs := &fakeJobs{
		jobID:   "job-1",
		waitErr: fmt.Errorf("job job-1: %w after 5m0s (job abandoned)", poll.ErrDeadline),
	}
	d := NewDispatcher(store, jobs, testConfig())

	_, err := d.ProcessUpload(context.Background(), "b", "a.txt")
	if !errors.Is(err, poll.ErrDeadline) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if len(store.writes) != 0 {
		t.Errorf("expected no writes after timeout, got %d", len(store.writes))
	}
}

func TestProcessUpload_JobFailure_NoWrite(t *testing.T) {
	store := &fakeStore{objects: map[string]string{"b/a.txt": "text"}}
	jobs := &fakeJobs{
		jobID:   "job-1",
		waitErr: fmt.Errorf("%w: job job-1 reported FAILED", runpod.ErrJobFailed),
	}
	d := NewDispatcher(store, jobs, testConfig())

	_, err := d.ProcessUpload(context.Background(), "b", "a.txt")
	if !errors.Is(err, runpod.ErrJobFailed) {
		t.Fatalf("expected job failure error, got %v", err)
	}
	if len(store.writes) != 0 {
		t.Errorf("expected no writes after job failure, got %d", len(store.writes))
	}
}

func TestProcessUpload_ParseFallback(t *testing.T) {
	store := &fakeStore{objects: map[string]string{"b/a.txt": "text"}}
	// Primary shape (bare string / text field) absent; first-generation
	// fallback present.
	jobs := &fakeJobs{jobID: "job-1", output: json.RawMessage(`[{"text":"fallback summary"}]`)}
	d := NewDispatcher(store, jobs, testConfig())

	_, err := d.ProcessUpload(context.Background(), "b", "a.txt")
	if err != nil {
		t.Fatalf("expected fallback parsing to succeed, got %v", err)
	}
	if store.writes[0].body != "fallback summary" {
		t.Errorf("expected fallback value written, got %q", store.writes[0].body)
	}
}

func TestProcessUpload_ParseFailure_NoWrite(t *testing.T) {
	store := &fakeStore{objects: map[string]string{"b/a.txt": "text"}}
	jobs := &fakeJobs{jobID: "job-1", output: json.RawMessage(`{"tokens":42}`)}
	d := NewDispatcher(store, jobs, testConfig())

	_, err := d.ProcessUpload(context.Background(), "b", "a.txt")
	if !errors.Is(err, summary.ErrNoSummary) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if len(store.writes) != 0 {
		t.Errorf("expected no writes after parse failure, got %d", len(store.writes))
	}
}

func TestProcessUpload_WriteFailure(t *testing.T) {
	store := &fakeStore{
		objects:  map[string]string{"b/a.txt": "text"},
		writeErr: errors.New("AccessDenied"),
	}
	jobs := &fakeJobs{jobID: "job-1", output: json.RawMessage(`"s"`)}
	d := NewDispatcher(store, jobs, testConfig())

	_, err := d.ProcessUpload(context.Background(), "b", "a.txt")
	if err == nil {
		t.Fatal("expected write error to surface")
	}
	if !strings.Contains(err.Error(), "write summary") {
		t.Errorf("expected write stage in error, got %v", err)
	}
}
