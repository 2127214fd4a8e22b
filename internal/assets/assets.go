// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time, keeping the prompt wording reviewable outside Go source.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

//go:embed prompts/summarize.txt
var summarizePromptTemplate string

// Pre-parsed template. template.Must panics on a malformed template,
// catching errors at program startup rather than at call time.
var summarizeTmpl = template.Must(template.New("summarize").Parse(summarizePromptTemplate))

// promptData holds the dynamic data injected into the summarization prompt.
type promptData struct {
	// Transcript is the full uploaded transcription text.
	Transcript string
}

// RenderSummarizePrompt renders the summarization prompt around the
// given transcription text.
func RenderSummarizePrompt(transcript string) string {
	var buf bytes.Buffer
	// Template execution errors are not expected with this simple template;
	// return whatever was rendered.
	_ = summarizeTmpl.Execute(&buf, promptData{Transcript: transcript})
	return buf.String()
}
