// Package summary extracts summary text from RunPod job output and derives
// the S3 key the summary is written to.
//
// The output shape of a completed job depends on how the endpoint's worker
// is configured, so extraction tries an ordered list of known field paths
// and stops at the first that yields text.
package summary

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// ErrNoSummary is returned when no known field path matches the job output.
var ErrNoSummary = errors.New("no recognized summary field in job output")

// strategy is one candidate shape for the output payload.
type strategy struct {
	name    string
	extract func(gjson.Result) (string, bool)
}

// strategies are tried in order; first non-empty match wins. Shapes observed
// across endpoint worker versions:
//   - a bare string
//   - {"text": "..."}
//   - [{"text": "..."}]  (list of generations; take the first)
//   - ["..."]
var strategies = []strategy{
	{"output-string", func(r gjson.Result) (string, bool) {
		if r.Type == gjson.String {
			return r.Str, true
		}
		return "", false
	}},
	{"output-text", func(r gjson.Result) (string, bool) {
		if t := r.Get("text"); t.Type == gjson.String {
			return t.Str, true
		}
		return "", false
	}},
	{"first-generation-text", func(r gjson.Result) (string, bool) {
		if t := r.Get("0.text"); t.Type == gjson.String {
			return t.Str, true
		}
		return "", false
	}},
	{"first-generation-string", func(r gjson.Result) (string, bool) {
		if t := r.Get("0"); t.Type == gjson.String {
			return t.Str, true
		}
		return "", false
	}},
}

// Extract returns the summary text from a completed job's raw output
// payload. A strategy that matches but yields an empty string counts as
// not-applicable; if no strategy yields text, Extract fails rather than
// letting an empty summary through.
func Extract(output []byte) (string, error) {
	if len(output) == 0 {
		return "", fmt.Errorf("%w: completed job carried no output", ErrNoSummary)
	}
	if !gjson.ValidBytes(output) {
		return "", fmt.Errorf("%w: output is not valid JSON", ErrNoSummary)
	}

	root := gjson.ParseBytes(output)
	for _, s := range strategies {
		if text, ok := s.extract(root); ok && text != "" {
			log.Debug().Str("strategy", s.name).Int("summaryLength", len(text)).Msg("Summary extracted from job output")
			return text, nil
		}
	}
	return "", fmt.Errorf("%w (output: %s)", ErrNoSummary, truncate(string(output), 200))
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
