package summary

import (
	"path"
	"strings"
)

// OutputKey derives the S3 key a summary is written to: the source key's
// base name minus its extension, with "_summary.txt" appended, under the
// given prefix. Pure and deterministic, so re-processing the same upload
// overwrites the same output object.
//
//	OutputKey("summaries/", "calls/session1.txt") = "summaries/session1_summary.txt"
func OutputKey(prefix, sourceKey string) string {
	base := path.Base(sourceKey)
	base = strings.TrimSuffix(base, path.Ext(base))
	return prefix + base + "_summary.txt"
}
