// Package metrics emits custom metrics in AWS CloudWatch Embedded Metrics
// Format (EMF): a single structured JSON line on stdout that CloudWatch Logs
// extracts automatically, with no API calls and no added latency.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Standard CloudWatch metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
)

// metricDef holds the name and unit for a single metric.
type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

// directive is the _aws metadata block required by EMF.
type directive struct {
	Timestamp         int64      `json:"Timestamp"`
	CloudWatchMetrics []cwMetric `json:"CloudWatchMetrics"`
}

// cwMetric defines a CloudWatch metric namespace, dimensions, and metric definitions.
type cwMetric struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

// Emitter accumulates dimensions, metrics, and properties for a single EMF
// document. It is not safe for concurrent use; create one per operation.
type Emitter struct {
	namespace  string
	out        io.Writer
	dimensions map[string]string
	defs       map[string]metricDef
	values     map[string]float64
	properties map[string]any
}

// New creates an Emitter for the given CloudWatch namespace, writing to
// stdout. It adds the FunctionName dimension from the Lambda environment
// when present.
func New(namespace string) *Emitter {
	e := &Emitter{
		namespace:  namespace,
		out:        os.Stdout,
		dimensions: make(map[string]string),
		defs:       make(map[string]metricDef),
		values:     make(map[string]float64),
		properties: make(map[string]any),
	}
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		e.dimensions["FunctionName"] = fn
	}
	return e
}

// To redirects the emitted document to w. Used by tests.
func (e *Emitter) To(w io.Writer) *Emitter {
	e.out = w
	return e
}

// Dim adds a dimension key-value pair. Dimensions are indexed in CloudWatch
// and appear as filterable attributes on the metric.
func (e *Emitter) Dim(key, value string) *Emitter {
	e.dimensions[key] = value
	return e
}

// Value records a named metric value with a CloudWatch unit.
func (e *Emitter) Value(name string, value float64, unit string) *Emitter {
	e.defs[name] = metricDef{Name: name, Unit: unit}
	e.values[name] = value
	return e
}

// Duration records a duration metric in milliseconds.
func (e *Emitter) Duration(name string, d time.Duration) *Emitter {
	return e.Value(name, float64(d.Milliseconds()), UnitMilliseconds)
}

// Bytes records a size metric.
func (e *Emitter) Bytes(name string, n int) *Emitter {
	return e.Value(name, float64(n), UnitBytes)
}

// Count records a count metric with value 1.
func (e *Emitter) Count(name string) *Emitter {
	return e.Value(name, 1, UnitCount)
}

// Property adds a non-metric field to the EMF document. Properties are
// searchable in CloudWatch Logs Insights but create no CloudWatch metric.
func (e *Emitter) Property(key string, value any) *Emitter {
	e.properties[key] = value
	return e
}

// Emit serializes the EMF document as a single JSON line. An Emitter with
// no recorded metrics emits nothing. After emitting, the Emitter should not
// be reused.
func (e *Emitter) Emit() {
	if len(e.defs) == 0 {
		return
	}

	defs := make([]metricDef, 0, len(e.defs))
	for _, d := range e.defs {
		defs = append(defs, d)
	}
	dimKeys := make([]string, 0, len(e.dimensions))
	for k := range e.dimensions {
		dimKeys = append(dimKeys, k)
	}

	doc := make(map[string]any, len(e.dimensions)+len(e.values)+len(e.properties)+1)
	doc["_aws"] = directive{
		Timestamp: time.Now().UnixMilli(),
		CloudWatchMetrics: []cwMetric{{
			Namespace:  e.namespace,
			Dimensions: [][]string{dimKeys},
			Metrics:    defs,
		}},
	}
	for k, v := range e.dimensions {
		doc[k] = v
	}
	for k, v := range e.values {
		doc[k] = v
	}
	for k, v := range e.properties {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emf: failed to marshal metrics: %v\n", err)
		return
	}

	// EMF must be a single line.
	fmt.Fprintln(e.out, string(data))
}
