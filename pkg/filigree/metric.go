package filigree

import (
	"fmt"
	"strings"
)

// Metric is the distance function a vector collection is built with.
type Metric string

// Supported distance metrics.
const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
	MetricL1     Metric = "l1"
)

// ParseMetric normalizes a metric name. The empty string parses to
// MetricCosine; "euclidean" and "manhattan" are accepted as aliases.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return MetricCosine, nil
	case "l2", "euclidean":
		return MetricL2, nil
	case "l1", "manhattan":
		return MetricL1, nil
	default:
		return "", fmt.Errorf("unknown distance metric %q", s)
	}
}

// Valid reports whether the metric is one of the supported values.
func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricL2, MetricL1:
		return true
	}
	return false
}

// Similarity converts a raw backend distance into a similarity score.
//
// Cosine distance maps through 1-d, floored at 0 so opposite vectors do
// not produce negative scores downstream. The unbounded L1 and L2
// distances map through 1/(1+d). All three land in [0,1] with 1 meaning
// identical vectors, which keeps relevance thresholds and confidence
// arithmetic metric-independent.
func (m Metric) Similarity(distance float64) float64 {
	switch m {
	case MetricL2, MetricL1:
		return 1 / (1 + distance)
	default:
		s := 1 - distance
		if s < 0 {
			return 0
		}
		return s
	}
}
