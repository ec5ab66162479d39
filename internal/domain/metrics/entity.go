// internal/domain/metrics/entity.go
package metrics

// Metric is one headline counter with its change against the prior period.
type Metric struct {
	Value  float64 `json:"value"`
	Change float64 `json:"change"`
}

type Summary struct {
	Messages      Metric `json:"messages"`
	VoiceMinutes  Metric `json:"voiceMinutes"`
	VideoSessions Metric `json:"videoSessions"`
	APICalls      Metric `json:"apiCalls"`
}

// UsagePoint is one day of the usage chart.
type UsagePoint struct {
	Name     string `json:"name"`
	Messages int64  `json:"messages"`
	Voice    int64  `json:"voice"`
	Video    int64  `json:"video"`
	API      int64  `json:"api"`
}
