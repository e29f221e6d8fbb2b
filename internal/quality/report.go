package quality

// Report summarizes the tier distribution of a set of resolutions.
type Report struct {
	Total              int          `json:"total"`
	Counts             map[Tier]int `json:"counts"`
	HighPercentage     float64      `json:"high_percentage"`
	DegradedPercentage float64      `json:"degraded_percentage"`
	FailedPercentage   float64      `json:"failed_percentage"`
	AvgLatencyMs       float64      `json:"avg_latency_ms"`
}

type Sample struct {
	Tier      Tier
	LatencyMs int64
}

func Summarize(samples []Sample) Report {
	report := Report{Counts: map[Tier]int{}}
	if len(samples) == 0 {
		return report
	}

	var latency int64
	for _, s := range samples {
		report.Counts[s.Tier]++
		latency += s.LatencyMs
	}

	total := float64(len(samples))
	report.Total = len(samples)
	report.HighPercentage = float64(report.Counts[High]) / total * 100
	report.DegradedPercentage = float64(report.Counts[Medium]+report.Counts[Low]) / total * 100
	report.FailedPercentage = float64(report.Counts[None]) / total * 100
	report.AvgLatencyMs = float64(latency) / total

	return report
}
