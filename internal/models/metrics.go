package models

import "time"

// SystemMetrics is an aggregated runtime snapshot served by the diagnostics endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	AnalysisRunCount         uint64    `json:"analysis_run_count"`
	AverageAnalysisRunMs     float64   `json:"average_analysis_run_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
