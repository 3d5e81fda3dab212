package models

import "time"

// SystemMetrics is a lightweight snapshot served on the admin dashboard.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	PDFRenderCount           uint64    `json:"pdf_render_count"`
	AveragePDFRenderMs       float64   `json:"average_pdf_render_ms"`
	LettersSent              uint64    `json:"letters_sent"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
