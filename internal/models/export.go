package models

import "time"

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportKind selects which findings table is exported.
type ExportKind string

const (
	ExportKindAtRisk     ExportKind = "at_risk"
	ExportKindWeaknesses ExportKind = "weaknesses"
	ExportKindAnomalies  ExportKind = "anomalies"
	ExportKindMatrix     ExportKind = "matrix"
)

// ExportRequest describes one export generation call.
type ExportRequest struct {
	Kind   ExportKind   `json:"kind" validate:"required,oneof=at_risk weaknesses anomalies matrix"`
	Format ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	ID           string       `json:"id"`
	Kind         ExportKind   `json:"kind"`
	Format       ExportFormat `json:"format"`
	RelativePath string       `json:"-"`
	Token        string       `json:"token"`
	URL          string       `json:"url"`
	ExpiresAt    time.Time    `json:"expires_at"`
}
