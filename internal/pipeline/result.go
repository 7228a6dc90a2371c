package pipeline

import (
	"webforge/internal/audit"
	"webforge/internal/policy"
	"webforge/internal/project"
	"webforge/internal/quality"
	"webforge/internal/sandbox"
)

// Responsive summarizes responsive readiness of the final files.
type Responsive struct {
	Ready    bool     `json:"ready"`
	Warnings []string `json:"warnings"`
}

// Metadata is streamed once after every file.
type Metadata struct {
	RequestID   string                `json:"requestId"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Framework   string                `json:"framework"`
	RuntimeHint policy.RuntimeHint    `json:"runtimeHint"`
	Manifest    *policy.Manifest      `json:"manifest"`
	Responsive  Responsive            `json:"responsive"`
	Quality     *quality.Report       `json:"quality"`
	Runtime     *sandbox.Result       `json:"runtime"`
	Accepted    bool                  `json:"accepted"`
	BestEffort  bool                  `json:"bestEffort"`
	RolledBack  bool                  `json:"rolledBack"`
	Retries     int                   `json:"retries"`
	Confidence  float64               `json:"confidence"`
	Warnings    []string              `json:"warnings,omitempty"`
	Repairs     []project.DiffSummary `json:"repairs,omitempty"`
	Usage       audit.Summary         `json:"usage"`

	// Ledger is the full call log for the CLI; it is not streamed.
	Ledger *audit.Ledger `json:"-"`
}

// Result is a finished generation.
type Result struct {
	Files    []project.File
	Metadata *Metadata
}

// snapshot is the state of one pass. Every field is replaced, never mutated.
type snapshot struct {
	project  *project.Project
	manifest *policy.Manifest
	hint     policy.RuntimeHint
	report   *quality.Report
	runtime  *sandbox.Result
}
