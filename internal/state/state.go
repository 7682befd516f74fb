// Package state persists the report of the last installation run.
package state

import (
	"encoding/json" // Report file encoding
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid" // Run identifiers

	"astra-setup/internal/logger"
)

// Outcome is the result recorded for one component.
type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failure"
	Skipped Outcome = "skipped"
)

// Report records one installation run.
// It keeps the resolved order and, per component id, the outcome and why.
type Report struct {
	RunID     uuid.UUID          `json:"run_id"`            // Unique id of this run
	Started   time.Time          `json:"started"`           // When the run began
	Finished  time.Time          `json:"finished"`          // When the run ended; zero while running
	DryRun    bool               `json:"dry_run"`           // True if nothing was actually changed
	Cancelled bool               `json:"cancelled"`         // True if the run was interrupted
	Order     []string           `json:"order"`             // Leaf ids in installation order
	Results   map[string]Outcome `json:"results"`           // Map from component id to its outcome
	Reasons   map[string]string  `json:"reasons,omitempty"` // Map from component id to a failure or skip reason
}

// NewReport starts a report with a fresh run id.
func NewReport(dryRun bool) *Report {
	return &Report{
		RunID:   uuid.New(),
		Started: time.Now(),
		DryRun:  dryRun,
		Order:   []string{},
		Results: make(map[string]Outcome),
		Reasons: make(map[string]string),
	}
}

// Record sets the outcome of id. An empty reason clears any previous one.
func (r *Report) Record(id string, outcome Outcome, reason string) {
	r.Results[id] = outcome
	if reason == "" {
		delete(r.Reasons, id)
		return
	}
	r.Reasons[id] = reason
}

// Counts tallies outcomes.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, 3)
	for _, o := range r.Results {
		counts[o]++
	}
	return counts
}

// With returns the ids recorded with outcome, sorted.
func (r *Report) With(outcome Outcome) []string {
	var ids []string
	for id, o := range r.Results {
		if o == outcome {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// OK reports whether nothing failed and the run was not cancelled.
func (r *Report) OK() bool {
	return !r.Cancelled && len(r.With(Failure)) == 0
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// SaveReport writes r as indented JSON, creating the parent directory.
func SaveReport(path string, r *Report) error {
	// Serialize the report with indentation so it stays readable by hand
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	logger.Debug("[DEBUG] Writing report to %s:\n%s\n", path, string(data))

	// The state directory does not exist before the first run
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write state file %s: %w", path, err)
	}
	return nil
}

// LoadReport reads the report saved at path. A missing file yields an error
// satisfying errors.Is(err, os.ErrNotExist).
func LoadReport(path string) (*Report, error) {
	// Read entire report file into memory
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Parse JSON data into a Report struct
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	// A hand-edited file may carry null maps.
	if r.Results == nil {
		r.Results = make(map[string]Outcome)
	}
	if r.Reasons == nil {
		r.Reasons = make(map[string]string)
	}
	return &r, nil
}
