// Package analysis models the payloads produced by the remote document
// analysis service and classifies raw responses into results, continuation
// tickets, or errors.
package analysis

import (
	"strings"
	"time"
)

// Risk is the estimated risk of non-compliance for a task
type Risk string

const (
	RiskHigh    Risk = "High"
	RiskMedium  Risk = "Medium"
	RiskLow     Risk = "Low"
	RiskUnknown Risk = "Unknown"
)

// ParseRisk normalizes a risk label. Unrecognized labels map to RiskUnknown.
func ParseRisk(s string) Risk {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return RiskHigh
	case "medium":
		return RiskMedium
	case "low":
		return RiskLow
	default:
		return RiskUnknown
	}
}

// Rank orders risks from most to least severe
func (r Risk) Rank() int {
	switch r {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

// Task is one structured compliance obligation
type Task struct {
	ObligationID      string    `json:"obligation_id,omitempty" yaml:"obligation_id,omitempty"`
	Summary           string    `json:"summary" yaml:"summary"`
	Department        string    `json:"department" yaml:"department"`
	RiskScore         Risk      `json:"risk_score" yaml:"risk_score"`
	RemediationSteps  string    `json:"remediation_steps" yaml:"remediation_steps"`
	XAIRationale      string    `json:"xai_rationale" yaml:"xai_rationale"`
	SourcePage        int       `json:"source_page" yaml:"source_page"`
	OriginalChunkID   string    `json:"original_chunk_id,omitempty" yaml:"original_chunk_id,omitempty"`
	AnalysisTimestamp time.Time `json:"analysis_timestamp,omitempty" yaml:"analysis_timestamp,omitempty"`
}

// Clause is a stored summary clause
type Clause struct {
	ID         int64  `json:"id" yaml:"id"`
	ClauseText string `json:"clause_text" yaml:"clause_text"`
	DateAdded  string `json:"date_added" yaml:"date_added"`
}

// Result is the structured payload of a successful run. Which fields are set
// depends on the service variant that produced it.
type Result struct {
	Filename      string   `json:"filename,omitempty" yaml:"filename,omitempty"`
	Text          string   `json:"text,omitempty" yaml:"text,omitempty"`
	Summaries     []string `json:"summaries,omitempty" yaml:"summaries,omitempty"`
	AnalyzedTasks []Task   `json:"analyzed_tasks,omitempty" yaml:"analyzed_tasks,omitempty"`
	Clauses       []Clause `json:"clauses,omitempty" yaml:"clauses,omitempty"`
}

// NeedsSummary reports whether the result carries extracted text that has not
// been summarized or analyzed yet
func (r *Result) NeedsSummary() bool {
	return r != nil && strings.TrimSpace(r.Text) != "" && len(r.Summaries) == 0 && len(r.AnalyzedTasks) == 0
}

// RiskCounts tallies tasks per risk level
func (r *Result) RiskCounts() map[Risk]int {
	counts := make(map[Risk]int)
	if r == nil {
		return counts
	}
	for _, task := range r.AnalyzedTasks {
		counts[task.RiskScore]++
	}
	return counts
}
