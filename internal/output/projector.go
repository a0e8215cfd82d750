package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/Backland-Labs/docflow/internal/analysis"
	"github.com/Backland-Labs/docflow/internal/workflow"
)

// Format selects how a View is rendered
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// Status is the presentation outcome of a run
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// FailurePrefix precedes the service message in failure headlines
const FailurePrefix = "Analysis Failed: "

// TaskRow is a task prepared for display
type TaskRow struct {
	ObligationID string `json:"obligation_id,omitempty" yaml:"obligation_id,omitempty"`
	Summary      string `json:"summary" yaml:"summary"`
	Department   string `json:"department" yaml:"department"`
	Risk         string `json:"risk" yaml:"risk"`
	Remediation  string `json:"remediation" yaml:"remediation"`
	Rationale    string `json:"rationale" yaml:"rationale"`
	Page         string `json:"page" yaml:"page"`
}

// RiskSummary counts tasks per risk level
type RiskSummary struct {
	High    int `json:"high" yaml:"high"`
	Medium  int `json:"medium" yaml:"medium"`
	Low     int `json:"low" yaml:"low"`
	Unknown int `json:"unknown" yaml:"unknown"`
}

// View is the presentation-ready projection of a run snapshot
type View struct {
	RunID      string            `json:"run_id" yaml:"run_id"`
	File       string            `json:"file" yaml:"file"`
	State      string            `json:"state" yaml:"state"`
	Status     Status            `json:"status" yaml:"status"`
	Headline   string            `json:"headline" yaml:"headline"`
	RemoteID   string            `json:"remote_id,omitempty" yaml:"remote_id,omitempty"`
	ErrorKind  string            `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Message    string            `json:"message,omitempty" yaml:"message,omitempty"`
	DurationMs int64             `json:"duration_ms" yaml:"duration_ms"`
	Text       string            `json:"text,omitempty" yaml:"text,omitempty"`
	Summaries  []string          `json:"summaries,omitempty" yaml:"summaries,omitempty"`
	Tasks      []TaskRow         `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Risks      *RiskSummary      `json:"risks,omitempty" yaml:"risks,omitempty"`
	Clauses    []analysis.Clause `json:"clauses,omitempty" yaml:"clauses,omitempty"`
}

// Project maps a snapshot to a View. Tasks are ordered from highest to lowest
// risk, keeping service order within a level.
func Project(snap workflow.Snapshot) View {
	v := View{
		RunID:      snap.RunID,
		File:       snap.File,
		State:      string(snap.State),
		RemoteID:   snap.RemoteID,
		DurationMs: snap.Duration().Milliseconds(),
	}

	switch snap.State {
	case workflow.StateSucceeded:
		v.Status = StatusSuccess
		v.Headline = "Analysis complete"
	case workflow.StateFailed:
		v.Status = StatusError
	case workflow.StateTimedOut:
		v.Status = StatusTimeout
	default:
		v.Status = StatusPending
		v.Headline = "Analysis in progress"
	}

	if snap.Error != nil {
		v.ErrorKind = string(snap.Error.Kind)
		v.Message = snap.Error.Message
		if snap.State == workflow.StateFailed {
			v.Headline = FailurePrefix + snap.Error.Message
		} else {
			v.Headline = snap.Error.Message
		}
	}

	if r := snap.Result; r != nil {
		v.Text = r.Text
		v.Summaries = r.Summaries
		v.Clauses = r.Clauses

		tasks := append([]analysis.Task(nil), r.AnalyzedTasks...)
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].RiskScore.Rank() > tasks[j].RiskScore.Rank()
		})
		for _, t := range tasks {
			v.Tasks = append(v.Tasks, projectTask(t))
		}

		if len(r.AnalyzedTasks) > 0 {
			counts := r.RiskCounts()
			v.Risks = &RiskSummary{
				High:    counts[analysis.RiskHigh],
				Medium:  counts[analysis.RiskMedium],
				Low:     counts[analysis.RiskLow],
				Unknown: counts[analysis.RiskUnknown],
			}
		}
	}

	return v
}

func projectTask(t analysis.Task) TaskRow {
	page := "Unknown"
	if t.SourcePage > 0 {
		page = strconv.Itoa(t.SourcePage)
	}
	return TaskRow{
		ObligationID: t.ObligationID,
		Summary:      t.Summary,
		Department:   t.Department,
		Risk:         string(t.RiskScore),
		Remediation:  t.RemediationSteps,
		Rationale:    t.XAIRationale,
		Page:         page,
	}
}

// Render writes v in the given format. Text goes through the printer; JSON
// and YAML are written to the printer's regular output.
func Render(p *Printer, v View, format Format) error {
	switch format {
	case FormatJSON:
		return RenderJSON(p.Out(), v)
	case FormatYAML:
		return RenderYAML(p.Out(), v)
	default:
		RenderText(p, v)
		return nil
	}
}

// RenderJSON writes v as indented JSON
func RenderJSON(w io.Writer, v View) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// RenderYAML writes v as YAML
func RenderYAML(w io.Writer, v View) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return enc.Close()
}

// RenderText prints v for a terminal
func RenderText(p *Printer, v View) {
	switch v.Status {
	case StatusSuccess:
		p.Success("%s", v.Headline)
	case StatusError, StatusTimeout:
		p.Error("%s", v.Headline)
		return
	default:
		p.Info("%s", v.Headline)
		return
	}

	p.Detail("File: %s", v.File)
	if v.RemoteID != "" {
		p.Detail("Upload ID: %s", v.RemoteID)
	}

	if len(v.Summaries) > 0 {
		p.Step("Summaries")
		for i, s := range v.Summaries {
			p.Detail("%d. %s", i+1, s)
		}
	} else if v.Text != "" {
		p.Step("Extracted text")
		p.Detail("%s", truncate(v.Text, 500))
	}

	if v.Risks != nil {
		p.Step("Compliance tasks: %d (high %d, medium %d, low %d)",
			len(v.Tasks), v.Risks.High, v.Risks.Medium, v.Risks.Low)
		renderTasks(p, v.Tasks)
	} else if v.Text == "" && len(v.Summaries) == 0 && len(v.Clauses) == 0 {
		p.Info("No compliance tasks were found")
	}

	if len(v.Clauses) > 0 {
		p.Step("Clauses")
		for _, c := range v.Clauses {
			p.Detail("[%d] %s (%s)", c.ID, c.ClauseText, c.DateAdded)
		}
	}
}

func renderTasks(p *Printer, tasks []TaskRow) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RISK\tDEPARTMENT\tPAGE\tSUMMARY\tREMEDIATION")
	for _, t := range tasks {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.Risk, t.Department, t.Page,
			truncate(t.Summary, 60), truncate(t.Remediation, 60))
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
