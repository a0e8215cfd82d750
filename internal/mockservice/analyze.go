package mockservice

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Backland-Labs/docflow/internal/document"
)

// taskPayload is a task as the service puts it on the wire. The timestamp is
// seconds since the epoch.
type taskPayload struct {
	ObligationID      string  `json:"obligation_id"`
	Summary           string  `json:"summary"`
	Department        string  `json:"department"`
	RiskScore         string  `json:"risk_score"`
	RemediationSteps  string  `json:"remediation_steps"`
	XAIRationale      string  `json:"xai_rationale"`
	SourcePage        int     `json:"source_page"`
	OriginalChunkID   string  `json:"original_chunk_id"`
	AnalysisTimestamp float64 `json:"analysis_timestamp"`
}

// chunk is one page of the uploaded document
type chunk struct {
	ID      string
	Page    int
	Content string
}

type obligation struct {
	summary     string
	department  string
	risk        string
	remediation string
	rationale   string
}

// catalog stands in for the model output; page n yields catalog[(n-1)%len]
var catalog = []obligation{
	{
		summary:     "Retain transaction records for five years",
		department:  "Legal",
		risk:        "High",
		remediation: "Create a records retention policy and schedule yearly audits",
		rationale:   "Institutions shall retain all transaction records for a period of not less than five years.",
	},
	{
		summary:     "Encrypt customer data at rest",
		department:  "IT",
		risk:        "Medium",
		remediation: "Enable storage encryption and rotate keys every 90 days",
		rationale:   "Personal data must be protected by appropriate technical measures, including encryption.",
	},
	{
		summary:     "Train staff on reporting obligations",
		department:  "Operations",
		risk:        "Low",
		remediation: "Add the reporting module to the annual compliance training",
		rationale:   "Employees should be made aware of their obligation to report suspicious activity.",
	},
}

// chunks splits a document into one chunk per page
func chunks(file *document.File) []chunk {
	out := make([]chunk, file.Pages)
	for i := range out {
		page := i + 1
		out[i] = chunk{
			ID:      uuid.NewString(),
			Page:    page,
			Content: pageText(file.Name, page),
		}
	}
	return out
}

func pageText(name string, page int) string {
	o := catalog[(page-1)%len(catalog)]
	return fmt.Sprintf("%s (%s, page %d)", o.rationale, name, page)
}

// extractText returns the text of every page, one page per line
func extractText(file *document.File) string {
	texts := make([]string, 0, file.Pages)
	for _, c := range chunks(file) {
		texts = append(texts, c.Content)
	}
	return strings.Join(texts, "\n")
}

// analyze runs the chunk analysis with bounded parallelism and returns the
// tasks in page order
func (s *Service) analyze(ctx context.Context, file *document.File) ([]taskPayload, error) {
	parts := chunks(file)
	results := make([][]taskPayload, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerCount(len(parts)))

	for i, part := range parts {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = s.analyzeChunk(part)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze %s: %w", file.Name, err)
	}

	var tasks []taskPayload
	for _, r := range results {
		tasks = append(tasks, r...)
	}
	return tasks, nil
}

func (s *Service) analyzeChunk(c chunk) []taskPayload {
	o := catalog[(c.Page-1)%len(catalog)]
	return []taskPayload{{
		ObligationID:      uuid.NewString(),
		Summary:           o.summary,
		Department:        o.department,
		RiskScore:         o.risk,
		RemediationSteps:  o.remediation,
		XAIRationale:      o.rationale,
		SourcePage:        c.Page,
		OriginalChunkID:   c.ID,
		AnalysisTimestamp: float64(s.now().UnixNano()) / float64(time.Second),
	}}
}

func (s *Service) workerCount(chunks int) int {
	if s.opts.Workers > 0 {
		return s.opts.Workers
	}
	return max(min(runtime.NumCPU(), chunks), 1)
}

// summaryWidth is the size of the text pieces that are summarized separately
const summaryWidth = 1000

// summarize splits text into pieces of at most summaryWidth characters on
// word boundaries and keeps the first sentence of each piece
func summarize(text string) []string {
	var summaries []string
	for _, piece := range wrap(text, summaryWidth) {
		summaries = append(summaries, firstSentence(piece))
	}
	return summaries
}

func wrap(text string, width int) []string {
	var (
		pieces []string
		line   strings.Builder
	)
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > width {
			pieces = append(pieces, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		pieces = append(pieces, line.String())
	}
	return pieces
}

// firstSentence cuts s after the first terminator that ends a word, so
// file names and abbreviations like "doc.pdf" stay intact
func firstSentence(s string) string {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 == len(s) || s[i+1] == ' ' {
				return s[:i+1]
			}
		}
	}
	return s
}
