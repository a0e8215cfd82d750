package analysis

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrMalformedResponse is returned when a success response is not a JSON document
var ErrMalformedResponse = errors.New("malformed response")

// Shape is the kind of payload a response carries
type Shape int

const (
	// ShapeResult carries a complete analysis result
	ShapeResult Shape = iota
	// ShapeTicket carries only a remote identifier for a pending result
	ShapeTicket
	// ShapeError carries an application level failure
	ShapeError
	// ShapeIncomplete has a success status but neither a result nor an identifier
	ShapeIncomplete
)

func (s Shape) String() string {
	switch s {
	case ShapeResult:
		return "result"
	case ShapeTicket:
		return "ticket"
	case ShapeError:
		return "error"
	case ShapeIncomplete:
		return "incomplete"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Reply is a classified service response
type Reply struct {
	Shape    Shape
	Status   int
	Result   *Result
	RemoteID string
	Message  string
}

// Classify interprets a raw response. Non-2xx statuses always classify as
// ShapeError, using the service supplied "error" or "message" field when the
// body has one. A 2xx body that is not JSON yields ErrMalformedResponse.
func Classify(status int, body []byte) (Reply, error) {
	if status < 200 || status > 299 {
		msg := errorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("HTTP error! status: %d", status)
		}
		return Reply{Shape: ShapeError, Status: status, Message: msg}, nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !gjson.ValidBytes(trimmed) {
		return Reply{Status: status}, fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
	}

	root := gjson.ParseBytes(trimmed)
	switch {
	case root.IsArray():
		// bare task list
		return Reply{
			Shape:  ShapeResult,
			Status: status,
			Result: &Result{AnalyzedTasks: decodeTasks(root)},
		}, nil
	case !root.IsObject():
		return Reply{Status: status}, fmt.Errorf("%w: expected a JSON object", ErrMalformedResponse)
	}

	if msg := strings.TrimSpace(root.Get("error").String()); msg != "" {
		return Reply{Shape: ShapeError, Status: status, Message: msg}, nil
	}

	remoteID := strings.TrimSpace(root.Get("upload_id").String())

	if result, ok := decodeResult(root); ok {
		return Reply{Shape: ShapeResult, Status: status, Result: result, RemoteID: remoteID}, nil
	}

	if remoteID != "" {
		return Reply{Shape: ShapeTicket, Status: status, RemoteID: remoteID}, nil
	}

	return Reply{Shape: ShapeIncomplete, Status: status}, nil
}

func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	root := gjson.ParseBytes(body)
	for _, key := range []string{"error", "message", "detail"} {
		if msg := strings.TrimSpace(root.Get(key).String()); msg != "" {
			return msg
		}
	}
	return ""
}

func decodeResult(root gjson.Result) (*Result, bool) {
	tasks := root.Get("analyzed_tasks")
	text := root.Get("text")
	summaries := root.Get("summaries")
	clauses := root.Get("clauses")

	found := false
	result := &Result{Filename: root.Get("filename").String()}

	if tasks.IsArray() {
		found = true
		result.AnalyzedTasks = decodeTasks(tasks)
	}
	if text.Exists() && text.Type == gjson.String {
		found = true
		result.Text = text.String()
	}
	if summaries.IsArray() {
		found = true
		for _, s := range summaries.Array() {
			result.Summaries = append(result.Summaries, s.String())
		}
	}
	if clauses.IsArray() {
		found = true
		for _, c := range clauses.Array() {
			result.Clauses = append(result.Clauses, Clause{
				ID:         c.Get("id").Int(),
				ClauseText: c.Get("clause_text").String(),
				DateAdded:  c.Get("date_added").String(),
			})
		}
	}

	return result, found
}

func decodeTasks(list gjson.Result) []Task {
	items := list.Array()
	tasks := make([]Task, 0, len(items))
	for _, item := range items {
		tasks = append(tasks, decodeTask(item))
	}
	return tasks
}

func decodeTask(v gjson.Result) Task {
	return Task{
		ObligationID:      v.Get("obligation_id").String(),
		Summary:           v.Get("summary").String(),
		Department:        v.Get("department").String(),
		RiskScore:         ParseRisk(v.Get("risk_score").String()),
		RemediationSteps:  v.Get("remediation_steps").String(),
		XAIRationale:      v.Get("xai_rationale").String(),
		SourcePage:        sourcePage(v.Get("source_page")),
		OriginalChunkID:   v.Get("original_chunk_id").String(),
		AnalysisTimestamp: timestamp(v.Get("analysis_timestamp")),
	}
}

// sourcePage accepts integers and numeric strings; anything else (the service
// sends "Unknown" when it lost track) is page 0.
func sourcePage(v gjson.Result) int {
	switch v.Type {
	case gjson.Number:
		return int(v.Int())
	case gjson.String:
		if n, err := strconv.Atoi(strings.TrimSpace(v.Str)); err == nil {
			return n
		}
	}
	return 0
}

func timestamp(v gjson.Result) time.Time {
	if v.Type != gjson.Number {
		return time.Time{}
	}
	sec, frac := math.Modf(v.Float())
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
