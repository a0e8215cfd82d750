package mockservice

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Backland-Labs/docflow/internal/analysis"
	"github.com/Backland-Labs/docflow/internal/document"
	"github.com/Backland-Labs/docflow/internal/document/pdftest"
	"github.com/Backland-Labs/docflow/internal/transport"
	"github.com/Backland-Labs/docflow/internal/workflow"
)

// startEngine mounts a mock service and returns an engine pointed at it
func startEngine(t *testing.T, opts Options, configure func(*workflow.Options)) (*workflow.Engine, *Service) {
	t.Helper()
	svc := New(opts)
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)

	wopts := workflow.Options{
		SubmitURL:         srv.URL + "/upload_regulation",
		RetrieveURL:       srv.URL + "/get_latest_tasks/{id}",
		Timeout:           5 * time.Second,
		AllowedMediaTypes: []string{document.MediaTypePDF},
	}
	if configure != nil {
		configure(&wopts)
	}
	return workflow.New(transport.NewAdapter(), wopts), svc
}

func runToEnd(t *testing.T, engine *workflow.Engine, file *document.File) (workflow.Snapshot, []workflow.State) {
	t.Helper()
	run, err := engine.Start(context.Background(), file)
	require.NoError(t, err)

	var states []workflow.State
	for snap := range run.Subscribe() {
		states = append(states, snap.State)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snap, err := run.Wait(ctx)
	require.NoError(t, err)
	return snap, states
}

func TestEndToEnd_AsyncTicketAndRetrieval(t *testing.T) {
	engine, _ := startEngine(t, Options{Async: true}, nil)

	snap, states := runToEnd(t, engine, document.New("reg.pdf", pdftest.Build(4)))

	assert.Equal(t, workflow.StateSucceeded, snap.State)
	assert.Equal(t, []workflow.State{
		workflow.StateIdle, workflow.StateSubmitting, workflow.StateAwaitingResult, workflow.StateSucceeded,
	}, states)
	assert.NotEmpty(t, snap.RemoteID)
	require.NotNil(t, snap.Result)
	require.Len(t, snap.Result.AnalyzedTasks, 4)

	first := snap.Result.AnalyzedTasks[0]
	assert.Equal(t, analysis.RiskHigh, first.RiskScore)
	assert.Equal(t, 1, first.SourcePage)
	assert.Equal(t, "Legal", first.Department)
	assert.False(t, first.AnalysisTimestamp.IsZero())
}

func TestEndToEnd_DirectResult(t *testing.T) {
	engine, _ := startEngine(t, Options{}, nil)

	snap, states := runToEnd(t, engine, document.New("reg.pdf", pdftest.Build(2)))

	assert.Equal(t, workflow.StateSucceeded, snap.State)
	assert.NotContains(t, states, workflow.StateAwaitingResult)
	require.NotNil(t, snap.Result)
	assert.Len(t, snap.Result.AnalyzedTasks, 2)
}

func TestEndToEnd_UploadAndSummarize(t *testing.T) {
	engine, svc := startEngine(t, Options{}, func(o *workflow.Options) {
		base := o.SubmitURL[:len(o.SubmitURL)-len("/upload_regulation")]
		o.SubmitURL = base + "/upload"
		o.SummarizeURL = base + "/summarize"
	})

	snap, states := runToEnd(t, engine, document.New("reg.pdf", pdftest.Build(2)))

	assert.Equal(t, workflow.StateSucceeded, snap.State)
	assert.Contains(t, states, workflow.StateAwaitingResult)
	require.NotNil(t, snap.Result)
	assert.NotEmpty(t, snap.Result.Text)
	require.Len(t, snap.Result.Summaries, 1)
	assert.Equal(t, "Institutions shall retain all transaction records for a period of not less than five years.", snap.Result.Summaries[0])
	assert.Len(t, svc.Clauses(), 1)
}

func TestEndToEnd_Failures(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		kind    workflow.ErrorKind
		message string
	}{
		{
			name:    "application error",
			opts:    Options{Fail: FailApplication},
			kind:    workflow.KindApplication,
			message: "Analysis backend unavailable",
		},
		{
			name:    "incomplete response",
			opts:    Options{Fail: FailIncomplete},
			kind:    workflow.KindIncompleteResponse,
			message: workflow.MessageIncomplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := startEngine(t, tt.opts, nil)

			snap, states := runToEnd(t, engine, document.New("reg.pdf", pdftest.Build(1)))

			assert.Equal(t, workflow.StateFailed, snap.State)
			assert.NotContains(t, states, workflow.StateAwaitingResult)
			require.NotNil(t, snap.Error)
			assert.Equal(t, tt.kind, snap.Error.Kind)
			assert.Equal(t, tt.message, snap.Error.Message)
			assert.Nil(t, snap.Result)
		})
	}
}

func TestEndToEnd_HangingSubmissionTimesOut(t *testing.T) {
	engine, _ := startEngine(t, Options{Fail: FailHang}, func(o *workflow.Options) {
		o.Timeout = 200 * time.Millisecond
	})

	start := time.Now()
	snap, _ := runToEnd(t, engine, document.New("reg.pdf", pdftest.Build(1)))

	assert.Equal(t, workflow.StateTimedOut, snap.State)
	require.NotNil(t, snap.Error)
	assert.Equal(t, workflow.KindTimeout, snap.Error.Kind)
	assert.Equal(t, workflow.MessageTimeout, snap.Error.Message)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEndToEnd_ServiceUnreachable(t *testing.T) {
	srv := httptest.NewServer(New(Options{}).Handler())
	url := srv.URL
	srv.Close()

	engine := workflow.New(transport.NewAdapter(), workflow.Options{
		SubmitURL:   url + "/upload_regulation",
		RetrieveURL: url + "/get_latest_tasks/{id}",
		Timeout:     5 * time.Second,
	})

	snap, _ := runToEnd(t, engine, document.New("reg.pdf", pdftest.Build(1)))

	assert.Equal(t, workflow.StateFailed, snap.State)
	require.NotNil(t, snap.Error)
	assert.Equal(t, workflow.KindTransport, snap.Error.Kind)
}
