// Package workflow drives the upload, analyze, and retrieve exchange with the
// remote analysis service.
//
// An Engine owns at most one current Run. Start validates the file, creates a
// run with its own cancellation token and timeout timer, and returns the run
// handle immediately; the exchange proceeds on a background goroutine. Every
// run reaches exactly one terminal state: Succeeded, Failed, or TimedOut.
// Once the token fires, no later response can change the run's outcome.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Backland-Labs/docflow/internal/analysis"
	"github.com/Backland-Labs/docflow/internal/cancel"
	"github.com/Backland-Labs/docflow/internal/document"
	"github.com/Backland-Labs/docflow/internal/logger"
	"github.com/Backland-Labs/docflow/internal/transport"
)

// DefaultTimeout bounds a run from Submitting to its terminal state
const DefaultTimeout = 900 * time.Second

// RemoteIDPlaceholder is replaced with the escaped remote id in RetrieveURL
const RemoteIDPlaceholder = "{id}"

// Policy decides what Start does while a run is still in flight
type Policy string

const (
	// PolicyReject refuses the new submission with ErrRunInProgress
	PolicyReject Policy = "reject"
	// PolicySupersede cancels the in-flight run and starts the new one
	PolicySupersede Policy = "supersede"
)

// Options configures an Engine
type Options struct {
	SubmitURL   string
	RetrieveURL string
	// SummarizeURL enables the summarize step for results that carry only
	// extracted text. Empty disables it.
	SummarizeURL      string
	Timeout           time.Duration
	AllowedMediaTypes []string
	MaxFileSize       int64
	Policy            Policy
}

// Observer is notified of every transition of every run, in order per run
type Observer interface {
	RunTransitioned(Snapshot)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Snapshot)

// RunTransitioned calls f
func (f ObserverFunc) RunTransitioned(s Snapshot) {
	f(s)
}

// Engine starts runs and tracks which one is current
type Engine struct {
	sender    transport.Sender
	opts      Options
	observers []Observer

	mu      sync.Mutex
	current *Run
	latest  *Snapshot
}

// New creates an Engine
func New(sender transport.Sender, opts Options, observers ...Observer) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Policy == "" {
		opts.Policy = PolicyReject
	}
	return &Engine{
		sender:    sender,
		opts:      opts,
		observers: observers,
	}
}

// Options returns the engine configuration
func (e *Engine) Options() Options {
	return e.opts
}

// Start validates file and begins a new run. Validation failures are returned
// as *Error with KindValidation and create no run. Canceling ctx cancels the
// run through its token.
func (e *Engine) Start(ctx context.Context, file *document.File) (*Run, error) {
	if err := document.Validate(file, e.opts.AllowedMediaTypes, e.opts.MaxFileSize); err != nil {
		logger.WithError(err).Warn("Rejected file before submission")
		return nil, &Error{Kind: KindValidation, Message: validationMessage(file, err), Err: err}
	}

	e.mu.Lock()
	prev := e.current
	if prev != nil && !prev.State().Terminal() && e.opts.Policy != PolicySupersede {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, prev)
	}
	run := newRun(uuid.NewString(), file, e)
	e.current = run
	e.latest = nil
	e.mu.Unlock()

	if prev != nil && prev.token.Trigger(cancel.ReasonSuperseded) {
		logger.WithRun(prev.ID(), prev.RemoteID()).Infof("Superseded by run %s", run.ID())
	}

	run.begin(ctx)
	return run, nil
}

func validationMessage(file *document.File, err error) string {
	switch {
	case errors.Is(err, document.ErrNoFile):
		return "Please select a file to upload."
	case errors.Is(err, document.ErrEmptyFile):
		return "The selected file is empty."
	case errors.Is(err, document.ErrMediaType):
		return fmt.Sprintf("Files of type %s are not accepted.", file.MediaType)
	case errors.Is(err, document.ErrTooLarge):
		return fmt.Sprintf("The selected file is too large (%d bytes).", file.Size())
	default:
		return err.Error()
	}
}

// Current returns the current run, or nil before the first Start
func (e *Engine) Current() *Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Latest returns the most recent snapshot of the current run. Transitions of
// superseded runs never replace it.
func (e *Engine) Latest() (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latest == nil {
		return Snapshot{}, false
	}
	return *e.latest, true
}

// Cancel cancels the current run. It reports whether a token was fired.
func (e *Engine) Cancel() bool {
	run := e.Current()
	if run == nil {
		return false
	}
	return run.Cancel()
}

func (e *Engine) emit(snap Snapshot) {
	e.mu.Lock()
	if e.current != nil && e.current.id == snap.RunID {
		e.latest = &snap
	}
	e.mu.Unlock()

	for _, o := range e.observers {
		o.RunTransitioned(snap)
	}
}

// begin enters Submitting, arms the timer, and launches the exchange
func (r *Run) begin(ctx context.Context) {
	r.token.OnFire(r.abort)

	timeout := r.engine.opts.Timeout
	if !r.transition(StateSubmitting, func() {
		r.timer = time.AfterFunc(timeout, func() {
			r.token.Trigger(cancel.ReasonTimeout)
		})
		r.stopCtx = context.AfterFunc(ctx, func() {
			r.token.Trigger(cancel.ReasonCanceled)
		})
	}) {
		return
	}

	go r.execute(context.WithoutCancel(ctx))
}

// execute performs the submission and, when needed, the retrieval or
// summarize step. Steps are strictly sequential and share the run's token.
func (r *Run) execute(ctx context.Context) {
	opts := r.engine.opts
	timer := logger.Timed("run " + r.id)

	req, err := transport.NewMultipartRequest(opts.SubmitURL, transport.FileField, r.file.Name, r.file.MediaType, r.file.Data)
	if err != nil {
		r.fail(KindTransport, fmt.Sprintf("Could not prepare the upload: %v", err), err)
		timer.DoneWithError(err)
		return
	}

	reply, ok := r.step(ctx, "submit", req)
	if !ok {
		timer.Done()
		return
	}

	remoteID := reply.RemoteID
	result := reply.Result

	if reply.Shape == analysis.ShapeTicket {
		if !r.awaitResult(remoteID) {
			timer.Done()
			return
		}
		reply, ok = r.step(ctx, "retrieve", transport.NewGetRequest(retrieveURL(opts.RetrieveURL, remoteID)))
		if !ok {
			timer.Done()
			return
		}
		if reply.Shape != analysis.ShapeResult {
			r.fail(KindIncompleteResponse, MessageIncomplete, nil)
			timer.Done()
			return
		}
		result = reply.Result
	}

	if opts.SummarizeURL != "" && result.NeedsSummary() {
		if !r.summarize(ctx, remoteID, result) {
			timer.Done()
			return
		}
	}

	r.succeed(remoteID, result)
	timer.Done()
}

// summarize posts extracted text for summarization and merges the summaries
// into result
func (r *Run) summarize(ctx context.Context, remoteID string, result *analysis.Result) bool {
	if r.State() == StateSubmitting && !r.awaitResult(remoteID) {
		return false
	}

	req, err := transport.NewJSONRequest(http.MethodPost, r.engine.opts.SummarizeURL, map[string]string{"text": result.Text})
	if err != nil {
		r.fail(KindTransport, fmt.Sprintf("Could not prepare the summarize request: %v", err), err)
		return false
	}

	reply, ok := r.step(ctx, "summarize", req)
	if !ok {
		return false
	}
	if reply.Shape != analysis.ShapeResult || len(reply.Result.Summaries) == 0 {
		r.fail(KindIncompleteResponse, "The summarize response contained no summaries.", nil)
		return false
	}

	result.Summaries = reply.Result.Summaries
	return true
}

// step sends one request and classifies the outcome. It returns false after
// moving the run to a terminal state, including when the response shape is
// an application error or incomplete.
func (r *Run) step(ctx context.Context, name string, req transport.Request) (analysis.Reply, bool) {
	out := r.engine.sender.Send(ctx, req, r.token)

	switch out.Kind {
	case transport.KindAborted:
		r.abort(r.token.Reason())
		return analysis.Reply{}, false
	case transport.KindTransportError:
		if r.token.Fired() {
			r.abort(r.token.Reason())
			return analysis.Reply{}, false
		}
		r.fail(KindTransport, fmt.Sprintf("Could not reach the analysis service during %s: %v", name, out.Err), out.Err)
		return analysis.Reply{}, false
	}

	reply, err := analysis.Classify(out.Status, out.Body)
	if err != nil {
		r.fail(KindTransport, fmt.Sprintf("The %s response could not be read: %v", name, err), err)
		return analysis.Reply{}, false
	}

	switch reply.Shape {
	case analysis.ShapeError:
		r.fail(KindApplication, reply.Message, nil)
		return reply, false
	case analysis.ShapeIncomplete:
		r.fail(KindIncompleteResponse, MessageIncomplete, nil)
		return reply, false
	}

	return reply, true
}

func retrieveURL(template, remoteID string) string {
	escaped := url.PathEscape(remoteID)
	if strings.Contains(template, RemoteIDPlaceholder) {
		return strings.ReplaceAll(template, RemoteIDPlaceholder, escaped)
	}
	return strings.TrimRight(template, "/") + "/" + escaped
}
