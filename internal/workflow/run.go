package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Backland-Labs/docflow/internal/analysis"
	"github.com/Backland-Labs/docflow/internal/cancel"
	"github.com/Backland-Labs/docflow/internal/document"
	"github.com/Backland-Labs/docflow/internal/logger"
)

// subscriberBuffer exceeds the number of transitions a run can make
// (idle, submitting, awaiting_result, terminal), so sends never block.
const subscriberBuffer = 8

// Run is the handle of a single submission attempt. All mutation happens
// through the owning Engine; readers may inspect it from any goroutine.
type Run struct {
	id     string
	file   *document.File
	engine *Engine
	token  *cancel.Token
	log    *logger.Logger

	// emitMu orders transitions together with their observer notifications
	emitMu sync.Mutex

	mu          sync.Mutex
	state       State
	remoteID    string
	result      *analysis.Result
	err         *Error
	startedAt   time.Time
	updatedAt   time.Time
	finishedAt  time.Time
	timer       *time.Timer
	stopCtx     func() bool
	history     []Snapshot
	subscribers []chan Snapshot
	done        chan struct{}
}

func newRun(id string, file *document.File, engine *Engine) *Run {
	now := time.Now()
	r := &Run{
		id:        id,
		file:      file,
		engine:    engine,
		token:     cancel.New(),
		log:       logger.WithField("file", file.Name),
		state:     StateIdle,
		startedAt: now,
		updatedAt: now,
		done:      make(chan struct{}),
	}
	r.history = append(r.history, r.snapshotLocked())
	return r
}

// ID returns the run identifier
func (r *Run) ID() string {
	return r.id
}

// State returns the current state
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// RemoteID returns the identifier issued by the submission step, if any
func (r *Run) RemoteID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remoteID
}

// Snapshot returns a copy of the run's current observable state
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Run) snapshotLocked() Snapshot {
	return Snapshot{
		RunID:      r.id,
		File:       r.file.Name,
		State:      r.state,
		RemoteID:   r.remoteID,
		Result:     r.result,
		Error:      r.err,
		StartedAt:  r.startedAt,
		UpdatedAt:  r.updatedAt,
		FinishedAt: r.finishedAt,
	}
}

// Done returns a channel that is closed once the run reaches a terminal state
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run is terminal or ctx is done
func (r *Run) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-r.done:
		return r.Snapshot(), nil
	case <-ctx.Done():
		return r.Snapshot(), ctx.Err()
	}
}

// Subscribe returns a channel that replays every transition so far and then
// delivers new ones in order. It is closed after the terminal snapshot.
func (r *Run) Subscribe() <-chan Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Snapshot, subscriberBuffer)
	for _, snap := range r.history {
		ch <- snap
	}
	if r.state.Terminal() {
		close(ch)
		return ch
	}
	r.subscribers = append(r.subscribers, ch)
	return ch
}

// Cancel fires the run's token. The run ends TimedOut with kind canceled
// unless it already finished.
func (r *Run) Cancel() bool {
	return r.token.Trigger(cancel.ReasonCanceled)
}

// transition moves the run to state to, applying mutate under the lock.
// It refuses to go backwards, to leave a terminal state, or to record any
// outcome other than TimedOut once the token has fired.
func (r *Run) transition(to State, mutate func()) bool {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.mu.Lock()
	if r.state.Terminal() || to.rank() <= r.state.rank() {
		r.mu.Unlock()
		return false
	}
	if to != StateTimedOut && r.token.Fired() {
		r.mu.Unlock()
		return false
	}

	from := r.state
	r.state = to
	r.updatedAt = time.Now()
	if mutate != nil {
		mutate()
	}

	if to.Terminal() {
		r.finishedAt = r.updatedAt
		if r.timer != nil {
			r.timer.Stop()
		}
		if r.stopCtx != nil {
			r.stopCtx()
		}
		r.token.Detach()
	}

	snap := r.snapshotLocked()
	r.history = append(r.history, snap)
	for _, ch := range r.subscribers {
		ch <- snap
		if to.Terminal() {
			close(ch)
		}
	}
	if to.Terminal() {
		r.subscribers = nil
	}
	r.mu.Unlock()

	r.log.WithRun(r.id, snap.RemoteID).WithFields(map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	}).Debug("Run transitioned")

	// Observers see the terminal snapshot before Wait returns.
	r.engine.emit(snap)
	if to.Terminal() {
		close(r.done)
	}
	return true
}

// awaitResult records the continuation identifier, if any, and enters
// AwaitingResult. An identifier, once set, is never overwritten.
func (r *Run) awaitResult(remoteID string) bool {
	return r.transition(StateAwaitingResult, func() {
		if r.remoteID == "" && remoteID != "" {
			r.remoteID = remoteID
		}
	})
}

func (r *Run) logEntry() *logger.Logger {
	return r.log.WithRun(r.id, r.RemoteID())
}

func (r *Run) succeed(remoteID string, result *analysis.Result) bool {
	ok := r.transition(StateSucceeded, func() {
		if r.remoteID == "" && remoteID != "" {
			r.remoteID = remoteID
		}
		r.result = result
	})
	if ok {
		r.logEntry().WithField("tasks", len(result.AnalyzedTasks)).Info("Run succeeded")
	}
	return ok
}

func (r *Run) fail(kind ErrorKind, message string, cause error) bool {
	wfErr := &Error{Kind: kind, Message: message, Err: cause}
	ok := r.transition(StateFailed, func() {
		r.err = wfErr
	})
	if ok {
		r.logEntry().WithError(cause).WithField("kind", string(kind)).Warnf("Run failed: %s", message)
	}
	return ok
}

// abort records the token firing. It is registered as the token's observer
// and is also called by the worker when a send reports Aborted.
func (r *Run) abort(reason cancel.Reason) {
	wfErr := abortError(reason)
	if r.transition(StateTimedOut, func() {
		r.err = wfErr
	}) {
		r.logEntry().WithField("reason", string(reason)).Warnf("Run timed out: %s", wfErr.Message)
	}
}

func abortError(reason cancel.Reason) *Error {
	switch reason {
	case cancel.ReasonTimeout:
		return &Error{Kind: KindTimeout, Message: MessageTimeout, Err: cancel.ErrFired}
	case cancel.ReasonSuperseded:
		return &Error{Kind: KindCanceled, Message: MessageSuperseded, Err: cancel.ErrFired}
	default:
		return &Error{Kind: KindCanceled, Message: MessageCanceled, Err: cancel.ErrFired}
	}
}

func (r *Run) String() string {
	return fmt.Sprintf("run %s (%s)", r.id, r.State())
}
