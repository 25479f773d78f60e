// Package animate drives an image-to-video generation from submission to a
// terminal state: it submits the job, polls the provider operation on one
// ticker, rotates a cosmetic status message on a second ticker, and tears
// both down on every exit path.
package animate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bobarin/reze/internal/models"
	"github.com/bobarin/reze/internal/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StatePolling    State = "polling"
	StateDone       State = "done"
	StateError      State = "error"
)

const (
	DefaultPollInterval    = 10 * time.Second
	DefaultMessageInterval = 5 * time.Second

	MsgImageRequired  = "A source image is required to generate a video."
	MsgNoDownloadLink = "Video generation finished, but no download link was found."
	MsgKeyInvalid     = "API key invalid. Please re-select your API key."
	MsgKeyMissing     = "API key is missing or invalid. Please select a valid key."
	MsgCancelled      = "Video generation was cancelled."

	generatingMessage = "Initializing..."
	notifyTimeout     = 5 * time.Second
)

// PollingMessages cycle while the provider renders. They never reflect real progress.
var PollingMessages = []string{
	"Initializing AI core...",
	"Analyzing source frame...",
	"Rendering video layers... (this may take a moment)",
	"Compositing animation...",
	"Finalizing render...",
}

var (
	ErrBusy               = errors.New("a video is already being generated")
	ErrClosed             = errors.New("video job has been closed")
	ErrCredentialRequired = errors.New("an API key must be selected before generating a video")
)

// ValidationError is a local input problem; no provider was contacted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Gate is the credential flag the job reads before submitting and resets
// when the provider rejects the key.
type Gate interface {
	Available() bool
	Reset()
}

// Observer is told about every state change, in order.
type Observer interface {
	JobChanged(ctx context.Context, snap Snapshot)
}

// Request is one submission. It is not retained after the provider call.
type Request struct {
	Prompt      string
	Image       models.ImagePayload
	AspectRatio models.AspectRatio
}

// Snapshot is a consistent copy of the job's observable state.
type Snapshot struct {
	SessionID      uuid.UUID  `json:"session_id"`
	SubmissionID   *uuid.UUID `json:"submission_id,omitempty"`
	State          State      `json:"status"`
	Error          string     `json:"error,omitempty"`
	VideoURL       string     `json:"video_url,omitempty"`
	PollingMessage string     `json:"polling_message,omitempty"`
	PollCount      int        `json:"poll_count"`
	PromptLength   int        `json:"-"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Closed         bool       `json:"closed,omitempty"`

	seq uint64
}

// Options configures a Job. Zero intervals use the defaults.
type Options struct {
	SessionID       uuid.UUID
	Service         services.VideoGenerator
	Gate            Gate
	Clock           Clock
	Logger          *zap.Logger
	PollInterval    time.Duration
	MessageInterval time.Duration
	MaxPollDuration time.Duration // 0 = no ceiling
	Observers       []Observer
}

// Job owns the video flow of one session. At most one submission is active;
// a new one is accepted from idle, done or error.
type Job struct {
	sessionID       uuid.UUID
	svc             services.VideoGenerator
	gate            Gate
	clock           Clock
	log             *zap.Logger
	pollInterval    time.Duration
	messageInterval time.Duration
	maxPollDuration time.Duration
	observers       []Observer

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	errMsg       string
	videoURL     string
	messageIdx   int
	pollCount    int
	promptLen    int
	submissionID uuid.UUID
	submittedAt  time.Time
	finishedAt   time.Time
	deadline     time.Time
	op           *services.VideoOperation
	inFlight     bool
	closed       bool
	seq          uint64

	// token identifies the current submission. Completions carrying an
	// older token are discarded.
	token uint64

	pollTicker    Ticker
	messageTicker Ticker
	stop          chan struct{}

	notifyMu     sync.Mutex
	lastNotified uint64
}

func NewJob(opts Options) *Job {
	j := &Job{
		sessionID:       opts.SessionID,
		svc:             opts.Service,
		gate:            opts.Gate,
		clock:           opts.Clock,
		log:             opts.Logger,
		pollInterval:    opts.PollInterval,
		messageInterval: opts.MessageInterval,
		maxPollDuration: opts.MaxPollDuration,
		observers:       opts.Observers,
		state:           StateIdle,
	}
	if j.clock == nil {
		j.clock = SystemClock{}
	}
	if j.log == nil {
		j.log = zap.NewNop()
	}
	if j.pollInterval <= 0 {
		j.pollInterval = DefaultPollInterval
	}
	if j.messageInterval <= 0 {
		j.messageInterval = DefaultMessageInterval
	}
	j.log = j.log.With(zap.String("session_id", j.sessionID.String()))
	j.ctx, j.cancel = context.WithCancel(context.Background())
	return j
}

// Submit validates req, starts the provider job and arms polling. Provider
// failures are recorded in the job state, not returned; the returned error is
// reserved for requests that were not accepted.
func (j *Job) Submit(ctx context.Context, req Request) error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return ErrClosed
	}
	if j.state == StateGenerating || j.state == StatePolling {
		j.mu.Unlock()
		return ErrBusy
	}
	if req.Image.Empty() {
		j.mu.Unlock()
		return &ValidationError{Message: MsgImageRequired}
	}
	if j.gate != nil && !j.gate.Available() {
		j.mu.Unlock()
		return ErrCredentialRequired
	}
	if req.AspectRatio == "" {
		req.AspectRatio = models.AspectLandscape
	}

	j.cleanupLocked()
	j.token++
	token := j.token
	j.submissionID = uuid.New()
	j.state = StateGenerating
	j.errMsg = ""
	j.videoURL = ""
	j.messageIdx = 0
	j.pollCount = 0
	j.promptLen = len(req.Prompt)
	j.op = nil
	j.inFlight = false
	j.submittedAt = j.clock.Now()
	j.finishedAt = time.Time{}
	snap := j.snapshotLocked()
	j.mu.Unlock()

	j.log.Info("video submission started",
		zap.String("submission_id", snap.SubmissionID.String()),
		zap.String("aspect_ratio", string(req.AspectRatio)),
		zap.Int("image_bytes", len(req.Image.Data)),
	)
	j.notify(snap)

	// The call ends early if the job is torn down while it is outstanding.
	callCtx, cancel := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(j.ctx, cancel)
	op, err := j.svc.GenerateVideoFromImage(callCtx, req.Prompt, req.Image, req.AspectRatio)
	stopAfter()
	cancel()

	j.mu.Lock()
	if token != j.token || j.state != StateGenerating {
		j.mu.Unlock()
		j.log.Debug("discarding stale submission result")
		return ErrClosed
	}

	switch {
	case err != nil:
		j.failLocked(j.failureMessage(err, MsgKeyMissing), err)
	case op == nil:
		j.failLocked("provider returned no operation", nil)
	default:
		j.op = op
		j.state = StatePolling
		if j.maxPollDuration > 0 {
			j.deadline = j.clock.Now().Add(j.maxPollDuration)
		}
		j.startTimersLocked(token)
		j.log.Info("video operation accepted, polling", zap.String("operation", op.Name))
	}
	snap = j.snapshotLocked()
	j.mu.Unlock()

	j.notify(snap)
	return nil
}

// startTimersLocked arms both tickers and the goroutine that serves them.
func (j *Job) startTimersLocked(token uint64) {
	j.pollTicker = j.clock.NewTicker(j.pollInterval)
	j.messageTicker = j.clock.NewTicker(j.messageInterval)
	j.stop = make(chan struct{})
	go j.run(token, j.pollTicker.C(), j.messageTicker.C(), j.stop)
}

func (j *Job) run(token uint64, pollC, messageC <-chan time.Time, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-pollC:
			j.onPollTick(token)
		case <-messageC:
			j.onMessageTick(token)
		}
	}
}

func (j *Job) onPollTick(token uint64) {
	j.mu.Lock()
	if token != j.token || j.state != StatePolling {
		j.mu.Unlock()
		return
	}
	now := j.clock.Now()
	if j.maxPollDuration > 0 && !now.Before(j.deadline) {
		// An outstanding call is abandoned; its result carries the old token.
		j.token++
		j.failLocked(j.timeoutMessage(), nil)
		snap := j.snapshotLocked()
		j.mu.Unlock()
		j.notify(snap)
		return
	}
	if j.inFlight {
		j.mu.Unlock()
		j.log.Debug("previous poll still outstanding, skipping tick")
		return
	}
	j.inFlight = true
	j.pollCount++
	op := j.op
	n := j.pollCount
	var budget time.Duration
	if j.maxPollDuration > 0 {
		budget = j.deadline.Sub(now)
	}
	j.mu.Unlock()

	// Polling runs outside the ticker goroutine so message rotation keeps
	// going while the call is outstanding.
	go j.poll(token, op, n, budget)
}

// poll makes one provider call. A positive budget bounds it to the time left
// before the ceiling.
func (j *Job) poll(token uint64, op *services.VideoOperation, n int, budget time.Duration) {
	ctx := j.ctx
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(j.ctx, budget)
		defer cancel()
	}
	updated, err := j.svc.PollVideoOperation(ctx, op)

	j.mu.Lock()
	if token != j.token || j.state != StatePolling {
		j.mu.Unlock()
		j.log.Debug("discarding stale poll result", zap.Int("poll", n))
		return
	}
	j.inFlight = false

	switch {
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		j.failLocked(j.timeoutMessage(), err)
	case err != nil:
		j.failLocked(j.failureMessage(err, MsgKeyInvalid), err)
	case updated == nil:
		j.failLocked("provider returned no operation", nil)
	case !updated.Done:
		j.op = updated
		j.log.Debug("video still rendering", zap.Int("poll", n))
	default:
		if uri, ok := updated.Result(); ok {
			j.completeLocked(uri)
		} else {
			j.failLocked(MsgNoDownloadLink, nil)
		}
	}
	snap := j.snapshotLocked()
	j.mu.Unlock()

	j.notify(snap)
}

func (j *Job) onMessageTick(token uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if token != j.token || j.state != StatePolling {
		return
	}
	j.messageIdx = (j.messageIdx + 1) % len(PollingMessages)
}

// failureMessage maps a provider failure to the text shown to the user.
// Credential failures reset the gate so the UI asks for a key again.
func (j *Job) failureMessage(err error, credentialMsg string) string {
	if services.IsCredentialError(err) {
		if j.gate != nil {
			j.gate.Reset()
		}
		return credentialMsg
	}
	return err.Error()
}

func (j *Job) timeoutMessage() string {
	return fmt.Sprintf("Video generation timed out after %s.", j.maxPollDuration)
}

func (j *Job) completeLocked(uri string) {
	j.cleanupLocked()
	j.state = StateDone
	j.videoURL = uri
	j.errMsg = ""
	j.op = nil
	j.inFlight = false
	j.finishedAt = j.clock.Now()
	j.log.Info("video generation finished", zap.Int("polls", j.pollCount))
}

func (j *Job) failLocked(msg string, cause error) {
	j.cleanupLocked()
	j.state = StateError
	j.errMsg = msg
	j.videoURL = ""
	j.op = nil
	j.inFlight = false
	j.finishedAt = j.clock.Now()
	j.log.Warn("video job failed",
		zap.String("message", msg),
		zap.Int("polls", j.pollCount),
		zap.Error(cause),
	)
}

// Cleanup stops both tickers. Safe to call any number of times.
func (j *Job) Cleanup() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cleanupLocked()
}

func (j *Job) cleanupLocked() {
	if j.pollTicker != nil {
		j.pollTicker.Stop()
		j.pollTicker = nil
	}
	if j.messageTicker != nil {
		j.messageTicker.Stop()
		j.messageTicker = nil
	}
	if j.stop != nil {
		close(j.stop)
		j.stop = nil
	}
}

// Close tears the job down with its owning view. Any outstanding call is
// cancelled and its result ignored. An active submission ends in error with
// MsgCancelled, and observers receive that final snapshot flagged Closed.
func (j *Job) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	j.token++
	j.inFlight = false
	j.cleanupLocked()
	active := j.state == StateGenerating || j.state == StatePolling
	if active {
		j.state = StateError
		j.errMsg = MsgCancelled
		j.videoURL = ""
		j.op = nil
		j.finishedAt = j.clock.Now()
	}
	snap := j.snapshotLocked()
	j.mu.Unlock()

	j.cancel()
	j.log.Debug("video job closed", zap.Bool("cancelled", active))
	if active {
		j.notify(snap)
	}
}

// Snapshot returns the current observable state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked()
}

// ActiveTimers reports how many poll and message tickers are armed.
func (j *Job) ActiveTimers() (poll, message int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.pollTicker != nil {
		poll = 1
	}
	if j.messageTicker != nil {
		message = 1
	}
	return poll, message
}

func (j *Job) snapshotLocked() Snapshot {
	j.seq++
	snap := Snapshot{
		SessionID:    j.sessionID,
		State:        j.state,
		Error:        j.errMsg,
		VideoURL:     j.videoURL,
		PollCount:    j.pollCount,
		PromptLength: j.promptLen,
		Closed:       j.closed,
		seq:          j.seq,
	}
	if j.submissionID != uuid.Nil {
		id := j.submissionID
		snap.SubmissionID = &id
	}
	if !j.submittedAt.IsZero() {
		t := j.submittedAt
		snap.SubmittedAt = &t
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		snap.FinishedAt = &t
	}
	switch j.state {
	case StateGenerating:
		snap.PollingMessage = generatingMessage
	case StatePolling:
		snap.PollingMessage = PollingMessages[j.messageIdx]
	}
	return snap
}

// notify delivers snap to observers, dropping it if a newer one already went out.
func (j *Job) notify(snap Snapshot) {
	if len(j.observers) == 0 {
		return
	}
	j.notifyMu.Lock()
	defer j.notifyMu.Unlock()
	if snap.seq <= j.lastNotified {
		return
	}
	j.lastNotified = snap.seq

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	for _, o := range j.observers {
		o.JobChanged(ctx, snap)
	}
}

func (j *Job) pollInFlight() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inFlight
}
