package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vidgen/internal/api"
	"vidgen/internal/infra"
	"vidgen/internal/job"
)

// Machine states. Polling additionally tracks a consecutive-not-found counter
// as an internal resilience sub-state.
const (
	StateIdle       = "idle"
	StateSubmitting = "submitting"
	StatePolling    = "polling"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// Validation failures reported before any network call is made.
var (
	ErrEmptyPrompt          = errors.New("generation: prompt is required")
	ErrDurationOutOfRange   = errors.New("generation: duration out of range")
	ErrResolutionNotAllowed = errors.New("generation: resolution not allowed")
)

const (
	finalizingNote = "finalizing, please wait"
	genericFailure = "video generation failed"
)

// Backend is the slice of the API client the controller needs. *api.Client
// satisfies it; tests substitute fakes.
type Backend interface {
	CreateGeneration(ctx context.Context, req api.GenerateRequest) (string, error)
	JobStatus(ctx context.Context, id string) (*job.StatusUpdate, error)
}

// Options configures a Controller. Zero-valued intervals and bounds fall back
// to the documented defaults (2s poll, 5s slow poll, 2s retry delay, 5
// not-found attempts, 1-10s duration).
type Options struct {
	Backend            Backend
	Logger             *infra.Logger
	PollInterval       time.Duration
	SlowPollInterval   time.Duration
	NotFoundRetryDelay time.Duration
	NotFoundThreshold  int
	MinDuration        int
	MaxDuration        int
	Resolutions        []string
	OnUpdate           func(job.Job)
}

// Controller owns the lifecycle of one video-generation job at a time: it
// validates and submits the request, runs the poll loop, reconciles server
// responses into the local record, and classifies terminal vs transient
// failures. Resubmission cancels any poll loop still running.
type Controller struct {
	backend            Backend
	logger             *infra.Logger
	pollInterval       time.Duration
	slowPollInterval   time.Duration
	notFoundRetryDelay time.Duration
	notFoundThreshold  int
	minDuration        int
	maxDuration        int
	resolutions        map[string]struct{}
	onUpdate           func(job.Job)

	mu       sync.Mutex
	state    string
	job      *job.Job
	notFound int
	cancel   context.CancelFunc
	done     chan struct{}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// New constructs a controller in the idle state.
func New(opts Options) (*Controller, error) {
	if opts.Backend == nil {
		return nil, errors.New("generation: backend is required")
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	c := &Controller{
		backend:            opts.Backend,
		logger:             logger,
		pollInterval:       opts.PollInterval,
		slowPollInterval:   opts.SlowPollInterval,
		notFoundRetryDelay: opts.NotFoundRetryDelay,
		notFoundThreshold:  opts.NotFoundThreshold,
		minDuration:        opts.MinDuration,
		maxDuration:        opts.MaxDuration,
		onUpdate:           opts.OnUpdate,
		state:              StateIdle,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 2 * time.Second
	}
	if c.slowPollInterval <= 0 {
		c.slowPollInterval = 5 * time.Second
	}
	if c.notFoundRetryDelay <= 0 {
		c.notFoundRetryDelay = 2 * time.Second
	}
	if c.notFoundThreshold <= 0 {
		c.notFoundThreshold = 5
	}
	if c.minDuration <= 0 {
		c.minDuration = 1
	}
	if c.maxDuration <= 0 {
		c.maxDuration = 10
	}
	resolutions := opts.Resolutions
	if len(resolutions) == 0 {
		resolutions = []string{"480x480", "854x480", "720x720", "1280x720", "1080x1080", "1920x1080"}
	}
	c.resolutions = make(map[string]struct{}, len(resolutions))
	for _, r := range resolutions {
		c.resolutions[r] = struct{}{}
	}
	return c, nil
}

// Validate checks submission parameters locally. It fails closed: any
// violation means no request is sent.
func (c *Controller) Validate(params job.Parameters) error {
	if strings.TrimSpace(params.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if params.Seconds < c.minDuration || params.Seconds > c.maxDuration {
		return fmt.Errorf("%w: %d seconds (allowed %d-%d)", ErrDurationOutOfRange, params.Seconds, c.minDuration, c.maxDuration)
	}
	if _, ok := c.resolutions[params.Resolution]; !ok {
		return fmt.Errorf("%w: %q", ErrResolutionNotAllowed, params.Resolution)
	}
	if _, _, err := job.ParseResolution(params.Resolution); err != nil {
		return fmt.Errorf("%w: %q", ErrResolutionNotAllowed, params.Resolution)
	}
	return nil
}

// Submit validates the parameters, issues the create request and, on success,
// starts the poll loop in the background. Any poll loop from a previous
// submission is cancelled first so at most one poller is ever active.
func (c *Controller) Submit(ctx context.Context, params job.Parameters) error {
	if err := c.Validate(params); err != nil {
		return err
	}
	width, height, err := job.ParseResolution(params.Resolution)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrResolutionNotAllowed, params.Resolution)
	}
	params.Width = width
	params.Height = height

	c.stopPolling()

	c.mu.Lock()
	c.state = StateSubmitting
	c.job = job.New(params)
	c.notFound = 0
	c.mu.Unlock()
	c.notify()

	id, err := c.backend.CreateGeneration(ctx, api.GenerateRequest{
		Prompt:  params.Prompt,
		Width:   width,
		Height:  height,
		Seconds: params.Seconds,
	})
	if err != nil {
		msg := errorMessage(err)
		c.mu.Lock()
		c.state = StateFailed
		c.job.Status = job.StatusFailed
		c.job.Error = msg
		c.mu.Unlock()
		c.notify()
		c.logger.Error().Err(err).Msg("generation: submit failed")
		return fmt.Errorf("generation: submit: %w", err)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.job.ID = id
	c.state = StatePolling
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()
	c.notify()
	c.logger.Info().Str("job_id", id).Msg("generation: job submitted, polling started")

	go c.run(pollCtx, id, done)
	return nil
}

// run is the poll loop. It exits on cancellation, on a terminal status, or on
// an unrecoverable poll error.
func (c *Controller) run(ctx context.Context, id string, done chan struct{}) {
	defer close(done)

	delay := c.pollInterval
	slow := false
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		update, err := c.backend.JobStatus(ctx, id)
		if ctx.Err() != nil {
			// Cancelled while the request was in flight; the response is
			// stale and must not be applied.
			return
		}

		switch {
		case err == nil:
			if c.applyUpdate(id, update) {
				return
			}
			delay = c.pollInterval
			if slow {
				delay = c.slowPollInterval
			}
		case api.IsNotFound(err):
			attempts := c.bumpNotFound()
			if attempts < c.notFoundThreshold {
				c.logger.Debug().Str("job_id", id).Int("attempt", attempts).Msg("generation: job not visible yet, retrying")
				delay = c.notFoundRetryDelay
				continue
			}
			if attempts == c.notFoundThreshold {
				c.markFinalizing(id)
			}
			slow = true
			delay = c.slowPollInterval
		default:
			c.abortPolling(id, err)
			return
		}
	}
}

// applyUpdate merges a successful poll response and reports whether the job
// reached a terminal status.
func (c *Controller) applyUpdate(id string, update *job.StatusUpdate) bool {
	c.mu.Lock()
	c.notFound = 0
	c.job.Apply(*update)
	terminal := c.job.Terminal()
	if terminal {
		c.job.Note = ""
		if c.job.Status == job.StatusCompleted {
			c.state = StateCompleted
		} else {
			if c.job.Error == "" {
				c.job.Error = genericFailure
			}
			c.state = StateFailed
		}
		c.cancel = nil
	}
	status := c.job.Status
	progress := c.job.Progress
	c.mu.Unlock()
	c.notify()

	if terminal {
		c.logger.Info().Str("job_id", id).Str("status", status).Msg("generation: job reached terminal status")
	} else {
		c.logger.Debug().Str("job_id", id).Str("status", status).Int("progress", progress).Msg("generation: poll update")
	}
	return terminal
}

func (c *Controller) bumpNotFound() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notFound++
	return c.notFound
}

// markFinalizing is reached when the not-found window is exhausted. The job is
// not failed; the record is annotated and polling continues at the slow
// cadence until a real status arrives.
func (c *Controller) markFinalizing(id string) {
	c.mu.Lock()
	c.job.Status = job.StatusProcessing
	c.job.Note = finalizingNote
	c.mu.Unlock()
	c.notify()
	c.logger.Info().Str("job_id", id).Msg("generation: job still not visible, downgrading poll cadence")
}

// abortPolling handles a non-404 poll error: the loop stops and the message
// is recorded, but the job status is not forced to failed unless the server
// said so.
func (c *Controller) abortPolling(id string, err error) {
	msg := errorMessage(err)
	c.mu.Lock()
	c.state = StateFailed
	c.job.Error = msg
	c.cancel = nil
	c.mu.Unlock()
	c.notify()
	c.logger.Error().Err(err).Str("job_id", id).Msg("generation: polling aborted")
}

// stopPolling cancels the active poll loop, if any, and waits for it to exit.
func (c *Controller) stopPolling() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Cancel tears the controller down: the poll loop is stopped and no further
// callback will run. The job record keeps its last-known state.
func (c *Controller) Cancel() {
	c.stopPolling()
}

// State returns the current machine state.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Job returns a snapshot of the current job record. The zero Job is returned
// before the first submission.
func (c *Controller) Job() job.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil {
		return job.Job{}
	}
	return c.job.Snapshot()
}

// Done returns a channel closed when the current poll loop exits. If no loop
// is running the channel is already closed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return c.done
	}
	return closedChan
}

// Wait blocks until the poll loop exits or ctx is cancelled, then returns the
// final job snapshot.
func (c *Controller) Wait(ctx context.Context) (job.Job, error) {
	select {
	case <-ctx.Done():
		return c.Job(), ctx.Err()
	case <-c.Done():
		return c.Job(), nil
	}
}

func (c *Controller) notify() {
	if c.onUpdate == nil {
		return
	}
	c.onUpdate(c.Job())
}

// errorMessage prefers the backend-provided error text over the transport
// error string.
func errorMessage(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}
