package patient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/neuro-rehab-portal/internal/device"
	"github.com/hackgods/neuro-rehab-portal/internal/events"
	"github.com/hackgods/neuro-rehab-portal/internal/rehab"
)

// DeviceDeniedNotice is shown to the patient when the camera is refused.
const DeviceDeniedNotice = "Please allow camera access to use AI Lens."

const maxProgress = 100

// Camera hands out exclusive capture streams. device.SimulatedCamera is the
// only implementation outside tests.
type Camera interface {
	Open(ctx context.Context) (device.Stream, error)
}

var (
	ErrCaptureInProgress = errors.New("a capture session is already running")
	ErrNoActiveCapture   = errors.New("no active capture session")
	ErrCaptureIncomplete = errors.New("capture session has not reached full progress")
	ErrCaptureAborted    = errors.New("capture session was cancelled before the camera opened")
	ErrDeviceDenied      = errors.New("camera access denied")
	ErrCaptureClosed     = errors.New("capture closed")
)

type CaptureState string

const (
	CaptureIdle       CaptureState = "idle"
	CaptureRequesting CaptureState = "requesting"
	CaptureActive     CaptureState = "active"
)

type CaptureSnapshot struct {
	State    CaptureState
	TaskID   int
	Progress int
}

type CaptureOptions struct {
	Tick time.Duration
	Step int
}

// Capture runs at most one simulated recording at a time. While active it
// owns the camera stream and a ticker goroutine; every exit path stops both
// before returning.
type Capture struct {
	camera Camera
	tasks  *Checklist
	rec    *events.Recorder
	logger *zap.Logger
	owner  string
	tick   time.Duration
	step   int

	mu       sync.Mutex
	state    CaptureState
	taskID   int
	progress int
	attempt  uint64
	stream   device.Stream
	stopTick context.CancelFunc
	tickDone chan struct{}
	closed   bool
}

func NewCapture(camera Camera, tasks *Checklist, opts CaptureOptions, owner string, rec *events.Recorder, logger *zap.Logger) *Capture {
	if opts.Tick <= 0 {
		opts.Tick = 200 * time.Millisecond
	}
	if opts.Step <= 0 {
		opts.Step = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capture{
		camera: camera,
		tasks:  tasks,
		rec:    rec,
		logger: logger,
		owner:  owner,
		tick:   opts.Tick,
		step:   opts.Step,
		state:  CaptureIdle,
	}
}

func (c *Capture) Snapshot() CaptureSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Capture) snapshotLocked() CaptureSnapshot {
	return CaptureSnapshot{State: c.state, TaskID: c.taskID, Progress: c.progress}
}

// Start asks the camera for a stream and, once granted, begins advancing
// progress. Only incomplete tasks can be captured, and only one capture may
// be requesting or active at a time.
func (c *Capture) Start(ctx context.Context, taskID int) (CaptureSnapshot, error) {
	task, err := c.tasks.Get(taskID)
	if err != nil {
		return CaptureSnapshot{}, err
	}
	if task.Completed {
		return CaptureSnapshot{}, ErrTaskCompleted
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return CaptureSnapshot{}, ErrCaptureClosed
	}
	if c.state != CaptureIdle {
		c.mu.Unlock()
		return CaptureSnapshot{}, ErrCaptureInProgress
	}
	c.attempt++
	gen := c.attempt
	c.state = CaptureRequesting
	c.taskID = taskID
	c.progress = 0
	c.mu.Unlock()

	stream, openErr := c.camera.Open(ctx)

	c.mu.Lock()
	if c.attempt != gen || c.state != CaptureRequesting {
		c.mu.Unlock()
		if stream != nil {
			stream.Stop()
		}
		return CaptureSnapshot{}, ErrCaptureAborted
	}

	if openErr != nil && (errors.Is(openErr, context.Canceled) || errors.Is(openErr, context.DeadlineExceeded)) {
		c.resetLocked()
		c.mu.Unlock()
		c.logger.Info("camera request abandoned", zap.String("owner", c.owner), zap.Int("task_id", taskID), zap.Error(openErr))
		if err := ctx.Err(); err != nil {
			return CaptureSnapshot{}, err
		}
		return CaptureSnapshot{}, openErr
	}

	if openErr != nil {
		c.resetLocked()
		c.mu.Unlock()
		c.logger.Warn("camera request failed", zap.String("owner", c.owner), zap.Int("task_id", taskID), zap.Error(openErr))
		c.rec.Record(ctx, events.EventCaptureDenied, c.owner, map[string]any{
			"task_id": taskID,
			"reason":  openErr.Error(),
		})
		return CaptureSnapshot{}, fmt.Errorf("%w: %w", ErrDeviceDenied, openErr)
	}

	tickCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.state = CaptureActive
	c.stream = stream
	c.stopTick = stop
	c.tickDone = done
	snap := c.snapshotLocked()
	c.mu.Unlock()

	go c.advance(tickCtx, gen, done)

	c.logger.Info("capture started", zap.String("owner", c.owner), zap.Int("task_id", taskID), zap.String("stream_id", stream.ID()))
	c.rec.Record(ctx, events.EventCaptureStarted, c.owner, map[string]any{
		"task_id":   taskID,
		"stream_id": stream.ID(),
	})
	return snap, nil
}

// advance adds step to progress on every tick until it reaches the ceiling or
// the capture it was started for is gone.
func (c *Capture) advance(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.attempt != gen || c.state != CaptureActive {
				c.mu.Unlock()
				return
			}
			c.progress = min(c.progress+c.step, maxProgress)
			full := c.progress >= maxProgress
			c.mu.Unlock()
			if full {
				return
			}
		}
	}
}

// Finish completes the task once progress is full and releases the camera.
func (c *Capture) Finish(ctx context.Context) (rehab.Task, error) {
	c.mu.Lock()
	if c.state != CaptureActive {
		c.mu.Unlock()
		return rehab.Task{}, ErrNoActiveCapture
	}
	if c.progress < maxProgress {
		c.mu.Unlock()
		return rehab.Task{}, ErrCaptureIncomplete
	}
	taskID := c.taskID
	release := c.detachLocked()
	c.mu.Unlock()

	release()

	if err := c.tasks.Complete(taskID); err != nil {
		return rehab.Task{}, fmt.Errorf("complete task %d: %w", taskID, err)
	}
	task, err := c.tasks.Get(taskID)
	if err != nil {
		return rehab.Task{}, err
	}

	c.logger.Info("capture completed", zap.String("owner", c.owner), zap.Int("task_id", taskID))
	c.rec.Record(ctx, events.EventCaptureCompleted, c.owner, map[string]any{"task_id": taskID})
	c.rec.Record(ctx, events.EventTaskCompleted, c.owner, map[string]any{
		"task_id":    taskID,
		"label":      task.Label,
		"completion": c.tasks.CompletionPercent(),
	})
	return task, nil
}

// Cancel abandons the current capture at any progress. The task is left as
// it was. Cancelling while the camera is still being requested makes the
// late grant release its stream immediately. Cancel on an idle capture is a
// no-op.
func (c *Capture) Cancel(ctx context.Context) {
	c.mu.Lock()
	if c.state == CaptureIdle {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	release := c.detachLocked()
	c.mu.Unlock()

	release()

	c.logger.Info("capture cancelled", zap.String("owner", c.owner), zap.Int("task_id", snap.TaskID), zap.Int("progress", snap.Progress))
	c.rec.Record(ctx, events.EventCaptureCancelled, c.owner, map[string]any{
		"task_id":  snap.TaskID,
		"progress": snap.Progress,
		"state":    string(snap.State),
	})
}

// Close is called when the patient view goes away. No capture can start
// afterwards.
func (c *Capture) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Cancel(context.Background())
}

// detachLocked returns the capture to idle and hands back a func that stops
// the ticker and the stream. The func must run without c.mu held.
func (c *Capture) detachLocked() func() {
	stop, done, stream := c.stopTick, c.tickDone, c.stream
	c.attempt++
	c.resetLocked()

	return func() {
		if stop != nil {
			stop()
			<-done
		}
		if stream != nil {
			stream.Stop()
		}
	}
}

func (c *Capture) resetLocked() {
	c.state = CaptureIdle
	c.taskID = 0
	c.progress = 0
	c.stream = nil
	c.stopTick = nil
	c.tickDone = nil
}
