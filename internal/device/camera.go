package device

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var ErrPermissionDenied = errors.New("camera permission denied")

// Stream is a live capture handle. Stop ends every track and must be
// idempotent.
type Stream interface {
	ID() string
	Stop()
}

// SimulatedCamera stands in for the browser media device. It grants a stream
// after an optional delay, or denies when unavailable.
type SimulatedCamera struct {
	available atomic.Bool
	delay     time.Duration

	mu   sync.Mutex
	open map[string]*simStream
}

func NewSimulatedCamera(available bool, delay time.Duration) *SimulatedCamera {
	c := &SimulatedCamera{
		delay: delay,
		open:  make(map[string]*simStream),
	}
	c.available.Store(available)
	return c
}

// SetAvailable flips the permission the camera will report on the next Open.
func (c *SimulatedCamera) SetAvailable(v bool) {
	c.available.Store(v)
}

func (c *SimulatedCamera) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.delay > 0 {
		t := time.NewTimer(c.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	if !c.available.Load() {
		return nil, ErrPermissionDenied
	}

	s := &simStream{id: uuid.NewString(), owner: c}
	c.mu.Lock()
	c.open[s.id] = s
	c.mu.Unlock()
	return s, nil
}

// OpenStreams reports how many granted streams have not been stopped.
func (c *SimulatedCamera) OpenStreams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}

func (c *SimulatedCamera) release(id string) {
	c.mu.Lock()
	delete(c.open, id)
	c.mu.Unlock()
}

type simStream struct {
	id      string
	owner   *SimulatedCamera
	stopped atomic.Bool
}

func (s *simStream) ID() string { return s.id }

func (s *simStream) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	s.owner.release(s.id)
}

func (s *simStream) Stopped() bool { return s.stopped.Load() }
