package patient

import (
	"errors"
	"math"
	"sync"

	"github.com/hackgods/neuro-rehab-portal/internal/rehab"
)

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrTaskCompleted = errors.New("task already completed")
)

func seedTasks() []rehab.Task {
	return []rehab.Task{
		{ID: 1, Label: "Upper Limb Rotation", Duration: "10 mins"},
		{ID: 2, Label: "Cognitive Game: Match-3", Duration: "15 mins"},
		{ID: 3, Label: "Guided Meditation", Duration: "5 mins"},
	}
}

// Checklist is the daily routine for one patient visit. Completion only moves
// forward.
type Checklist struct {
	mu    sync.RWMutex
	tasks []rehab.Task
}

func NewChecklist() *Checklist {
	return &Checklist{tasks: seedTasks()}
}

func (c *Checklist) Tasks() []rehab.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]rehab.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

func (c *Checklist) Get(id int) (rehab.Task, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return rehab.Task{}, ErrTaskNotFound
}

// Complete marks the task done. Completing an already completed task is a
// no-op.
func (c *Checklist) Complete(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			c.tasks[i].Completed = true
			return nil
		}
	}
	return ErrTaskNotFound
}

// NextOpen returns the first task that still needs doing.
func (c *Checklist) NextOpen() (rehab.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tasks {
		if !t.Completed {
			return t, true
		}
	}
	return rehab.Task{}, false
}

func (c *Checklist) CompletionPercent() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range c.tasks {
		if t.Completed {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(c.tasks)) * 100))
}
