package async

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kelsos/keeper-sync/internal/logger"
)

// TickFunc runs on every tick. Returning true finishes the task.
type TickFunc func(ctx context.Context, tick int) (done bool)

// Task is a repeating job with its own cancellation.
type Task struct {
	name     string
	interval time.Duration
	fn       TickFunc

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	stopped bool
}

func (t *Task) Name() string {
	return t.name
}

// Stop cancels the task. Safe to call more than once.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.stopped {
		close(t.stop)
		t.stopped = true
	}
}

// Done is closed once the task loop has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) run(ctx context.Context, onExit func()) {
	defer close(t.done)
	defer onExit()

	if t.fn(ctx, 0) {
		logger.Debug("Task %s finished after 1 tick", t.name)
		return
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	tick := 1
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Task %s cancelled: %v", t.name, ctx.Err())
			return
		case <-t.stop:
			logger.Debug("Task %s stopped", t.name)
			return
		case <-ticker.C:
			if t.fn(ctx, tick) {
				logger.Debug("Task %s finished after %d ticks", t.name, tick+1)
				return
			}
			tick++
		}
	}
}

// Scheduler tracks named repeating tasks so they can be replaced or stopped together.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		tasks: make(map[string]*Task),
	}
}

// Every runs fn right away and then on the given interval. A running task with the same name is stopped first.
func (s *Scheduler) Every(ctx context.Context, name string, interval time.Duration, fn TickFunc) *Task {
	task := &Task{
		name:     name,
		interval: interval,
		fn:       fn,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	if previous, exists := s.tasks[name]; exists {
		previous.Stop()
	}
	s.tasks[name] = task
	s.mu.Unlock()

	logger.Debug("Scheduled task %s every %v", name, interval)
	go task.run(ctx, func() { s.remove(task) })
	return task
}

func (s *Scheduler) remove(task *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, exists := s.tasks[task.name]; exists && current == task {
		delete(s.tasks, task.name)
	}
}

// Active lists the names of running tasks.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) StopAll() {
	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	s.mu.Unlock()

	for _, task := range tasks {
		task.Stop()
		<-task.Done()
	}
}
