package transfer

import (
	"sync"
	"time"

	"github.com/okatashev/nimbus/internal/client/remote"
	"github.com/okatashev/nimbus/internal/events"
)

// Behavior selects what happens to the local original after an upload
// succeeds.
type Behavior string

const (
	// BehaviorForget leaves the original file untouched.
	BehaviorForget Behavior = "forget"
	// BehaviorMove moves the original into the managed sync directory, so
	// the uploaded file counts as downloaded afterwards.
	BehaviorMove Behavior = "move"
	// BehaviorDelete removes the original once the server has the content.
	BehaviorDelete Behavior = "delete"
)

// Initiator tags for Task.CreatedBy.
const (
	// CreatedByUser marks transfers requested explicitly.
	CreatedByUser = "user"
	// CreatedBySystem marks transfers the client queued on its own, such
	// as refreshing kept-in-sync files.
	CreatedBySystem = "system"
)

// Status of a task in the queue.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
)

// Task is one queued or running content transfer. Callers hold it as a
// handle: Done is closed when the task reaches a terminal state and Result
// becomes meaningful.
type Task struct {
	ID          string
	AccountName string
	RemotePath  string
	LocalPath   string
	Direction   events.Direction
	Behavior    Behavior
	CreatedBy   string
	CreatedAt   time.Time

	mu      sync.Mutex
	status  Status
	success bool
	code    remote.ResultCode
	done    chan struct{}
	cancel  func()
}

// Done is closed when the task has finished, successfully or not.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Status returns the task's current lifecycle stage.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Result reports the outcome. Valid only after Done is closed.
func (t *Task) Result() (success bool, code remote.ResultCode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.success, t.code
}

func (t *Task) setRunning() {
	t.mu.Lock()
	t.status = StatusRunning
	t.mu.Unlock()
}

func (t *Task) finish(success bool, code remote.ResultCode) {
	t.mu.Lock()
	t.status = StatusFinished
	t.success = success
	t.code = code
	t.mu.Unlock()
	close(t.done)
}
