// Package task tracks long-running analyses per browser session. Each
// task runs in its own worker process so cancellation can kill
// arbitrary in-flight work, including blocked network calls, instead of
// waiting for cooperative checks.
package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"veridex/internal/model"
)

// Request is the work order handed to a worker process on stdin
type Request struct {
	URL       string `json:"url,omitempty"`
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// State is the lifecycle phase of a task
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Task is one tracked worker process
type Task struct {
	ID        string
	SessionID string
	StartedAt time.Time

	cmd    *exec.Cmd
	stdout *bytes.Buffer
	done   chan struct{}

	mu     sync.Mutex
	state  State
	result *model.AnalysisResponse
	err    error
}

// CommandFactory builds the worker command for one task. The default
// re-invokes the current binary's worker subcommand; tests substitute
// something slower or simpler.
type CommandFactory func() (*exec.Cmd, error)

// SelfWorkerCommand spawns this binary as a worker subprocess
func SelfWorkerCommand() (*exec.Cmd, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return exec.Command(self, "worker"), nil
}

// Manager owns the task registry. One active analysis per session:
// starting a new task cancels the session's previous ones.
type Manager struct {
	mu          sync.Mutex
	tasks       map[string]*Task
	factory     CommandFactory
	killTimeout time.Duration
	maxAge      time.Duration
	logger      *zap.Logger
}

// NewManager creates a task manager
func NewManager(cfg model.TaskConfig, factory CommandFactory, logger *zap.Logger) *Manager {
	if factory == nil {
		factory = SelfWorkerCommand
	}
	killTimeout := cfg.KillTimeout
	if killTimeout == 0 {
		killTimeout = 2 * time.Second
	}
	maxAge := cfg.MaxAge
	if maxAge == 0 {
		maxAge = 30 * time.Minute
	}
	return &Manager{
		tasks:       make(map[string]*Task),
		factory:     factory,
		killTimeout: killTimeout,
		maxAge:      maxAge,
		logger:      logger,
	}
}

// Start cancels the session's existing tasks, then spawns a worker for
// the request and returns the new task id
func (m *Manager) Start(req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, t := range m.tasks {
		if t.SessionID == req.SessionID {
			m.killLocked(t)
			delete(m.tasks, id)
		}
	}

	cmd, err := m.factory()
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode worker request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(payload)

	stdout := &bytes.Buffer{}
	cmd.Stdout = stdout

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start worker: %w", err)
	}

	t := &Task{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		StartedAt: time.Now(),
		cmd:       cmd,
		stdout:    stdout,
		done:      make(chan struct{}),
		state:     StateRunning,
	}
	m.tasks[t.ID] = t

	go m.await(t)

	m.logger.Info("task started",
		zap.String("task_id", t.ID),
		zap.String("session_id", t.SessionID),
		zap.Int("pid", cmd.Process.Pid))
	return t.ID, nil
}

// await reaps the worker process and records its outcome
func (m *Manager) await(t *Task) {
	err := t.cmd.Wait()
	defer close(t.done)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateCancelled {
		return
	}
	if err != nil {
		t.state = StateFailed
		t.err = fmt.Errorf("worker exited: %w", err)
		return
	}

	var resp model.AnalysisResponse
	if err := json.Unmarshal(t.stdout.Bytes(), &resp); err != nil {
		t.state = StateFailed
		t.err = fmt.Errorf("decode worker output: %w", err)
		return
	}
	t.state = StateCompleted
	t.result = &resp
}

// Cancel kills one task's worker. Reports whether the task existed.
func (m *Manager) Cancel(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return false
	}
	m.killLocked(t)
	delete(m.tasks, taskID)
	return true
}

// CancelSession kills every task owned by a session and returns how
// many were cancelled along with their ids
func (m *Manager) CancelSession(sessionID string) (int, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, t := range m.tasks {
		if t.SessionID != sessionID {
			continue
		}
		m.killLocked(t)
		delete(m.tasks, id)
		ids = append(ids, id)
	}
	return len(ids), ids
}

// killLocked hard-terminates a worker and waits briefly for the process
// to be reaped. Caller holds m.mu.
func (m *Manager) killLocked(t *Task) {
	t.mu.Lock()
	if t.state != StateRunning {
		t.mu.Unlock()
		return
	}
	t.state = StateCancelled
	t.mu.Unlock()

	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	select {
	case <-t.done:
	case <-time.After(m.killTimeout):
		m.logger.Warn("worker did not exit within kill timeout",
			zap.String("task_id", t.ID))
	}
}

// Result reports a task's state and, once completed, its result. The
// state is empty for unknown task ids.
func (m *Manager) Result(taskID string) (*model.AnalysisResponse, State, error) {
	m.mu.Lock()
	t, ok := m.tasks[taskID]
	m.mu.Unlock()
	if !ok {
		return nil, "", nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.state, t.err
}

// Active lists a session's running task ids, lazily dropping tasks
// whose worker already finished or died
func (m *Manager) Active(sessionID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0)
	for id, t := range m.tasks {
		if t.SessionID != sessionID {
			continue
		}
		t.mu.Lock()
		state := t.state
		t.mu.Unlock()
		if state == StateRunning {
			ids = append(ids, id)
		} else if state != StateCompleted {
			// failed and cancelled leftovers are dropped on sight;
			// completed tasks stay until the expiry sweep reaps them
			delete(m.tasks, id)
		}
	}
	return ids
}

// ReapExpired terminates and removes every task older than the
// configured max age, returning the reaped task ids
func (m *Manager) ReapExpired() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.maxAge)
	var reaped []string
	for id, t := range m.tasks {
		if t.StartedAt.After(cutoff) {
			continue
		}
		m.killLocked(t)
		delete(m.tasks, id)
		reaped = append(reaped, id)
	}
	return reaped
}

// Shutdown kills all remaining workers
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tasks {
		m.killLocked(t)
		delete(m.tasks, id)
	}
}
