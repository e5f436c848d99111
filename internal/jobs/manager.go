package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage is a narration job's position in the pipeline.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageParsing      Stage = "parsing"
	StagePlanning     Stage = "planning"
	StageSynthesizing Stage = "synthesizing"
	StageMeasuring    Stage = "measuring"
	StageCorrecting   Stage = "correcting"
	StageAssembling   Stage = "assembling"
	StageCombining    Stage = "combining"
	StageNormalizing  Stage = "normalizing"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// Terminal reports whether the stage ends a job.
func (s Stage) Terminal() bool { return s == StageDone || s == StageFailed }

var ErrNotFound = errors.New("job not found")

// Job tracks one narration request through the pipeline.
type Job struct {
	ID          string    `json:"job_id"`
	Kind        string    `json:"kind"`
	Stage       Stage     `json:"stage"`
	Detail      string    `json:"detail,omitempty"`
	Error       string    `json:"error,omitempty"`
	OutputFiles []string  `json:"output_files,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Event is one progress notification delivered to subscribers.
type Event struct {
	JobID  string    `json:"job_id"`
	Stage  Stage     `json:"stage"`
	Detail string    `json:"detail,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

// subscriber wraps one event channel so delivery and shutdown can race
// safely. Sends and the close go through the subscriber's own lock; a send
// after shutdown is dropped instead of panicking on a closed channel.
type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func (s *subscriber) send(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- event:
	default:
	}
}

func (s *subscriber) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Manager owns the in-flight job table, progress fan-out and retention of
// finished jobs.
type Manager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	subscribers map[string][]*subscriber
	retention   time.Duration
	onFinish    func(*Job)
}

func NewManager(retention time.Duration) *Manager {
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	return &Manager{
		jobs:        make(map[string]*Job),
		subscribers: make(map[string][]*subscriber),
		retention:   retention,
	}
}

// SetFinishHook registers a callback invoked once per job when it reaches a
// terminal stage. The hook runs outside the manager lock.
func (m *Manager) SetFinishHook(hook func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFinish = hook
}

func (m *Manager) Create(kind string) *Job {
	now := time.Now().UTC()
	j := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Stage:     StageQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
	return clone(j)
}

func (m *Manager) Get(jobID string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(j), nil
}

// Transition advances a job to the given stage. Transitions out of a
// terminal stage are rejected.
func (m *Manager) Transition(jobID string, stage Stage, detail string) error {
	m.mu.Lock()
	j, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if j.Stage.Terminal() {
		m.mu.Unlock()
		return errors.New("job already finished")
	}
	j.Stage = stage
	j.Detail = detail
	j.UpdatedAt = time.Now().UTC()
	event := Event{JobID: j.ID, Stage: j.Stage, Detail: j.Detail, At: j.UpdatedAt}
	snapshot := clone(j)
	hook := m.onFinish
	subs := append([]*subscriber(nil), m.subscribers[jobID]...)
	m.mu.Unlock()

	deliver(subs, event)
	if stage.Terminal() && hook != nil {
		hook(snapshot)
	}
	return nil
}

// Complete marks the job done and records its output files.
func (m *Manager) Complete(jobID string, outputFiles []string) error {
	m.mu.Lock()
	j, ok := m.jobs[jobID]
	if ok && !j.Stage.Terminal() {
		j.OutputFiles = append([]string(nil), outputFiles...)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return m.Transition(jobID, StageDone, "")
}

// Fail marks the job failed with the given cause.
func (m *Manager) Fail(jobID string, cause error) error {
	m.mu.Lock()
	j, ok := m.jobs[jobID]
	if ok && !j.Stage.Terminal() && cause != nil {
		j.Error = cause.Error()
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return m.Transition(jobID, StageFailed, detail)
}

// Subscribe returns a buffered event stream for one job plus a cancel
// function. Slow consumers lose events instead of blocking the pipeline.
func (m *Manager) Subscribe(jobID string) (<-chan Event, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[jobID]; !ok {
		return nil, nil, ErrNotFound
	}

	sub := &subscriber{ch: make(chan Event, 16)}
	m.subscribers[jobID] = append(m.subscribers[jobID], sub)

	cancel := func() {
		m.mu.Lock()
		subs := m.subscribers[jobID]
		for i, s := range subs {
			if s == sub {
				m.subscribers[jobID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		sub.shut()
	}
	return sub.ch, cancel, nil
}

// StartJanitor periodically drops finished jobs older than the retention
// window, closing any remaining subscriptions.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

// ActiveCount reports how many jobs are still in flight.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, j := range m.jobs {
		if !j.Stage.Terminal() {
			count++
		}
	}
	return count
}

func (m *Manager) sweep() {
	cutoff := time.Now().UTC().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, j := range m.jobs {
		if !j.Stage.Terminal() || j.UpdatedAt.After(cutoff) {
			continue
		}
		for _, sub := range m.subscribers[id] {
			sub.shut()
		}
		delete(m.subscribers, id)
		delete(m.jobs, id)
	}
}

func deliver(subs []*subscriber, event Event) {
	for _, sub := range subs {
		sub.send(event)
	}
}

func clone(j *Job) *Job {
	c := *j
	c.OutputFiles = append([]string(nil), j.OutputFiles...)
	return &c
}
