// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clip

import (
	"sync"
	"time"
)

// TransitionFunc observes a successful state change.
type TransitionFunc func(j *Job, from, to State)

// Job tracks one in-flight request through the pipeline. It is owned by the goroutine that
// created it; the mutex only guards readers such as status endpoints and tests.
type Job struct {
	ID          string
	SourceURL   string
	Platform    string
	ResolvedURL string
	LocalPath   string
	Saturation  Saturation
	CreatedAt   time.Time

	mu        sync.Mutex
	state     State
	err       error
	updatedAt time.Time
	observers []TransitionFunc
}

// NewJob creates a job in StateCreated.
func NewJob(sourceURL string, sat Saturation, observers ...TransitionFunc) *Job {
	now := time.Now()
	return &Job{
		SourceURL:  sourceURL,
		Saturation: sat,
		CreatedAt:  now,
		state:      StateCreated,
		updatedAt:  now,
		observers:  observers,
	}
}

// State returns the current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the failure cause once the job is in StateFailed.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// UpdatedAt returns the time of the last transition.
func (j *Job) UpdatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.updatedAt
}

// Advance moves the job to the given state, rejecting anything but the next forward step.
func (j *Job) Advance(to State) error {
	j.mu.Lock()
	from := j.state
	if err := ValidateTransition(from, to); err != nil {
		j.mu.Unlock()
		return err
	}
	j.state = to
	j.updatedAt = time.Now()
	observers := j.observers
	j.mu.Unlock()

	for _, fn := range observers {
		fn(j, from, to)
	}
	return nil
}

// Fail moves the job to StateFailed and records cause. Failing a terminal job is a no-op that
// returns ErrInvalidTransition.
func (j *Job) Fail(cause error) error {
	j.mu.Lock()
	from := j.state
	if err := ValidateTransition(from, StateFailed); err != nil {
		j.mu.Unlock()
		return err
	}
	j.state = StateFailed
	j.err = cause
	j.updatedAt = time.Now()
	observers := j.observers
	j.mu.Unlock()

	for _, fn := range observers {
		fn(j, from, StateFailed)
	}
	return nil
}

// StoredFile is the on-disk artifact of a job, keyed by id.
type StoredFile struct {
	ID      string
	Path    string
	Size    int64
	ModTime time.Time
}

// Age returns how long ago the file was last modified relative to now.
func (f StoredFile) Age(now time.Time) time.Duration {
	return now.Sub(f.ModTime)
}
