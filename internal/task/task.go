// Package task tracks work items assigned to EVE agents. Atlas dispatches
// assign_task commands here and reads the pending count for its system state
// snapshot.
package task

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mavrika/mavrika/internal/log"
)

// Status of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

var (
	// ErrEmptyDescription indicates a task was assigned without a description.
	ErrEmptyDescription = errors.New("task description is empty")

	// ErrNotFound indicates the referenced task does not exist.
	ErrNotFound = errors.New("task not found")
)

// Task is a unit of work assigned to an EVE.
type Task struct {
	ID          string
	EveID       string
	Description string
	Status      Status
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Service is an in-memory task tracker.
//
// Safe for concurrent use.
type Service struct {
	mu     sync.RWMutex
	tasks  map[string]Task
	logger log.Logger
}

// NewService creates an empty task tracker.
func NewService(logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		tasks:  make(map[string]Task),
		logger: logger,
	}
}

// Assign creates a pending task for the given EVE and returns it.
func (s *Service) Assign(_ context.Context, eveID, description string) (Task, error) {
	if description == "" {
		return Task{}, ErrEmptyDescription
	}

	t := Task{
		ID:          uuid.NewString(),
		EveID:       eveID,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()

	s.logger.Info("task assigned", "id", t.ID, "eve_id", eveID)
	return t, nil
}

// Complete marks the task completed.
func (s *Service) Complete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status == StatusCompleted {
		return nil
	}
	t.Status = StatusCompleted
	t.CompletedAt = time.Now().UTC()
	s.tasks[id] = t
	return nil
}

// Pending returns the number of tasks not yet completed.
func (s *Service) Pending(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.tasks {
		if t.Status == StatusPending {
			n++
		}
	}
	return n
}

// List returns all tasks ordered by creation time.
func (s *Service) List(_ context.Context) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all
}
