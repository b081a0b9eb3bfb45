// Package eve manages the roster of EVE agents, the AI personas a company
// provisions to perform business tasks. Atlas creates EVEs through this
// service and reads the roster for its system state snapshot.
package eve

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mavrika/mavrika/internal/log"
)

// Status of an EVE agent.
type Status string

const (
	StatusActive   Status = "active"
	StatusIdle     Status = "idle"
	StatusDisabled Status = "disabled"
)

var (
	// ErrEmptyName indicates an EVE was created without a name.
	ErrEmptyName = errors.New("eve name is empty")

	// ErrNotFound indicates the referenced EVE does not exist.
	ErrNotFound = errors.New("eve not found")
)

// EVE is a provisioned agent persona.
type EVE struct {
	ID        string
	Name      string
	Role      string
	Status    Status
	CreatedAt time.Time
}

// Service is an in-memory EVE roster.
//
// Safe for concurrent use.
type Service struct {
	mu     sync.RWMutex
	roster map[string]EVE
	logger log.Logger
}

// NewService creates an empty roster.
func NewService(logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		roster: make(map[string]EVE),
		logger: logger,
	}
}

// Create provisions a new EVE in active status and returns it.
func (s *Service) Create(_ context.Context, name, role string) (EVE, error) {
	if name == "" {
		return EVE{}, ErrEmptyName
	}

	e := EVE{
		ID:        uuid.NewString(),
		Name:      name,
		Role:      role,
		Status:    StatusActive,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.roster[e.ID] = e
	s.mu.Unlock()

	s.logger.Info("eve created", "id", e.ID, "name", e.Name, "role", e.Role)
	return e, nil
}

// Get returns the EVE by id.
func (s *Service) Get(_ context.Context, id string) (EVE, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.roster[id]
	if !ok {
		return EVE{}, ErrNotFound
	}
	return e, nil
}

// List returns the roster ordered by creation time.
func (s *Service) List(_ context.Context) []EVE {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]EVE, 0, len(s.roster))
	for _, e := range s.roster {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all
}

// SetStatus updates the EVE's status.
func (s *Service) SetStatus(_ context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.roster[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = status
	s.roster[id] = e
	return nil
}
