package memory

import (
	"context"
	"sync"

	"github.com/mvaldesr/tabletalk/internal/domain"
)

type StepStore struct {
	mu     sync.Mutex
	steps  map[domain.SessionID][]*domain.Step
	nextID domain.StepID
}

func NewStepStore() *StepStore {
	return &StepStore{
		steps: make(map[domain.SessionID][]*domain.Step),
	}
}

// AppendStep purges the session's inactive steps and inserts the new one
// under a single lock, mirroring the transactional backend.
func (s *StepStore) AppendStep(_ context.Context, step *domain.Step) (domain.StepID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.steps[step.SessionID][:0]
	for _, st := range s.steps[step.SessionID] {
		if st.Active {
			kept = append(kept, st)
		}
	}

	s.nextID++
	cp := *step
	cp.ID = s.nextID
	s.steps[step.SessionID] = append(kept, &cp)
	return cp.ID, nil
}

func (s *StepStore) DeactivateLastStep(_ context.Context, session domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := s.steps[session]
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Active {
			steps[i].Active = false
			return nil
		}
	}
	return nil
}

func (s *StepStore) DeactivateAllSteps(_ context.Context, session domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.steps[session] {
		st.Active = false
	}
	return nil
}

func (s *StepStore) ListActiveSteps(_ context.Context, session domain.SessionID) ([]*domain.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*domain.Step
	for _, st := range s.steps[session] {
		if st.Active {
			cp := *st
			result = append(result, &cp)
		}
	}
	return result, nil
}
