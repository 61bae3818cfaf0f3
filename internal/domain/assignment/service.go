package assignment

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// Service defines the assignment decisions the engine delegates to
type Service interface {
	// Params returns the parameters the service was built with.
	Params() *Params

	// CheckManual validates a manual assignee and their current load.
	CheckManual(task *domain.Task, candidate *domain.User, activeTasks int) error

	// Eligible returns the workers of pool that may receive task automatically.
	Eligible(task *domain.Task, pool []*domain.User) []*domain.User

	// Select chooses among eligible candidates. It returns
	// OutcomeInsufficientSignal when the task lacks a department or
	// capabilities, OutcomeNoEligibleWorker when nobody qualifies, and
	// OutcomeAssigned with the chosen worker otherwise.
	Select(task *domain.Task, candidates []Candidate) (uuid.UUID, domain.AssignmentOutcome)
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new assignment service with default parameters
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new assignment service with custom parameters
func NewServiceWithParams(params *Params) Service {
	if params == nil {
		params = NewDefaultParams()
	}
	return &defaultService{
		params: params,
	}
}

func (s *defaultService) Params() *Params {
	return s.params
}

// CheckManual rejects candidates that are missing, inactive, not workers or
// outside the task's company with ErrInvalidCandidate, and candidates at the
// ceiling with ErrCapacityExceeded. Capabilities are not checked.
func (s *defaultService) CheckManual(task *domain.Task, candidate *domain.User, activeTasks int) error {
	if candidate == nil {
		return domain.NewTaskError(task, "assign", "", domain.ErrInvalidCandidate)
	}
	if candidate.CompanyID != task.CompanyID {
		return domain.NewTaskError(task, "assign", "",
			fmt.Errorf("%w: worker %s belongs to another company", domain.ErrInvalidCandidate, candidate.ID))
	}
	if candidate.Role != domain.RoleWorker {
		return domain.NewTaskError(task, "assign", "",
			fmt.Errorf("%w: user %s is not a worker", domain.ErrInvalidCandidate, candidate.ID))
	}
	if !candidate.IsActive {
		return domain.NewTaskError(task, "assign", "",
			fmt.Errorf("%w: worker %s is inactive", domain.ErrInvalidCandidate, candidate.ID))
	}
	if !s.params.HasCapacity(activeTasks) {
		return domain.NewTaskError(task, "assign", "",
			fmt.Errorf("%w: worker %s has %d of %d active tasks",
				domain.ErrCapacityExceeded, candidate.ID, activeTasks, s.params.MaxActiveTasks))
	}
	return nil
}

func (s *defaultService) Eligible(task *domain.Task, pool []*domain.User) []*domain.User {
	if !task.HasAutoAssignSignal() {
		return nil
	}
	return FilterEligible(task, pool)
}

func (s *defaultService) Select(task *domain.Task, candidates []Candidate) (uuid.UUID, domain.AssignmentOutcome) {
	if !task.HasAutoAssignSignal() {
		return uuid.Nil, domain.OutcomeInsufficientSignal
	}
	worker, ok := SelectLeastLoaded(candidates, s.params.MaxActiveTasks)
	if !ok {
		return uuid.Nil, domain.OutcomeNoEligibleWorker
	}
	return worker, domain.OutcomeAssigned
}
