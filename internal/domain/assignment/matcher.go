package assignment

import (
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// Matches reports whether a candidate's capabilities cover every required
// capability. Names are compared after normalization. Levels are ignored.
func Matches(required []string, capabilities []domain.Capability) bool {
	if len(required) == 0 {
		return true
	}

	held := make(map[string]struct{}, len(capabilities))
	for _, c := range capabilities {
		held[domain.NormalizeCapabilityName(c.Name)] = struct{}{}
	}

	for _, r := range required {
		if _, ok := held[domain.NormalizeCapabilityName(r)]; !ok {
			return false
		}
	}
	return true
}

// FilterEligible returns the active workers of pool that belong to the
// task's company and department and match its required capabilities.
// Input order is preserved.
func FilterEligible(task *domain.Task, pool []*domain.User) []*domain.User {
	eligible := make([]*domain.User, 0, len(pool))
	for _, u := range pool {
		if u == nil || !u.IsActiveWorker() {
			continue
		}
		if u.CompanyID != task.CompanyID || u.Department != task.Department {
			continue
		}
		if !Matches(task.RequiredCapabilities, u.Capabilities) {
			continue
		}
		eligible = append(eligible, u)
	}
	return eligible
}
