package assignment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatches(t *testing.T) {
	caps := []domain.Capability{
		{Name: "Welding", Level: 1},
		{Name: " Pipe   Fitting ", Level: 5},
	}

	tests := []struct {
		name     string
		required []string
		want     bool
	}{
		{"no requirements", nil, true},
		{"exact", []string{"welding"}, true},
		{"case and whitespace", []string{"WELDING", "pipe fitting"}, true},
		{"missing one", []string{"welding", "electrical"}, false},
		{"none held", []string{"electrical"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Matches(tc.required, caps))
		})
	}
}

func TestFilterEligible(t *testing.T) {
	company := uuid.New()
	task, err := domain.NewTask(company, uuid.New(), domain.TaskDetails{
		Title:                "Fix pipe",
		Department:           "Plant",
		RequiredCapabilities: []string{"Welding"},
	})
	require.NoError(t, err)

	welder := &domain.User{ID: uuid.New(), CompanyID: company, Role: domain.RoleWorker, Department: "Plant",
		IsActive: true, Capabilities: []domain.Capability{{Name: "welding", Level: 2}}}
	unskilled := &domain.User{ID: uuid.New(), CompanyID: company, Role: domain.RoleWorker, Department: "Plant",
		IsActive: true}
	inactive := &domain.User{ID: uuid.New(), CompanyID: company, Role: domain.RoleWorker, Department: "Plant",
		Capabilities: []domain.Capability{{Name: "welding"}}}
	otherDept := &domain.User{ID: uuid.New(), CompanyID: company, Role: domain.RoleWorker, Department: "Office",
		IsActive: true, Capabilities: []domain.Capability{{Name: "welding"}}}
	manager := &domain.User{ID: uuid.New(), CompanyID: company, Role: domain.RoleManager, Department: "Plant",
		IsActive: true, Capabilities: []domain.Capability{{Name: "welding"}}}
	otherCompany := &domain.User{ID: uuid.New(), CompanyID: uuid.New(), Role: domain.RoleWorker, Department: "Plant",
		IsActive: true, Capabilities: []domain.Capability{{Name: "welding"}}}

	got := FilterEligible(task, []*domain.User{unskilled, welder, inactive, otherDept, manager, otherCompany, nil})
	require.Len(t, got, 1)
	assert.Equal(t, welder.ID, got[0].ID)
}
