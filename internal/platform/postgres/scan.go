package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const taskColumns = `
	t.id, t.company_id, t.title, t.description, t.priority, t.due_date, t.department,
	t.state, t.assigned_worker_id, t.created_by_user_id,
	t.evidence_text, t.evidence_image_url, t.cancellation_reason,
	t.assigned_at, t.accepted_at, t.finalized_at, t.finalized_by_user_id, t.cancelled_at,
	t.delegation_status, t.delegated_by_user_id, t.delegated_to_user_id, t.delegated_at,
	t.delegation_comment, t.delegation_rejection_reason, t.delegation_resolved_at,
	t.is_active, t.version, t.created_at, t.updated_at,
	COALESCE((
		SELECT json_agg(c.name ORDER BY c.name)
		FROM task_capabilities c
		WHERE c.task_id = t.id
	), '[]'::json)`

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task             domain.Task
		priority, state  string
		dueDate          sql.NullTime
		assignedWorker   uuid.NullUUID
		assignedAt       sql.NullTime
		acceptedAt       sql.NullTime
		finalizedAt      sql.NullTime
		finalizedBy      uuid.NullUUID
		cancelledAt      sql.NullTime
		delegationStatus sql.NullString
		delegatedBy      uuid.NullUUID
		delegatedTo      uuid.NullUUID
		delegatedAt      sql.NullTime
		delegationNote   string
		rejectionReason  string
		resolvedAt       sql.NullTime
		capabilities     []byte
	)

	err := row.Scan(
		&task.ID, &task.CompanyID, &task.Title, &task.Description, &priority, &dueDate, &task.Department,
		&state, &assignedWorker, &task.CreatedByUserID,
		&task.EvidenceText, &task.EvidenceImageURL, &task.CancellationReason,
		&assignedAt, &acceptedAt, &finalizedAt, &finalizedBy, &cancelledAt,
		&delegationStatus, &delegatedBy, &delegatedTo, &delegatedAt,
		&delegationNote, &rejectionReason, &resolvedAt,
		&task.IsActive, &task.Version, &task.CreatedAt, &task.UpdatedAt,
		&capabilities,
	)
	if err != nil {
		return nil, err
	}

	task.Priority = domain.Priority(priority)
	task.State = domain.TaskState(state)
	task.DueDate = timePtr(dueDate)
	task.AssignedWorkerID = uuidPtr(assignedWorker)
	task.AssignedAt = timePtr(assignedAt)
	task.AcceptedAt = timePtr(acceptedAt)
	task.FinalizedAt = timePtr(finalizedAt)
	task.FinalizedByUserID = uuidPtr(finalizedBy)
	task.CancelledAt = timePtr(cancelledAt)

	if delegationStatus.Valid {
		task.Delegation = &domain.Delegation{
			OriginManagerID:      delegatedBy.UUID,
			DestinationManagerID: delegatedTo.UUID,
			Comment:              delegationNote,
			DelegatedAt:          delegatedAt.Time,
			Status:               domain.DelegationStatus(delegationStatus.String),
			RejectionReason:      rejectionReason,
			ResolvedAt:           timePtr(resolvedAt),
		}
	}

	if err := json.Unmarshal(capabilities, &task.RequiredCapabilities); err != nil {
		return nil, fmt.Errorf("failed to decode task capabilities: %w", err)
	}

	return &task, nil
}

// delegationColumns flattens the delegation overlay into column values in
// the order status, by, to, at, comment, rejection reason, resolved at.
func delegationColumns(d *domain.Delegation) []any {
	if d == nil {
		return []any{nil, nil, nil, nil, "", "", nil}
	}
	return []any{
		string(d.Status),
		d.OriginManagerID,
		d.DestinationManagerID,
		d.DelegatedAt,
		d.Comment,
		d.RejectionReason,
		nullTime(d.ResolvedAt),
	}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func uuidPtr(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	v := id.UUID
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
