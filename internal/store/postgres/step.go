package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/adbroker/internal/domain"
)

type WorkflowStepRepo struct {
	pool *pgxpool.Pool
}

func NewWorkflowStepRepo(pool *pgxpool.Pool) *WorkflowStepRepo {
	return &WorkflowStepRepo{pool: pool}
}

// CreateWithMappings inserts the step and its object mappings in one
// transaction so a step never appears without its audit rows.
func (r *WorkflowStepRepo) CreateWithMappings(ctx context.Context, step *domain.WorkflowStep, mappings []*domain.ObjectMapping) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("stepRepo.CreateWithMappings: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	request, err := json.Marshal(step.Request)
	if err != nil {
		return fmt.Errorf("stepRepo.CreateWithMappings: marshal request: %w", err)
	}
	response, err := json.Marshal(step.Response)
	if err != nil {
		return fmt.Errorf("stepRepo.CreateWithMappings: marshal response: %w", err)
	}
	txnDetails, err := json.Marshal(step.TransactionDetails)
	if err != nil {
		return fmt.Errorf("stepRepo.CreateWithMappings: marshal transaction details: %w", err)
	}
	comments, err := json.Marshal(step.Comments)
	if err != nil {
		return fmt.Errorf("stepRepo.CreateWithMappings: marshal comments: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO workflow_steps
		   (id, context_id, tenant_id, step_type, owner, status, operation,
		    request, response, assignee, error_message, transaction_details,
		    comments, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		step.ID, step.ContextID, step.TenantID, step.StepType, step.Owner,
		step.Status, step.Operation, request, response, step.Assignee,
		step.ErrorMessage, txnDetails, comments, step.CreatedAt, step.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("stepRepo.CreateWithMappings: insert step: %w", err)
	}

	for _, m := range mappings {
		_, err = tx.Exec(ctx,
			`INSERT INTO object_workflow_mappings
			   (id, tenant_id, object_type, object_id, step_id, action, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			m.ID, m.TenantID, m.ObjectType, m.ObjectID, m.StepID, m.Action, m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("stepRepo.CreateWithMappings: insert mapping: %w", err)
		}
	}

	err = tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("stepRepo.CreateWithMappings: commit: %w", err)
	}

	return nil
}

func (r *WorkflowStepRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.WorkflowStep, error) {
	step, err := scanStep(r.pool.QueryRow(ctx,
		stepColumns+` FROM workflow_steps WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("stepRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("stepRepo.GetByID: %w", err)
	}

	return step, nil
}

// Update persists every mutable field except comments, which are
// append-only through AppendComment.
func (r *WorkflowStepRepo) Update(ctx context.Context, step *domain.WorkflowStep) error {
	request, err := json.Marshal(step.Request)
	if err != nil {
		return fmt.Errorf("stepRepo.Update: marshal request: %w", err)
	}
	response, err := json.Marshal(step.Response)
	if err != nil {
		return fmt.Errorf("stepRepo.Update: marshal response: %w", err)
	}
	txnDetails, err := json.Marshal(step.TransactionDetails)
	if err != nil {
		return fmt.Errorf("stepRepo.Update: marshal transaction details: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE workflow_steps
		 SET status = $3, request = $4, response = $5, assignee = $6,
		     error_message = $7, transaction_details = $8, completed_at = $9
		 WHERE tenant_id = $1 AND id = $2`,
		step.TenantID, step.ID, step.Status, request, response,
		step.Assignee, step.ErrorMessage, txnDetails, step.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("stepRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stepRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *WorkflowStepRepo) AppendComment(ctx context.Context, tenantID, id uuid.UUID, comment domain.StepComment) error {
	payload, err := json.Marshal([]domain.StepComment{comment})
	if err != nil {
		return fmt.Errorf("stepRepo.AppendComment: marshal: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE workflow_steps SET comments = comments || $3::jsonb
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, payload,
	)
	if err != nil {
		return fmt.Errorf("stepRepo.AppendComment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stepRepo.AppendComment: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *WorkflowStepRepo) ListPending(ctx context.Context, tenantID uuid.UUID, filter domain.PendingStepFilter) ([]*domain.WorkflowStep, error) {
	query := stepColumns + ` FROM workflow_steps
	         WHERE tenant_id = $1 AND status IN ('pending', 'requires_approval')`
	args := []any{tenantID}

	if filter.Owner != "" {
		args = append(args, filter.Owner)
		query += fmt.Sprintf(` AND owner = $%d`, len(args))
	}
	if filter.Assignee != "" {
		args = append(args, filter.Assignee)
		query += fmt.Sprintf(` AND assignee = $%d`, len(args))
	}
	query += ` ORDER BY created_at LIMIT 500`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stepRepo.ListPending: %w", err)
	}
	defer rows.Close()

	steps, err := collectSteps(rows)
	if err != nil {
		return nil, fmt.Errorf("stepRepo.ListPending: %w", err)
	}

	return steps, nil
}

func (r *WorkflowStepRepo) ListByContext(ctx context.Context, tenantID, contextID uuid.UUID) ([]*domain.WorkflowStep, error) {
	rows, err := r.pool.Query(ctx,
		stepColumns+` FROM workflow_steps
		 WHERE tenant_id = $1 AND context_id = $2
		 ORDER BY created_at`,
		tenantID, contextID,
	)
	if err != nil {
		return nil, fmt.Errorf("stepRepo.ListByContext: %w", err)
	}
	defer rows.Close()

	steps, err := collectSteps(rows)
	if err != nil {
		return nil, fmt.Errorf("stepRepo.ListByContext: %w", err)
	}

	return steps, nil
}

const stepColumns = `SELECT id, context_id, tenant_id, step_type, owner, status, operation,
	request, response, assignee, error_message, transaction_details, comments,
	created_at, completed_at`

func scanStep(row pgx.Row) (*domain.WorkflowStep, error) {
	var raw rawStepRow

	err := row.Scan(
		&raw.step.ID, &raw.step.ContextID, &raw.step.TenantID, &raw.step.StepType,
		&raw.step.Owner, &raw.step.Status, &raw.step.Operation, &raw.request,
		&raw.response, &raw.step.Assignee, &raw.step.ErrorMessage, &raw.txnDetails,
		&raw.comments, &raw.step.CreatedAt, &raw.step.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	return raw.decode()
}

// rawStepRow holds the jsonb columns of a step before decoding, for
// queries that scan step columns alongside others.
type rawStepRow struct {
	step       domain.WorkflowStep
	request    []byte
	response   []byte
	txnDetails []byte
	comments   []byte
}

func (r *rawStepRow) decode() (*domain.WorkflowStep, error) {
	if len(r.request) > 0 {
		err := json.Unmarshal(r.request, &r.step.Request)
		if err != nil {
			return nil, fmt.Errorf("unmarshal request: %w", err)
		}
	}
	if len(r.response) > 0 {
		err := json.Unmarshal(r.response, &r.step.Response)
		if err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	if len(r.txnDetails) > 0 {
		err := json.Unmarshal(r.txnDetails, &r.step.TransactionDetails)
		if err != nil {
			return nil, fmt.Errorf("unmarshal transaction details: %w", err)
		}
	}
	if len(r.comments) > 0 {
		err := json.Unmarshal(r.comments, &r.step.Comments)
		if err != nil {
			return nil, fmt.Errorf("unmarshal comments: %w", err)
		}
	}

	return &r.step, nil
}

func collectSteps(rows pgx.Rows) ([]*domain.WorkflowStep, error) {
	var steps []*domain.WorkflowStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		steps = append(steps, step)
	}
	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return steps, nil
}
