package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/seojin/mailflow/internal/delivery"
	"github.com/seojin/mailflow/internal/metrics"
	"github.com/seojin/mailflow/internal/workflow"
)

const instancesSchema = `
CREATE TABLE IF NOT EXISTS workflow_instances (
	email_id            TEXT PRIMARY KEY,
	tenant_id           TEXT NOT NULL,
	request             JSONB NOT NULL,
	state               TEXT NOT NULL,
	attempt             INTEGER NOT NULL DEFAULT 0,
	next_wake_at        TIMESTAMPTZ,
	approval_deadline   TIMESTAMPTZ,
	last_error          TEXT NOT NULL DEFAULT '',
	provider_message_id TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS workflow_instances_state
	ON workflow_instances (state);
`

// InstanceStore persists workflow instances, keyed by email ID.
type InstanceStore struct {
	db *DB
}

var _ workflow.InstanceStore = (*InstanceStore)(nil)

// NewInstanceStore initializes the schema and returns an InstanceStore.
func NewInstanceStore(ctx context.Context, db *DB) (*InstanceStore, error) {
	if _, err := db.Pool.Exec(ctx, instancesSchema); err != nil {
		return nil, fmt.Errorf("init workflow_instances schema: %w", err)
	}
	return &InstanceStore{db: db}, nil
}

// CreateInstance inserts a new instance, reporting false when one already
// exists for the email ID. The database enforces the uniqueness, so
// concurrent submissions of the same email resolve to one workflow.
func (s *InstanceStore) CreateInstance(ctx context.Context, inst *workflow.Instance) (bool, error) {
	req, err := json.Marshal(inst.Request)
	if err != nil {
		return false, fmt.Errorf("marshal send request: %w", err)
	}

	tag, err := s.db.Pool.Exec(ctx, `
		INSERT INTO workflow_instances
			(email_id, tenant_id, request, state, attempt, next_wake_at, approval_deadline,
			 last_error, provider_message_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (email_id) DO NOTHING
	`, inst.EmailID, inst.TenantID, req, string(inst.State), inst.Attempt,
		nullableTime(inst.NextWakeAt), nullableTime(inst.ApprovalDeadline),
		inst.LastError, inst.ProviderMessageID, inst.CreatedAt, inst.UpdatedAt)
	if err != nil {
		metrics.DBErrorsTotal.WithLabelValues("create_instance").Inc()
		return false, fmt.Errorf("create workflow instance: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SaveInstance upserts the instance's current state.
func (s *InstanceStore) SaveInstance(ctx context.Context, inst *workflow.Instance) error {
	req, err := json.Marshal(inst.Request)
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO workflow_instances
			(email_id, tenant_id, request, state, attempt, next_wake_at, approval_deadline,
			 last_error, provider_message_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (email_id) DO UPDATE SET
			state               = EXCLUDED.state,
			attempt             = EXCLUDED.attempt,
			next_wake_at        = EXCLUDED.next_wake_at,
			approval_deadline   = EXCLUDED.approval_deadline,
			last_error          = EXCLUDED.last_error,
			provider_message_id = EXCLUDED.provider_message_id,
			updated_at          = EXCLUDED.updated_at
	`, inst.EmailID, inst.TenantID, req, string(inst.State), inst.Attempt,
		nullableTime(inst.NextWakeAt), nullableTime(inst.ApprovalDeadline),
		inst.LastError, inst.ProviderMessageID, inst.CreatedAt, inst.UpdatedAt)
	if err != nil {
		metrics.DBErrorsTotal.WithLabelValues("save_instance").Inc()
		return fmt.Errorf("save workflow instance: %w", err)
	}
	return nil
}

// GetInstance loads an instance by email ID.
func (s *InstanceStore) GetInstance(ctx context.Context, emailID string) (*workflow.Instance, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT email_id, tenant_id, request, state, attempt, next_wake_at, approval_deadline,
		       last_error, provider_message_id, created_at, updated_at
		FROM workflow_instances
		WHERE email_id = $1
	`, emailID)

	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workflow.ErrInstanceNotFound
		}
		metrics.DBErrorsTotal.WithLabelValues("get_instance").Inc()
		return nil, fmt.Errorf("get workflow instance: %w", err)
	}
	return inst, nil
}

// ListUnfinishedInstances returns all non-terminal instances, oldest first,
// for crash recovery at process start.
func (s *InstanceStore) ListUnfinishedInstances(ctx context.Context) ([]*workflow.Instance, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT email_id, tenant_id, request, state, attempt, next_wake_at, approval_deadline,
		       last_error, provider_message_id, created_at, updated_at
		FROM workflow_instances
		WHERE state NOT IN ($1, $2, $3)
		ORDER BY created_at
	`, string(workflow.StateSent), string(workflow.StateFailed), string(workflow.StateApprovalTimeout))
	if err != nil {
		metrics.DBErrorsTotal.WithLabelValues("list_unfinished").Inc()
		return nil, fmt.Errorf("list unfinished instances: %w", err)
	}
	defer rows.Close()

	var instances []*workflow.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow instance: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

func scanInstance(row pgx.Row) (*workflow.Instance, error) {
	var (
		inst             workflow.Instance
		req              []byte
		state            string
		nextWake         pgtype.Timestamptz
		approvalDeadline pgtype.Timestamptz
	)
	if err := row.Scan(&inst.EmailID, &inst.TenantID, &req, &state, &inst.Attempt,
		&nextWake, &approvalDeadline, &inst.LastError, &inst.ProviderMessageID,
		&inst.CreatedAt, &inst.UpdatedAt); err != nil {
		return nil, err
	}

	var request delivery.SendRequest
	if err := json.Unmarshal(req, &request); err != nil {
		return nil, fmt.Errorf("unmarshal send request: %w", err)
	}
	inst.Request = request
	inst.State = workflow.State(state)
	if nextWake.Valid {
		t := nextWake.Time
		inst.NextWakeAt = &t
	}
	if approvalDeadline.Valid {
		t := approvalDeadline.Time
		inst.ApprovalDeadline = &t
	}
	return &inst, nil
}

func nullableTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
