package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/seojin/mailflow/internal/delivery"
)

// ErrInstanceNotFound is returned by stores when no instance exists for an
// email ID.
var ErrInstanceNotFound = errors.New("workflow instance not found")

// Instance is the durable record of one delivery workflow. It is persisted
// before every suspend point so that a restarted process can resume the
// remaining transitions without re-running completed side effects.
type Instance struct {
	EmailID  string               `json:"email_id"`
	TenantID string               `json:"tenant_id"`
	Request  delivery.SendRequest `json:"request"`

	State   State `json:"state"`
	Attempt int   `json:"attempt"`

	// NextWakeAt is set while the instance waits on a retry timer, so a
	// resumed run waits only the remaining portion.
	NextWakeAt *time.Time `json:"next_wake_at,omitempty"`

	// ApprovalDeadline is set on entering AwaitingApproval; a resumed run
	// recomputes the remaining approval window from it.
	ApprovalDeadline *time.Time `json:"approval_deadline,omitempty"`

	LastError         string `json:"last_error,omitempty"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewInstance creates a Pending instance for the given request.
func NewInstance(req delivery.SendRequest) *Instance {
	now := time.Now().UTC()
	return &Instance{
		EmailID:   req.EmailID,
		TenantID:  req.TenantID,
		Request:   req,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Terminal reports whether the instance has reached a terminal state.
func (i *Instance) Terminal() bool {
	return i.State.Terminal()
}

// InstanceStore persists workflow instances. Implementations key records
// by EmailID; SaveInstance upserts.
type InstanceStore interface {
	// CreateInstance inserts a new instance, reporting false without error
	// when one already exists for the email ID.
	CreateInstance(ctx context.Context, inst *Instance) (bool, error)
	SaveInstance(ctx context.Context, inst *Instance) error
	GetInstance(ctx context.Context, emailID string) (*Instance, error)
	// ListUnfinishedInstances returns all non-terminal instances, used for
	// crash recovery at process start.
	ListUnfinishedInstances(ctx context.Context) ([]*Instance, error)
}

// EventAppender appends delivery events with insert-or-ignore semantics.
type EventAppender interface {
	InsertEvent(ctx context.Context, evt *delivery.Event) (bool, error)
}
