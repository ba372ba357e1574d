package storage

import (
	"context"
	"fmt"

	"github.com/seojin/mailflow/internal/metrics"
)

const suppressionsSchema = `
CREATE TABLE IF NOT EXISTS suppressions (
	tenant_id  TEXT NOT NULL,
	recipient  TEXT NOT NULL,
	reason     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, recipient)
);
`

// SuppressionStore records recipients that must not be mailed again for a
// tenant: hard bounces and spam complaints land here.
type SuppressionStore struct {
	db *DB
}

// NewSuppressionStore initializes the schema and returns a SuppressionStore.
func NewSuppressionStore(ctx context.Context, db *DB) (*SuppressionStore, error) {
	if _, err := db.Pool.Exec(ctx, suppressionsSchema); err != nil {
		return nil, fmt.Errorf("init suppressions schema: %w", err)
	}
	return &SuppressionStore{db: db}, nil
}

// SuppressRecipient adds a recipient to the tenant's suppression list. An
// already-suppressed recipient keeps its original reason.
func (s *SuppressionStore) SuppressRecipient(ctx context.Context, tenantID, recipient, reason string) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO suppressions (tenant_id, recipient, reason)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, recipient) DO NOTHING
	`, tenantID, recipient, reason)
	if err != nil {
		metrics.DBErrorsTotal.WithLabelValues("suppress_recipient").Inc()
		return fmt.Errorf("suppress recipient: %w", err)
	}
	return nil
}

// IsSuppressed reports whether the recipient is on the tenant's list.
func (s *SuppressionStore) IsSuppressed(ctx context.Context, tenantID, recipient string) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM suppressions WHERE tenant_id = $1 AND recipient = $2
		)
	`, tenantID, recipient).Scan(&exists)
	if err != nil {
		metrics.DBErrorsTotal.WithLabelValues("is_suppressed").Inc()
		return false, fmt.Errorf("check suppression: %w", err)
	}
	return exists, nil
}
