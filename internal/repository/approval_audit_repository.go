package repository

import (
	"context"
	"encoding/json"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/errors"
)

// ApprovalAuditRepository appends and reads immutable rule audit entries.
type ApprovalAuditRepository struct {
	db DBTX
}

// NewApprovalAuditRepository creates a new ApprovalAuditRepository.
func NewApprovalAuditRepository(db DBTX) *ApprovalAuditRepository {
	return &ApprovalAuditRepository{db: db}
}

// Append inserts one audit entry and fills in its id and timestamp.
func (r *ApprovalAuditRepository) Append(ctx context.Context, entry *RuleAuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO approval_rule_audit
		    (rule_id, project_id, action, performed_by, metadata)
		VALUES ($1::uuid, $2, $3, $4, $5)
		RETURNING id::text, performed_at
	`

	err := r.db.QueryRow(ctx, query,
		entry.RuleID,
		entry.ProjectID,
		entry.Action,
		entry.PerformedBy,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append rule audit entry")
	}
	return nil
}

// ListByRule returns the audit trail for a rule, oldest first.
func (r *ApprovalAuditRepository) ListByRule(ctx context.Context, ruleID string) ([]*RuleAuditEntry, error) {
	query := `
		SELECT id::text, rule_id::text, project_id, action, performed_by, performed_at, metadata
		FROM approval_rule_audit
		WHERE rule_id::text = $1
		ORDER BY performed_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, ruleID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list rule audit entries")
	}
	defer rows.Close()

	var entries []*RuleAuditEntry
	for rows.Next() {
		entry := &RuleAuditEntry{}
		var metadataJSON []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.RuleID,
			&entry.ProjectID,
			&entry.Action,
			&entry.PerformedBy,
			&entry.PerformedAt,
			&metadataJSON,
		); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan rule audit entry")
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal audit metadata")
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read rule audit entries")
	}
	return entries, nil
}
