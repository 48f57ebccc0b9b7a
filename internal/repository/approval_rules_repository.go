package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/errors"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/policy"
)

// foreignKeyViolation is SQLSTATE 23503.
const foreignKeyViolation = "23503"

const ruleColumns = `id::text, project_id, min_amount::text, max_amount::text, approver_role::text`

// ApprovalRulesRepository stores global and project approval rules.
type ApprovalRulesRepository struct {
	db DBTX
}

// NewApprovalRulesRepository creates a new ApprovalRulesRepository.
func NewApprovalRulesRepository(db DBTX) *ApprovalRulesRepository {
	return &ApprovalRulesRepository{db: db}
}

// ListGlobalRules returns rules shared by every project in insertion order.
func (r *ApprovalRulesRepository) ListGlobalRules(ctx context.Context) ([]policy.ApprovalRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM approval_rules
		WHERE project_id IS NULL
		ORDER BY seq ASC
	`
	return r.list(ctx, query)
}

// ListProjectRules returns rules that override the globals for one project,
// in insertion order.
func (r *ApprovalRulesRepository) ListProjectRules(ctx context.Context, projectID string) ([]policy.ApprovalRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM approval_rules
		WHERE project_id = $1
		ORDER BY seq ASC
	`
	return r.list(ctx, query, projectID)
}

// GetByID retrieves a rule by primary key.
func (r *ApprovalRulesRepository) GetByID(ctx context.Context, id string) (*policy.ApprovalRule, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFound("approval_rule", id)
	}

	query := `SELECT ` + ruleColumns + ` FROM approval_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("approval_rule", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval rule")
	}
	return rule, nil
}

// UpsertRule creates the rule for (scope, min, max) or, when one already
// exists, replaces its approver role. The statement is atomic, so concurrent
// upserts for the same key resolve last-writer-wins.
func (r *ApprovalRulesRepository) UpsertRule(
	ctx context.Context,
	scope policy.Scope,
	minAmount decimal.Decimal,
	maxAmount decimal.NullDecimal,
	role policy.Role,
) (*policy.ApprovalRule, error) {
	query := `
		INSERT INTO approval_rules (project_id, min_amount, max_amount, approver_role)
		VALUES ($1, $2::numeric, $3::numeric, $4::approver_role)
		ON CONFLICT ON CONSTRAINT approval_rules_scope_range_key
		DO UPDATE SET approver_role = EXCLUDED.approver_role,
		              updated_at    = NOW()
		RETURNING ` + ruleColumns

	rule, err := scanRule(r.db.QueryRow(ctx, query,
		optionalString(scope.ProjectID),
		minAmount.String(),
		optionalAmountParam(maxAmount),
		string(role),
	))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return nil, errors.NotFound("project", scope.ProjectID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to upsert approval rule")
	}
	return rule, nil
}

// DeleteRule removes a rule and returns what was deleted.
func (r *ApprovalRulesRepository) DeleteRule(ctx context.Context, id string) (*policy.ApprovalRule, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFound("approval_rule", id)
	}

	query := `DELETE FROM approval_rules WHERE id = $1 RETURNING ` + ruleColumns

	rule, err := scanRule(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("approval_rule", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to delete approval rule")
	}
	return rule, nil
}

func (r *ApprovalRulesRepository) list(ctx context.Context, query string, args ...any) ([]policy.ApprovalRule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approval rules")
	}
	defer rows.Close()

	var rules []policy.ApprovalRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval rule")
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read approval rules")
	}
	return rules, nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*policy.ApprovalRule, error) {
	var (
		id, minText, roleText string
		projectID, maxText    *string
	)
	if err := row.Scan(&id, &projectID, &minText, &maxText, &roleText); err != nil {
		return nil, err
	}

	rule := &policy.ApprovalRule{ID: id}
	if projectID != nil {
		rule.Scope = policy.ProjectScope(*projectID)
	}

	var err error
	if rule.MinAmount, err = parseAmount("min_amount", minText); err != nil {
		return nil, err
	}
	if rule.MaxAmount, err = parseOptionalAmount("max_amount", maxText); err != nil {
		return nil, err
	}
	if rule.Role, err = policy.ParseRole(roleText); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "stored approval rule has invalid role")
	}
	return rule, nil
}
