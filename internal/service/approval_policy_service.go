package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/client"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/errors"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/logger"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/policy"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/repository"
)

// RuleStore persists approval rules. List results are in iteration order.
type RuleStore interface {
	ListGlobalRules(ctx context.Context) ([]policy.ApprovalRule, error)
	ListProjectRules(ctx context.Context, projectID string) ([]policy.ApprovalRule, error)
	GetByID(ctx context.Context, id string) (*policy.ApprovalRule, error)
	UpsertRule(ctx context.Context, scope policy.Scope, minAmount decimal.Decimal, maxAmount decimal.NullDecimal, role policy.Role) (*policy.ApprovalRule, error)
	DeleteRule(ctx context.Context, id string) (*policy.ApprovalRule, error)
}

// ProjectRepository reads projects and their clients.
type ProjectRepository interface {
	ListProjects(ctx context.Context) ([]policy.Project, error)
	GetProject(ctx context.Context, id string) (*policy.Project, error)
	GetClient(ctx context.Context, id string) (*policy.Client, error)
}

// Directory resolves person ids. Unknown ids are absent from the result.
type Directory interface {
	LookupPeople(ctx context.Context, ids []string) (map[string]policy.Person, error)
}

// AuditLog records rule mutations.
type AuditLog interface {
	Append(ctx context.Context, entry *repository.RuleAuditEntry) error
	ListByRule(ctx context.Context, ruleID string) ([]*repository.RuleAuditEntry, error)
}

// EventPublisher announces rule mutations. Implementations must not block on
// or report delivery failures.
type EventPublisher interface {
	PublishRuleEvent(ctx context.Context, eventType string, rule *policy.ApprovalRule, actorID string)
}

// snapshotFetchConcurrency bounds concurrent per-project and per-client reads.
const snapshotFetchConcurrency = 8

// ApprovalPolicyService answers "who must approve amount X on project P" and
// administers the rules that decide it.
type ApprovalPolicyService struct {
	rules     RuleStore
	projects  ProjectRepository
	directory Directory
	audit     AuditLog
	events    EventPublisher
	log       *logger.Logger
}

// NewApprovalPolicyService creates a new ApprovalPolicyService. audit and
// events may be nil.
func NewApprovalPolicyService(
	rules RuleStore,
	projects ProjectRepository,
	directory Directory,
	audit AuditLog,
	events EventPublisher,
	log *logger.Logger,
) *ApprovalPolicyService {
	return &ApprovalPolicyService{
		rules:     rules,
		projects:  projects,
		directory: directory,
		audit:     audit,
		events:    events,
		log:       log.WithComponent("approval_policy"),
	}
}

// ResolveResult is a single-point resolution for one project.
type ResolveResult struct {
	ProjectID   string                  `json:"project_id"`
	ProjectName string                  `json:"project_name"`
	ClientName  string                  `json:"client_name"`
	Approval    policy.ResolvedApproval `json:"approval"`
}

// ── Snapshot ─────────────────────────────────────────────────────────────────

// Snapshot reads everything a report needs. Reads run concurrently; any
// failure fails the whole snapshot so a report is never built from partial
// data.
func (s *ApprovalPolicyService) Snapshot(ctx context.Context) (*policy.Snapshot, error) {
	start := time.Now()

	var (
		projects    []policy.Project
		globalRules []policy.ApprovalRule
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		projects, err = s.projects.ListProjects(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		globalRules, err = s.rules.ListGlobalRules(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.snapshotFailed(err, "list")
	}

	clientIDs := distinctClientIDs(projects)
	clients := make([]*policy.Client, len(clientIDs))

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(snapshotFetchConcurrency)
	for i := range projects {
		g.Go(func() error {
			rules, err := s.rules.ListProjectRules(gctx, projects[i].ID)
			if err != nil {
				return err
			}
			projects[i].Rules = rules
			return nil
		})
	}
	for i, id := range clientIDs {
		g.Go(func() error {
			c, err := s.projects.GetClient(gctx, id)
			if err != nil {
				return err
			}
			clients[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.snapshotFailed(err, "project_rules")
	}

	clientMap := make(map[string]policy.Client, len(clients))
	for _, c := range clients {
		clientMap[c.ID] = *c
	}

	people, err := s.directory.LookupPeople(ctx, policy.ReferencedPersonIDs(projects, clientMap))
	if err != nil {
		return nil, s.snapshotFailed(err, "directory")
	}

	s.log.Debug().
		Int("projects", len(projects)).
		Int("global_rules", len(globalRules)).
		Int("people", len(people)).
		Dur("elapsed", time.Since(start)).
		Msg("Approval policy snapshot loaded")

	return &policy.Snapshot{
		Projects:    projects,
		Clients:     clientMap,
		GlobalRules: globalRules,
		Directory:   policy.Directory(people),
	}, nil
}

func (s *ApprovalPolicyService) snapshotFailed(err error, stage string) error {
	s.log.Error().Err(err).Str("stage", stage).Msg("Failed to load approval policy snapshot")
	return errors.Wrap(err, errors.ErrCodeUnavailable, "approval policy data unavailable")
}

func distinctClientIDs(projects []policy.Project) []string {
	seen := make(map[string]struct{}, len(projects))
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		if p.ClientID == "" {
			continue
		}
		if _, ok := seen[p.ClientID]; ok {
			continue
		}
		seen[p.ClientID] = struct{}{}
		ids = append(ids, p.ClientID)
	}
	return ids
}

// ── Reporting ────────────────────────────────────────────────────────────────

// BuildReport resolves every project at every breakpoint.
func (s *ApprovalPolicyService) BuildReport(ctx context.Context) (*policy.Report, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	report := policy.BuildReport(snap)
	return &report, nil
}

// Resolve answers a single (project, amount) query.
func (s *ApprovalPolicyService) Resolve(ctx context.Context, projectID string, amount decimal.Decimal) (*ResolveResult, error) {
	if projectID == "" {
		return nil, errors.InvalidInput("project_id", "This field is required")
	}

	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var (
		globalRules []policy.ApprovalRule
		projClient  *policy.Client
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		project.Rules, err = s.rules.ListProjectRules(gctx, project.ID)
		return err
	})
	g.Go(func() error {
		var err error
		globalRules, err = s.rules.ListGlobalRules(gctx)
		return err
	})
	if project.ClientID != "" {
		g.Go(func() error {
			var err error
			projClient, err = s.projects.GetClient(gctx, project.ClientID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.snapshotFailed(err, "resolve")
	}

	ids := []string{project.ManagerID, project.DirectorID}
	if projClient != nil {
		ids = append(ids, projClient.OwnerID)
	}
	people, err := s.directory.LookupPeople(ctx, nonEmpty(ids))
	if err != nil {
		return nil, s.snapshotFailed(err, "directory")
	}

	result := &ResolveResult{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Approval:    policy.Resolve(amount, *project, projClient, globalRules, policy.Directory(people)),
	}
	if projClient != nil {
		result.ClientName = projClient.Name
	}
	return result, nil
}

// PreviewRule builds the report that would result from upserting req without
// persisting anything.
func (s *ApprovalPolicyService) PreviewRule(ctx context.Context, req *UpsertRuleRequest) (*policy.Report, error) {
	rule, err := req.Rule()
	if err != nil {
		return nil, err
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	next, ok := snap.WithRule(rule)
	if !ok {
		return nil, errors.NotFound("project", rule.Scope.ProjectID)
	}
	report := policy.BuildReport(next)
	return &report, nil
}

func nonEmpty(ids []string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// ── Rule administration ──────────────────────────────────────────────────────

// ListRules returns global rules, or one project's rules when projectID is set.
func (s *ApprovalPolicyService) ListRules(ctx context.Context, projectID string) ([]policy.ApprovalRule, error) {
	if projectID == "" {
		return s.rules.ListGlobalRules(ctx)
	}
	if _, err := s.projects.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.rules.ListProjectRules(ctx, projectID)
}

// UpsertRule creates or updates the rule keyed on (scope, min, max).
func (s *ApprovalPolicyService) UpsertRule(ctx context.Context, req *UpsertRuleRequest, performedBy string) (*policy.ApprovalRule, error) {
	parsed, err := req.Rule()
	if err != nil {
		return nil, err
	}

	rule, err := s.rules.UpsertRule(ctx, parsed.Scope, parsed.MinAmount, parsed.MaxAmount, parsed.Role)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("rule_id", rule.ID).
		Str("scope", rule.Scope.String()).
		Str("threshold", rule.Threshold().String()).
		Str("approver_role", rule.Role.String()).
		Msg("Approval rule upserted")

	s.recordChange(ctx, repository.AuditActionUpserted, client.EventRuleUpserted, rule, performedBy)
	return rule, nil
}

// DeleteRule removes a rule and returns what was removed.
func (s *ApprovalPolicyService) DeleteRule(ctx context.Context, id, performedBy string) (*policy.ApprovalRule, error) {
	if id == "" {
		return nil, errors.InvalidInput("id", "This field is required")
	}
	rule, err := s.rules.DeleteRule(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("rule_id", rule.ID).
		Str("scope", rule.Scope.String()).
		Msg("Approval rule deleted")

	s.recordChange(ctx, repository.AuditActionDeleted, client.EventRuleDeleted, rule, performedBy)
	return rule, nil
}

// RuleHistory returns the audit trail of one rule, oldest first.
func (s *ApprovalPolicyService) RuleHistory(ctx context.Context, ruleID string) ([]*repository.RuleAuditEntry, error) {
	if ruleID == "" {
		return nil, errors.InvalidInput("rule_id", "This field is required")
	}
	if s.audit == nil {
		return []*repository.RuleAuditEntry{}, nil
	}
	return s.audit.ListByRule(ctx, ruleID)
}

// ListProjects returns every project without rules.
func (s *ApprovalPolicyService) ListProjects(ctx context.Context) ([]policy.Project, error) {
	return s.projects.ListProjects(ctx)
}

// recordChange writes the audit entry and publishes the event. Neither can
// fail the mutation that already happened.
func (s *ApprovalPolicyService) recordChange(ctx context.Context, action, eventType string, rule *policy.ApprovalRule, performedBy string) {
	if s.audit != nil {
		entry := &repository.RuleAuditEntry{
			RuleID:      rule.ID,
			Action:      action,
			PerformedBy: performedBy,
			Metadata: map[string]any{
				"scope":         rule.Scope.String(),
				"threshold":     rule.Threshold().String(),
				"approver_role": rule.Role.String(),
			},
		}
		if !rule.Scope.IsGlobal() {
			pid := rule.Scope.ProjectID
			entry.ProjectID = &pid
		}
		if err := s.audit.Append(ctx, entry); err != nil {
			s.log.Warn().Err(err).
				Str("rule_id", rule.ID).
				Str("action", action).
				Msg("Failed to write audit log entry")
		}
	}
	if s.events != nil {
		s.events.PublishRuleEvent(ctx, eventType, rule, performedBy)
	}
}
