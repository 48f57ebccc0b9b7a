// Package memstore is an in-process implementation of the rule store,
// project repository, directory and audit log. It backs DB_DRIVER=memory and
// the service tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/errors"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/policy"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/repository"
)

// Store is safe for concurrent use. Every read returns copies.
type Store struct {
	mu       sync.RWMutex
	rules    []policy.ApprovalRule
	projects []policy.Project
	clients  map[string]policy.Client
	people   map[string]policy.Person
	audit    []repository.RuleAuditEntry
	now      func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		clients: make(map[string]policy.Client),
		people:  make(map[string]policy.Person),
		now:     time.Now,
	}
}

// AddPerson inserts or replaces a directory entry.
func (s *Store) AddPerson(p policy.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people[p.ID] = p
}

// AddClient inserts or replaces a client.
func (s *Store) AddClient(c policy.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}

// AddProject inserts or replaces a project. Any Rules on p are ignored; use
// UpsertRule with a project scope instead.
func (s *Store) AddProject(p policy.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Rules = nil
	p.TeamMemberIDs = append([]string(nil), p.TeamMemberIDs...)
	for i := range s.projects {
		if s.projects[i].ID == p.ID {
			s.projects[i] = p
			return
		}
	}
	s.projects = append(s.projects, p)
}

// ListGlobalRules returns global rules in insertion order.
func (s *Store) ListGlobalRules(_ context.Context) ([]policy.ApprovalRule, error) {
	return s.rulesFor(policy.GlobalScope()), nil
}

// ListProjectRules returns one project's rules in insertion order.
func (s *Store) ListProjectRules(_ context.Context, projectID string) ([]policy.ApprovalRule, error) {
	return s.rulesFor(policy.ProjectScope(projectID)), nil
}

func (s *Store) rulesFor(scope policy.Scope) []policy.ApprovalRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []policy.ApprovalRule
	for _, r := range s.rules {
		if r.Scope == scope {
			out = append(out, r)
		}
	}
	return out
}

// UpsertRule creates or updates the rule keyed on (scope, min, max). An
// updated rule keeps its position in iteration order.
func (s *Store) UpsertRule(
	_ context.Context,
	scope policy.Scope,
	minAmount decimal.Decimal,
	maxAmount decimal.NullDecimal,
	role policy.Role,
) (*policy.ApprovalRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !scope.IsGlobal() && !s.hasProject(scope.ProjectID) {
		return nil, errors.NotFound("project", scope.ProjectID)
	}

	key := policy.Threshold{Min: minAmount, Max: maxAmount}
	for i := range s.rules {
		if s.rules[i].Scope == scope && s.rules[i].Threshold().SameRange(key) {
			s.rules[i].Role = role
			r := s.rules[i]
			return &r, nil
		}
	}

	r := policy.ApprovalRule{
		ID:        uuid.NewString(),
		Scope:     scope,
		MinAmount: minAmount,
		MaxAmount: maxAmount,
		Role:      role,
	}
	s.rules = append(s.rules, r)
	return &r, nil
}

// DeleteRule removes a rule by id.
func (s *Store) DeleteRule(_ context.Context, id string) (*policy.ApprovalRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if r.ID == id {
			s.rules = append(s.rules[:i:i], s.rules[i+1:]...)
			return &r, nil
		}
	}
	return nil, errors.NotFound("approval_rule", id)
}

// GetByID retrieves a rule by id.
func (s *Store) GetByID(_ context.Context, id string) (*policy.ApprovalRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rules {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, errors.NotFound("approval_rule", id)
}

// ListProjects returns projects in insertion order without rules.
func (s *Store) ListProjects(_ context.Context) ([]policy.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]policy.Project, len(s.projects))
	for i, p := range s.projects {
		p.TeamMemberIDs = append([]string(nil), p.TeamMemberIDs...)
		out[i] = p
	}
	return out, nil
}

// GetProject retrieves a project by id.
func (s *Store) GetProject(_ context.Context, id string) (*policy.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.projects {
		if p.ID == id {
			p.TeamMemberIDs = append([]string(nil), p.TeamMemberIDs...)
			return &p, nil
		}
	}
	return nil, errors.NotFound("project", id)
}

// GetClient retrieves a client by id.
func (s *Store) GetClient(_ context.Context, id string) (*policy.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[id]
	if !ok {
		return nil, errors.NotFound("client", id)
	}
	return &c, nil
}

// LookupPeople returns the known people among ids.
func (s *Store) LookupPeople(_ context.Context, ids []string) (map[string]policy.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]policy.Person, len(ids))
	for _, id := range ids {
		if p, ok := s.people[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// Append records an audit entry.
func (s *Store) Append(_ context.Context, entry *repository.RuleAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = uuid.NewString()
	entry.PerformedAt = s.now().UTC()
	s.audit = append(s.audit, *entry)
	return nil
}

// ListByRule returns a rule's audit trail, oldest first.
func (s *Store) ListByRule(_ context.Context, ruleID string) ([]*repository.RuleAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*repository.RuleAuditEntry
	for _, e := range s.audit {
		if e.RuleID == ruleID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (s *Store) hasProject(id string) bool {
	for _, p := range s.projects {
		if p.ID == id {
			return true
		}
	}
	return false
}
