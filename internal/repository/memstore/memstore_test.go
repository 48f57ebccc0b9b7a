package memstore

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/errors"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/policy"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/repository"
)

var upTo999 = decimal.NewNullDecimal(decimal.NewFromInt(999))

func TestUpsertRuleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, err := s.UpsertRule(ctx, policy.GlobalScope(), decimal.Zero, upTo999, policy.RoleManager)
	require.NoError(t, err)
	second, err := s.UpsertRule(ctx, policy.GlobalScope(), decimal.Zero, upTo999, policy.RoleManager)
	require.NoError(t, err)

	rules, err := s.ListGlobalRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, policy.RoleManager, rules[0].Role)
}

func TestUpsertRuleUpdatesRoleInPlace(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, _ := s.UpsertRule(ctx, policy.GlobalScope(), decimal.Zero, upTo999, policy.RoleManager)
	_, _ = s.UpsertRule(ctx, policy.GlobalScope(), decimal.NewFromInt(1000), decimal.NullDecimal{}, policy.RoleClientOwner)
	updated, err := s.UpsertRule(ctx, policy.GlobalScope(), decimal.RequireFromString("0.00"), decimal.NewNullDecimal(decimal.RequireFromString("999.00")), policy.RoleDirector)
	require.NoError(t, err)

	rules, _ := s.ListGlobalRules(ctx)
	require.Len(t, rules, 2)
	assert.Equal(t, a.ID, updated.ID)
	assert.Equal(t, a.ID, rules[0].ID)
	assert.Equal(t, policy.RoleDirector, rules[0].Role)
}

func TestUpsertRuleBoundedAndUnboundedAreDistinctKeys(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, _ = s.UpsertRule(ctx, policy.GlobalScope(), decimal.Zero, upTo999, policy.RoleManager)
	_, _ = s.UpsertRule(ctx, policy.GlobalScope(), decimal.Zero, decimal.NullDecimal{}, policy.RoleDirector)

	rules, _ := s.ListGlobalRules(ctx)
	assert.Len(t, rules, 2)
}

func TestProjectScopedRules(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.AddProject(policy.Project{ID: "p1", Name: "One"})

	_, err := s.UpsertRule(ctx, policy.ProjectScope("p1"), decimal.Zero, upTo999, policy.RoleDirector)
	require.NoError(t, err)
	_, err = s.UpsertRule(ctx, policy.ProjectScope("nope"), decimal.Zero, upTo999, policy.RoleDirector)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))

	global, _ := s.ListGlobalRules(ctx)
	assert.Empty(t, global)
	projectRules, _ := s.ListProjectRules(ctx, "p1")
	assert.Len(t, projectRules, 1)
}

func TestDeleteRule(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, _ := s.UpsertRule(ctx, policy.GlobalScope(), decimal.Zero, upTo999, policy.RoleManager)
	b, _ := s.UpsertRule(ctx, policy.GlobalScope(), decimal.NewFromInt(1000), decimal.NullDecimal{}, policy.RoleDirector)

	deleted, err := s.DeleteRule(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, deleted.ID)

	rules, _ := s.ListGlobalRules(ctx)
	require.Len(t, rules, 1)
	assert.Equal(t, b.ID, rules[0].ID)

	_, err = s.DeleteRule(ctx, a.ID)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}

func TestConcurrentUpsertsOfOneKey(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			role := policy.Roles[i%len(policy.Roles)]
			_, err := s.UpsertRule(ctx, policy.GlobalScope(), decimal.Zero, upTo999, role)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rules, _ := s.ListGlobalRules(ctx)
	assert.Len(t, rules, 1)
}

func TestDirectoryAndClients(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.AddPerson(policy.Person{ID: "u1", FirstName: "Alex", LastName: "Kim"})
	s.AddClient(policy.Client{ID: "c1", Name: "Acme", OwnerID: "u1"})

	people, err := s.LookupPeople(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Len(t, people, 1)

	c, err := s.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "u1", c.OwnerID)

	_, err = s.GetClient(ctx, "c2")
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Append(ctx, &repository.RuleAuditEntry{RuleID: "r1", Action: repository.AuditActionUpserted}))
	require.NoError(t, s.Append(ctx, &repository.RuleAuditEntry{RuleID: "r2", Action: repository.AuditActionUpserted}))
	require.NoError(t, s.Append(ctx, &repository.RuleAuditEntry{RuleID: "r1", Action: repository.AuditActionDeleted}))

	entries, err := s.ListByRule(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, repository.AuditActionDeleted, entries[1].Action)
	assert.NotEmpty(t, entries[0].ID)
}
