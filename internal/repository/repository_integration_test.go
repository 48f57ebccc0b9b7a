//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/database"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/errors"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/policy"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("approvals_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.Migrate(dsn))

	db, err := database.Open(ctx, dsn, database.Config{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.Exec(ctx, `
		INSERT INTO people (id, first_name, last_name, email) VALUES
		    ('u1', 'Alex', 'Kim', 'alex@example.com'),
		    ('u2', 'Dana', 'Reyes', 'dana@example.com');
		INSERT INTO clients (id, name, owner_id) VALUES ('c1', 'Acme', 'u2'), ('c2', 'Globex', NULL);
		INSERT INTO projects (id, name, client_id, manager_id, director_id) VALUES
		    ('p1', 'Website Redesign', 'c1', 'u1', 'u2'),
		    ('p2', 'Data Migration', 'c2', 'u1', NULL);
		INSERT INTO project_members (project_id, person_id) VALUES ('p1', 'u2'), ('p1', 'u1');
	`)
	require.NoError(t, err)
	return db
}

func TestRepositories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rules := NewApprovalRulesRepository(db)
	projects := NewProjectRepository(db)
	people := NewPeopleRepository(db)
	audit := NewApprovalAuditRepository(db)

	t.Run("upsert is idempotent on scope and range", func(t *testing.T) {
		max := decimal.NewNullDecimal(decimal.RequireFromString("999"))
		first, err := rules.UpsertRule(ctx, policy.GlobalScope(), decimal.Zero, max, policy.RoleManager)
		require.NoError(t, err)
		second, err := rules.UpsertRule(ctx, policy.GlobalScope(), decimal.RequireFromString("0.00"), max, policy.RoleManager)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		global, err := rules.ListGlobalRules(ctx)
		require.NoError(t, err)
		require.Len(t, global, 1)
		assert.Equal(t, policy.RoleManager, global[0].Role)
	})

	t.Run("upsert replaces role and keeps order", func(t *testing.T) {
		_, err := rules.UpsertRule(ctx, policy.GlobalScope(), decimal.RequireFromString("1000"), decimal.NullDecimal{}, policy.RoleClientOwner)
		require.NoError(t, err)
		_, err = rules.UpsertRule(ctx, policy.GlobalScope(), decimal.Zero, decimal.NewNullDecimal(decimal.RequireFromString("999")), policy.RoleDirector)
		require.NoError(t, err)

		global, err := rules.ListGlobalRules(ctx)
		require.NoError(t, err)
		require.Len(t, global, 2)
		assert.Equal(t, policy.RoleDirector, global[0].Role)
		assert.False(t, global[1].MaxAmount.Valid)

		again, err := rules.UpsertRule(ctx, policy.GlobalScope(), decimal.RequireFromString("1000"), decimal.NullDecimal{}, policy.RoleManager)
		require.NoError(t, err)
		assert.Equal(t, global[1].ID, again.ID)
	})

	t.Run("project rules are scoped", func(t *testing.T) {
		rule, err := rules.UpsertRule(ctx, policy.ProjectScope("p1"), decimal.Zero, decimal.NewNullDecimal(decimal.RequireFromString("999")), policy.RoleDirector)
		require.NoError(t, err)
		assert.Equal(t, "p1", rule.Scope.ProjectID)

		p1Rules, err := rules.ListProjectRules(ctx, "p1")
		require.NoError(t, err)
		assert.Len(t, p1Rules, 1)
		p2Rules, err := rules.ListProjectRules(ctx, "p2")
		require.NoError(t, err)
		assert.Empty(t, p2Rules)
	})

	t.Run("upsert for unknown project is not found", func(t *testing.T) {
		_, err := rules.UpsertRule(ctx, policy.ProjectScope("ghost"), decimal.Zero, decimal.NullDecimal{}, policy.RoleManager)
		assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
	})

	t.Run("concurrent upserts of one key leave one rule", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := rules.UpsertRule(ctx, policy.ProjectScope("p2"), decimal.RequireFromString("50"), decimal.NullDecimal{}, policy.RoleManager)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		p2Rules, err := rules.ListProjectRules(ctx, "p2")
		require.NoError(t, err)
		assert.Len(t, p2Rules, 1)
	})

	t.Run("delete", func(t *testing.T) {
		p2Rules, err := rules.ListProjectRules(ctx, "p2")
		require.NoError(t, err)
		require.NotEmpty(t, p2Rules)

		deleted, err := rules.DeleteRule(ctx, p2Rules[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "p2", deleted.Scope.ProjectID)

		_, err = rules.DeleteRule(ctx, p2Rules[0].ID)
		assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
		_, err = rules.DeleteRule(ctx, "not-a-uuid")
		assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
	})

	t.Run("projects and clients", func(t *testing.T) {
		list, err := projects.ListProjects(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Data Migration", list[0].Name)
		assert.Empty(t, list[0].DirectorID)
		assert.Equal(t, []string{"u1", "u2"}, list[1].TeamMemberIDs)

		client, err := projects.GetClient(ctx, "c2")
		require.NoError(t, err)
		assert.Empty(t, client.OwnerID)

		_, err = projects.GetClient(ctx, "missing")
		assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))

		p, err := projects.GetProject(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "c1", p.ClientID)
	})

	t.Run("people lookup", func(t *testing.T) {
		found, err := people.LookupPeople(ctx, []string{"u1", "ghost"})
		require.NoError(t, err)
		assert.Len(t, found, 1)
		assert.Equal(t, "Alex Kim", found["u1"].FullName())
	})

	t.Run("audit trail", func(t *testing.T) {
		global, err := rules.ListGlobalRules(ctx)
		require.NoError(t, err)
		ruleID := global[0].ID

		require.NoError(t, audit.Append(ctx, &RuleAuditEntry{RuleID: ruleID, Action: AuditActionUpserted, PerformedBy: "admin", Metadata: map[string]any{"approver_role": "director"}}))
		require.NoError(t, audit.Append(ctx, &RuleAuditEntry{RuleID: ruleID, Action: AuditActionDeleted, PerformedBy: "admin"}))

		entries, err := audit.ListByRule(ctx, ruleID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, AuditActionUpserted, entries[0].Action)
		assert.Equal(t, "director", entries[0].Metadata["approver_role"])
	})
}
