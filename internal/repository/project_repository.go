package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/errors"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/policy"
)

const projectSelect = `
	SELECT p.id, p.name,
	       COALESCE(p.client_id, ''), COALESCE(p.manager_id, ''), COALESCE(p.director_id, ''),
	       COALESCE(array_agg(m.person_id ORDER BY m.person_id) FILTER (WHERE m.person_id IS NOT NULL), '{}')
	FROM projects p
	LEFT JOIN project_members m ON m.project_id = p.id
`

// ProjectRepository reads projects and their clients.
type ProjectRepository struct {
	db DBTX
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db DBTX) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// ListProjects returns every project ordered by name. Rules are not loaded.
func (r *ProjectRepository) ListProjects(ctx context.Context) ([]policy.Project, error) {
	query := projectSelect + `
		GROUP BY p.id
		ORDER BY p.name ASC, p.id ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list projects")
	}
	defer rows.Close()

	var projects []policy.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan project")
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read projects")
	}
	return projects, nil
}

// GetProject retrieves one project by id.
func (r *ProjectRepository) GetProject(ctx context.Context, id string) (*policy.Project, error) {
	query := projectSelect + `
		WHERE p.id = $1
		GROUP BY p.id
	`

	p, err := scanProject(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("project", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get project")
	}
	return p, nil
}

// GetClient retrieves one client by id.
func (r *ProjectRepository) GetClient(ctx context.Context, id string) (*policy.Client, error) {
	query := `SELECT id, name, COALESCE(owner_id, '') FROM clients WHERE id = $1`

	c := &policy.Client{}
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.OwnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("client", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get client")
	}
	return c, nil
}

func scanProject(row rowScanner) (*policy.Project, error) {
	p := &policy.Project{}
	if err := row.Scan(&p.ID, &p.Name, &p.ClientID, &p.ManagerID, &p.DirectorID, &p.TeamMemberIDs); err != nil {
		return nil, err
	}
	return p, nil
}
