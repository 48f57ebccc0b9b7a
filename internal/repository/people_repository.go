package repository

import (
	"context"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/errors"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/policy"
)

// PeopleRepository is the database-backed directory.
type PeopleRepository struct {
	db DBTX
}

// NewPeopleRepository creates a new PeopleRepository.
func NewPeopleRepository(db DBTX) *PeopleRepository {
	return &PeopleRepository{db: db}
}

// LookupPeople returns the people with the given ids. Unknown ids are absent
// from the result.
func (r *PeopleRepository) LookupPeople(ctx context.Context, ids []string) (map[string]policy.Person, error) {
	people := make(map[string]policy.Person, len(ids))
	if len(ids) == 0 {
		return people, nil
	}

	query := `
		SELECT id, first_name, last_name, email
		FROM people
		WHERE id = ANY($1)
	`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to look up people")
	}
	defer rows.Close()

	for rows.Next() {
		var p policy.Person
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan person")
		}
		people[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read people")
	}
	return people, nil
}
