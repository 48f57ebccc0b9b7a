package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/policy"
)

// Seed is the JSON document accepted by Load.
type Seed struct {
	People   []policy.Person  `json:"people"`
	Clients  []policy.Client  `json:"clients"`
	Projects []policy.Project `json:"projects"`
	Rules    []SeedRule       `json:"rules"`
}

// SeedRule is a rule in a seed document. An empty ProjectID is global.
type SeedRule struct {
	ProjectID    string              `json:"project_id"`
	MinAmount    decimal.Decimal     `json:"min_amount"`
	MaxAmount    decimal.NullDecimal `json:"max_amount"`
	ApproverRole policy.Role         `json:"approver_role"`
}

// Load decodes a seed document from r into the store. Rules are upserted in
// document order after every project exists.
func (s *Store) Load(ctx context.Context, r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}

	for _, p := range seed.People {
		s.AddPerson(p)
	}
	for _, c := range seed.Clients {
		s.AddClient(c)
	}
	for _, p := range seed.Projects {
		s.AddProject(p)
	}
	for i, r := range seed.Rules {
		if _, err := policy.ParseRole(string(r.ApproverRole)); err != nil {
			return fmt.Errorf("seed rule %d: %w", i, err)
		}
		if err := checkBounds(r); err != nil {
			return fmt.Errorf("seed rule %d: %w", i, err)
		}
		if _, err := s.UpsertRule(ctx, policy.ProjectScope(r.ProjectID), r.MinAmount, r.MaxAmount, r.ApproverRole); err != nil {
			return fmt.Errorf("seed rule %d: %w", i, err)
		}
	}
	return nil
}

func checkBounds(r SeedRule) error {
	if r.MinAmount.IsNegative() {
		return fmt.Errorf("min_amount %s is negative", r.MinAmount)
	}
	if !policy.Storable(r.MinAmount) {
		return fmt.Errorf("min_amount %s cannot be stored without rounding", r.MinAmount)
	}
	if r.MaxAmount.Valid && !policy.Storable(r.MaxAmount.Decimal) {
		return fmt.Errorf("max_amount %s cannot be stored without rounding", r.MaxAmount.Decimal)
	}
	return nil
}

// LoadFile is Load over the named file.
func (s *Store) LoadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return s.Load(ctx, f)
}
