// Package policy resolves which person must approve spend at a given amount
// for a project. It is a pure computation over a Snapshot of rules, projects,
// clients and directory entries; nothing here performs I/O.
package policy

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Role is the abstract kind of person an approval rule designates.
type Role string

const (
	RoleManager     Role = "manager"
	RoleDirector    Role = "director"
	RoleClientOwner Role = "client_owner"
)

// Roles lists every recognized role in display order.
var Roles = []Role{RoleManager, RoleDirector, RoleClientOwner}

// ParseRole converts a wire value to a Role. Unrecognized values are rejected.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleManager, RoleDirector, RoleClientOwner:
		return Role(s), nil
	}
	return "", fmt.Errorf("unrecognized approver role %q", s)
}

func (r Role) String() string {
	return string(r)
}

// Label is the human-readable role name.
func (r Role) Label() string {
	switch r {
	case RoleManager:
		return "Manager"
	case RoleDirector:
		return "Director"
	case RoleClientOwner:
		return "Client Owner"
	}
	return string(r)
}

func (r Role) MarshalText() ([]byte, error) {
	if _, err := ParseRole(string(r)); err != nil {
		return nil, err
	}
	return []byte(r), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Scope says whether a rule applies to every project or overrides for one.
// The zero value is the global scope.
type Scope struct {
	ProjectID string
}

// GlobalScope returns the scope shared by all projects.
func GlobalScope() Scope {
	return Scope{}
}

// ProjectScope returns the scope of rules that override globals for one project.
func ProjectScope(projectID string) Scope {
	return Scope{ProjectID: projectID}
}

func (s Scope) IsGlobal() bool {
	return s.ProjectID == ""
}

func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return "project:" + s.ProjectID
}

// Threshold is an inclusive amount range. An invalid Max means unbounded above.
type Threshold struct {
	Min decimal.Decimal
	Max decimal.NullDecimal
}

// Contains reports whether amount lies within the range.
func (t Threshold) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(t.Min) {
		return false
	}
	return !t.Max.Valid || amount.LessThanOrEqual(t.Max.Decimal)
}

// SameRange reports whether two thresholds have numerically equal bounds.
func (t Threshold) SameRange(other Threshold) bool {
	if !t.Min.Equal(other.Min) || t.Max.Valid != other.Max.Valid {
		return false
	}
	return !t.Max.Valid || t.Max.Decimal.Equal(other.Max.Decimal)
}

func (t Threshold) String() string {
	if !t.Max.Valid {
		return t.Min.String() + "+"
	}
	return t.Min.String() + "-" + t.Max.Decimal.String()
}

// AmountScale is the number of fractional digits rule bounds are stored with.
const AmountScale = 2

// amountLimit is the exclusive magnitude bound of a stored rule amount.
var amountLimit = decimal.New(1, 16)

// Storable reports whether d is a rule bound that persists without rounding:
// at most AmountScale fractional digits and at most 16 integer digits.
func Storable(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountScale)) && d.Abs().LessThan(amountLimit)
}

// ApprovalRule maps an amount range within a scope to an approver role.
type ApprovalRule struct {
	ID        string
	Scope     Scope
	MinAmount decimal.Decimal
	MaxAmount decimal.NullDecimal
	Role      Role
}

// Threshold returns the rule's range.
func (r ApprovalRule) Threshold() Threshold {
	return Threshold{Min: r.MinAmount, Max: r.MaxAmount}
}

type approvalRuleJSON struct {
	ID           string              `json:"id"`
	Scope        string              `json:"scope"`
	ProjectID    *string             `json:"project_id"`
	MinAmount    decimal.Decimal     `json:"min_amount"`
	MaxAmount    decimal.NullDecimal `json:"max_amount"`
	ApproverRole Role                `json:"approver_role"`
}

func (r ApprovalRule) MarshalJSON() ([]byte, error) {
	out := approvalRuleJSON{
		ID:           r.ID,
		Scope:        "global",
		MinAmount:    r.MinAmount,
		MaxAmount:    r.MaxAmount,
		ApproverRole: r.Role,
	}
	if !r.Scope.IsGlobal() {
		id := r.Scope.ProjectID
		out.Scope = "project"
		out.ProjectID = &id
	}
	return json.Marshal(out)
}

// Matches reports whether amount >= min and, when bounded, amount <= max.
func (r ApprovalRule) Matches(amount decimal.Decimal) bool {
	return r.Threshold().Contains(amount)
}

// Project is a unit of spend owned by a client.
type Project struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	ClientID      string         `json:"client_id"`
	ManagerID     string         `json:"manager_id"`
	DirectorID    string         `json:"director_id"`
	TeamMemberIDs []string       `json:"team_member_ids"`
	Rules         []ApprovalRule `json:"rules,omitempty"`
}

// Client owns projects.
type Client struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

// Person is a directory entry.
type Person struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// FullName joins first and last name, tolerating either being empty.
func (p Person) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Directory is a read-only snapshot of people keyed by id.
type Directory map[string]Person

// Lookup returns the person with the given id. Empty ids never match.
func (d Directory) Lookup(id string) (Person, bool) {
	if id == "" {
		return Person{}, false
	}
	p, ok := d[id]
	return p, ok
}
