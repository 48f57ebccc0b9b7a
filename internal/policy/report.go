package policy

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Status is the display state of one resolved amount.
type Status string

const (
	StatusResolved           Status = "resolved"
	StatusNoRule             Status = "no_rule"
	StatusApproverUnresolved Status = "approver_unresolved"
)

// Label texts shown for the two unresolved states.
const (
	LabelNoRule             = "No rule defined"
	LabelApproverUnresolved = "Rule matched but approver unresolved"
)

// ResolvedApproval is the outcome of evaluating one amount for one project.
type ResolvedApproval struct {
	Amount            decimal.Decimal
	Threshold         *Threshold
	Rule              *ApprovalRule
	IsProjectSpecific bool
	Approver          *Person
}

// Status distinguishes "no rule" from "rule found, approver missing".
func (r ResolvedApproval) Status() Status {
	switch {
	case r.Rule == nil:
		return StatusNoRule
	case r.Approver == nil:
		return StatusApproverUnresolved
	}
	return StatusResolved
}

// Label is the cell text for a report matrix.
func (r ResolvedApproval) Label() string {
	switch r.Status() {
	case StatusNoRule:
		return LabelNoRule
	case StatusApproverUnresolved:
		return LabelApproverUnresolved
	}
	return r.Approver.FullName()
}

type thresholdJSON struct {
	Min decimal.Decimal     `json:"min"`
	Max decimal.NullDecimal `json:"max"`
}

type personJSON struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type resolvedApprovalJSON struct {
	Amount            decimal.Decimal `json:"amount"`
	Status            Status          `json:"status"`
	Label             string          `json:"label"`
	Threshold         *thresholdJSON  `json:"threshold"`
	RuleID            *string         `json:"rule_id"`
	ApproverRole      *Role           `json:"approver_role"`
	IsProjectSpecific bool            `json:"is_project_specific"`
	Approver          *personJSON     `json:"approver"`
}

func (r ResolvedApproval) MarshalJSON() ([]byte, error) {
	out := resolvedApprovalJSON{
		Amount:            r.Amount,
		Status:            r.Status(),
		Label:             r.Label(),
		IsProjectSpecific: r.IsProjectSpecific,
	}
	if r.Threshold != nil {
		out.Threshold = &thresholdJSON{Min: r.Threshold.Min, Max: r.Threshold.Max}
	}
	if r.Rule != nil {
		id, role := r.Rule.ID, r.Rule.Role
		out.RuleID = &id
		out.ApproverRole = &role
	}
	if r.Approver != nil {
		out.Approver = &personJSON{
			ID:        r.Approver.ID,
			FirstName: r.Approver.FirstName,
			LastName:  r.Approver.LastName,
			Email:     r.Approver.Email,
		}
	}
	return json.Marshal(out)
}

// Resolve evaluates a single amount for a project. globalRules are the rules
// shared by all projects; project.Rules override them.
func Resolve(amount decimal.Decimal, project Project, client *Client, globalRules []ApprovalRule, dir Directory) ResolvedApproval {
	result := ResolvedApproval{Amount: amount}

	rule, projectSpecific := Match(amount, project.Rules, globalRules)
	if rule == nil {
		return result
	}

	threshold := rule.Threshold()
	result.Threshold = &threshold
	result.Rule = rule
	result.IsProjectSpecific = projectSpecific
	result.Approver = ResolveApprover(rule.Role, project, client, dir)
	return result
}

// ProjectApprovalRow is one row of the project × threshold matrix.
type ProjectApprovalRow struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	ClientName string             `json:"client_name"`
	Approvals  []ResolvedApproval `json:"approvals"`
}

// Report is the full matrix. Every row's Approvals is aligned with Breakpoints.
type Report struct {
	Breakpoints []decimal.Decimal    `json:"breakpoints"`
	Rows        []ProjectApprovalRow `json:"projects"`
}

// BuildReport resolves every breakpoint for every project in the snapshot.
// Rows follow the snapshot's project order.
func BuildReport(snap *Snapshot) Report {
	breakpoints := Breakpoints(snap.Projects, snap.GlobalRules)

	rows := make([]ProjectApprovalRow, 0, len(snap.Projects))
	for _, project := range snap.Projects {
		client := snap.Client(project)

		row := ProjectApprovalRow{
			ID:        project.ID,
			Name:      project.Name,
			Approvals: make([]ResolvedApproval, 0, len(breakpoints)),
		}
		if client != nil {
			row.ClientName = client.Name
		}
		for _, amount := range breakpoints {
			row.Approvals = append(row.Approvals, Resolve(amount, project, client, snap.GlobalRules, snap.Directory))
		}
		rows = append(rows, row)
	}

	if breakpoints == nil {
		breakpoints = []decimal.Decimal{}
	}
	return Report{Breakpoints: breakpoints, Rows: rows}
}
