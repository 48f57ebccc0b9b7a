package client

// PersonView is a directory entry as returned by ApprovalPolicyService.
type PersonView struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// ThresholdView is a rule range. A nil Max is unbounded.
type ThresholdView struct {
	Min string  `json:"min"`
	Max *string `json:"max"`
}

// ApprovalView is one resolved amount.
type ApprovalView struct {
	Amount            string         `json:"amount"`
	Status            string         `json:"status"`
	Label             string         `json:"label"`
	Threshold         *ThresholdView `json:"threshold"`
	RuleID            *string        `json:"rule_id"`
	ApproverRole      *string        `json:"approver_role"`
	IsProjectSpecific bool           `json:"is_project_specific"`
	Approver          *PersonView    `json:"approver"`
}

// ResolveResponse answers a single (project, amount) query.
type ResolveResponse struct {
	ProjectID   string       `json:"project_id"`
	ProjectName string       `json:"project_name"`
	ClientName  string       `json:"client_name"`
	Approval    ApprovalView `json:"approval"`
}

// ProjectRowView is one row of the report matrix.
type ProjectRowView struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	ClientName string         `json:"client_name"`
	Approvals  []ApprovalView `json:"approvals"`
}

// ReportView is the full report matrix.
type ReportView struct {
	Breakpoints []string         `json:"breakpoints"`
	Projects    []ProjectRowView `json:"projects"`
}

// RuleInput is a rule as accepted by PreviewRule.
type RuleInput struct {
	ProjectID    string  `json:"project_id,omitempty"`
	MinAmount    string  `json:"min_amount"`
	MaxAmount    *string `json:"max_amount,omitempty"`
	ApproverRole string  `json:"approver_role"`
}
