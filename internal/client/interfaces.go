package client

import "context"

// PolicyClientInterface is the consumer view of ApprovalPolicyService.
type PolicyClientInterface interface {
	Resolve(ctx context.Context, projectID, amount string) (*ResolveResponse, error)
	BuildReport(ctx context.Context) (*ReportView, error)
	PreviewRule(ctx context.Context, rule RuleInput) (*ReportView, error)
}
