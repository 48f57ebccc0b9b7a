package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/logger"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/policy"
)

// Rule event types.
const (
	EventRuleUpserted = "rule_upserted"
	EventRuleDeleted  = "rule_deleted"
)

// Publisher is the subset of *nats.Conn the notification publisher uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ConnectNATS dials NATS with reconnects enabled.
func ConnectNATS(url, name string, log *logger.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NotificationPublisher publishes approval rule changes so other services can
// invalidate anything derived from the rule set.
//
// Subject convention: <prefix>.<event_type>
//
// Publishing is non-fatal: failures are logged and never returned, so a
// notification outage never blocks rule administration.
type NotificationPublisher struct {
	pub    Publisher
	prefix string
	log    *logger.Logger
}

// RuleEvent is the JSON schema published to NATS.
type RuleEvent struct {
	EventType    string      `json:"event_type"`
	RuleID       string      `json:"rule_id"`
	Scope        string      `json:"scope"`
	ProjectID    string      `json:"project_id,omitempty"`
	MinAmount    string      `json:"min_amount"`
	MaxAmount    *string     `json:"max_amount"`
	ApproverRole policy.Role `json:"approver_role"`
	ActorID      string      `json:"actor_id,omitempty"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

// NewNotificationPublisher creates a publisher. A nil pub disables publishing.
func NewNotificationPublisher(pub Publisher, prefix string, log *logger.Logger) *NotificationPublisher {
	return &NotificationPublisher{pub: pub, prefix: prefix, log: log.WithComponent("notifications")}
}

// PublishRuleEvent publishes one rule change.
func (p *NotificationPublisher) PublishRuleEvent(_ context.Context, eventType string, rule *policy.ApprovalRule, actorID string) {
	if p == nil || p.pub == nil || rule == nil {
		return
	}

	event := &RuleEvent{
		EventType:    eventType,
		RuleID:       rule.ID,
		Scope:        rule.Scope.String(),
		ProjectID:    rule.Scope.ProjectID,
		MinAmount:    rule.MinAmount.String(),
		ApproverRole: rule.Role,
		ActorID:      actorID,
		OccurredAt:   time.Now().UTC(),
	}
	if rule.MaxAmount.Valid {
		s := rule.MaxAmount.Decimal.String()
		event.MaxAmount = &s
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("%s.%s", p.prefix, eventType)
	if err := p.pub.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("rule_id", rule.ID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("rule_id", rule.ID).
		Msg("notification: event published")
}
