package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/repositories"
)

var errAuditRepositoryRequired = errors.New("audit service: audit log repository is required")

// AuditPublisher fans audit records out to an external sink. Optional.
type AuditPublisher interface {
	Publish(ctx context.Context, record domain.AuditRecord) error
}

// AuditServiceDeps wires the dependencies for audit recording.
type AuditServiceDeps struct {
	AuditLogs   repositories.AuditLogRepository
	Publisher   AuditPublisher
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type auditService struct {
	logs      repositories.AuditLogRepository
	publisher AuditPublisher
	newID     func() string
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewAuditService constructs an AuditService enforcing dependency validation.
func NewAuditService(deps AuditServiceDeps) (AuditService, error) {
	if deps.AuditLogs == nil {
		return nil, errAuditRepositoryRequired
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &auditService{
		logs:      deps.AuditLogs,
		publisher: deps.Publisher,
		newID:     idGen,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
	}, nil
}

// Record persists one audit entry and fans it out when a publisher is
// configured. Failures are logged and swallowed so the calling request never
// fails on audit problems.
func (s *auditService) Record(ctx context.Context, record domain.AuditRecord) {
	if record.ID == "" {
		record.ID = s.newID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}

	if err := s.logs.Append(ctx, record); err != nil {
		s.logger(ctx, "audit.append_failed", map[string]any{
			"request_id": record.RequestID,
			"route":      record.Route,
			"error":      err.Error(),
		})
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, record); err != nil {
		s.logger(ctx, "audit.publish_failed", map[string]any{
			"request_id": record.RequestID,
			"route":      record.Route,
			"error":      err.Error(),
		})
	}
}

// pubsubAuditPublisher publishes audit records as JSON messages on one topic.
type pubsubAuditPublisher struct {
	topic *pubsub.Topic
}

// NewPubSubAuditPublisher wraps a Pub/Sub topic as an AuditPublisher.
func NewPubSubAuditPublisher(topic *pubsub.Topic) AuditPublisher {
	return &pubsubAuditPublisher{topic: topic}
}

func (p *pubsubAuditPublisher) Publish(ctx context.Context, record domain.AuditRecord) error {
	payload, err := json.Marshal(map[string]any{
		"id":         record.ID,
		"request_id": record.RequestID,
		"actor_type": string(record.Actor.Type),
		"actor_id":   record.Actor.ID,
		"route":      record.Route,
		"outcome":    record.Outcome,
		"error_code": record.ErrorCode,
		"duplicate":  record.Duplicate,
		"dry_run":    record.DryRun,
		"latency_ms": record.LatencyMS,
		"created_at": record.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"route": record.Route},
	})
	_, err = result.Get(ctx)
	return err
}
