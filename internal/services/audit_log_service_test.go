package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/agentmall/gateway/internal/domain"
)

type stubAuditPublisher struct {
	published []domain.AuditRecord
	err       error
}

func (s *stubAuditPublisher) Publish(_ context.Context, record domain.AuditRecord) error {
	s.published = append(s.published, record)
	return s.err
}

func TestAuditServiceRecordFillsDefaults(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var appended domain.AuditRecord
	service, err := NewAuditService(AuditServiceDeps{
		AuditLogs: &stubAuditLogRepository{
			appendFunc: func(_ context.Context, record domain.AuditRecord) error {
				appended = record
				return nil
			},
		},
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "audit-1" },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing audit service: %v", err)
	}

	service.Record(context.Background(), domain.AuditRecord{
		RequestID: "req-1",
		Route:     "/tools/cart/create",
		Outcome:   "ok",
	})
	if appended.ID != "audit-1" {
		t.Fatalf("expected generated id, got %q", appended.ID)
	}
	if !appended.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at defaulted to clock, got %v", appended.CreatedAt)
	}
}

func TestAuditServiceSwallowsFailures(t *testing.T) {
	logged := 0
	publisher := &stubAuditPublisher{err: errors.New("broker down")}
	service, err := NewAuditService(AuditServiceDeps{
		AuditLogs: &stubAuditLogRepository{
			appendFunc: func(context.Context, domain.AuditRecord) error {
				return errors.New("storage down")
			},
		},
		Publisher: publisher,
		Logger: func(context.Context, string, map[string]any) {
			logged++
		},
	})
	if err != nil {
		t.Fatalf("unexpected error constructing audit service: %v", err)
	}

	service.Record(context.Background(), domain.AuditRecord{RequestID: "req-1"})
	if logged != 2 {
		t.Fatalf("expected both failures logged, got %d log calls", logged)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected publish attempted despite append failure")
	}
}
