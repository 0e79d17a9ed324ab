package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/agentmall/gateway/internal/domain"
	pfirestore "github.com/agentmall/gateway/internal/platform/firestore"
	"github.com/agentmall/gateway/internal/repositories"
)

const auditLogCollection = "audit_logs"

// AuditLogRepository appends audit records to Firestore.
type AuditLogRepository struct {
	base *pfirestore.BaseRepository[auditDocument]
}

// NewAuditLogRepository constructs a Firestore-backed audit log repository.
func NewAuditLogRepository(provider *pfirestore.Provider) (*AuditLogRepository, error) {
	if provider == nil {
		return nil, errors.New("audit log repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[auditDocument](provider, auditLogCollection, nil, nil)
	return &AuditLogRepository{base: base}, nil
}

// Append writes the audit record keyed by its ID.
func (r *AuditLogRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	if r == nil || r.base == nil {
		return errors.New("audit log repository not initialised")
	}
	id := strings.TrimSpace(record.ID)
	if id == "" {
		return errors.New("audit log repository: record id is required")
	}

	_, err := r.base.Set(ctx, id, auditDocument{
		RequestID: strings.TrimSpace(record.RequestID),
		ActorType: string(record.Actor.Type),
		ActorID:   strings.TrimSpace(record.Actor.ID),
		Route:     record.Route,
		Outcome:   record.Outcome,
		ErrorCode: record.ErrorCode,
		Duplicate: record.Duplicate,
		DryRun:    record.DryRun,
		LatencyMS: record.LatencyMS,
		CreatedAt: record.CreatedAt.UTC(),
	})
	return err
}

// ListByRequestID returns every audit entry recorded for the request.
func (r *AuditLogRepository) ListByRequestID(ctx context.Context, requestID string) ([]domain.AuditRecord, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("audit log repository not initialised")
	}
	rid := strings.TrimSpace(requestID)
	if rid == "" {
		return nil, errors.New("audit log repository: request id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("request_id", "==", rid).OrderBy("created_at", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	records := make([]domain.AuditRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, domain.AuditRecord{
			ID:        doc.ID,
			RequestID: doc.Data.RequestID,
			Actor: domain.Actor{
				Type: domain.ActorType(doc.Data.ActorType),
				ID:   doc.Data.ActorID,
			},
			Route:     doc.Data.Route,
			Outcome:   doc.Data.Outcome,
			ErrorCode: doc.Data.ErrorCode,
			Duplicate: doc.Data.Duplicate,
			DryRun:    doc.Data.DryRun,
			LatencyMS: doc.Data.LatencyMS,
			CreatedAt: doc.Data.CreatedAt,
		})
	}
	return records, nil
}

type auditDocument struct {
	RequestID string    `firestore:"request_id"`
	ActorType string    `firestore:"actor_type"`
	ActorID   string    `firestore:"actor_id"`
	Route     string    `firestore:"route"`
	Outcome   string    `firestore:"outcome"`
	ErrorCode string    `firestore:"error_code,omitempty"`
	Duplicate bool      `firestore:"duplicate"`
	DryRun    bool      `firestore:"dry_run"`
	LatencyMS int64     `firestore:"latency_ms"`
	CreatedAt time.Time `firestore:"created_at"`
}

var _ repositories.AuditLogRepository = (*AuditLogRepository)(nil)
