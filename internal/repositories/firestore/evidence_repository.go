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

const evidenceCollection = "evidence_snapshots"

// EvidenceRepository persists evidence snapshots within Firestore.
type EvidenceRepository struct {
	base     *pfirestore.BaseRepository[evidenceDocument]
	provider *pfirestore.Provider
}

// NewEvidenceRepository constructs a Firestore-backed evidence repository.
func NewEvidenceRepository(provider *pfirestore.Provider) (*EvidenceRepository, error) {
	if provider == nil {
		return nil, errors.New("evidence repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[evidenceDocument](provider, evidenceCollection, nil, nil)
	return &EvidenceRepository{
		base:     base,
		provider: provider,
	}, nil
}

// Insert creates the snapshot document. Snapshots are immutable; an existing
// document with the same ID is a conflict.
func (r *EvidenceRepository) Insert(ctx context.Context, snapshot domain.EvidenceSnapshot) error {
	if r == nil || r.provider == nil {
		return errors.New("evidence repository not initialised")
	}
	id := strings.TrimSpace(snapshot.ID)
	if id == "" {
		return errors.New("evidence repository: snapshot id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection(evidenceCollection).Doc(id).Create(ctx, encodeEvidence(snapshot))
	return pfirestore.WrapError("evidence_snapshots.insert", err)
}

// FindByID loads the snapshot for the given ID.
func (r *EvidenceRepository) FindByID(ctx context.Context, snapshotID string) (domain.EvidenceSnapshot, error) {
	if r == nil || r.base == nil {
		return domain.EvidenceSnapshot{}, errors.New("evidence repository not initialised")
	}
	id := strings.TrimSpace(snapshotID)
	if id == "" {
		return domain.EvidenceSnapshot{}, errors.New("evidence repository: snapshot id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.EvidenceSnapshot{}, err
	}
	return decodeEvidence(doc.ID, doc.Data), nil
}

// ListByMission returns the newest snapshots recorded for a mission.
func (r *EvidenceRepository) ListByMission(ctx context.Context, missionID string, limit int) ([]domain.EvidenceSnapshot, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("evidence repository not initialised")
	}
	mid := strings.TrimSpace(missionID)
	if mid == "" {
		return nil, errors.New("evidence repository: mission id is required")
	}
	if limit <= 0 {
		limit = 20
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("mission_id", "==", mid).
			OrderBy("created_at", firestore.Desc).
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	snapshots := make([]domain.EvidenceSnapshot, 0, len(docs))
	for _, doc := range docs {
		snapshots = append(snapshots, decodeEvidence(doc.ID, doc.Data))
	}
	return snapshots, nil
}

func encodeEvidence(snapshot domain.EvidenceSnapshot) evidenceDocument {
	doc := evidenceDocument{
		MissionID:    strings.TrimSpace(snapshot.MissionID),
		UserID:       strings.TrimSpace(snapshot.UserID),
		DraftOrderID: strings.TrimSpace(snapshot.DraftOrderID),
		Context:      snapshot.Context,
		Metadata:     snapshot.Metadata,
		ContentHash:  snapshot.ContentHash,
		CreatedAt:    snapshot.CreatedAt.UTC(),
	}
	for _, call := range snapshot.ToolCalls {
		doc.ToolCalls = append(doc.ToolCalls, toolCallDocument{
			Tool:         call.Tool,
			Request:      call.Request,
			Response:     call.Response,
			ResponseHash: call.ResponseHash,
			CalledAt:     call.CalledAt.UTC(),
			LatencyMS:    call.LatencyMS,
		})
	}
	return doc
}

func decodeEvidence(id string, doc evidenceDocument) domain.EvidenceSnapshot {
	snapshot := domain.EvidenceSnapshot{
		ID:           id,
		MissionID:    doc.MissionID,
		UserID:       doc.UserID,
		DraftOrderID: doc.DraftOrderID,
		Context:      doc.Context,
		Metadata:     doc.Metadata,
		ContentHash:  doc.ContentHash,
		CreatedAt:    doc.CreatedAt,
	}
	for _, call := range doc.ToolCalls {
		snapshot.ToolCalls = append(snapshot.ToolCalls, domain.ToolCallRecord{
			Tool:         call.Tool,
			Request:      call.Request,
			Response:     call.Response,
			ResponseHash: call.ResponseHash,
			CalledAt:     call.CalledAt,
			LatencyMS:    call.LatencyMS,
		})
	}
	return snapshot
}

type evidenceDocument struct {
	MissionID    string             `firestore:"mission_id"`
	UserID       string             `firestore:"user_id"`
	DraftOrderID string             `firestore:"draft_order_id,omitempty"`
	Context      map[string]any     `firestore:"context,omitempty"`
	ToolCalls    []toolCallDocument `firestore:"tool_calls"`
	Metadata     map[string]any     `firestore:"metadata,omitempty"`
	ContentHash  string             `firestore:"content_hash"`
	CreatedAt    time.Time          `firestore:"created_at"`
}

type toolCallDocument struct {
	Tool         string         `firestore:"tool"`
	Request      map[string]any `firestore:"request,omitempty"`
	Response     map[string]any `firestore:"response,omitempty"`
	ResponseHash string         `firestore:"response_hash,omitempty"`
	CalledAt     time.Time      `firestore:"called_at"`
	LatencyMS    int64          `firestore:"latency_ms,omitempty"`
}

var _ repositories.EvidenceRepository = (*EvidenceRepository)(nil)
