package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/oklog/ulid/v2"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/repositories"
)

var (
	errEvidenceRepositoryRequired = errors.New("evidence service: evidence repository is required")
	errEvidenceDraftsRequired     = errors.New("evidence service: draft order repository is required")
)

const defaultEvidenceListLimit = 20

// ErrEvidenceInvalidInput indicates the caller supplied invalid input.
var ErrEvidenceInvalidInput = errors.New("evidence service: invalid input")

// ErrEvidenceNotFound indicates the snapshot or draft order does not exist.
var ErrEvidenceNotFound = errors.New("evidence service: not found")

// ErrEvidenceConflict indicates the snapshot is already bound or collides on ID.
var ErrEvidenceConflict = errors.New("evidence service: conflict")

// ErrEvidenceUnavailable indicates a backend failure while persisting evidence.
var ErrEvidenceUnavailable = errors.New("evidence service: unavailable")

// EvidenceServiceDeps wires the dependencies for evidence snapshots.
type EvidenceServiceDeps struct {
	Evidence    repositories.EvidenceRepository
	DraftOrders repositories.DraftOrderRepository
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type evidenceService struct {
	evidence repositories.EvidenceRepository
	drafts   repositories.DraftOrderRepository
	newID    func() string
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewEvidenceService constructs an EvidenceService enforcing dependency validation.
func NewEvidenceService(deps EvidenceServiceDeps) (EvidenceService, error) {
	if deps.Evidence == nil {
		return nil, errEvidenceRepositoryRequired
	}
	if deps.DraftOrders == nil {
		return nil, errEvidenceDraftsRequired
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

	return &evidenceService{
		evidence: deps.Evidence,
		drafts:   deps.DraftOrders,
		newID:    idGen,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

// CreateSnapshot stores an immutable evidence snapshot. The content hash
// covers the canonicalized snapshot payload including its creation time, so
// byte-identical inputs recorded at the same instant hash identically.
func (s *evidenceService) CreateSnapshot(ctx context.Context, cmd CreateSnapshotCommand) (domain.EvidenceSnapshot, error) {
	missionID := strings.TrimSpace(cmd.MissionID)
	userID := strings.TrimSpace(cmd.UserID)
	if missionID == "" || userID == "" {
		return domain.EvidenceSnapshot{}, ErrEvidenceInvalidInput
	}

	snapshot := domain.EvidenceSnapshot{
		ID:        s.newID(),
		MissionID: missionID,
		UserID:    userID,
		Context:   cmd.Context,
		ToolCalls: cmd.ToolCalls,
		Metadata:  cmd.Metadata,
		CreatedAt: s.now(),
	}

	hash, err := hashSnapshot(snapshot)
	if err != nil {
		return domain.EvidenceSnapshot{}, ErrEvidenceInvalidInput
	}
	snapshot.ContentHash = hash

	if err := s.evidence.Insert(ctx, snapshot); err != nil {
		return domain.EvidenceSnapshot{}, s.translateRepoError(err)
	}

	s.logger(ctx, "evidence.snapshot_created", map[string]any{
		"snapshot_id":  snapshot.ID,
		"mission_id":   missionID,
		"content_hash": snapshot.ContentHash,
	})
	return snapshot, nil
}

// GetSnapshot loads a snapshot by ID.
func (s *evidenceService) GetSnapshot(ctx context.Context, snapshotID string) (domain.EvidenceSnapshot, error) {
	id := strings.TrimSpace(snapshotID)
	if id == "" {
		return domain.EvidenceSnapshot{}, ErrEvidenceInvalidInput
	}
	snapshot, err := s.evidence.FindByID(ctx, id)
	if err != nil {
		return domain.EvidenceSnapshot{}, s.translateRepoError(err)
	}
	return snapshot, nil
}

// ListByMission returns the newest snapshots for a mission.
func (s *evidenceService) ListByMission(ctx context.Context, missionID string, limit int) ([]domain.EvidenceSnapshot, error) {
	id := strings.TrimSpace(missionID)
	if id == "" {
		return nil, ErrEvidenceInvalidInput
	}
	if limit <= 0 {
		limit = defaultEvidenceListLimit
	}
	snapshots, err := s.evidence.ListByMission(ctx, id, limit)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return snapshots, nil
}

// AttachToDraftOrder binds a snapshot to a draft order in both directions.
// Rebinding an already bound snapshot is a conflict.
func (s *evidenceService) AttachToDraftOrder(ctx context.Context, snapshotID, draftOrderID string) error {
	sid := strings.TrimSpace(snapshotID)
	did := strings.TrimSpace(draftOrderID)
	if sid == "" || did == "" {
		return ErrEvidenceInvalidInput
	}

	snapshot, err := s.evidence.FindByID(ctx, sid)
	if err != nil {
		return s.translateRepoError(err)
	}
	if snapshot.DraftOrderID != "" && snapshot.DraftOrderID != did {
		return ErrEvidenceConflict
	}

	if err := s.drafts.AttachEvidence(ctx, did, sid); err != nil {
		return s.translateRepoError(err)
	}

	s.logger(ctx, "evidence.snapshot_attached", map[string]any{
		"snapshot_id":    sid,
		"draft_order_id": did,
	})
	return nil
}

// hashSnapshot produces "sha256:<hex>" over the RFC 8785 canonical form of
// the snapshot payload. DraftOrderID and the hash itself are excluded so the
// hash stays stable across later binding.
func hashSnapshot(snapshot domain.EvidenceSnapshot) (string, error) {
	payload := map[string]any{
		"id":         snapshot.ID,
		"mission_id": snapshot.MissionID,
		"user_id":    snapshot.UserID,
		"context":    snapshot.Context,
		"tool_calls": toolCallsPayload(snapshot.ToolCalls),
		"metadata":   snapshot.Metadata,
		"created_at": snapshot.CreatedAt.Format(time.RFC3339Nano),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

func toolCallsPayload(calls []domain.ToolCallRecord) []map[string]any {
	out := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		out = append(out, map[string]any{
			"tool":          call.Tool,
			"request":       call.Request,
			"response":      call.Response,
			"response_hash": call.ResponseHash,
			"called_at":     call.CalledAt.UTC().Format(time.RFC3339Nano),
			"latency_ms":    call.LatencyMS,
		})
	}
	return out
}

func (s *evidenceService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrEvidenceNotFound
		case repoErr.IsConflict():
			return ErrEvidenceConflict
		case repoErr.IsUnavailable():
			return ErrEvidenceUnavailable
		}
	}
	return ErrEvidenceUnavailable
}
