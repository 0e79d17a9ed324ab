package memory

import (
	"context"
	"errors"
	"sort"
	"strings"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/repositories"
)

type evidenceRepository struct {
	store *store
}

func (r *evidenceRepository) Insert(_ context.Context, snapshot domain.EvidenceSnapshot) error {
	id := strings.TrimSpace(snapshot.ID)
	if id == "" {
		return errors.New("evidence repository: snapshot id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.evidence[id]; exists {
		return conflictError("evidence_snapshots.insert", "snapshot already exists")
	}
	r.store.evidence[id] = cloneSnapshot(snapshot)
	return nil
}

func (r *evidenceRepository) FindByID(_ context.Context, snapshotID string) (domain.EvidenceSnapshot, error) {
	id := strings.TrimSpace(snapshotID)
	if id == "" {
		return domain.EvidenceSnapshot{}, errors.New("evidence repository: snapshot id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	snapshot, ok := r.store.evidence[id]
	if !ok {
		return domain.EvidenceSnapshot{}, notFoundError("evidence_snapshots.find", "snapshot not found")
	}
	return cloneSnapshot(snapshot), nil
}

func (r *evidenceRepository) ListByMission(_ context.Context, missionID string, limit int) ([]domain.EvidenceSnapshot, error) {
	mid := strings.TrimSpace(missionID)
	if mid == "" {
		return nil, errors.New("evidence repository: mission id is required")
	}
	if limit <= 0 {
		limit = 20
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var snapshots []domain.EvidenceSnapshot
	for _, snapshot := range r.store.evidence {
		if snapshot.MissionID == mid {
			snapshots = append(snapshots, cloneSnapshot(snapshot))
		}
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	if len(snapshots) > limit {
		snapshots = snapshots[:limit]
	}
	return snapshots, nil
}

func cloneSnapshot(snapshot domain.EvidenceSnapshot) domain.EvidenceSnapshot {
	dup := snapshot
	if snapshot.ToolCalls != nil {
		dup.ToolCalls = make([]domain.ToolCallRecord, len(snapshot.ToolCalls))
		copy(dup.ToolCalls, snapshot.ToolCalls)
	}
	return dup
}

var _ repositories.EvidenceRepository = (*evidenceRepository)(nil)
