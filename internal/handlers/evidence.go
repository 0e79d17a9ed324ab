package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/agentmall/gateway/internal/domain"
	"github.com/agentmall/gateway/internal/platform/envelope"
	"github.com/agentmall/gateway/internal/services"
)

// EvidenceHandlers exposes the evidence tool endpoints.
type EvidenceHandlers struct {
	evidence services.EvidenceService
}

// NewEvidenceHandlers constructs handlers over the evidence service.
func NewEvidenceHandlers(evidence services.EvidenceService) *EvidenceHandlers {
	return &EvidenceHandlers{evidence: evidence}
}

// Routes wires the /tools/evidence endpoints onto the provided router.
func (h *EvidenceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/create_snapshot", h.createSnapshot)
	r.Post("/attach_to_draft_order", h.attachToDraftOrder)
	r.Post("/get_snapshot", h.getSnapshot)
	r.Post("/list_by_mission", h.listByMission)
}

type toolCallParams struct {
	Tool         string         `json:"tool"`
	Request      map[string]any `json:"request,omitempty"`
	Response     map[string]any `json:"response,omitempty"`
	ResponseHash string         `json:"response_hash,omitempty"`
	CalledAt     time.Time      `json:"called_at"`
	LatencyMS    int64          `json:"latency_ms,omitempty"`
}

type createSnapshotParams struct {
	MissionID string           `json:"mission_id"`
	Context   map[string]any   `json:"context,omitempty"`
	ToolCalls []toolCallParams `json:"tool_calls,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

func (h *EvidenceHandlers) createSnapshot(w http.ResponseWriter, r *http.Request) {
	env, ok := envelope.FromContext(r.Context())
	if !ok {
		envelope.WriteError(w, r, envelope.CodeInternalError, "request envelope missing", nil)
		return
	}
	var params createSnapshotParams
	if err := decodeParams(r, &params); err != nil {
		writeInvalidParams(w, r, err)
		return
	}

	calls := make([]domain.ToolCallRecord, 0, len(params.ToolCalls))
	for _, call := range params.ToolCalls {
		calls = append(calls, domain.ToolCallRecord{
			Tool:         call.Tool,
			Request:      call.Request,
			Response:     call.Response,
			ResponseHash: call.ResponseHash,
			CalledAt:     call.CalledAt,
			LatencyMS:    call.LatencyMS,
		})
	}

	snapshot, err := h.evidence.CreateSnapshot(r.Context(), services.CreateSnapshotCommand{
		MissionID: params.MissionID,
		UserID:    env.SubjectID(),
		Context:   params.Context,
		ToolCalls: calls,
		Metadata:  params.Metadata,
	})
	if err != nil {
		writeEvidenceError(w, r, err)
		return
	}

	ref := envelope.EvidenceRef{
		SnapshotID: snapshot.ID,
		Sources: []envelope.EvidenceSource{
			{Type: "content_hash", Ref: snapshot.ContentHash},
		},
	}
	envelope.WriteSuccess(w, r, http.StatusCreated, buildSnapshotView(snapshot), envelope.WithEvidence(ref))
}

type attachParams struct {
	SnapshotID   string `json:"snapshot_id"`
	DraftOrderID string `json:"draft_order_id"`
}

func (h *EvidenceHandlers) attachToDraftOrder(w http.ResponseWriter, r *http.Request) {
	var params attachParams
	if err := decodeParams(r, &params); err != nil {
		writeInvalidParams(w, r, err)
		return
	}

	if err := h.evidence.AttachToDraftOrder(r.Context(), params.SnapshotID, params.DraftOrderID); err != nil {
		writeEvidenceError(w, r, err)
		return
	}
	envelope.WriteSuccess(w, r, http.StatusOK, map[string]any{
		"snapshot_id":    params.SnapshotID,
		"draft_order_id": params.DraftOrderID,
		"attached":       true,
	})
}

type getSnapshotParams struct {
	SnapshotID string `json:"snapshot_id"`
}

func (h *EvidenceHandlers) getSnapshot(w http.ResponseWriter, r *http.Request) {
	var params getSnapshotParams
	if err := decodeParams(r, &params); err != nil {
		writeInvalidParams(w, r, err)
		return
	}

	snapshot, err := h.evidence.GetSnapshot(r.Context(), params.SnapshotID)
	if err != nil {
		writeEvidenceError(w, r, err)
		return
	}
	envelope.WriteSuccess(w, r, http.StatusOK, buildSnapshotView(snapshot))
}

type listByMissionParams struct {
	MissionID string `json:"mission_id"`
	Limit     int    `json:"limit,omitempty"`
}

func (h *EvidenceHandlers) listByMission(w http.ResponseWriter, r *http.Request) {
	var params listByMissionParams
	if err := decodeParams(r, &params); err != nil {
		writeInvalidParams(w, r, err)
		return
	}

	snapshots, err := h.evidence.ListByMission(r.Context(), params.MissionID, params.Limit)
	if err != nil {
		writeEvidenceError(w, r, err)
		return
	}
	views := make([]snapshotView, 0, len(snapshots))
	for _, snapshot := range snapshots {
		views = append(views, buildSnapshotView(snapshot))
	}
	envelope.WriteSuccess(w, r, http.StatusOK, map[string]any{"snapshots": views})
}
