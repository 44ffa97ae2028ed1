package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"qualitrack/core/exports"
	"qualitrack/core/nc"
	"qualitrack/core/store"
	"qualitrack/core/utils"
)

const maxPayloadBytes = 1 << 20

type NCHandler struct {
	svc    *nc.Service
	logger *utils.Logger
}

func NewNCHandler(svc *nc.Service, logger *utils.Logger) *NCHandler {
	return &NCHandler{svc: svc, logger: logger}
}

type ncPayload struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	OccurredAt     flexDate `json:"occurred_at"`
	IdentifiedBy   string   `json:"identified_by"`
	Area           string   `json:"area"`
	Classification string   `json:"classification"`
	Type           string   `json:"type"`
	Severity       string   `json:"severity"`
}

type analysisPayload struct {
	Whys        []string `json:"whys"`
	Responsible string   `json:"responsible"`
	AnalyzedAt  flexDate `json:"analyzed_at"`
}

type actionPayload struct {
	Description string   `json:"description"`
	Responsible string   `json:"responsible"`
	DueDate     flexDate `json:"due_date"`
	Resources   string   `json:"resources"`
	Evidence    string   `json:"evidence"`
	Status      string   `json:"status"`
}

type actionPatchPayload struct {
	Description *string   `json:"description"`
	Responsible *string   `json:"responsible"`
	DueDate     *flexDate `json:"due_date"`
	Resources   *string   `json:"resources"`
	Evidence    *string   `json:"evidence"`
	Status      *string   `json:"status"`
}

type verificationPayload struct {
	VerifiedAt   flexDate `json:"verified_at"`
	Responsible  string   `json:"responsible"`
	Resolved     bool     `json:"resolved"`
	Observations string   `json:"observations"`
	FinalStatus  string   `json:"final_status"`
}

func decodePayload(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return false
	}
	return true
}

// writeNCError maps workflow errors onto status codes and i18n keys.
func (h *NCHandler) writeNCError(w http.ResponseWriter, err error) {
	var verr *nc.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"code":     "nc.validation",
				"i18n_key": "nc.error.validation",
				"fields":   verr.Fields,
			},
		})
	case errors.Is(err, nc.ErrNotFound):
		http.Error(w, "nc.notFound", http.StatusNotFound)
	case errors.Is(err, nc.ErrReferential):
		http.Error(w, "nc.referentialIntegrity", http.StatusUnprocessableEntity)
	case errors.Is(err, nc.ErrTransition):
		http.Error(w, "nc.transitionViolation", http.StatusConflict)
	case errors.Is(err, store.ErrConflict):
		http.Error(w, "nc.conflictVersion", http.StatusConflict)
	default:
		if h.logger != nil {
			h.logger.Errorf("nc handler: %v", err)
		}
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func (h *NCHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.NCFilter{
		Search:   q.Get("q"),
		Status:   strings.TrimSpace(q.Get("status")),
		Severity: strings.TrimSpace(q.Get("severity")),
		Limit:    parseIntDefault(q.Get("limit"), 0),
		Offset:   parseIntDefault(q.Get("offset"), 0),
	}
	if raw := strings.TrimSpace(q.Get("status_in")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if clean := strings.TrimSpace(part); clean != "" {
				filter.StatusIn = append(filter.StatusIn, clean)
			}
		}
	}
	items, err := h.svc.ListNCs(r.Context(), filter)
	if err != nil {
		h.writeNCError(w, err)
		return
	}
	if items == nil {
		items = []store.NC{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *NCHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p ncPayload
	if !decodePayload(w, r, &p) {
		return
	}
	created, err := h.svc.CreateNC(r.Context(), nc.NewNC{
		Title:          p.Title,
		Description:    p.Description,
		OccurredAt:     p.OccurredAt.Time,
		IdentifiedBy:   p.IdentifiedBy,
		Area:           p.Area,
		Classification: p.Classification,
		Type:           p.Type,
		Severity:       p.Severity,
	})
	if err != nil {
		h.writeNCError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *NCHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetNCDetail(r.Context(), pathParams(r)["id"])
	if err != nil {
		h.writeNCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *NCHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNC(r.Context(), pathParams(r)["id"]); err != nil {
		h.writeNCError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NCHandler) AttachAnalysis(w http.ResponseWriter, r *http.Request) {
	var p analysisPayload
	if !decodePayload(w, r, &p) {
		return
	}
	an, err := h.svc.AttachAnalysis(r.Context(), pathParams(r)["id"], nc.NewAnalysis{
		Whys:        p.Whys,
		Responsible: p.Responsible,
		AnalyzedAt:  p.AnalyzedAt.Time,
	})
	if err != nil {
		h.writeNCError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, an)
}

func (h *NCHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	an, err := h.svc.GetAnalysisForNC(r.Context(), pathParams(r)["id"])
	if err != nil {
		h.writeNCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, an)
}

// AddActions accepts either {"actions": [...]} or a bare array.
func (h *NCHandler) AddActions(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if !decodePayload(w, r, &raw) {
		return
	}
	var items []actionPayload
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
	} else {
		var wrapped struct {
			Actions []actionPayload `json:"actions"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		items = wrapped.Actions
	}
	batch := make([]nc.NewAction, 0, len(items))
	for _, it := range items {
		batch = append(batch, nc.NewAction{
			Description: it.Description,
			Responsible: it.Responsible,
			DueDate:     it.DueDate.Time,
			Resources:   it.Resources,
			Evidence:    it.Evidence,
			Status:      it.Status,
		})
	}
	added, err := h.svc.AddActions(r.Context(), pathParams(r)["id"], batch)
	if err != nil {
		h.writeNCError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": added})
}

func (h *NCHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListActionsForNC(r.Context(), pathParams(r)["id"])
	if err != nil {
		h.writeNCError(w, err)
		return
	}
	if items == nil {
		items = []store.Action{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *NCHandler) ListOutstandingActions(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListOutstandingActions(r.Context(), pathParams(r)["id"])
	if err != nil {
		h.writeNCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *NCHandler) UpdateAction(w http.ResponseWriter, r *http.Request) {
	var p actionPatchPayload
	if !decodePayload(w, r, &p) {
		return
	}
	patch := nc.ActionPatch{
		Description: p.Description,
		Responsible: p.Responsible,
		Resources:   p.Resources,
		Evidence:    p.Evidence,
		Status:      p.Status,
	}
	if p.DueDate != nil {
		due := p.DueDate.Time
		patch.DueDate = &due
	}
	updated, err := h.svc.UpdateAction(r.Context(), pathParams(r)["action_id"], patch)
	if err != nil {
		h.writeNCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *NCHandler) UpdateActionStatus(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Status string `json:"status"`
	}
	if !decodePayload(w, r, &p) {
		return
	}
	updated, err := h.svc.UpdateActionStatus(r.Context(), pathParams(r)["action_id"], p.Status)
	if err != nil {
		h.writeNCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *NCHandler) AttachVerification(w http.ResponseWriter, r *http.Request) {
	var p verificationPayload
	if !decodePayload(w, r, &p) {
		return
	}
	v, err := h.svc.AttachVerification(r.Context(), pathParams(r)["id"], nc.NewVerification{
		VerifiedAt:   p.VerifiedAt.Time,
		Responsible:  p.Responsible,
		Resolved:     p.Resolved,
		Observations: p.Observations,
		FinalStatus:  p.FinalStatus,
	})
	if err != nil {
		h.writeNCError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *NCHandler) GetVerification(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.GetVerificationForNC(r.Context(), pathParams(r)["id"])
	if err != nil {
		h.writeNCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Export streams every NC detail matching the list filters as a download.
func (h *NCHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := exports.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, "nc.exportFormatInvalid", http.StatusBadRequest)
		return
	}
	filter := store.NCFilter{Status: strings.TrimSpace(r.URL.Query().Get("status"))}
	details, err := h.svc.ListNCDetails(r.Context(), filter)
	if err != nil {
		h.writeNCError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := exports.Encode(&buf, format, details); err != nil {
		h.writeNCError(w, err)
		return
	}
	w.Header().Set("Content-Type", exports.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"nc-export.%s\"", format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
