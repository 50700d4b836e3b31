package handlers

import (
	"log/slog"
	"net/http"

	"familytree/internal/models"
	"familytree/internal/service"
)

// PendingHandler serves the admin review queue for public submissions
type PendingHandler struct {
	pendingService *service.PendingService
}

// NewPendingHandler creates a new pending handler
func NewPendingHandler(pendingService *service.PendingService) *PendingHandler {
	return &PendingHandler{pendingService: pendingService}
}

func reviewStatus(r *http.Request) (models.ReviewStatus, error) {
	status := models.ReviewStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		return "", invalidParam("status")
	}
	return status, nil
}

// pendingCounts is returned alongside pending listings
type pendingCounts struct {
	listMeta
	Counts map[models.ReviewStatus]int `json:"counts"`
}

// List lists submissions, filtered by ?status=
func (h *PendingHandler) List(w http.ResponseWriter, r *http.Request) {
	status, err := reviewStatus(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	limit, offset, err := page(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	items, total, err := h.pendingService.List(status, limit, offset)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	counts, err := h.pendingService.Counts()
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Data:    items,
		Meta:    pendingCounts{listMeta: listMeta{Total: total, Limit: limit, Offset: offset}, Counts: counts},
	})
}

// Get returns one submission
func (h *PendingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	p, err := h.pendingService.Get(id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// approveRequest lets the reviewer correct the proposal before it is
// inserted
type approveRequest struct {
	Member *models.MemberInput `json:"member"`
}

type approveResponse struct {
	Pending *models.PendingMember `json:"pending"`
	Member  *models.Member        `json:"member"`
}

// Approve turns a submission into a member
func (h *PendingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	var req approveRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondWithError(w, r, err)
			return
		}
	}

	p, member, err := h.pendingService.Approve(r.Context(), id, actor(r), req.Member)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	slog.Info("Submission approved", "pending_id", id, "member_id", member.ID, "by", actor(r))
	respondJSON(w, http.StatusOK, approveResponse{Pending: p, Member: member})
}

type rejectRequest struct {
	Note string `json:"note"`
}

// Reject declines a submission with an optional note
func (h *PendingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	var req rejectRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondWithError(w, r, err)
			return
		}
	}

	p, err := h.pendingService.Reject(r.Context(), id, actor(r), req.Note)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Delete removes a submission
func (h *PendingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	if err := h.pendingService.Delete(id); err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}
