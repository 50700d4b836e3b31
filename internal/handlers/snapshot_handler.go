package handlers

import (
	"net/http"

	"familytree/internal/service"
)

// SnapshotHandler manages point-in-time copies of the tree
type SnapshotHandler struct {
	snapshotService *service.SnapshotService
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(snapshotService *service.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{snapshotService: snapshotService}
}

// List lists snapshots without their member data
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.snapshotService.List()
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondList(w, snapshots, listMeta{Total: len(snapshots)})
}

type createSnapshotRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create takes a snapshot of the current tree
func (h *SnapshotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSnapshotRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondWithError(w, r, err)
			return
		}
	}

	snap, err := h.snapshotService.Create(req.Name, req.Description, actor(r))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	snap.Payload = nil
	respondJSON(w, http.StatusCreated, snap)
}

// Get returns a snapshot including its members
func (h *SnapshotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	snap, err := h.snapshotService.Get(id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

type restoreResponse struct {
	Restored       int64 `json:"restored"`
	SafetySnapshot any   `json:"safetySnapshot"`
}

// Restore replaces the tree with a snapshot's members
func (h *SnapshotHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	safety, err := h.snapshotService.Restore(id, actor(r))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	safety.Payload = nil
	respondJSON(w, http.StatusOK, restoreResponse{Restored: id, SafetySnapshot: safety})
}

// Delete removes a snapshot
func (h *SnapshotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	if err := h.snapshotService.Delete(id); err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}
