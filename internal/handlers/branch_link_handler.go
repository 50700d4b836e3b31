package handlers

import (
	"net/http"

	"familytree/internal/service"
)

// BranchLinkHandler manages invitation links into a branch
type BranchLinkHandler struct {
	linkService *service.BranchLinkService
}

// NewBranchLinkHandler creates a new branch link handler
func NewBranchLinkHandler(linkService *service.BranchLinkService) *BranchLinkHandler {
	return &BranchLinkHandler{linkService: linkService}
}

// List lists every link
func (h *BranchLinkHandler) List(w http.ResponseWriter, r *http.Request) {
	links, err := h.linkService.List()
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondList(w, links, listMeta{Total: len(links)})
}

// Create issues a new link
func (h *BranchLinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.BranchLinkInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, err)
		return
	}

	link, err := h.linkService.Create(in, actor(r))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, link)
}

// Deactivate stops a link from accepting submissions
func (h *BranchLinkHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	link, err := h.linkService.Deactivate(id, actor(r))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, link)
}

// Delete removes a link
func (h *BranchLinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	if err := h.linkService.Delete(id); err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

// Resolve tells an anonymous visitor where a link points
func (h *BranchLinkHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	info, err := h.linkService.Resolve(r.PathValue("token"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}
