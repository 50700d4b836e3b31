package handlers

import (
	"net/http"
	"strings"

	"familytree/internal/models"
	"familytree/internal/service"
)

// MemberHandler serves the admin member and history endpoints
type MemberHandler struct {
	memberService  *service.MemberService
	historyService *service.HistoryService
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(memberService *service.MemberService, historyService *service.HistoryService) *MemberHandler {
	return &MemberHandler{memberService: memberService, historyService: historyService}
}

func memberFilter(r *http.Request) (models.MemberFilter, error) {
	q := r.URL.Query()
	limit, offset, err := page(r)
	if err != nil {
		return models.MemberFilter{}, err
	}
	generation, err := queryInt(r, "generation", 0)
	if err != nil {
		return models.MemberFilter{}, err
	}
	filter := models.MemberFilter{
		Branch:     strings.TrimSpace(q.Get("branch")),
		Generation: generation,
		LifeStatus: models.LifeStatus(strings.TrimSpace(q.Get("lifeStatus"))),
		ParentID:   strings.TrimSpace(q.Get("parentId")),
		Search:     strings.TrimSpace(q.Get("search")),
		Limit:      limit,
		Offset:     offset,
	}
	if filter.LifeStatus != "" && filter.LifeStatus != models.LifeStatusLiving && filter.LifeStatus != models.LifeStatusDeceased {
		return models.MemberFilter{}, invalidParam("lifeStatus")
	}
	return filter, nil
}

// ListMembers lists members matching the query filters
func (h *MemberHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	filter, err := memberFilter(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	members, total, err := h.memberService.List(filter)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondList(w, members, listMeta{Total: total, Limit: filter.Limit, Offset: filter.Offset})
}

// GetMember returns one member
func (h *MemberHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.memberService.Get(r.PathValue("id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, member)
}

// Children lists a member's direct children
func (h *MemberHandler) Children(w http.ResponseWriter, r *http.Request) {
	children, err := h.memberService.Children(r.PathValue("id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondList(w, children, listMeta{Total: len(children)})
}

// Ancestors lists a member's ancestors, nearest first
func (h *MemberHandler) Ancestors(w http.ResponseWriter, r *http.Request) {
	ancestors, err := h.memberService.Ancestors(r.PathValue("id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondList(w, ancestors, listMeta{Total: len(ancestors)})
}

// Subtree returns the descendants of a member, optionally depth limited
func (h *MemberHandler) Subtree(w http.ResponseWriter, r *http.Request) {
	depth, err := queryInt(r, "depth", 0)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	tree, err := h.memberService.Tree(r.PathValue("id"), depth)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tree)
}

// CreateMember adds a member
func (h *MemberHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var in models.MemberInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, r, err)
		return
	}

	member, err := h.memberService.Create(in, actor(r))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, member)
}

// updateMemberRequest is a full member input plus the version the client
// last read
type updateMemberRequest struct {
	models.MemberInput
	Version *int `json:"version"`
}

// UpdateMember replaces a member's editable fields. A stale version is
// rejected with 409.
func (h *MemberHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var req updateMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.Version == nil {
		respondWithError(w, r, invalidParam("version"))
		return
	}

	member, err := h.memberService.Update(r.PathValue("id"), req.MemberInput, *req.Version, actor(r))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, member)
}

// DeleteMember removes a childless member at the given version
func (h *MemberHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("version") == "" {
		respondWithError(w, r, invalidParam("version"))
		return
	}
	version, err := queryInt(r, "version", 0)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	id := r.PathValue("id")
	if err := h.memberService.Delete(id, version, actor(r)); err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// Stats summarizes the tree
func (h *MemberHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.memberService.Stats()
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// ListHistory lists history entries, newest first
func (h *MemberHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := models.HistoryFilter{
		MemberID: strings.TrimSpace(q.Get("memberId")),
		Action:   models.HistoryAction(strings.TrimSpace(q.Get("action"))),
		Actor:    strings.TrimSpace(q.Get("actor")),
		Limit:    limit,
		Offset:   offset,
	}

	entries, total, err := h.historyService.List(filter)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondList(w, entries, listMeta{Total: total, Limit: limit, Offset: offset})
}

// GetHistory returns one history entry
func (h *MemberHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	entry, err := h.historyService.Get(id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

type revertRequest struct {
	Version *int `json:"version"`
}

// RevertHistory undoes the field changes of an update entry
func (h *MemberHandler) RevertHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	var req revertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.Version == nil {
		respondWithError(w, r, invalidParam("version"))
		return
	}

	member, err := h.historyService.Revert(id, *req.Version, actor(r))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, member)
}
