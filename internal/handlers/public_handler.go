package handlers

import (
	"net/http"
	"strings"

	"familytree/internal/models"
	"familytree/internal/service"
)

// PublicHandler serves the unauthenticated read and submission endpoints
type PublicHandler struct {
	memberService  *service.MemberService
	pendingService *service.PendingService
	flagService    *service.FeatureFlagService
}

// NewPublicHandler creates a new public handler
func NewPublicHandler(memberService *service.MemberService, pendingService *service.PendingService, flagService *service.FeatureFlagService) *PublicHandler {
	return &PublicHandler{
		memberService:  memberService,
		pendingService: pendingService,
		flagService:    flagService,
	}
}

// publicMember strips contact details and audit fields
func publicMember(m *models.Member) *models.Member {
	out := *m
	out.Phone = ""
	out.Email = ""
	out.Notes = ""
	out.CreatedBy = ""
	out.UpdatedBy = ""
	return &out
}

func redactTree(nodes []*models.TreeNode) {
	for _, node := range nodes {
		node.Member = publicMember(node.Member)
		redactTree(node.Children)
	}
}

// Tree returns the whole tree, or the subtree under ?root=
func (h *PublicHandler) Tree(w http.ResponseWriter, r *http.Request) {
	if err := h.flagService.Require(models.FlagPublicTree); err != nil {
		respondWithError(w, r, err)
		return
	}
	depth, err := queryInt(r, "depth", 0)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	tree, err := h.memberService.Tree(strings.TrimSpace(r.URL.Query().Get("root")), depth)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	redactTree(tree)
	respondJSON(w, http.StatusOK, tree)
}

// Member returns one member without private fields
func (h *PublicHandler) Member(w http.ResponseWriter, r *http.Request) {
	if err := h.flagService.Require(models.FlagPublicTree); err != nil {
		respondWithError(w, r, err)
		return
	}

	member, err := h.memberService.Get(r.PathValue("id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, publicMember(member))
}

// Submit queues a proposed member for admin review
func (h *PublicHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req service.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	p, err := h.pendingService.Submit(r.Context(), req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":     p.ID,
		"status": p.Status,
	})
}
