package handlers

import (
	"net/http"

	"familytree/internal/models"
)

// Handlers bundles everything NewRouter mounts
type Handlers struct {
	Middleware  *Middleware
	Metrics     *Metrics
	Health      *HealthHandler
	Auth        *AuthHandler
	Admin       *AdminHandler
	Members     *MemberHandler
	Snapshots   *SnapshotHandler
	Pending     *PendingHandler
	BranchLinks *BranchLinkHandler
	Images      *ImageHandler
	Public      *PublicHandler
}

// NewRouter registers every route and wraps the mux in the request
// middleware chain
func NewRouter(h Handlers) http.Handler {
	m := h.Middleware
	editor := func(next http.HandlerFunc) http.HandlerFunc { return m.RequireRole(models.RoleEditor, next) }
	admin := func(next http.HandlerFunc) http.HandlerFunc { return m.RequireRole(models.RoleAdmin, next) }
	superAdmin := func(next http.HandlerFunc) http.HandlerFunc { return m.RequireRole(models.RoleSuperAdmin, next) }

	mux := http.NewServeMux()

	// Operational
	mux.HandleFunc("GET /healthz", h.Health.Health)
	mux.Handle("GET /metrics", h.Metrics.Handler())

	// Auth
	mux.HandleFunc("POST /api/auth/login", m.RateLimit(h.Auth.Login))
	mux.HandleFunc("GET /api/auth/me", m.RequireAuth(h.Auth.Me))
	mux.HandleFunc("POST /api/auth/password", m.RequireAuth(m.RateLimit(h.Auth.ChangePassword)))
	mux.HandleFunc("GET /api/auth/google/start", h.Auth.StartOAuth)
	mux.HandleFunc("GET /api/auth/google/callback", h.Auth.OAuthCallback)

	// Public
	mux.HandleFunc("GET /api/public/tree", h.Public.Tree)
	mux.HandleFunc("GET /api/public/members/{id}", h.Public.Member)
	mux.HandleFunc("GET /api/public/branch-links/{token}", h.BranchLinks.Resolve)
	mux.HandleFunc("POST /api/public/pending", m.RateLimit(h.Public.Submit))
	mux.HandleFunc("POST /api/public/members/{id}/images", m.RateLimit(m.OptionalAuth(h.Images.Upload)))
	mux.HandleFunc("GET /api/images/{id}", m.OptionalAuth(h.Images.Serve))

	// Members
	mux.HandleFunc("GET /api/admin/members", editor(h.Members.ListMembers))
	mux.HandleFunc("POST /api/admin/members", editor(h.Members.CreateMember))
	mux.HandleFunc("GET /api/admin/members/{id}", editor(h.Members.GetMember))
	mux.HandleFunc("PUT /api/admin/members/{id}", editor(h.Members.UpdateMember))
	mux.HandleFunc("DELETE /api/admin/members/{id}", admin(h.Members.DeleteMember))
	mux.HandleFunc("GET /api/admin/members/{id}/children", editor(h.Members.Children))
	mux.HandleFunc("GET /api/admin/members/{id}/ancestors", editor(h.Members.Ancestors))
	mux.HandleFunc("GET /api/admin/members/{id}/tree", editor(h.Members.Subtree))
	mux.HandleFunc("POST /api/admin/members/{id}/images", editor(h.Images.Upload))
	mux.HandleFunc("GET /api/admin/stats", editor(h.Members.Stats))

	// History
	mux.HandleFunc("GET /api/admin/history", editor(h.Members.ListHistory))
	mux.HandleFunc("GET /api/admin/history/{id}", editor(h.Members.GetHistory))
	mux.HandleFunc("POST /api/admin/history/{id}/revert", admin(h.Members.RevertHistory))

	// Snapshots and backups
	mux.HandleFunc("GET /api/admin/snapshots", editor(h.Snapshots.List))
	mux.HandleFunc("POST /api/admin/snapshots", admin(h.Snapshots.Create))
	mux.HandleFunc("GET /api/admin/snapshots/{id}", editor(h.Snapshots.Get))
	mux.HandleFunc("POST /api/admin/snapshots/{id}/restore", superAdmin(h.Snapshots.Restore))
	mux.HandleFunc("DELETE /api/admin/snapshots/{id}", superAdmin(h.Snapshots.Delete))
	mux.HandleFunc("GET /api/admin/backup", admin(h.Admin.ExportBackup))
	mux.HandleFunc("POST /api/admin/backup", superAdmin(h.Admin.ImportBackup))

	// Review queue
	mux.HandleFunc("GET /api/admin/pending", editor(h.Pending.List))
	mux.HandleFunc("GET /api/admin/pending/{id}", editor(h.Pending.Get))
	mux.HandleFunc("POST /api/admin/pending/{id}/approve", editor(h.Pending.Approve))
	mux.HandleFunc("POST /api/admin/pending/{id}/reject", editor(h.Pending.Reject))
	mux.HandleFunc("DELETE /api/admin/pending/{id}", admin(h.Pending.Delete))

	// Branch links
	mux.HandleFunc("GET /api/admin/branch-links", editor(h.BranchLinks.List))
	mux.HandleFunc("POST /api/admin/branch-links", admin(h.BranchLinks.Create))
	mux.HandleFunc("POST /api/admin/branch-links/{id}/deactivate", admin(h.BranchLinks.Deactivate))
	mux.HandleFunc("DELETE /api/admin/branch-links/{id}", admin(h.BranchLinks.Delete))

	// Images
	mux.HandleFunc("GET /api/admin/images", editor(h.Images.List))
	mux.HandleFunc("POST /api/admin/images/{id}/approve", editor(h.Images.Approve))
	mux.HandleFunc("POST /api/admin/images/{id}/reject", editor(h.Images.Reject))
	mux.HandleFunc("DELETE /api/admin/images/{id}", admin(h.Images.Delete))

	// Feature flags
	mux.HandleFunc("GET /api/admin/feature-flags", editor(h.Admin.ListFlags))
	mux.HandleFunc("PUT /api/admin/feature-flags/{key}", superAdmin(h.Admin.SetFlag))

	// Admin users
	mux.HandleFunc("GET /api/admin/users", superAdmin(h.Admin.ListAdmins))
	mux.HandleFunc("POST /api/admin/users", superAdmin(h.Admin.CreateAdmin))
	mux.HandleFunc("PUT /api/admin/users/{id}", superAdmin(h.Admin.UpdateAdmin))
	mux.HandleFunc("DELETE /api/admin/users/{id}", superAdmin(h.Admin.DeleteAdmin))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, r, errRouteNotFound)
	})

	return Recovery(RequestID(Logging(h.Metrics.Middleware(m.CORS(mux)))))
}
