package accesscontrol

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/flightbase/fbo-management/internal"
	"github.com/flightbase/fbo-management/internal/transport"
	"github.com/flightbase/fbo-management/pkg/logger"
	"github.com/go-chi/chi"
)

// ResolverAPI is the read surface the handler needs from the resolver.
type ResolverAPI interface {
	IsAuthorized(ctx context.Context, userID int64, permissionName string, rc *ResourceContext) (bool, error)
	GetUserPermissions(ctx context.Context, userID int64, includeGroups bool) ([]string, error)
	GetUserPermissionGroups(ctx context.Context, userID int64) ([]PermissionGroup, error)
	GetPermissionGroups(ctx context.Context, includeInactive bool) (map[string]PermissionGroup, error)
	GetUserPermissionSummary(ctx context.Context, userID int64) (*PermissionSummary, error)
	InvalidateCache(userID *int64, permissionName string)
	CacheStats() CacheStats
}

// ServiceAPI is the mutation surface the handler needs.
type ServiceAPI interface {
	GrantPermission(ctx context.Context, dto GrantPermissionDTO) (*DirectGrant, error)
	RevokePermission(ctx context.Context, grantID int64, dto RevokePermissionDTO) error
	DeactivatePermission(ctx context.Context, grantID int64) error
	ReactivatePermission(ctx context.Context, grantID int64) error
	AddGroupMembership(ctx context.Context, userID int64, dto GroupMembershipDTO) error
	RemoveGroupMembership(ctx context.Context, userID, groupID int64) error
	AssignRole(ctx context.Context, userID int64, dto RoleAssignmentDTO) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
}

type Handler struct {
	*transport.BaseHandler
	Resolver ResolverAPI
	Service  ServiceAPI
}

func NewHandler(resolver ResolverAPI, service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Resolver:    resolver,
		Service:     service,
	}
}

// Check handles POST /access/check
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var dto CheckRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.writeAppError(w, err)
		return
	}

	rc, err := dto.ResourceContext()
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	allowed, err := h.Resolver.IsAuthorized(r.Context(), dto.UserID, dto.Permission, rc)
	if err != nil {
		h.Logger.Error("authorization check failed", "error", err, "user_id", dto.UserID, "permission", dto.Permission)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, CheckResponseDTO{
		UserID:     dto.UserID,
		Permission: NormalizeName(dto.Permission),
		Allowed:    allowed,
	})
}

// GetUserPermissions handles GET /access/users/{id}/permissions
func (h *Handler) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	includeGroups := r.URL.Query().Get("include_groups") != "false"
	permissions, err := h.Resolver.GetUserPermissions(r.Context(), userID, includeGroups)
	if err != nil {
		h.Logger.Error("failed to enumerate user permissions", "error", err, "user_id", userID)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":     userID,
		"permissions": permissions,
	})
}

// GetUserGroups handles GET /access/users/{id}/groups
func (h *Handler) GetUserGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	groups, err := h.Resolver.GetUserPermissionGroups(r.Context(), userID)
	if err != nil {
		h.Logger.Error("failed to list user groups", "error", err, "user_id", userID)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"groups":  groups,
	})
}

// GetUserSummary handles GET /access/users/{id}/summary
func (h *Handler) GetUserSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	summary, err := h.Resolver.GetUserPermissionSummary(r.Context(), userID)
	if err != nil {
		h.Logger.Error("failed to build permission summary", "error", err, "user_id", userID)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}

// GetGroups handles GET /access/groups
func (h *Handler) GetGroups(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	groups, err := h.Resolver.GetPermissionGroups(r.Context(), includeInactive)
	if err != nil {
		h.Logger.Error("failed to list permission groups", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, groups)
}

// GetCacheStats handles GET /access/cache/stats
func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Resolver.CacheStats())
}

// InvalidateCache handles POST /access/cache/invalidate
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var dto InvalidateCacheDTO
	if r.Body != nil {
		// an empty body means "invalidate everything"
		_ = json.NewDecoder(r.Body).Decode(&dto)
	}

	h.Resolver.InvalidateCache(dto.UserID, dto.Permission)
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// GrantPermission handles POST /access/grants
func (h *Handler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	var dto GrantPermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if dto.GrantedBy == 0 {
		dto.GrantedBy = internal.UserIDFromContext(r.Context())
	}

	grant, err := h.Service.GrantPermission(r.Context(), dto)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, grant)
}

// RevokeGrant handles POST /access/grants/{id}/revoke
func (h *Handler) RevokeGrant(w http.ResponseWriter, r *http.Request) {
	grantID, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}

	var dto RevokePermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if dto.RevokedBy == 0 {
		dto.RevokedBy = internal.UserIDFromContext(r.Context())
	}

	if err := h.Service.RevokePermission(r.Context(), grantID, dto); err != nil {
		h.writeAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// DeactivateGrant handles POST /access/grants/{id}/deactivate
func (h *Handler) DeactivateGrant(w http.ResponseWriter, r *http.Request) {
	grantID, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.Service.DeactivatePermission(r.Context(), grantID); err != nil {
		h.writeAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// ReactivateGrant handles POST /access/grants/{id}/reactivate
func (h *Handler) ReactivateGrant(w http.ResponseWriter, r *http.Request) {
	grantID, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.Service.ReactivatePermission(r.Context(), grantID); err != nil {
		h.writeAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "reactivated"})
}

// AddGroupMembership handles POST /access/users/{id}/groups
func (h *Handler) AddGroupMembership(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	var dto GroupMembershipDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if dto.AssignedBy == 0 {
		dto.AssignedBy = internal.UserIDFromContext(r.Context())
	}

	if err := h.Service.AddGroupMembership(r.Context(), userID, dto); err != nil {
		h.writeAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

// RemoveGroupMembership handles DELETE /access/users/{id}/groups/{groupID}
func (h *Handler) RemoveGroupMembership(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}
	groupID, ok := h.idParam(w, r, "groupID")
	if !ok {
		return
	}

	if err := h.Service.RemoveGroupMembership(r.Context(), userID, groupID); err != nil {
		h.writeAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// AssignRole handles POST /access/users/{id}/roles
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	var dto RoleAssignmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if dto.AssignedBy == 0 {
		dto.AssignedBy = internal.UserIDFromContext(r.Context())
	}

	if err := h.Service.AssignRole(r.Context(), userID, dto); err != nil {
		h.writeAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, map[string]string{"status": "assigned"})
}

// RemoveRole handles DELETE /access/users/{id}/roles/{roleID}
func (h *Handler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}
	roleID, ok := h.idParam(w, r, "roleID")
	if !ok {
		return
	}

	if err := h.Service.RemoveRole(r.Context(), userID, roleID); err != nil {
		h.writeAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return h.idParam(w, r, "id")
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		status, body := appErr.ToHTTPResponse()
		h.WriteJSON(w, status, body)
		return
	}
	h.Logger.Error("unexpected error", "error", err)
	h.WriteError(w, http.StatusInternalServerError, "internal server error")
}
