package httpapi

import (
	"net/http"
	"strings"

	"gekko.org/internal/audit"
)

// handleUserResource routes /v1/users/{userId}/... subresources.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleUserPermissions(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "permissions":
		a.handleUserPermission(w, r, parts[0], parts[2])
	case len(parts) == 2 && parts[1] == "accessible-users":
		a.handleAccessibleUsers(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

type grantPermissionRequest struct {
	UserID      string `json:"user_id"`
	StructureID string `json:"structure_id"`
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req grantPermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := a.svc.GrantPermission(r.Context(), req.UserID, req.StructureID)
	if err != nil {
		handleOrgError(w, r, err)
		return
	}

	audit.LogEvent(r.Context(), "permission.granted", map[string]any{
		"user_id":      req.UserID,
		"structure_id": req.StructureID,
	})
	writeJSON(w, http.StatusCreated, detail)
}

type replacePermissionsRequest struct {
	StructureIDs []string `json:"structure_ids"`
}

func (a *API) handleUserPermissions(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		perms, err := a.svc.GetUserPermissions(r.Context(), userID)
		if err != nil {
			handleOrgError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, perms)
	case http.MethodPut:
		var req replacePermissionsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		changes, err := a.svc.ReplacePermissions(r.Context(), userID, req.StructureIDs)
		if err != nil {
			handleOrgError(w, r, err)
			return
		}
		perms, err := a.svc.GetUserPermissions(r.Context(), userID)
		if err != nil {
			handleOrgError(w, r, err)
			return
		}
		audit.LogEvent(r.Context(), "permission.replaced", map[string]any{
			"user_id": userID,
			"added":   len(changes.Added),
			"removed": len(changes.Removed),
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"user":    perms.User,
			"changes": changes,
			"summary": perms.Summary,
		})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleUserPermission(w http.ResponseWriter, r *http.Request, userID, permissionID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}

	revoked, err := a.svc.RevokePermission(r.Context(), userID, permissionID)
	if err != nil {
		handleOrgError(w, r, err)
		return
	}

	audit.LogEvent(r.Context(), "permission.revoked", map[string]any{
		"user_id":       userID,
		"permission_id": permissionID,
	})
	writeJSON(w, http.StatusOK, revoked)
}
