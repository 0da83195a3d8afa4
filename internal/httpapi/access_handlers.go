package httpapi

import (
	"net/http"
)

// handleAccessibleUsers dispatches on the mode query parameter. Each mode
// has its own contract and handler; mode defaults to tree.
func (a *API) handleAccessibleUsers(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "tree":
		a.handleAccessTree(w, r, userID)
	case "users":
		a.handleAccessibleStructureUsers(w, r, userID)
	case "search":
		a.handleAccessibleUserSearch(w, r, userID)
	default:
		writeError(w, r, http.StatusBadRequest, "mode must be one of tree, users, search")
	}
}

func (a *API) handleAccessTree(w http.ResponseWriter, r *http.Request, userID string) {
	forest, err := a.svc.AccessTree(r.Context(), userID)
	if err != nil {
		handleOrgError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forest)
}

func (a *API) handleAccessibleStructureUsers(w http.ResponseWriter, r *http.Request, userID string) {
	q := r.URL.Query()
	structureID := q.Get("structure_id")
	if structureID == "" {
		writeError(w, r, http.StatusBadRequest, "structure_id is required in users mode")
		return
	}
	page, err := parsePositiveInt(q.Get("page"), 1, 1, 1_000_000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "page "+err.Error())
		return
	}
	limit, err := parsePositiveInt(q.Get("limit"), 50, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit "+err.Error())
		return
	}

	pageOut, err := a.svc.UsersInStructure(r.Context(), userID, structureID, page, limit)
	if err != nil {
		handleOrgError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageOut)
}

func (a *API) handleAccessibleUserSearch(w http.ResponseWriter, r *http.Request, userID string) {
	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), 50, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit "+err.Error())
		return
	}

	users, err := a.svc.SearchAccessibleUsers(r.Context(), userID, q.Get("q"), limit)
	if err != nil {
		handleOrgError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"total": len(users),
	})
}
