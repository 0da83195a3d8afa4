package httpapi

import (
	"net/http"

	"gekko.org/internal/audit"
)

type createStructureRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

func (a *API) handleStructures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req createStructureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	created, err := a.svc.CreateStructure(r.Context(), req.Name, req.ParentID)
	if err != nil {
		handleOrgError(w, r, err)
		return
	}

	audit.LogEvent(r.Context(), "structure.created", map[string]any{
		"structure_id": created.Structure.ID,
		"path":         created.Structure.Path,
		"level":        created.Structure.Level,
	})
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleHierarchyTree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	tree, err := a.svc.HierarchyTree(r.Context())
	if err != nil {
		handleOrgError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}
