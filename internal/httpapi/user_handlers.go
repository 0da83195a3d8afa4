package httpapi

import (
	"net/http"

	"gekko.org/internal/audit"
	"gekko.org/internal/org"
)

type createUserRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	SpiritAnimal string `json:"spirit_animal"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := a.svc.ListUsers(r.Context())
		if err != nil {
			handleOrgError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data":  users,
			"total": len(users),
		})
	case http.MethodPost:
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.svc.CreateUser(r.Context(), org.NewUser{
			Name:         req.Name,
			Email:        req.Email,
			Role:         req.Role,
			SpiritAnimal: req.SpiritAnimal,
		})
		if err != nil {
			handleOrgError(w, r, err)
			return
		}
		audit.LogEvent(r.Context(), "user.created", map[string]any{
			"user_id": user.ID,
			"email":   user.Email,
		})
		writeJSON(w, http.StatusCreated, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	q := r.URL.Query().Get("q")
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 50, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit "+err.Error())
		return
	}

	users, err := a.svc.SearchDirectory(r.Context(), q, limit)
	if err != nil {
		handleOrgError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  users,
		"query": q,
		"total": len(users),
	})
}
