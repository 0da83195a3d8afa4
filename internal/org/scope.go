package org

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Scope is a user's resolved accessible set: the structures they are directly
// granted plus every descendant of those, by materialised-path prefix. It is
// a view recomputed per request, never cached.
type Scope struct {
	User         User
	DirectGrants []Grant
	Structures   []Structure

	memberIDs    map[string]bool // accessible structure ids
	grantedIDs   map[string]bool // directly granted structure ids
	grantedPaths []string
}

// IsEmpty reports whether the user holds no grants at all. An empty scope is
// a legitimate result, not an error.
func (sc Scope) IsEmpty() bool { return len(sc.DirectGrants) == 0 }

// ContainsStructure reports whether id is in the accessible set.
func (sc Scope) ContainsStructure(id string) bool { return sc.memberIDs[id] }

// GrantedOn reports whether the scope owner is directly granted on id.
func (sc Scope) GrantedOn(id string) bool { return sc.grantedIDs[id] }

// Downstream reports whether path is a strict prefix-descendant of any of the
// owner's granted paths. A path equal to a granted path is not downstream.
func (sc Scope) Downstream(path string) bool {
	for _, gp := range sc.grantedPaths {
		if strings.HasPrefix(path, gp+"/") {
			return true
		}
	}
	return false
}

// ResolveScope loads userID's direct grants and expands them into the full
// accessible-structure set in one prefix query. A user with no grants gets an
// empty scope; an unknown user is an error.
func (s *Service) ResolveScope(ctx context.Context, userID string) (Scope, error) {
	if !IsValidID(userID) {
		return Scope{}, fmt.Errorf("%w: user id must be a valid UUID", ErrInvalidInput)
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return Scope{}, err
	}
	grants, err := s.perms.GetGrantsForUser(ctx, userID)
	if err != nil {
		return Scope{}, err
	}
	if len(grants) == 0 {
		return Scope{User: user}, nil
	}

	paths := make([]string, 0, len(grants))
	ids := make([]string, 0, len(grants))
	grantedIDs := make(map[string]bool, len(grants))
	for _, g := range grants {
		if grantedIDs[g.StructureID] {
			continue
		}
		grantedIDs[g.StructureID] = true
		paths = append(paths, g.Path)
		ids = append(ids, g.StructureID)
	}

	structures, err := s.structures.DescendantsOf(ctx, paths, ids)
	if err != nil {
		return Scope{}, err
	}

	memberIDs := make(map[string]bool, len(structures))
	for _, st := range structures {
		memberIDs[st.ID] = true
	}
	return Scope{
		User:         user,
		DirectGrants: grants,
		Structures:   structures,
		memberIDs:    memberIDs,
		grantedIDs:   grantedIDs,
		grantedPaths: paths,
	}, nil
}

// accessibleUsers is the shared membership computation behind all three query
// modes. A user belongs to the caller's accessible-user set when they hold a
// grant strictly downstream of one of the caller's granted paths, or they are
// the caller themself on one of their own granted structures. A peer granted
// on exactly the same structure is excluded.
func (s *Service) accessibleUsers(ctx context.Context, sc Scope) ([]AccessibleUser, error) {
	if sc.IsEmpty() {
		return nil, nil
	}
	ids := make([]string, 0, len(sc.Structures))
	for _, st := range sc.Structures {
		ids = append(ids, st.ID)
	}
	rows, err := s.perms.GrantsToStructures(ctx, ids)
	if err != nil {
		return nil, err
	}

	var result []AccessibleUser
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		self := row.User.ID == sc.User.ID && sc.GrantedOn(row.StructureID)
		if !self && !sc.Downstream(row.StructurePath) {
			continue
		}
		i, ok := index[row.User.ID]
		if !ok {
			i = len(result)
			index[row.User.ID] = i
			result = append(result, AccessibleUser{User: row.User})
		}
		result[i].Structures = append(result[i].Structures, GrantRef{
			ID:    row.StructureID,
			Name:  row.StructureName,
			Path:  row.StructurePath,
			Level: row.StructureLevel,
		})
	}
	return result, nil
}

// AccessTree renders the caller's accessible structures as a forest rooted at
// their directly granted nodes (not at the global root). Grants that sit
// inside another grant's subtree fold into that subtree rather than starting
// a second overlapping root. Node counts are per-structure, not cumulative.
func (s *Service) AccessTree(ctx context.Context, userID string) (AccessForest, error) {
	sc, err := s.ResolveScope(ctx, userID)
	if err != nil {
		return AccessForest{}, err
	}
	if sc.IsEmpty() {
		return AccessForest{Tree: []*TreeNode{}}, nil
	}
	visible, err := s.accessibleUsers(ctx, sc)
	if err != nil {
		return AccessForest{}, err
	}

	counts := make(map[string]int)
	for _, u := range visible {
		for _, ref := range u.Structures {
			counts[ref.ID]++
		}
	}

	roots := buildForest(sc.Structures, counts, func(st Structure) bool {
		return sc.GrantedOn(st.ID) && !sc.Downstream(st.Path)
	})
	return AccessForest{Tree: roots, TotalStructures: len(sc.Structures)}, nil
}

// UsersInStructure pages through the accessible users granted on exactly
// structureID. The accessibility check runs before any user data is fetched;
// failing it reveals nothing about whether the structure exists.
func (s *Service) UsersInStructure(ctx context.Context, userID, structureID string, page, limit int) (UserPage, error) {
	if !IsValidID(structureID) {
		return UserPage{}, fmt.Errorf("%w: structure id must be a valid UUID", ErrInvalidInput)
	}
	sc, err := s.ResolveScope(ctx, userID)
	if err != nil {
		return UserPage{}, err
	}
	if !sc.ContainsStructure(structureID) {
		return UserPage{}, ErrNotAccessible
	}

	visible, err := s.accessibleUsers(ctx, sc)
	if err != nil {
		return UserPage{}, err
	}
	var members []AccessibleUser
	for _, u := range visible {
		for _, ref := range u.Structures {
			if ref.ID == structureID {
				members = append(members, u)
				break
			}
		}
	}
	sort.SliceStable(members, func(i, j int) bool {
		return strings.ToLower(members[i].Name) < strings.ToLower(members[j].Name)
	})

	limit = clampLimit(limit)
	if page < 1 {
		page = 1
	}
	total := len(members)
	totalPages := (total + limit - 1) / limit

	start := (page - 1) * limit
	pageUsers := []AccessibleUser{}
	if start < total {
		end := start + limit
		if end > total {
			end = total
		}
		pageUsers = members[start:end]
	}
	return UserPage{
		Users: pageUsers,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1 && total > 0,
		},
	}, nil
}

// SearchAccessibleUsers matches query case-insensitively against name or
// email within the caller's accessible-user set. Queries under 2 characters
// are rejected before touching the store. Results are unique per user even
// when several grant structures match.
func (s *Service) SearchAccessibleUsers(ctx context.Context, userID, query string, limit int) ([]AccessibleUser, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, fmt.Errorf("%w: query must be at least 2 characters", ErrInvalidInput)
	}
	sc, err := s.ResolveScope(ctx, userID)
	if err != nil {
		return nil, err
	}
	visible, err := s.accessibleUsers(ctx, sc)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	limit = clampLimit(limit)
	matches := []AccessibleUser{}
	for _, u := range visible {
		if !strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		matches = append(matches, u)
		if len(matches) == limit {
			break
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return strings.ToLower(matches[i].Name) < strings.ToLower(matches[j].Name)
	})
	return matches, nil
}
