package org

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Service implements the org operations over the three store contracts.
// Postgres (internal/store/pg) and the in-memory store both satisfy them.
type Service struct {
	structures HierarchyStore
	perms      PermissionStore
	users      UserStore
}

func NewService(structures HierarchyStore, perms PermissionStore, users UserStore) (*Service, error) {
	if structures == nil || perms == nil || users == nil {
		return nil, errors.New("org: all stores are required")
	}
	return &Service{structures: structures, perms: perms, users: users}, nil
}

// CreateStructure validates and inserts a new tree node. Checks run in a
// fixed order so callers get the most specific failure: duplicate sibling
// name, then path collision, then depth. The unique index on path remains
// the guard of record under concurrent creates; these pre-checks only buy a
// friendlier error.
func (s *Service) CreateStructure(ctx context.Context, name, parentID string) (CreatedStructure, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CreatedStructure{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(name) > 100 {
		return CreatedStructure{}, fmt.Errorf("%w: name must be 100 characters or less", ErrInvalidInput)
	}

	var (
		parent *Structure
		level  int
		path   string
	)
	slug := Slugify(name)
	if slug == "" {
		return CreatedStructure{}, fmt.Errorf("%w: name must contain letters or digits", ErrInvalidInput)
	}
	if parentID != "" {
		if !IsValidID(parentID) {
			return CreatedStructure{}, fmt.Errorf("%w: parent id must be a valid UUID", ErrInvalidInput)
		}
		p, err := s.structures.GetStructure(ctx, parentID)
		if errors.Is(err, ErrStructureNotFound) {
			return CreatedStructure{}, fmt.Errorf("%w: %s", ErrParentNotFound, parentID)
		}
		if err != nil {
			return CreatedStructure{}, err
		}
		parent = &p
		level = p.Level + 1
		path = p.Path + "/" + slug
	} else {
		level = 0
		path = slug
	}

	if _, exists, err := s.structures.FindByNameUnderParent(ctx, name, parentID); err != nil {
		return CreatedStructure{}, err
	} else if exists {
		scope := "at root level"
		if parent != nil {
			scope = fmt.Sprintf("under %q", parent.Name)
		}
		return CreatedStructure{}, fmt.Errorf("%w: a structure named %q already exists %s", ErrDuplicateName, name, scope)
	}
	if _, exists, err := s.structures.FindByPath(ctx, path); err != nil {
		return CreatedStructure{}, err
	} else if exists {
		return CreatedStructure{}, fmt.Errorf("%w: path %q already exists", ErrPathConflict, path)
	}
	if level >= MaxDepth {
		return CreatedStructure{}, fmt.Errorf("%w: structures cannot be nested deeper than %d levels", ErrMaxDepthExceeded, MaxDepth)
	}

	created, err := s.structures.InsertStructure(ctx, Structure{
		Name:     name,
		Level:    level,
		ParentID: parentID,
		Path:     path,
	})
	if err != nil {
		return CreatedStructure{}, err
	}

	stats, err := s.structures.HierarchyStats(ctx, parentID)
	if err != nil {
		return CreatedStructure{}, err
	}
	return CreatedStructure{Structure: created, Parent: parent, Stats: stats}, nil
}

// GrantPermission adds a (user, structure) edge. Granting an existing pair is
// an explicit conflict, not a silent no-op.
func (s *Service) GrantPermission(ctx context.Context, userID, structureID string) (GrantDetail, error) {
	if !IsValidID(userID) || !IsValidID(structureID) {
		return GrantDetail{}, fmt.Errorf("%w: user id and structure id must be valid UUIDs", ErrInvalidInput)
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return GrantDetail{}, err
	}
	structure, err := s.structures.GetStructure(ctx, structureID)
	if err != nil {
		return GrantDetail{}, err
	}
	exists, err := s.perms.GrantExists(ctx, userID, structureID)
	if err != nil {
		return GrantDetail{}, err
	}
	if exists {
		return GrantDetail{}, fmt.Errorf("%w: %s already has access to %s", ErrAlreadyGranted, user.Name, structure.Name)
	}
	perm, err := s.perms.InsertGrant(ctx, userID, structureID)
	if err != nil {
		return GrantDetail{}, err
	}
	return GrantDetail{Permission: perm, User: user, Structure: structure, LevelName: LevelName(structure.Level)}, nil
}

// RevokePermission deletes the grant matching both the permission id and the
// owning user, and reports how many grants the user still holds.
func (s *Service) RevokePermission(ctx context.Context, userID, permissionID string) (RevokedPermission, error) {
	if !IsValidID(userID) || !IsValidID(permissionID) {
		return RevokedPermission{}, fmt.Errorf("%w: user id and permission id must be valid UUIDs", ErrInvalidInput)
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return RevokedPermission{}, err
	}
	revoked, err := s.perms.DeleteGrant(ctx, userID, permissionID)
	if errors.Is(err, ErrPermissionNotFound) {
		return RevokedPermission{}, fmt.Errorf("%w: no permission %s for user %s", ErrPermissionNotFound, permissionID, userID)
	}
	if err != nil {
		return RevokedPermission{}, err
	}
	remaining, err := s.perms.CountGrantsForUser(ctx, userID)
	if err != nil {
		return RevokedPermission{}, err
	}
	return RevokedPermission{
		Permission: RevokedGrant{
			PermissionID:  revoked.PermissionID,
			UserID:        user.ID,
			UserName:      user.Name,
			StructureID:   revoked.StructureID,
			StructureName: revoked.StructureName,
			RevokedAt:     nowUTC(),
		},
		Remaining: remaining,
	}, nil
}

// ReplacePermissions sets a user's grants to exactly structureIDs, computing
// the diff against the current set. Unlike GrantPermission, pairs already
// present are simply kept; an empty desired set revokes everything. Missing
// structure ids are reported all at once.
func (s *Service) ReplacePermissions(ctx context.Context, userID string, structureIDs []string) (PermissionChanges, error) {
	if !IsValidID(userID) {
		return PermissionChanges{}, fmt.Errorf("%w: user id must be a valid UUID", ErrInvalidInput)
	}
	desired := make([]string, 0, len(structureIDs))
	seen := make(map[string]bool, len(structureIDs))
	for _, id := range structureIDs {
		if !IsValidID(id) {
			return PermissionChanges{}, fmt.Errorf("%w: %q is not a valid structure id", ErrInvalidInput, id)
		}
		if !seen[id] {
			seen[id] = true
			desired = append(desired, id)
		}
	}

	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return PermissionChanges{}, err
	}

	if len(desired) > 0 {
		found, err := s.structures.ListStructuresByIDs(ctx, desired)
		if err != nil {
			return PermissionChanges{}, err
		}
		foundSet := make(map[string]bool, len(found))
		for _, st := range found {
			foundSet[st.ID] = true
		}
		var missing []string
		for _, id := range desired {
			if !foundSet[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return PermissionChanges{}, fmt.Errorf("%w: %s", ErrStructureNotFound, strings.Join(missing, ", "))
		}
	}

	current, err := s.perms.GetGrantsForUser(ctx, userID)
	if err != nil {
		return PermissionChanges{}, err
	}
	currentSet := make(map[string]bool, len(current))
	for _, g := range current {
		currentSet[g.StructureID] = true
	}

	changes := PermissionChanges{Added: []string{}, Removed: []string{}, Unchanged: []string{}}
	for _, id := range desired {
		if currentSet[id] {
			changes.Unchanged = append(changes.Unchanged, id)
		} else {
			changes.Added = append(changes.Added, id)
		}
	}
	for _, g := range current {
		if !seen[g.StructureID] {
			changes.Removed = append(changes.Removed, g.StructureID)
		}
	}

	if len(changes.Added) > 0 || len(changes.Removed) > 0 {
		if err := s.perms.ReplaceGrantsForUser(ctx, userID, changes.Added, changes.Removed); err != nil {
			return PermissionChanges{}, err
		}
	}
	return changes, nil
}

// GetUserPermissions lists a user's direct grants with summary figures.
func (s *Service) GetUserPermissions(ctx context.Context, userID string) (UserPermissions, error) {
	if !IsValidID(userID) {
		return UserPermissions{}, fmt.Errorf("%w: user id must be a valid UUID", ErrInvalidInput)
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return UserPermissions{}, err
	}
	grants, err := s.perms.GetGrantsForUser(ctx, userID)
	if err != nil {
		return UserPermissions{}, err
	}

	summary := PermissionSummary{
		TotalPermissions:       len(grants),
		LevelDistribution:      map[string]int{},
		HasMultiplePermissions: len(grants) > 1,
		AccessLevels:           []int{},
	}
	byLevel := make(map[int][]Grant)
	levelSeen := make(map[int]bool)
	for _, g := range grants {
		summary.LevelDistribution[LevelName(g.Level)]++
		byLevel[g.Level] = append(byLevel[g.Level], g)
		if !levelSeen[g.Level] {
			levelSeen[g.Level] = true
			summary.AccessLevels = append(summary.AccessLevels, g.Level)
		}
	}
	sort.Ints(summary.AccessLevels)

	return UserPermissions{User: user, Permissions: grants, Summary: summary, ByLevel: byLevel}, nil
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CreateUser adds a directory user.
func (s *Service) CreateUser(ctx context.Context, nu NewUser) (User, error) {
	nu.Name = strings.TrimSpace(nu.Name)
	nu.Email = strings.ToLower(strings.TrimSpace(nu.Email))
	nu.Role = strings.TrimSpace(nu.Role)
	nu.SpiritAnimal = strings.TrimSpace(nu.SpiritAnimal)
	if nu.Name == "" || nu.Email == "" || nu.Role == "" || nu.SpiritAnimal == "" {
		return User{}, fmt.Errorf("%w: name, email, role and spirit animal are all required", ErrInvalidInput)
	}
	if !emailPattern.MatchString(nu.Email) {
		return User{}, fmt.Errorf("%w: %q is not a valid email address", ErrInvalidInput, nu.Email)
	}
	return s.users.InsertUser(ctx, nu)
}

// ListUsers returns the whole directory ordered by name.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.users.ListUsers(ctx)
}

// SearchDirectory is the unscoped user search used by admin tooling.
func (s *Service) SearchDirectory(ctx context.Context, query string, limit int) ([]User, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, fmt.Errorf("%w: query must be at least 2 characters", ErrInvalidInput)
	}
	limit = clampLimit(limit)
	return s.users.SearchUsers(ctx, query, limit)
}

// HierarchyTree renders the full organisational tree with per-node direct
// grant counts and tree-wide metadata.
func (s *Service) HierarchyTree(ctx context.Context) (HierarchyTree, error) {
	structures, err := s.structures.ListStructures(ctx)
	if err != nil {
		return HierarchyTree{}, err
	}
	counts, err := s.perms.CountGrantsByStructure(ctx)
	if err != nil {
		return HierarchyTree{}, err
	}
	totalUsers, err := s.perms.CountGrantedUsers(ctx)
	if err != nil {
		return HierarchyTree{}, err
	}

	roots := buildForest(structures, counts, func(st Structure) bool {
		return st.ParentID == ""
	})

	meta := TreeMetadata{
		TotalStructures: len(structures),
		TotalUsers:      totalUsers,
		LevelCounts:     map[int]int{},
		Paths:           make([]string, 0, len(structures)),
	}
	for _, st := range structures {
		meta.LevelCounts[st.Level]++
		meta.Paths = append(meta.Paths, st.Path)
		if st.Level+1 > meta.MaxDepth {
			meta.MaxDepth = st.Level + 1
		}
	}
	sort.Strings(meta.Paths)

	return HierarchyTree{Tree: roots, Metadata: meta}, nil
}

// buildForest links flat structures into parent/child trees. isRoot decides
// which nodes start a tree; children are attached by parent path and sorted
// by case-insensitive name at every depth.
func buildForest(structures []Structure, counts map[string]int, isRoot func(Structure) bool) []*TreeNode {
	byPath := make(map[string]*TreeNode, len(structures))
	nodes := make([]*TreeNode, 0, len(structures))
	for _, st := range structures {
		n := &TreeNode{
			ID:        st.ID,
			Name:      st.Name,
			Path:      st.Path,
			Level:     st.Level,
			ParentID:  st.ParentID,
			UserCount: counts[st.ID],
			Children:  []*TreeNode{},
		}
		byPath[st.Path] = n
		nodes = append(nodes, n)
	}

	var roots []*TreeNode
	for i, st := range structures {
		if isRoot(st) {
			roots = append(roots, nodes[i])
			continue
		}
		if parent, ok := byPath[ParentPath(st.Path)]; ok {
			parent.Children = append(parent.Children, nodes[i])
		}
	}

	sortForest(roots)
	return roots
}

func sortForest(nodes []*TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
	for _, n := range nodes {
		sortForest(n.Children)
	}
}

func nowUTC() time.Time { return time.Now().UTC() }

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 100 {
		return 100
	}
	return limit
}
