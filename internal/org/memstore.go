package org

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemory implements the three store contracts in process memory. It backs
// handler tests and DSN-less development runs; Postgres is the durable
// implementation.
type InMemory struct {
	mu         sync.RWMutex
	structures map[string]Structure
	users      map[string]User
	perms      map[string]Permission
}

func NewInMemory() *InMemory {
	return &InMemory{
		structures: make(map[string]Structure),
		users:      make(map[string]User),
		perms:      make(map[string]Permission),
	}
}

var (
	_ HierarchyStore  = (*InMemory)(nil)
	_ PermissionStore = (*InMemory)(nil)
	_ UserStore       = (*InMemory)(nil)
)

func (m *InMemory) GetStructure(ctx context.Context, id string) (Structure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.structures[id]
	if !ok {
		return Structure{}, fmt.Errorf("%w: %s", ErrStructureNotFound, id)
	}
	return st, nil
}

func (m *InMemory) ListStructures(ctx context.Context) ([]Structure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Structure, 0, len(m.structures))
	for _, st := range m.structures {
		out = append(out, st)
	}
	sortStructures(out)
	return out, nil
}

func (m *InMemory) ListStructuresByIDs(ctx context.Context, ids []string) ([]Structure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Structure
	for _, id := range ids {
		if st, ok := m.structures[id]; ok {
			out = append(out, st)
		}
	}
	sortStructures(out)
	return out, nil
}

func (m *InMemory) FindByNameUnderParent(ctx context.Context, name, parentID string) (Structure, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, st := range m.structures {
		if st.Name != name {
			continue
		}
		if parentID == "" && st.Level == 0 {
			return st, true, nil
		}
		if parentID != "" && st.ParentID == parentID {
			return st, true, nil
		}
	}
	return Structure{}, false, nil
}

func (m *InMemory) FindByPath(ctx context.Context, path string) (Structure, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, st := range m.structures {
		if st.Path == path {
			return st, true, nil
		}
	}
	return Structure{}, false, nil
}

func (m *InMemory) InsertStructure(ctx context.Context, s Structure) (Structure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.structures {
		if st.Path == s.Path {
			return Structure{}, fmt.Errorf("%w: path %q already exists", ErrPathConflict, s.Path)
		}
	}
	now := time.Now().UTC()
	s.ID = uuid.NewString()
	s.CreatedAt = now
	s.UpdatedAt = now
	m.structures[s.ID] = s
	return s, nil
}

func (m *InMemory) DescendantsOf(ctx context.Context, paths, ids []string) ([]Structure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	var out []Structure
	for _, st := range m.structures {
		if idSet[st.ID] {
			out = append(out, st)
			continue
		}
		for _, p := range paths {
			if strings.HasPrefix(st.Path, p+"/") {
				out = append(out, st)
				break
			}
		}
	}
	sortStructures(out)
	return out, nil
}

func (m *InMemory) HierarchyStats(ctx context.Context, parentID string) (HierarchyStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stats HierarchyStats
	for _, st := range m.structures {
		stats.TotalStructures++
		if st.Level > stats.MaxLevel {
			stats.MaxLevel = st.Level
		}
		if parentID != "" && st.ParentID == parentID {
			stats.ChildrenCount++
		}
	}
	return stats, nil
}

func (m *InMemory) GetGrantsForUser(ctx context.Context, userID string) ([]Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Grant
	for _, p := range m.perms {
		if p.UserID != userID {
			continue
		}
		st := m.structures[p.StructureID]
		out = append(out, Grant{
			PermissionID:  p.ID,
			StructureID:   st.ID,
			StructureName: st.Name,
			Path:          st.Path,
			Level:         st.Level,
			ParentID:      st.ParentID,
			AssignedAt:    p.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].StructureName < out[j].StructureName
	})
	return out, nil
}

func (m *InMemory) GrantExists(ctx context.Context, userID, structureID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.grantExistsLocked(userID, structureID), nil
}

func (m *InMemory) grantExistsLocked(userID, structureID string) bool {
	for _, p := range m.perms {
		if p.UserID == userID && p.StructureID == structureID {
			return true
		}
	}
	return false
}

func (m *InMemory) InsertGrant(ctx context.Context, userID, structureID string) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return Permission{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if _, ok := m.structures[structureID]; !ok {
		return Permission{}, fmt.Errorf("%w: %s", ErrStructureNotFound, structureID)
	}
	if m.grantExistsLocked(userID, structureID) {
		return Permission{}, ErrAlreadyGranted
	}
	p := Permission{
		ID:          uuid.NewString(),
		UserID:      userID,
		StructureID: structureID,
		CreatedAt:   time.Now().UTC(),
	}
	m.perms[p.ID] = p
	return p, nil
}

func (m *InMemory) DeleteGrant(ctx context.Context, userID, permissionID string) (Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.perms[permissionID]
	if !ok || p.UserID != userID {
		return Grant{}, ErrPermissionNotFound
	}
	delete(m.perms, permissionID)
	st := m.structures[p.StructureID]
	return Grant{
		PermissionID:  p.ID,
		StructureID:   st.ID,
		StructureName: st.Name,
		Path:          st.Path,
		Level:         st.Level,
		AssignedAt:    p.CreatedAt,
	}, nil
}

func (m *InMemory) CountGrantsForUser(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.perms {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *InMemory) GrantsToStructures(ctx context.Context, structureIDs []string) ([]GrantedUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idSet := make(map[string]bool, len(structureIDs))
	for _, id := range structureIDs {
		idSet[id] = true
	}
	var out []GrantedUser
	for _, p := range m.perms {
		if !idSet[p.StructureID] {
			continue
		}
		st := m.structures[p.StructureID]
		out = append(out, GrantedUser{
			User:           m.users[p.UserID],
			StructureID:    st.ID,
			StructureName:  st.Name,
			StructurePath:  st.Path,
			StructureLevel: st.Level,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StructureLevel != out[j].StructureLevel {
			return out[i].StructureLevel < out[j].StructureLevel
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *InMemory) CountGrantsByStructure(ctx context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, p := range m.perms {
		counts[p.StructureID]++
	}
	return counts, nil
}

func (m *InMemory) CountGrantedUsers(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	for _, p := range m.perms {
		seen[p.UserID] = true
	}
	return len(seen), nil
}

func (m *InMemory) ReplaceGrantsForUser(ctx context.Context, userID string, added, removed []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	removeSet := make(map[string]bool, len(removed))
	for _, id := range removed {
		removeSet[id] = true
	}
	for id, p := range m.perms {
		if p.UserID == userID && removeSet[p.StructureID] {
			delete(m.perms, id)
		}
	}
	now := time.Now().UTC()
	for _, structureID := range added {
		if m.grantExistsLocked(userID, structureID) {
			continue
		}
		p := Permission{ID: uuid.NewString(), UserID: userID, StructureID: structureID, CreatedAt: now}
		m.perms[p.ID] = p
	}
	return nil
}

func (m *InMemory) GetUser(ctx context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return u, nil
}

func (m *InMemory) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *InMemory) SearchUsers(ctx context.Context, query string, limit int) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(query)
	var out []User
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *InMemory) InsertUser(ctx context.Context, nu NewUser) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == nu.Email {
			return User{}, fmt.Errorf("%w: %s", ErrEmailTaken, nu.Email)
		}
	}
	now := time.Now().UTC()
	u := User{
		ID:           uuid.NewString(),
		Name:         nu.Name,
		Email:        nu.Email,
		Role:         nu.Role,
		SpiritAnimal: nu.SpiritAnimal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[u.ID] = u
	return u, nil
}

func sortStructures(s []Structure) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Level != s[j].Level {
			return s[i].Level < s[j].Level
		}
		return s[i].Name < s[j].Name
	})
}
