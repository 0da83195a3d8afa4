package org

import "context"

// HierarchyStore holds structure nodes. Listings are ordered by
// (level, name); DescendantsOf must be backed by a prefix index on path so
// descendant lookups stay a single round trip regardless of depth.
type HierarchyStore interface {
	GetStructure(ctx context.Context, id string) (Structure, error)
	ListStructures(ctx context.Context) ([]Structure, error)
	ListStructuresByIDs(ctx context.Context, ids []string) ([]Structure, error)
	// FindByNameUnderParent checks for a sibling with the same display name.
	// An empty parentID means root level.
	FindByNameUnderParent(ctx context.Context, name, parentID string) (Structure, bool, error)
	FindByPath(ctx context.Context, path string) (Structure, bool, error)
	// InsertStructure persists a node. The unique index on path is the
	// authoritative guard against concurrent duplicate creates; violations
	// surface as ErrPathConflict.
	InsertStructure(ctx context.Context, s Structure) (Structure, error)
	// DescendantsOf returns every structure whose path extends one of paths
	// ("p/...") together with the structures named by ids, in one query.
	DescendantsOf(ctx context.Context, paths, ids []string) ([]Structure, error)
	HierarchyStats(ctx context.Context, parentID string) (HierarchyStats, error)
}

// PermissionStore holds user→structure grant edges.
type PermissionStore interface {
	GetGrantsForUser(ctx context.Context, userID string) ([]Grant, error)
	GrantExists(ctx context.Context, userID, structureID string) (bool, error)
	InsertGrant(ctx context.Context, userID, structureID string) (Permission, error)
	// DeleteGrant removes the grant matching both the permission id and the
	// owning user, returning what was revoked.
	DeleteGrant(ctx context.Context, userID, permissionID string) (Grant, error)
	CountGrantsForUser(ctx context.Context, userID string) (int, error)
	// GrantsToStructures is the bulk membership join the resolver leans on:
	// every (user, grant structure) pair for any of the given structures,
	// ordered by (structure level, user name). One query, never N+1.
	GrantsToStructures(ctx context.Context, structureIDs []string) ([]GrantedUser, error)
	CountGrantsByStructure(ctx context.Context) (map[string]int, error)
	CountGrantedUsers(ctx context.Context) (int, error)
	// ReplaceGrantsForUser applies a computed diff atomically: grants on
	// removed are deleted, grants on added are inserted.
	ReplaceGrantsForUser(ctx context.Context, userID string, added, removed []string) error
}

// UserStore holds directory users.
type UserStore interface {
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]User, error)
	InsertUser(ctx context.Context, u NewUser) (User, error)
}
