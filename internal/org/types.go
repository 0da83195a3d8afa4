package org

import (
	"fmt"
	"regexp"
	"time"
)

// MaxDepth is the number of hierarchy tiers allowed. Creating a structure at
// level MaxDepth (the sixth tier) is rejected.
const MaxDepth = 5

// Structure is a node in the organisational tree. Path is the materialised
// ancestry ("acme/engineering/frontend"); it is unique across the tree and
// its segments correspond 1:1 to the chain of ancestors.
type Structure struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Level     int       `json:"level"`
	ParentID  string    `json:"parent_id,omitempty"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a directory entry. SpiritAnimal is a display tag only.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	SpiritAnimal string    `json:"spirit_animal"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser carries the fields accepted by user creation.
type NewUser struct {
	Name         string
	Email        string
	Role         string
	SpiritAnimal string
}

// Permission is a user→structure grant edge. A grant confers visibility over
// the structure and every descendant of it; (UserID, StructureID) pairs are
// unique.
type Permission struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	StructureID string    `json:"structure_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Grant is a permission joined with the granted structure, the shape the
// scope resolver works from.
type Grant struct {
	PermissionID  string    `json:"permission_id"`
	StructureID   string    `json:"structure_id"`
	StructureName string    `json:"structure_name"`
	Path          string    `json:"path"`
	Level         int       `json:"level"`
	ParentID      string    `json:"parent_id,omitempty"`
	AssignedAt    time.Time `json:"assigned_at"`
}

// GrantedUser is one row of the bulk "who holds a grant on any of these
// structures" join.
type GrantedUser struct {
	User
	StructureID    string
	StructureName  string
	StructurePath  string
	StructureLevel int
}

// GrantRef identifies one structure an accessible user is granted on.
type GrantRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	Level int    `json:"level"`
}

// AccessibleUser is a member of a caller's accessible-user set together with
// the structures that membership came from.
type AccessibleUser struct {
	User
	Structures []GrantRef `json:"structures"`
}

// TreeNode is one node of a rendered hierarchy forest. UserCount counts the
// accessible users granted on exactly that node, not a cumulative descendant
// sum.
type TreeNode struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Path      string      `json:"path"`
	Level     int         `json:"level"`
	ParentID  string      `json:"parent_id,omitempty"`
	UserCount int         `json:"user_count"`
	Children  []*TreeNode `json:"children"`
}

// Pagination describes a 1-based page window.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// UserPage is one page of accessible users scoped to a single structure.
type UserPage struct {
	Users      []AccessibleUser `json:"users"`
	Pagination Pagination       `json:"pagination"`
}

// AccessForest is the tree-mode answer: a forest rooted at the caller's
// directly granted structures.
type AccessForest struct {
	Tree            []*TreeNode `json:"tree"`
	TotalStructures int         `json:"total_structures"`
}

// HierarchyStats are the summary figures returned alongside a created
// structure.
type HierarchyStats struct {
	MaxLevel        int `json:"max_level"`
	TotalStructures int `json:"total_structures"`
	ChildrenCount   int `json:"children_count"`
}

// CreatedStructure is the result of the create-structure mutation.
type CreatedStructure struct {
	Structure Structure      `json:"structure"`
	Parent    *Structure     `json:"parent,omitempty"`
	Stats     HierarchyStats `json:"hierarchy"`
}

// GrantDetail is the result of the grant mutation.
type GrantDetail struct {
	Permission Permission `json:"permission"`
	User       User       `json:"user"`
	Structure  Structure  `json:"structure"`
	LevelName  string     `json:"level_name"`
}

// RevokedGrant describes the grant removed by a revoke.
type RevokedGrant struct {
	PermissionID  string    `json:"permission_id"`
	UserID        string    `json:"user_id"`
	UserName      string    `json:"user_name"`
	StructureID   string    `json:"structure_id"`
	StructureName string    `json:"structure_name"`
	RevokedAt     time.Time `json:"revoked_at"`
}

// RevokedPermission is the result of the revoke mutation.
type RevokedPermission struct {
	Permission RevokedGrant `json:"revoked_permission"`
	Remaining  int          `json:"remaining_permissions"`
}

// PermissionChanges is the diff applied by the replace-all mutation.
type PermissionChanges struct {
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Unchanged []string `json:"unchanged"`
}

// PermissionSummary aggregates a user's direct grants.
type PermissionSummary struct {
	TotalPermissions       int            `json:"total_permissions"`
	LevelDistribution      map[string]int `json:"level_distribution"`
	HasMultiplePermissions bool           `json:"has_multiple_permissions"`
	AccessLevels           []int          `json:"access_levels"`
}

// UserPermissions is the full per-user grant listing.
type UserPermissions struct {
	User        User              `json:"user"`
	Permissions []Grant           `json:"permissions"`
	Summary     PermissionSummary `json:"summary"`
	ByLevel     map[int][]Grant   `json:"permissions_by_level"`
}

// TreeMetadata summarises the whole tree for the admin view.
type TreeMetadata struct {
	TotalStructures int         `json:"total_structures"`
	TotalUsers      int         `json:"total_users"`
	MaxDepth        int         `json:"max_depth"`
	LevelCounts     map[int]int `json:"level_counts"`
	Paths           []string    `json:"paths"`
}

// HierarchyTree is the global (unscoped) tree plus its metadata.
type HierarchyTree struct {
	Tree     []*TreeNode  `json:"tree"`
	Metadata TreeMetadata `json:"metadata"`
}

var idPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsValidID reports whether s is a canonically formatted UUID. Identifiers
// are checked before any store access.
func IsValidID(s string) bool {
	if len(s) != 36 {
		return false
	}
	return idPattern.MatchString(s) || idPattern.MatchString(toLowerASCII(s))
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

// LevelName maps a depth to its tier label.
func LevelName(level int) string {
	switch level {
	case 0:
		return "Company"
	case 1:
		return "Division"
	case 2:
		return "Department"
	case 3:
		return "Team"
	default:
		return fmt.Sprintf("Level %d", level)
	}
}
