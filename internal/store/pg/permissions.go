package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gekko.org/internal/org"
)

func (s *Store) GetGrantsForUser(ctx context.Context, userID string) ([]org.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select up.id, st.id, st.name, st.path, st.level, st.parent_id, up.created_at
		from user_permissions up
		join structures st on st.id = up.structure_id
		where up.user_id = $1
		order by st.level, st.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []org.Grant
	for rows.Next() {
		var (
			g      org.Grant
			parent sql.NullString
		)
		if err := rows.Scan(&g.PermissionID, &g.StructureID, &g.StructureName, &g.Path, &g.Level, &parent, &g.AssignedAt); err != nil {
			return nil, err
		}
		if parent.Valid {
			g.ParentID = parent.String
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

func (s *Store) GrantExists(ctx context.Context, userID, structureID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists (
			select 1 from user_permissions
			where user_id = $1 and structure_id = $2
		)
	`, userID, structureID).Scan(&exists)
	return exists, err
}

func (s *Store) InsertGrant(ctx context.Context, userID, structureID string) (org.Permission, error) {
	var p org.Permission
	err := s.db.QueryRowContext(ctx, `
		insert into user_permissions (id, user_id, structure_id)
		values ($1, $2, $3)
		returning id, user_id, structure_id, created_at
	`, uuid.NewString(), userID, structureID).Scan(&p.ID, &p.UserID, &p.StructureID, &p.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return org.Permission{}, org.ErrAlreadyGranted
			case pgErrForeignKeyViolation:
				return org.Permission{}, fmt.Errorf("%w: %s", org.ErrStructureNotFound, structureID)
			}
		}
		return org.Permission{}, err
	}
	return p, nil
}

func (s *Store) DeleteGrant(ctx context.Context, userID, permissionID string) (org.Grant, error) {
	var g org.Grant
	err := s.db.QueryRowContext(ctx, `
		delete from user_permissions up
		using structures st
		where up.id = $1 and up.user_id = $2 and st.id = up.structure_id
		returning up.id, st.id, st.name, st.path, st.level, up.created_at
	`, permissionID, userID).Scan(&g.PermissionID, &g.StructureID, &g.StructureName, &g.Path, &g.Level, &g.AssignedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return org.Grant{}, org.ErrPermissionNotFound
	}
	if err != nil {
		return org.Grant{}, err
	}
	return g, nil
}

func (s *Store) CountGrantsForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from user_permissions where user_id = $1
	`, userID).Scan(&n)
	return n, err
}

// GrantsToStructures is one set-membership join for the whole accessible set,
// never a per-structure loop.
func (s *Store) GrantsToStructures(ctx context.Context, structureIDs []string) ([]org.GrantedUser, error) {
	if len(structureIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		select u.id, u.name, u.email, u.role, u.spirit_animal, u.created_at, u.updated_at,
		       st.id, st.name, st.path, st.level
		from user_permissions up
		join users u on u.id = up.user_id
		join structures st on st.id = up.structure_id
		where up.structure_id = any($1)
		order by st.level, u.name
	`, structureIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []org.GrantedUser
	for rows.Next() {
		var gu org.GrantedUser
		if err := rows.Scan(
			&gu.User.ID, &gu.User.Name, &gu.User.Email, &gu.User.Role, &gu.User.SpiritAnimal,
			&gu.User.CreatedAt, &gu.User.UpdatedAt,
			&gu.StructureID, &gu.StructureName, &gu.StructurePath, &gu.StructureLevel,
		); err != nil {
			return nil, err
		}
		out = append(out, gu)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountGrantsByStructure(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		select structure_id, count(*)
		from user_permissions
		group by structure_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *Store) CountGrantedUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		select count(distinct user_id) from user_permissions
	`).Scan(&n)
	return n, err
}

// ReplaceGrantsForUser applies the replace-all diff inside one transaction so
// a concurrent reader never observes a half-replaced grant set.
func (s *Store) ReplaceGrantsForUser(ctx context.Context, userID string, added, removed []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if len(removed) > 0 {
		if _, err := tx.ExecContext(ctx, `
			delete from user_permissions
			where user_id = $1 and structure_id = any($2)
		`, userID, removed); err != nil {
			return err
		}
	}
	for _, structureID := range added {
		if _, err := tx.ExecContext(ctx, `
			insert into user_permissions (id, user_id, structure_id)
			values ($1, $2, $3)
			on conflict (user_id, structure_id) do nothing
		`, uuid.NewString(), userID, structureID); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return fmt.Errorf("%w: %s", org.ErrStructureNotFound, structureID)
			}
			return err
		}
	}
	return tx.Commit()
}
