package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gekko.org/internal/org"
)

const structureColumns = `id, name, level, parent_id, path, created_at, updated_at`

func (s *Store) GetStructure(ctx context.Context, id string) (org.Structure, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+structureColumns+`
		from structures
		where id = $1
	`, id)
	st, err := scanStructure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return org.Structure{}, fmt.Errorf("%w: %s", org.ErrStructureNotFound, id)
	}
	return st, err
}

func (s *Store) ListStructures(ctx context.Context) ([]org.Structure, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+structureColumns+`
		from structures
		order by level, name
	`)
	if err != nil {
		return nil, err
	}
	return collectStructures(rows)
}

func (s *Store) ListStructuresByIDs(ctx context.Context, ids []string) ([]org.Structure, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+structureColumns+`
		from structures
		where id = any($1)
		order by level, name
	`, ids)
	if err != nil {
		return nil, err
	}
	return collectStructures(rows)
}

func (s *Store) FindByNameUnderParent(ctx context.Context, name, parentID string) (org.Structure, bool, error) {
	var row *sql.Row
	if parentID == "" {
		row = s.db.QueryRowContext(ctx, `
			select `+structureColumns+`
			from structures
			where name = $1 and level = 0
		`, name)
	} else {
		row = s.db.QueryRowContext(ctx, `
			select `+structureColumns+`
			from structures
			where name = $1 and parent_id = $2
		`, name, parentID)
	}
	st, err := scanStructure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return org.Structure{}, false, nil
	}
	if err != nil {
		return org.Structure{}, false, err
	}
	return st, true, nil
}

func (s *Store) FindByPath(ctx context.Context, path string) (org.Structure, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+structureColumns+`
		from structures
		where path = $1
	`, path)
	st, err := scanStructure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return org.Structure{}, false, nil
	}
	if err != nil {
		return org.Structure{}, false, err
	}
	return st, true, nil
}

func (s *Store) InsertStructure(ctx context.Context, st org.Structure) (org.Structure, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into structures (id, name, level, parent_id, path)
		values ($1, $2, $3, $4, $5)
		returning `+structureColumns+`
	`, uuid.NewString(), st.Name, st.Level, nullIfEmpty(st.ParentID), st.Path)
	created, err := scanStructure(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return org.Structure{}, fmt.Errorf("%w: path %q already exists", org.ErrPathConflict, st.Path)
			case pgErrForeignKeyViolation:
				return org.Structure{}, fmt.Errorf("%w: %s", org.ErrParentNotFound, st.ParentID)
			}
		}
		return org.Structure{}, err
	}
	return created, nil
}

// DescendantsOf resolves the accessible set in a single round trip: path
// prefix matches ride the text_pattern_ops index, granted ids are unioned in
// by primary key.
func (s *Store) DescendantsOf(ctx context.Context, paths, ids []string) ([]org.Structure, error) {
	if len(paths) == 0 && len(ids) == 0 {
		return nil, nil
	}
	patterns := make([]string, 0, len(paths))
	for _, p := range paths {
		patterns = append(patterns, p+"/%")
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+structureColumns+`
		from structures
		where path like any($1) or id = any($2)
		order by level, name
	`, patterns, ids)
	if err != nil {
		return nil, err
	}
	return collectStructures(rows)
}

func (s *Store) HierarchyStats(ctx context.Context, parentID string) (org.HierarchyStats, error) {
	var stats org.HierarchyStats
	err := s.db.QueryRowContext(ctx, `
		select count(*),
		       coalesce(max(level), 0),
		       count(*) filter (where $1 <> '' and parent_id::text = $1)
		from structures
	`, parentID).Scan(&stats.TotalStructures, &stats.MaxLevel, &stats.ChildrenCount)
	if err != nil {
		return org.HierarchyStats{}, err
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStructure(row rowScanner) (org.Structure, error) {
	var (
		st     org.Structure
		parent sql.NullString
	)
	if err := row.Scan(&st.ID, &st.Name, &st.Level, &parent, &st.Path, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return org.Structure{}, err
	}
	if parent.Valid {
		st.ParentID = parent.String
	}
	return st, nil
}

func collectStructures(rows *sql.Rows) ([]org.Structure, error) {
	defer rows.Close()
	var out []org.Structure
	for rows.Next() {
		st, err := scanStructure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
