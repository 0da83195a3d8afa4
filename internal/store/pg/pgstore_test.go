package pg

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"gekko.org/internal/org"
)

// passthrough lets slice arguments (any($1) queries) reach sqlmock without
// the default converter rejecting them.
type passthrough struct{}

func (passthrough) ConvertValue(v any) (driver.Value, error) { return v, nil }

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passthrough{}))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func structureRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "level", "parent_id", "path", "created_at", "updated_at"})
}

func TestGetStructure(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("select id, name, level, parent_id, path, created_at, updated_at.*from structures.*where id =").
		WithArgs("st-1").
		WillReturnRows(structureRows().AddRow("st-1", "Engineering", 1, "st-root", "acme/engineering", now, now))

	st, err := store.GetStructure(context.Background(), "st-1")
	if err != nil {
		t.Fatalf("GetStructure: %v", err)
	}
	if st.Name != "Engineering" || st.Path != "acme/engineering" || st.ParentID != "st-root" {
		t.Fatalf("unexpected structure: %+v", st)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetStructureNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, name, level, parent_id, path, created_at, updated_at.*from structures").
		WithArgs("missing").
		WillReturnRows(structureRows())

	_, err := store.GetStructure(context.Background(), "missing")
	if !errors.Is(err, org.ErrStructureNotFound) {
		t.Fatalf("got %v, want ErrStructureNotFound", err)
	}
}

func TestInsertStructureConstraintMapping(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("insert into structures").
		WithArgs(sqlmock.AnyArg(), "Engineering", 1, sqlmock.AnyArg(), "acme/engineering").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := store.InsertStructure(ctx, org.Structure{Name: "Engineering", Level: 1, ParentID: "st-root", Path: "acme/engineering"})
	if !errors.Is(err, org.ErrPathConflict) {
		t.Fatalf("got %v, want ErrPathConflict on unique violation", err)
	}

	mock.ExpectQuery("insert into structures").
		WithArgs(sqlmock.AnyArg(), "Engineering", 1, sqlmock.AnyArg(), "acme/engineering").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	_, err = store.InsertStructure(ctx, org.Structure{Name: "Engineering", Level: 1, ParentID: "st-root", Path: "acme/engineering"})
	if !errors.Is(err, org.ErrParentNotFound) {
		t.Fatalf("got %v, want ErrParentNotFound on fk violation", err)
	}
}

func TestDescendantsOfBuildsPrefixPatterns(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`select id, name, level, parent_id, path, created_at, updated_at.*from structures.*where path like any\(\$1\) or id = any\(\$2\)`).
		WithArgs([]string{"acme/engineering/%"}, []string{"st-eng"}).
		WillReturnRows(structureRows().
			AddRow("st-eng", "Engineering", 1, "st-root", "acme/engineering", now, now).
			AddRow("st-fe", "Frontend", 2, "st-eng", "acme/engineering/frontend", now, now))

	out, err := store.DescendantsOf(context.Background(), []string{"acme/engineering"}, []string{"st-eng"})
	if err != nil {
		t.Fatalf("DescendantsOf: %v", err)
	}
	if len(out) != 2 || out[1].Path != "acme/engineering/frontend" {
		t.Fatalf("unexpected descendants: %+v", out)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDescendantsOfEmptyInput(t *testing.T) {
	store, _ := newMockStore(t)
	out, err := store.DescendantsOf(context.Background(), nil, nil)
	if err != nil || out != nil {
		t.Fatalf("empty input should short-circuit, got %v, %v", out, err)
	}
}

func TestInsertGrantConstraintMapping(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("insert into user_permissions").
		WithArgs(sqlmock.AnyArg(), "u-1", "st-1").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	if _, err := store.InsertGrant(ctx, "u-1", "st-1"); !errors.Is(err, org.ErrAlreadyGranted) {
		t.Fatalf("got %v, want ErrAlreadyGranted", err)
	}

	mock.ExpectQuery("insert into user_permissions").
		WithArgs(sqlmock.AnyArg(), "u-1", "st-1").
		WillReturnError(&pgconn.PgError{Code: "23503"})
	if _, err := store.InsertGrant(ctx, "u-1", "st-1"); !errors.Is(err, org.ErrStructureNotFound) {
		t.Fatalf("got %v, want ErrStructureNotFound", err)
	}
}

func TestDeleteGrantNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("delete from user_permissions up.*using structures st").
		WithArgs("perm-1", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "id", "name", "path", "level", "created_at"}))

	_, err := store.DeleteGrant(context.Background(), "u-1", "perm-1")
	if !errors.Is(err, org.ErrPermissionNotFound) {
		t.Fatalf("got %v, want ErrPermissionNotFound", err)
	}
}

func TestGrantsToStructuresSingleQuery(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`where up.structure_id = any\(\$1\)`).
		WithArgs([]string{"st-eng", "st-fe"}).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "email", "role", "spirit_animal", "created_at", "updated_at",
			"st_id", "st_name", "st_path", "st_level",
		}).
			AddRow("u-1", "Alice", "alice@acme.test", "Engineer", "Otter", now, now, "st-eng", "Engineering", "acme/engineering", 1).
			AddRow("u-2", "Bob", "bob@acme.test", "Engineer", "Fox", now, now, "st-fe", "Frontend", "acme/engineering/frontend", 2))

	out, err := store.GrantsToStructures(context.Background(), []string{"st-eng", "st-fe"})
	if err != nil {
		t.Fatalf("GrantsToStructures: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("rows = %d, want 2", len(out))
	}
	if out[0].User.Name != "Alice" || out[0].StructurePath != "acme/engineering" {
		t.Fatalf("unexpected row: %+v", out[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceGrantsForUserTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`delete from user_permissions.*where user_id = \$1 and structure_id = any\(\$2\)`).
		WithArgs("u-1", []string{"st-old"}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into user_permissions").
		WithArgs(sqlmock.AnyArg(), "u-1", "st-new").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.ReplaceGrantsForUser(context.Background(), "u-1", []string{"st-new"}, []string{"st-old"})
	if err != nil {
		t.Fatalf("ReplaceGrantsForUser: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceGrantsForUserRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into user_permissions").
		WithArgs(sqlmock.AnyArg(), "u-1", "st-ghost").
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	err := store.ReplaceGrantsForUser(context.Background(), "u-1", []string{"st-ghost"}, nil)
	if !errors.Is(err, org.ErrStructureNotFound) {
		t.Fatalf("got %v, want ErrStructureNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertUserDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into users").
		WithArgs(sqlmock.AnyArg(), "Ada", "ada@acme.test", "Engineer", "Otter").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := store.InsertUser(context.Background(), org.NewUser{
		Name: "Ada", Email: "ada@acme.test", Role: "Engineer", SpiritAnimal: "Otter",
	})
	if !errors.Is(err, org.ErrEmailTaken) {
		t.Fatalf("got %v, want ErrEmailTaken", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, name, email, role, spirit_animal, created_at, updated_at.*from users").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role", "spirit_animal", "created_at", "updated_at"}))

	_, err := store.GetUser(context.Background(), "missing")
	if !errors.Is(err, org.ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
}

func TestHierarchyStats(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select count\(\*\),.*coalesce\(max\(level\), 0\)`).
		WithArgs("st-root").
		WillReturnRows(sqlmock.NewRows([]string{"count", "max", "children"}).AddRow(5, 2, 3))

	stats, err := store.HierarchyStats(context.Background(), "st-root")
	if err != nil {
		t.Fatalf("HierarchyStats: %v", err)
	}
	if stats.TotalStructures != 5 || stats.MaxLevel != 2 || stats.ChildrenCount != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
