package migrate

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(`
		create table a (id int);
		insert into a values (1);
		insert into a (note) values ('semi;colon');
	`)
	if len(stmts) != 3 {
		t.Fatalf("statements = %d, want 3", len(stmts))
	}
	if !strings.Contains(stmts[2], "semi;colon") {
		t.Errorf("quoted semicolon split the statement: %q", stmts[2])
	}
}

func TestListOrdersUpMigrations(t *testing.T) {
	m := NewManager(nil)
	names, err := m.list(".up.sql")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("no embedded up migrations found")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("migrations out of order: %q before %q", names[i-1], names[i])
		}
	}
	if names[0] != "0001_init.up.sql" {
		t.Errorf("first migration = %q", names[0])
	}
}

func TestUpAppliesPendingMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}))

	m := NewManager(db)
	names, err := m.list(".up.sql")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, name := range names {
		raw, err := fs.ReadFile(migrationFS, "sql/"+name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		mock.ExpectBegin()
		for _, stmt := range splitStatements(string(raw)) {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
		}
		mock.ExpectCommit()
		mock.ExpectExec("insert into schema_migrations").WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	}

	if err := m.Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpSkipsAppliedMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_init.up.sql"))

	if err := NewManager(db).Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
