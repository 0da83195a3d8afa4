package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gekko.org/internal/org"
)

const userColumns = `id, name, email, role, spirit_animal, created_at, updated_at`

func (s *Store) GetUser(ctx context.Context, id string) (org.User, error) {
	var u org.User
	err := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.SpiritAnimal, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return org.User{}, fmt.Errorf("%w: %s", org.ErrUserNotFound, id)
	}
	if err != nil {
		return org.User{}, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]org.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+`
		from users
		order by name
	`)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (s *Store) SearchUsers(ctx context.Context, query string, limit int) ([]org.User, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+`
		from users
		where name ilike $1 or email ilike $1
		order by name
		limit $2
	`, pattern, limit)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (s *Store) InsertUser(ctx context.Context, nu org.NewUser) (org.User, error) {
	var u org.User
	err := s.db.QueryRowContext(ctx, `
		insert into users (id, name, email, role, spirit_animal)
		values ($1, $2, $3, $4, $5)
		returning `+userColumns+`
	`, uuid.NewString(), nu.Name, nu.Email, nu.Role, nu.SpiritAnimal).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.SpiritAnimal, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return org.User{}, fmt.Errorf("%w: %s", org.ErrEmailTaken, nu.Email)
		}
		return org.User{}, err
	}
	return u, nil
}

func collectUsers(rows *sql.Rows) ([]org.User, error) {
	defer rows.Close()
	var out []org.User
	for rows.Next() {
		var u org.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.SpiritAnimal, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
