package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fleetops/core/schema"
)

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"is_admin"`
}

// Roles maps the legacy admin flag onto policy roles.
func (u *User) Roles() []string {
	if u == nil {
		return nil
	}
	if u.IsAdmin {
		return []string{"admin"}
	}
	return []string{"viewer"}
}

type UsersStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, u *User) (int64, error)
	Count(ctx context.Context) (int, error)
}

type usersStore struct {
	db      *sql.DB
	dialect schema.Dialect
}

func NewUsersStore(db *sql.DB, dialect schema.Dialect) UsersStore {
	return &usersStore{db: db, dialect: dialect}
}

func (s *usersStore) table() string {
	return s.dialect.QuoteIdent("user")
}

// FindByUsername returns nil, nil when no such user exists.
func (s *usersStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	var hash sql.NullString
	var admin sql.NullBool
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT id, username, password_hash, is_admin FROM %s WHERE username = %s`,
		s.table(), s.dialect.Placeholder(1)), strings.TrimSpace(username)).
		Scan(&u.ID, &u.Username, &hash, &admin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", username, err)
	}
	u.PasswordHash = hash.String
	u.IsAdmin = admin.Valid && admin.Bool
	return &u, nil
}

func (s *usersStore) Create(ctx context.Context, u *User) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (username, password_hash, is_admin) VALUES (%s, %s, %s) RETURNING id`,
		s.table(), s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3)),
		strings.TrimSpace(u.Username), u.PasswordHash, u.IsAdmin).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create user %s: %w", u.Username, err)
	}
	u.ID = id
	return id, nil
}

func (s *usersStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
