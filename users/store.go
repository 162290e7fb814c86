package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	// `pgconn` exposes PostgreSQL error codes and constraint names.
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/user/users-service/apperror"
	"github.com/user/users-service/db"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

// Queries use `?` placeholders and go through Rebind, so the same text serves
// Postgres ($1, $2, ...) and SQLite.
const (
	listUsersQuery = `SELECT id, username, email, password, active, created_at
		FROM users
		ORDER BY id`
	getUserByIDQuery = `SELECT id, username, email, password, active, created_at
		FROM users
		WHERE id = ?`
	emailTakenQuery    = `SELECT EXISTS (SELECT 1 FROM users WHERE email = ?)`
	usernameTakenQuery = `SELECT EXISTS (SELECT 1 FROM users WHERE username = ?)`
	insertUserQuery    = `INSERT INTO users (username, email, password, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`
)

// Store is the persistence contract of the users module.
// Every method returns either nil or an *apperror.AppError whose Type tells the
// caller what happened (NotFoundError, ConflictError, DatabaseError).
type Store interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, user *User) (*User, error)
}

// SQLStore implements Store over a sqlx pool (Postgres via pgx, or SQLite).
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// ListUsers returns every user in insertion order. An empty table yields an empty, non-nil slice.
func (s *SQLStore) ListUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	if err := s.db.SelectContext(ctx, &users, s.db.Rebind(listUsersQuery)); err != nil {
		return nil, apperror.NewDatabaseError("failed to list users", err)
	}
	return users, nil
}

// GetUserByID returns the user with the given id, or a NotFoundError.
func (s *SQLStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, s.db.Rebind(getUserByIDQuery), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFoundError(MsgUserNotFound, nil)
		}
		return nil, apperror.NewDatabaseError(fmt.Sprintf("failed to get user %d", id), err)
	}
	return &user, nil
}

// CreateUser inserts user inside one transaction and fills in its ID.
//
// Email and username are pre-checked so the common duplicate case gets a precise
// message. The pre-check is a read-then-write race; two concurrent creations can
// both pass it, and then the unique constraints decide. That path is mapped to the
// same ConflictError after the transaction has been rolled back.
func (s *SQLStore) CreateUser(ctx context.Context, user *User) (*User, error) {
	err := db.WithTx(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := checkTaken(ctx, tx, emailTakenQuery, user.Email, MsgEmailExists); err != nil {
			return err
		}
		if err := checkTaken(ctx, tx, usernameTakenQuery, user.Username, MsgUsernameExists); err != nil {
			return err
		}

		return tx.QueryRowxContext(ctx, tx.Rebind(insertUserQuery),
			user.Username, user.Email, user.Password, user.Active, user.CreatedAt,
		).Scan(&user.ID)
	})
	if err != nil {
		if _, ok := apperror.FromError(err); ok {
			return nil, err
		}
		if conflict := conflictFromUniqueViolation(err); conflict != nil {
			return nil, conflict
		}
		return nil, apperror.NewDatabaseError("failed to create user", err)
	}
	return user, nil
}

func checkTaken(ctx context.Context, tx *sqlx.Tx, query, value, msg string) error {
	var taken bool
	if err := tx.GetContext(ctx, &taken, tx.Rebind(query), value); err != nil {
		return apperror.NewDatabaseError("failed to check uniqueness", err)
	}
	if taken {
		return apperror.NewConflictError(msg, nil)
	}
	return nil
}

// conflictFromUniqueViolation maps a unique-constraint error from either backend to
// a ConflictError naming the duplicated field. It returns nil for any other error.
func conflictFromUniqueViolation(err error) *apperror.AppError {
	var detail string

	var pgErr *pgconn.PgError
	var sqliteErr *sqlite.Error
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		// Constraint names come from the migration: users_email_key, users_username_key.
		detail = pgErr.ConstraintName
	case errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		// "UNIQUE constraint failed: users.email"
		detail = sqliteErr.Error()
	default:
		return nil
	}

	switch {
	case strings.Contains(detail, "email"):
		return apperror.NewConflictError(MsgEmailExists, err)
	case strings.Contains(detail, "username"):
		return apperror.NewConflictError(MsgUsernameExists, err)
	default:
		return apperror.NewConflictError(MsgInvalidPayload, err)
	}
}
