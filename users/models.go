// Package users encapsulates all functionality related to user management:
// the User entity, its relational store, password hashing, the service holding
// the creation rules, and the HTTP handlers (JSON API and server-rendered index).
package users

import "time"

// User represents a row of the `users` table.
// `db` tags map columns for sqlx; the struct is never serialized directly,
// API responses go through UserResponse so the password hash cannot leak.
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	Email     string    `db:"email"`
	Password  string    `db:"password"` // bcrypt hash, never plaintext
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

// ToResponse returns the public representation of the user.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Active:   u.Active,
	}
}
