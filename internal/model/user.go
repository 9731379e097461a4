package model

import "time"

// User represents an application user record as stored in the `users`
// table.  The credential column keeps its historical name pw_hash but now
// always holds a bcrypt hash.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address.
//	PasswordHash – bcrypt hashed password (users.pw_hash).
//	Role         – role name; signup assigns ANALYST.
//	Verified     – verification flag; signup marks users verified.
//	CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.pw_hash
	Role         string    // users.role
	Verified     bool      // users.verified
	CreatedAt    time.Time // users.created_at
}

// DefaultRole is assigned to every self-registered user.
const DefaultRole = "ANALYST"
