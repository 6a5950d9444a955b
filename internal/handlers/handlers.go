package handlers

import (
	"database/sql"
	"errors"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	DB *sql.DB
}

// errNotAuthorized signals that a helper already wrote the error
// response; callers just return.
var errNotAuthorized = errors.New("not authorized")
