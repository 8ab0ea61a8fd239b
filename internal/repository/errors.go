package repository

import "errors"

// This file defines custom errors specific to the repository layer.
// This allows the repository to communicate outcomes in a database-agnostic way.

// ErrNotFound is returned when a lookup or delete targets a transcript that
// does not exist. It hides the driver's own error (`sql.ErrNoRows`,
// `redis.Nil`) from callers.
var ErrNotFound = errors.New("repository: not found")
