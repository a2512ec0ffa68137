// Package repository contains data access logic separated from HTTP
// handlers. All reads honour the soft-delete convention: rows with
// deleted = 1 are treated as absent. Sentinel errors let handlers map
// failures to HTTP responses without string matching; absent rows use
// the per-entity sentinels (ErrUserNotFound, ErrProviderNotFound, ...).
package repository

import "errors"

// ErrConflict is returned when a write cannot proceed because of
// conflicting state, such as a duplicate category name. Handlers
// translate this into HTTP 409.
var ErrConflict = errors.New("conflict")
