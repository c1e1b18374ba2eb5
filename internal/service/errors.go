package service

import "errors"

// Sentinel errors returned by services. Handlers map each to exactly one
// HTTP status so the wire surface stays predictable.
var (
	ErrQuotaExceeded  = errors.New("quota exceeded")
	ErrStorageBackend = errors.New("storage backend unavailable")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrConflict       = errors.New("conflict")
	ErrTooLarge       = errors.New("file too large")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")

	ErrFolderNotEmpty = errors.New("folder is not empty")
	ErrNameTaken      = errors.New("name already in use")
)
