package domain

import (
	"github.com/braidmgr/braidmgr/internal/errors"
)

// Access errors.
var (
	// ErrCredentialInvalid indicates a malformed credential, a bad signature or missing claims.
	ErrCredentialInvalid = errors.Wrap(errors.ErrUnauthorized, "invalid credential")

	// ErrCredentialExpired indicates a well-formed credential past its expiry.
	ErrCredentialExpired = errors.Wrap(errors.ErrUnauthorized, "credential expired")

	// ErrPermissionDenied indicates the permission table refused the action.
	ErrPermissionDenied = errors.Wrap(errors.ErrForbidden, "permission denied")
)
