package domain

import (
	"github.com/braidmgr/braidmgr/internal/errors"
)

// Audit errors.
var (
	// ErrAuditWriteFailed indicates the audit insert failed. The enclosing transaction must roll back.
	ErrAuditWriteFailed = errors.New("audit write failed")

	// ErrNoTransaction indicates Record was called outside a transaction.
	ErrNoTransaction = errors.New("audit entry requires a transaction")
)
