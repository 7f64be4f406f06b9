package orchestrator

import (
	"fmt"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	"github.com/braidmgr/braidmgr/internal/errors"
)

// Orchestrator errors.
var (
	// ErrOperationFailed indicates the business operation returned an error. Any
	// transaction it ran in has been rolled back.
	ErrOperationFailed = errors.New("operation failed")
)

// DeniedError reports a refused action together with the decision that refused it.
// It matches accessDomain.ErrPermissionDenied with errors.Is.
type DeniedError struct {
	Decision accessDomain.PermissionDecision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: rule %s", accessDomain.ErrPermissionDenied.Error(), e.Decision.Rule)
}

func (e *DeniedError) Unwrap() error {
	return accessDomain.ErrPermissionDenied
}
