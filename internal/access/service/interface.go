// Package service provides credential issuance and verification.
package service

import (
	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
)

// CredentialService signs and verifies bearer credentials.
type CredentialService interface {
	// Issue signs a credential for the given identity and returns it with its claims.
	Issue(input *accessDomain.IssueCredentialInput) (string, *accessDomain.Claims, error)

	// Verify checks signature, algorithm, expiry and required claims.
	//
	// Returns ErrCredentialExpired for an expired but otherwise well-formed credential
	// and ErrCredentialInvalid for everything else.
	Verify(credential string) (*accessDomain.Claims, error)
}
