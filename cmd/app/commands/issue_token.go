package commands

import (
	"fmt"
	"io"
	"time"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	accessService "github.com/braidmgr/braidmgr/internal/access/service"
)

// RunIssueToken signs a credential for a user and prints it.
func RunIssueToken(
	credentials accessService.CredentialService,
	writer io.Writer,
	input *accessDomain.IssueCredentialInput,
	format string,
) error {
	token, claims, err := credentials.Issue(input)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	if format == "json" {
		writeJSON(writer, struct {
			Token     string    `json:"token"`
			TokenID   string    `json:"token_id"`
			ExpiresAt time.Time `json:"expires_at"`
		}{token, claims.TokenID, claims.ExpiresAt})
		return nil
	}

	_, _ = fmt.Fprintf(writer, "Token: %s\n", token)
	_, _ = fmt.Fprintf(writer, "Expires at: %s\n", claims.ExpiresAt.Format(time.RFC3339))
	return nil
}
