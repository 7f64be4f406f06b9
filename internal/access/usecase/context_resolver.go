package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	accessService "github.com/braidmgr/braidmgr/internal/access/service"
)

type contextResolver struct {
	credentials accessService.CredentialService
	directory   LocatorResolver
	logger      *slog.Logger
}

// NewContextResolver creates a ContextResolver.
func NewContextResolver(
	credentials accessService.CredentialService,
	directory LocatorResolver,
	logger *slog.Logger,
) ContextResolver {
	return &contextResolver{
		credentials: credentials,
		directory:   directory,
		logger:      logger,
	}
}

func (r *contextResolver) Resolve(
	ctx context.Context,
	credential, correlationID string,
) (*accessDomain.RequestContext, error) {
	claims, err := r.credentials.Verify(credential)
	if err != nil {
		r.logger.Debug("credential rejected",
			slog.String("correlation_id", correlationID),
			slog.Any("error", err))
		return nil, err
	}

	locator, err := r.directory.ResolveLocator(ctx, claims.TenantID)
	if err != nil {
		r.logger.Debug("tenant resolution failed",
			slog.String("correlation_id", correlationID),
			slog.String("tenant_id", claims.TenantID),
			slog.Any("error", err))
		return nil, err
	}

	if correlationID == "" {
		correlationID = uuid.Must(uuid.NewV7()).String()
	}

	return accessDomain.NewRequestContext(claims, locator, correlationID), nil
}
