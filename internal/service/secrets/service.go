package secrets

import (
	"context"
	"fmt"

	"cpaas-console/internal/domain/secrets"
	xerrors "cpaas-console/internal/pkg/errors"

	"go.uber.org/zap"
)

type Repository interface {
	Get(ctx context.Context, operatorID string) (*secrets.StoredBundle, error)
	Put(ctx context.Context, operatorID string, bundle secrets.Bundle) (*secrets.StoredBundle, error)
	Delete(ctx context.Context, operatorID string) error
}

// SecretService stores integration credentials verbatim. Values are not
// encrypted at rest.
type SecretService struct {
	repo   Repository
	logger *zap.Logger
}

func NewSecretService(repo Repository, logger *zap.Logger) *SecretService {
	return &SecretService{repo: repo, logger: logger}
}

func (s *SecretService) Get(ctx context.Context, operatorID string) (*secrets.StoredBundle, error) {
	out, err := s.repo.Get(ctx, operatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get secrets: %w", err)
	}
	return out, nil
}

// Put replaces the operator's whole bundle.
func (s *SecretService) Put(ctx context.Context, operatorID string, bundle secrets.Bundle) (*secrets.StoredBundle, error) {
	if err := bundle.Validate(); err != nil {
		return nil, xerrors.Validation("%v", err)
	}

	out, err := s.repo.Put(ctx, operatorID, bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to save secrets: %w", err)
	}

	// key names only; values never reach the log
	keys := make([]string, 0, len(bundle))
	for k := range bundle {
		keys = append(keys, k)
	}
	s.logger.Info("secret bundle replaced",
		zap.String("operator_id", operatorID),
		zap.Strings("keys", keys),
	)
	return out, nil
}

func (s *SecretService) Clear(ctx context.Context, operatorID string) error {
	if err := s.repo.Delete(ctx, operatorID); err != nil {
		return fmt.Errorf("failed to clear secrets: %w", err)
	}
	return nil
}
