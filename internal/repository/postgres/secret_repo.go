package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cpaas-console/internal/domain/secrets"

	"github.com/jackc/pgx/v5"
)

// SecretRepository stores one verbatim secret bundle per operator.
type SecretRepository struct {
	db *DB
}

func NewSecretRepository(db *DB) *SecretRepository {
	return &SecretRepository{db: db}
}

// Get returns the stored bundle, or an empty one when nothing was saved.
func (r *SecretRepository) Get(ctx context.Context, operatorID string) (*secrets.StoredBundle, error) {
	query := `
		SELECT operator_id, secrets, updated_at
		FROM secret_bundles
		WHERE operator_id = $1
	`

	var (
		out  secrets.StoredBundle
		data []byte
	)
	err := r.db.Pool().QueryRow(ctx, query, operatorID).Scan(&out.OperatorID, &data, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &secrets.StoredBundle{OperatorID: operatorID, Secrets: secrets.Bundle{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load secret bundle: %w", err)
	}

	out.Secrets = secrets.Bundle{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out.Secrets); err != nil {
			return nil, fmt.Errorf("failed to unmarshal secret bundle: %w", err)
		}
	}
	return &out, nil
}

// GetBundle is Get without the row metadata.
func (r *SecretRepository) GetBundle(ctx context.Context, operatorID string) (secrets.Bundle, error) {
	stored, err := r.Get(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	return stored.Secrets, nil
}

// Put replaces the whole bundle.
func (r *SecretRepository) Put(ctx context.Context, operatorID string, bundle secrets.Bundle) (*secrets.StoredBundle, error) {
	if bundle == nil {
		bundle = secrets.Bundle{}
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal secret bundle: %w", err)
	}

	query := `
		INSERT INTO secret_bundles (operator_id, secrets, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (operator_id)
		DO UPDATE SET secrets = EXCLUDED.secrets, updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`

	out := &secrets.StoredBundle{OperatorID: operatorID, Secrets: bundle}
	if err := r.db.Pool().QueryRow(ctx, query, operatorID, data).Scan(&out.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to store secret bundle: %w", err)
	}
	return out, nil
}

func (r *SecretRepository) Delete(ctx context.Context, operatorID string) error {
	if _, err := r.db.Pool().Exec(ctx, `DELETE FROM secret_bundles WHERE operator_id = $1`, operatorID); err != nil {
		return fmt.Errorf("failed to delete secret bundle: %w", err)
	}
	return nil
}
