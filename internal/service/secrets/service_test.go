package secrets

import (
	"context"
	"testing"
	"time"

	"cpaas-console/internal/domain/secrets"
	xerrors "cpaas-console/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memRepo struct {
	rows map[string]secrets.Bundle
}

func (m *memRepo) Get(_ context.Context, op string) (*secrets.StoredBundle, error) {
	b, ok := m.rows[op]
	if !ok {
		b = secrets.Bundle{}
	}
	return &secrets.StoredBundle{OperatorID: op, Secrets: b}, nil
}

func (m *memRepo) Put(_ context.Context, op string, b secrets.Bundle) (*secrets.StoredBundle, error) {
	m.rows[op] = b
	return &secrets.StoredBundle{OperatorID: op, Secrets: b, UpdatedAt: time.Now()}, nil
}

func (m *memRepo) Delete(_ context.Context, op string) error {
	delete(m.rows, op)
	return nil
}

func TestPutStoresVerbatim(t *testing.T) {
	repo := &memRepo{rows: map[string]secrets.Bundle{}}
	svc := NewSecretService(repo, zap.NewNop())
	ctx := context.Background()

	bundle := secrets.Bundle{
		secrets.KeyFacebookAccessToken: "  EAAB token with spaces  ",
		"customKey":                    "x",
	}
	_, err := svc.Put(ctx, "op-1", bundle)
	require.NoError(t, err)

	got, err := svc.Get(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, "  EAAB token with spaces  ", got.Secrets[secrets.KeyFacebookAccessToken])
	assert.Equal(t, "x", got.Secrets["customKey"])
}

func TestPutRejectsBlankKey(t *testing.T) {
	svc := NewSecretService(&memRepo{rows: map[string]secrets.Bundle{}}, zap.NewNop())

	_, err := svc.Put(context.Background(), "op-1", secrets.Bundle{" ": "v"})
	assert.ErrorIs(t, err, xerrors.ErrValidation)
}

func TestGetEmptyBundle(t *testing.T) {
	svc := NewSecretService(&memRepo{rows: map[string]secrets.Bundle{}}, zap.NewNop())

	got, err := svc.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got.Secrets)
}

func TestClear(t *testing.T) {
	repo := &memRepo{rows: map[string]secrets.Bundle{"op-1": {"a": "b"}}}
	svc := NewSecretService(repo, zap.NewNop())

	require.NoError(t, svc.Clear(context.Background(), "op-1"))
	assert.Empty(t, repo.rows)
}
