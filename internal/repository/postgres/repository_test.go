package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"cpaas-console/internal/domain/messaging"
	"cpaas-console/internal/domain/secrets"
	xerrors "cpaas-console/internal/pkg/errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB connects to TEST_DATABASE_URL and migrates into a throwaway
// schema, so runs never see each other's rows.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := "test_" + strings.ToLower(ulid.Make().String())

	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		admin.Close()
	})

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := NewDB(pool)
	require.NoError(t, db.Migrate(ctx))
	return db
}

func newJob(id, operatorID string, started time.Time, failed ...string) *messaging.DispatchJob {
	return &messaging.DispatchJob{
		ID:               id,
		OperatorID:       operatorID,
		Channel:          messaging.ChannelSMS,
		MessageLength:    5,
		Total:            3,
		Succeeded:        3 - len(failed),
		FailedRecipients: pq.StringArray(append([]string{}, failed...)),
		StartedAt:        started.UTC().Truncate(time.Microsecond),
		FinishedAt:       started.Add(time.Second).UTC().Truncate(time.Microsecond),
	}
}

func TestDispatchRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewDispatchRepository(newTestDB(t))

	job := newJob("job-1", "op-1", time.Now(), "+15550001", "a,b@example.com")
	records := []messaging.DispatchRecord{
		{JobID: "job-1", Position: 0, Recipient: "+15550000", Success: true, Detail: `{"id":"m1"}`},
		{JobID: "job-1", Position: 1, Recipient: "+15550001", Detail: "backend returned 500"},
		{JobID: "job-1", Position: 2, Recipient: "a,b@example.com", Detail: "rejected"},
	}
	require.NoError(t, repo.RecordDispatch(ctx, job, records))

	got, gotRecords, err := repo.GetJob(ctx, "op-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"+15550001", "a,b@example.com"}, []string(got.FailedRecipients))
	assert.Equal(t, messaging.ChannelSMS, got.Channel)
	assert.Equal(t, 1, got.Succeeded)
	assert.True(t, job.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, records, gotRecords)

	_, _, err = repo.GetJob(ctx, "op-2", "job-1")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestDispatchRepositoryEmptyFailures(t *testing.T) {
	ctx := context.Background()
	repo := NewDispatchRepository(newTestDB(t))

	require.NoError(t, repo.RecordDispatch(ctx, newJob("job-1", "op-1", time.Now()), nil))

	got, records, err := repo.GetJob(ctx, "op-1", "job-1")
	require.NoError(t, err)
	assert.Empty(t, got.FailedRecipients)
	assert.Empty(t, records)
}

func TestDispatchRepositoryBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewDispatchRepository(newTestDB(t))

	// the duplicated position breaks the primary key halfway through the batch
	records := []messaging.DispatchRecord{
		{JobID: "job-1", Position: 0, Recipient: "+1", Success: true},
		{JobID: "job-1", Position: 0, Recipient: "+2", Success: true},
	}
	err := repo.RecordDispatch(ctx, newJob("job-1", "op-1", time.Now()), records)
	require.Error(t, err)

	_, _, err = repo.GetJob(ctx, "op-1", "job-1")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestDispatchRepositoryListRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewDispatchRepository(newTestDB(t))

	base := time.Now()
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("job-%d", i)
		require.NoError(t, repo.RecordDispatch(ctx, newJob(id, "op-1", base.Add(time.Duration(i)*time.Minute)), nil))
	}
	require.NoError(t, repo.RecordDispatch(ctx, newJob("other", "op-2", base), nil))

	jobs, err := repo.ListRecent(ctx, "op-1", 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-2", jobs[0].ID)
	assert.Equal(t, "job-1", jobs[1].ID)

	jobs, err = repo.ListRecent(ctx, "op-3", 10)
	require.NoError(t, err)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)
}

func TestSecretRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSecretRepository(newTestDB(t))

	empty, err := repo.Get(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, secrets.Bundle{}, empty.Secrets)

	_, err = repo.Put(ctx, "op-1", secrets.Bundle{
		secrets.KeyFacebookAccessToken: "EAAB tok",
		secrets.KeyFacebookPageID:      "page-9",
	})
	require.NoError(t, err)

	stored, err := repo.Put(ctx, "op-1", secrets.Bundle{secrets.KeyFacebookPageID: "page-10"})
	require.NoError(t, err)
	assert.False(t, stored.UpdatedAt.IsZero())

	bundle, err := repo.GetBundle(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, secrets.Bundle{secrets.KeyFacebookPageID: "page-10"}, bundle)

	require.NoError(t, repo.Delete(ctx, "op-1"))
	bundle, err = repo.GetBundle(ctx, "op-1")
	require.NoError(t, err)
	assert.Empty(t, bundle)
}
