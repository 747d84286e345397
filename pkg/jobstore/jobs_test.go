package jobstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), Config{
		Path: filepath.Join(t.TempDir(), "jobs.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestCreateAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.Create(ctx, CreateParams{
		Query:     "impact of solid state batteries on EV adoption",
		Breadth:   4,
		Depth:     2,
		Questions: []QuestionAnswer{
			{Question: "Which region matters most?", Answer: "Global"},
			{Question: "What timeframe?", Answer: "Next decade"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, StatusRunning, job.Status)
	assert.Equal(t, DefaultRequestedBy, job.RequestedBy)

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.Query, got.Query)
	assert.Equal(t, 4, got.Breadth)
	assert.Equal(t, 2, got.Depth)
	assert.Equal(t, job.Questions, got.Questions)
	assert.False(t, got.DirectSearch)
	assert.False(t, got.HasResult())
	assert.Nil(t, got.CompletedAt)
}

func TestGetMissingJob(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteIsWriteOnce(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.Create(ctx, CreateParams{Query: "q", Breadth: 2, Depth: 1})
	require.NoError(t, err)

	require.NoError(t, store.Complete(ctx, job.ID, "# Report\n\n## Sources\n"))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, got.Status)
	assert.True(t, got.HasResult())
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, time.Now(), *got.CompletedAt, time.Minute)

	// Second terminal transition must not overwrite the stored report.
	err = store.Complete(ctx, job.ID, "overwritten")
	assert.ErrorIs(t, err, ErrAlreadyFinished)

	err = store.Fail(ctx, job.ID, "error report")
	assert.ErrorIs(t, err, ErrAlreadyFinished)

	got, err = store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "# Report\n\n## Sources\n", *got.Result)
}

func TestFailStoresErrorReport(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.Create(ctx, CreateParams{Query: "q", Breadth: 2, Depth: 1})
	require.NoError(t, err)

	require.NoError(t, store.Fail(ctx, job.ID, "## Error Generating Research Report\n"))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
	assert.True(t, got.HasResult())
}

func TestFinishMissingJob(t *testing.T) {
	store := openTestStore(t)

	err := store.Complete(context.Background(), "missing", "report")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, CreateParams{Query: "first", Breadth: 1, Depth: 1})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := store.Create(ctx, CreateParams{Query: "second", Breadth: 1, Depth: 1, RequestedBy: "rivera"})
	require.NoError(t, err)

	jobs, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)

	mine, err := store.List(ctx, "rivera")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, second.ID, mine[0].ID)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "complete", StatusComplete.String())
	assert.Equal(t, "error", StatusError.String())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusComplete.Terminal())
	assert.True(t, StatusError.Terminal())
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

func TestOpenInMemory(t *testing.T) {
	store, err := Open(context.Background(), Config{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate(context.Background()))

	_, err = store.Create(context.Background(), CreateParams{Query: "q", Breadth: 1, Depth: 1})
	require.NoError(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))

	var version int
	err := store.DB().QueryRow(`SELECT schema_version FROM schema_meta WHERE id=1`).Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestWriteOnceUnderConcurrentFinishers(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.Create(ctx, CreateParams{Query: "q", Breadth: 1, Depth: 1})
	require.NoError(t, err)

	results := make(chan error, 2)
	go func() { results <- store.Complete(ctx, job.ID, "winner") }()
	go func() { results <- store.Fail(ctx, job.ID, "loser") }()

	var failures int
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			assert.True(t, errors.Is(err, ErrAlreadyFinished))
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one finisher should win")

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.Terminal())
	assert.True(t, got.HasResult())
}
