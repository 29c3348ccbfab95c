package infrastructure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/subsync-go/internal/domain"
)

func setupTaskStore(t *testing.T) (*SQLiteTaskStore, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "taskstore-test-*")
	require.NoError(t, err)

	store, err := NewSQLiteTaskStore(filepath.Join(tmpDir, "queue.db"))
	require.NoError(t, err)

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return store, cleanup
}

func createTask(t *testing.T, store *SQLiteTaskStore, songID, queueID string) *domain.DownloadTask {
	t.Helper()
	task := domain.NewDownloadTask(songID, alice, "token", queueID)
	require.NoError(t, store.Create(task))
	return task
}

func TestTaskStore_CreateAssignsMonotonicSequence(t *testing.T) {
	store, cleanup := setupTaskStore(t)
	defer cleanup()

	queueID, err := store.CurrentQueueID()
	require.NoError(t, err)

	t1 := createTask(t, store, "s1", queueID)
	t2 := createTask(t, store, "s2", queueID)
	t3 := createTask(t, store, "s3", queueID)

	assert.Less(t, t1.EnqueueSeq, t2.EnqueueSeq)
	assert.Less(t, t2.EnqueueSeq, t3.EnqueueSeq)
}

func TestTaskStore_NextQueuedFollowsEnqueueOrder(t *testing.T) {
	store, cleanup := setupTaskStore(t)
	defer cleanup()

	queueID, err := store.CurrentQueueID()
	require.NoError(t, err)

	t1 := createTask(t, store, "s1", queueID)
	t2 := createTask(t, store, "s2", queueID)

	next, err := store.NextQueued(queueID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, t1.ID, next.ID)

	// Completing the head moves the line forward
	t1.MarkCompleted("/media/s1.mp3")
	require.NoError(t, store.Update(t1))

	next, err = store.NextQueued(queueID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, t2.ID, next.ID)
}

func TestTaskStore_NextQueuedIncludesRetryWait(t *testing.T) {
	store, cleanup := setupTaskStore(t)
	defer cleanup()

	queueID, err := store.CurrentQueueID()
	require.NoError(t, err)

	task := createTask(t, store, "s1", queueID)
	task.MarkRetryWait(assert.AnError)
	require.NoError(t, store.Update(task))

	next, err := store.NextQueued(queueID)
	require.NoError(t, err)
	require.NotNil(t, next, "a retry_wait task left by a dead process is runnable")
	assert.Equal(t, task.ID, next.ID)
}

func TestTaskStore_NextQueuedNilWhenDrained(t *testing.T) {
	store, cleanup := setupTaskStore(t)
	defer cleanup()

	queueID, err := store.CurrentQueueID()
	require.NoError(t, err)

	next, err := store.NextQueued(queueID)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestTaskStore_QueueIdentityLifecycle(t *testing.T) {
	store, cleanup := setupTaskStore(t)
	defer cleanup()

	// Peek never generates
	peeked, err := store.PeekQueueID()
	require.NoError(t, err)
	assert.Empty(t, peeked)

	// CurrentQueueID generates lazily and is stable across calls
	first, err := store.CurrentQueueID()
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	again, err := store.CurrentQueueID()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	peeked, err = store.PeekQueueID()
	require.NoError(t, err)
	assert.Equal(t, first, peeked)
}

func TestTaskStore_RotateQueueIDStrandsOldTasks(t *testing.T) {
	store, cleanup := setupTaskStore(t)
	defer cleanup()

	oldID, err := store.CurrentQueueID()
	require.NoError(t, err)
	createTask(t, store, "s1", oldID)

	require.NoError(t, store.RotateQueueID())

	// No identity exists until the next submission asks for one
	peeked, err := store.PeekQueueID()
	require.NoError(t, err)
	assert.Empty(t, peeked)

	newID, err := store.CurrentQueueID()
	require.NoError(t, err)
	assert.NotEqual(t, oldID, newID)

	// The old task still exists but is unreachable under the new identity
	next, err := store.NextQueued(newID)
	require.NoError(t, err)
	assert.Nil(t, next)

	stranded, err := store.NextQueued(oldID)
	require.NoError(t, err)
	require.NotNil(t, stranded)
	assert.Equal(t, "s1", stranded.SongID)
}

func TestTaskStore_ResetOrphanedRunning(t *testing.T) {
	store, cleanup := setupTaskStore(t)
	defer cleanup()

	queueID, err := store.CurrentQueueID()
	require.NoError(t, err)

	running := createTask(t, store, "s1", queueID)
	running.MarkRunning()
	require.NoError(t, store.Update(running))

	completed := createTask(t, store, "s2", queueID)
	completed.MarkCompleted("/media/s2.mp3")
	require.NoError(t, store.Update(completed))

	recovered, err := store.ResetOrphanedRunning()
	require.NoError(t, err)
	assert.Equal(t, int64(1), recovered)

	found, err := store.FindByID(running.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskQueued, found.Status)
	assert.Equal(t, running.EnqueueSeq, found.EnqueueSeq, "recovery preserves queue position")

	// Terminal tasks are untouched
	found, err = store.FindByID(completed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, found.Status)
}

func TestTaskStore_FindByID_NilWhenAbsent(t *testing.T) {
	store, cleanup := setupTaskStore(t)
	defer cleanup()

	found, err := store.FindByID("nope")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestTaskStore_FindAllFiltersByStatus(t *testing.T) {
	store, cleanup := setupTaskStore(t)
	defer cleanup()

	queueID, err := store.CurrentQueueID()
	require.NoError(t, err)

	createTask(t, store, "s1", queueID)
	failed := createTask(t, store, "s2", queueID)
	failed.MarkPermanentFailure("gone")
	require.NoError(t, store.Update(failed))

	all, err := store.FindAll("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyFailed, err := store.FindAll(domain.TaskPermanentFailure)
	require.NoError(t, err)
	require.Len(t, onlyFailed, 1)
	assert.Equal(t, "s2", onlyFailed[0].SongID)
}

func TestTaskStore_Stats(t *testing.T) {
	store, cleanup := setupTaskStore(t)
	defer cleanup()

	queueID, err := store.CurrentQueueID()
	require.NoError(t, err)

	createTask(t, store, "s1", queueID)
	createTask(t, store, "s2", queueID)
	done := createTask(t, store, "s3", queueID)
	done.MarkCompleted("/media/s3.mp3")
	require.NoError(t, store.Update(done))

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Queued)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(0), stats.Failed)
}
