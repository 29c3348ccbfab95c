package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/subsync-go/internal/domain"
	"github.com/yourusername/subsync-go/internal/infrastructure"
)

func testQueueConfig() *domain.QueueConfig {
	return &domain.QueueConfig{CheckInterval: 5 * time.Millisecond}
}

func newTestQueueManager(t *testing.T, cache *infrastructure.SQLiteCacheStore, tasks *infrastructure.SQLiteTaskStore, remote domain.RemoteSource, files MediaFiles) *QueueManager {
	t.Helper()
	tm := newTestTransferManager(tasks, cache, remote, files)
	return NewQueueManager(tasks, tm, files, testQueueConfig(), testDownloadConfig(), zap.NewNop())
}

func waitTerminal(t *testing.T, events <-chan domain.TaskEvent) domain.TaskEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("event channel closed without a terminal event")
			}
			if ev.Terminal() {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for a terminal event")
		}
	}
}

func TestQueueManager_Submit_AssignsAppendOrder(t *testing.T) {
	cache, tasks, cleanup := setupTestStores(t)
	defer cleanup()

	qm := newTestQueueManager(t, cache, tasks, &fakeRemote{}, &fakeFiles{})

	h1, err := qm.Submit("s1", testIdentity, "token")
	require.NoError(t, err)
	h2, err := qm.Submit("s2", testIdentity, "token")
	require.NoError(t, err)

	assert.Less(t, h1.Task.EnqueueSeq, h2.Task.EnqueueSeq)
	assert.Equal(t, h1.Task.QueueID, h2.Task.QueueID)
	assert.Equal(t, domain.TaskQueued, h1.Task.Status)
}

func TestQueueManager_Submit_RequiresSongID(t *testing.T) {
	cache, tasks, cleanup := setupTestStores(t)
	defer cleanup()

	qm := newTestQueueManager(t, cache, tasks, &fakeRemote{}, &fakeFiles{})

	_, err := qm.Submit("", testIdentity, "token")
	assert.Error(t, err)
}

func TestQueueManager_CompletesInEnqueueOrder(t *testing.T) {
	cache, tasks, cleanup := setupTestStores(t)
	defer cleanup()
	for _, id := range []string{"s1", "s2", "s3"} {
		seedSong(t, cache, id)
	}

	qm := newTestQueueManager(t, cache, tasks, &fakeRemote{content: "audio"}, &fakeFiles{})

	h1, err := qm.Submit("s1", testIdentity, "token")
	require.NoError(t, err)
	h2, err := qm.Submit("s2", testIdentity, "token")
	require.NoError(t, err)
	h3, err := qm.Submit("s3", testIdentity, "token")
	require.NoError(t, err)

	sub := qm.Subscribe()
	defer qm.Unsubscribe(sub)

	require.NoError(t, qm.Start(context.Background()))
	defer qm.Stop()

	// Every handle reaches a terminal event
	for _, h := range []*TaskHandle{h1, h2, h3} {
		ev := waitTerminal(t, h.Events)
		assert.Equal(t, domain.TaskCompleted, ev.Status)
	}

	// The broadcast feed reports completions in enqueue order
	order := make([]string, 0, 3)
	deadline := time.After(time.Second)
	for len(order) < 3 {
		select {
		case ev := <-sub:
			if ev.Terminal() {
				order = append(order, ev.SongID)
			}
		case <-deadline:
			t.Fatal("timed out collecting broadcast events")
		}
	}
	assert.Equal(t, []string{"s1", "s2", "s3"}, order)
}

func TestQueueManager_StopAll_RotatesIdentityAndClosesHandles(t *testing.T) {
	cache, tasks, cleanup := setupTestStores(t)
	defer cleanup()

	qm := newTestQueueManager(t, cache, tasks, &fakeRemote{}, &fakeFiles{})

	h1, err := qm.Submit("s1", testIdentity, "token")
	require.NoError(t, err)
	h2, err := qm.Submit("s2", testIdentity, "token")
	require.NoError(t, err)
	oldQueueID := h1.Task.QueueID

	require.NoError(t, qm.StopAll())

	// Handles close without a terminal event
	for _, h := range []*TaskHandle{h1, h2} {
		select {
		case ev, ok := <-h.Events:
			assert.False(t, ok, "expected closed channel, got event %+v", ev)
		case <-time.After(time.Second):
			t.Fatal("handle channel not closed")
		}
	}

	// The old identity is gone; the worker has nothing to dispatch
	peeked, err := tasks.PeekQueueID()
	require.NoError(t, err)
	assert.Empty(t, peeked)

	// A new submission gets a fresh identity and starts ordering over
	h3, err := qm.Submit("s3", testIdentity, "token")
	require.NoError(t, err)
	assert.NotEqual(t, oldQueueID, h3.Task.QueueID)

	next, err := tasks.NextQueued(h3.Task.QueueID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "s3", next.SongID)

	// Tasks under the rotated identity are unreachable
	orphan, err := tasks.NextQueued(oldQueueID)
	require.NoError(t, err)
	assert.Nil(t, orphan)
}

func TestQueueManager_NoConnectivityLeavesTasksQueued(t *testing.T) {
	cache, tasks, cleanup := setupTestStores(t)
	defer cleanup()
	seedSong(t, cache, "s1")

	qm := newTestQueueManager(t, cache, tasks, &fakeRemote{content: "audio"}, &fakeFiles{})
	qm.Connectivity = func(context.Context) bool { return false }

	h, err := qm.Submit("s1", testIdentity, "token")
	require.NoError(t, err)

	require.NoError(t, qm.Start(context.Background()))
	defer qm.Stop()

	// Give the worker several poll cycles; the task must stay queued
	time.Sleep(50 * time.Millisecond)

	persisted, err := tasks.FindByID(h.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskQueued, persisted.Status)
}

func TestQueueManager_LowStorageLeavesTasksQueued(t *testing.T) {
	cache, tasks, cleanup := setupTestStores(t)
	defer cleanup()
	seedSong(t, cache, "s1")

	files := &fakeFiles{noSpace: true}
	qm := newTestQueueManager(t, cache, tasks, &fakeRemote{content: "audio"}, files)

	h, err := qm.Submit("s1", testIdentity, "token")
	require.NoError(t, err)

	require.NoError(t, qm.Start(context.Background()))
	defer qm.Stop()

	time.Sleep(50 * time.Millisecond)

	persisted, err := tasks.FindByID(h.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskQueued, persisted.Status)
}

func TestQueueManager_Start_RecoversOrphanedRunningTasks(t *testing.T) {
	cache, tasks, cleanup := setupTestStores(t)
	defer cleanup()

	// Simulate a task a dead process left running
	queueID, err := tasks.CurrentQueueID()
	require.NoError(t, err)
	task := domain.NewDownloadTask("s1", testIdentity, "token", queueID)
	require.NoError(t, tasks.Create(task))
	task.MarkRunning()
	require.NoError(t, tasks.Update(task))

	qm := newTestQueueManager(t, cache, tasks, &fakeRemote{}, &fakeFiles{})
	qm.Connectivity = func(context.Context) bool { return false } // keep the worker idle

	require.NoError(t, qm.Start(context.Background()))
	defer qm.Stop()

	persisted, err := tasks.FindByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskQueued, persisted.Status)
	assert.Equal(t, task.EnqueueSeq, persisted.EnqueueSeq, "recovery keeps the task's place in line")
}

// scriptedTaskStore scripts queue-identity reads so the rotation race can be
// reproduced deterministically: the identity changes between dispatch and the
// running-boundary re-check.
type scriptedTaskStore struct {
	domain.TaskStore
	peeks   []string
	peekIdx int
	task    *domain.DownloadTask
}

func (s *scriptedTaskStore) PeekQueueID() (string, error) {
	i := s.peekIdx
	if i >= len(s.peeks) {
		i = len(s.peeks) - 1
	}
	s.peekIdx++
	return s.peeks[i], nil
}

func (s *scriptedTaskStore) NextQueued(queueID string) (*domain.DownloadTask, error) {
	if s.task != nil && s.task.QueueID == queueID && s.task.Status == domain.TaskQueued {
		return s.task, nil
	}
	return nil, nil
}

func (s *scriptedTaskStore) Update(task *domain.DownloadTask) error { return nil }

func TestQueueManager_RotationBetweenDispatchAndRunningSuppressesTask(t *testing.T) {
	cache, _, cleanup := setupTestStores(t)
	defer cleanup()

	task := domain.NewDownloadTask("s1", testIdentity, "token", "old-queue")
	tasks := &scriptedTaskStore{
		// dispatch sees the old identity; the re-check sees the new one
		peeks: []string{"old-queue", "new-queue"},
		task:  task,
	}

	remote := &fakeRemote{content: "audio"}
	tm := newTestTransferManager(tasks, cache, remote, &fakeFiles{})
	qm := NewQueueManager(tasks, tm, &fakeFiles{}, testQueueConfig(), testDownloadConfig(), zap.NewNop())

	qm.drainQueue(context.Background())

	assert.Equal(t, domain.TaskQueued, task.Status, "a rotated-away task never enters Running")
	assert.Equal(t, 0, remote.calls)
}

func TestQueueManager_StartTwiceFails(t *testing.T) {
	cache, tasks, cleanup := setupTestStores(t)
	defer cleanup()

	qm := newTestQueueManager(t, cache, tasks, &fakeRemote{}, &fakeFiles{})

	require.NoError(t, qm.Start(context.Background()))
	defer qm.Stop()

	assert.Error(t, qm.Start(context.Background()))
	assert.True(t, qm.IsRunning())
}
