package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var testIdentity = Identity{Username: "alice", ServerURL: "https://music.example.com"}

func TestNewDownloadTask(t *testing.T) {
	task := NewDownloadTask("song-1", testIdentity, "token-abc", "queue-1")

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "song-1", task.SongID)
	assert.Equal(t, "alice", task.OwnerUsername)
	assert.Equal(t, "https://music.example.com", task.ServerURL)
	assert.Equal(t, "token-abc", task.AuthToken)
	assert.Equal(t, "queue-1", task.QueueID)
	assert.Equal(t, TaskQueued, task.Status)
	assert.Equal(t, 0, task.RetryCount)
	assert.False(t, task.IsTerminal())
}

func TestDownloadTask_MarkRunning(t *testing.T) {
	task := NewDownloadTask("song-1", testIdentity, "token", "q1")

	task.MarkRunning()

	assert.Equal(t, TaskRunning, task.Status)
	assert.NotNil(t, task.StartedAt)

	// A second MarkRunning after retry must not move the start timestamp
	started := *task.StartedAt
	task.MarkRetryWait(errors.New("timeout"))
	task.MarkRunning()
	assert.Equal(t, started, *task.StartedAt)
}

func TestDownloadTask_MarkRetryWait(t *testing.T) {
	task := NewDownloadTask("song-1", testIdentity, "token", "q1")

	task.MarkRetryWait(errors.New("stream reset"))

	assert.Equal(t, TaskRetryWait, task.Status)
	assert.Equal(t, 1, task.RetryCount)
	assert.Equal(t, "stream reset", task.ErrorMessage)

	task.MarkRetryWait(errors.New("again"))
	assert.Equal(t, 2, task.RetryCount)
}

func TestDownloadTask_MarkCompleted(t *testing.T) {
	task := NewDownloadTask("song-1", testIdentity, "token", "q1")
	task.MarkRetryWait(errors.New("transient"))

	task.MarkCompleted("/media/song-1.mp3")

	assert.Equal(t, TaskCompleted, task.Status)
	assert.Equal(t, "/media/song-1.mp3", task.FilePath)
	assert.Empty(t, task.ErrorMessage, "completion clears the transient error")
	assert.NotNil(t, task.CompletedAt)
	assert.True(t, task.IsTerminal())
}

func TestDownloadTask_MarkPermanentFailure(t *testing.T) {
	task := NewDownloadTask("song-1", testIdentity, "token", "q1")

	task.MarkPermanentFailure("disk full")

	assert.Equal(t, TaskPermanentFailure, task.Status)
	assert.Equal(t, "disk full", task.ErrorMessage)
	assert.NotNil(t, task.CompletedAt)
	assert.True(t, task.IsTerminal())
}

func TestDownloadTask_CanRetry(t *testing.T) {
	task := NewDownloadTask("song-1", testIdentity, "token", "q1")

	// maxAttempts counts the first attempt: 3 attempts = 2 retries
	assert.True(t, task.CanRetry(3))

	task.RetryCount = 1
	assert.True(t, task.CanRetry(3))

	task.RetryCount = 2
	assert.False(t, task.CanRetry(3))
}

func TestTaskEvent_Terminal(t *testing.T) {
	assert.False(t, TaskEvent{Status: TaskRunning}.Terminal())
	assert.False(t, TaskEvent{Status: TaskRetryWait}.Terminal())
	assert.True(t, TaskEvent{Status: TaskCompleted}.Terminal())
	assert.True(t, TaskEvent{Status: TaskPermanentFailure}.Terminal())
}

func TestValidateKind(t *testing.T) {
	assert.True(t, ValidateKind(KindSong))
	assert.True(t, ValidateKind(KindAlbum))
	assert.True(t, ValidateKind(KindArtist))
	assert.True(t, ValidateKind(KindPlaylist))
	assert.False(t, ValidateKind(Kind("podcast")))
}
