package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/subsync-go/internal/domain"
)

// MediaFiles is the storage surface the pipeline writes through
type MediaFiles interface {
	// Write drains a stream to its final location and returns path and size
	Write(song *domain.Song, r io.Reader) (string, int64, error)

	// HasFreeSpace reports whether at least minFree bytes are available
	HasFreeSpace(minFree uint64) bool
}

// TransferManager executes one download task at a time: resolve metadata,
// stream bytes, persist the downloaded-media record, with linear backoff on
// retryable failures. It owns no queue; the queue manager hands it tasks.
type TransferManager struct {
	tasks  domain.TaskStore
	store  domain.CacheStore
	remote domain.RemoteSource
	files  MediaFiles
	config *domain.DownloadConfig
	logger *zap.Logger

	// sleep is swapped in tests to avoid real backoff waits
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTransferManager creates a transfer manager
func NewTransferManager(
	tasks domain.TaskStore,
	store domain.CacheStore,
	remote domain.RemoteSource,
	files MediaFiles,
	config *domain.DownloadConfig,
	log *zap.Logger,
) *TransferManager {
	return &TransferManager{
		tasks:  tasks,
		store:  store,
		remote: remote,
		files:  files,
		config: config,
		logger: log,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process runs a single task to a terminal state. The report callback
// receives the two progress checkpoints plus every state transition; the
// wire protocol exposes only whole-file responses, so there are no
// intermediate byte counters.
func (tm *TransferManager) Process(ctx context.Context, task *domain.DownloadTask, report func(domain.TaskEvent)) error {
	identity := domain.Identity{Username: task.OwnerUsername, ServerURL: task.ServerURL}

	song, err := tm.store.SongByID(ctx, identity, task.SongID)
	if err != nil {
		return tm.fail(task, report, fmt.Errorf("cache lookup failed: %w", err))
	}
	if song == nil {
		// Dangling reference: retrying cannot manufacture metadata that
		// does not exist.
		return tm.fail(task, report, domain.ErrSongNotCached)
	}

	task.MarkRunning()
	if err := tm.tasks.Update(task); err != nil {
		return fmt.Errorf("failed to persist task state: %w", err)
	}
	report(domain.TaskEvent{
		TaskID:   task.ID,
		SongID:   task.SongID,
		Status:   domain.TaskRunning,
		Progress: 0,
	})

	maxAttempts := tm.config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			task.MarkRetryWait(lastErr)
			if err := tm.tasks.Update(task); err != nil {
				tm.logger.Error("Failed to persist retry state", zap.Error(err))
			}
			report(domain.TaskEvent{
				TaskID:  task.ID,
				SongID:  task.SongID,
				Status:  domain.TaskRetryWait,
				Message: lastErr.Error(),
			})

			// Linear backoff: a fixed increment per attempt
			delay := tm.config.RetryDelay * time.Duration(attempt-1)
			tm.logger.Info("Retrying download",
				zap.String("task_id", task.ID),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			if err := tm.sleep(ctx, delay); err != nil {
				return err
			}

			task.MarkRunning()
			if err := tm.tasks.Update(task); err != nil {
				tm.logger.Error("Failed to persist task state", zap.Error(err))
			}
		}

		err := tm.attempt(ctx, task, song, identity)
		if err == nil {
			task.MarkCompleted(task.FilePath)
			if err := tm.tasks.Update(task); err != nil {
				tm.logger.Error("Failed to persist completion", zap.Error(err))
			}
			tm.logger.Info("Download completed",
				zap.String("task_id", task.ID),
				zap.String("song_id", task.SongID),
				zap.String("file", task.FilePath))
			report(domain.TaskEvent{
				TaskID:   task.ID,
				SongID:   task.SongID,
				Status:   domain.TaskCompleted,
				Progress: 100,
				FilePath: task.FilePath,
			})
			return nil
		}

		lastErr = err
		tm.logger.Warn("Download attempt failed",
			zap.String("task_id", task.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if domain.IsStorageFault(err) {
			// Disk full and permission faults never heal by retrying
			break
		}
	}

	return tm.fail(task, report, lastErr)
}

// attempt performs one fetch-write-record cycle
func (tm *TransferManager) attempt(ctx context.Context, task *domain.DownloadTask, song *domain.Song, identity domain.Identity) error {
	stream, _, err := tm.remote.DownloadStream(ctx, song.ID, task.AuthToken)
	if err != nil {
		return err
	}
	defer stream.Close()

	path, size, err := tm.files.Write(song, stream)
	if err != nil {
		return err
	}

	// Only a durably written record makes the song offline-available. If
	// this write fails the bytes on disk are unreferenced; the startup
	// sweep reclaims them.
	rec := domain.DownloadedMedia{
		SongID:   song.ID,
		FilePath: path,
		Size:     size,
	}
	if err := tm.store.RecordDownloadedMedia(ctx, identity, rec); err != nil {
		return &domain.StorageError{Op: "record downloaded media", Err: err}
	}

	task.FilePath = path
	return nil
}

func (tm *TransferManager) fail(task *domain.DownloadTask, report func(domain.TaskEvent), cause error) error {
	reason := "unknown failure"
	if cause != nil {
		reason = cause.Error()
	}
	task.MarkPermanentFailure(reason)
	if err := tm.tasks.Update(task); err != nil {
		tm.logger.Error("Failed to persist permanent failure", zap.Error(err))
	}
	tm.logger.Error("Download permanently failed",
		zap.String("task_id", task.ID),
		zap.String("song_id", task.SongID),
		zap.String("reason", reason))
	report(domain.TaskEvent{
		TaskID:  task.ID,
		SongID:  task.SongID,
		Status:  domain.TaskPermanentFailure,
		Message: reason,
	})
	return cause
}
