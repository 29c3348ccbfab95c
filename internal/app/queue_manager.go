package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/subsync-go/internal/domain"
)

// handleBuffer bounds a task's result channel. A task emits at most a few
// events (start, retries, terminal), so this never fills in practice.
const handleBuffer = 16

// TaskHandle is returned on submit; Events delivers the task's progress
// checkpoints and closes after the terminal event. After a queue rotation
// the channel closes with no terminal event at all.
type TaskHandle struct {
	Task   *domain.DownloadTask
	Events <-chan domain.TaskEvent
}

// QueueManager owns the device-wide download queue: it accepts submissions,
// persists them under the current queue identity, and drives a single
// worker so completion reporting matches enqueue order for tasks that do
// not fail.
type QueueManager struct {
	tasks       domain.TaskStore
	transferMgr *TransferManager
	files       MediaFiles
	config      *domain.QueueConfig
	downloadCfg *domain.DownloadConfig
	logger      *zap.Logger

	// Connectivity is the execution precondition probe. Tasks stay queued,
	// not failed, while it reports false.
	Connectivity func(ctx context.Context) bool

	mu          sync.RWMutex
	running     bool
	inFlightID  string
	handles     map[string]chan domain.TaskEvent
	subscribers map[chan domain.TaskEvent]struct{}
	stopChan    chan struct{}
	workerWg    sync.WaitGroup
}

// NewQueueManager creates a queue manager
func NewQueueManager(
	tasks domain.TaskStore,
	transferMgr *TransferManager,
	files MediaFiles,
	config *domain.QueueConfig,
	downloadCfg *domain.DownloadConfig,
	log *zap.Logger,
) *QueueManager {
	return &QueueManager{
		tasks:        tasks,
		transferMgr:  transferMgr,
		files:        files,
		config:       config,
		downloadCfg:  downloadCfg,
		logger:       log,
		Connectivity: func(context.Context) bool { return true },
		handles:      make(map[string]chan domain.TaskEvent),
		subscribers:  make(map[chan domain.TaskEvent]struct{}),
		stopChan:     make(chan struct{}),
	}
}

// Start recovers orphaned tasks and launches the queue processor
func (qm *QueueManager) Start(ctx context.Context) error {
	qm.mu.Lock()
	if qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager already running")
	}
	qm.running = true
	qm.stopChan = make(chan struct{})
	qm.mu.Unlock()

	// Tasks a dead process left running are re-queued in place; their
	// enqueue order is preserved.
	recovered, err := qm.tasks.ResetOrphanedRunning()
	if err != nil {
		qm.logger.Error("Failed to recover orphaned tasks", zap.Error(err))
	} else if recovered > 0 {
		qm.logger.Info("Re-queued orphaned running tasks", zap.Int64("count", recovered))
	}

	qm.workerWg.Add(1)
	go qm.processQueue(ctx)

	return nil
}

// Stop stops the queue processor
func (qm *QueueManager) Stop() error {
	qm.mu.Lock()
	if !qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager not running")
	}
	qm.running = false
	stop := qm.stopChan
	qm.mu.Unlock()

	close(stop)
	qm.workerWg.Wait()
	return nil
}

// IsRunning returns whether the queue processor is active
func (qm *QueueManager) IsRunning() bool {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.running
}

// Submit appends a download task to the current queue. Append ordering:
// the new task never preempts tasks already queued under the same identity.
func (qm *QueueManager) Submit(songID string, identity domain.Identity, authToken string) (*TaskHandle, error) {
	if songID == "" {
		return nil, fmt.Errorf("song id is required")
	}

	queueID, err := qm.tasks.CurrentQueueID()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve queue identity: %w", err)
	}

	task := domain.NewDownloadTask(songID, identity, authToken, queueID)
	if err := qm.tasks.Create(task); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}

	events := make(chan domain.TaskEvent, handleBuffer)
	qm.mu.Lock()
	qm.handles[task.ID] = events
	qm.mu.Unlock()

	qm.logger.Info("Download task queued",
		zap.String("task_id", task.ID),
		zap.String("song_id", songID),
		zap.Int64("seq", task.EnqueueSeq))

	return &TaskHandle{Task: task, Events: events}, nil
}

// StopAll rotates the queue identity. Every not-yet-started task becomes
// unreachable and its result channel closes without a terminal event; the
// task currently running is left to finish or fail naturally.
func (qm *QueueManager) StopAll() error {
	if err := qm.tasks.RotateQueueID(); err != nil {
		return fmt.Errorf("failed to rotate queue identity: %w", err)
	}

	qm.mu.Lock()
	inFlight := qm.inFlightID
	for taskID, ch := range qm.handles {
		if taskID == inFlight {
			continue
		}
		close(ch)
		delete(qm.handles, taskID)
	}
	qm.mu.Unlock()

	qm.logger.Info("All queued downloads cancelled")
	return nil
}

// GetTask retrieves a task by ID
func (qm *QueueManager) GetTask(id string) (*domain.DownloadTask, error) {
	return qm.tasks.FindByID(id)
}

// ListTasks lists tasks, optionally filtered by status
func (qm *QueueManager) ListTasks(status domain.TaskStatus) ([]*domain.DownloadTask, error) {
	return qm.tasks.FindAll(status)
}

// Stats returns task counts by status
func (qm *QueueManager) Stats() (*domain.TaskStats, error) {
	return qm.tasks.Stats()
}

// Subscribe returns a channel receiving every pipeline event. Slow
// subscribers drop events rather than stall the worker.
func (qm *QueueManager) Subscribe() chan domain.TaskEvent {
	ch := make(chan domain.TaskEvent, 64)
	qm.mu.Lock()
	qm.subscribers[ch] = struct{}{}
	qm.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel
func (qm *QueueManager) Unsubscribe(ch chan domain.TaskEvent) {
	qm.mu.Lock()
	if _, ok := qm.subscribers[ch]; ok {
		delete(qm.subscribers, ch)
		close(ch)
	}
	qm.mu.Unlock()
}

// report fans an event out to the task's handle and every subscriber
func (qm *QueueManager) report(ev domain.TaskEvent) {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	if ch, ok := qm.handles[ev.TaskID]; ok {
		select {
		case ch <- ev:
		default:
			qm.logger.Warn("Task handle buffer full, dropping event",
				zap.String("task_id", ev.TaskID))
		}
		if ev.Terminal() {
			close(ch)
			delete(qm.handles, ev.TaskID)
		}
	}

	for sub := range qm.subscribers {
		select {
		case sub <- ev:
		default:
		}
	}
}

// processQueue drives the single worker loop
func (qm *QueueManager) processQueue(ctx context.Context) {
	defer qm.workerWg.Done()

	ticker := time.NewTicker(qm.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			qm.logger.Info("Queue processor stopped", zap.String("reason", "context cancelled"))
			return
		case <-qm.stopChan:
			qm.logger.Info("Queue processor stopped", zap.String("reason", "stop signal"))
			return
		case <-ticker.C:
			qm.drainQueue(ctx)
		}
	}
}

// drainQueue runs queued tasks one at a time until the queue is empty or a
// precondition fails. Sequential execution is what preserves enqueue-order
// completion reporting.
func (qm *QueueManager) drainQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-qm.stopChan:
			return
		default:
		}

		queueID, err := qm.tasks.PeekQueueID()
		if err != nil {
			qm.logger.Error("Failed to read queue identity", zap.Error(err))
			return
		}
		if queueID == "" {
			return
		}

		task, err := qm.tasks.NextQueued(queueID)
		if err != nil {
			qm.logger.Error("Failed to fetch next task", zap.Error(err))
			return
		}
		if task == nil {
			return
		}

		// Execution preconditions: stay queued, never fail, when offline
		// or critically low on space.
		if !qm.Connectivity(ctx) {
			qm.logger.Debug("No connectivity, leaving task queued",
				zap.String("task_id", task.ID))
			return
		}
		if !qm.files.HasFreeSpace(qm.downloadCfg.MinFreeBytes) {
			qm.logger.Warn("Storage critically low, leaving task queued",
				zap.String("task_id", task.ID))
			return
		}

		// Re-check the identity at the running boundary: a rotation that
		// raced this dispatch must win as long as the task had not yet
		// entered Running.
		current, err := qm.tasks.PeekQueueID()
		if err != nil || current != task.QueueID {
			continue
		}

		qm.mu.Lock()
		qm.inFlightID = task.ID
		qm.mu.Unlock()

		if err := qm.transferMgr.Process(ctx, task, qm.report); err != nil {
			qm.logger.Warn("Task finished with failure",
				zap.String("task_id", task.ID),
				zap.Error(err))
		}

		qm.mu.Lock()
		qm.inFlightID = ""
		qm.mu.Unlock()
	}
}
