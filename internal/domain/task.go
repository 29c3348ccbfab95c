package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current status of a download task
type TaskStatus string

const (
	TaskQueued           TaskStatus = "queued"
	TaskRunning          TaskStatus = "running"
	TaskRetryWait        TaskStatus = "retry_wait"
	TaskCompleted        TaskStatus = "completed"
	TaskPermanentFailure TaskStatus = "permanent_failure"
)

// DownloadTask is one durable entry in the transfer queue. Tasks are owned
// exclusively by the pipeline once submitted and are never retried after
// reaching a terminal state.
type DownloadTask struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	SongID        string     `json:"song_id" gorm:"not null;index"`
	OwnerUsername string     `json:"owner_username" gorm:"not null"`
	ServerURL     string     `json:"server_url" gorm:"not null"`
	AuthToken     string     `json:"-" gorm:"not null"`
	QueueID       string     `json:"queue_id" gorm:"not null;index"`
	EnqueueSeq    int64      `json:"enqueue_seq" gorm:"not null;index"`
	Status        TaskStatus `json:"status" gorm:"not null;index"`
	RetryCount    int        `json:"retry_count" gorm:"default:0"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	FilePath      string     `json:"file_path,omitempty"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// NewDownloadTask creates a queued task bound to the given queue identity.
// EnqueueSeq is assigned by the task store on create.
func NewDownloadTask(songID string, identity Identity, authToken, queueID string) *DownloadTask {
	now := time.Now()
	return &DownloadTask{
		ID:            uuid.New().String(),
		SongID:        songID,
		OwnerUsername: identity.Username,
		ServerURL:     identity.ServerURL,
		AuthToken:     authToken,
		QueueID:       queueID,
		Status:        TaskQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkRunning marks the task as running
func (t *DownloadTask) MarkRunning() {
	t.Status = TaskRunning
	now := time.Now()
	if t.StartedAt == nil {
		t.StartedAt = &now
	}
	t.UpdatedAt = now
}

// MarkRetryWait records a failed attempt that will be retried
func (t *DownloadTask) MarkRetryWait(err error) {
	t.Status = TaskRetryWait
	t.RetryCount++
	if err != nil {
		t.ErrorMessage = err.Error()
	}
	t.UpdatedAt = time.Now()
}

// MarkCompleted marks the task as completed with its final file path
func (t *DownloadTask) MarkCompleted(filePath string) {
	t.Status = TaskCompleted
	t.FilePath = filePath
	t.ErrorMessage = ""
	now := time.Now()
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// MarkPermanentFailure puts the task in its failed terminal state
func (t *DownloadTask) MarkPermanentFailure(reason string) {
	t.Status = TaskPermanentFailure
	t.ErrorMessage = reason
	now := time.Now()
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// IsTerminal checks if the task reached a terminal state
func (t *DownloadTask) IsTerminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskPermanentFailure
}

// CanRetry checks whether another attempt is allowed under the bound.
// maxAttempts counts the first attempt, so retries stop at maxAttempts-1.
func (t *DownloadTask) CanRetry(maxAttempts int) bool {
	return t.RetryCount < maxAttempts-1
}

// TaskStats counts tasks by status
type TaskStats struct {
	Total     int64 `json:"total"`
	Queued    int64 `json:"queued"`
	Running   int64 `json:"running"`
	RetryWait int64 `json:"retry_wait"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// TaskEvent is one progress report delivered through a task's result
// channel. The wire protocol exposes only whole-file responses, so progress
// is reported at two checkpoints: 0 at start and 100 at completion.
type TaskEvent struct {
	TaskID   string     `json:"task_id"`
	SongID   string     `json:"song_id"`
	Status   TaskStatus `json:"status"`
	Progress int        `json:"progress"`
	Message  string     `json:"message,omitempty"`
	FilePath string     `json:"file_path,omitempty"`
}

// Terminal reports whether the event closes the task's result channel
func (e TaskEvent) Terminal() bool {
	return e.Status == TaskCompleted || e.Status == TaskPermanentFailure
}
