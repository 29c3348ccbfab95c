package infrastructure

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/yourusername/subsync-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// queueIdentity holds the single rotating token that scopes the device-wide
// download queue. Rotation deletes the row; a fresh token is generated
// lazily on first use after that.
type queueIdentity struct {
	ID        int    `gorm:"primaryKey"`
	QueueID   string `gorm:"not null"`
	UpdatedAt int64  `gorm:"autoUpdateTime"`
}

// SQLiteTaskStore implements domain.TaskStore as an append-ordered persisted
// log of download tasks, surviving process death.
type SQLiteTaskStore struct {
	db *gorm.DB
}

// NewSQLiteTaskStore opens (and migrates) the queue database
func NewSQLiteTaskStore(dbPath string) (*SQLiteTaskStore, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}

	if err := db.AutoMigrate(&domain.DownloadTask{}, &queueIdentity{}); err != nil {
		return nil, fmt.Errorf("failed to migrate queue database: %w", err)
	}

	return &SQLiteTaskStore{db: db}, nil
}

// Create persists a new task, assigning the next enqueue sequence number
// under a transaction so append ordering holds across concurrent submitters.
func (s *SQLiteTaskStore) Create(task *domain.DownloadTask) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&domain.DownloadTask{}).
			Select("COALESCE(MAX(enqueue_seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		task.EnqueueSeq = maxSeq + 1
		return tx.Create(task).Error
	})
}

// Update updates an existing task
func (s *SQLiteTaskStore) Update(task *domain.DownloadTask) error {
	return s.db.Save(task).Error
}

// FindByID finds a task by ID
func (s *SQLiteTaskStore) FindByID(id string) (*domain.DownloadTask, error) {
	var task domain.DownloadTask
	err := s.db.First(&task, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// NextQueued returns the lowest-sequence runnable task under a queue
// identity. Tasks left in retry_wait by a dead process are runnable again.
func (s *SQLiteTaskStore) NextQueued(queueID string) (*domain.DownloadTask, error) {
	var task domain.DownloadTask
	err := s.db.
		Where("queue_id = ? AND status IN ?", queueID,
			[]domain.TaskStatus{domain.TaskQueued, domain.TaskRetryWait}).
		Order("enqueue_seq ASC").
		First(&task).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// FindAll lists tasks, optionally filtered by status (empty = all)
func (s *SQLiteTaskStore) FindAll(status domain.TaskStatus) ([]*domain.DownloadTask, error) {
	tasks := make([]*domain.DownloadTask, 0)
	query := s.db.Order("enqueue_seq ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Find(&tasks).Error
	return tasks, err
}

// ResetOrphanedRunning re-queues tasks a dead process left running. Their
// enqueue sequence is untouched so they keep their place in line.
func (s *SQLiteTaskStore) ResetOrphanedRunning() (int64, error) {
	result := s.db.Model(&domain.DownloadTask{}).
		Where("status = ?", domain.TaskRunning).
		Update("status", domain.TaskQueued)
	return result.RowsAffected, result.Error
}

// CurrentQueueID returns the active queue identity, generating one lazily
func (s *SQLiteTaskStore) CurrentQueueID() (string, error) {
	var current string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var row queueIdentity
		err := tx.First(&row, "id = ?", 1).Error
		if err == nil {
			current = row.QueueID
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		row = queueIdentity{ID: 1, QueueID: uuid.New().String()}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		current = row.QueueID
		return nil
	})
	return current, err
}

// PeekQueueID returns the active identity without generating one
func (s *SQLiteTaskStore) PeekQueueID() (string, error) {
	var row queueIdentity
	err := s.db.First(&row, "id = ?", 1).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return row.QueueID, nil
}

// RotateQueueID discards the current identity, making every task queued
// under it unreachable. This is the bulk-cancellation mechanism; running
// tasks are left to finish or fail naturally.
func (s *SQLiteTaskStore) RotateQueueID() error {
	return s.db.Delete(&queueIdentity{}, "id = ?", 1).Error
}

// Stats returns task counts by status
func (s *SQLiteTaskStore) Stats() (*domain.TaskStats, error) {
	stats := &domain.TaskStats{}

	if err := s.db.Model(&domain.DownloadTask{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status domain.TaskStatus
		Count  int64
	}{}
	if err := s.db.Model(&domain.DownloadTask{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.TaskQueued:
			stats.Queued = sc.Count
		case domain.TaskRunning:
			stats.Running = sc.Count
		case domain.TaskRetryWait:
			stats.RetryWait = sc.Count
		case domain.TaskCompleted:
			stats.Completed = sc.Count
		case domain.TaskPermanentFailure:
			stats.Failed = sc.Count
		}
	}

	return stats, nil
}

// Close closes the database connection
func (s *SQLiteTaskStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
