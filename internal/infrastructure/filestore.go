package infrastructure

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yourusername/subsync-go/internal/domain"
	"go.uber.org/zap"
)

// FileStore writes downloaded byte streams to device storage. Files land
// under mediaDir/<owner>/<songID>.<suffix>; a temp-write-then-rename keeps
// half-written files from ever sitting at their final path.
type FileStore struct {
	mediaDir string
	logger   *zap.Logger
}

// NewFileStore creates a file store rooted at mediaDir
func NewFileStore(mediaDir string, log *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(mediaDir, 0755); err != nil {
		return nil, &domain.StorageError{Op: "create media dir", Err: err}
	}
	return &FileStore{mediaDir: mediaDir, logger: log}, nil
}

// TargetPath returns the final path a song's file will occupy
func (f *FileStore) TargetPath(song *domain.Song) string {
	name := song.ID
	if song.Suffix != "" {
		name += "." + song.Suffix
	}
	return filepath.Join(f.mediaDir, song.OwnerUsername, name)
}

// Write drains the stream to disk and returns the final path and byte
// count. Every local I/O failure comes back as a StorageError so the
// pipeline can classify it as non-retryable.
func (f *FileStore) Write(song *domain.Song, r io.Reader) (string, int64, error) {
	target := f.TargetPath(song)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", 0, &domain.StorageError{Op: "create owner dir", Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".partial-*")
	if err != nil {
		return "", 0, &domain.StorageError{Op: "create temp file", Err: err}
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		// A failure while draining the stream is a network fault, not a
		// local one, unless the writer side broke.
		if pathErr, ok := err.(*os.PathError); ok {
			return "", 0, &domain.StorageError{Op: "write bytes", Err: pathErr}
		}
		return "", 0, fmt.Errorf("stream read failed after %d bytes: %w", written, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", 0, &domain.StorageError{Op: "sync file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", 0, &domain.StorageError{Op: "close file", Err: err}
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", 0, &domain.StorageError{Op: "rename file", Err: err}
	}

	return target, written, nil
}

// Remove deletes a stored file, ignoring files already gone
func (f *FileStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &domain.StorageError{Op: "remove file", Err: err}
	}
	return nil
}

// HasFreeSpace reports whether the media volume has at least minFree bytes
// available. Used as an execution precondition: tasks stay queued rather
// than fail when space is critically low.
func (f *FileStore) HasFreeSpace(minFree uint64) bool {
	if minFree == 0 {
		return true
	}
	free, err := freeBytes(f.mediaDir)
	if err != nil {
		f.logger.Warn("Failed to stat media volume, assuming space available",
			zap.Error(err))
		return true
	}
	return free >= minFree
}

// SweepOrphans removes files under the media dir that have no
// downloaded-media record. A crash between byte-write and record-write
// leaves such orphans; the record is the source of truth, so the file goes.
func (f *FileStore) SweepOrphans(records []domain.DownloadedMedia) (int, error) {
	known := make(map[string]struct{}, len(records))
	for _, rec := range records {
		known[filepath.Clean(rec.FilePath)] = struct{}{}
	}

	removed := 0
	err := filepath.Walk(f.mediaDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if _, ok := known[filepath.Clean(path)]; ok {
			return nil
		}
		if err := os.Remove(path); err != nil {
			f.logger.Warn("Failed to remove orphaned file",
				zap.String("path", path),
				zap.Error(err))
			return nil
		}
		removed++
		f.logger.Info("Removed orphaned media file", zap.String("path", path))
		return nil
	})
	return removed, err
}
