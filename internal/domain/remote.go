package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrorCode is the closed taxonomy of server-reported protocol errors,
// mapped from the wire protocol's own numeric codes by the remote client.
type ErrorCode string

const (
	CodeGeneric        ErrorCode = "generic"
	CodeSessionExpired ErrorCode = "session_expired"
	CodeEmptyResult    ErrorCode = "empty_result"
	CodeDuplicate      ErrorCode = "duplicate"
	CodeNotImplemented ErrorCode = "not_implemented"
	CodeNotFound       ErrorCode = "not_found"
)

// ProtocolError is a failure the server itself reported. Session expiry is
// surfaced so a collaborator can run re-authentication; this core only
// classifies it.
type ProtocolError struct {
	Code    ErrorCode
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("server error (%s): %s", e.Code, e.Message)
}

// IsSessionExpired reports whether err is a session-expired protocol error
func IsSessionExpired(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.Code == CodeSessionExpired
}

// StreamError is a non-OK response from the download endpoint, carrying the
// HTTP status for the task's failure reason.
type StreamError struct {
	Status int
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("download stream returned status %d", e.Status)
}

// StorageError marks local disk faults (disk full, permission denied).
// Downloads never retry these; retrying cannot free the disk.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage fault during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageFault reports whether err originated in local storage
func IsStorageFault(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ErrSongNotCached marks a dangling reference: a task whose song metadata
// is missing from the cache. Not retryable.
var ErrSongNotCached = errors.New("song metadata not found in cache")

// RemoteSource is the stateless fetch-by-kind adapter over the wire
// protocol. Implementations never panic across this boundary; every failure
// is an error return, protocol failures as *ProtocolError.
type RemoteSource interface {
	// Ping verifies connectivity and session validity
	Ping(ctx context.Context) error

	// SearchSongs fetches one page of songs matching the query
	SearchSongs(ctx context.Context, q Query) ([]Song, error)

	// SearchAlbums fetches one page of albums matching the query
	SearchAlbums(ctx context.Context, q Query) ([]Album, error)

	// SearchArtists fetches one page of artists matching the query
	SearchArtists(ctx context.Context, q Query) ([]Artist, error)

	// Playlists fetches one page of playlists with their song id sets
	Playlists(ctx context.Context, q Query) ([]Playlist, error)

	// DownloadStream requests the whole-file byte stream for a song.
	// Non-OK responses come back as *StreamError.
	DownloadStream(ctx context.Context, songID, authToken string) (io.ReadCloser, int64, error)
}
