package domain

import "context"

// CacheStore is the local relational cache shared by the sync orchestrator
// and the download pipeline. All rows are scoped by Identity; upserts
// overwrite by compound key and are idempotent. Both components treat the
// store as transactional at single-upsert granularity only.
type CacheStore interface {
	// Upserts merge a fetched page into the cache, overwriting existing keys
	UpsertSongs(ctx context.Context, id Identity, rows []Song) error
	UpsertAlbums(ctx context.Context, id Identity, rows []Album) error
	UpsertArtists(ctx context.Context, id Identity, rows []Artist) error
	// UpsertPlaylists also replaces each playlist's entry set when SongIDs
	// is populated on the row
	UpsertPlaylists(ctx context.Context, id Identity, rows []Playlist) error

	// Queries read back cached rows for a filter
	QuerySongs(ctx context.Context, id Identity, q Query) ([]Song, error)
	QueryAlbums(ctx context.Context, id Identity, q Query) ([]Album, error)
	QueryArtists(ctx context.Context, id Identity, q Query) ([]Artist, error)
	QueryPlaylists(ctx context.Context, id Identity, q Query) ([]Playlist, error)

	// SongByID resolves one song's canonical metadata; nil when absent
	SongByID(ctx context.Context, id Identity, songID string) (*Song, error)

	// PlaylistSongIDs lists the song ids of one playlist in position order
	PlaylistSongIDs(ctx context.Context, id Identity, playlistID string) ([]string, error)

	// RecordDownloadedMedia durably marks a song as available offline
	RecordDownloadedMedia(ctx context.Context, id Identity, rec DownloadedMedia) error

	// DownloadedMediaBySong returns the record for a song; nil when absent
	DownloadedMediaBySong(ctx context.Context, id Identity, songID string) (*DownloadedMedia, error)

	// ListDownloadedMedia returns all records for an identity
	ListDownloadedMedia(ctx context.Context, id Identity) ([]DownloadedMedia, error)

	// OfflineSongs returns cached songs that have a downloaded file
	OfflineSongs(ctx context.Context, id Identity, q Query) ([]Song, error)

	// OfflinePlaylists returns playlists whose entire song set is downloaded
	OfflinePlaylists(ctx context.Context, id Identity, q Query) ([]Playlist, error)

	// OfflineAlbums returns albums with at least one downloaded song
	OfflineAlbums(ctx context.Context, id Identity, q Query) ([]Album, error)

	// OfflineArtists returns artists with at least one downloaded song
	OfflineArtists(ctx context.Context, id Identity, q Query) ([]Artist, error)

	// ClearKind drops all cached rows of one kind for an identity
	ClearKind(ctx context.Context, id Identity, kind Kind) error

	// ClearIdentity drops every cached row for an identity. Used on logout
	// and on server-URL change.
	ClearIdentity(ctx context.Context, id Identity) error

	// Stats counts cached rows per kind
	Stats(ctx context.Context, id Identity) (*LibraryStats, error)
}

// TaskStore is the durable log backing the download pipeline. Tasks and the
// current queue identity survive process death; a recovery step on startup
// re-queues tasks left running.
type TaskStore interface {
	// Create persists a new task and assigns its enqueue sequence number.
	// Append ordering: a new task never preempts tasks already queued under
	// the same identity.
	Create(task *DownloadTask) error

	// Update persists task state transitions
	Update(task *DownloadTask) error

	// FindByID finds a task by ID
	FindByID(id string) (*DownloadTask, error)

	// NextQueued returns the lowest-sequence runnable task under the given
	// queue identity, or nil when the queue is drained
	NextQueued(queueID string) (*DownloadTask, error)

	// FindAll lists tasks, optionally filtered by status (empty = all)
	FindAll(status TaskStatus) ([]*DownloadTask, error)

	// ResetOrphanedRunning re-queues tasks a dead process left running,
	// preserving their enqueue order. Returns the number recovered.
	ResetOrphanedRunning() (int64, error)

	// CurrentQueueID returns the active queue identity, generating one
	// lazily if none exists
	CurrentQueueID() (string, error)

	// PeekQueueID returns the active queue identity without generating one;
	// empty string when none exists
	PeekQueueID() (string, error)

	// RotateQueueID discards the current identity. Previously queued tasks
	// become unreachable; a fresh identity is generated lazily on first use.
	RotateQueueID() error

	// Stats counts tasks by status
	Stats() (*TaskStats, error)
}
