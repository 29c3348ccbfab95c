package infrastructure

import (
	"context"
	"fmt"

	"github.com/yourusername/subsync-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteCacheStore implements domain.CacheStore on a local SQLite database.
// Every row is keyed by (id, owner_username, server_url) so one database can
// hold multiple accounts without leaking rows between them.
type SQLiteCacheStore struct {
	db *gorm.DB
}

// NewSQLiteCacheStore opens (and migrates) the cache database
func NewSQLiteCacheStore(dbPath string) (*SQLiteCacheStore, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := db.AutoMigrate(
		&domain.Song{},
		&domain.Album{},
		&domain.Artist{},
		&domain.Playlist{},
		&domain.PlaylistEntry{},
		&domain.DownloadedMedia{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}

	return &SQLiteCacheStore{db: db}, nil
}

// scoped returns a query builder restricted to one identity
func (s *SQLiteCacheStore) scoped(ctx context.Context, id domain.Identity) *gorm.DB {
	return s.db.WithContext(ctx).
		Where("owner_username = ? AND server_url = ?", id.Username, id.ServerURL)
}

// upsertAll is the reconciliation primitive: insert-or-overwrite by the
// compound primary key. Re-upserting the same page is a no-op.
func upsertAll[E any](ctx context.Context, db *gorm.DB, rows []E) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
}

// UpsertSongs merges a fetched page of songs into the cache
func (s *SQLiteCacheStore) UpsertSongs(ctx context.Context, id domain.Identity, rows []domain.Song) error {
	for i := range rows {
		rows[i].OwnerUsername = id.Username
		rows[i].ServerURL = id.ServerURL
	}
	return upsertAll(ctx, s.db, rows)
}

// UpsertAlbums merges a fetched page of albums into the cache
func (s *SQLiteCacheStore) UpsertAlbums(ctx context.Context, id domain.Identity, rows []domain.Album) error {
	for i := range rows {
		rows[i].OwnerUsername = id.Username
		rows[i].ServerURL = id.ServerURL
	}
	return upsertAll(ctx, s.db, rows)
}

// UpsertArtists merges a fetched page of artists into the cache
func (s *SQLiteCacheStore) UpsertArtists(ctx context.Context, id domain.Identity, rows []domain.Artist) error {
	for i := range rows {
		rows[i].OwnerUsername = id.Username
		rows[i].ServerURL = id.ServerURL
	}
	return upsertAll(ctx, s.db, rows)
}

// UpsertPlaylists merges playlists and, for rows carrying their song id set,
// replaces the playlist's entries. Entry replacement is per playlist, not
// per batch; a crash mid-batch leaves idempotent partial upserts that the
// next sync heals.
func (s *SQLiteCacheStore) UpsertPlaylists(ctx context.Context, id domain.Identity, rows []domain.Playlist) error {
	for i := range rows {
		rows[i].OwnerUsername = id.Username
		rows[i].ServerURL = id.ServerURL
	}
	if err := upsertAll(ctx, s.db, rows); err != nil {
		return err
	}
	for _, p := range rows {
		if p.SongIDs == nil {
			continue
		}
		if err := s.replacePlaylistEntries(ctx, id, p.ID, p.SongIDs); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteCacheStore) replacePlaylistEntries(ctx context.Context, id domain.Identity, playlistID string, songIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(
			"playlist_id = ? AND owner_username = ? AND server_url = ?",
			playlistID, id.Username, id.ServerURL,
		).Delete(&domain.PlaylistEntry{}).Error; err != nil {
			return err
		}
		if len(songIDs) == 0 {
			return nil
		}
		entries := make([]domain.PlaylistEntry, 0, len(songIDs))
		for pos, songID := range songIDs {
			entries = append(entries, domain.PlaylistEntry{
				PlaylistID:    playlistID,
				OwnerUsername: id.Username,
				ServerURL:     id.ServerURL,
				SongID:        songID,
				Position:      pos,
			})
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&entries).Error
	})
}

// QuerySongs reads back cached songs for a filter
func (s *SQLiteCacheStore) QuerySongs(ctx context.Context, id domain.Identity, q domain.Query) ([]domain.Song, error) {
	rows := make([]domain.Song, 0)
	query := s.scoped(ctx, id)
	if q.Search != "" {
		like := "%" + q.Search + "%"
		query = query.Where("title LIKE ? OR artist LIKE ? OR album LIKE ?", like, like, like)
	}
	err := applyPaging(query, q, "title ASC").Find(&rows).Error
	return rows, err
}

// QueryAlbums reads back cached albums for a filter
func (s *SQLiteCacheStore) QueryAlbums(ctx context.Context, id domain.Identity, q domain.Query) ([]domain.Album, error) {
	rows := make([]domain.Album, 0)
	query := s.scoped(ctx, id)
	if q.Search != "" {
		like := "%" + q.Search + "%"
		query = query.Where("name LIKE ? OR artist LIKE ?", like, like)
	}
	err := applyPaging(query, q, "name ASC").Find(&rows).Error
	return rows, err
}

// QueryArtists reads back cached artists for a filter
func (s *SQLiteCacheStore) QueryArtists(ctx context.Context, id domain.Identity, q domain.Query) ([]domain.Artist, error) {
	rows := make([]domain.Artist, 0)
	query := s.scoped(ctx, id)
	if q.Search != "" {
		query = query.Where("name LIKE ?", "%"+q.Search+"%")
	}
	err := applyPaging(query, q, "name ASC").Find(&rows).Error
	return rows, err
}

// QueryPlaylists reads back cached playlists for a filter
func (s *SQLiteCacheStore) QueryPlaylists(ctx context.Context, id domain.Identity, q domain.Query) ([]domain.Playlist, error) {
	rows := make([]domain.Playlist, 0)
	query := s.scoped(ctx, id)
	if q.Search != "" {
		query = query.Where("name LIKE ?", "%"+q.Search+"%")
	}
	err := applyPaging(query, q, "name ASC").Find(&rows).Error
	return rows, err
}

// applyPaging adds ordering, offset and limit to a query
func applyPaging(query *gorm.DB, q domain.Query, defaultOrder string) *gorm.DB {
	order := defaultOrder
	if q.SortBy == "recent" {
		order = "created_at DESC"
	}
	query = query.Order(order)
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query
}

// SongByID resolves one song's canonical metadata; nil when absent
func (s *SQLiteCacheStore) SongByID(ctx context.Context, id domain.Identity, songID string) (*domain.Song, error) {
	var song domain.Song
	err := s.scoped(ctx, id).Where("id = ?", songID).First(&song).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &song, nil
}

// PlaylistSongIDs lists the song ids of one playlist in position order
func (s *SQLiteCacheStore) PlaylistSongIDs(ctx context.Context, id domain.Identity, playlistID string) ([]string, error) {
	ids := make([]string, 0)
	err := s.db.WithContext(ctx).
		Model(&domain.PlaylistEntry{}).
		Where("playlist_id = ? AND owner_username = ? AND server_url = ?",
			playlistID, id.Username, id.ServerURL).
		Order("position ASC").
		Pluck("song_id", &ids).Error
	return ids, err
}

// RecordDownloadedMedia durably marks a song as available offline
func (s *SQLiteCacheStore) RecordDownloadedMedia(ctx context.Context, id domain.Identity, rec domain.DownloadedMedia) error {
	rec.OwnerUsername = id.Username
	rec.ServerURL = id.ServerURL
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
}

// DownloadedMediaBySong returns the record for a song; nil when absent
func (s *SQLiteCacheStore) DownloadedMediaBySong(ctx context.Context, id domain.Identity, songID string) (*domain.DownloadedMedia, error) {
	var rec domain.DownloadedMedia
	err := s.scoped(ctx, id).Where("song_id = ?", songID).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListDownloadedMedia returns all records for an identity
func (s *SQLiteCacheStore) ListDownloadedMedia(ctx context.Context, id domain.Identity) ([]domain.DownloadedMedia, error) {
	recs := make([]domain.DownloadedMedia, 0)
	err := s.scoped(ctx, id).Order("created_at ASC").Find(&recs).Error
	return recs, err
}

// OfflineSongs returns cached songs that have a downloaded file. The join
// runs per query so newly completed downloads show up immediately.
func (s *SQLiteCacheStore) OfflineSongs(ctx context.Context, id domain.Identity, q domain.Query) ([]domain.Song, error) {
	rows := make([]domain.Song, 0)
	query := s.db.WithContext(ctx).Model(&domain.Song{}).
		Joins(`JOIN downloaded_media dm ON dm.song_id = songs.id
			AND dm.owner_username = songs.owner_username
			AND dm.server_url = songs.server_url`).
		Where("songs.owner_username = ? AND songs.server_url = ?", id.Username, id.ServerURL)
	if q.Search != "" {
		like := "%" + q.Search + "%"
		query = query.Where("songs.title LIKE ? OR songs.artist LIKE ? OR songs.album LIKE ?", like, like, like)
	}
	err := applyPaging(query, q, "songs.title ASC").Find(&rows).Error
	return rows, err
}

// OfflinePlaylists returns playlists whose entire song set is downloaded.
// Eligibility is a per-query anti-join: a playlist qualifies iff no entry of
// it lacks a downloaded-media record.
func (s *SQLiteCacheStore) OfflinePlaylists(ctx context.Context, id domain.Identity, q domain.Query) ([]domain.Playlist, error) {
	rows := make([]domain.Playlist, 0)
	query := s.db.WithContext(ctx).Model(&domain.Playlist{}).
		Where("playlists.owner_username = ? AND playlists.server_url = ?", id.Username, id.ServerURL).
		Where(`NOT EXISTS (
			SELECT 1 FROM playlist_entries pe
			WHERE pe.playlist_id = playlists.id
			  AND pe.owner_username = playlists.owner_username
			  AND pe.server_url = playlists.server_url
			  AND pe.song_id NOT IN (
				SELECT dm.song_id FROM downloaded_media dm
				WHERE dm.owner_username = playlists.owner_username
				  AND dm.server_url = playlists.server_url
			  )
		)`)
	if q.Search != "" {
		query = query.Where("playlists.name LIKE ?", "%"+q.Search+"%")
	}
	err := applyPaging(query, q, "playlists.name ASC").Find(&rows).Error
	return rows, err
}

// OfflineAlbums returns albums with at least one downloaded song
func (s *SQLiteCacheStore) OfflineAlbums(ctx context.Context, id domain.Identity, q domain.Query) ([]domain.Album, error) {
	rows := make([]domain.Album, 0)
	query := s.db.WithContext(ctx).Model(&domain.Album{}).
		Where("albums.owner_username = ? AND albums.server_url = ?", id.Username, id.ServerURL).
		Where(`EXISTS (
			SELECT 1 FROM songs
			JOIN downloaded_media dm ON dm.song_id = songs.id
			  AND dm.owner_username = songs.owner_username
			  AND dm.server_url = songs.server_url
			WHERE songs.album_id = albums.id
			  AND songs.owner_username = albums.owner_username
			  AND songs.server_url = albums.server_url
		)`)
	if q.Search != "" {
		like := "%" + q.Search + "%"
		query = query.Where("albums.name LIKE ? OR albums.artist LIKE ?", like, like)
	}
	err := applyPaging(query, q, "albums.name ASC").Find(&rows).Error
	return rows, err
}

// OfflineArtists returns artists with at least one downloaded song
func (s *SQLiteCacheStore) OfflineArtists(ctx context.Context, id domain.Identity, q domain.Query) ([]domain.Artist, error) {
	rows := make([]domain.Artist, 0)
	query := s.db.WithContext(ctx).Model(&domain.Artist{}).
		Where("artists.owner_username = ? AND artists.server_url = ?", id.Username, id.ServerURL).
		Where(`EXISTS (
			SELECT 1 FROM songs
			JOIN downloaded_media dm ON dm.song_id = songs.id
			  AND dm.owner_username = songs.owner_username
			  AND dm.server_url = songs.server_url
			WHERE songs.artist_id = artists.id
			  AND songs.owner_username = artists.owner_username
			  AND songs.server_url = artists.server_url
		)`)
	if q.Search != "" {
		query = query.Where("artists.name LIKE ?", "%"+q.Search+"%")
	}
	err := applyPaging(query, q, "artists.name ASC").Find(&rows).Error
	return rows, err
}

// ClearKind drops all cached rows of one kind for an identity
func (s *SQLiteCacheStore) ClearKind(ctx context.Context, id domain.Identity, kind domain.Kind) error {
	switch kind {
	case domain.KindSong:
		return s.scoped(ctx, id).Delete(&domain.Song{}).Error
	case domain.KindAlbum:
		return s.scoped(ctx, id).Delete(&domain.Album{}).Error
	case domain.KindArtist:
		return s.scoped(ctx, id).Delete(&domain.Artist{}).Error
	case domain.KindPlaylist:
		if err := s.scoped(ctx, id).Delete(&domain.PlaylistEntry{}).Error; err != nil {
			return err
		}
		return s.scoped(ctx, id).Delete(&domain.Playlist{}).Error
	}
	return fmt.Errorf("unknown entity kind: %s", kind)
}

// ClearIdentity drops every cached row for an identity, downloaded-media
// records included. Used on logout and server-URL change.
func (s *SQLiteCacheStore) ClearIdentity(ctx context.Context, id domain.Identity) error {
	for _, model := range []interface{}{
		&domain.PlaylistEntry{},
		&domain.Playlist{},
		&domain.Song{},
		&domain.Album{},
		&domain.Artist{},
		&domain.DownloadedMedia{},
	} {
		if err := s.scoped(ctx, id).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

// Stats counts cached rows per kind
func (s *SQLiteCacheStore) Stats(ctx context.Context, id domain.Identity) (*domain.LibraryStats, error) {
	stats := &domain.LibraryStats{}
	counts := []struct {
		model interface{}
		dest  *int64
	}{
		{&domain.Song{}, &stats.Songs},
		{&domain.Album{}, &stats.Albums},
		{&domain.Artist{}, &stats.Artists},
		{&domain.Playlist{}, &stats.Playlists},
		{&domain.DownloadedMedia{}, &stats.Downloaded},
	}
	for _, c := range counts {
		if err := s.scoped(ctx, id).Model(c.model).Count(c.dest).Error; err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// Close closes the database connection
func (s *SQLiteCacheStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
