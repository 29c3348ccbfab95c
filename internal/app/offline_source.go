package app

import (
	"context"

	"github.com/yourusername/subsync-go/internal/domain"
)

// OfflineSource presents the same read shape as the remote source, backed
// exclusively by cache rows that are usable with no connectivity. Every
// call recomputes eligibility against the downloaded-media records; nothing
// is memoized, because downloads complete asynchronously and would make a
// cached answer stale.
type OfflineSource struct {
	store    domain.CacheStore
	identity domain.Identity
}

// NewOfflineSource creates an offline source for one identity
func NewOfflineSource(store domain.CacheStore, identity domain.Identity) *OfflineSource {
	return &OfflineSource{store: store, identity: identity}
}

// Songs returns cached songs whose file is on disk
func (o *OfflineSource) Songs(ctx context.Context, q domain.Query) ([]domain.Song, error) {
	return o.store.OfflineSongs(ctx, o.identity, q)
}

// Albums returns albums with at least one downloaded song
func (o *OfflineSource) Albums(ctx context.Context, q domain.Query) ([]domain.Album, error) {
	return o.store.OfflineAlbums(ctx, o.identity, q)
}

// Artists returns artists with at least one downloaded song
func (o *OfflineSource) Artists(ctx context.Context, q domain.Query) ([]domain.Artist, error) {
	return o.store.OfflineArtists(ctx, o.identity, q)
}

// Playlists returns playlists whose full song set is downloaded. A playlist
// with any entry lacking a downloaded-media record is excluded.
func (o *OfflineSource) Playlists(ctx context.Context, q domain.Query) ([]domain.Playlist, error) {
	return o.store.OfflinePlaylists(ctx, o.identity, q)
}

// IsSongAvailable reports whether one song can play without connectivity
func (o *OfflineSource) IsSongAvailable(ctx context.Context, songID string) (bool, error) {
	rec, err := o.store.DownloadedMediaBySong(ctx, o.identity, songID)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}
