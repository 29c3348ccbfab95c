package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/yourusername/subsync-go/internal/domain"
)

// Library is the caller-facing read repository. Each entity kind gets the
// shared SyncRead algorithm through its own SourceSet; callers receive a
// Resource sequence and never see the cache/network split.
type Library struct {
	store    domain.CacheStore
	remote   domain.RemoteSource
	offline  *OfflineSource
	identity domain.Identity
	logger   *zap.Logger
}

// NewLibrary creates a library bound to one identity
func NewLibrary(store domain.CacheStore, remote domain.RemoteSource, identity domain.Identity, log *zap.Logger) *Library {
	return &Library{
		store:    store,
		remote:   remote,
		offline:  NewOfflineSource(store, identity),
		identity: identity,
		logger:   log,
	}
}

// Offline exposes the availability-filtered projection for consumers that
// need it directly (the playback queue manager)
func (l *Library) Offline() *OfflineSource {
	return l.offline
}

// Songs reads songs cache-then-network
func (l *Library) Songs(ctx context.Context, req domain.ReadRequest) <-chan domain.Resource[domain.Song] {
	return SyncRead(ctx, SourceSet[domain.Song]{
		QueryCache: func(ctx context.Context, q domain.Query) ([]domain.Song, error) {
			return l.store.QuerySongs(ctx, l.identity, q)
		},
		QueryOffline: l.offline.Songs,
		FetchRemote: func(ctx context.Context, q domain.Query) ([]domain.Song, error) {
			rows, err := l.remote.SearchSongs(ctx, q)
			if err != nil {
				l.logger.Warn("Remote song fetch failed", zap.Error(err))
			}
			return rows, err
		},
		UpsertCache: func(ctx context.Context, rows []domain.Song) error {
			return l.store.UpsertSongs(ctx, l.identity, rows)
		},
	}, req)
}

// Albums reads albums cache-then-network
func (l *Library) Albums(ctx context.Context, req domain.ReadRequest) <-chan domain.Resource[domain.Album] {
	return SyncRead(ctx, SourceSet[domain.Album]{
		QueryCache: func(ctx context.Context, q domain.Query) ([]domain.Album, error) {
			return l.store.QueryAlbums(ctx, l.identity, q)
		},
		QueryOffline: l.offline.Albums,
		FetchRemote: func(ctx context.Context, q domain.Query) ([]domain.Album, error) {
			rows, err := l.remote.SearchAlbums(ctx, q)
			if err != nil {
				l.logger.Warn("Remote album fetch failed", zap.Error(err))
			}
			return rows, err
		},
		UpsertCache: func(ctx context.Context, rows []domain.Album) error {
			return l.store.UpsertAlbums(ctx, l.identity, rows)
		},
	}, req)
}

// Artists reads artists cache-then-network
func (l *Library) Artists(ctx context.Context, req domain.ReadRequest) <-chan domain.Resource[domain.Artist] {
	return SyncRead(ctx, SourceSet[domain.Artist]{
		QueryCache: func(ctx context.Context, q domain.Query) ([]domain.Artist, error) {
			return l.store.QueryArtists(ctx, l.identity, q)
		},
		QueryOffline: l.offline.Artists,
		FetchRemote: func(ctx context.Context, q domain.Query) ([]domain.Artist, error) {
			rows, err := l.remote.SearchArtists(ctx, q)
			if err != nil {
				l.logger.Warn("Remote artist fetch failed", zap.Error(err))
			}
			return rows, err
		},
		UpsertCache: func(ctx context.Context, rows []domain.Artist) error {
			return l.store.UpsertArtists(ctx, l.identity, rows)
		},
	}, req)
}

// Playlists reads playlists cache-then-network
func (l *Library) Playlists(ctx context.Context, req domain.ReadRequest) <-chan domain.Resource[domain.Playlist] {
	return SyncRead(ctx, SourceSet[domain.Playlist]{
		QueryCache: func(ctx context.Context, q domain.Query) ([]domain.Playlist, error) {
			return l.store.QueryPlaylists(ctx, l.identity, q)
		},
		QueryOffline: l.offline.Playlists,
		FetchRemote: func(ctx context.Context, q domain.Query) ([]domain.Playlist, error) {
			rows, err := l.remote.Playlists(ctx, q)
			if err != nil {
				l.logger.Warn("Remote playlist fetch failed", zap.Error(err))
			}
			return rows, err
		},
		UpsertCache: func(ctx context.Context, rows []domain.Playlist) error {
			return l.store.UpsertPlaylists(ctx, l.identity, rows)
		},
	}, req)
}

// Stats counts cached rows and downloaded files
func (l *Library) Stats(ctx context.Context) (*domain.LibraryStats, error) {
	return l.store.Stats(ctx, l.identity)
}

// ClearKind drops one entity table for this identity
func (l *Library) ClearKind(ctx context.Context, kind domain.Kind) error {
	return l.store.ClearKind(ctx, l.identity, kind)
}

// Logout invalidates the whole cache for this identity
func (l *Library) Logout(ctx context.Context) error {
	l.logger.Info("Clearing cache for identity",
		zap.String("username", l.identity.Username),
		zap.String("server", l.identity.ServerURL))
	return l.store.ClearIdentity(ctx, l.identity)
}
