package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/subsync-go/internal/domain"
)

func TestOfflineSource_IsSongAvailable(t *testing.T) {
	cache, _, cleanup := setupTestStores(t)
	defer cleanup()
	ctx := context.Background()

	seedSong(t, cache, "s1")
	seedSong(t, cache, "s2")
	require.NoError(t, cache.RecordDownloadedMedia(ctx, testIdentity, domain.DownloadedMedia{
		SongID: "s1", FilePath: "/media/s1.mp3", Size: 10,
	}))

	offline := NewOfflineSource(cache, testIdentity)

	ok, err := offline.IsSongAvailable(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = offline.IsSongAvailable(ctx, "s2")
	require.NoError(t, err)
	assert.False(t, ok, "cached metadata alone is not offline availability")
}

func TestOfflineSource_SongsFiltersByDownloadedFile(t *testing.T) {
	cache, _, cleanup := setupTestStores(t)
	defer cleanup()
	ctx := context.Background()

	seedSong(t, cache, "s1")
	seedSong(t, cache, "s2")
	seedSong(t, cache, "s3")
	for _, id := range []string{"s1", "s3"} {
		require.NoError(t, cache.RecordDownloadedMedia(ctx, testIdentity, domain.DownloadedMedia{
			SongID: id, FilePath: "/media/" + id + ".mp3", Size: 10,
		}))
	}

	offline := NewOfflineSource(cache, testIdentity)

	songs, err := offline.Songs(ctx, domain.Query{})
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, "s1", songs[0].ID)
	assert.Equal(t, "s3", songs[1].ID)
}

func TestOfflineSource_PlaylistsRequireEveryEntryDownloaded(t *testing.T) {
	cache, _, cleanup := setupTestStores(t)
	defer cleanup()
	ctx := context.Background()

	seedSong(t, cache, "s1")
	seedSong(t, cache, "s2")
	require.NoError(t, cache.UpsertPlaylists(ctx, testIdentity, []domain.Playlist{
		{ID: "p1", Name: "Road Trip", SongIDs: []string{"s1", "s2"}},
	}))
	require.NoError(t, cache.RecordDownloadedMedia(ctx, testIdentity, domain.DownloadedMedia{
		SongID: "s1", FilePath: "/media/s1.mp3", Size: 10,
	}))

	offline := NewOfflineSource(cache, testIdentity)

	// N-1 of N downloaded: not eligible
	playlists, err := offline.Playlists(ctx, domain.Query{})
	require.NoError(t, err)
	assert.Empty(t, playlists)

	// The final download flips eligibility
	require.NoError(t, cache.RecordDownloadedMedia(ctx, testIdentity, domain.DownloadedMedia{
		SongID: "s2", FilePath: "/media/s2.mp3", Size: 10,
	}))

	playlists, err = offline.Playlists(ctx, domain.Query{})
	require.NoError(t, err)
	require.Len(t, playlists, 1)
	assert.Equal(t, "p1", playlists[0].ID)
}
