package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/subsync-go/internal/domain"
)

func testSongs(ids ...string) []domain.Song {
	songs := make([]domain.Song, 0, len(ids))
	for _, id := range ids {
		songs = append(songs, domain.Song{ID: id, Title: "Song " + id})
	}
	return songs
}

func newTestPlaybackQueue(t *testing.T) (*PlaybackQueue, *QueueManager, func()) {
	t.Helper()
	cache, tasks, cleanup := setupTestStores(t)
	qm := newTestQueueManager(t, cache, tasks, &fakeRemote{content: "audio"}, &fakeFiles{})
	offline := NewOfflineSource(cache, testIdentity)
	pq := NewPlaybackQueue(qm, offline, testIdentity, zap.NewNop())
	return pq, qm, cleanup
}

func TestPlaybackQueue_CurrentOnEmptyQueue(t *testing.T) {
	pq, _, cleanup := newTestPlaybackQueue(t)
	defer cleanup()

	assert.Nil(t, pq.Current())
	assert.Nil(t, pq.Next())
	assert.Nil(t, pq.Previous())
	assert.Equal(t, 0, pq.Len())
}

func TestPlaybackQueue_ReplaceResetsPlayhead(t *testing.T) {
	pq, _, cleanup := newTestPlaybackQueue(t)
	defer cleanup()

	pq.Replace(testSongs("a", "b", "c"))
	pq.Next()
	require.Equal(t, "b", pq.Current().ID)

	pq.Replace(testSongs("x", "y"))
	assert.Equal(t, "x", pq.Current().ID)
	assert.Equal(t, 2, pq.Len())
}

func TestPlaybackQueue_NextAndPreviousWrap(t *testing.T) {
	pq, _, cleanup := newTestPlaybackQueue(t)
	defer cleanup()
	pq.Replace(testSongs("a", "b", "c"))

	assert.Equal(t, "b", pq.Next().ID)
	assert.Equal(t, "c", pq.Next().ID)
	assert.Equal(t, "a", pq.Next().ID, "next wraps to the start")

	assert.Equal(t, "c", pq.Previous().ID, "previous wraps to the end")
	assert.Equal(t, "b", pq.Previous().ID)
}

func TestPlaybackQueue_AppendKeepsPlayhead(t *testing.T) {
	pq, _, cleanup := newTestPlaybackQueue(t)
	defer cleanup()
	pq.Replace(testSongs("a", "b"))
	pq.Next()

	pq.Append(testSongs("c", "d")...)

	assert.Equal(t, "b", pq.Current().ID)
	assert.Equal(t, 4, pq.Len())
}

func TestPlaybackQueue_ShuffleKeepsCurrentSong(t *testing.T) {
	pq, _, cleanup := newTestPlaybackQueue(t)
	defer cleanup()
	pq.Replace(testSongs("a", "b", "c", "d", "e"))
	pq.Next() // playhead at "b"

	pq.Shuffle()

	assert.Equal(t, "b", pq.Current().ID)
	songs := pq.Songs()
	assert.Equal(t, "a", songs[0].ID, "songs before the playhead stay in place")
	assert.Len(t, songs, 5)

	// The tail is a permutation of the original tail
	tail := map[string]bool{}
	for _, s := range songs[2:] {
		tail[s.ID] = true
	}
	assert.Equal(t, map[string]bool{"c": true, "d": true, "e": true}, tail)
}

func TestPlaybackQueue_Clear(t *testing.T) {
	pq, _, cleanup := newTestPlaybackQueue(t)
	defer cleanup()
	pq.Replace(testSongs("a", "b"))

	pq.Clear()

	assert.Equal(t, 0, pq.Len())
	assert.Nil(t, pq.Current())
}

func TestPlaybackQueue_DownloadAllSubmitsInQueueOrder(t *testing.T) {
	pq, _, cleanup := newTestPlaybackQueue(t)
	defer cleanup()
	pq.Replace(testSongs("a", "b", "c"))

	handles, err := pq.DownloadAll("token")
	require.NoError(t, err)
	require.Len(t, handles, 3)

	assert.Equal(t, "a", handles[0].Task.SongID)
	assert.Equal(t, "b", handles[1].Task.SongID)
	assert.Equal(t, "c", handles[2].Task.SongID)
	assert.Less(t, handles[0].Task.EnqueueSeq, handles[1].Task.EnqueueSeq)
	assert.Less(t, handles[1].Task.EnqueueSeq, handles[2].Task.EnqueueSeq)
}

func TestPlaybackQueue_PlayableOffline(t *testing.T) {
	cache, tasks, cleanup := setupTestStores(t)
	defer cleanup()
	qm := newTestQueueManager(t, cache, tasks, &fakeRemote{}, &fakeFiles{})
	offline := NewOfflineSource(cache, testIdentity)
	pq := NewPlaybackQueue(qm, offline, testIdentity, zap.NewNop())

	ctx := context.Background()
	seedSong(t, cache, "a")
	seedSong(t, cache, "b")
	require.NoError(t, cache.RecordDownloadedMedia(ctx, testIdentity, domain.DownloadedMedia{
		SongID: "b", FilePath: "/media/b.mp3", Size: 10,
	}))

	pq.Replace(testSongs("a", "b"))

	playable, err := pq.PlayableOffline(ctx)
	require.NoError(t, err)
	require.Len(t, playable, 1)
	assert.Equal(t, "b", playable[0].ID)
}
