package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/subsync-go/internal/domain"
)

// PlaybackQueue is the pipeline's main consumer: it holds the songs queued
// for playback, asks the offline source which of them are playable without
// connectivity, and submits download tasks for the rest. Its next/previous
// bookkeeping is plain list manipulation.
type PlaybackQueue struct {
	queueMgr *QueueManager
	offline  *OfflineSource
	identity domain.Identity
	logger   *zap.Logger

	mu    sync.Mutex
	songs []domain.Song
	pos   int
}

// NewPlaybackQueue creates an empty playback queue
func NewPlaybackQueue(queueMgr *QueueManager, offline *OfflineSource, identity domain.Identity, log *zap.Logger) *PlaybackQueue {
	return &PlaybackQueue{
		queueMgr: queueMgr,
		offline:  offline,
		identity: identity,
		logger:   log,
	}
}

// Replace swaps the queue contents and resets the position
func (pq *PlaybackQueue) Replace(songs []domain.Song) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	pq.songs = append([]domain.Song(nil), songs...)
	pq.pos = 0
}

// Append adds songs to the end of the queue
func (pq *PlaybackQueue) Append(songs ...domain.Song) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	pq.songs = append(pq.songs, songs...)
}

// Clear empties the queue
func (pq *PlaybackQueue) Clear() {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	pq.songs = nil
	pq.pos = 0
}

// Current returns the song at the playhead, or nil for an empty queue
func (pq *PlaybackQueue) Current() *domain.Song {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if len(pq.songs) == 0 {
		return nil
	}
	song := pq.songs[pq.pos]
	return &song
}

// Next advances the playhead, wrapping at the end
func (pq *PlaybackQueue) Next() *domain.Song {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if len(pq.songs) == 0 {
		return nil
	}
	pq.pos = (pq.pos + 1) % len(pq.songs)
	song := pq.songs[pq.pos]
	return &song
}

// Previous moves the playhead back, wrapping at the start
func (pq *PlaybackQueue) Previous() *domain.Song {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if len(pq.songs) == 0 {
		return nil
	}
	pq.pos = (pq.pos - 1 + len(pq.songs)) % len(pq.songs)
	song := pq.songs[pq.pos]
	return &song
}

// Shuffle reorders everything after the playhead, leaving the current song
// in place
func (pq *PlaybackQueue) Shuffle() {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if len(pq.songs) < 2 {
		return
	}
	rest := pq.songs[pq.pos+1:]
	rand.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
}

// Len returns the number of queued songs
func (pq *PlaybackQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.songs)
}

// Songs returns a copy of the queue contents
func (pq *PlaybackQueue) Songs() []domain.Song {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return append([]domain.Song(nil), pq.songs...)
}

// DownloadAll submits a download task for every queued song, in queue
// order, and returns the handles in the same order.
func (pq *PlaybackQueue) DownloadAll(authToken string) ([]*TaskHandle, error) {
	songs := pq.Songs()
	handles := make([]*TaskHandle, 0, len(songs))
	for _, song := range songs {
		h, err := pq.queueMgr.Submit(song.ID, pq.identity, authToken)
		if err != nil {
			return handles, fmt.Errorf("failed to submit download for %s: %w", song.ID, err)
		}
		handles = append(handles, h)
	}
	pq.logger.Info("Queued downloads for playback queue", zap.Int("count", len(handles)))
	return handles, nil
}

// PlayableOffline returns the subset of the queue with a downloaded file,
// in queue order. Recomputed on every call; downloads complete behind the
// queue's back.
func (pq *PlaybackQueue) PlayableOffline(ctx context.Context) ([]domain.Song, error) {
	songs := pq.Songs()
	playable := make([]domain.Song, 0, len(songs))
	for _, song := range songs {
		ok, err := pq.offline.IsSongAvailable(ctx, song.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			playable = append(playable, song)
		}
	}
	return playable, nil
}
