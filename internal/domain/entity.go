package domain

import "time"

// Kind identifies an entity table in the local cache
type Kind string

const (
	KindSong     Kind = "song"
	KindAlbum    Kind = "album"
	KindArtist   Kind = "artist"
	KindPlaylist Kind = "playlist"
)

// ValidateKind checks if a kind is one of the cached entity kinds
func ValidateKind(kind Kind) bool {
	switch kind {
	case KindSong, KindAlbum, KindArtist, KindPlaylist:
		return true
	}
	return false
}

// Identity scopes cache rows to one account on one server. The same server
// can host multiple accounts; rows must never leak across identity switches.
type Identity struct {
	Username  string
	ServerURL string
}

// Song represents a track in the media server's catalog
type Song struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	OwnerUsername string    `json:"owner_username" gorm:"primaryKey"`
	ServerURL     string    `json:"server_url" gorm:"primaryKey"`
	Title         string    `json:"title" gorm:"index"`
	Artist        string    `json:"artist"`
	ArtistID      string    `json:"artist_id"`
	Album         string    `json:"album"`
	AlbumID       string    `json:"album_id" gorm:"index"`
	Track         int       `json:"track"`
	Genre         string    `json:"genre,omitempty"`
	Suffix        string    `json:"suffix"`
	ContentType   string    `json:"content_type"`
	Duration      int       `json:"duration"`
	Size          int64     `json:"size"`
	CoverArtID    string    `json:"cover_art_id,omitempty"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Album represents an album in the media server's catalog
type Album struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	OwnerUsername string    `json:"owner_username" gorm:"primaryKey"`
	ServerURL     string    `json:"server_url" gorm:"primaryKey"`
	Name          string    `json:"name" gorm:"index"`
	Artist        string    `json:"artist"`
	ArtistID      string    `json:"artist_id"`
	SongCount     int       `json:"song_count"`
	Duration      int       `json:"duration"`
	Year          int       `json:"year,omitempty"`
	CoverArtID    string    `json:"cover_art_id,omitempty"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Artist represents an artist in the media server's catalog
type Artist struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	OwnerUsername string    `json:"owner_username" gorm:"primaryKey"`
	ServerURL     string    `json:"server_url" gorm:"primaryKey"`
	Name          string    `json:"name" gorm:"index"`
	AlbumCount    int       `json:"album_count"`
	CoverArtID    string    `json:"cover_art_id,omitempty"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Playlist represents a playlist in the media server's catalog. SongIDs is
// populated by the remote source on fetch and persisted as playlist entries;
// it is not a column on the playlist table itself.
type Playlist struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	OwnerUsername string    `json:"owner_username" gorm:"primaryKey"`
	ServerURL     string    `json:"server_url" gorm:"primaryKey"`
	Name          string    `json:"name" gorm:"index"`
	Comment       string    `json:"comment,omitempty"`
	SongCount     int       `json:"song_count"`
	Duration      int       `json:"duration"`
	Public        bool      `json:"public"`
	SongIDs       []string  `json:"song_ids,omitempty" gorm:"-"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// PlaylistEntry is one song reference inside a playlist, kept in a join
// table so offline eligibility can be computed per query.
type PlaylistEntry struct {
	PlaylistID    string `json:"playlist_id" gorm:"primaryKey"`
	OwnerUsername string `json:"owner_username" gorm:"primaryKey"`
	ServerURL     string `json:"server_url" gorm:"primaryKey"`
	SongID        string `json:"song_id" gorm:"primaryKey;index"`
	Position      int    `json:"position"`
}

// DownloadedMedia maps a song to its local file. An entry existing is the
// single source of truth for "this song is available offline"; it is written
// only after the file's bytes are fully on disk.
type DownloadedMedia struct {
	SongID        string    `json:"song_id" gorm:"primaryKey"`
	OwnerUsername string    `json:"owner_username" gorm:"primaryKey"`
	ServerURL     string    `json:"server_url" gorm:"primaryKey"`
	FilePath      string    `json:"file_path" gorm:"not null"`
	Size          int64     `json:"size"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// SyncMode routes reads between the remote source and the offline source
type SyncMode string

const (
	ModeOnline  SyncMode = "online"
	ModeOffline SyncMode = "offline"
)

// Query describes a cache or remote read: free-text filter plus paging
type Query struct {
	Search string `json:"search,omitempty" form:"q"`
	Offset int    `json:"offset" form:"offset"`
	Limit  int    `json:"limit" form:"limit"`
	SortBy string `json:"sort_by,omitempty" form:"sort"`
}

// ReadRequest is the full fetch descriptor handed to the sync orchestrator.
// Mode is threaded explicitly rather than read from ambient state so tests
// and callers control routing per call.
type ReadRequest struct {
	Query       Query
	Mode        SyncMode
	FetchRemote bool
}

// LibraryStats counts cached rows and downloaded files per kind
type LibraryStats struct {
	Songs      int64 `json:"songs"`
	Albums     int64 `json:"albums"`
	Artists    int64 `json:"artists"`
	Playlists  int64 `json:"playlists"`
	Downloaded int64 `json:"downloaded"`
}
