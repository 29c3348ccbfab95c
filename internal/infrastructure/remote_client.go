package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/subsync-go/internal/domain"
)

const (
	clientName      = "subsync"
	protocolVersion = "1.16.1"
)

// RemoteClient implements domain.RemoteSource over the media server's REST
// protocol. It is stateless: every call carries the full auth parameters,
// and server-reported failures are mapped to the closed ProtocolError enum
// rather than thrown.
type RemoteClient struct {
	baseURL    string
	username   string
	authToken  string
	httpClient *http.Client
	// streamClient has no overall timeout; a whole-file transfer can
	// legitimately outlive the metadata-call deadline
	streamClient *http.Client
}

// NewRemoteClient creates a client for one server account
func NewRemoteClient(cfg domain.RemoteConfig) *RemoteClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RemoteClient{
		baseURL:   strings.TrimRight(cfg.ServerURL, "/"),
		username:  cfg.Username,
		authToken: cfg.AuthToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{},
	}
}

// wire DTOs

type envelope struct {
	Response struct {
		Status string     `json:"status"`
		Error  *wireError `json:"error,omitempty"`

		SearchResult *struct {
			Songs   []wireSong   `json:"song"`
			Albums  []wireAlbum  `json:"album"`
			Artists []wireArtist `json:"artist"`
		} `json:"searchResult3,omitempty"`

		Playlists *struct {
			Playlist []wirePlaylist `json:"playlist"`
		} `json:"playlists,omitempty"`

		Playlist *wirePlaylist `json:"playlist,omitempty"`
	} `json:"subsonic-response"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wireSong struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	ArtistID    string `json:"artistId"`
	Album       string `json:"album"`
	AlbumID     string `json:"albumId"`
	Track       int    `json:"track"`
	Genre       string `json:"genre"`
	Suffix      string `json:"suffix"`
	ContentType string `json:"contentType"`
	Duration    int    `json:"duration"`
	Size        int64  `json:"size"`
	CoverArt    string `json:"coverArt"`
}

type wireAlbum struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	ArtistID  string `json:"artistId"`
	SongCount int    `json:"songCount"`
	Duration  int    `json:"duration"`
	Year      int    `json:"year"`
	CoverArt  string `json:"coverArt"`
}

type wireArtist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AlbumCount int    `json:"albumCount"`
	CoverArt   string `json:"coverArt"`
}

type wirePlaylist struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Comment   string     `json:"comment"`
	SongCount int        `json:"songCount"`
	Duration  int        `json:"duration"`
	Public    bool       `json:"public"`
	Entries   []wireSong `json:"entry"`
}

// mapErrorCode folds the wire protocol's numeric codes into the closed
// domain taxonomy
func mapErrorCode(code int) domain.ErrorCode {
	switch code {
	case 30:
		return domain.CodeNotImplemented
	case 40, 41, 44:
		return domain.CodeSessionExpired
	case 60:
		return domain.CodeDuplicate
	case 70:
		return domain.CodeNotFound
	case 80:
		return domain.CodeEmptyResult
	default:
		return domain.CodeGeneric
	}
}

// call performs one REST request and decodes the response envelope
func (c *RemoteClient) call(ctx context.Context, endpoint string, params url.Values) (*envelope, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("u", c.username)
	params.Set("t", c.authToken)
	params.Set("v", protocolVersion)
	params.Set("c", clientName)
	params.Set("f", "json")

	reqURL := fmt.Sprintf("%s/rest/%s?%s", c.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", endpoint, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote call %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote call %s returned status %d", endpoint, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}

	if env.Response.Status != "ok" {
		we := env.Response.Error
		if we == nil {
			return nil, &domain.ProtocolError{Code: domain.CodeGeneric, Message: "unspecified server error"}
		}
		return nil, &domain.ProtocolError{Code: mapErrorCode(we.Code), Message: we.Message}
	}

	return &env, nil
}

// Ping verifies connectivity and session validity
func (c *RemoteClient) Ping(ctx context.Context) error {
	_, err := c.call(ctx, "ping", nil)
	return err
}

// SearchSongs fetches one page of songs matching the query
func (c *RemoteClient) SearchSongs(ctx context.Context, q domain.Query) ([]domain.Song, error) {
	env, err := c.searchPage(ctx, q, "songCount", "songOffset")
	if err != nil {
		return nil, err
	}
	songs := make([]domain.Song, 0)
	if env.Response.SearchResult != nil {
		for _, ws := range env.Response.SearchResult.Songs {
			songs = append(songs, songFromWire(ws))
		}
	}
	return songs, nil
}

// SearchAlbums fetches one page of albums matching the query
func (c *RemoteClient) SearchAlbums(ctx context.Context, q domain.Query) ([]domain.Album, error) {
	env, err := c.searchPage(ctx, q, "albumCount", "albumOffset")
	if err != nil {
		return nil, err
	}
	albums := make([]domain.Album, 0)
	if env.Response.SearchResult != nil {
		for _, wa := range env.Response.SearchResult.Albums {
			albums = append(albums, domain.Album{
				ID:         wa.ID,
				Name:       wa.Name,
				Artist:     wa.Artist,
				ArtistID:   wa.ArtistID,
				SongCount:  wa.SongCount,
				Duration:   wa.Duration,
				Year:       wa.Year,
				CoverArtID: wa.CoverArt,
			})
		}
	}
	return albums, nil
}

// SearchArtists fetches one page of artists matching the query
func (c *RemoteClient) SearchArtists(ctx context.Context, q domain.Query) ([]domain.Artist, error) {
	env, err := c.searchPage(ctx, q, "artistCount", "artistOffset")
	if err != nil {
		return nil, err
	}
	artists := make([]domain.Artist, 0)
	if env.Response.SearchResult != nil {
		for _, wa := range env.Response.SearchResult.Artists {
			artists = append(artists, domain.Artist{
				ID:         wa.ID,
				Name:       wa.Name,
				AlbumCount: wa.AlbumCount,
				CoverArtID: wa.CoverArt,
			})
		}
	}
	return artists, nil
}

func (c *RemoteClient) searchPage(ctx context.Context, q domain.Query, countParam, offsetParam string) (*envelope, error) {
	params := url.Values{}
	params.Set("query", q.Search)
	if q.Limit > 0 {
		params.Set(countParam, strconv.Itoa(q.Limit))
	}
	params.Set(offsetParam, strconv.Itoa(q.Offset))
	return c.call(ctx, "search3", params)
}

// Playlists fetches one page of playlists with their song id sets. The
// protocol has no playlist paging, so paging is applied client-side before
// the per-playlist entry fetch.
func (c *RemoteClient) Playlists(ctx context.Context, q domain.Query) ([]domain.Playlist, error) {
	env, err := c.call(ctx, "getPlaylists", nil)
	if err != nil {
		return nil, err
	}

	all := make([]wirePlaylist, 0)
	if env.Response.Playlists != nil {
		all = env.Response.Playlists.Playlist
	}
	if q.Search != "" {
		filtered := all[:0]
		for _, wp := range all {
			if strings.Contains(strings.ToLower(wp.Name), strings.ToLower(q.Search)) {
				filtered = append(filtered, wp)
			}
		}
		all = filtered
	}
	if q.Offset >= len(all) {
		return []domain.Playlist{}, nil
	}
	all = all[q.Offset:]
	if q.Limit > 0 && len(all) > q.Limit {
		all = all[:q.Limit]
	}

	playlists := make([]domain.Playlist, 0, len(all))
	for _, wp := range all {
		p := domain.Playlist{
			ID:        wp.ID,
			Name:      wp.Name,
			Comment:   wp.Comment,
			SongCount: wp.SongCount,
			Duration:  wp.Duration,
			Public:    wp.Public,
		}
		ids, err := c.playlistSongIDs(ctx, wp.ID)
		if err != nil {
			return nil, err
		}
		p.SongIDs = ids
		playlists = append(playlists, p)
	}
	return playlists, nil
}

func (c *RemoteClient) playlistSongIDs(ctx context.Context, playlistID string) ([]string, error) {
	params := url.Values{}
	params.Set("id", playlistID)
	env, err := c.call(ctx, "getPlaylist", params)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0)
	if env.Response.Playlist != nil {
		for _, e := range env.Response.Playlist.Entries {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

// DownloadStream requests the whole-file byte stream for a song. The given
// authToken overrides the client's own so persisted tasks keep working
// across credential refreshes.
func (c *RemoteClient) DownloadStream(ctx context.Context, songID, authToken string) (io.ReadCloser, int64, error) {
	token := authToken
	if token == "" {
		token = c.authToken
	}
	params := url.Values{}
	params.Set("id", songID)
	params.Set("u", c.username)
	params.Set("t", token)
	params.Set("v", protocolVersion)
	params.Set("c", clientName)

	reqURL := fmt.Sprintf("%s/rest/download?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, &domain.StreamError{Status: resp.StatusCode}
	}

	// An OK response with a JSON body is an in-band protocol error, not a
	// byte stream.
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		defer resp.Body.Close()
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && env.Response.Error != nil {
			return nil, 0, &domain.ProtocolError{
				Code:    mapErrorCode(env.Response.Error.Code),
				Message: env.Response.Error.Message,
			}
		}
		return nil, 0, &domain.ProtocolError{Code: domain.CodeGeneric, Message: "missing byte stream"}
	}

	return resp.Body, resp.ContentLength, nil
}

func songFromWire(ws wireSong) domain.Song {
	return domain.Song{
		ID:          ws.ID,
		Title:       ws.Title,
		Artist:      ws.Artist,
		ArtistID:    ws.ArtistID,
		Album:       ws.Album,
		AlbumID:     ws.AlbumID,
		Track:       ws.Track,
		Genre:       ws.Genre,
		Suffix:      ws.Suffix,
		ContentType: ws.ContentType,
		Duration:    ws.Duration,
		Size:        ws.Size,
		CoverArtID:  ws.CoverArt,
	}
}
