package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/subsync-go/internal/app"
	"github.com/yourusername/subsync-go/internal/domain"
)

// LibraryHandler exposes the synchronized catalog over HTTP. Each request
// runs one cache-then-network read and responds with the terminal resource;
// intermediate Loading emissions are not representable in a single
// response and are dropped here.
type LibraryHandler struct {
	library      *app.Library
	defaultLimit int
	logger       *zap.Logger
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(library *app.Library, defaultLimit int, log *zap.Logger) *LibraryHandler {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &LibraryHandler{library: library, defaultLimit: defaultLimit, logger: log}
}

// readResponse is the JSON shape of a terminal resource
type readResponse[E any] struct {
	State       domain.State `json:"state"`
	Data        []E          `json:"data"`
	NetworkData []E          `json:"network_data,omitempty"`
	EndOfList   bool         `json:"end_of_list"`
	Error       string       `json:"error,omitempty"`
}

// parseReadRequest extracts the fetch descriptor from query parameters
func (h *LibraryHandler) parseReadRequest(c *gin.Context) domain.ReadRequest {
	offset, _ := strconv.Atoi(c.Query("offset"))
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = h.defaultLimit
	}

	mode := domain.ModeOnline
	if c.Query("offline") == "true" {
		mode = domain.ModeOffline
	}
	fetchRemote := c.DefaultQuery("refresh", "true") != "false"

	return domain.ReadRequest{
		Query: domain.Query{
			Search: c.Query("q"),
			Offset: offset,
			Limit:  limit,
			SortBy: c.Query("sort"),
		},
		Mode:        mode,
		FetchRemote: fetchRemote,
	}
}

func respondResource[E any](c *gin.Context, req domain.ReadRequest, ch <-chan domain.Resource[E]) {
	terminal := app.Collect(ch)
	resp := readResponse[E]{
		State:       terminal.State,
		Data:        terminal.Data,
		NetworkData: terminal.NetworkData,
		EndOfList:   terminal.EndOfList(req.Query.Offset),
		Error:       terminal.Message,
	}
	if resp.Data == nil {
		resp.Data = make([]E, 0)
	}
	c.JSON(http.StatusOK, resp)
}

// Songs handles GET /api/v1/library/songs
func (h *LibraryHandler) Songs(c *gin.Context) {
	req := h.parseReadRequest(c)
	respondResource(c, req, h.library.Songs(c.Request.Context(), req))
}

// Albums handles GET /api/v1/library/albums
func (h *LibraryHandler) Albums(c *gin.Context) {
	req := h.parseReadRequest(c)
	respondResource(c, req, h.library.Albums(c.Request.Context(), req))
}

// Artists handles GET /api/v1/library/artists
func (h *LibraryHandler) Artists(c *gin.Context) {
	req := h.parseReadRequest(c)
	respondResource(c, req, h.library.Artists(c.Request.Context(), req))
}

// Playlists handles GET /api/v1/library/playlists
func (h *LibraryHandler) Playlists(c *gin.Context) {
	req := h.parseReadRequest(c)
	respondResource(c, req, h.library.Playlists(c.Request.Context(), req))
}

// Stats handles GET /api/v1/library/stats
func (h *LibraryHandler) Stats(c *gin.Context) {
	stats, err := h.library.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to compute library stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ClearKind handles DELETE /api/v1/library/:kind
func (h *LibraryHandler) ClearKind(c *gin.Context) {
	kind := domain.Kind(c.Param("kind"))
	if !domain.ValidateKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown entity kind"})
		return
	}
	if err := h.library.ClearKind(c.Request.Context(), kind); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": string(kind)})
}
