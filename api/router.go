package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/subsync-go/api/handlers"
	"github.com/yourusername/subsync-go/api/middleware"
	"github.com/yourusername/subsync-go/internal/app"
	"github.com/yourusername/subsync-go/internal/domain"
)

// SetupRouter wires the HTTP surface over the sync and download cores
func SetupRouter(
	library *app.Library,
	queueMgr *app.QueueManager,
	remote domain.RemoteSource,
	identity domain.Identity,
	pageLimit int,
	log *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(queueMgr, remote)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		libraryHandler := handlers.NewLibraryHandler(library, pageLimit, log)
		lib := v1.Group("/library")
		{
			lib.GET("/songs", libraryHandler.Songs)
			lib.GET("/albums", libraryHandler.Albums)
			lib.GET("/artists", libraryHandler.Artists)
			lib.GET("/playlists", libraryHandler.Playlists)
			lib.GET("/stats", libraryHandler.Stats)
			lib.DELETE("/:kind", libraryHandler.ClearKind)
		}

		downloadHandler := handlers.NewDownloadHandler(queueMgr, identity, log)
		wsHandler := handlers.NewProgressWebSocketHandler(queueMgr, log)
		downloads := v1.Group("/downloads")
		{
			downloads.POST("", downloadHandler.Submit)
			downloads.GET("", downloadHandler.List)
			downloads.GET("/stats", downloadHandler.Stats)
			downloads.GET("/ws", wsHandler.HandleWebSocket)
			downloads.GET("/:id", downloadHandler.Get)
			downloads.DELETE("", downloadHandler.StopAll)
		}
	}

	return router
}
