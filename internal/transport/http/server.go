package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/richgram/richgram-server/internal/auth"
	"github.com/richgram/richgram-server/internal/blob"
	"github.com/richgram/richgram-server/internal/config"
	"github.com/richgram/richgram-server/internal/core"
	"github.com/richgram/richgram-server/internal/service/friends"
	"github.com/richgram/richgram-server/internal/service/users"
)

// Services bundles the collaborators the HTTP surface exposes.
type Services struct {
	Hub     *core.Hub
	Auth    *auth.Service
	Users   *users.Service
	Friends *friends.Service
	Blobs   *blob.DiskStore
}

// NewServer builds the HTTP server: the REST API, uploaded-file serving
// and the websocket chat endpoint.
func NewServer(svc Services, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	apiHandlers := NewAPIHandlers(svc.Auth, logger)
	userHandlers := NewUserHandlers(svc.Users, logger)
	friendsHandlers := NewFriendsHandlers(svc.Friends, logger)
	uploadHandlers := NewUploadHandlers(svc.Blobs, logger)
	wsHandler := NewWSHandler(svc.Hub, svc.Auth, logger)

	router.GET("/health", healthHandler)
	router.GET("/ws", wsHandler.Handle)
	router.Static("/uploads", cfg.UploadDir)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	authed := api.Group("")
	authed.Use(AuthMiddleware(svc.Auth, logger))
	authed.GET("/users/search", userHandlers.Search)
	authed.GET("/users/:username", userHandlers.Profile)
	authed.PUT("/users/profile", userHandlers.UpdateProfile)
	authed.GET("/friends", friendsHandlers.List)
	authed.POST("/friends", friendsHandlers.SendRequest)
	authed.GET("/friends/requests", friendsHandlers.ListRequests)
	authed.PUT("/friends/respond", friendsHandlers.Respond)
	authed.POST("/upload", uploadHandlers.Upload)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, gin.H{"status": "ok"})
}
