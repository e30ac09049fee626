package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/files"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser a stable token; the WS
// adapter uses it as the connection id.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, coord *orch.Coordinator, store *files.Store) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	sessStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HuddleSessions", sessStore))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	ctl := signal.NewWSController(coord, cfg)
	api.GET("/ws", func(c *gin.Context) {
		ctl.Handle(ctx, c)
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, coord.Rooms.ListRooms())
	})

	api.POST("/files", func(c *gin.Context) {
		uploadFile(c, cfg, store)
	})
	api.GET("/files/:id", func(c *gin.Context) {
		downloadFile(c, store)
	})

	return r
}

func uploadFile(c *gin.Context, cfg *config.Config, store *files.Store) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	defer f.Close()

	// One byte past the ceiling is enough to reject without buffering an
	// arbitrarily large body.
	data, err := io.ReadAll(io.LimitReader(f, cfg.MaxFileSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	fileID, err := store.ValidateAndStore(data, header.Header.Get("Content-Type"), header.Size)
	switch {
	case errors.Is(err, files.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
	case errors.Is(err, files.ErrTypeNotAllowed):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "file type not allowed"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
	default:
		c.JSON(http.StatusCreated, gin.H{"fileId": fileID})
	}
}

func downloadFile(c *gin.Context, store *files.Store) {
	data, err := store.Retrieve(c.Param("id"))
	if errors.Is(err, files.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "retrieve failed"})
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}
