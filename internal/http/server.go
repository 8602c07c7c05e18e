package http

import (
	"context"
	stdhttp "net/http"

	"drive-service/internal/auth"
	"drive-service/internal/config"
	"drive-service/internal/http/handler"
	"drive-service/internal/http/middleware"
	"drive-service/pkg/metrics"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

const (
	jsonKeyStatus    = "status"
	statusOK         = "ok"
	requestBodyLimit = "1M"
)

type ServerDependencies struct {
	Config         *config.Config
	Logger         zerolog.Logger
	AuthMiddleware *auth.Middleware
	Entries        handler.EntryService
	Trash          handler.TrashService
	Shares         handler.ShareService
	Uploads        handler.UploadService
	Usage          handler.UsageService
	Downloads      handler.DownloadPresigner
	URLCache       handler.URLCache
	Audit          handler.Auditor
	Metrics        *metrics.Metrics
}

type Server struct {
	echo *echo.Echo
	deps *ServerDependencies
}

func NewServer(deps *ServerDependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.HTTPErrorHandler = NewErrorHandler(deps.Logger)
	e.Validator = handler.NewRequestValidator()

	e.Server.ReadTimeout = deps.Config.Server.ReadTimeout
	e.Server.WriteTimeout = deps.Config.Server.WriteTimeout

	// Metrics sees the status the error handler finally wrote.
	e.Use(deps.Metrics.Middleware())
	e.Use(middleware.RequestID(deps.Logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestLogger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit(requestBodyLimit))

	entryHandler := handler.NewEntryHandler(deps.Entries, deps.URLCache, deps.Logger)
	trashHandler := handler.NewTrashHandler(deps.Trash, deps.Audit)
	shareHandler := handler.NewShareHandler(deps.Shares, deps.Downloads, deps.URLCache, deps.Audit, deps.Logger)
	uploadHandler := handler.NewUploadHandler(deps.Uploads)
	usageHandler := handler.NewUsageHandler(deps.Usage)

	e.GET("/health", healthCheck)
	e.GET("/metrics", deps.Metrics.Handler)
	e.GET("/s/:code", shareHandler.Download, middleware.NewShareRateLimiter().Middleware())

	userRateLimiter := middleware.NewRateLimiter(deps.Config.Limits.RPS, deps.Config.Limits.Burst)

	api := e.Group("/api")
	api.Use(deps.AuthMiddleware.RequireJWT())
	api.Use(userRateLimiter.Middleware())

	api.POST("/folders", entryHandler.CreateFolder)
	api.GET("/entries/children", entryHandler.ListRootChildren)
	api.GET("/entries/tree", entryHandler.GetRootTree)
	api.GET("/entries/:id", entryHandler.GetEntry)
	api.GET("/entries/:id/children", entryHandler.ListChildren)
	api.GET("/entries/:id/tree", entryHandler.GetTree)
	api.PATCH("/entries/:id", entryHandler.Rename)
	api.POST("/entries/:id/move", entryHandler.Move)

	api.POST("/entries/:id/trash", trashHandler.Trash)
	api.POST("/entries/:id/restore", trashHandler.Restore)
	api.POST("/entries/:id/archive", trashHandler.Archive)
	api.POST("/entries/:id/unarchive", trashHandler.Unarchive)
	api.DELETE("/entries/:id", trashHandler.DeletePermanently)
	api.GET("/trash", trashHandler.ListTrash)
	api.DELETE("/trash/:id", trashHandler.Purge)

	api.POST("/files/:id/share", shareHandler.Issue)
	api.GET("/files/:id/share", shareHandler.Current)
	api.DELETE("/shares/:code", shareHandler.Revoke)

	api.POST("/uploads", uploadHandler.Presign)
	api.POST("/uploads/complete", uploadHandler.Complete)

	api.GET("/usage", usageHandler.GetUsage)

	return &Server{
		echo: e,
		deps: deps,
	}
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP lets tests drive the full middleware chain without a listener.
func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.echo.ServeHTTP(w, r)
}

func healthCheck(c echo.Context) error {
	return c.JSON(stdhttp.StatusOK, map[string]string{
		jsonKeyStatus: statusOK,
	})
}
