package avatar

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Server exposes the cache at GET /images/:id.
type Server struct {
	echo   *echo.Echo
	cache  *Cache
	addr   string
	logger *zap.Logger
}

func NewServer(cache *Cache, addr string, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())

	s := &Server{echo: e, cache: cache, addr: addr, logger: logger.Named("http")}
	e.GET("/images/:id", s.handleImage)
	e.GET("/healthz", s.handleHealthCheck)
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("serving avatars", zap.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleImage(c echo.Context) error {
	raw := strings.TrimSuffix(c.Param("id"), ".png")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid character id")
	}

	path := s.cache.Path(uint(id))
	if _, err := os.Stat(path); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "image not found")
	}
	return c.File(path)
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
