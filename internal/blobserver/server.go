package blobserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"deckport/internal/blobstore"
	"deckport/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// ObjectStore is the read side of the blob store.
type ObjectStore interface {
	Stat(ctx context.Context, path string) (blobstore.Object, error)
	Open(ctx context.Context, path string) (*os.File, blobstore.Object, error)
}

// Server answers the access URLs issued for migrated assets.
type Server struct {
	store  ObjectStore
	bucket string
	logger *slog.Logger
	engine *gin.Engine
}

// New builds the routes for one bucket.
func New(store ObjectStore, bucket string, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		store:  store,
		bucket: bucket,
		logger: logging.NewComponentLogger(logger, "blobserver"),
	}

	engine := gin.New()
	engine.UseRawPath = true
	engine.UnescapePathValues = true
	engine.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(engine)
	s.engine = engine
	return s
}

// RegisterRoutes mounts the object routes on r.
func (s *Server) RegisterRoutes(r gin.IRoutes) {
	r.GET("/healthz", s.health)
	r.GET("/v0/b/:bucket/o/:object", s.getObject)
	r.GET("/public/:bucket/*path", s.getPublic)
}

// Handler exposes the engine for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("blob server listening",
			logging.String("addr", addr),
			logging.String("bucket", s.bucket),
			logging.String(logging.FieldEventType, "server_start"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("blob server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("blob server shutting down", logging.String(logging.FieldEventType, "server_stop"))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown blob server: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "bucket": s.bucket})
}

func (s *Server) getObject(c *gin.Context) {
	if c.Param("bucket") != s.bucket {
		c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
		return
	}
	path := c.Param("object")
	obj, ok := s.stat(c, path)
	if !ok {
		return
	}

	token := c.Query("token")
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(obj.AccessToken)) != 1 {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid access token"})
		return
	}

	if c.Query("alt") == "media" {
		s.stream(c, path)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":        obj.Path,
		"bucket":      s.bucket,
		"contentType": obj.ContentType,
		"size":        strconv.FormatInt(obj.Size, 10),
		"sha256":      obj.Digest,
		"timeCreated": obj.StoredAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) getPublic(c *gin.Context) {
	if c.Param("bucket") != s.bucket {
		c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
		return
	}
	path := strings.TrimPrefix(c.Param("path"), "/")
	obj, ok := s.stat(c, path)
	if !ok {
		return
	}
	if !obj.Public {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}
	s.stream(c, path)
}

func (s *Server) stat(c *gin.Context, path string) (blobstore.Object, bool) {
	obj, err := s.store.Stat(c.Request.Context(), path)
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return blobstore.Object{}, false
	case err != nil:
		s.logger.Error("stat object failed", logging.String(logging.FieldAssetPath, path), logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stat failed"})
		return blobstore.Object{}, false
	}
	return obj, true
}

func (s *Server) stream(c *gin.Context, path string) {
	f, obj, err := s.store.Open(c.Request.Context(), path)
	if errors.Is(err, blobstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}
	if err != nil {
		s.logger.Error("open object failed", logging.String(logging.FieldAssetPath, path), logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "open failed"})
		return
	}
	defer f.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, obj.Size, contentType, f, map[string]string{
		"Cache-Control": "private, max-age=3600",
		"ETag":          `"` + obj.Digest + `"`,
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request served",
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("latency", time.Since(start)))
	}
}
