// Package server assembles the relay HTTP service.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/pkg/errors"

	"github.com/cce-project/relay/internal/attachment"
	"github.com/cce-project/relay/internal/profile"
	"github.com/cce-project/relay/plugin/backend"
	"github.com/cce-project/relay/plugin/storage/s3"
	"github.com/cce-project/relay/server/auth"
	apiv1 "github.com/cce-project/relay/server/router/api/v1"
	"github.com/cce-project/relay/store"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	httpServer *http.Server
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	stager, err := newStager(ctx, profile)
	if err != nil {
		return nil, err
	}
	relay := backend.NewClient(backend.Config{
		BaseURL: profile.BackendURL,
		APIKey:  profile.BackendAPIKey,
		Model:   profile.Model,
		Timeout: profile.BackendTimeout,
	})
	if profile.BackendURL == "" {
		slog.Warn("no backend URL configured, relay calls will fail")
	}
	if profile.ClientAPIKey == "" {
		slog.Warn("no client API key configured, only session callers are accepted")
	}
	authenticator := auth.NewAuthenticator(profile.Secret, profile.ClientAPIKey, profile.AllowGuests)

	echoServer := echo.New()
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	echoServer.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(_ *echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				slog.Warn("request failed", append(attrs, "err", v.Error)...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	}))

	s := &Server{
		Profile:    profile,
		Store:      store,
		echoServer: echoServer,
	}
	echoServer.GET("/healthz", func(c *echo.Context) error {
		return c.JSON(http.StatusOK, healthResponse{
			Status:  "healthy",
			Service: "relay",
			Version: profile.Version,
		})
	})
	apiv1.NewAPIV1Service(profile, store, authenticator, relay, stager).RegisterRoutes(echoServer)
	return s, nil
}

func newStager(ctx context.Context, profile *profile.Profile) (attachment.Stager, error) {
	if !profile.S3.Enabled() {
		return attachment.NewLocalStager(profile.UploadDir), nil
	}
	client, err := s3.NewClient(ctx, &s3.Config{
		Endpoint:     profile.S3.Endpoint,
		Region:       profile.S3.Region,
		Bucket:       profile.S3.Bucket,
		AccessKey:    profile.S3.AccessKey,
		SecretKey:    profile.S3.SecretKey,
		UsePathStyle: profile.S3.UsePathStyle,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create s3 client")
	}
	slog.Info("staging uploads in s3", "bucket", profile.S3.Bucket)
	return attachment.NewS3Stager(client, profile.S3.Prefix), nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start serves HTTP until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := net.JoinHostPort(s.Profile.Addr, fmt.Sprint(s.Profile.Port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}
	return s.Serve(ctx, listener)
}

// Serve serves HTTP on listener until ctx is canceled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.echoServer,
		ReadHeaderTimeout: 30 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("relay server started", "address", listener.Addr().String(), "mode", s.Profile.Mode, "version", s.Profile.Version)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}
	return s.Shutdown(context.Background())
}

// Shutdown stops accepting requests, waits for in-flight ones and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	slog.Info("relay server shutting down")
	var shutdownErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			shutdownErr = errors.Wrap(err, "failed to shutdown http server")
		}
	}
	if err := s.Store.Close(); err != nil && shutdownErr == nil {
		shutdownErr = errors.Wrap(err, "failed to close store")
	}
	slog.Info("relay server stopped")
	return shutdownErr
}
