package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"gowa-blast/config"
	"gowa-blast/database"
	"gowa-blast/internal/handler"
	"gowa-blast/internal/helper"
	"gowa-blast/internal/model"
	"gowa-blast/internal/service"
	"gowa-blast/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Connect(ctx, cfg.Database, logger.With().Str("component", "database").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("database init failed")
	}
	defer store.Close()

	manager := service.NewManager(ctx, service.Options{
		Factory:        adapterFactory(cfg, store, logger),
		Credentials:    store,
		Devices:        store,
		RenderQR:       helper.QRDataURL,
		ReconnectDelay: cfg.Session.ReconnectDelay,
		Log:            logger.With().Str("component", "session").Logger(),
	})
	blaster := service.NewBlaster(manager, store, cfg.Blast.PaceInterval, logger.With().Str("component", "blast").Logger())
	h := handler.New(cfg, manager, blaster, store, logger.With().Str("component", "http").Logger())

	// Setup Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.CORSOrigin},
		AllowMethods: []string{
			echo.GET,
			echo.POST,
			echo.PUT,
			echo.PATCH,
			echo.DELETE,
			echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestedWith,
			echo.HeaderAuthorization,
		},
		AllowCredentials: true, // kalau pakai cookie / auth
	}))
	e.OPTIONS("/*", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RatePerSec),
				Burst:     cfg.RatePerSec,
				ExpiresIn: 3 * time.Minute,
			},
		),
	}))

	e.POST("/login-jwt", h.LoginJWT) // di luar group JWT
	e.GET("/", func(c echo.Context) error { // Health check
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "WhatsApp blast API is running",
			"version": "1.0.0",
		})
	})

	// Daftar group route yang butuh JWT
	api := e.Group("/api", echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(cfg.JWTSecret),
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"success": false,
				"error":   "Authentication required",
				"message": "Please provide a valid Bearer token in the Authorization header",
			})
		},
	}))
	api.GET("/validate", h.ValidateToken)

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		message := "Internal Server Error"

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			message = fmt.Sprintf("%v", he.Message)
		}
		response := map[string]interface{}{
			"success": false,
			"error":   message,
		}
		switch code {
		case http.StatusUnauthorized:
			response["message"] = "Authentication required. Please login first."
		case http.StatusMethodNotAllowed:
			response["message"] = "Method not allowed for this endpoint"
		case http.StatusNotFound:
			response["message"] = "Endpoint not found"
		}

		c.JSON(code, response)
	}

	// Session routes
	api.GET("/status", h.Status)
	api.POST("/connect", h.Connect)
	api.POST("/disconnect", h.Disconnect)

	// Blast routes
	api.POST("/blast", h.Blast)
	api.GET("/blasts", h.ListBlasts)

	go func() {
		if err := e.Start("127.0.0.1:" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()
	logger.Info().Str("port", cfg.Port).Msg("server started")

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown failed")
	}
	// Socket only: credentials stay so the next boot restores the session.
	manager.Shutdown()
}

// adapterFactory builds the transport for a connect request. The
// pairing variants share the whatsmeow device store; the cloud variant
// is plain HTTP with the submitted credentials.
func adapterFactory(cfg *config.Config, store *database.Store, logger zerolog.Logger) service.AdapterFactory {
	return func(req service.ConnectRequest, emit transport.EmitFunc) (transport.Adapter, error) {
		switch req.Mode {
		case model.ConnectQR, model.ConnectCode:
			return transport.NewMeow(transport.MeowConfig{
				Container:   store.Container,
				Mode:        req.Mode,
				PhoneNumber: req.PhoneNumber,
				CountryCode: cfg.CountryCode,
				PairTimeout: cfg.Session.QRTimeout,
			}, emit, logger.With().Str("component", "meow").Logger()), nil
		case model.ConnectCloud:
			return transport.NewCloud(transport.CloudConfig{
				BaseURL:     cfg.Cloud.BaseURL,
				AccountID:   req.AccountID,
				AccessToken: req.AccessToken,
				CountryCode: cfg.CountryCode,
				Timeout:     cfg.Cloud.Timeout,
			}, logger.With().Str("component", "cloud").Logger()), nil
		default:
			return nil, fmt.Errorf("unsupported connect mode %q", req.Mode)
		}
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogMethod:  true,
		LogURI:     true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := logger.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				evt = logger.Error()
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Err(v.Error).
				Msg("request")
			return nil
		},
	})
}
