package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/topicscout/topicscout/ai"
	"github.com/topicscout/topicscout/api"
	"github.com/topicscout/topicscout/email"
	"github.com/topicscout/topicscout/models"
	"github.com/topicscout/topicscout/pipeline"
	"github.com/topicscout/topicscout/utils"
)

func main() {
	envPath := flag.String("env", ".env", "Path to .env file")
	logLevel := flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	flag.Parse()

	log := setupLogger(*logLevel)
	log.Info("Starting TopicScout")

	config, err := utils.LoadConfig(*envPath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"server_port":  config.Server.Port,
		"gemini_model": config.Gemini.Model,
	}).Info("Configuration loaded")

	redditAPI := api.NewRedditAPI(
		config.Reddit.ClientID,
		config.Reddit.ClientSecret,
		config.Reddit.UserAgent,
		config.Reddit.Subreddits,
		log,
	)

	// a missing Gemini key leaves the analyzer nil; the orchestrator then
	// reports a configuration error per request instead of crashing here
	var analyzer pipeline.ContentAnalyzer
	if a, err := ai.NewAnalyzer(config.Gemini.APIKey, config.Gemini.Model, log); err != nil {
		log.WithError(err).Warn("AI analyzer unavailable, running degraded")
	} else {
		analyzer = a
	}

	orchestrator := pipeline.NewOrchestrator(redditAPI, analyzer, log)

	sender := email.NewSender(&email.Config{
		SMTPServer: config.Email.SMTPServer,
		SMTPPort:   config.Email.SMTPPort,
		Username:   config.Email.Username,
		Password:   config.Email.Password,
		FromEmail:  config.Email.FromEmail,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go startEchoServer(ctx, config, orchestrator, sender, log)

	waitForShutdown(cancel, log)
}

// setupLogger sets up the logger with the specified log level
func setupLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// startEchoServer starts the Echo HTTP API server
func startEchoServer(ctx context.Context, config *utils.Config, orchestrator *pipeline.Orchestrator, sender *email.Sender, log *logrus.Logger) {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	requestsPerSecond := float64(config.Server.MaxRequestsPerMinute) / 60.0

	rateLimiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(requestsPerSecond),
				Burst:     5,
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded, please try again later",
			})
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded, please try again later",
			})
		},
	}
	e.Use(middleware.RateLimiterWithConfig(rateLimiterConfig))

	e.POST("/api/analyze", func(c echo.Context) error {
		var req models.AnalyzeRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "Invalid request body",
			})
		}

		resp, errResp := orchestrator.Run(c.Request().Context(), &req)
		if errResp != nil {
			return c.JSON(errResp.HTTPStatus(), errResp)
		}
		return c.JSON(http.StatusOK, resp)
	})

	e.GET("/api/analyze", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"message": "TopicScout Analysis API",
			"version": config.App.Version,
			"endpoints": map[string]string{
				"analyze": "POST /api/analyze",
				"email":   "POST /api/email",
				"health":  "GET /healthz",
			},
		})
	})

	e.POST("/api/email", func(c echo.Context) error {
		var data email.Data
		if err := c.Bind(&data); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "Invalid request body",
			})
		}

		if err := sender.SendNewsletter(data); err != nil {
			log.WithError(err).Error("Newsletter dispatch failed")
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"success": false,
				"message": err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"message": "Newsletter sent successfully!",
		})
	})

	// health check endpoint; useful for k8s liveliness probes
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	go func() {
		serverAddr := fmt.Sprintf(":%d", config.Server.Port)
		log.WithField("port", config.Server.Port).Info("Starting API server")
		if err := e.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("API server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("API server shutdown failed")
	}
}

// waitForShutdown waits for a shutdown signal
func waitForShutdown(cancel context.CancelFunc, log *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("Shutdown signal received")

	cancel()

	time.Sleep(1 * time.Second)
	log.Info("TopicScout stopped")
}
