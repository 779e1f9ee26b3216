package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dtnitsch/school-kb/internal/common"
	"github.com/dtnitsch/school-kb/models"
	"github.com/dtnitsch/school-kb/pkg/caching"
	"github.com/dtnitsch/school-kb/pkg/chat"
	"github.com/dtnitsch/school-kb/pkg/llm"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

const (
	shutdownTimeout = 10 * time.Second
	envFile         = ".env"
)

// LoadEnv loads .env from the working directory without overriding
// variables already set in the process environment. It must run before
// flags are parsed so EnvVars see the file's values.
func LoadEnv() {
	if _, err := os.Stat(envFile); err != nil {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Failed to load env file", "file", envFile, "error", err)
	}
}

func ServeAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"), c.Bool("verbose"))
	gin.SetMode(gin.ReleaseMode)

	ttl, err := common.ParseTTL(c.String("cache-ttl"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}
	if err := models.ValidateCutoff(c.Float64("cutoff")); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}

	cfg := models.ServeConfig{
		Addr:           c.String("addr"),
		CSVSource:      c.String("csv-url"),
		CacheTTL:       ttl,
		MatchCutoff:    c.Float64("cutoff"),
		FrameAncestors: c.String("frame-ancestors"),
		AdminToken:     c.String("admin-token"),
		OpenAIKey:      c.String("openai-api-key"),
		OpenAIModel:    c.String("openai-model"),
		OpenAIBaseURL:  c.String("openai-base-url"),
	}.WithDefaults()

	cache := caching.NewCache(cfg.CSVSource, cfg.CacheTTL, caching.WithLogger(logger))

	var completer llm.Completer
	provider, err := llm.NewOpenAIProvider(llm.Config{
		APIKey:  cfg.OpenAIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		logger.Warn("Chat completions disabled", "error", err)
	} else {
		completer = provider
	}

	server := NewServer(cache, chat.NewService(cache, completer, cfg.MatchCutoff, logger), cfg, logger)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Warm the cache so the first chat request does not pay for the download.
	if cfg.CSVSource != "" {
		if _, err := cache.Load(ctx); err != nil {
			logger.Warn("Initial knowledge load failed; will retry on demand", "error", err)
		}
	} else {
		logger.Warn("No knowledge source configured; answers will have no context")
	}

	if err := run(ctx, cfg.Addr, server.Router(), logger); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}
	return nil
}

func run(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("Shutting down", "addr", addr)
	return srv.Shutdown(shutdownCtx)
}
