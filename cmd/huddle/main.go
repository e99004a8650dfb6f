package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/changefeed"
	"github.com/dukerupert/huddle/internal/config"
	"github.com/dukerupert/huddle/internal/database"
	"github.com/dukerupert/huddle/internal/email"
	"github.com/dukerupert/huddle/internal/handler"
	"github.com/dukerupert/huddle/internal/logging"
	"github.com/dukerupert/huddle/internal/server"
	ws "github.com/dukerupert/huddle/internal/websocket"
)

const rateLimitCleanupInterval = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "huddle: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feed, err := openFeed(ctx, cfg, logger.With("component", "changefeed"))
	if err != nil {
		return err
	}
	defer feed.Close()

	srv := server.New(db, feed, server.Options{
		Issuer:         auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Location:       loc,
		GraceDays:      cfg.GraceDays,
		AgendaDebounce: cfg.AgendaDebounce,
		Mailer:         newMailer(cfg, logger.With("component", "email")),
		LoginCodeTTL:   cfg.LoginCodeTTL,
	}, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		// Hijacked websocket connections outlive Shutdown; tie them to the
		// signal context so they close on exit.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("huddle listening", "addr", httpServer.Addr, "timezone", loc.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(rateLimitCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup(rateLimitCleanupInterval)
				if n, err := srv.LoginCodes().DeleteExpired(ctx); err != nil {
					logger.Error("delete expired login codes", "error", err)
				} else if n > 0 {
					logger.Debug("deleted expired login codes", "count", n)
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		srv.Hub().Broadcast(ws.Message{Type: "shutdown", Reason: "server restarting"})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newMailer(cfg *config.Config, logger *slog.Logger) handler.CodeSender {
	client := email.NewClient(cfg.PostmarkToken, cfg.EmailFrom)
	if !client.Configured() {
		logger.Warn("postmark token not set, login codes will be logged")
		return email.LogSender{Logger: logger}
	}
	return client
}

// openFeed picks the Redis change feed when a URL is configured and the
// in-process broker otherwise.
func openFeed(ctx context.Context, cfg *config.Config, logger *slog.Logger) (changefeed.Feed, error) {
	if cfg.RedisURL == "" {
		logger.Info("using in-process change feed")
		return changefeed.NewBroker(logger), nil
	}

	feed, err := changefeed.NewRedisFeed(ctx, cfg.RedisURL, logger)
	if err != nil {
		return nil, fmt.Errorf("open redis change feed: %w", err)
	}
	logger.Info("using redis change feed")
	return feed, nil
}
