package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Zachkp/portfolio/internal/chat"
	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/github"
	"github.com/Zachkp/portfolio/internal/server"
	"github.com/Zachkp/portfolio/internal/stats"
	"github.com/Zachkp/portfolio/internal/widget"
)

func main() {
	root := &cobra.Command{
		Use:          "portfolio",
		Short:        "Personal portfolio site with a chat assistant",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newAskCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	}
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the portfolio web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), config.Load())
		},
	}
}

func newAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Print the assistant's canned reply for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), chat.DefaultResponder().Reply(text))
			return nil
		},
	}
}

func loadProfile(cfg *config.Config) (github.Profile, error) {
	profile := github.Default()
	if cfg.GitHubProfileFile != "" {
		p, err := github.Load(cfg.GitHubProfileFile)
		if err != nil {
			return github.Profile{}, err
		}
		profile = p
	}
	return profile.WithUsername(cfg.GitHubUsername), nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	profile, err := loadProfile(cfg)
	if err != nil {
		return err
	}

	store, err := stats.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	// Runs after the registry close below, so every unmount is written.
	defer store.Close()

	adminToken := cfg.AdminToken
	if adminToken == "" {
		adminToken, err = server.GenerateAdminToken()
		if err != nil {
			return err
		}
		if cfg.IsDevelopment() {
			logger.Info().Str("token", adminToken).Msg("generated admin token (dev only)")
		}
	}

	srv := server.New(server.Deps{
		Logger:  logger,
		Stats:   store,
		Profile: profile,
		AboutMe: AboutMe,
		Defaults: widget.Options{
			PrimaryColor:   widget.ParseColor(cfg.WidgetPrimaryColor),
			SecondaryColor: cfg.WidgetSecondaryColor,
			Theme:          widget.ParseTheme(cfg.WidgetTheme),
		},
		IdleTTL:            cfg.WidgetIdleTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AdminToken:         adminToken,
	})
	defer srv.Registry().Close()
	go srv.Registry().Run(ctx)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv.Handler(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: /widget/events is a long-lived stream.
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Closing the registry first ends open event streams so Shutdown can finish.
	srv.Registry().Close()
	return httpServer.Shutdown(shutdownCtx)
}
