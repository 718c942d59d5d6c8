package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rueijiunlin-crypto/GEIP/config"
	"github.com/rueijiunlin-crypto/GEIP/kvstore"
	"github.com/rueijiunlin-crypto/GEIP/server"
	"github.com/rueijiunlin-crypto/GEIP/site"
	"github.com/rueijiunlin-crypto/GEIP/templatex"
)

var cfgPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "geip",
		Short:         "GEIP program site server and builder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.json", "path to configuration file (json or yaml)")

	rootCmd.AddCommand(serveCmd(), buildCmd(), indexCmd(), searchCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the site, search, listings and news",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, cfg *config.Config, svc *site.Service, logger *slog.Logger) error {
				go svc.NewsRefresher().Run(ctx)
				srv := server.New(cfg, svc, logger, SERVER_SIGNATURE)
				logger.Info("listening", "address", cfg.Listen, "site", cfg.SiteDir)
				return srv.Start(ctx)
			})
		},
	}
}

func buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Render the static site with its search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, cfg *config.Config, svc *site.Service, logger *slog.Logger) error {
				return svc.BuildStatic(ctx)
			})
		},
	}
}

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Crawl the page list and refresh the cached search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, cfg *config.Config, svc *site.Service, logger *slog.Logger) error {
				count, err := svc.RefreshIndex(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %d pages\n", count)
				return nil
			})
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Query the search index from the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withService(func(ctx context.Context, cfg *config.Config, svc *site.Service, logger *slog.Logger) error {
				results, err := svc.Search(ctx, query)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d results for %q\n", len(results), strings.TrimSpace(query))
				for _, r := range results {
					fmt.Fprintf(out, "%s\t%s\n\t%s\n", r.URL, r.Title, r.Snippet)
				}
				return nil
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), SERVER_SIGNATURE)
		},
	}
}

// withService loads configuration, opens the cache store and runs fn with a
// context cancelled on SIGINT or SIGTERM.
func withService(fn func(ctx context.Context, cfg *config.Config, svc *site.Service, logger *slog.Logger) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting", "version", SERVER_SIGNATURE, "cache", cfg.Cache.Driver)

	store, err := kvstore.Open(cfg.Cache.Driver, cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	templates, err := templatex.Load(cfg.TemplateDir)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("templates: %w", err)
	}

	svc, err := site.NewService(cfg, store, templates, logger, SERVER_SIGNATURE)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("close", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, cfg, svc, logger)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
