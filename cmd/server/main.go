package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/iconidentify/dsconvert/internal/api"
	"github.com/iconidentify/dsconvert/internal/api/handler"
	"github.com/iconidentify/dsconvert/internal/config"
	"github.com/iconidentify/dsconvert/internal/downloader"
	"github.com/iconidentify/dsconvert/internal/metrics"
	"github.com/iconidentify/dsconvert/internal/repository"
	"github.com/iconidentify/dsconvert/internal/resolver"
	"github.com/iconidentify/dsconvert/internal/service"
	"github.com/iconidentify/dsconvert/internal/worker"
	"github.com/iconidentify/dsconvert/pkg/crypto"
	"github.com/iconidentify/dsconvert/pkg/ffmpeg"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	verboseFlag := flag.Bool("verbose", false, "Enable verbose logging without asking")
	quietFlag := flag.Bool("quiet", false, "Disable verbose logging without asking")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dsconvert %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	verbose := resolveVerbose(*verboseFlag, *quietFlag, cfg.Log.Verbose)
	logger := newLogger(cfg.Log.Format, verbose)
	slog.SetDefault(logger)

	logger.Info("starting dsconvert",
		"version", Version,
		"build_time", BuildTime,
		"verbose", verbose,
	)

	metrics.Initialize()

	videoRepo := repository.NewFilesystemVideoRepository(cfg.Storage)
	if err := videoRepo.Init(); err != nil {
		logger.Error("failed to create video directory", "path", cfg.Storage.VideoDir, "error", err)
		os.Exit(1)
	}

	transcoder := ffmpeg.New(cfg.Transcode.FFmpegPath, logger)
	if !transcoder.Available() {
		logger.Warn("ffmpeg not found, conversions will fail", "path", cfg.Transcode.FFmpegPath)
	} else if v, err := transcoder.Version(context.Background()); err == nil {
		logger.Info("using ffmpeg", "version", v)
	}

	dl := downloader.NewHTTPDownloader(cfg.Download)
	dl.SetLogger(logger)
	scraper := resolver.NewScraper(cfg.Scrape, cfg.Download.UserAgent, logger)

	convertSvc := service.NewConvertService(videoRepo, scraper, dl, transcoder, cfg.Storage, logger)

	videoHandler := handler.NewVideoHandler(convertSvc, cfg.Server.PlaybackPort(), verbose, logger)
	mediaHandler := handler.NewMediaHandler(convertSvc, logger)
	healthHandler := handler.NewHealthHandler(convertSvc, transcoder, cfg.Storage.VideoDir)

	router := api.NewRouter(videoHandler, mediaHandler, healthHandler)

	sweeper := worker.NewSweeper(
		worker.Config{
			Interval:   cfg.Storage.SweepInterval,
			StaleAfter: cfg.Storage.StaleAfter,
			Retention:  cfg.Storage.Retention,
		},
		videoRepo,
		logger,
	)
	sweeper.Start()

	servers := []*http.Server{{
		Addr:              cfg.Server.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}}

	go func() {
		logger.Info("starting HTTP server", "addr", servers[0].Addr)
		if err := servers[0].ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	httpsAddr := ""
	if cfg.TLS.Enabled {
		if tlsSrv := startTLS(cfg, router, logger); tlsSrv != nil {
			servers = append(servers, tlsSrv)
			httpsAddr = tlsSrv.Addr
		}
	}

	printBanner(os.Stdout, cfg.Server.HTTPAddress(), httpsAddr, verbose)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("server shutdown error", "addr", srv.Addr, "error", err)
			}
		}(srv)
	}
	wg.Wait()

	// Conversions outlive their requests; kill whatever is still encoding.
	transcoder.Cleanup()

	if err := sweeper.Stop(cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("sweeper shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// startTLS serves router over HTTPS with the configured certificate,
// generating a self-signed one when none exists. It returns nil when the
// listener could not be set up; the plain HTTP server keeps running.
func startTLS(cfg *config.Config, router http.Handler, logger *slog.Logger) *http.Server {
	created, err := crypto.EnsureSelfSigned(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		logger.Warn("HTTPS disabled, could not prepare certificate",
			"cert_file", cfg.TLS.CertFile,
			"key_file", cfg.TLS.KeyFile,
			"error", err,
		)
		return nil
	}
	if created {
		logger.Info("generated self-signed certificate", "cert_file", cfg.TLS.CertFile, "key_file", cfg.TLS.KeyFile)
	}

	srv := &http.Server{
		Addr:              cfg.Server.HTTPSAddress(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	go func() {
		logger.Info("starting HTTPS server", "addr", srv.Addr)
		if err := srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTPS server error", "error", err)
		}
	}()
	return srv
}

func newLogger(format string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
