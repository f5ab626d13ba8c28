// Command thumbnailerd is the daemon entry point: it assembles caches,
// limiters, the credentials cache, art sources, the request handler, the
// dispatcher, and the inactivity monitor behind an HTTP front door, modeled
// on the teacher's cmd/server/main.go wiring sequence.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/cshum/vipsgen/vips"
	"github.com/joho/godotenv"

	"github.com/sashko-guz/thumbnailerd/internal/artsource"
	"github.com/sashko-guz/thumbnailerd/internal/cache"
	"github.com/sashko-guz/thumbnailerd/internal/config"
	"github.com/sashko-guz/thumbnailerd/internal/credentials"
	"github.com/sashko-guz/thumbnailerd/internal/dispatcher"
	"github.com/sashko-guz/thumbnailerd/internal/handler"
	"github.com/sashko-guz/thumbnailerd/internal/inactivity"
	"github.com/sashko-guz/thumbnailerd/internal/logger"
	"github.com/sashko-guz/thumbnailerd/internal/ratelimit"
	"github.com/sashko-guz/thumbnailerd/internal/transport"
)

func main() {
	logger.SetOutput(os.Stderr)
	logger.SetFlags(0)
	logger.InitFromEnv()

	// Load .env file if it exists (optional), same role as the teacher's
	// cmd/server/main.go.
	_ = godotenv.Load()

	cfg := config.Load()

	logger.Infof("[Main] starting thumbnailerd, cache root %s", cfg.CacheRoot)

	var vipsCfg *vips.Config
	if v := os.Getenv("VIPS_CONCURRENCY"); v != "" {
		if conc, err := strconv.Atoi(v); err == nil && conc > 0 {
			vipsCfg = &vips.Config{ConcurrencyLevel: conc}
			logger.Infof("[Main] libvips concurrency set to %d via VIPS_CONCURRENCY", conc)
		}
	}
	vips.Startup(vipsCfg)
	defer vips.Shutdown()

	imageCache, err := cache.New(cache.Config{
		Kind:        cache.KindImage,
		Dir:         cfg.CacheRoot + "/images",
		Capacity:    cfg.ImageCacheBytes,
		TTL:         cfg.ImageCacheTTL,
		PerEntryCap: cfg.ImagePerEntryCap,
	})
	if err != nil {
		logger.Fatalf("[Main] creating image cache: %v", err)
	}

	thumbCache, err := cache.New(cache.Config{
		Kind:     cache.KindThumb,
		Dir:      cfg.CacheRoot + "/thumbnails",
		Capacity: cfg.ThumbCacheBytes,
		TTL:      cfg.ThumbCacheTTL,
	})
	if err != nil {
		logger.Fatalf("[Main] creating thumbnail cache: %v", err)
	}

	failCache, err := cache.New(cache.Config{
		Kind:     cache.KindFail,
		Dir:      cfg.CacheRoot + "/failures",
		Capacity: cfg.FailCacheBytes,
		TTL:      cfg.FailCacheTTL,
	})
	if err != nil {
		logger.Fatalf("[Main] creating failure cache: %v", err)
	}

	limiters := handler.Limiters{
		Download:   ratelimit.New("download", cfg.MaxDownloads),
		Extraction: ratelimit.New("extraction", cfg.MaxExtractions),
	}

	credsCache, err := credentials.New(credentials.DefaultResolver(uint32(os.Getuid())), cfg.CredentialsCacheSize)
	if err != nil {
		logger.Fatalf("[Main] creating credentials cache: %v", err)
	}

	var extractor handler.Extractor
	if cfg.S3Bucket != "" {
		s3Extractor, err := artsource.NewS3Extractor(context.Background(), artsource.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, cfg.JPEGQuality)
		if err != nil {
			logger.Fatalf("[Main] creating S3 extractor: %v", err)
		}
		logger.Infof("[Main] extracting local art from S3 bucket %s", cfg.S3Bucket)
		extractor = s3Extractor
	} else {
		extractor = artsource.NewLocalExtractor(cfg.JPEGQuality)
	}
	downloader := artsource.NewRemoteDownloader(cfg.LastfmAPIRoot, cfg.UbuntuAPIRoot, cfg.APIKey)

	h := handler.New(
		handler.Caches{Image: imageCache, Thumb: thumbCache, Fail: failCache},
		limiters,
		credsCache,
		extractor,
		downloader,
		cfg.MaxSize,
		cfg.JPEGQuality,
		uint32(os.Getuid()),
	)

	var shutdownOnce sync.Once
	shutdownCh := make(chan struct{})
	requestShutdown := func() {
		shutdownOnce.Do(func() { close(shutdownCh) })
	}

	monitor := inactivity.New(cfg.MaxIdle, requestShutdown)

	d := dispatcher.New(h, monitor, map[int]*cache.Cache{
		dispatcher.CacheIDImage:     imageCache,
		dispatcher.CacheIDThumbnail: thumbCache,
		dispatcher.CacheIDFailure:   failCache,
	})

	// The monitor starts armed: a freshly started daemon with no requests
	// yet is, by definition, idle (spec §4.7).
	monitor.StartInactivity()

	srv := transport.NewServer(d, requestShutdown)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("[Main] listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("[Main] http server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-shutdownCh:
		logger.Infof("[Main] shutdown requested, exiting")
	case sig := <-sigCh:
		logger.Infof("[Main] received %v, exiting", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)

	os.Exit(0)
}
