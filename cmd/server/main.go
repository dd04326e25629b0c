package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"freshdeal/cache"
	"freshdeal/config"
	"freshdeal/database"
	"freshdeal/events"
	"freshdeal/handlers"
	"freshdeal/logger"
	"freshdeal/middleware"
	"freshdeal/store"
	"freshdeal/worker"
)

// main wires storage, cache, event consumer and the geocoding worker around the
// storefront HTTP API.
func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.New(logger.Options{}).Error("load config", "err", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
		Env:       cfg.Env,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns, log)
	if err != nil {
		log.Error("connect database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	st := store.New(db)
	h := &handlers.Handler{
		Source:          st,
		Log:             log,
		DefaultRadiusKm: cfg.Search.DefaultRadiusKm,
		MaxRadiusKm:     cfg.Search.MaxRadiusKm,
	}

	var snapshots *cache.SnapshotCache
	if cfg.Redis.Addr != "" {
		snapshots, err = cache.NewRedisClient(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.TTL(),
		}, log)
		if err != nil {
			log.Warn("redis unavailable, serving without snapshot cache", "err", err)
			snapshots = nil
		} else {
			defer snapshots.Close()
			h.Cache = snapshots
		}
	}

	if cfg.RabbitMQ.URL != "" && snapshots != nil {
		consumer, err := events.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, snapshots, log)
		if err != nil {
			log.Warn("rabbitmq unavailable, cache relies on ttl only", "err", err)
		} else {
			defer consumer.Close()
			go func() {
				if err := consumer.Run(ctx); err != nil {
					log.Error("restaurant update consumer stopped", "err", err)
				}
			}()
		}
	}

	if cfg.Geocoding.APIKey != "" {
		gw := &worker.GeocodingWorker{
			Backlog:     st,
			Geocoder:    worker.NewGoogleGeocoder(cfg.Geocoding.APIKey),
			Log:         log.With("component", "geocoding"),
			BatchSize:   cfg.Geocoding.BatchSize,
			Concurrency: cfg.Geocoding.Concurrency,
			Interval:    cfg.GeocodingInterval(),
		}
		if snapshots != nil {
			gw.OnResolved = func(ctx context.Context) {
				if err := snapshots.Invalidate(ctx); err != nil {
					log.Warn("invalidate after geocoding", "err", err)
				}
			}
		}
		go gw.Run(ctx)
	} else {
		log.Info("GOOGLE_MAPS_API_KEY not set, geocoding worker disabled")
	}

	mux := http.NewServeMux()
	handlers.Register(mux, h)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           c.Handler(middleware.Chain(log, mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		log.Error("server failed", "err", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
